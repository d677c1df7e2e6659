package spotify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	"github.com/tlahtinen/trackguard/internal/errors"
)

// spotifyEndpoint is the provider's OAuth2 endpoint pair.
var spotifyEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.spotify.com/authorize",
	TokenURL: "https://accounts.spotify.com/api/token",
}

// requiredScopes covers playback polling, queue control and playlist edits.
var requiredScopes = []string{
	"user-read-playback-state",
	"user-read-currently-playing",
	"user-modify-playback-state",
	"playlist-read-private",
	"playlist-modify-private",
	"playlist-modify-public",
}

// AuthConfig carries the OAuth2 application settings. ClientSecret may be
// empty, the PKCE flow covers public clients.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	TokenPath    string
}

// Authenticator handles the authorization code flow with PKCE and persists
// the resulting token for later runs.
type Authenticator struct {
	cfg   AuthConfig
	oauth *oauth2.Config
}

// NewAuthenticator creates an authenticator for the configured application.
func NewAuthenticator(cfg AuthConfig) (*Authenticator, error) {
	if cfg.ClientID == "" {
		return nil, errors.Newf("spotify client id is required").
			Component("spotify").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.TokenPath == "" {
		cfg.TokenPath = ".spotify_token.json"
	}
	return &Authenticator{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       requiredScopes,
			Endpoint:     spotifyEndpoint,
		},
	}, nil
}

// TokenSource returns a self refreshing token source backed by the cached
// token on disk. Refreshed tokens are written back so the next run does not
// need a new browser authorization.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	token, err := a.loadToken()
	if err != nil {
		return nil, err
	}
	return &persistingTokenSource{
		src:  a.oauth.TokenSource(ctx, token),
		path: a.cfg.TokenPath,
		last: token,
	}, nil
}

// Authorize runs the interactive authorization code flow: it serves the
// redirect URI on localhost, prints the authorization URL for the user and
// exchanges the returned code using PKCE. The token is persisted on success.
func (a *Authenticator) Authorize(ctx context.Context) error {
	redirect, err := url.Parse(a.cfg.RedirectURI)
	if err != nil {
		return errors.New(err).
			Component("spotify").
			Category(errors.CategoryConfiguration).
			Context("redirect_uri", a.cfg.RedirectURI).
			Build()
	}

	verifier := oauth2.GenerateVerifier()
	state, err := randomState()
	if err != nil {
		return err
	}
	authURL := a.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- errors.Newf("authorization state mismatch").
				Component("spotify").
				Category(errors.CategoryValidation).
				Build()
			return
		}
		if errMsg := r.URL.Query().Get("error"); errMsg != "" {
			http.Error(w, "authorization denied", http.StatusForbidden)
			errCh <- errors.Newf("authorization denied: %s", errMsg).
				Component("spotify").
				Category(errors.CategoryValidation).
				Build()
			return
		}
		fmt.Fprintln(w, "Authorization complete, you can close this tab.")
		codeCh <- r.URL.Query().Get("code")
	})

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return errors.New(err).
			Component("spotify").
			Category(errors.CategoryNetwork).
			Context("redirect_uri", a.cfg.RedirectURI).
			Build()
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = server.Serve(listener) }()
	defer func() { _ = server.Close() }()

	fmt.Println("Open the following URL in your browser to authorize trackguard:")
	fmt.Println(authURL)

	var code string
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	case code = <-codeCh:
	}

	token, err := a.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return errors.New(err).
			Component("spotify").
			Category(errors.CategoryNetwork).
			Build()
	}

	if err := saveToken(a.cfg.TokenPath, token); err != nil {
		return err
	}
	logger.Info("authorization complete", "token_path", a.cfg.TokenPath)
	return nil
}

// loadToken reads the cached OAuth token from disk.
func (a *Authenticator) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(a.cfg.TokenPath)
	if err != nil {
		return nil, errors.Newf("no cached token at %s, run the authorize command first: %v", a.cfg.TokenPath, err).
			Component("spotify").
			Category(errors.CategoryConfiguration).
			Context("token_path", a.cfg.TokenPath).
			Build()
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, errors.New(err).
			Component("spotify").
			Category(errors.CategoryFileParsing).
			Context("token_path", a.cfg.TokenPath).
			Build()
	}
	return &token, nil
}

// saveToken writes the token file with owner only permissions.
func saveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("spotify").
			Category(errors.CategoryFileIO).
			Build()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("spotify").
				Category(errors.CategoryFileIO).
				Context("token_path", path).
				Build()
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.New(err).
			Component("spotify").
			Category(errors.CategoryFileIO).
			Context("token_path", path).
			Build()
	}
	return nil
}

// persistingTokenSource saves refreshed tokens back to disk.
type persistingTokenSource struct {
	src  oauth2.TokenSource
	path string
	last *oauth2.Token
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != s.last.AccessToken {
		s.last = token
		if err := saveToken(s.path, token); err != nil {
			logger.Warn("failed to persist refreshed token", "error", err)
		}
	}
	return token, nil
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.New(err).
			Component("spotify").
			Category(errors.CategoryGeneric).
			Build()
	}
	return hex.EncodeToString(buf), nil
}
