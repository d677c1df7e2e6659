package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/tlahtinen/trackguard/internal/errors"
)

const defaultAPIBaseURL = "https://api.spotify.com/v1"

// Client talks to the provider's Web API with an OAuth2 authorized HTTP
// client. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an API client from a token source. The underlying
// oauth2 transport refreshes tokens transparently.
func NewClient(ctx context.Context, src oauth2.TokenSource) *Client {
	httpClient := oauth2.NewClient(ctx, src)
	httpClient.Timeout = 15 * time.Second
	return &Client{
		baseURL:    defaultAPIBaseURL,
		httpClient: httpClient,
	}
}

// NewClientWithBaseURL is NewClient with an overridable API base, used by
// tests.
func NewClientWithBaseURL(ctx context.Context, src oauth2.TokenSource, baseURL string) *Client {
	c := NewClient(ctx, src)
	c.baseURL = baseURL
	return c
}

// CurrentlyPlaying returns the current playback snapshot including the
// active device, or nil when no device is playing (the provider answers
// 204 in that case).
func (c *Client) CurrentlyPlaying(ctx context.Context) (*PlaybackState, error) {
	resp, err := c.do(ctx, http.MethodGet, "/me/player", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if err := c.checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	var state PlaybackState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, c.wrapErr(err, errors.CategoryHTTP, "currently_playing")
	}
	state.FetchedAt = time.Now()
	return &state, nil
}

// SkipToNext advances the player to the next track.
func (c *Client) SkipToNext(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/me/player/next", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return c.checkStatus(resp, http.StatusNoContent, http.StatusOK)
}

// CurrentUser returns the authenticated account.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/me", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := c.checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, c.wrapErr(err, errors.CategoryHTTP, "current_user")
	}
	return &user, nil
}

// playlistPage is one page of the playlists listing.
type playlistPage struct {
	Items []struct {
		ID    string `json:"id"`
		URI   string `json:"uri"`
		Name  string `json:"name"`
		Owner struct {
			ID string `json:"id"`
		} `json:"owner"`
	} `json:"items"`
	Next string `json:"next"`
}

// ListUserPlaylists returns every playlist on the account, following
// pagination.
func (c *Client) ListUserPlaylists(ctx context.Context) ([]Playlist, error) {
	var playlists []Playlist
	path := "/me/playlists?limit=50"
	for path != "" {
		resp, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		var page playlistPage
		err = func() error {
			defer func() { _ = resp.Body.Close() }()
			if err := c.checkStatus(resp, http.StatusOK); err != nil {
				return err
			}
			return json.NewDecoder(resp.Body).Decode(&page)
		}()
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			playlists = append(playlists, Playlist{
				ID:      item.ID,
				URI:     item.URI,
				Name:    item.Name,
				OwnerID: item.Owner.ID,
			})
		}
		path = trimBaseURL(page.Next, c.baseURL)
	}
	return playlists, nil
}

// CreatePlaylist creates a private playlist on the user's account.
func (c *Client) CreatePlaylist(ctx context.Context, userID, name, description string) (*Playlist, error) {
	body := map[string]any{
		"name":        name,
		"public":      false,
		"description": description,
	}
	resp, err := c.do(ctx, http.MethodPost, "/users/"+userID+"/playlists", body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := c.checkStatus(resp, http.StatusCreated, http.StatusOK); err != nil {
		return nil, err
	}

	var created struct {
		ID   string `json:"id"`
		URI  string `json:"uri"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, c.wrapErr(err, errors.CategoryHTTP, "create_playlist")
	}
	return &Playlist{ID: created.ID, URI: created.URI, Name: created.Name}, nil
}

// AddTracksToPlaylist appends track URIs to a playlist.
func (c *Client) AddTracksToPlaylist(ctx context.Context, playlistID string, trackURIs []string) error {
	resp, err := c.do(ctx, http.MethodPost, "/playlists/"+playlistID+"/tracks",
		map[string]any{"uris": trackURIs})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return c.checkStatus(resp, http.StatusCreated, http.StatusOK)
}

// RemoveTracksFromPlaylist deletes all occurrences of the given track URIs
// from a playlist.
func (c *Client) RemoveTracksFromPlaylist(ctx context.Context, playlistID string, trackURIs []string) error {
	tracks := make([]map[string]string, 0, len(trackURIs))
	for _, uri := range trackURIs {
		tracks = append(tracks, map[string]string{"uri": uri})
	}
	resp, err := c.do(ctx, http.MethodDelete, "/playlists/"+playlistID+"/tracks",
		map[string]any{"tracks": tracks})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return c.checkStatus(resp, http.StatusOK)
}

// do issues one authorized request. Request bodies are JSON encoded.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, c.wrapErr(err, errors.CategoryValidation, path)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, c.wrapErr(err, errors.CategoryNetwork, path)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.wrapErr(err, errors.CategoryNetwork, path)
	}
	return resp, nil
}

// checkStatus validates the response status, converting 429 into a typed
// rate limit error carrying the Retry-After the provider mandates.
func (c *Client) checkStatus(resp *http.Response, acceptable ...int) error {
	for _, status := range acceptable {
		if resp.StatusCode == status {
			return nil
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 5 * time.Second
		if header := resp.Header.Get("Retry-After"); header != "" {
			if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}
	}

	urlPath := ""
	if resp.Request != nil {
		urlPath = resp.Request.URL.Path
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return errors.Newf("provider returned status %d: %s", resp.StatusCode, string(snippet)).
		Component("spotify").
		Category(errors.CategoryHTTP).
		Context("status_code", resp.StatusCode).
		Context("url", urlPath).
		Build()
}

func (c *Client) wrapErr(err error, category errors.ErrorCategory, operation string) error {
	return errors.New(err).
		Component("spotify").
		Category(category).
		Context("operation", operation).
		Build()
}

// trimBaseURL converts the provider's absolute pagination URL into a path
// relative to the client base, empty when pagination is done.
func trimBaseURL(next, base string) string {
	if next == "" {
		return ""
	}
	if len(next) > len(base) && next[:len(base)] == base {
		return next[len(base):]
	}
	return ""
}
