package authorize

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tlahtinen/trackguard/internal/conf"
	"github.com/tlahtinen/trackguard/internal/spotify"
)

// Command creates the command that runs the interactive OAuth flow.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "authorize",
		Short: "Authorize trackguard with the playback provider",
		Long:  "Run the browser based OAuth authorization flow and cache the resulting token for the monitor.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			auth, err := spotify.NewAuthenticator(spotify.AuthConfig{
				ClientID:     settings.Spotify.ClientID,
				ClientSecret: settings.Spotify.ClientSecret,
				RedirectURI:  settings.Spotify.RedirectURI,
				TokenPath:    settings.Spotify.TokenPath,
			})
			if err != nil {
				return err
			}
			return auth.Authorize(ctx)
		},
	}
}
