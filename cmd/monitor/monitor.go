package monitor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tlahtinen/trackguard/internal/conf"
	"github.com/tlahtinen/trackguard/internal/daemon"
)

// Command creates the command that runs the playback monitor daemon.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Monitor playback and act on artificial artists",
		Long:  "Poll the playback provider, classify the artists of every playing track and skip, remove or collect tracks by artificial acts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return daemon.Run(ctx, settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}
	return cmd
}

// setupFlags configures flags specific to the monitor command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVar(&settings.Monitor.PollInterval, "pollinterval", viper.GetInt("monitor.pollinterval"), "Playback poll interval in seconds")
	cmd.Flags().BoolVar(&settings.Monitor.AutoSkip, "autoskip", viper.GetBool("monitor.autoskip"), "Skip tracks by artificial artists")
	cmd.Flags().StringVar(&settings.Monitor.BlockedPlaylist, "blockedplaylist", viper.GetString("monitor.blockedplaylist"), "Playlist collecting flagged tracks, empty to disable")
	cmd.Flags().Float64Var(&settings.Monitor.ActionThreshold, "actionthreshold", viper.GetFloat64("monitor.actionthreshold"), "Minimum decision confidence before actions run")
	cmd.Flags().BoolVar(&settings.WebServer.Enabled, "webserver", viper.GetBool("webserver.enabled"), "Enable the review API server")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
