package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	engine "github.com/tlahtinen/trackguard/internal/classify"
	"github.com/tlahtinen/trackguard/internal/conf"
	"github.com/tlahtinen/trackguard/internal/daemon"
)

// Command creates the command that classifies a single artist and prints
// the decision as JSON.
func Command(settings *conf.Settings) *cobra.Command {
	var artistID string

	cmd := &cobra.Command{
		Use:   "classify <artist name>",
		Short: "Classify one artist and print the decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			name := args[0]
			if artistID == "" {
				artistID = name
			}

			eng, err := daemon.BuildEngine(settings, engine.NewOverrideStore(), nil)
			if err != nil {
				return err
			}
			decision, err := eng.Classify(ctx, engine.ArtistIdentity{ID: artistID, Name: name})
			if err != nil {
				return err
			}

			encoded, err := json.MarshalIndent(decision, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(encoded))
			return nil
		},
	}

	cmd.Flags().StringVar(&artistID, "id", "", "Provider artist id, defaults to the artist name")
	return cmd
}
