// Package unclaim implements the operator command for releasing claims
// directly against the claim store, bypassing the HTTP surface.
package unclaim

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/neighbourly/canvass-go/internal/conf"
	"github.com/neighbourly/canvass-go/internal/datastore"
)

// Command creates the unclaim command.
func Command(settings *conf.Settings) *cobra.Command {
	var claimer string

	cmd := &cobra.Command{
		Use:   "unclaim <slug>",
		Short: "Release the active claim on a mesh block",
		Long:  "Release the active claim on a mesh block directly in the claim store. Used for data corrections when a claim is stuck or was made in error.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnclaim(cmd.Context(), settings, args[0], claimer)
		},
	}

	cmd.Flags().StringVar(&claimer, "claimer", "", "Only release the claim if held by this identity")

	return cmd
}

func runUnclaim(ctx context.Context, settings *conf.Settings, slug, claimer string) error {
	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open claim store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing claim store: %v", err)
		}
	}()

	if err := store.ReleaseClaim(ctx, slug, claimer); err != nil {
		if datastore.IsNotFound(err) {
			return fmt.Errorf("no matching active claim for %q", slug)
		}
		return fmt.Errorf("failed to release claim: %w", err)
	}

	fmt.Printf("Released active claim on %s\n", slug)
	return nil
}
