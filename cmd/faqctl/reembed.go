package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newReembedCmd() *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "reembed",
		Short: "Regenerate question embeddings",
		Long: `Reembed fills in embeddings for entries that have none. With --id it
regenerates the embedding of that one entry instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
			defer cancel()

			catalog, closeFn, err := openCatalog(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if id > 0 {
				if err := catalog.Reembed(ctx, id); err != nil {
					return fmt.Errorf("reembed faq %d: %w", id, err)
				}
				return printResult(cmd.OutOrStdout(), map[string]any{"id": id, "updated": 1},
					fmt.Sprintf("Re-embedded FAQ %d", id))
			}

			n, err := catalog.ReembedMissing(ctx)
			if err != nil {
				return fmt.Errorf("reembed stopped after %d entries: %w", n, err)
			}
			return printResult(cmd.OutOrStdout(), map[string]any{"updated": n},
				fmt.Sprintf("Embedded %d entries", n))
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "re-embed a single FAQ by id")
	return cmd
}
