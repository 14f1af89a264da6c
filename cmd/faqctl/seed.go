package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capitalize-ai/faqbot/internal/faq"
)

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Add FAQ entries from a YAML file",
		Long: `Seed reads a YAML document of the form

  faqs:
    - question: Do you ship internationally?
      answer: We ship to Canada and Mexico.
      category: shipping

and adds every question not already in the catalog. Questions are embedded as they are stored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
			defer cancel()

			if file == "" {
				file = cfg.FAQSeedFile
			}
			reqs, err := faq.LoadSeedFile(file)
			if err != nil {
				return err
			}

			catalog, closeFn, err := openCatalog(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			created, err := catalog.Seed(ctx, reqs)
			log.Info("seed finished",
				zap.String("file", file),
				zap.Int("entries", len(reqs)),
				zap.Int("created", created),
			)
			if err != nil {
				return fmt.Errorf("seed stopped after %d entries: %w", created, err)
			}

			return printResult(cmd.OutOrStdout(), map[string]any{"file": file, "created": created},
				fmt.Sprintf("Created %d of %d entries from %s", created, len(reqs), file))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file (default: FAQ_SEED_FILE)")
	return cmd
}
