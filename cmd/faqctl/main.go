// Package main provides faqctl, the FAQ catalog maintenance CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/capitalize-ai/faqbot/internal/config"
	"github.com/capitalize-ai/faqbot/internal/database"
	"github.com/capitalize-ai/faqbot/internal/embedding"
	"github.com/capitalize-ai/faqbot/internal/faq"
	"github.com/capitalize-ai/faqbot/pkg/logger"
)

var (
	// Global flags
	outputJSON bool
	logLevel   string

	cfg *config.Config
	log *logger.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faqctl",
		Short: "Maintain the FAQ catalog used by the chat API",
		Long: `faqctl manages the FAQ corpus stored in Postgres.

Use it to:
- Seed the catalog from a YAML file
- Regenerate question embeddings after a model change
- Look up entries by keyword

DATABASE_URL and the EMBEDDING_* variables are read from the environment or a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			if logLevel == "" {
				logLevel = cfg.LogLevel
			}

			var err error
			log, err = logger.New(logLevel)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			logger.SetGlobal(log)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (default: LOG_LEVEL)")

	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newReembedCmd())
	cmd.AddCommand(newSearchCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDB connects to DATABASE_URL and applies migrations.
func openDB(ctx context.Context) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	db, err := database.Open(cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		database.Close(db)
		return nil, err
	}
	return db, nil
}

// openCatalog returns a catalog service with a ready embedder.
func openCatalog(ctx context.Context) (*faq.Service, func(), error) {
	db, err := openDB(ctx)
	if err != nil {
		return nil, nil, err
	}

	embedder := embedding.NewOpenAIEmbedder(embedding.Config{
		APIKey:  cfg.EmbeddingAPIKey,
		BaseURL: cfg.EmbeddingBaseURL,
		Model:   cfg.EmbeddingModel,
	}, log)
	if err := embedder.Init(ctx); err != nil {
		database.Close(db)
		return nil, nil, err
	}

	closeFn := func() { database.Close(db) }
	return faq.NewService(faq.NewGormRepository(db), embedder, log), closeFn, nil
}
