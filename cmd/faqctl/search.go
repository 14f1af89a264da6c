package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/faqbot/internal/database"
	"github.com/capitalize-ai/faqbot/internal/model"
	"github.com/capitalize-ai/faqbot/internal/search"
	"github.com/capitalize-ai/faqbot/pkg/logger"
)

func newSearchCmd() *cobra.Command {
	var (
		keyword string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find FAQ entries whose question contains a keyword",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyword == "" {
				return errors.New("--keyword is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			db, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close(db)

			gateway := search.NewPGVectorGateway(db, logger.Global())
			results, err := gateway.SearchByKeyword(ctx, keyword, limit)
			if err != nil {
				return fmt.Errorf("keyword search: %w", err)
			}
			return writeCandidates(cmd.OutOrStdout(), results, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&keyword, "keyword", "k", "", "text to look for in questions")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum results")
	return cmd
}

func writeCandidates(w io.Writer, results []model.SearchCandidate, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No matching FAQs")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tQUESTION")
	for _, r := range results {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", r.ID, r.Category, r.Question)
	}
	return tw.Flush()
}

func printResult(w io.Writer, v any, text string) error {
	if outputJSON {
		return json.NewEncoder(w).Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
