package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/young1lin/voicechat/internal/search"
)

var (
	searchResults  int
	searchProvider string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a web search and print the formatted results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		manager, err := newSearchManager(cfg)
		if err != nil {
			return err
		}

		query := strings.Join(args, " ")
		ctx := context.Background()

		if searchProvider == "" {
			fmt.Fprintln(cmd.OutOrStdout(), search.Format(manager.Search(ctx, query, searchResults)))
			return nil
		}

		results, err := manager.SearchWithProvider(ctx, searchProvider, query, searchResults)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), search.Format(results))
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchResults, "results", "n", 5, "maximum number of results")
	searchCmd.Flags().StringVar(&searchProvider, "provider", "", "search provider (defaults to web_search.provider)")
}
