package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trent/listing-alerts/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored inventory statistics",
	RunE:  runStats,
}

var statsDatabaseURL string

func init() {
	statsCmd.Flags().StringVar(&statsDatabaseURL, "db-url", "", "Database URL")

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if statsDatabaseURL == "" {
		statsDatabaseURL = os.Getenv("DATABASE_URL")
	}
	if statsDatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL not set (set DATABASE_URL environment variable or use --db-url flag)")
	}

	db, err := store.Connect(ctx, statsDatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	stats, err := db.GetStats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Listings stored: %d\n", stats.TotalListings)
	fmt.Printf("Runs recorded:   %d\n", stats.TotalRuns)
	if stats.LastScrapedAt != nil {
		fmt.Printf("Last scrape:     %s\n", stats.LastScrapedAt.Format("2006-01-02 15:04:05 MST"))
	}

	recent, err := db.RecentListings(ctx, 3)
	if err != nil {
		return err
	}
	if len(recent) > 0 {
		fmt.Printf("\nMost recent:\n")
		for _, r := range recent {
			fmt.Printf("  %s (%s) %s\n", r.Title, r.AskingPrice, r.URL)
		}
	}
	return nil
}
