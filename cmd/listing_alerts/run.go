package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trent/listing-alerts/internal/config"
	"github.com/trent/listing-alerts/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one full alert cycle",
	Long:  "Runs discovery, freshness filtering, scraping, persistence, and subscriber notification once, then exits.",
	RunE:  runRun,
}

var (
	runConfigPath  string
	runIndexURL    string
	runPages       int
	runWorkers     int
	runMaxAttempts int
	runVerbose     bool
)

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "Path to JSON config file")
	runCmd.Flags().StringVar(&runIndexURL, "index-url", "", "Index page URL pattern with a %d page placeholder")
	runCmd.Flags().IntVar(&runPages, "pages", 0, "Number of index pages to walk")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Concurrent browser sessions")
	runCmd.Flags().IntVar(&runMaxAttempts, "max-attempts", 0, "Attempts per listing before dropping it")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed progress")

	rootCmd.AddCommand(runCmd)
}

// loadConfig resolves the effective configuration: file (if given), then
// environment, then defaults, then explicitly set flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := &config.Config{}
	if runConfigPath != "" {
		loaded, err := config.Load(runConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	merged := cfg.MergeWithDefaults(config.Defaults())

	if cmd.Flags().Changed("index-url") {
		merged.IndexURL = runIndexURL
	}
	if cmd.Flags().Changed("pages") {
		merged.Pages = runPages
	}
	if cmd.Flags().Changed("workers") {
		merged.Workers = runWorkers
	}
	if cmd.Flags().Changed("max-attempts") {
		merged.MaxAttempts = runMaxAttempts
	}
	if runVerbose {
		merged.Verbose = true
	}

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	summary, err := pipeline.Run(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}

func printSummary(s *pipeline.Summary) {
	fmt.Printf("\nRun %s complete:\n", s.RunID)
	fmt.Printf("  discovered: %d, fresh: %d\n", s.Discovered, s.Fresh)
	fmt.Printf("  scraped: %d, dropped: %d, persisted: %d\n", s.Scraped, s.Failed, s.Upserted)
	fmt.Printf("  subscribers: %d, matched: %d, campaigns: %d, emails: %d\n",
		s.Subscribers, s.MatchedSubscribers, s.GroupsCreated, s.EmailsSent)
}
