package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trent/listing-alerts/internal/pipeline"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run alert cycles on an interval",
	Long:  "Runs an alert cycle immediately and then repeats on the configured interval until interrupted. A failed cycle is logged and retried at the next tick.",
	RunE:  runWatch,
}

var watchIntervalHours int

func init() {
	watchCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "Path to JSON config file")
	watchCmd.Flags().IntVar(&watchIntervalHours, "interval-hours", 0, "Hours between cycles")
	watchCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed progress")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("interval-hours") {
		cfg.IntervalHours = watchIntervalHours
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := cfg.Interval()
	fmt.Printf("Watching: one cycle every %s. Ctrl-C to stop.\n\n", interval)

	for {
		started := time.Now()
		summary, err := pipeline.Run(ctx, cfg)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Printf("Interrupted, exiting.\n")
				return nil
			}
			fmt.Printf("Cycle failed: %v\n", err)
		} else {
			printSummary(summary)
		}
		fmt.Printf("Cycle took %s, next at %s\n\n",
			time.Since(started).Round(time.Second),
			time.Now().Add(interval).Format(time.RFC1123))

		select {
		case <-ctx.Done():
			fmt.Printf("Interrupted, exiting.\n")
			return nil
		case <-time.After(interval):
		}
	}
}
