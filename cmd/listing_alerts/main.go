// Package main provides the entry point for the listing alerts pipeline CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "listing_alerts",
	Short: "Business listing scraper and subscriber alerts",
	Long:  "Listing Alerts discovers new business-for-sale listings, scrapes and enriches them through proxied browser sessions, and emails matching subscribers grouped campaigns.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
