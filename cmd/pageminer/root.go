package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for PageMiner.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pageminer",
		Short: "Bounded breadth-first website crawler",
		Long: `PageMiner crawls a website breadth-first from a seed URL and collects
the HTML and visible text of up to --max-pages pages.

Crawls stay on the seed's host by default, wait between requests, and are
recorded in a local run history that the history command can list and compare.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
