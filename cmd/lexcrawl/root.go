package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for lexcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lexcrawl",
		Short: "Crawl a website and build its vocabulary",
		Long: `lexcrawl crawls a website breadth-first from a seed URL, saves up to a fixed
number of HTML pages, and builds a lexicon from their text:

- tokens.txt: every distinct word form, one per line
- lemmas.txt: word forms grouped under their dictionary form

Use "lexcrawl run" for both phases, or "lexcrawl crawl" and "lexcrawl index"
to run them separately. Options are read from a .lexcrawl file in the current
or home directory (see "lexcrawl init") and can be overridden by flags.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .lexcrawl in current or home directory)")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewIndexCmd())
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
