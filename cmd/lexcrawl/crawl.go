package main

import "github.com/spf13/cobra"

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url]",
		Short: "Crawl a website and save its pages",
		Long: `Crawl fetches pages breadth-first from the seed URL and saves them to the
output directory without indexing them.

Examples:
  # Save up to 50 pages
  lexcrawl crawl -p 50 https://example.ru/

  # Skip search and tag pages, use two workers
  lexcrawl crawl --ignore "/search*" --ignore "/tag/*" -w 2 https://example.ru/`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhases(cmd, args, phaseCrawl)
		},
	}

	addOutputFlags(cmd)
	addCrawlFlags(cmd)

	return cmd
}
