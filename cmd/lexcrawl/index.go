package main

import "github.com/spf13/cobra"

// NewIndexCmd creates the index command.
func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build token and lemma lists from saved pages",
		Long: `Index reads the pages saved by a previous crawl in the output directory and
writes tokens.txt and lemmas.txt.

Examples:
  # Index the default output directory
  lexcrawl index

  # Rebuild the lexicon of an earlier crawl with Russian stop words removed
  lexcrawl index -o site-out --stop-words russian`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhases(cmd, args, phaseIndex)
		},
	}

	addOutputFlags(cmd)
	addIndexFlags(cmd)

	return cmd
}
