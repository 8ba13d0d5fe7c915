package main

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/lexcrawl/internal/config"
	"github.com/nao1215/lexcrawl/internal/database"
	"github.com/nao1215/lexcrawl/internal/lexicon"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
// It reads past runs back from the crawl database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show runs recorded in the crawl database",
		Long: `History lists the runs recorded in the crawl database, newest first.

With a run ID it shows the details of that run: its crawl statistics and
failed fetches by kind. --pages and --failures add every saved page and
every failed URL. --lemmas prints the run's lemma list in the lemmas.txt
format, and --lookup prints the lemma a word form was grouped under.

Examples:
  # List all runs
  lexcrawl history

  # Show one run with its pages
  lexcrawl history --pages 3f2a9c1e-...

  # Export the lemma list of a run
  lexcrawl history --lemmas 3f2a9c1e-... > lemmas.txt

  # Find the lemma of a word form
  lexcrawl history --lookup котом 3f2a9c1e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("db-dir", "",
		"Crawl database directory (default: XDG data directory)")
	cmd.Flags().Bool("pages", false,
		"List the pages saved by the run")
	cmd.Flags().Bool("failures", false,
		"List the failed fetches of the run")
	cmd.Flags().Bool("lemmas", false,
		"Print the lemma list of the run")
	cmd.Flags().String("lookup", "",
		"Print the lemma of this word form in the run")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	lookup, err := cmd.Flags().GetString("lookup")
	if err != nil {
		return err
	}
	var opts runDetails
	if opts.pages, err = cmd.Flags().GetBool("pages"); err != nil {
		return err
	}
	if opts.failures, err = cmd.Flags().GetBool("failures"); err != nil {
		return err
	}
	lemmas, err := cmd.Flags().GetBool("lemmas")
	if err != nil {
		return err
	}
	if len(args) == 0 && (lookup != "" || lemmas || opts.pages || opts.failures) {
		return errors.New("a run ID is required for --pages, --failures, --lemmas and --lookup (run 'lexcrawl history' to list runs)")
	}

	// An existing database is required; history never creates one.
	db, err := database.Open(dbDir, database.Options{})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		return listRuns(cmd, db, out)
	}
	if lookup != "" {
		return lookupLemma(cmd, db, out, args[0], lookup)
	}
	if lemmas {
		return printLemmas(cmd, db, out, args[0])
	}
	return showRun(cmd, db, out, args[0], opts)
}

// runDetails selects the optional sections of showRun.
type runDetails struct {
	pages    bool
	failures bool
}

// listRuns prints every recorded run, newest first.
func listRuns(cmd *cobra.Command, db *database.CrawlDB, out io.Writer) error {
	runs, err := db.ListRuns(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found in the database.")
		fmt.Fprintln(out, "\nUse 'lexcrawl run <seed-url>' to start one.")
		return nil
	}

	fmt.Fprintf(out, "Runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-8s  %6s  %8s  %s\n", "ID", "Started", "State", "Pages", "Lemmas", "Seed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))
	for _, run := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %-8s  %6d  %8d  %s\n",
			run.RunID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.State,
			run.PagesFetched,
			run.Lemmas,
			run.Seed,
		)
	}
	fmt.Fprintln(out, "\nUse 'lexcrawl history <run-id>' to see the details of a run.")

	return nil
}

// showRun prints the details of one run.
func showRun(cmd *cobra.Command, db *database.CrawlDB, out io.Writer, runID string, opts runDetails) error {
	ctx := cmd.Context()

	run, err := db.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("%w: %s", database.ErrRunNotFound, runID)
	}

	failures, err := db.CountFailures(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to count failures: %w", err)
	}

	fmt.Fprintf(out, "Run %s\n\n", run.RunID)
	fmt.Fprintf(out, "  Seed:        %s\n", run.Seed)
	fmt.Fprintf(out, "  Scope:       %s\n", run.ScopeDomain)
	fmt.Fprintf(out, "  Output:      %s\n", run.OutDir)
	fmt.Fprintf(out, "  Started:     %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(out, "  Finished:    %s (took %s)\n",
			run.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(out, "  State:       %s\n", run.State)
	if run.Reason != "" {
		fmt.Fprintf(out, "  Reason:      %s\n", run.Reason)
	}
	fmt.Fprintf(out, "  Pages:       %s (%s)\n", humanize.Comma(int64(run.PagesFetched)), humanize.Bytes(uint64(max(run.BytesFetched, 0))))
	fmt.Fprintf(out, "  Skipped:     %d\n", run.Skipped)
	fmt.Fprintf(out, "  Tokens:      %s\n", humanize.Comma(int64(run.Tokens)))
	fmt.Fprintf(out, "  Lemmas:      %s\n", humanize.Comma(int64(run.Lemmas)))

	if len(failures) > 0 {
		fmt.Fprintln(out, "\n  Failed fetches:")
		for _, kind := range slices.Sorted(maps.Keys(failures)) {
			fmt.Fprintf(out, "    %-12s %d\n", kind, failures[kind])
		}
	}

	if opts.pages {
		pages, err := db.ListPages(ctx, runID)
		if err != nil {
			return fmt.Errorf("failed to list pages: %w", err)
		}
		fmt.Fprintf(out, "\n  Pages (%d):\n", len(pages))
		for _, page := range pages {
			fmt.Fprintf(out, "    %4d  %3d  %8s  %s\n", page.Seq, page.StatusCode, humanize.Bytes(uint64(max(page.Size, 0))), page.URL)
		}
	}

	if opts.failures {
		records, err := db.ListFailures(ctx, runID)
		if err != nil {
			return fmt.Errorf("failed to list failures: %w", err)
		}
		fmt.Fprintf(out, "\n  Failures (%d):\n", len(records))
		for _, f := range records {
			fmt.Fprintf(out, "    %-10s  %s  %s\n", f.Kind, f.URL, f.Error)
		}
	}

	return nil
}

// printLemmas writes the lemma groups of a run in the lemmas.txt format.
func printLemmas(cmd *cobra.Command, db *database.CrawlDB, out io.Writer, runID string) error {
	groups, err := db.GetLexicon(cmd.Context(), runID)
	if err != nil {
		return fmt.Errorf("failed to get lexicon: %w", err)
	}
	if len(groups) == 0 {
		return fmt.Errorf("no lexicon recorded for run %s", runID)
	}
	return lexicon.WriteLemmas(out, groups)
}

// lookupLemma prints the lemma a word form belongs to in a run.
func lookupLemma(cmd *cobra.Command, db *database.CrawlDB, out io.Writer, runID, word string) error {
	form, ok := lexicon.NewTokenizer(lexicon.WithMinLength(1)).Normalize(word)
	if !ok {
		return fmt.Errorf("not a word: %q", word)
	}

	lemma, err := db.LookupLemma(cmd.Context(), runID, form)
	if err != nil {
		return err
	}
	if lemma == "" {
		fmt.Fprintf(out, "%s: not found in run %s\n", form, runID)
		return nil
	}
	fmt.Fprintf(out, "%s -> %s\n", form, lemma)
	return nil
}
