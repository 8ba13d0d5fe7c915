package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/nao1215/lexcrawl/internal/config"
	"github.com/nao1215/lexcrawl/internal/database"
	lexlog "github.com/nao1215/lexcrawl/internal/log"
	"github.com/nao1215/lexcrawl/internal/model"
	"github.com/nao1215/lexcrawl/internal/pipeline"
	"github.com/nao1215/lexcrawl/internal/report"
	"github.com/spf13/cobra"
)

// phase selects the pipeline steps of a command.
type phase int

const (
	phaseCrawl phase = 1 << iota
	phaseIndex

	phaseAll = phaseCrawl | phaseIndex
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [seed-url]",
		Short: "Crawl a website and build its token and lemma lists",
		Long: `Run crawls a website breadth-first from the seed URL and then indexes the
saved pages.

The crawl stays within the registrable domain of the seed URL, waits between
requests, and stops after --page-cap pages or when no link is left. Pages are
saved as pages/NNN.html with their URLs listed in index.txt. The index phase
then writes tokens.txt and lemmas.txt to the same directory.

Interrupting the run (Ctrl+C) stops the crawl gracefully: pages already
saved are kept and "lexcrawl index" can be run on them later.

Examples:
  # Crawl 100 pages of a site and build its lexicon
  lexcrawl run https://example.ru/

  # Larger crawl with a politer delay and a Markdown report
  lexcrawl run -p 500 -d 2s -r report.md https://example.ru/

  # Keep only Cyrillic words and use a dictionary for lemmas
  lexcrawl run --script cyrillic -a dictionary --dictionary lemmas-ru.txt https://example.ru/`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhases(cmd, args, phaseAll)
		},
	}

	addOutputFlags(cmd)
	addCrawlFlags(cmd)
	addIndexFlags(cmd)

	return cmd
}

// runPhases builds the configuration and executes the selected steps.
func runPhases(cmd *cobra.Command, args []string, phases phase) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := validate(cfg, phases); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, cmd, cfg, phases)
}

// validate checks the options used by the selected phases.
func validate(cfg *config.Config, phases phase) error {
	switch phases {
	case phaseAll:
		return cfg.Validate()
	case phaseCrawl:
		if cfg.OutDir == "" {
			return config.ErrNoOutDir
		}
		return cfg.ValidateCrawl()
	default:
		return cfg.ValidateIndex()
	}
}

// execute runs the pipeline and writes the run summary.
func execute(ctx context.Context, cmd *cobra.Command, cfg *config.Config, phases phase) (err error) {
	if err := os.MkdirAll(cfg.OutDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logFile, err := os.OpenFile(cfg.LogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logger := lexlog.New(cmd.ErrOrStderr(), logFile, cfg.Verbose)
	slog.SetDefault(logger)

	var db *database.CrawlDB
	if cfg.SaveToDB {
		var openErr error
		db, openErr = database.Open(cfg.DBDir, database.DefaultOptions())
		if openErr != nil {
			logger.Warn("crawl database unavailable, continuing without it", "dir", cfg.DBDir, "error", openErr)
			db = nil
		} else {
			logger.Debug("crawl database opened", "path", db.Path())
		}
	}

	defer func() {
		if closeErr := closeAll(db, logFile); closeErr != nil {
			err = multierror.Append(err, closeErr).ErrorOrNil()
		}
	}()

	runReport := model.NewRunReport(cfg.OutDir)
	logger = logger.With("run", runReport.RunID)

	p := pipeline.New(pipeline.WithLogger(logger))
	if phases&phaseCrawl != 0 {
		opts := []pipeline.CrawlStepOption{pipeline.WithCrawlLogger(logger)}
		if db != nil {
			opts = append(opts, pipeline.WithCrawlDB(db))
		}
		p.AddStep(pipeline.NewCrawlStep(cfg, opts...))
	}
	if phases&phaseIndex != 0 {
		opts := []pipeline.IndexStepOption{pipeline.WithIndexLogger(logger)}
		if db != nil {
			opts = append(opts, pipeline.WithIndexDB(db))
		}
		p.AddStep(pipeline.NewIndexStep(cfg, opts...))
	}

	logger.Info("starting run",
		"steps", p.StepNames(),
		"seed", cfg.SeedURL,
		"outDir", cfg.OutDir,
		"saveToDB", db != nil,
	)

	runErr := p.Execute(ctx, runReport)

	if err := writeReport(cmd.OutOrStdout(), cfg, runReport); err != nil {
		logger.Error("failed to write report", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	return runErr
}

// writeReport writes the run summary to cfg.ReportFile, or to out as plain
// text when no report file is configured.
func writeReport(out io.Writer, cfg *config.Config, runReport *model.RunReport) error {
	if cfg.ReportFile == "" {
		_, err := report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose)).Write(runReport)
		return err
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	_, writeErr := report.ForFile(cfg.ReportFile, f, report.WithVersion(getVersion())).Write(runReport)
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		return writeErr
	}

	fmt.Fprintf(out, "Report written to %s\n", cfg.ReportFile)
	return nil
}

// closeAll closes the database and the log file and combines their errors.
func closeAll(db *database.CrawlDB, logFile *os.File) error {
	var result *multierror.Error
	if db != nil {
		if err := db.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close crawl database: %w", err))
		}
	}
	if err := logFile.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close log file: %w", err))
	}
	return result.ErrorOrNil()
}
