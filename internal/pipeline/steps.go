package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"

	"github.com/nao1215/lexcrawl/internal/config"
	"github.com/nao1215/lexcrawl/internal/crawler"
	"github.com/nao1215/lexcrawl/internal/database"
	"github.com/nao1215/lexcrawl/internal/lexicon"
	"github.com/nao1215/lexcrawl/internal/model"
	"github.com/nao1215/lexcrawl/internal/store"
)

// CrawlStep crawls the site of cfg.SeedURL into the page store under
// cfg.OutDir and records the crawl summary in the report.
type CrawlStep struct {
	// cfg holds the crawl options. It must have passed ValidateCrawl.
	cfg *config.Config

	// client overrides the HTTP client of the fetcher when set.
	client *http.Client

	// db mirrors the run when set.
	db *database.CrawlDB

	// logger for structured logging.
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlHTTPClient sets the HTTP client used for fetching.
func WithCrawlHTTPClient(client *http.Client) CrawlStepOption {
	return func(s *CrawlStep) {
		s.client = client
	}
}

// WithCrawlDB records pages and failures in db.
func WithCrawlDB(db *database.CrawlDB) CrawlStepOption {
	return func(s *CrawlStep) {
		s.db = db
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a new crawling step.
func NewCrawlStep(cfg *config.Config, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		cfg:    cfg,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step.
func (s *CrawlStep) Do(ctx context.Context, report *model.RunReport) error {
	scope, err := NewScope(s.cfg)
	if err != nil {
		return err
	}

	pages, err := store.Create(s.cfg.PagesDir(), s.cfg.IndexFile(),
		store.WithSeqWidth(store.SeqWidth(s.cfg.PageCap)))
	if err != nil {
		return err
	}

	ctrlOpts := []crawler.ControllerOption{
		crawler.WithPageCap(s.cfg.PageCap),
		crawler.WithWorkers(s.cfg.Workers),
		crawler.WithSeedRetries(s.cfg.SeedRetries, config.SeedRetryBackoff),
		crawler.WithMinScriptLetters(s.cfg.MinScriptLetters, ScriptTable(s.cfg.Script)),
		crawler.WithLogger(s.logger),
	}

	var recorder *database.Recorder
	if s.db != nil {
		if err := ensureRun(ctx, s.db, report, s.cfg.SeedURL, scope.Domain()); err != nil {
			s.logger.Warn("crawl database unavailable, run not recorded", "error", err)
		} else {
			recorder = database.NewRecorder(s.db, report.RunID, s.logger)
			ctrlOpts = append(ctrlOpts, crawler.WithObserver(recorder))
		}
	}

	ctrl := crawler.NewController(
		crawler.NewFrontier(scope),
		NewFetcher(s.cfg, s.client, scope),
		crawler.NewHTMLParser(),
		pages,
		ctrlOpts...,
	)

	summary, runErr := ctrl.Run(ctx, s.cfg.SeedURL)
	if closeErr := pages.Close(); closeErr != nil {
		closeErr = fmt.Errorf("close page store: %w", closeErr)
		if runErr == nil {
			runErr = closeErr
		} else {
			runErr = multierror.Append(runErr, closeErr)
		}
	}

	report.Crawl = summary
	if summary.Reason == model.StopSignalled {
		report.Stopped = true
	}

	if recorder != nil {
		// The stop signal must not prevent recording how the crawl ended.
		if err := s.db.FinishCrawl(context.WithoutCancel(ctx), report.RunID, summary); err != nil {
			s.logger.Warn("failed to record crawl summary", "error", err)
		}
		if n := recorder.Errors(); n > 0 {
			s.logger.Warn("some crawl events were not recorded", "count", n)
		}
		if n := recorder.Duplicates(); n > 0 {
			s.logger.Info("pages with previously recorded content", "count", n)
		}
	}

	s.logger.Info("crawl completed",
		"pages", summary.PagesFetched,
		"size", humanize.Bytes(uint64(max(summary.BytesFetched, 0))),
		"reason", string(summary.Reason),
	)

	return runErr
}

// IndexStep tokenizes and lemmatizes the stored pages under cfg.OutDir and
// writes the token and lemma lists.
type IndexStep struct {
	// cfg holds the index options. It must have passed ValidateIndex.
	cfg *config.Config

	// db receives the lemma groups when set.
	db *database.CrawlDB

	// logger for structured logging.
	logger *slog.Logger
}

// IndexStepOption configures an IndexStep.
type IndexStepOption func(*IndexStep)

// WithIndexDB stores the lexicon in db.
func WithIndexDB(db *database.CrawlDB) IndexStepOption {
	return func(s *IndexStep) {
		s.db = db
	}
}

// WithIndexLogger sets a custom logger for the index step.
func WithIndexLogger(logger *slog.Logger) IndexStepOption {
	return func(s *IndexStep) {
		s.logger = logger
	}
}

// NewIndexStep creates a new indexing step.
func NewIndexStep(cfg *config.Config, opts ...IndexStepOption) *IndexStep {
	s := &IndexStep{
		cfg:    cfg,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *IndexStep) Name() string {
	return "index"
}

// Do executes the index step.
func (s *IndexStep) Do(ctx context.Context, report *model.RunReport) error {
	tokenizer, err := NewTokenizer(s.cfg)
	if err != nil {
		return err
	}
	analyzer, err := NewAnalyzer(s.cfg)
	if err != nil {
		return err
	}

	ixOpts := []lexicon.IndexerOption{
		lexicon.WithTokenizer(tokenizer),
		lexicon.WithAnalyzer(analyzer),
		lexicon.WithIndexWorkers(s.cfg.IndexWorkers),
		lexicon.WithIndexerLogger(s.logger),
	}
	if s.cfg.PerPage {
		ixOpts = append(ixOpts, lexicon.WithPerPageOutput(s.cfg.OutDir))
	}

	ix := lexicon.NewIndexer(s.cfg.PagesDir(), s.cfg.IndexFile(), ixOpts...)
	summary, err := ix.Run(ctx, s.cfg.TokensFile(), s.cfg.LemmasFile())
	if err != nil {
		if ctx.Err() != nil {
			report.Stopped = true
			s.logger.Warn("indexing stopped, outputs not written", "error", err)
			return nil
		}
		return err
	}
	report.Index = summary

	if s.db != nil {
		if err := s.record(context.WithoutCancel(ctx), report); err != nil {
			s.logger.Warn("failed to record lexicon", "error", err)
		}
	}

	return nil
}

// record stores the written lemma list in the database.
func (s *IndexStep) record(ctx context.Context, report *model.RunReport) error {
	if err := ensureRun(ctx, s.db, report, s.cfg.SeedURL, s.cfg.ScopeDomain); err != nil {
		return err
	}

	f, err := os.Open(s.cfg.LemmasFile())
	if err != nil {
		return err
	}
	defer f.Close()

	groups, err := lexicon.ParseLemmas(f)
	if err != nil {
		return err
	}
	return s.db.SaveLexicon(ctx, report.RunID, groups)
}

// ensureRun inserts the run into db unless an earlier step already did.
func ensureRun(ctx context.Context, db *database.CrawlDB, report *model.RunReport, seed, scopeDomain string) error {
	run, err := db.GetRun(ctx, report.RunID)
	if err != nil {
		return err
	}
	if run != nil {
		return nil
	}
	return db.StartRun(ctx, report.RunID, seed, scopeDomain, report.OutDir, report.StartedAt)
}
