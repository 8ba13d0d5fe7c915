package database

import (
	"context"
	"log/slog"

	"github.com/nao1215/lexcrawl/internal/crawler"
	"github.com/nao1215/lexcrawl/internal/model"
)

// Recorder mirrors crawl events of one run into the database.
// It implements crawler.Observer. Database errors are logged and counted
// but never stop the crawl.
type Recorder struct {
	db     *CrawlDB
	runID  string
	logger *slog.Logger
	errors int

	// duplicates counts pages whose content was already recorded,
	// by this run or an earlier one.
	duplicates int
}

// NewRecorder creates a Recorder for runID.
func NewRecorder(db *CrawlDB, runID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{db: db, runID: runID, logger: logger}
}

// OnPage records a stored page.
func (r *Recorder) OnPage(ctx context.Context, page *model.Page) {
	if page.Hash != "" {
		seen, err := r.db.HasPageHash(ctx, page.Hash)
		if err == nil && seen {
			r.duplicates++
			r.logger.Debug("page content recorded before", "seq", page.Seq, "url", page.URL)
		}
	}
	if err := r.db.InsertPage(ctx, r.runID, page); err != nil {
		r.errors++
		r.logger.Warn("failed to record page", "seq", page.Seq, "url", page.URL, "error", err)
	}
}

// OnFailure records a failed fetch.
func (r *Recorder) OnFailure(ctx context.Context, fe *crawler.FetchError) {
	rec := FailureRecord{
		URL:        fe.URL,
		Kind:       string(fe.Kind),
		StatusCode: fe.Status,
		Error:      fe.Error(),
	}
	if err := r.db.InsertFailure(ctx, r.runID, rec); err != nil {
		r.errors++
		r.logger.Warn("failed to record failure", "url", fe.URL, "error", err)
	}
}

// Errors returns the number of events that could not be recorded.
func (r *Recorder) Errors() int {
	return r.errors
}

// Duplicates returns the number of recorded pages whose content had been
// recorded before.
func (r *Recorder) Duplicates() int {
	return r.duplicates
}

var _ crawler.Observer = (*Recorder)(nil)
