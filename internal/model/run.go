package model

import (
	"time"

	"github.com/google/uuid"
)

// CrawlState is the state of the crawl controller state machine.
type CrawlState string

const (
	// CrawlRunning means the controller is still dequeuing and fetching.
	CrawlRunning CrawlState = "RUNNING"
	// CrawlDone means the controller has stopped and will not dequeue again.
	CrawlDone CrawlState = "DONE"
)

// StopReason explains why a crawl reached the DONE state.
type StopReason string

const (
	// StopCapReached means pagesFetched reached the page cap.
	StopCapReached StopReason = "cap_reached"
	// StopFrontierExhausted means no in-scope URL was left to fetch.
	StopFrontierExhausted StopReason = "frontier_exhausted"
	// StopSignalled means an external stop signal ended the crawl.
	StopSignalled StopReason = "stopped"
)

// CrawlSummary contains statistics about one crawl.
type CrawlSummary struct {
	// Seed is the URL the crawl started from.
	Seed string `json:"seed"`

	// ScopeDomain is the registrable domain links were restricted to.
	ScopeDomain string `json:"scope_domain"`

	// PageCap is the configured hard upper bound on saved pages.
	PageCap int `json:"page_cap"`

	// PagesFetched is the number of pages persisted.
	PagesFetched int `json:"pages_fetched"`

	// BytesFetched is the total size of persisted page content.
	BytesFetched int64 `json:"bytes_fetched"`

	// Failures counts fetch failures by kind (timeout, connection, http,
	// non_html, out_of_scope).
	Failures map[string]int `json:"failures"`

	// Skipped counts pages fetched but rejected by the text density filter.
	Skipped int `json:"skipped"`

	// Redirected counts redirected pages dropped because their final URL
	// was already visited.
	Redirected int `json:"redirected,omitempty"`

	// Truncated counts persisted pages whose body was cut at the size limit.
	Truncated int `json:"truncated,omitempty"`

	// ParseErrors counts pages persisted whose HTML could not be parsed.
	ParseErrors int `json:"parse_errors"`

	// URLsSeen is the size of the visited set when the crawl ended.
	URLsSeen int `json:"urls_seen"`

	// FrontierRemaining is the number of URLs still queued when the crawl ended.
	FrontierRemaining int `json:"frontier_remaining"`

	// State is the final controller state, always CrawlDone for a returned summary.
	State CrawlState `json:"state"`

	// Reason explains why the crawl ended.
	Reason StopReason `json:"reason"`

	// Elapsed is the wall-clock duration of the crawl.
	Elapsed time.Duration `json:"elapsed"`
}

// TotalFailures returns the sum of all fetch failures.
func (s *CrawlSummary) TotalFailures() int {
	total := 0
	for _, n := range s.Failures {
		total += n
	}
	return total
}

// IndexSummary contains statistics about one lexical indexing pass.
type IndexSummary struct {
	// Pages is the number of stored pages processed.
	Pages int `json:"pages"`

	// Tokens is the size of the global Token Set.
	Tokens int `json:"tokens"`

	// Lemmas is the number of lemma groups.
	Lemmas int `json:"lemmas"`

	// SelfLemmas is the number of tokens the analyzer could not classify
	// and that were therefore kept as their own lemma.
	SelfLemmas int `json:"self_lemmas"`

	// TokensFile is the path of the written token list.
	TokensFile string `json:"tokens_file"`

	// LemmasFile is the path of the written lemma list.
	LemmasFile string `json:"lemmas_file"`

	// Elapsed is the wall-clock duration of the indexing pass.
	Elapsed time.Duration `json:"elapsed"`
}

// RunReport is the result of one lexcrawl invocation.
// Pipeline steps fill in the phase summaries they are responsible for.
type RunReport struct {
	// RunID uniquely identifies the run in logs and in the crawl database.
	RunID string `json:"run_id"`

	// OutDir is the directory holding the page store and index outputs.
	OutDir string `json:"out_dir"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Crawl is set once the crawl step finished.
	Crawl *CrawlSummary `json:"crawl,omitempty"`

	// Index is set once the index step finished.
	Index *IndexSummary `json:"index,omitempty"`

	// PerformedSteps lists the names of the steps that were executed.
	PerformedSteps []string `json:"performed_steps"`

	// Stopped is true if the run was interrupted by a stop signal.
	Stopped bool `json:"stopped"`

	// Error holds the terminal error of the run, if any.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// NewRunReport creates a RunReport with a fresh run ID.
func NewRunReport(outDir string) *RunReport {
	return &RunReport{
		RunID:          uuid.NewString(),
		OutDir:         outDir,
		StartedAt:      time.Now(),
		PerformedSteps: make([]string, 0),
	}
}
