package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/lexcrawl/internal/model"
)

// ErrSeedUnreachable is returned when the seed URL could not be fetched
// after all retries. No page has been stored when it is returned.
var ErrSeedUnreachable = errors.New("seed URL is unreachable")

// PageSink persists pages. Save receives pages with dense, increasing
// sequence numbers; any error it returns aborts the crawl.
type PageSink interface {
	Save(page *model.Page) error
}

// Observer is notified of crawl events after the page sink accepted them.
// Observer methods are called from a single goroutine.
type Observer interface {
	// OnPage is called for every persisted page.
	OnPage(ctx context.Context, page *model.Page)

	// OnFailure is called for every failed fetch.
	OnFailure(ctx context.Context, err *FetchError)
}

// Controller drives a crawl: it dequeues URLs, fetches and parses them,
// persists the pages and feeds discovered links back into the frontier.
//
// The controller goroutine is the only one assigning sequence numbers,
// calling the sink and touching the counters, so pages are numbered in
// fetch-completion order without gaps. At most workers fetches run at once
// and never more than the remaining page budget.
type Controller struct {
	frontier *Frontier
	fetcher  PageFetcher
	parser   LinkParser
	sink     PageSink
	observer Observer
	logger   *slog.Logger

	pageCap          int
	workers          int
	seedRetries      int
	seedBackoff      time.Duration
	minScriptLetters int
	script           *unicode.RangeTable

	mu    sync.Mutex
	state model.CrawlState
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithPageCap sets the maximum number of pages persisted.
func WithPageCap(n int) ControllerOption {
	return func(c *Controller) {
		c.pageCap = n
	}
}

// WithWorkers sets the number of concurrent fetches.
func WithWorkers(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithSeedRetries sets how many times the seed fetch is retried, waiting
// attempt*backoff before each retry.
func WithSeedRetries(retries int, backoff time.Duration) ControllerOption {
	return func(c *Controller) {
		c.seedRetries = retries
		c.seedBackoff = backoff
	}
}

// WithMinScriptLetters skips pages whose text has fewer than n letters of
// script. A nil script counts letters of any script. Zero disables the check.
func WithMinScriptLetters(n int, script *unicode.RangeTable) ControllerOption {
	return func(c *Controller) {
		c.minScriptLetters = n
		c.script = script
	}
}

// WithObserver registers an observer of persisted pages and failures.
func WithObserver(o Observer) ControllerOption {
	return func(c *Controller) {
		c.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates a Controller. The default page cap is 100 with a
// single worker and two seed retries.
func NewController(frontier *Frontier, fetcher PageFetcher, parser LinkParser, sink PageSink, opts ...ControllerOption) *Controller {
	c := &Controller{
		frontier:    frontier,
		fetcher:     fetcher,
		parser:      parser,
		sink:        sink,
		logger:      slog.Default(),
		pageCap:     100,
		workers:     1,
		seedRetries: 2,
		seedBackoff: time.Second,
		state:       model.CrawlRunning,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current controller state.
func (c *Controller) State() model.CrawlState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s model.CrawlState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// fetchResult is the outcome of fetching and parsing one URL.
// url is the dequeued URL; page.URL is the normalized final URL, which
// differs from url after a redirect.
type fetchResult struct {
	url        string
	page       *model.Page
	fetchErr   *FetchError
	err        error
	parseErr   error
	scriptRune int
}

// crawlRun holds the counters of one Run call. Only the controller goroutine touches it.
type crawlRun struct {
	summary *model.CrawlSummary
	stopped bool
}

// Run crawls from seedURL until the page cap is reached, the frontier is
// exhausted or ctx is cancelled.
//
// Cancelling ctx stops dequeuing; fetches already in flight complete and
// their pages are persisted normally. Run returns a summary in every case.
// The error is non-nil only for an unreachable seed, an invalid seed or a
// persistence failure.
func (c *Controller) Run(ctx context.Context, seedURL string) (*model.CrawlSummary, error) {
	start := time.Now()
	run := &crawlRun{
		summary: &model.CrawlSummary{
			Seed:        seedURL,
			ScopeDomain: c.frontier.Scope().Domain(),
			PageCap:     c.pageCap,
			Failures:    make(map[string]int),
		},
	}
	c.setState(model.CrawlRunning)

	finish := func(err error) (*model.CrawlSummary, error) {
		s := run.summary
		s.URLsSeen = c.frontier.Visited()
		s.FrontierRemaining = c.frontier.Len()
		s.State = model.CrawlDone
		switch {
		case s.PagesFetched >= c.pageCap:
			s.Reason = model.StopCapReached
		case run.stopped:
			s.Reason = model.StopSignalled
		default:
			s.Reason = model.StopFrontierExhausted
		}
		s.Elapsed = time.Since(start)
		c.setState(model.CrawlDone)

		c.logger.Info("crawl finished",
			"pages", s.PagesFetched,
			"failures", s.TotalFailures(),
			"skipped", s.Skipped,
			"reason", string(s.Reason),
			"elapsed", s.Elapsed.String())
		return s, err
	}

	seed, err := c.frontier.Seed(seedURL)
	if err != nil {
		return finish(err)
	}
	run.summary.Seed = seed
	c.logger.Info("crawl started", "seed", seed, "scope", c.frontier.Scope().Domain(), "cap", c.pageCap)

	if c.pageCap <= 0 {
		return finish(nil)
	}

	// The seed is fetched alone so that an unreachable site fails fast.
	if _, ok := c.frontier.Dequeue(); !ok {
		return finish(nil)
	}
	res, err := c.fetchSeed(ctx, seed)
	if err != nil {
		if ctx.Err() != nil {
			run.stopped = true
			return finish(nil)
		}
		return finish(err)
	}
	if err := c.handle(ctx, run, res); err != nil {
		return finish(err)
	}

	return finish(c.loop(ctx, run))
}

// loop dispatches fetches to the worker pool until nothing is left to do.
func (c *Controller) loop(ctx context.Context, run *crawlRun) error {
	// In-flight fetches outlive a stop signal.
	fetchCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(c.workers)
	results := make(chan fetchResult, c.workers)
	done := ctx.Done()
	inFlight := 0
	var fatal error

	for {
		if !run.stopped && ctx.Err() != nil {
			run.stopped = true
			done = nil
		}
		for fatal == nil && !run.stopped && inFlight < c.workers && run.summary.PagesFetched+inFlight < c.pageCap {
			next, ok := c.frontier.Dequeue()
			if !ok {
				break
			}
			inFlight++
			g.Go(func() error {
				results <- c.fetchAndParse(fetchCtx, next)
				return nil
			})
		}

		if inFlight == 0 {
			break
		}

		select {
		case <-done:
			run.stopped = true
			done = nil
			c.logger.Info("stop requested, finishing in-flight fetches", "in_flight", inFlight)
		case res := <-results:
			inFlight--
			if fatal != nil {
				continue
			}
			if err := c.handle(fetchCtx, run, res); err != nil {
				fatal = err
			}
		}
	}

	if err := g.Wait(); err != nil && fatal == nil {
		fatal = err
	}
	return fatal
}

// fetchSeed fetches the seed, retrying retryable failures with linear backoff.
func (c *Controller) fetchSeed(ctx context.Context, seed string) (fetchResult, error) {
	var last error
	for attempt := 0; attempt <= c.seedRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * c.seedBackoff
			c.logger.Warn("retrying seed", "url", seed, "attempt", attempt, "wait", wait.String(), "error", last)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fetchResult{}, ctx.Err()
			case <-timer.C:
			}
		}

		// Like loop, the request itself outlives a stop signal.
		res := c.fetchAndParse(context.WithoutCancel(ctx), seed)
		if res.err != nil {
			return fetchResult{}, res.err
		}
		if res.fetchErr == nil {
			return res, nil
		}
		last = res.fetchErr
		if !res.fetchErr.Retryable() {
			break
		}
	}
	return fetchResult{}, fmt.Errorf("%w: %w", ErrSeedUnreachable, last)
}

// fetchAndParse runs on a worker goroutine.
func (c *Controller) fetchAndParse(ctx context.Context, pageURL string) fetchResult {
	res := fetchResult{url: pageURL}

	page, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			res.fetchErr = fe
		} else if ctx.Err() != nil {
			res.err = err
		} else {
			res.fetchErr = &FetchError{Kind: KindConnection, URL: pageURL, Err: err}
		}
		return res
	}

	finalURL := pageURL
	if page.URL != "" && page.URL != pageURL {
		normalized, err := NormalizeURL(page.URL)
		if err != nil || !c.frontier.Scope().Allows(normalized) {
			res.fetchErr = &FetchError{Kind: KindOutOfScope, URL: pageURL, Err: fmt.Errorf("%w: %s", ErrOutOfScope, page.URL)}
			return res
		}
		finalURL = normalized
	}
	page.URL = finalURL

	parsed, err := c.parser.Parse(finalURL, bytes.NewReader(page.Content))
	if err != nil {
		res.parseErr = err
	} else {
		page.Text = parsed.Text
		page.Links = parsed.Links
	}
	if c.minScriptLetters > 0 {
		res.scriptRune = countLetters(page.Text, c.script)
	}
	res.page = page
	return res
}

// handle records one fetch result. It runs on the controller goroutine only.
func (c *Controller) handle(ctx context.Context, run *crawlRun, res fetchResult) error {
	s := run.summary

	if res.err != nil {
		// Only possible when the caller's context ended before the request.
		c.logger.Debug("fetch abandoned", "url", res.url, "error", res.err)
		return nil
	}

	if res.fetchErr != nil {
		s.Failures[string(res.fetchErr.Kind)]++
		c.logger.Warn("fetch failed", "url", res.url, "kind", string(res.fetchErr.Kind), "error", res.fetchErr)
		if c.observer != nil {
			c.observer.OnFailure(ctx, res.fetchErr)
		}
		return nil
	}

	page := res.page
	if c.minScriptLetters > 0 && res.scriptRune < c.minScriptLetters {
		s.Skipped++
		c.logger.Info("page skipped, not enough text", "url", res.url, "letters", res.scriptRune, "min", c.minScriptLetters)
		return nil
	}

	if s.PagesFetched >= c.pageCap {
		return nil
	}

	if page.URL != res.url && !c.frontier.Claim(page.URL) {
		s.Redirected++
		c.logger.Info("redirect target already visited, page dropped", "url", res.url, "target", page.URL)
		return nil
	}

	page.Seq = s.PagesFetched + 1
	if err := c.sink.Save(page); err != nil {
		return fmt.Errorf("save page %d (%s): %w", page.Seq, page.URL, err)
	}
	s.PagesFetched++
	s.BytesFetched += int64(len(page.Content))
	if page.Truncated {
		s.Truncated++
		c.logger.Warn("page body cut at the size limit", "seq", page.Seq, "url", page.URL, "bytes", len(page.Content))
	}

	if res.parseErr != nil {
		s.ParseErrors++
		c.logger.Warn("page saved without links", "seq", page.Seq, "url", page.URL, "error", res.parseErr)
	} else {
		c.logger.Info("page saved", "seq", page.Seq, "url", page.URL, "bytes", len(page.Content))
	}

	if c.observer != nil {
		c.observer.OnPage(ctx, page)
	}

	if s.PagesFetched < c.pageCap {
		added := c.frontier.Enqueue(page.Links)
		c.logger.Debug("links enqueued", "url", page.URL, "found", len(page.Links), "added", len(added), "queued", c.frontier.Len())
	}
	return nil
}

// countLetters counts the letters of text that belong to script.
// A nil script counts every letter.
func countLetters(text string, script *unicode.RangeTable) int {
	n := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		if script == nil || unicode.Is(script, r) {
			n++
		}
	}
	return n
}
