package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"

	"github.com/nao1215/lexcrawl/internal/model"
)

// memorySink keeps saved pages in memory.
type memorySink struct {
	mu    sync.Mutex
	pages []*model.Page
	err   error
}

func (s *memorySink) Save(page *model.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.pages = append(s.pages, page)
	return nil
}

func (s *memorySink) urls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	urls := make([]string, len(s.pages))
	for i, p := range s.pages {
		urls[i] = p.URL
	}
	return urls
}

// site is a test web site whose pages link to each other.
type site struct {
	mu     sync.Mutex
	hits   map[string]int
	server *httptest.Server
}

// Page bodies with special behavior. A body starting with redirectPrefix
// redirects to the rest of it, one starting with slowPrefix is served after
// a short pause.
const (
	hang           = ""
	unavailable    = "503"
	redirectPrefix = "redirect:"
	slowPrefix     = "slow:"
)

// newSite serves pages; each key is a path, each value the HTML body.
func newSite(t *testing.T, pages map[string]string) *site {
	t.Helper()

	s := &site{hits: make(map[string]int)}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()

		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		switch body {
		case hang:
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			return
		case unavailable:
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if target, ok := strings.CutPrefix(body, redirectPrefix); ok {
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		if rest, ok := strings.CutPrefix(body, slowPrefix); ok {
			time.Sleep(100 * time.Millisecond)
			body = rest
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, body)
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *site) url(path string) string {
	return s.server.URL + path
}

func (s *site) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func links(paths ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><p>страница</p>")
	for _, p := range paths {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, p)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newTestController(t *testing.T, s *site, sink PageSink, opts ...ControllerOption) *Controller {
	t.Helper()

	scope, err := NewScope(s.url("/"), "")
	if err != nil {
		t.Fatalf("NewScope failed: %v", err)
	}
	fetcher := NewFetcher(WithDelay(0), WithTimeout(200*time.Millisecond), WithRedirectScope(scope))
	opts = append([]ControllerOption{WithSeedRetries(0, time.Millisecond)}, opts...)
	return NewController(NewFrontier(scope), fetcher, NewHTMLParser(), sink, opts...)
}

// TestController tests crawl scenarios end to end against local servers.
func TestController(t *testing.T) {
	t.Parallel()

	t.Run("stops at the page cap and never leaves the site", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, map[string]string{
			"/":  links("/a", "https://other.test/x"),
			"/a": links("/b"),
			"/b": links(),
		})
		sink := &memorySink{}
		ctrl := newTestController(t, s, sink, WithPageCap(2))

		summary, err := ctrl.Run(context.Background(), s.url("/"))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		want := []string{s.url("/"), s.url("/a")}
		if fmt.Sprint(sink.urls()) != fmt.Sprint(want) {
			t.Errorf("saved %v, want %v", sink.urls(), want)
		}
		if summary.PagesFetched != 2 || summary.Reason != model.StopCapReached {
			t.Errorf("unexpected summary: %+v", summary)
		}
		if s.hitCount("/b") != 0 {
			t.Error("page beyond the cap was fetched")
		}
		if ctrl.frontier.Seen("https://other.test/x") {
			t.Error("external URL entered the frontier")
		}
		if ctrl.State() != model.CrawlDone {
			t.Errorf("expected DONE, got %s", ctrl.State())
		}
	})

	t.Run("ends when the frontier is exhausted", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, map[string]string{
			"/":  links("/a", "/b"),
			"/a": links("/"),
			"/b": links("/a"),
		})
		sink := &memorySink{}
		summary, err := newTestController(t, s, sink, WithPageCap(5)).Run(context.Background(), s.url("/"))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		if summary.PagesFetched != 3 || summary.Reason != model.StopFrontierExhausted {
			t.Errorf("unexpected summary: %+v", summary)
		}
		if summary.FrontierRemaining != 0 || summary.URLsSeen != 3 {
			t.Errorf("unexpected frontier stats: %+v", summary)
		}
	})

	t.Run("skips failed fetches without consuming a slot", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, map[string]string{
			"/":  links("/b", "/c", "/missing"),
			"/b": hang,
			"/c": links(),
		})
		sink := &memorySink{}
		summary, err := newTestController(t, s, sink, WithPageCap(10)).Run(context.Background(), s.url("/"))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		want := []string{s.url("/"), s.url("/c")}
		if fmt.Sprint(sink.urls()) != fmt.Sprint(want) {
			t.Errorf("saved %v, want %v", sink.urls(), want)
		}
		for i, p := range sink.pages {
			if p.Seq != i+1 {
				t.Errorf("page %d has seq %d", i, p.Seq)
			}
		}
		if summary.Failures[string(KindTimeout)] != 1 || summary.Failures[string(KindHTTP)] != 1 {
			t.Errorf("unexpected failures: %v", summary.Failures)
		}
		if s.hitCount("/b") != 1 {
			t.Errorf("failed page should not be retried, got %d hits", s.hitCount("/b"))
		}
	})

	t.Run("fetches every URL at most once", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, map[string]string{
			"/":  links("/a", "/a/", "/a#top", "/b", "/"),
			"/a": links("/", "/b", "/b/"),
			"/b": links("/a", "/#x"),
		})
		sink := &memorySink{}
		if _, err := newTestController(t, s, sink, WithPageCap(10)).Run(context.Background(), s.url("/")); err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		for _, path := range []string{"/", "/a", "/b"} {
			if n := s.hitCount(path); n != 1 {
				t.Errorf("%s fetched %d times", path, n)
			}
		}
		if len(sink.pages) != 3 {
			t.Errorf("expected 3 pages, got %d", len(sink.pages))
		}
	})

	t.Run("multiple workers keep sequence numbers dense and respect the cap", func(t *testing.T) {
		t.Parallel()

		pages := map[string]string{}
		var all []string
		for i := range 20 {
			all = append(all, fmt.Sprintf("/p%d", i))
		}
		pages["/"] = links(all...)
		for _, p := range all {
			pages[p] = links(all...)
		}
		s := newSite(t, pages)

		sink := &memorySink{}
		summary, err := newTestController(t, s, sink, WithPageCap(7), WithWorkers(4)).Run(context.Background(), s.url("/"))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		if len(sink.pages) != 7 || summary.PagesFetched != 7 {
			t.Fatalf("expected exactly 7 pages, got %d", len(sink.pages))
		}
		seen := map[string]bool{}
		for i, p := range sink.pages {
			if p.Seq != i+1 {
				t.Errorf("page %d has seq %d", i, p.Seq)
			}
			if seen[p.URL] {
				t.Errorf("URL saved twice: %s", p.URL)
			}
			seen[p.URL] = true
		}

		total := 0
		for _, p := range append(all, "/") {
			total += s.hitCount(p)
		}
		if total != 7 {
			t.Errorf("expected 7 requests in total, got %d", total)
		}
	})

	t.Run("stop signal ends the crawl after in-flight pages", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, map[string]string{
			"/":  links("/a", "/b"),
			"/a": links(),
			"/b": links(),
		})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sink := &memorySink{}
		obs := &recordingObserver{onPage: func(*model.Page) { cancel() }}
		summary, err := newTestController(t, s, sink, WithPageCap(10), WithObserver(obs)).Run(ctx, s.url("/"))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		if summary.Reason != model.StopSignalled || summary.State != model.CrawlDone {
			t.Errorf("unexpected summary: %+v", summary)
		}
		if len(sink.pages) != 1 {
			t.Errorf("expected only the seed to be saved, got %v", sink.urls())
		}
		if s.hitCount("/a")+s.hitCount("/b") != 0 {
			t.Error("no URL should be dequeued after the stop signal")
		}
	})

	t.Run("unreachable seed is fatal after retries", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, map[string]string{"/": unavailable})

		sink := &memorySink{}
		ctrl := newTestController(t, s, sink, WithSeedRetries(2, time.Millisecond))
		summary, err := ctrl.Run(context.Background(), s.url("/"))
		if !errors.Is(err, ErrSeedUnreachable) || !errors.Is(err, ErrHTTPStatus) {
			t.Fatalf("expected ErrSeedUnreachable wrapping ErrHTTPStatus, got %v", err)
		}
		if s.hitCount("/") != 3 {
			t.Errorf("expected 3 attempts, got %d", s.hitCount("/"))
		}
		if summary.PagesFetched != 0 || len(sink.pages) != 0 {
			t.Error("no page should be saved")
		}
	})

	t.Run("seed client errors are not retried", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, map[string]string{})
		ctrl := newTestController(t, s, &memorySink{}, WithSeedRetries(3, time.Millisecond))
		if _, err := ctrl.Run(context.Background(), s.url("/")); !errors.Is(err, ErrSeedUnreachable) {
			t.Fatalf("expected ErrSeedUnreachable, got %v", err)
		}
		if s.hitCount("/") != 1 {
			t.Errorf("expected a single attempt, got %d", s.hitCount("/"))
		}
	})

	t.Run("persistence failure aborts the crawl", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, map[string]string{"/": links("/a"), "/a": links()})
		diskFull := errors.New("disk full")
		summary, err := newTestController(t, s, &memorySink{err: diskFull}).Run(context.Background(), s.url("/"))
		if !errors.Is(err, diskFull) {
			t.Fatalf("expected disk full error, got %v", err)
		}
		if summary.PagesFetched != 0 {
			t.Errorf("expected no counted page, got %d", summary.PagesFetched)
		}
	})

	t.Run("text density filter skips pages without consuming a slot", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, map[string]string{
			"/":        `<html><body>Рецепты на каждый день <a href="/english">en</a> <a href="/ru">ru</a></body></html>`,
			"/english": `<html><body>Recipes for every day</body></html>`,
			"/ru":      `<html><body>Пельмени домашние</body></html>`,
		})
		sink := &memorySink{}
		summary, err := newTestController(t, s, sink, WithMinScriptLetters(10, unicode.Cyrillic)).Run(context.Background(), s.url("/"))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		want := []string{s.url("/"), s.url("/ru")}
		if fmt.Sprint(sink.urls()) != fmt.Sprint(want) {
			t.Errorf("saved %v, want %v", sink.urls(), want)
		}
		if summary.Skipped != 1 {
			t.Errorf("expected 1 skipped page, got %d", summary.Skipped)
		}
	})

	t.Run("parse failure keeps the page without links", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, map[string]string{"/": links("/a"), "/a": links()})
		scope, err := NewScope(s.url("/"), "")
		if err != nil {
			t.Fatalf("NewScope failed: %v", err)
		}
		sink := &memorySink{}
		ctrl := NewController(NewFrontier(scope), NewFetcher(WithDelay(0)), brokenParser{}, sink)

		summary, err := ctrl.Run(context.Background(), s.url("/"))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if summary.PagesFetched != 1 || summary.ParseErrors != 1 {
			t.Errorf("unexpected summary: %+v", summary)
		}
		if sink.pages[0].Text != "" || len(sink.pages[0].Links) != 0 {
			t.Error("unparsed page should have no text and no links")
		}
	})

	t.Run("redirect off the site is a failure and its target is never fetched", func(t *testing.T) {
		t.Parallel()

		offsite := newSite(t, map[string]string{"/x": "<html><body>OFFSITE CONTENT</body></html>"})
		// Same server, different host, so it is outside the scope of 127.0.0.1.
		target := strings.Replace(offsite.url("/x"), "127.0.0.1", "localhost", 1)
		s := newSite(t, map[string]string{
			"/":  links("/b"),
			"/b": redirectPrefix + target,
		})

		sink := &memorySink{}
		summary, err := newTestController(t, s, sink, WithPageCap(2)).Run(context.Background(), s.url("/"))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		if fmt.Sprint(sink.urls()) != fmt.Sprint([]string{s.url("/")}) {
			t.Errorf("saved %v, want only the seed", sink.urls())
		}
		for _, p := range sink.pages {
			if strings.Contains(string(p.Content), "OFFSITE") {
				t.Errorf("off-site content stored as %s", p.URL)
			}
		}
		if summary.Failures[string(KindOutOfScope)] != 1 {
			t.Errorf("expected 1 out_of_scope failure, got %v", summary.Failures)
		}
		if offsite.hitCount("/x") != 0 {
			t.Error("off-site redirect target was requested")
		}
	})

	t.Run("redirected page is stored under its final URL", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, map[string]string{
			"/":         links("/old"),
			"/old":      redirectPrefix + "/dir/page",
			"/dir/page": links("next"),
			"/dir/next": links(),
		})
		sink := &memorySink{}
		if _, err := newTestController(t, s, sink, WithPageCap(10)).Run(context.Background(), s.url("/")); err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		want := []string{s.url("/"), s.url("/dir/page"), s.url("/dir/next")}
		if fmt.Sprint(sink.urls()) != fmt.Sprint(want) {
			t.Errorf("saved %v, want %v", sink.urls(), want)
		}
	})

	t.Run("redirect to an already visited URL does not store the page twice", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, map[string]string{
			"/":    links("/old", "/new"),
			"/old": redirectPrefix + "/new",
			"/new": links(),
		})
		sink := &memorySink{}
		summary, err := newTestController(t, s, sink, WithPageCap(10)).Run(context.Background(), s.url("/"))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		want := []string{s.url("/"), s.url("/new")}
		if fmt.Sprint(sink.urls()) != fmt.Sprint(want) {
			t.Errorf("saved %v, want %v", sink.urls(), want)
		}
		if summary.Redirected != 1 {
			t.Errorf("expected 1 dropped redirect, got %d", summary.Redirected)
		}
	})

	t.Run("final URL outside the scope is rejected without a redirect policy", func(t *testing.T) {
		t.Parallel()

		scope, err := NewScope("https://example.ru/", "")
		if err != nil {
			t.Fatalf("NewScope failed: %v", err)
		}
		sink := &memorySink{}
		fetcher := redirectedFetcher{finalURL: "https://elsewhere.test/landing"}
		ctrl := NewController(NewFrontier(scope), fetcher, NewHTMLParser(), sink, WithSeedRetries(0, time.Millisecond))

		_, err = ctrl.Run(context.Background(), "https://example.ru/")
		if !errors.Is(err, ErrSeedUnreachable) || !errors.Is(err, ErrOutOfScope) {
			t.Fatalf("expected ErrSeedUnreachable wrapping ErrOutOfScope, got %v", err)
		}
		if len(sink.pages) != 0 {
			t.Errorf("expected no saved page, got %v", sink.urls())
		}
	})

	t.Run("stop signal during the seed fetch keeps the seed", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, map[string]string{
			"/":  slowPrefix + links("/a"),
			"/a": links(),
		})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		time.AfterFunc(20*time.Millisecond, cancel)

		sink := &memorySink{}
		summary, err := newTestController(t, s, sink, WithPageCap(10)).Run(ctx, s.url("/"))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if summary.Reason != model.StopSignalled {
			t.Errorf("expected stop reason %s, got %s", model.StopSignalled, summary.Reason)
		}
		if fmt.Sprint(sink.urls()) != fmt.Sprint([]string{s.url("/")}) {
			t.Errorf("saved %v, want only the seed", sink.urls())
		}
		if s.hitCount("/a") != 0 {
			t.Error("no URL should be dequeued after the stop signal")
		}
	})

	t.Run("truncated pages are counted", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, map[string]string{"/": links() + strings.Repeat(" ", 512)})
		scope, err := NewScope(s.url("/"), "")
		if err != nil {
			t.Fatalf("NewScope failed: %v", err)
		}
		sink := &memorySink{}
		fetcher := NewFetcher(WithDelay(0), WithMaxBodySize(64))
		summary, err := NewController(NewFrontier(scope), fetcher, NewHTMLParser(), sink).Run(context.Background(), s.url("/"))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if summary.PagesFetched != 1 || summary.Truncated != 1 {
			t.Errorf("unexpected summary: %+v", summary)
		}
		if !sink.pages[0].Truncated || len(sink.pages[0].Content) != 64 {
			t.Errorf("expected a 64 byte truncated page, got %d bytes", len(sink.pages[0].Content))
		}
	})

	t.Run("observer sees pages and failures", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, map[string]string{"/": links("/a", "/gone"), "/a": links()})
		obs := &recordingObserver{}
		if _, err := newTestController(t, s, &memorySink{}, WithObserver(obs)).Run(context.Background(), s.url("/")); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if obs.pages != 2 || obs.failures != 1 {
			t.Errorf("observer saw %d pages and %d failures", obs.pages, obs.failures)
		}
	})
}

// recordingObserver counts crawl events.
type recordingObserver struct {
	pages    int
	failures int
	onPage   func(*model.Page)
}

func (o *recordingObserver) OnPage(_ context.Context, page *model.Page) {
	o.pages++
	if o.onPage != nil {
		o.onPage(page)
	}
}

func (o *recordingObserver) OnFailure(_ context.Context, _ *FetchError) {
	o.failures++
}

// brokenParser fails on every document.
type brokenParser struct{}

func (brokenParser) Parse(string, io.Reader) (*ParseResult, error) {
	return nil, ErrParse
}

// redirectedFetcher answers every URL with a page that ended up at finalURL.
type redirectedFetcher struct {
	finalURL string
}

func (f redirectedFetcher) Fetch(context.Context, string) (*model.Page, error) {
	return &model.Page{
		URL:         f.finalURL,
		StatusCode:  http.StatusOK,
		ContentType: "text/html",
		Content:     []byte("<html><body>elsewhere</body></html>"),
	}, nil
}
