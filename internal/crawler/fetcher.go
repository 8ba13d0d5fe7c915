package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/lexcrawl/internal/model"
)

// FetchKind classifies a failed fetch.
type FetchKind string

const (
	// KindTimeout means the request or body read exceeded the request timeout.
	KindTimeout FetchKind = "timeout"
	// KindConnection means the server could not be reached or the transfer broke.
	KindConnection FetchKind = "connection"
	// KindHTTP means the server answered with a non-2xx status.
	KindHTTP FetchKind = "http"
	// KindNonHTML means the response was not an HTML document.
	KindNonHTML FetchKind = "non_html"
	// KindOutOfScope means the server redirected outside the crawl scope.
	KindOutOfScope FetchKind = "out_of_scope"
)

// maxRedirects is the number of redirects followed before the last
// response is returned as is.
const maxRedirects = 10

// Sentinel errors matching each FetchKind with errors.Is.
var (
	ErrTimeout    = errors.New("fetch timed out")
	ErrConnection = errors.New("connection failed")
	ErrHTTPStatus = errors.New("unexpected HTTP status")
	ErrNonHTML    = errors.New("response is not HTML")
	ErrOutOfScope = errors.New("redirected out of scope")
)

// sentinel returns the sentinel error of the kind.
func (k FetchKind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindHTTP:
		return ErrHTTPStatus
	case KindNonHTML:
		return ErrNonHTML
	case KindOutOfScope:
		return ErrOutOfScope
	default:
		return ErrConnection
	}
}

// FetchError describes a failed fetch of one URL.
type FetchError struct {
	// Kind classifies the failure.
	Kind FetchKind

	// URL is the URL that was requested.
	URL string

	// Status is the HTTP status code for KindHTTP failures.
	Status int

	// ContentType is the received Content-Type for KindNonHTML failures.
	ContentType string

	// Err is the underlying transport error, if any.
	Err error
}

// Error implements error.
func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("fetch %s: %v: %d", e.URL, ErrHTTPStatus, e.Status)
	case KindNonHTML:
		return fmt.Sprintf("fetch %s: %v: %q", e.URL, ErrNonHTML, e.ContentType)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v: %v", e.URL, e.Kind.sentinel(), e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Kind.sentinel())
}

// Unwrap returns the underlying transport error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of the failure kind.
func (e *FetchError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Retryable reports whether retrying the same URL may succeed.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnection:
		return true
	case KindHTTP:
		return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// PageFetcher retrieves one URL.
type PageFetcher interface {
	// Fetch performs a GET request. On failure the error is a *FetchError
	// unless ctx was cancelled before the request was sent.
	Fetch(ctx context.Context, pageURL string) (*model.Page, error)
}

// Fetcher is the HTTP PageFetcher.
//
// Every request waits on a shared rate limiter so that request starts are at
// least delay apart across all workers, plus an optional random jitter.
// Redirects are followed only while every hop stays inside the scope set
// with WithRedirectScope.
type Fetcher struct {
	client      *http.Client
	scope       *Scope
	limiter     *rate.Limiter
	jitter      time.Duration
	userAgent   string
	maxBodySize int64
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the HTTP client. The client's Timeout is left untouched.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithTimeout sets the per-request timeout, which includes reading the body.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.client.Timeout = d
	}
}

// WithDelay sets the minimum interval between the starts of two requests.
// Zero disables the politeness delay.
func WithDelay(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		f.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithJitter adds a random pause in [0, d) before each request.
func WithJitter(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.jitter = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithRedirectScope rejects redirects whose target scope does not allow.
// Such fetches fail with KindOutOfScope and the target is never requested.
func WithRedirectScope(scope *Scope) FetcherOption {
	return func(f *Fetcher) {
		f.scope = scope
	}
}

// WithMaxBodySize sets the maximum number of body bytes read per response.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxBodySize = size
	}
}

// NewFetcher creates a Fetcher. Without options it has a 15 second timeout,
// a one second delay and reads at most 5 MB per page.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{Timeout: 15 * time.Second},
		limiter:     rate.NewLimiter(rate.Every(time.Second), 1),
		userAgent:   "lexcrawl",
		maxBodySize: 5 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(f)
	}

	// The redirect policy is bound to this fetcher, so a shared client is copied.
	client := *f.client
	next := client.CheckRedirect
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if err := f.checkRedirect(req, via); err != nil {
			return err
		}
		if next != nil {
			return next(req, via)
		}
		return nil
	}
	f.client = &client
	return f
}

// checkRedirect stops redirect chains that are too long or leave the scope.
func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return http.ErrUseLastResponse
	}
	if f.scope == nil {
		return nil
	}
	normalized, err := NormalizeURL(req.URL.String())
	if err != nil || !f.scope.Allows(normalized) {
		return fmt.Errorf("%w: %s", ErrOutOfScope, req.URL.Redacted())
	}
	return nil
}

// Fetch performs a GET request for pageURL and returns the page with its
// content, status and content type. Non-2xx and non-HTML responses are
// reported as *FetchError.
//
// The returned page's URL is the URL of the final response, which differs
// from pageURL after a redirect. Bodies longer than the size limit are cut
// and the page is marked Truncated.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*model.Page, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindConnection, URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,*/*;q=0.5")
	req.Header.Set("Accept-Language", "ru,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrOutOfScope) {
			return nil, &FetchError{Kind: KindOutOfScope, URL: pageURL, Err: err}
		}
		return nil, classify(pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Kind: KindHTTP, URL: pageURL, Status: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !model.IsHTMLContentType(contentType) {
		return nil, &FetchError{Kind: KindNonHTML, URL: pageURL, Status: resp.StatusCode, ContentType: contentType}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, classify(pageURL, err)
	}
	truncated := int64(len(body)) > f.maxBodySize
	if truncated {
		body = body[:f.maxBodySize]
	}

	page := &model.Page{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Content:     body,
		Truncated:   truncated,
	}
	page.ComputeHash()
	return page, nil
}

// wait blocks until the politeness delay and jitter allow the next request.
func (f *Fetcher) wait(ctx context.Context) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}
	if f.jitter <= 0 {
		return nil
	}

	timer := time.NewTimer(rand.N(f.jitter))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classify turns a transport error into a *FetchError.
func classify(pageURL string, err error) *FetchError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchError{Kind: KindTimeout, URL: pageURL, Err: err}
	}
	return &FetchError{Kind: KindConnection, URL: pageURL, Err: err}
}
