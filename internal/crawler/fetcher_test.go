package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestFetcher tests fetching and failure classification.
func TestFetcher(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><body>ua=%s</body></html>", r.UserAgent())
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"a":1}`)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html></html>")
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, strings.Repeat("x", 4096))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/offsite", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://elsewhere.invalid/", http.StatusFound)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	newFetcher := func(opts ...FetcherOption) *Fetcher {
		return NewFetcher(append([]FetcherOption{WithDelay(0), WithTimeout(time.Second)}, opts...)...)
	}

	t.Run("fetches an HTML page", func(t *testing.T) {
		t.Parallel()

		page, err := newFetcher(WithUserAgent("lexcrawl-test")).Fetch(context.Background(), server.URL+"/page")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if page.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", page.StatusCode)
		}
		if !strings.Contains(string(page.Content), "ua=lexcrawl-test") {
			t.Errorf("User-Agent not sent: %s", page.Content)
		}
		if page.Hash == "" {
			t.Error("expected content hash")
		}
		if !page.IsHTML() {
			t.Errorf("expected HTML content type, got %q", page.ContentType)
		}
	})

	t.Run("classifies failures", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			path      string
			wantErr   error
			wantKind  FetchKind
			status    int
			retryable bool
		}{
			{"/missing", ErrHTTPStatus, KindHTTP, http.StatusNotFound, false},
			{"/broken", ErrHTTPStatus, KindHTTP, http.StatusServiceUnavailable, true},
			{"/data", ErrNonHTML, KindNonHTML, http.StatusOK, false},
		}

		for _, tt := range tests {
			_, err := newFetcher().Fetch(context.Background(), server.URL+tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("%s: expected %v, got %v", tt.path, tt.wantErr, err)
				continue
			}
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Errorf("%s: expected *FetchError, got %T", tt.path, err)
				continue
			}
			if fe.Kind != tt.wantKind || fe.Status != tt.status || fe.Retryable() != tt.retryable {
				t.Errorf("%s: got kind=%s status=%d retryable=%v", tt.path, fe.Kind, fe.Status, fe.Retryable())
			}
		}
	})

	t.Run("times out slow responses", func(t *testing.T) {
		t.Parallel()

		_, err := newFetcher(WithTimeout(50*time.Millisecond)).Fetch(context.Background(), server.URL+"/slow")
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("reports connection failures", func(t *testing.T) {
		t.Parallel()

		closed := httptest.NewServer(http.NotFoundHandler())
		addr := closed.URL
		closed.Close()

		_, err := newFetcher().Fetch(context.Background(), addr+"/")
		if !errors.Is(err, ErrConnection) {
			t.Errorf("expected ErrConnection, got %v", err)
		}
	})

	t.Run("limits body size", func(t *testing.T) {
		t.Parallel()

		page, err := newFetcher(WithMaxBodySize(100)).Fetch(context.Background(), server.URL+"/big")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if len(page.Content) != 100 || !page.Truncated {
			t.Errorf("expected 100 truncated bytes, got %d (truncated=%v)", len(page.Content), page.Truncated)
		}

		page, err = newFetcher(WithMaxBodySize(4096)).Fetch(context.Background(), server.URL+"/big")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if page.Truncated {
			t.Error("a body of exactly the limit is not truncated")
		}
	})

	t.Run("follows redirects only inside the scope", func(t *testing.T) {
		t.Parallel()

		scope, err := NewScope(server.URL+"/", "")
		if err != nil {
			t.Fatalf("NewScope failed: %v", err)
		}
		f := newFetcher(WithRedirectScope(scope))

		page, err := f.Fetch(context.Background(), server.URL+"/moved")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if page.URL != server.URL+"/page" {
			t.Errorf("expected final URL %s, got %s", server.URL+"/page", page.URL)
		}

		_, err = f.Fetch(context.Background(), server.URL+"/offsite")
		var fe *FetchError
		if !errors.As(err, &fe) || fe.Kind != KindOutOfScope || fe.Retryable() {
			t.Fatalf("expected non-retryable out_of_scope failure, got %v", err)
		}
		if fe.URL != server.URL+"/offsite" {
			t.Errorf("failure should name the requested URL, got %s", fe.URL)
		}

		_, err = f.Fetch(context.Background(), server.URL+"/loop")
		if !errors.Is(err, ErrHTTPStatus) {
			t.Errorf("expected a redirect loop to end as an HTTP failure, got %v", err)
		}
	})

	t.Run("spaces requests by the delay", func(t *testing.T) {
		t.Parallel()

		f := newFetcher(WithDelay(150 * time.Millisecond))
		start := time.Now()
		for range 2 {
			if _, err := f.Fetch(context.Background(), server.URL+"/page"); err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed < 140*time.Millisecond {
			t.Errorf("expected requests to be spaced by the delay, took %v", elapsed)
		}
	})

	t.Run("returns context error when cancelled before the request", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newFetcher().Fetch(ctx, server.URL+"/page")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
