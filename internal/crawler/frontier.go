package crawler

import (
	"errors"
	"fmt"
	"sync"
)

// ErrSeedOutOfScope is returned when the seed URL itself is outside the crawl scope.
var ErrSeedOutOfScope = errors.New("seed URL is out of scope")

// Frontier is the FIFO queue of normalized URLs awaiting fetch, together with
// the set of every URL ever enqueued.
//
// A URL is marked visited when it is enqueued, not when it is fetched, so it
// can never be queued twice. Every queued URL is normalized and in scope.
type Frontier struct {
	scope *Scope

	// mu protects queue and visited.
	mu      sync.Mutex
	queue   []string
	visited map[string]struct{}
}

// NewFrontier creates an empty frontier restricted to scope.
func NewFrontier(scope *Scope) *Frontier {
	return &Frontier{
		scope:   scope,
		queue:   make([]string, 0),
		visited: make(map[string]struct{}),
	}
}

// Seed normalizes rawURL and places it at the head of the queue.
// It returns the normalized seed.
func (f *Frontier) Seed(rawURL string) (string, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	if !f.scope.Allows(normalized) {
		return "", fmt.Errorf("%w: %s (scope %s)", ErrSeedOutOfScope, normalized, f.scope.Domain())
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.visited[normalized]; !ok {
		f.visited[normalized] = struct{}{}
		f.queue = append([]string{normalized}, f.queue...)
	}
	return normalized, nil
}

// Enqueue normalizes each link and appends the new in-scope ones.
// Invalid, out-of-scope and already visited links are dropped.
// It returns the URLs that were actually added, in order.
func (f *Frontier) Enqueue(links []string) []string {
	added := make([]string, 0)

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, link := range links {
		normalized, err := NormalizeURL(link)
		if err != nil {
			continue
		}
		if _, ok := f.visited[normalized]; ok {
			continue
		}
		if !f.scope.Allows(normalized) {
			continue
		}
		f.visited[normalized] = struct{}{}
		f.queue = append(f.queue, normalized)
		added = append(added, normalized)
	}
	return added
}

// Dequeue removes and returns the oldest queued URL.
// The second result is false when the queue is empty.
func (f *Frontier) Dequeue() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return "", false
	}
	next := f.queue[0]
	f.queue[0] = ""
	f.queue = f.queue[1:]
	return next, true
}

// Len returns the number of URLs waiting in the queue.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Visited returns the number of distinct URLs ever enqueued.
func (f *Frontier) Visited() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Seen reports whether rawURL, once normalized, was ever enqueued.
func (f *Frontier) Seen(rawURL string) bool {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[normalized]
	return ok
}

// Claim marks an already normalized URL as visited without queueing it.
// It reports false when the URL was visited before. The controller claims
// the final URL of a redirect so that the same page is not stored twice.
func (f *Frontier) Claim(normalizedURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.visited[normalizedURL]; ok {
		return false
	}
	f.visited[normalizedURL] = struct{}{}
	return true
}

// Scope returns the scope the frontier filters by.
func (f *Frontier) Scope() *Scope {
	return f.scope
}
