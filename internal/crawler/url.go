package crawler

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrInvalidURL is returned for URLs that cannot be crawled at all:
// unparsable, relative, or with a scheme other than http and https.
var ErrInvalidURL = errors.New("invalid crawl URL")

// NormalizeURL returns the canonical form used for deduplication.
//
// The result has no fragment, a lower-case scheme and host, no default port,
// "/" as the path of a bare host, and no trailing slash on any other path.
// The function is pure: equal inputs always give equal outputs.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidURL, rawURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme in %s", ErrInvalidURL, rawURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %s", ErrInvalidURL, rawURL)
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)

	if port := u.Port(); (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = u.Hostname()
		if strings.Contains(u.Host, ":") {
			u.Host = "[" + u.Host + "]"
		}
	}

	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	} else if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = strings.TrimRight(u.RawPath, "/")
		if u.Path == "" {
			u.Path = "/"
			u.RawPath = ""
		}
	}

	return u.String(), nil
}

// RegistrableDomain returns the eTLD+1 of host, e.g. "povarenok.ru" for
// "www.povarenok.ru". IP addresses and single-label hosts are returned as is.
func RegistrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// skipExtensions are path suffixes of resources that are never HTML documents.
var skipExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".svg": true, ".ico": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".zip": true, ".rar": true, ".gz": true, ".tar": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true,
	".js": true, ".css": true, ".xml": true, ".json": true, ".rss": true, ".atom": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
}

// LikelyHTML reports whether the URL path does not end in a known
// non-document extension. It never contacts the server.
func LikelyHTML(u *url.URL) bool {
	return !skipExtensions[strings.ToLower(path.Ext(u.Path))]
}

// Scope decides which discovered URLs are eligible for crawling.
type Scope struct {
	// domain is the registrable domain every crawled host must belong to.
	domain string

	// ignorePatterns are URL path globs that are never crawled.
	ignorePatterns []string

	// followPatterns, when non-empty, are the only URL path globs crawled.
	followPatterns []string
}

// ScopeOption configures a Scope.
type ScopeOption func(*Scope)

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) ScopeOption {
	return func(s *Scope) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled.
func WithFollowPatterns(patterns []string) ScopeOption {
	return func(s *Scope) {
		s.followPatterns = patterns
	}
}

// NewScope creates the scope of a crawl starting at seedURL.
// An empty scopeDomain means the registrable domain of the seed.
func NewScope(seedURL, scopeDomain string, opts ...ScopeOption) (*Scope, error) {
	domain := strings.ToLower(strings.TrimSpace(scopeDomain))
	if domain == "" {
		u, err := url.Parse(seedURL)
		if err != nil || u.Hostname() == "" {
			return nil, fmt.Errorf("%w: %s", ErrInvalidURL, seedURL)
		}
		domain = RegistrableDomain(u.Hostname())
	}

	s := &Scope{domain: domain}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Domain returns the registrable domain of the scope.
func (s *Scope) Domain() string {
	return s.domain
}

// Allows reports whether a normalized URL may enter the frontier.
func (s *Scope) Allows(normalizedURL string) bool {
	u, err := url.Parse(normalizedURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := u.Hostname()
	if host != s.domain && !strings.HasSuffix(host, "."+s.domain) {
		return false
	}

	if !LikelyHTML(u) {
		return false
	}

	return s.matchesPatterns(u.Path)
}

// matchesPatterns applies ignore and follow patterns to a URL path.
//
// Logic:
//  1. If the path matches any ignore pattern, skip it
//  2. If follow patterns are set and the path matches none, skip it
//  3. Otherwise, crawl it
func (s *Scope) matchesPatterns(urlPath string) bool {
	if urlPath == "" {
		urlPath = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, urlPath) {
			return false
		}
	}

	if len(s.followPatterns) == 0 {
		return true
	}
	for _, pattern := range s.followPatterns {
		if matchPattern(pattern, urlPath) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, urlPath string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(urlPath, prefix+"/") || urlPath == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(urlPath, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, urlPath); err == nil && matched {
		return true
	}

	// Patterns without a slash are also tried against the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, path.Base(urlPath)); err == nil && matched {
			return true
		}
	}

	return false
}
