package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Page is a successfully fetched page.
// A Page is created once by the crawl controller and never modified after
// it has been handed to the page store.
type Page struct {
	// Seq is the page sequence number, dense from 1 in fetch-completion order.
	// Zero means the page has not been assigned a slot yet.
	Seq int `json:"seq"`

	// URL is the normalized source URL of the page.
	URL string `json:"url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the Content-Type header of the response.
	ContentType string `json:"content_type"`

	// Content holds the raw response body bytes.
	Content []byte `json:"-"`

	// Hash is the SHA-256 hash of Content.
	Hash string `json:"hash"`

	// Text is the plain text extracted from Content by the link parser.
	// Empty when the page could not be parsed.
	Text string `json:"-"`

	// Links are the absolute URLs found in anchors of the page.
	Links []string `json:"-"`

	// Truncated is set when the body exceeded the fetch size limit and
	// Content holds only its first part.
	Truncated bool `json:"truncated,omitempty"`
}

// ComputeHash calculates and sets the SHA-256 hash of the page content.
func (p *Page) ComputeHash() {
	if len(p.Content) == 0 {
		p.Hash = ""
		return
	}

	hash := sha256.Sum256(p.Content)
	p.Hash = hex.EncodeToString(hash[:])
}

// IsHTML reports whether the page content type is an HTML document.
func (p *Page) IsHTML() bool {
	return IsHTMLContentType(p.ContentType)
}

// IsHTMLContentType reports whether a Content-Type header value is text/html.
// Parameters such as charset are ignored. XHTML served as
// application/xhtml+xml is not accepted.
func IsHTMLContentType(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	return mediaType == "text/html"
}

// IndexEntry is one record of the Page Index.
type IndexEntry struct {
	// Seq is the page sequence number.
	Seq int `json:"seq"`

	// URL is the source URL of the page.
	URL string `json:"url"`
}

// String formats the entry as a Page Index line without the trailing newline.
func (e IndexEntry) String() string {
	return fmt.Sprintf("%d %s", e.Seq, e.URL)
}
