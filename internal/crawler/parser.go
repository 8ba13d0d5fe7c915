package crawler

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ErrParse is returned when a fetched document cannot be parsed as HTML.
var ErrParse = errors.New("failed to parse HTML")

// LinkParser extracts text and links from a fetched document.
// Implementations must be safe for concurrent use.
type LinkParser interface {
	// Parse reads an HTML document and resolves its links against baseURL.
	Parse(baseURL string, content io.Reader) (*ParseResult, error)
}

// ParseResult contains the information extracted from an HTML page.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Text is the visible text of the page with whitespace collapsed.
	Text string

	// Links contains the absolute URLs of anchors, in document order,
	// without duplicates. Links are not normalized.
	Links []string
}

// nonTextElements never contribute visible text.
var nonTextElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"iframe":   true,
	"svg":      true,
}

// boilerplateElements hold site navigation repeated on every page.
var boilerplateElements = map[string]bool{
	"header": true,
	"footer": true,
	"nav":    true,
}

// HTMLParser is the LinkParser built on golang.org/x/net/html.
type HTMLParser struct {
	// skipBoilerplate drops the text of header, footer and nav elements.
	// Links inside them are still collected.
	skipBoilerplate bool
}

// HTMLParserOption configures an HTMLParser.
type HTMLParserOption func(*HTMLParser)

// WithSkipBoilerplate excludes header, footer and nav text from ParseResult.Text.
func WithSkipBoilerplate(skip bool) HTMLParserOption {
	return func(p *HTMLParser) {
		p.skipBoilerplate = skip
	}
}

// NewHTMLParser creates a new HTMLParser.
func NewHTMLParser(opts ...HTMLParserOption) *HTMLParser {
	p := &HTMLParser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses HTML content and extracts the title, visible text and links.
func (p *HTMLParser) Parse(baseURL string, content io.Reader) (*ParseResult, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base URL %s: %v", ErrParse, baseURL, err)
	}

	doc, err := html.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	result := &ParseResult{
		Links: make([]string, 0),
	}
	seen := make(map[string]bool)
	var text strings.Builder

	var walk func(n *html.Node, textVisible bool)
	walk = func(n *html.Node, textVisible bool) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
				textVisible = false
			case "base":
				// A <base href> changes how relative links resolve.
				if href := getAttr(n, "href"); href != "" {
					if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
						base = base.ResolveReference(u)
					}
				}
			case "a", "area":
				if link := resolveURL(base, getAttr(n, "href")); link != "" && !seen[link] {
					seen[link] = true
					result.Links = append(result.Links, link)
				}
			}
			if nonTextElements[n.Data] || (p.skipBoilerplate && boilerplateElements[n.Data]) {
				textVisible = false
			}
		case html.TextNode:
			if textVisible {
				text.WriteString(n.Data)
				text.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, textVisible)
		}
	}

	walk(doc, true)

	result.Text = strings.Join(strings.Fields(text.String()), " ")
	return result, nil
}

// resolveURL resolves href against base. Non-navigational references
// (javascript:, mailto:, tel:, data:, bare fragments) resolve to "".
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	return base.ResolveReference(u).String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
