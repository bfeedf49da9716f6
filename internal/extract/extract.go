package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidBaseURL is returned by ExtractLinks when the base URL cannot be parsed.
var ErrInvalidBaseURL = errors.New("invalid base URL")

// skippedSchemes are href prefixes that never point at a page.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Extractor extracts links, text and titles from HTML documents.
// It holds no state and is safe for concurrent use.
type Extractor struct {
	// removeSelectors are removed from the body before text extraction.
	removeSelectors string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRemovedElements adds CSS selectors whose elements are dropped before
// text extraction, e.g. "nav" or "footer". script and style are always
// dropped.
func WithRemovedElements(selectors ...string) Option {
	return func(e *Extractor) {
		for _, s := range selectors {
			s = strings.TrimSpace(s)
			if s != "" {
				e.removeSelectors += ", " + s
			}
		}
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{removeSelectors: "script, style"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractLinks returns the href targets of every <a> element, resolved
// against baseURL, in document order and without duplicates.
// Fragment-only references and javascript:, mailto:, tel: and data: links
// are skipped.
func (e *Extractor) ExtractLinks(content, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	links := make([]string, 0)
	seen := make(map[string]struct{})

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if link := resolve(base, attr(n, "href")); link != "" {
				if _, ok := seen[link]; !ok {
					seen[link] = struct{}{}
					links = append(links, link)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, nil
}

// ExtractText returns the visible text of the document body: script and
// style elements are removed, every text node is split into lines, lines are
// trimmed, and blank lines are dropped. The result is NFC-normalized.
func (e *Extractor) ExtractText(content string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return "", nil
	}
	body.Find(e.removeSelectors).Remove()

	var b strings.Builder
	for _, n := range body.Nodes {
		collectText(n, &b)
	}

	lines := make([]string, 0)
	for line := range strings.Lines(b.String()) {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	return norm.NFC.String(strings.Join(lines, "\n")), nil
}

// Title returns the trimmed text of the first <title> element, or an
// empty string.
func (e *Extractor) Title(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	return norm.NFC.String(strings.TrimSpace(doc.Find("title").First().Text()))
}

// collectText writes every text node below n, each followed by a newline.
func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte('\n')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

// resolve turns href into an absolute URL relative to base.
// It returns an empty string for links that cannot lead to a page.
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

// attr returns the value of the named attribute of n.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
