package crawler

import (
	"fmt"
	"strings"

	"github.com/SP963/pageminer/internal/model"
)

// pageDelimiter closes every page block in the combined text.
var pageDelimiter = strings.Repeat("=", 80)

// TextExtractor turns raw HTML into cleaned visible text.
type TextExtractor interface {
	ExtractText(html string) (string, error)
}

// Aggregator accumulates fetched pages in visitation order and derives the
// combined text and statistics from them. All derivations may be called
// mid-crawl and reflect the pages collected so far.
type Aggregator struct {
	text  TextExtractor
	pages []model.Page
	seen  map[string]struct{}
}

// NewAggregator creates an empty Aggregator that cleans page text with text.
func NewAggregator(text TextExtractor) *Aggregator {
	return &Aggregator{
		text:  text,
		pages: make([]model.Page, 0),
		seen:  make(map[string]struct{}),
	}
}

// Add stores page. A page whose URL is already stored is ignored and Add
// returns false.
func (a *Aggregator) Add(page model.Page) bool {
	if _, ok := a.seen[page.URL]; ok {
		return false
	}
	a.seen[page.URL] = struct{}{}
	a.pages = append(a.pages, page)
	return true
}

// Len returns the number of stored pages.
func (a *Aggregator) Len() int {
	return len(a.pages)
}

// Pages returns a copy of the stored pages in visitation order.
func (a *Aggregator) Pages() []model.Page {
	out := make([]model.Page, len(a.pages))
	copy(out, a.pages)
	return out
}

// Corpus returns the stored pages as a Corpus.
func (a *Aggregator) Corpus() model.Corpus {
	return model.NewCorpus(a.pages...)
}

// CombinedText returns the cleaned text of every page, one block per page:
//
//	=== PAGE <n>: <url> ===
//	<cleaned text>
//	================...
//
// Pages whose text cannot be extracted contribute an empty body.
func (a *Aggregator) CombinedText() string {
	var b strings.Builder
	for i, p := range a.pages {
		text, err := a.text.ExtractText(p.HTML)
		if err != nil {
			text = ""
		}
		fmt.Fprintf(&b, "=== PAGE %d: %s ===\n%s\n%s\n", i+1, p.URL, text, pageDelimiter)
	}
	return b.String()
}

// Stats builds a statistics snapshot from the frontier and the stored pages.
// The first URL admitted to f is the seed and is not counted as a
// discovered link.
func (a *Aggregator) Stats(f *Frontier, maxPages int) model.CrawlStats {
	visited := f.VisitedCount()

	discovered := f.FoundCount() - 1
	if discovered < 0 {
		discovered = 0
	}

	failed := visited - len(a.pages)
	if failed < 0 {
		failed = 0
	}

	return model.CrawlStats{
		PagesScraped:         visited,
		PagesFailed:          failed,
		TotalLinksDiscovered: discovered,
		PagesInQueue:         f.Len(),
		MaxPages:             maxPages,
		CompletionPercentage: model.CompletionPercentage(visited, maxPages),
		VisitedURLs:          f.Visited(),
		RemainingQueue:       f.Pending(),
	}
}
