package model

// CrawlStats is a read-only snapshot of a crawl.
// It is recomputed on demand from the crawl state and never mutated.
type CrawlStats struct {
	// PagesScraped is the number of visited URLs (fetch attempted,
	// successful or not).
	PagesScraped int `json:"pages_scraped"`

	// PagesFailed is the number of visited URLs whose fetch yielded no content.
	PagesFailed int `json:"pages_failed"`

	// TotalLinksDiscovered is the number of distinct URLs admitted from page
	// links. The seed itself is not counted.
	TotalLinksDiscovered int `json:"total_links_discovered"`

	// PagesInQueue is the number of URLs still waiting in the frontier.
	PagesInQueue int `json:"pages_in_queue"`

	// MaxPages is the configured page cap.
	MaxPages int `json:"max_pages"`

	// CompletionPercentage is min(PagesScraped/MaxPages*100, 100),
	// or 0 when MaxPages is 0.
	CompletionPercentage float64 `json:"completion_percentage"`

	// VisitedURLs lists visited URLs in visitation order.
	VisitedURLs []string `json:"visited_urls"`

	// RemainingQueue lists queued URLs in frontier order.
	RemainingQueue []string `json:"remaining_queue"`
}

// CompletionPercentage returns min(visited/maxPages*100, 100).
// A maxPages of zero or less yields 0.
func CompletionPercentage(visited, maxPages int) float64 {
	if maxPages <= 0 {
		return 0
	}
	pct := float64(visited) / float64(maxPages) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// PagesSucceeded returns the number of visited URLs that produced content.
func (s CrawlStats) PagesSucceeded() int {
	return s.PagesScraped - s.PagesFailed
}
