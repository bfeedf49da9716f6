// Package crawler implements a bounded breadth-first web crawl.
//
// # Architecture
//
// A Controller owns one crawl at a time. It takes URLs from a Frontier,
// fetches them through a Fetcher, pulls their links out with an Extractor,
// and admits the links that pass the Filter back into the Frontier. Fetched
// pages are kept by an Aggregator, which derives the combined page text and
// the crawl statistics.
//
// # Components
//
//   - Filter / IsAdmissible: pure predicate deciding which links to follow
//   - Frontier: FIFO queue plus found set and visited registry
//   - Controller: the crawl loop and its Idle/Running/Completed/Aborted states
//   - Event / Observer: immutable progress snapshots delivered inline
//   - Aggregator: pages in visitation order, combined text, statistics
//   - RetryPolicy: how often a failed fetch is attempted
//
// # Guarantees
//
//   - every URL is fetched at most once per crawl
//   - pages are visited in breadth-first order from the seed
//   - no more than the configured maximum number of URLs are visited
//   - a failed fetch never stops the crawl
//   - cancellation is checked before every fetch and interrupts waits
//
// # Usage
//
//	c := crawler.NewController(fetcher, extract.New(),
//		crawler.WithMaxPages(20),
//		crawler.WithDelay(time.Second),
//		crawler.WithObserver(crawler.NewLogObserver(logger)))
//	corpus, err := c.Crawl(ctx, "https://example.com/")
//	text := c.CombinedText()
package crawler
