// Package model defines the data structures shared by the PageMiner packages.
//
// This package contains the following main types:
//   - Page: a fetched page (URL and raw HTML) with derived metadata
//   - Corpus: pages keyed by URL, in visitation order
//   - CrawlStats: a read-only snapshot of crawl progress
//   - CrawlRun: one crawl invocation, as reported and persisted
//   - RunDiff: page changes between two runs of the same seed
//
// The crawler, report, pipeline and database packages all depend on these
// types, so they live in their own package to avoid import cycles.
// Every type is serializable to JSON for reports and database storage.
package model
