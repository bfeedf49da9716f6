// Package pipeline runs a crawl run through a sequence of steps:
// crawling the seed, building the combined page text, and saving the run
// to the history database.
//
// A Pipeline handles one seed. BatchProcessor crawls several seeds
// concurrently, each through its own Pipeline, bounded by errgroup.SetLimit.
//
// When the context is cancelled, remaining steps are skipped except final
// steps (text and persist), which still run on the partial results.
package pipeline
