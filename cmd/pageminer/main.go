// Package main provides the entry point for the PageMiner CLI.
//
// PageMiner crawls a website breadth-first from one or more seed URLs,
// visiting at most a fixed number of pages per seed, and collects the HTML
// and visible text of every page it fetched.
//
// Usage:
//
//	pageminer crawl https://example.com
//	pageminer crawl -p 50 --json https://example.com https://example.org
//	pageminer history https://example.com
//
// See --help for all available options.
package main

func main() {
	Execute()
}
