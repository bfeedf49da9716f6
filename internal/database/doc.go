// Package database stores finished crawl runs in SQLite.
//
// Each run is one row of crawl_runs, keyed by the run ID, with its stats
// snapshot and combined text. The fetched pages of the run are rows of
// crawl_pages in visitation order. The history command reads both back.
//
// The driver is modernc.org/sqlite, so the binary stays CGO-free.
package database
