// Package config provides configuration for PageMiner: crawl limits,
// fetcher and proxy selection, report output, the run history database,
// and per-site overrides loaded from a YAML file.
package config
