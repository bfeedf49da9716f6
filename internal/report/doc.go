// Package report renders crawl runs.
//
//   - SimpleWriter: plain text for the terminal, or only the combined page
//     text with WithTextOnly
//   - JSONWriter: the run as JSON, optionally wrapped with the tool version
//   - MarkdownWriter: tables, an outcome pie chart and the page list
//
// All writers implement Writer and can be combined with MultiWriter.
package report
