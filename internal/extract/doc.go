// Package extract pulls outbound links, visible text and titles out of HTML.
//
// Links are collected with a golang.org/x/net/html DOM walk and resolved
// against the page URL. Text extraction uses goquery: the body is stripped
// of script and style elements and reduced to its non-blank, trimmed lines,
// normalized to Unicode NFC.
//
// # Usage
//
//	ex := extract.New()
//	links, err := ex.ExtractLinks(html, "https://example.com/docs/")
//	text, err := ex.ExtractText(html)
package extract
