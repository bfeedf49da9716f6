// Package fetcher retrieves page HTML for the crawler.
//
// Two implementations satisfy crawler.Fetcher:
//
//   - HTTPFetcher issues plain GET requests. It accepts only HTML responses,
//     decodes them to UTF-8, injects per-site cookies and headers, and can be
//     routed through a SOCKS5 proxy or throttled by a shared rate limiter.
//   - BrowserFetcher loads pages in headless Chrome through chromedp and
//     returns the rendered DOM, for sites that build their content with
//     JavaScript.
//
// Both treat any failure as an error; the crawler decides whether to retry.
package fetcher
