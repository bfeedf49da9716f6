package fetcher

import "errors"

// Fetch errors.
var (
	// ErrStatus is returned when the server answers with a status code of
	// 300 or above that was not followed. The wrapped message carries the code.
	ErrStatus = errors.New("unexpected HTTP status")

	// ErrNotHTML is returned when the response is not an HTML document.
	ErrNotHTML = errors.New("response is not HTML")

	// ErrTooManyRedirects is returned when a redirect chain is longer than
	// maxRedirects.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrBrowserClosed is returned by BrowserFetcher.Fetch after Close.
	ErrBrowserClosed = errors.New("browser fetcher is closed")
)
