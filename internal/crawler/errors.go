package crawler

import "errors"

// Crawl errors.
// Per-page failures never surface as errors; only misuse of the Controller
// and external cancellation do.
var (
	// ErrAborted is returned by Controller.Crawl when the context is done
	// before the crawl finished. The returned error also wraps ctx.Err(),
	// and the corpus collected so far is returned alongside it.
	ErrAborted = errors.New("crawl aborted")

	// ErrNotIdle is returned when Crawl is called on a Controller that is
	// running or has finished and was not Reset.
	ErrNotIdle = errors.New("controller is not idle")

	// ErrInvalidSeed is returned when the seed is not an absolute http(s) URL.
	ErrInvalidSeed = errors.New("invalid seed URL: must be an absolute http or https URL")
)

// errEmptyPage marks a fetch that succeeded but returned no content.
var errEmptyPage = errors.New("fetcher returned no content")

// ErrRunning is returned by Reset while a crawl is in progress.
var ErrRunning = errors.New("crawl is running")
