package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Fetcher names.
const (
	// FetcherHTTP fetches pages with plain HTTP requests.
	FetcherHTTP = "http"

	// FetcherBrowser renders pages in headless Chrome.
	FetcherBrowser = "browser"
)

// Default configuration values.
const (
	// AppName is used for XDG directory paths.
	AppName = "pageminer"

	// DefaultMaxPages caps the number of URLs visited per seed.
	DefaultMaxPages = 10

	// DefaultDelay is the wait between two requests to the same site.
	DefaultDelay = 2 * time.Second

	// DefaultSameDomainOnly keeps the crawl on the seed's host.
	DefaultSameDomainOnly = true

	// DefaultTimeout bounds a single page request.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

	// DefaultMaxBodySize is the number of body bytes read per page (5MB).
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultFetcher is the fetcher used when none is chosen.
	DefaultFetcher = FetcherHTTP

	// DefaultBrowserWait lets scripts run after navigation before the DOM
	// is captured.
	DefaultBrowserWait = 2 * time.Second

	// DefaultRetryAttempts is one attempt per page: failed pages are skipped.
	DefaultRetryAttempts = 1

	// DefaultRetryBackoff is the wait before the first retry.
	DefaultRetryBackoff = time.Second

	// DefaultBatchSize is the number of seeds crawled concurrently.
	DefaultBatchSize = 4

	// DefaultTorStartupTimeout bounds the embedded Tor bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds every option of a crawl invocation.
// It is filled from CLI flags and passed down explicitly.
type Config struct {
	// Seeds are the URLs to crawl from. Each seed is crawled independently.
	Seeds []string

	// MaxPages caps the number of URLs visited per seed.
	// Zero completes immediately with no pages.
	MaxPages int

	// Delay is the wait between two requests of one crawl.
	Delay time.Duration

	// SameDomainOnly keeps each crawl on its seed's host.
	SameDomainOnly bool

	// Timeout bounds a single page request.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// MaxBodySize is the number of body bytes read per page.
	// Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// Fetcher selects FetcherHTTP or FetcherBrowser.
	Fetcher string

	// BrowserWait is how long the browser fetcher lets scripts run.
	BrowserWait time.Duration

	// BrowserExecPath is the Chrome binary; empty means auto-detect.
	BrowserExecPath string

	// RetryAttempts is the number of fetch attempts per page.
	RetryAttempts int

	// RetryBackoff is the wait before the first retry; it doubles after that.
	RetryBackoff time.Duration

	// RateLimit caps requests per second across all concurrent crawls.
	// Zero disables the cap.
	RateLimit float64

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// ProxyAddress routes requests through a SOCKS5 proxy at host:port.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes requests through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the site configuration file. When empty, .pageminer
	// is searched in the current directory and then the home directory.
	ConfigFilePath string

	// SiteConfigs holds the loaded site configuration file.
	SiteConfigs *File

	// JSONReport selects the JSON report. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects the Markdown report.
	MarkdownReport bool

	// TextOnly prints only the combined page text of each run.
	TextOnly bool

	// ReportFile writes the report to this path instead of stdout.
	ReportFile string

	// DBDir is the directory of the run history database.
	DBDir string

	// SaveToDB stores finished runs in the database.
	SaveToDB bool
}

// NewConfig returns a Config populated with the default values.
func NewConfig() *Config {
	return &Config{
		MaxPages:          DefaultMaxPages,
		Delay:             DefaultDelay,
		SameDomainOnly:    DefaultSameDomainOnly,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		Fetcher:           DefaultFetcher,
		BrowserWait:       DefaultBrowserWait,
		RetryAttempts:     DefaultRetryAttempts,
		RetryBackoff:      DefaultRetryBackoff,
		BatchSize:         DefaultBatchSize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the data directory, e.g. ~/.local/share/pageminer on Linux.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory, e.g. ~/.config/pageminer on Linux.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	for _, seed := range c.Seeds {
		if !isHTTPURL(seed) {
			return ErrInvalidSeed
		}
	}

	switch {
	case c.MaxPages < 0:
		return ErrInvalidMaxPages
	case c.Delay < 0:
		return ErrInvalidDelay
	case c.Timeout <= 0:
		return ErrInvalidTimeout
	case c.BatchSize <= 0:
		return ErrInvalidBatchSize
	case c.RetryAttempts < 1:
		return ErrInvalidRetryAttempts
	case c.RetryBackoff < 0:
		return ErrInvalidRetryBackoff
	case c.RateLimit < 0:
		return ErrInvalidRateLimit
	case c.MaxBodySize < 0:
		return ErrInvalidMaxBodySize
	case c.Fetcher != FetcherHTTP && c.Fetcher != FetcherBrowser:
		return ErrUnknownFetcher
	case c.JSONReport && c.MarkdownReport:
		return ErrConflictingReportFormats
	case c.ProxyAddress != "" && c.UseTor:
		return ErrConflictingProxy
	}

	return nil
}

// Site returns the effective crawl settings for seed: the global values,
// overridden by the file's defaults, overridden by the entry for the
// seed's host.
func (c *Config) Site(seed string) CrawlSettings {
	s := CrawlSettings{
		MaxPages:       c.MaxPages,
		Delay:          c.Delay,
		SameDomainOnly: c.SameDomainOnly,
	}
	if c.SiteConfigs == nil {
		return s
	}

	sc := c.SiteConfigs.GetSiteConfig(hostOf(seed))
	if sc.MaxPages > 0 {
		s.MaxPages = sc.MaxPages
	}
	if sc.Delay != nil {
		s.Delay = *sc.Delay
	}
	if sc.SameDomainOnly != nil {
		s.SameDomainOnly = *sc.SameDomainOnly
	}
	s.Cookie = sc.Cookie
	s.Headers = sc.Headers
	s.IgnorePatterns = sc.IgnorePatterns
	s.FollowPatterns = sc.FollowPatterns
	return s
}

// CrawlSettings are the settings of one seed's crawl after site overrides.
type CrawlSettings struct {
	MaxPages       int
	Delay          time.Duration
	SameDomainOnly bool
	Cookie         string
	Headers        map[string]string
	IgnorePatterns []string
	FollowPatterns []string
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Host
}
