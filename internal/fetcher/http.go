package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// Default HTTP fetcher settings.
const (
	// DefaultUserAgent is sent when no User-Agent is configured.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

	// DefaultTimeout bounds a single request, body included.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize is the number of body bytes read per page.
	DefaultMaxBodySize int64 = 5 * 1024 * 1024

	// maxRedirects stops redirect loops.
	maxRedirects = 10
)

// HTTPFetcher fetches pages with plain HTTP GET requests.
// It is safe for concurrent use.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	limiter     *rate.Limiter
	logger      *slog.Logger

	// transport is the base round tripper before header injection.
	transport http.RoundTripper
	timeout   time.Duration
	cookie    string
	headers   map[string]string
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMaxBodySize limits how many bytes of a response body are read.
// Longer bodies are truncated.
func WithMaxBodySize(n int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithCookie sends a raw cookie string (e.g. "session=abc") with every
// request.
func WithCookie(cookie string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.cookie = cookie
	}
}

// WithHeaders sends the given headers with every request.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.headers = maps.Clone(headers)
	}
}

// WithTransport sets the base transport, e.g. one that dials through a
// SOCKS5 proxy.
func WithTransport(rt http.RoundTripper) HTTPOption {
	return func(f *HTTPFetcher) {
		if rt != nil {
			f.transport = rt
		}
	}
}

// WithRateLimiter makes every request wait for a token from l. Sharing one
// limiter between fetchers caps their combined request rate.
func WithRateLimiter(l *rate.Limiter) HTTPOption {
	return func(f *HTTPFetcher) {
		f.limiter = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(f *HTTPFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewRateLimiter returns a limiter allowing perSecond requests per second
// with no bursts, or nil when perSecond is not positive.
func NewRateLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		timeout:     DefaultTimeout,
		transport:   http.DefaultTransport,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	transport := f.transport
	if f.cookie != "" || len(f.headers) > 0 {
		transport = &headerTransport{
			base:    transport,
			cookie:  f.cookie,
			headers: f.headers,
		}
	}

	// Session cookies set by the site are kept for the rest of the crawl.
	jar, _ := cookiejar.New(nil) //nolint:errcheck // only fails with invalid options

	f.client = &http.Client{
		Transport: transport,
		Timeout:   f.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, maxRedirects)
			}
			return nil
		},
	}

	return f
}

// Fetch retrieves url and returns its body decoded to UTF-8.
// Responses with a status of 300 or above and non-HTML responses are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	f.logger.Debug("fetched",
		"url", url,
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"elapsed", time.Since(start))

	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return "", fmt.Errorf("%w: %s", ErrNotHTML, contentType)
	}

	body := io.LimitReader(resp.Body, f.maxBodySize)
	decoded, err := charset.NewReader(body, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to decode body: %w", err)
	}

	content, err := io.ReadAll(decoded)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}

	return string(content), nil
}

// isHTML reports whether contentType names an HTML document.
// A missing Content-Type is accepted.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// headerTransport adds a cookie and fixed headers to every request,
// redirects included.
type headerTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
