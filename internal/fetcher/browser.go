package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Default browser fetcher settings.
const (
	// DefaultBrowserWait is how long a page may run scripts after loading
	// before its DOM is captured.
	DefaultBrowserWait = 2 * time.Second

	// DefaultBrowserTimeout bounds one page load including the wait.
	DefaultBrowserTimeout = 60 * time.Second
)

// BrowserFetcher renders pages in headless Chrome and returns the resulting
// DOM as HTML. The browser is started on the first Fetch and shared by all
// later ones; each page gets its own tab. Call Close to stop the browser.
type BrowserFetcher struct {
	userAgent string
	wait      time.Duration
	timeout   time.Duration
	headless  bool
	execPath  string
	proxy     string
	logger    *slog.Logger

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	closed        bool
}

// BrowserOption configures a BrowserFetcher.
type BrowserOption func(*BrowserFetcher)

// WithBrowserUserAgent sets the browser's User-Agent.
func WithBrowserUserAgent(ua string) BrowserOption {
	return func(b *BrowserFetcher) {
		if ua != "" {
			b.userAgent = ua
		}
	}
}

// WithBrowserWait sets how long scripts may run after navigation.
func WithBrowserWait(d time.Duration) BrowserOption {
	return func(b *BrowserFetcher) {
		if d >= 0 {
			b.wait = d
		}
	}
}

// WithBrowserTimeout bounds a single page load.
func WithBrowserTimeout(d time.Duration) BrowserOption {
	return func(b *BrowserFetcher) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithHeadless toggles headless mode. Headless is the default.
func WithHeadless(headless bool) BrowserOption {
	return func(b *BrowserFetcher) {
		b.headless = headless
	}
}

// WithExecPath sets the Chrome binary. By default chromedp searches the
// usual install locations.
func WithExecPath(path string) BrowserOption {
	return func(b *BrowserFetcher) {
		b.execPath = path
	}
}

// WithBrowserProxy routes the browser through a SOCKS5 proxy at host:port.
func WithBrowserProxy(address string) BrowserOption {
	return func(b *BrowserFetcher) {
		b.proxy = address
	}
}

// WithBrowserLogger sets the logger.
func WithBrowserLogger(logger *slog.Logger) BrowserOption {
	return func(b *BrowserFetcher) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBrowserFetcher creates a BrowserFetcher. No browser is started yet.
func NewBrowserFetcher(opts ...BrowserOption) *BrowserFetcher {
	b := &BrowserFetcher{
		userAgent: DefaultUserAgent,
		wait:      DefaultBrowserWait,
		timeout:   DefaultBrowserTimeout,
		headless:  true,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// allocatorOptions returns the Chrome flags for this fetcher.
func (b *BrowserFetcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", b.headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(b.userAgent),
	)
	if b.execPath != "" {
		opts = append(opts, chromedp.ExecPath(b.execPath))
	}
	if b.proxy != "" {
		opts = append(opts, chromedp.ProxyServer("socks5://"+b.proxy))
	}
	return opts
}

// browser returns the shared browser context, starting Chrome if needed.
func (b *BrowserFetcher) browser() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrowserClosed
	}
	if b.browserCtx != nil {
		return b.browserCtx, nil
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), b.allocatorOptions()...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			b.logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
		}))

	// The first Run launches the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	b.browserCtx = browserCtx
	b.cancelBrowser = func() {
		cancelBrowser()
		cancelAlloc()
	}
	b.logger.Debug("browser started", "headless", b.headless)
	return browserCtx, nil
}

// Fetch loads url in a new tab, waits for scripts to run, and returns the
// page's outer HTML. The load is abandoned when ctx is done.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	browserCtx, err := b.browser()
	if err != nil {
		return "", err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()

	// chromedp contexts descend from the browser, not from ctx.
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	var html string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(b.wait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("browser fetch failed: %w", err)
	}

	return html, nil
}

// Close stops the browser. Fetch fails with ErrBrowserClosed afterwards.
// Close is idempotent.
func (b *BrowserFetcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if b.cancelBrowser != nil {
		b.cancelBrowser()
		b.cancelBrowser = nil
		b.browserCtx = nil
	}
	return nil
}
