package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/SP963/pageminer/internal/config"
	"github.com/SP963/pageminer/internal/crawler"
	"github.com/SP963/pageminer/internal/database"
	"github.com/SP963/pageminer/internal/extract"
	"github.com/SP963/pageminer/internal/fetcher"
	"github.com/SP963/pageminer/internal/log"
	"github.com/SP963/pageminer/internal/model"
	"github.com/SP963/pageminer/internal/pipeline"
	"github.com/SP963/pageminer/internal/report"
	"github.com/SP963/pageminer/internal/tor"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Crawl websites breadth-first from seed URLs",
		Long: `Crawl visits pages breadth-first starting at each seed URL, following
links until --max-pages pages have been visited or no links are left.

Only links on the seed's host are followed unless --cross-domain is set.
Links to binary files, login and logout pages are never followed.

Examples:
  # Crawl up to 10 pages of one site
  pageminer crawl https://example.com

  # Crawl a single page
  pageminer crawl -p 1 https://example.com/about

  # Crawl two sites concurrently, 50 pages each, and write a JSON report
  pageminer crawl -p 50 --json -o report.json https://example.com https://example.org

  # Print only the extracted text
  pageminer crawl --text https://example.com

  # Render JavaScript-heavy pages in headless Chrome
  pageminer crawl --fetcher browser --browser-wait 3s https://example.com

  # Crawl through an embedded Tor daemon
  pageminer crawl --tor http://exampleonion.onion

Configuration file (.pageminer) example:
  defaults:
    delay: 1s
  sites:
    example.com:
      maxPages: 100
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      ignorePatterns:
        - "/admin/*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behaviour
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to visit per seed")
	cmd.Flags().DurationP("delay", "w", config.DefaultDelay,
		"Wait between two requests of one crawl")
	cmd.Flags().Bool("cross-domain", false,
		"Follow links to other hosts")
	cmd.Flags().Int("retries", config.DefaultRetryAttempts,
		"Fetch attempts per page before it is skipped")
	cmd.Flags().Duration("retry-backoff", config.DefaultRetryBackoff,
		"Wait before the first retry, doubled for each further one")
	cmd.Flags().Float64("rate", 0,
		"Maximum requests per second across all seeds (0 = unlimited)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")

	// Fetching
	cmd.Flags().String("fetcher", config.DefaultFetcher,
		"Page fetcher: http or browser (headless Chrome)")
	cmd.Flags().Duration("browser-wait", config.DefaultBrowserWait,
		"Time the browser fetcher lets scripts run before reading the page")
	cmd.Flags().String("browser-path", "",
		"Chrome executable for the browser fetcher (default: auto-detect)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with requests")

	// Proxy
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy at host:port")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route requests through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .pageminer in current or home directory)")

	// Report
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().Bool("text", false,
		"Output only the combined text of the crawled pages")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-db", false,
		"Do not record the crawl in the run history")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run history database")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, stopping crawl")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the command's flags, arguments and site
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.Delay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	crossDomain, err := flags.GetBool("cross-domain")
	if err != nil {
		return nil, err
	}
	cfg.SameDomainOnly = !crossDomain
	if cfg.RetryAttempts, err = flags.GetInt("retries"); err != nil {
		return nil, err
	}
	if cfg.RetryBackoff, err = flags.GetDuration("retry-backoff"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}

	if cfg.Fetcher, err = flags.GetString("fetcher"); err != nil {
		return nil, err
	}
	if cfg.BrowserWait, err = flags.GetDuration("browser-wait"); err != nil {
		return nil, err
	}
	if cfg.BrowserExecPath, err = flags.GetString("browser-path"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}

	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.TextOnly, err = flags.GetBool("text"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// A missing file is only an error when it was asked for explicitly.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, err
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Seeds = args

	return cfg, nil
}

// crawlEnv holds what the crawls of one invocation share: the proxy
// transport, the rate limiter, the browser and the run store.
type crawlEnv struct {
	cfg       *config.Config
	logger    *slog.Logger
	extractor *extract.Extractor

	// transport is nil when no proxy is used.
	transport http.RoundTripper
	proxyAddr string
	limiter   *rate.Limiter
	browser   *fetcher.BrowserFetcher
	store     pipeline.Store
}

// runCrawl crawls every seed of cfg and writes the report.
func runCrawl(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"maxPages", cfg.MaxPages,
		"fetcher", cfg.Fetcher,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	env := &crawlEnv{
		cfg:       cfg,
		logger:    logger,
		extractor: extract.New(),
		limiter:   fetcher.NewRateLimiter(cfg.RateLimit),
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		env.store = db
		logger.Info("database opened", "path", db.Path())
	}

	stopProxy, err := env.setupProxy(ctx)
	if err != nil {
		return err
	}
	defer stopProxy()

	if cfg.Fetcher == config.FetcherBrowser {
		opts := []fetcher.BrowserOption{
			fetcher.WithBrowserUserAgent(cfg.UserAgent),
			fetcher.WithBrowserWait(cfg.BrowserWait),
			fetcher.WithBrowserTimeout(cfg.Timeout),
			fetcher.WithExecPath(cfg.BrowserExecPath),
			fetcher.WithBrowserLogger(logger),
		}
		if env.proxyAddr != "" {
			opts = append(opts, fetcher.WithBrowserProxy(env.proxyAddr))
		}
		env.browser = fetcher.NewBrowserFetcher(opts...)
		defer env.browser.Close()
	}

	runs, crawlErr := env.crawlAll(ctx, stderr)

	if err := outputReport(cfg, stdout, runs); err != nil {
		return err
	}

	if crawlErr != nil {
		return fmt.Errorf("crawl interrupted: %w", crawlErr)
	}
	return allFailed(runs)
}

// setupProxy connects to the configured SOCKS5 proxy or starts the embedded
// Tor daemon. The returned function releases what was started.
func (e *crawlEnv) setupProxy(ctx context.Context) (func(), error) {
	var (
		client *tor.Client
		err    error
		stop   = func() {}
	)

	switch {
	case e.cfg.UseTor:
		daemon := tor.NewDaemon(tor.WithStartupTimeout(e.cfg.TorStartupTimeout))
		e.logger.Info("starting embedded Tor daemon", "timeout", e.cfg.TorStartupTimeout)
		if err := daemon.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		stop = func() {
			e.logger.Info("stopping embedded Tor daemon")
			if err := daemon.Stop(); err != nil {
				e.logger.Error("failed to stop embedded Tor", "error", err)
			}
		}
		if client, err = daemon.Client(); err != nil {
			stop()
			return nil, err
		}
	case e.cfg.ProxyAddress != "":
		if client, err = tor.NewClient(e.cfg.ProxyAddress); err != nil {
			return nil, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if status := client.Check(ctx); status != tor.ProxyStatusOK {
			return nil, fmt.Errorf("proxy check failed: %s (make sure a SOCKS5 proxy is running at %s): %w",
				status, e.cfg.ProxyAddress, status.Err())
		}
	default:
		return stop, nil
	}

	e.transport = client.Transport()
	e.proxyAddr = client.Address()
	e.logger.Info("routing requests through SOCKS5 proxy", "address", e.proxyAddr)
	return stop, nil
}

// crawlAll crawls the seeds, several at a time when there is more than one,
// and returns the runs in seed order.
func (e *crawlEnv) crawlAll(ctx context.Context, progress io.Writer) ([]*model.CrawlRun, error) {
	bp := pipeline.NewBatchProcessor(e.pipelineFor,
		pipeline.WithConcurrency(e.cfg.BatchSize),
		pipeline.WithBatchLogger(e.logger),
	)

	seeds := e.cfg.Seeds
	if len(seeds) == 1 {
		return bp.ProcessBatch(ctx, seeds)
	}

	runs := make([]*model.CrawlRun, len(seeds))
	var (
		mu   sync.Mutex
		done int
	)
	err := bp.ProcessBatchWithCallback(ctx, seeds, func(run *model.CrawlRun, i int) {
		mu.Lock()
		defer mu.Unlock()
		runs[i] = run
		done++
		fmt.Fprintf(progress, "[%d/%d] %s: %s (%d pages)\n",
			done, len(seeds), run.Seed, run.State, len(run.Pages))
	})
	return runs, err
}

// pipelineFor builds the pipeline of one seed with the seed's site settings.
func (e *crawlEnv) pipelineFor(seed string) *pipeline.Pipeline {
	site := e.cfg.Site(seed)
	logger := e.logger.With("seed", seed)

	opts := []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineSettings(site),
		pipeline.WithPipelineRetry(crawler.RetryPolicy{
			MaxAttempts: e.cfg.RetryAttempts,
			Backoff:     e.cfg.RetryBackoff,
		}),
		pipeline.WithPipelineObserver(crawler.NewLogObserver(logger)),
	}
	if e.store != nil {
		opts = append(opts, pipeline.WithPipelineStore(e.store))
	}

	return pipeline.DefaultPipeline(
		e.fetcherFor(seed, site),
		e.extractor,
		[]pipeline.Option{pipeline.WithLogger(logger)},
		opts...,
	)
}

// fetcherFor returns the fetcher of one seed. HTTP fetchers carry the
// seed's cookie and headers; the browser is shared by all seeds.
func (e *crawlEnv) fetcherFor(seed string, site config.CrawlSettings) crawler.Fetcher {
	if e.browser != nil {
		if site.Cookie != "" || len(site.Headers) > 0 {
			e.logger.Warn("cookie and headers are not sent by the browser fetcher", "seed", seed)
		}
		return e.browser
	}

	return fetcher.NewHTTPFetcher(
		fetcher.WithUserAgent(e.cfg.UserAgent),
		fetcher.WithTimeout(e.cfg.Timeout),
		fetcher.WithMaxBodySize(e.cfg.MaxBodySize),
		fetcher.WithCookie(site.Cookie),
		fetcher.WithHeaders(site.Headers),
		fetcher.WithTransport(e.transport),
		fetcher.WithRateLimiter(e.limiter),
		fetcher.WithLogger(e.logger),
	)
}

// allFailed returns an error when no seed produced a single page because
// every run failed.
func allFailed(runs []*model.CrawlRun) error {
	var errs []error
	for _, run := range runs {
		if run == nil || run.State != model.RunStateFailed {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %s", run.Seed, run.ErrorMessage))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("all crawls failed: %w", errors.Join(errs...))
}

// outputReport writes the runs to cfg.ReportFile, or to stdout when no file
// is set.
func outputReport(cfg *config.Config, stdout io.Writer, runs []*model.CrawlRun) error {
	out := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	// A JSON report of several seeds is one array, not concatenated objects.
	if cfg.JSONReport && len(runs) > 1 {
		if err := writeJSONRuns(out, runs); err != nil {
			return err
		}
	} else if _, err := report.WriteAll(newReportWriter(cfg, out), runs); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.ReportFile != "" {
		fmt.Fprintf(stdout, "Report written to: %s\n", cfg.ReportFile)
	}
	return nil
}

// newReportWriter returns the writer selected by cfg's report flags.
func newReportWriter(cfg *config.Config, out io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out,
			report.WithTextOnly(cfg.TextOnly),
			report.WithVerbose(cfg.Verbose),
		)
	}
}

func writeJSONRuns(out io.Writer, runs []*model.CrawlRun) error {
	reports := make([]report.JSONReport, len(runs))
	for i, run := range runs {
		reports[i] = report.JSONReport{Version: getVersion(), Run: run}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
