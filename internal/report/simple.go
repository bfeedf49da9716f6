package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/SP963/pageminer/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text for the terminal.
type SimpleWriter struct {
	baseWriter

	// textOnly prints only the combined page text.
	textOnly bool

	// verbose adds the visited and queued URL lists.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithTextOnly makes the writer print only each run's combined text,
// the input a downstream parser consumes.
func WithTextOnly(textOnly bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.textOnly = textOnly
	}
}

// WithVerbose adds the visited and remaining URL lists.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that writes to output.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs run as text.
func (w *SimpleWriter) Write(run *model.CrawlRun) (int, error) {
	if w.textOnly {
		return io.WriteString(w.output, run.CombinedText)
	}

	var sb strings.Builder
	w.writeHeader(&sb, run)
	w.writeStats(&sb, run.Stats)
	w.writePages(&sb, run.Pages)
	if w.verbose {
		w.writeURLList(&sb, "VISITED URLS", run.Stats.VisitedURLs)
		w.writeURLList(&sb, "REMAINING QUEUE", run.Stats.RemainingQueue)
	}
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, run *model.CrawlRun) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("PAGEMINER CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed:      %s\n", run.Seed)
	fmt.Fprintf(sb, "Run ID:    %s\n", run.ID)
	fmt.Fprintf(sb, "Started:   %s\n", run.StartedAt.Format(timeLayout))
	if d := run.Duration(); d > 0 {
		fmt.Fprintf(sb, "Duration:  %s\n", d.Round(1e6))
	}
	fmt.Fprintf(sb, "Status:    %s\n\n", statusText(run))
}

func (w *SimpleWriter) writeStats(sb *strings.Builder, s model.CrawlStats) {
	section(sb, "STATISTICS")
	fmt.Fprintf(sb, "  Pages scraped:     %d / %d (%.1f%%)\n", s.PagesScraped, s.MaxPages, s.CompletionPercentage)
	fmt.Fprintf(sb, "  Pages failed:      %d\n", s.PagesFailed)
	fmt.Fprintf(sb, "  Links discovered:  %d\n", s.TotalLinksDiscovered)
	fmt.Fprintf(sb, "  Still queued:      %d\n\n", s.PagesInQueue)
}

func (w *SimpleWriter) writePages(sb *strings.Builder, pages []model.Page) {
	section(sb, "PAGES")
	if len(pages) == 0 {
		sb.WriteString("  No pages fetched\n\n")
		return
	}
	for i, p := range pages {
		title := p.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(sb, "  %3d. %s\n       %s\n", i+1, title, p.URL)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeURLList(sb *strings.Builder, title string, urls []string) {
	section(sb, title)
	if len(urls) == 0 {
		sb.WriteString("  (none)\n\n")
		return
	}
	for _, u := range urls {
		fmt.Fprintf(sb, "  [+] %s\n", u)
	}
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}
