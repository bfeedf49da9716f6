package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/SP963/pageminer/internal/model"
)

// MarkdownWriter outputs runs as GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that writes to output.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs run as a Markdown document.
func (w *MarkdownWriter) Write(run *model.CrawlRun) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeStats(md, run)
	w.writePages(md, run.Pages)
	w.writeQueue(md, run.Stats.RemainingQueue)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.CrawlRun) {
	md.H1("PageMiner Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Seed", "`" + run.Seed + "`"},
		{"Run ID", "`" + run.ID + "`"},
		{"Started", run.StartedAt.Format(timeLayout)},
		{"Status", statusText(run)},
	}
	if d := run.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.Round(1e6).String()})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeStats(md *markdown.Markdown, run *model.CrawlRun) {
	s := run.Stats

	md.H2("Statistics")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Pages scraped", strconv.Itoa(s.PagesScraped)},
			{"Pages failed", strconv.Itoa(s.PagesFailed)},
			{"Links discovered", strconv.Itoa(s.TotalLinksDiscovered)},
			{"Still queued", strconv.Itoa(s.PagesInQueue)},
			{"Max pages", strconv.Itoa(s.MaxPages)},
			{"Completion", fmt.Sprintf("%.1f%%", s.CompletionPercentage)},
		},
	})
	md.PlainText("")

	if s.PagesScraped > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, run)
}

// writePieChart charts how the visited URLs turned out.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.CrawlStats) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Visited URLs"),
		piechart.WithShowData(true),
	)
	if n := s.PagesSucceeded(); n > 0 {
		chart.LabelAndIntValue("Fetched", uint64(n))
	}
	if s.PagesFailed > 0 {
		chart.LabelAndIntValue("Failed", uint64(s.PagesFailed))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, run *model.CrawlRun) {
	s := run.Stats
	switch {
	case run.State == model.RunStateFailed:
		md.Cautionf("The crawl failed: %s", run.ErrorMessage)
	case run.State == model.RunStateAborted:
		md.Warningf("The crawl was aborted after %d page(s); results are partial.", s.PagesScraped)
	case s.PagesScraped > 0 && s.PagesFailed == s.PagesScraped:
		md.Importantf("None of the %d visited URL(s) could be fetched.", s.PagesScraped)
	case s.PagesFailed > 0:
		md.Note(fmt.Sprintf("%d of %d visited URL(s) could not be fetched.", s.PagesFailed, s.PagesScraped))
	default:
		md.Tip("Every visited URL was fetched.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, pages []model.Page) {
	md.H2("Pages")
	md.PlainText("")

	if len(pages) == 0 {
		md.PlainText("No pages fetched.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(pages))
	for i, p := range pages {
		title := p.Title
		if title == "" {
			title = "-"
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			truncateString(title, 60),
			p.URL,
			shortHash(p.Hash),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Title", "URL", "Hash"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeQueue(md *markdown.Markdown, queue []string) {
	if len(queue) == 0 {
		return
	}
	md.H2("Remaining Queue")
	md.PlainText("")
	md.BulletList(queue...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by PageMiner*")
}

// truncateString shortens s to maxLen runes, ending in "...".
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func shortHash(h string) string {
	if len(h) > 12 {
		return "`" + h[:12] + "`"
	}
	if h == "" {
		return "-"
	}
	return "`" + h + "`"
}
