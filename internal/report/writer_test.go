package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/SP963/pageminer/internal/model"
)

func createTestRun() *model.CrawlRun {
	run := model.NewCrawlRun("https://example.com/")
	run.StartedAt = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	run.FinishedAt = run.StartedAt.Add(4 * time.Second)
	run.State = model.RunStateCompleted

	home := model.NewPage("https://example.com/", "<title>Home</title><p>hello</p>")
	home.Title = "Home"
	about := model.NewPage("https://example.com/about", "<p>about us</p>")
	run.Pages = []model.Page{home, about}

	run.Stats = model.CrawlStats{
		PagesScraped:         3,
		PagesFailed:          1,
		TotalLinksDiscovered: 6,
		PagesInQueue:         2,
		MaxPages:             3,
		CompletionPercentage: 100,
		VisitedURLs:          []string{"https://example.com/", "https://example.com/about", "https://example.com/gone"},
		RemainingQueue:       []string{"https://example.com/blog", "https://example.com/faq"},
	}
	run.CombinedText = "=== PAGE 1: https://example.com/ ===\nhello\n" + strings.Repeat("=", 80) + "\n"
	return run
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and stats", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		for _, want := range []string{
			"PAGEMINER CRAWL REPORT",
			"Seed:      https://example.com/",
			"Status:    Complete",
			"Pages scraped:     3 / 3 (100.0%)",
			"Pages failed:      1",
			"Links discovered:  6",
			"1. Home",
			"(untitled)",
			"https://example.com/about",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q\n%s", want, out)
			}
		}
		if strings.Contains(out, "REMAINING QUEUE") {
			t.Error("queue should only be listed in verbose mode")
		}
	})

	t.Run("verbose lists urls", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "VISITED URLS") || !strings.Contains(out, "[+] https://example.com/faq") {
			t.Errorf("expected url lists in verbose output\n%s", out)
		}
	})

	t.Run("text only writes combined text", func(t *testing.T) {
		t.Parallel()

		run := createTestRun()
		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf, WithTextOnly(true)).Write(run)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if buf.String() != run.CombinedText {
			t.Errorf("expected only combined text, got %q", buf.String())
		}
		if n != len(run.CombinedText) {
			t.Errorf("expected %d bytes, got %d", len(run.CombinedText), n)
		}
	})

	t.Run("aborted and failed status", func(t *testing.T) {
		t.Parallel()

		run := createTestRun()
		run.State = model.RunStateAborted
		var buf bytes.Buffer
		_, _ = NewSimpleWriter(&buf).Write(run)
		if !strings.Contains(buf.String(), "Aborted (partial results)") {
			t.Errorf("expected aborted status\n%s", buf.String())
		}

		run.State = model.RunStateFailed
		run.SetError(errors.New("invalid seed URL"))
		buf.Reset()
		_, _ = NewSimpleWriter(&buf).Write(run)
		if !strings.Contains(buf.String(), "Failed - invalid seed URL") {
			t.Errorf("expected failed status\n%s", buf.String())
		}
	})

	t.Run("no pages", func(t *testing.T) {
		t.Parallel()

		run := model.NewCrawlRun("https://example.com/")
		run.State = model.RunStateCompleted
		var buf bytes.Buffer
		_, _ = NewSimpleWriter(&buf).Write(run)
		if !strings.Contains(buf.String(), "No pages fetched") {
			t.Errorf("expected empty page notice\n%s", buf.String())
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("compact by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		if strings.Count(out, "\n") != 1 || !strings.HasSuffix(out, "\n") {
			t.Errorf("expected a single line, got %q", out)
		}

		var decoded model.CrawlRun
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Seed != "https://example.com/" || len(decoded.Pages) != 2 {
			t.Errorf("unexpected decoded run: %+v", decoded)
		}
	})

	t.Run("stats use snake case keys", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteStats(createTestRun().Stats); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var m map[string]any
		if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		for _, key := range []string{
			"pages_scraped", "pages_failed", "total_links_discovered", "pages_in_queue",
			"max_pages", "completion_percentage", "visited_urls", "remaining_queue",
		} {
			if _, ok := m[key]; !ok {
				t.Errorf("missing key %q", key)
			}
		}
	})

	t.Run("pretty print with version", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithPrettyPrint(), WithVersion("v1.2.3"))
		if _, err := w.Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"version\": \"v1.2.3\"") {
			t.Errorf("expected indented version field, got %s", buf.String())
		}

		var decoded JSONReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Run == nil || decoded.Run.Stats.PagesScraped != 3 {
			t.Errorf("expected wrapped run, got %+v", decoded.Run)
		}
	})

	t.Run("without html keeps the run intact", func(t *testing.T) {
		t.Parallel()

		run := createTestRun()
		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithoutHTML()).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "about us") {
			t.Error("expected HTML to be omitted")
		}
		if !strings.Contains(buf.String(), run.Pages[1].Hash) {
			t.Error("expected hashes to be kept")
		}
		if run.Pages[1].HTML == "" {
			t.Error("original run was modified")
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes tables and chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		for _, want := range []string{
			"# PageMiner Crawl Report",
			"## Statistics",
			"| Pages scraped",
			"100.0%",
			"```mermaid",
			"pie",
			"Fetched",
			"Failed",
			"[!NOTE]",
			"## Pages",
			"https://example.com/about",
			"## Remaining Queue",
			"- https://example.com/blog",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q\n%s", want, out)
			}
		}
	})

	t.Run("alerts follow run outcome", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name   string
			modify func(*model.CrawlRun)
			want   string
		}{
			{"all fetched", func(r *model.CrawlRun) { r.Stats.PagesFailed = 0 }, "[!TIP]"},
			{"aborted", func(r *model.CrawlRun) { r.State = model.RunStateAborted }, "[!WARNING]"},
			{"failed", func(r *model.CrawlRun) {
				r.State = model.RunStateFailed
				r.SetError(errors.New("boom"))
			}, "[!CAUTION]"},
			{"nothing fetched", func(r *model.CrawlRun) { r.Stats.PagesFailed = r.Stats.PagesScraped }, "[!IMPORTANT]"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				run := createTestRun()
				tt.modify(run)
				var buf bytes.Buffer
				if _, err := NewMarkdownWriter(&buf).Write(run); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !strings.Contains(buf.String(), tt.want) {
					t.Errorf("expected %s alert\n%s", tt.want, buf.String())
				}
			})
		}
	})

	t.Run("empty run has no chart", func(t *testing.T) {
		t.Parallel()

		run := model.NewCrawlRun("https://example.com/")
		run.State = model.RunStateCompleted
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "mermaid") {
			t.Error("expected no chart without visited pages")
		}
		if !strings.Contains(buf.String(), "No pages fetched.") {
			t.Error("expected empty page notice")
		}
	})
}

type failingWriter struct{ calls int }

func (f *failingWriter) Write(*model.CrawlRun) (int, error) {
	f.calls++
	return 0, errors.New("disk full")
}

func TestMultiWriterAndWriteAll(t *testing.T) {
	t.Parallel()

	t.Run("writes to every writer", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		mw := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))
		n, err := mw.Write(createTestRun())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+js.Len() {
			t.Errorf("expected %d bytes, got %d", text.Len()+js.Len(), n)
		}
	})

	t.Run("stops at first error", func(t *testing.T) {
		t.Parallel()

		bad := &failingWriter{}
		after := &failingWriter{}
		if _, err := NewMultiWriter(bad, after).Write(createTestRun()); err == nil {
			t.Fatal("expected error")
		}
		if after.calls != 0 {
			t.Error("expected later writers to be skipped")
		}
	})

	t.Run("write all runs", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		runs := []*model.CrawlRun{createTestRun(), createTestRun()}
		if _, err := WriteAll(NewJSONWriter(&buf), runs); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(buf.String(), "\n") != 2 {
			t.Errorf("expected two JSON lines, got %q", buf.String())
		}
	})
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
		{"日本語のタイトル", 5, "日本..."},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
