package crawler

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/SP963/pageminer/internal/model"
)

// upperText is a TextExtractor that upper-cases its input and fails on "bad".
type upperText struct{}

func (upperText) ExtractText(html string) (string, error) {
	if html == "bad" {
		return "", errors.New("bad html")
	}
	return strings.ToUpper(html), nil
}

func TestAggregator(t *testing.T) {
	t.Parallel()

	t.Run("keeps pages in insertion order without duplicates", func(t *testing.T) {
		t.Parallel()

		a := NewAggregator(upperText{})
		a.Add(model.NewPage("http://example.com/a", "a"))
		a.Add(model.NewPage("http://example.com/b", "b"))
		if a.Add(model.NewPage("http://example.com/a", "again")) {
			t.Error("duplicate page should be ignored")
		}

		if a.Len() != 2 {
			t.Fatalf("Len() = %d, want 2", a.Len())
		}
		want := []string{"http://example.com/a", "http://example.com/b"}
		if got := a.Corpus().URLs(); !slices.Equal(got, want) {
			t.Errorf("Corpus().URLs() = %v, want %v", got, want)
		}
		if html, _ := a.Corpus().HTML("http://example.com/a"); html != "a" {
			t.Errorf("first page HTML = %q, want a", html)
		}
	})

	t.Run("combined text format", func(t *testing.T) {
		t.Parallel()

		a := NewAggregator(upperText{})
		if got := a.CombinedText(); got != "" {
			t.Errorf("CombinedText() on empty aggregator = %q", got)
		}

		a.Add(model.NewPage("http://example.com/a", "hello"))
		a.Add(model.NewPage("http://example.com/b", "bad"))

		delim := strings.Repeat("=", 80)
		want := "=== PAGE 1: http://example.com/a ===\nHELLO\n" + delim + "\n" +
			"=== PAGE 2: http://example.com/b ===\n\n" + delim + "\n"
		if got := a.CombinedText(); got != want {
			t.Errorf("CombinedText() = %q, want %q", got, want)
		}
	})

	t.Run("stats", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		for _, u := range []string{"seed", "b", "c", "d"} {
			f.Admit(u)
		}
		for range 2 {
			u, _ := f.Dequeue()
			f.MarkVisited(u)
		}

		a := NewAggregator(upperText{})
		a.Add(model.NewPage("seed", "x"))

		s := a.Stats(f, 8)
		if s.PagesScraped != 2 || s.PagesFailed != 1 || s.PagesSucceeded() != 1 {
			t.Errorf("scraped/failed/succeeded = %d/%d/%d, want 2/1/1",
				s.PagesScraped, s.PagesFailed, s.PagesSucceeded())
		}
		if s.TotalLinksDiscovered != 3 {
			t.Errorf("TotalLinksDiscovered = %d, want 3", s.TotalLinksDiscovered)
		}
		if s.PagesInQueue != 2 || !slices.Equal(s.RemainingQueue, []string{"c", "d"}) {
			t.Errorf("queue = %d %v", s.PagesInQueue, s.RemainingQueue)
		}
		if s.CompletionPercentage != 25 {
			t.Errorf("CompletionPercentage = %v, want 25", s.CompletionPercentage)
		}
	})

	t.Run("stats of an empty frontier", func(t *testing.T) {
		t.Parallel()

		s := NewAggregator(upperText{}).Stats(NewFrontier(), 0)
		if s.TotalLinksDiscovered != 0 || s.CompletionPercentage != 0 {
			t.Errorf("Stats() = %+v", s)
		}
	})
}
