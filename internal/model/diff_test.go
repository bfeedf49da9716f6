package model

import (
	"slices"
	"testing"
)

func TestCompareRuns(t *testing.T) {
	t.Parallel()

	older := NewCrawlRun("https://example.com/")
	older.Pages = []Page{
		NewPage("https://example.com/", "home v1"),
		NewPage("https://example.com/about", "about"),
		NewPage("https://example.com/old", "old"),
	}
	newer := NewCrawlRun("https://example.com/")
	newer.Pages = []Page{
		NewPage("https://example.com/", "home v2"),
		NewPage("https://example.com/about", "about"),
		NewPage("https://example.com/new", "new"),
	}

	d := CompareRuns(older, newer)

	if d.OldRunID != older.ID || d.NewRunID != newer.ID {
		t.Error("run IDs not recorded")
	}
	if !slices.Equal(d.Added, []string{"https://example.com/new"}) {
		t.Errorf("Added = %v", d.Added)
	}
	if !slices.Equal(d.Removed, []string{"https://example.com/old"}) {
		t.Errorf("Removed = %v", d.Removed)
	}
	if !slices.Equal(d.Changed, []string{"https://example.com/"}) {
		t.Errorf("Changed = %v", d.Changed)
	}
	if d.Unchanged != 1 {
		t.Errorf("Unchanged = %d, want 1", d.Unchanged)
	}
	if !d.HasChanges() {
		t.Error("expected changes")
	}
}

func TestCompareRuns_Identical(t *testing.T) {
	t.Parallel()

	run := NewCrawlRun("https://example.com/")
	run.Pages = []Page{NewPage("https://example.com/", "same")}

	d := CompareRuns(run, run)
	if d.HasChanges() {
		t.Errorf("expected no changes, got %+v", d)
	}
	if d.Unchanged != 1 {
		t.Errorf("Unchanged = %d, want 1", d.Unchanged)
	}
}
