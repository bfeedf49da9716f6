package model

import (
	"time"

	"github.com/google/uuid"
)

// Run states as stored in CrawlRun.State.
const (
	RunStateCompleted = "completed"
	RunStateAborted   = "aborted"
	RunStateFailed    = "failed"
)

// CrawlRun is one crawl invocation for a single seed URL.
// It carries everything the reports and the database need.
type CrawlRun struct {
	// ID uniquely identifies the run.
	ID string `json:"id"`

	// Seed is the URL the crawl started from.
	Seed string `json:"seed"`

	// StartedAt is when the crawl started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl stopped. Zero while running.
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// State is one of the RunState constants.
	State string `json:"state"`

	// Stats is the crawl statistics snapshot taken at the end of the run.
	Stats CrawlStats `json:"stats"`

	// Pages are the fetched pages in visitation order.
	Pages []Page `json:"pages,omitempty"`

	// CombinedText is the cleaned text of all pages, one block per page.
	CombinedText string `json:"combined_text,omitempty"`

	// PerformedSteps lists the pipeline steps executed for this run.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error holds the error that ended the run early, if any.
	// Not serialized; ErrorMessage carries the text.
	Error error `json:"-"`

	// ErrorMessage is the text of Error.
	ErrorMessage string `json:"error,omitempty"`
}

// NewCrawlRun creates a CrawlRun for seed with a fresh ID.
func NewCrawlRun(seed string) *CrawlRun {
	return &CrawlRun{
		ID:        uuid.NewString(),
		Seed:      seed,
		StartedAt: time.Now(),
		Pages:     make([]Page, 0),
	}
}

// Corpus returns the run's pages as a Corpus.
func (r *CrawlRun) Corpus() Corpus {
	return NewCorpus(r.Pages...)
}

// Duration returns how long the run took, or zero if it has not finished.
func (r *CrawlRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// SetError records err as the reason the run ended early.
func (r *CrawlRun) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}
