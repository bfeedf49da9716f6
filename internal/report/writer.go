package report

import (
	"io"

	"github.com/SP963/pageminer/internal/model"
)

// Writer renders a crawl run to its destination.
type Writer interface {
	// Write renders run and returns the number of bytes written.
	Write(run *model.CrawlRun) (int, error)
}

// MultiWriter writes each run to several Writers in order.
// It stops at the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter returns a Writer that writes to all writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write renders run with every writer.
func (m *MultiWriter) Write(run *model.CrawlRun) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteAll renders runs one after another with w.
func WriteAll(w Writer, runs []*model.CrawlRun) (int, error) {
	var total int
	for _, run := range runs {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText describes how a run ended.
func statusText(run *model.CrawlRun) string {
	switch run.State {
	case model.RunStateAborted:
		return "Aborted (partial results)"
	case model.RunStateFailed:
		if run.ErrorMessage != "" {
			return "Failed - " + run.ErrorMessage
		}
		return "Failed"
	case model.RunStateCompleted:
		return "Complete"
	default:
		return "Running"
	}
}

const timeLayout = "2006-01-02 15:04:05 MST"
