package report

import (
	"encoding/json"
	"io"

	"github.com/SP963/pageminer/internal/model"
)

// JSONWriter outputs runs as JSON, one document per run.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string

	// version, when set, wraps each run in a JSONReport.
	version string

	// omitHTML drops page HTML to keep the document small.
	omitHTML bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output with the given prefix and indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion wraps each run in a JSONReport carrying version.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// WithoutHTML leaves page HTML out of the output. URLs, titles and hashes
// are kept.
func WithoutHTML() JSONWriterOption {
	return func(w *JSONWriter) {
		w.omitHTML = true
	}
}

// NewJSONWriter creates a JSONWriter that writes to output.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport is a run together with the version of the tool that made it.
type JSONReport struct {
	Version string          `json:"version"`
	Run     *model.CrawlRun `json:"run"`
}

// Write outputs run as JSON followed by a newline.
func (w *JSONWriter) Write(run *model.CrawlRun) (int, error) {
	if w.omitHTML {
		run = withoutHTML(run)
	}

	var v any = run
	if w.version != "" {
		v = &JSONReport{Version: w.version, Run: run}
	}
	return w.writeJSON(v)
}

// WriteStats outputs only the stats snapshot, the shape returned by
// Controller.Stats.
func (w *JSONWriter) WriteStats(stats model.CrawlStats) (int, error) {
	return w.writeJSON(stats)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// withoutHTML returns a shallow copy of run whose pages carry no HTML.
func withoutHTML(run *model.CrawlRun) *model.CrawlRun {
	cp := *run
	cp.Pages = make([]model.Page, len(run.Pages))
	for i, p := range run.Pages {
		p.HTML = ""
		cp.Pages[i] = p
	}
	return &cp
}
