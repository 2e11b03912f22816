package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/quietfeed/internal/audit"
	"github.com/nao1215/quietfeed/internal/database"
)

// JSONWriter outputs reports in JSON format for scripting.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
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

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteSites outputs the catalogue as a JSON array.
func (w *JSONWriter) WriteSites(sites []SiteStatus) (int, error) {
	if sites == nil {
		sites = []SiteStatus{}
	}
	return w.writeJSON(sites)
}

// auditSummary wraps audit results with totals.
type auditSummary struct {
	Files   int            `json:"files"`
	Removed int            `json:"removed"`
	Failed  int            `json:"failed"`
	Results []audit.Result `json:"results"`
}

// WriteAudit outputs the audit results with totals.
func (w *JSONWriter) WriteAudit(results []audit.Result) (int, error) {
	summary := auditSummary{Files: len(results), Results: results}
	if summary.Results == nil {
		summary.Results = []audit.Result{}
	}
	for _, r := range results {
		summary.Removed += r.Removed
		if r.Error != "" {
			summary.Failed++
		}
	}
	return w.writeJSON(summary)
}

// injectionJSON is the JSON form of a database.Injection.
type injectionJSON struct {
	ID        int64    `json:"id"`
	Site      string   `json:"site"`
	URL       string   `json:"url"`
	Features  []string `json:"features"`
	Digest    string   `json:"digest"`
	Timestamp string   `json:"timestamp"`
}

// WriteHistory outputs the injection log as a JSON array.
func (w *JSONWriter) WriteHistory(entries []database.Injection) (int, error) {
	out := make([]injectionJSON, 0, len(entries))
	for _, e := range entries {
		features := e.Features
		if features == nil {
			features = []string{}
		}
		out = append(out, injectionJSON{
			ID:        e.ID,
			Site:      e.Site,
			URL:       e.URL,
			Features:  features,
			Digest:    e.Digest,
			Timestamp: e.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return w.writeJSON(out)
}

// writeJSON marshals the given value to JSON and writes it to the output.
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
