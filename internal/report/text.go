package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/nao1215/quietfeed/internal/audit"
	"github.com/nao1215/quietfeed/internal/database"
)

// TextWriter outputs human-readable tables for terminal display.
type TextWriter struct {
	baseWriter

	// verbose adds per-rule rows to audit output.
	verbose bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithVerbose enables per-rule detail in audit output.
func WithVerbose(verbose bool) TextWriterOption {
	return func(w *TextWriter) {
		w.verbose = verbose
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteSites outputs one table row per feature.
func (w *TextWriter) WriteSites(sites []SiteStatus) (int, error) {
	rows := make([][]string, 0)
	for _, s := range sites {
		for _, f := range s.Features {
			mark := ""
			if f.Enabled {
				mark = "blocked"
			}
			rows = append(rows, []string{s.ID, f.ID, f.Name, mark})
		}
	}
	return w.render([]string{"Site", "Feature", "Name", "Status"}, rows, "")
}

// WriteAudit outputs a summary row per file, and per rule in verbose mode.
func (w *TextWriter) WriteAudit(results []audit.Result) (int, error) {
	var rows [][]string
	for _, r := range results {
		if r.Error != "" {
			rows = append(rows, []string{r.Path, "-", "-", "-", "error: " + r.Error})
			continue
		}
		rows = append(rows, []string{
			r.Path,
			strconv.Itoa(r.Matches()),
			strconv.Itoa(r.Removed),
			yesNo(r.Replaced),
			yesNo(r.Stable),
		})
		if !w.verbose {
			continue
		}
		for _, rr := range r.Rules {
			rows = append(rows, []string{
				"  " + rr.Feature + " (" + string(rr.Kind) + ")",
				strconv.Itoa(rr.Matches),
				"", "", "",
			})
		}
	}

	footer := ""
	if len(results) > 0 {
		footer = fmt.Sprintf("%d file(s) audited\n", len(results))
	}
	return w.render([]string{"File", "Matches", "Removed", "Replaced", "Stable"}, rows, footer)
}

// WriteHistory outputs the injection log, newest first.
func (w *TextWriter) WriteHistory(entries []database.Injection) (int, error) {
	if len(entries) == 0 {
		return io.WriteString(w.output, "No injections recorded.\n")
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Site,
			e.URL,
			strings.Join(e.Features, ","),
			shortDigest(e.Digest),
		})
	}
	return w.render([]string{"Time", "Site", "URL", "Features", "Digest"}, rows, "")
}

// render draws a table into a buffer first so the byte count covers the
// whole table.
func (w *TextWriter) render(header []string, rows [][]string, footer string) (int, error) {
	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	table.Header(cells...)
	if err := table.Bulk(rows); err != nil {
		return 0, fmt.Errorf("failed to build table: %w", err)
	}
	if err := table.Render(); err != nil {
		return 0, fmt.Errorf("failed to render table: %w", err)
	}
	buf.WriteString(footer)

	return w.output.Write(buf.Bytes())
}
