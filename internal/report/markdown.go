package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/quietfeed/internal/audit"
	"github.com/nao1215/quietfeed/internal/database"
)

// MarkdownWriter outputs reports in Markdown format for sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteSites outputs one section per site with a feature table.
func (w *MarkdownWriter) WriteSites(sites []SiteStatus) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Blockable features")
	md.PlainText("")

	for _, s := range sites {
		md.H2(s.Name)
		md.PlainText("")
		md.PlainTextf("Site ID `%s`, opens %s", s.ID, s.BaseURL)
		md.PlainText("")

		rows := make([][]string, 0, len(s.Features))
		for _, f := range s.Features {
			status := ""
			if f.Enabled {
				status = "✅ blocked"
			}
			rows = append(rows, []string{"`" + f.ID + "`", f.Name, f.Description, status})
		}
		md.Table(markdown.TableSet{
			Header: []string{"ID", "Feature", "Description", "Status"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteAudit outputs an audit summary, a removal chart and per-file tables.
func (w *MarkdownWriter) WriteAudit(results []audit.Result) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Audit Report")
	md.PlainText("")

	var removed, failed, unstable int
	for _, r := range results {
		removed += r.Removed
		if r.Error != "" {
			failed++
		} else if !r.Stable {
			unstable++
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Files", strconv.Itoa(len(results))},
			{"Elements removed", strconv.Itoa(removed)},
			{"Failed", strconv.Itoa(failed)},
		},
	})
	md.PlainText("")

	switch {
	case unstable > 0:
		md.Warningf("%d file(s) changed on a second pass. The rules do not converge.", unstable)
	case failed > 0:
		md.Importantf("%d file(s) could not be audited.", failed)
	case removed == 0:
		md.Note("No rule matched any element. The saved pages may predate the current markup.")
	default:
		md.Tip("Every file converged after one pass.")
	}
	md.PlainText("")

	w.writePieChart(md, results)

	for _, r := range results {
		md.H2(r.Path)
		md.PlainText("")
		if r.Error != "" {
			md.Cautionf("Audit failed: %s", r.Error)
			md.PlainText("")
			continue
		}

		rows := make([][]string, 0, len(r.Rules))
		for _, rr := range r.Rules {
			query := rr.Query
			if query == "" {
				query = "-"
			}
			rows = append(rows, []string{rr.Feature, string(rr.Kind), "`" + truncateString(query, 60) + "`", strconv.Itoa(rr.Matches)})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Feature", "Kind", "Query", "Matches"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// writePieChart writes a mermaid pie chart of matches per feature.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, results []audit.Result) {
	var (
		order  []string
		counts = make(map[string]uint64)
	)
	for _, r := range results {
		for _, rr := range r.Rules {
			if rr.Matches == 0 {
				continue
			}
			if _, ok := counts[rr.Feature]; !ok {
				order = append(order, rr.Feature)
			}
			counts[rr.Feature] += uint64(rr.Matches)
		}
	}
	if len(order) == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Matches by feature"),
		piechart.WithShowData(true),
	)
	for _, feature := range order {
		chart.LabelAndIntValue(feature, counts[feature])
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// WriteHistory outputs the injection log as a table.
func (w *MarkdownWriter) WriteHistory(entries []database.Injection) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Injection History")
	md.PlainText("")

	if len(entries) == 0 {
		md.PlainText("No injections recorded.")
		md.PlainText("")
	} else {
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{
				e.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"),
				e.Site,
				truncateString(e.URL, 60),
				strings.Join(e.Features, ", "),
				"`" + shortDigest(e.Digest) + "`",
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Time", "Site", "URL", "Features", "Digest"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [quietfeed](https://github.com/nao1215/quietfeed)*")
}

// truncateString truncates a string to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
