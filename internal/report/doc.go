// Package report renders quietfeed data for people and tools.
//
// Three writers share the Writer interface:
//   - TextWriter: aligned terminal tables (olekukonko/tablewriter)
//   - JSONWriter: structured JSON for scripting
//   - MarkdownWriter: Markdown for sharing (nao1215/markdown)
//
// Each writer can render the site catalogue with the user's enabled
// features, audit results and the injection history.
package report
