package report

import (
	"io"
	"slices"

	"github.com/nao1215/quietfeed/internal/audit"
	"github.com/nao1215/quietfeed/internal/catalog"
	"github.com/nao1215/quietfeed/internal/database"
)

// Writer defines the interface for report output.
type Writer interface {
	// WriteSites outputs the catalogue with enabled flags.
	WriteSites(sites []SiteStatus) (int, error)

	// WriteAudit outputs the results of an audit run.
	WriteAudit(results []audit.Result) (int, error)

	// WriteHistory outputs injection log entries.
	WriteHistory(entries []database.Injection) (int, error)
}

// FeatureStatus is one feature of a site and whether the user blocks it.
type FeatureStatus struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

// SiteStatus is a catalogue site with the user's selection applied.
type SiteStatus struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Icon     string          `json:"icon"`
	Gradient []string        `json:"gradient"`
	BaseURL  string          `json:"baseUrl"`
	Features []FeatureStatus `json:"features"`
}

// EnabledCount returns the number of enabled features.
func (s SiteStatus) EnabledCount() int {
	n := 0
	for _, f := range s.Features {
		if f.Enabled {
			n++
		}
	}
	return n
}

// NewSiteStatus builds the status of one catalogue site.
func NewSiteStatus(site catalog.Site, enabled []string) SiteStatus {
	status := SiteStatus{
		ID:       site.ID,
		Name:     site.Name,
		Icon:     site.Icon,
		Gradient: slices.Clone(site.Gradient),
		BaseURL:  site.BaseURL,
		Features: make([]FeatureStatus, 0, len(site.Features)),
	}
	for _, f := range site.Features {
		status.Features = append(status.Features, FeatureStatus{
			ID:          f.ID,
			Name:        f.Name,
			Description: f.Description,
			Enabled:     slices.Contains(enabled, f.ID),
		})
	}
	return status
}

// NewSiteStatuses builds the status of every catalogue site. enabled
// returns the enabled features of a site and may be nil.
func NewSiteStatuses(enabled func(site string) []string) []SiteStatus {
	sites := catalog.Sites()
	out := make([]SiteStatus, 0, len(sites))
	for _, site := range sites {
		var ids []string
		if enabled != nil {
			ids = enabled(site.ID)
		}
		out = append(out, NewSiteStatus(site, ids))
	}
	return out
}

// MultiWriter writes to multiple Writers in turn and stops on the first
// error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteSites outputs the catalogue to all configured Writers.
func (m *MultiWriter) WriteSites(sites []SiteStatus) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteSites(sites) })
}

// WriteAudit outputs audit results to all configured Writers.
func (m *MultiWriter) WriteAudit(results []audit.Result) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteAudit(results) })
}

// WriteHistory outputs the injection log to all configured Writers.
func (m *MultiWriter) WriteHistory(entries []database.Injection) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteHistory(entries) })
}

func (m *MultiWriter) each(write func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := write(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// shortDigest abbreviates a hex digest for tables.
func shortDigest(d string) string {
	if len(d) <= 12 {
		return d
	}
	return d[:12]
}

// yesNo renders a boolean for tables.
func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
