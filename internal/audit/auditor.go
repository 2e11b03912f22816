package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/quietfeed/internal/blocker"
	"github.com/nao1215/quietfeed/internal/catalog"
)

// ErrUnknownSite is returned when the audited site is not in the catalogue.
var ErrUnknownSite = errors.New("unknown site")

// Result is the audit of one HTML file.
type Result struct {
	// Path is the audited file.
	Path string `json:"path"`

	// Site is the site the rules were taken from.
	Site string `json:"site"`

	// Rules holds the per-rule match counts against the original file.
	Rules []RuleResult `json:"rules"`

	// Removed is the number of elements one reconcile pass removed.
	Removed int `json:"removed"`

	// Replaced reports whether the body was replaced by the placeholder.
	Replaced bool `json:"replaced"`

	// Stable reports whether a second reconcile pass left the document
	// unchanged.
	Stable bool `json:"stable"`

	// Error is set when the file could not be read or parsed.
	Error string `json:"error,omitempty"`
}

// Matches returns the total of all rule match counts.
func (r Result) Matches() int {
	n := 0
	for _, rr := range r.Rules {
		n += rr.Matches
	}
	return n
}

// Auditor runs rule sets against HTML files.
type Auditor struct {
	generator   *blocker.Generator
	concurrency int
	logger      *slog.Logger
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithGenerator sets the generator used to plan rules and render the
// full-block placeholder.
func WithGenerator(g *blocker.Generator) Option {
	return func(a *Auditor) {
		if g != nil {
			a.generator = g
		}
	}
}

// WithConcurrency sets the maximum number of files audited at once.
// Default is 4 if not specified.
func WithConcurrency(n int) Option {
	return func(a *Auditor) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Auditor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Auditor.
func New(opts ...Option) *Auditor {
	a := &Auditor{
		generator:   blocker.New(),
		concurrency: 4,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AuditFile audits a single file. Read and parse failures are reported in
// Result.Error.
func (a *Auditor) AuditFile(site string, enabled []string, path string) Result {
	result := Result{Path: path, Site: site}

	f, err := os.Open(path) //nolint:gosec // path is chosen by the user
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	steps := a.generator.Plan(site, enabled)
	placeholder := a.generator.Placeholder(site)

	result.Rules = Evaluate(doc, steps)
	result.Removed, result.Replaced = Reconcile(doc, steps, placeholder)

	first, err := RenderString(doc)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	removed, replaced := Reconcile(doc, steps, placeholder)
	second, err := RenderString(doc)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Stable = removed == 0 && !replaced && first == second

	return result
}

// AuditFiles audits paths concurrently and returns the results in input
// order. Per-file failures are recorded in each Result; the returned error
// is non-nil only for an unknown site or a cancelled context.
func (a *Auditor) AuditFiles(ctx context.Context, site string, enabled []string, paths []string) ([]Result, error) {
	if _, ok := catalog.LookupSite(site); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSite, site)
	}

	a.logger.Info("starting audit",
		"site", site,
		"files", len(paths),
		"concurrency", a.concurrency,
	)
	startTime := time.Now()

	// Each goroutine writes only its own index.
	results := make([]Result, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			results[i] = a.AuditFile(site, enabled, path)
			if results[i].Error != "" {
				a.logger.Warn("audit failed", "path", path, "error", results[i].Error)
				return nil
			}
			a.logger.Debug("audited file",
				"path", path,
				"removed", results[i].Removed,
				"stable", results[i].Stable,
			)
			return nil
		})
	}

	err := g.Wait()

	a.logger.Info("audit complete",
		"files", len(paths),
		"elapsed", time.Since(startTime),
	)
	return results, err
}
