package webview

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/nao1215/quietfeed/internal/blocker"
	"github.com/nao1215/quietfeed/internal/catalog"
)

// Executor runs a script in the context of the loaded page.
type Executor interface {
	ExecuteScript(ctx context.Context, script string) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, script string) error

// ExecuteScript calls f.
func (f ExecutorFunc) ExecuteScript(ctx context.Context, script string) error {
	return f(ctx, script)
}

// Recorder stores executed injections. database.DB implements it.
type Recorder interface {
	RecordInjection(ctx context.Context, site, url string, features []string, digest string) error
}

// Selection provides the enabled features of a site. settings.Service
// implements it.
type Selection interface {
	Enabled(site string) []string
}

// Outcome describes what the bridge did for one page load.
type Outcome struct {
	// Site is the catalogue site of the page, or "" if none matched.
	Site string

	// Features are the enabled features the script was built from.
	Features []string

	// Digest is the SHA3-256 digest of the script, or "" if none was built.
	Digest string

	// Executed reports whether a script was handed to the executor.
	Executed bool
}

// Bridge generates and executes blocking scripts on page loads.
type Bridge struct {
	selection Selection
	generator *blocker.Generator
	recorder  Recorder
	logger    *slog.Logger
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithGenerator sets the script generator.
func WithGenerator(g *blocker.Generator) BridgeOption {
	return func(b *Bridge) {
		if g != nil {
			b.generator = g
		}
	}
}

// WithRecorder records every executed script.
func WithRecorder(r Recorder) BridgeOption {
	return func(b *Bridge) {
		b.recorder = r
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBridge creates a Bridge reading enabled features from selection.
func NewBridge(selection Selection, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		selection: selection,
		generator: blocker.New(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnPageLoaded handles a page-load-finished event for rawURL. It returns an
// error only when the executor fails; a failing recorder is logged.
func (b *Bridge) OnPageLoaded(ctx context.Context, rawURL string, exec Executor) (Outcome, error) {
	site, ok := catalog.SiteForURL(rawURL)
	if !ok {
		b.logger.Debug("page not in catalogue", "url", rawURL)
		return Outcome{}, nil
	}

	out := Outcome{
		Site:     site.ID,
		Features: b.selection.Enabled(site.ID),
	}

	script := b.generator.Generate(site.ID, out.Features)
	if script == "" {
		b.logger.Debug("nothing to block", "site", site.ID, "url", rawURL)
		return out, nil
	}
	out.Digest = blocker.Digest(script)

	if err := exec.ExecuteScript(ctx, script); err != nil {
		return out, fmt.Errorf("failed to execute blocking script on %s: %w", site.ID, err)
	}
	out.Executed = true

	b.logger.Info("blocking script executed",
		"site", site.ID,
		"url", rawURL,
		"features", out.Features,
		"digest", out.Digest,
	)

	if b.recorder != nil {
		if err := b.recorder.RecordInjection(ctx, site.ID, stripQuery(rawURL), out.Features, out.Digest); err != nil {
			b.logger.Warn("failed to record injection", "site", site.ID, "error", err)
		}
	}
	return out, nil
}

// stripQuery removes the query and fragment, which can carry tracking or
// session parameters.
func stripQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
