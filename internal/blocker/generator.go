package blocker

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/crypto/sha3"

	"github.com/nao1215/quietfeed/internal/catalog"
)

const (
	// DefaultInitialDelay is how long the script waits before the first
	// application so the page has rendered its initial content.
	DefaultInitialDelay = 1 * time.Second

	// DefaultInterval is the period of the polling fallback that catches
	// changes the mutation observer missed.
	DefaultInterval = 2 * time.Second

	// PlaceholderID is the id of the root element of the blocked page.
	// The replace rule checks for it so that re-applying is a no-op.
	PlaceholderID = "quietfeed-blocked"
)

// Step is one enabled feature together with the rules that block it.
type Step struct {
	Feature string
	Rules   []catalog.Rule
}

// Generator builds blocking scripts. A Generator is immutable after New and
// safe for concurrent use.
type Generator struct {
	initialDelay time.Duration
	interval     time.Duration
	placeholders map[string]string
	sanitizer    *bluemonday.Policy
}

// Option configures a Generator.
type Option func(*Generator)

// WithInitialDelay sets the delay before the first application.
// Non-positive values are ignored.
func WithInitialDelay(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.initialDelay = d
		}
	}
}

// WithInterval sets the period of the polling fallback.
// Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.interval = d
		}
	}
}

// WithPlaceholder overrides the message shown on the blocked page of a site.
// The message is treated as plain text; any markup is stripped.
func WithPlaceholder(siteID, message string) Option {
	return func(g *Generator) {
		if message != "" {
			g.placeholders[siteID] = message
		}
	}
}

// New returns a Generator with the default timings and placeholders.
func New(opts ...Option) *Generator {
	g := &Generator{
		initialDelay: DefaultInitialDelay,
		interval:     DefaultInterval,
		placeholders: make(map[string]string),
		sanitizer:    bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var defaultGenerator = New()

// Generate builds the blocking script for a site using the default options.
// See Generator.Generate.
func Generate(siteID string, enabled []string) string {
	return defaultGenerator.Generate(siteID, enabled)
}

// Plan returns the steps that would be emitted for the site and enabled
// features, in catalogue order. Unknown sites and features are ignored.
// When fullBlock is enabled it is the only step: the replaced page has
// nothing left for other rules to remove.
func (g *Generator) Plan(siteID string, enabled []string) []Step {
	site, ok := catalog.LookupSite(siteID)
	if !ok || len(enabled) == 0 {
		return nil
	}

	if slices.Contains(enabled, catalog.FullBlock) {
		for _, f := range site.Features {
			if f.ID == catalog.FullBlock {
				return []Step{{Feature: f.ID, Rules: f.Rules}}
			}
		}
	}

	var steps []Step
	for _, f := range site.Features {
		if f.ID == catalog.FullBlock || !slices.Contains(enabled, f.ID) {
			continue
		}
		steps = append(steps, Step{Feature: f.ID, Rules: f.Rules})
	}
	return steps
}

// Generate builds the self-reapplying blocking script for a site and its
// enabled features. It returns "" when nothing is enabled or no rule
// applies. The output depends only on the arguments and the generator's
// options: identical input gives byte-identical output.
func (g *Generator) Generate(siteID string, enabled []string) string {
	steps := g.Plan(siteID, enabled)
	if len(steps) == 0 {
		return ""
	}

	var (
		defs  strings.Builder
		calls []string
	)
	for _, step := range steps {
		for i, rule := range step.Rules {
			name := functionName(step.Feature, i)
			g.writeRule(&defs, name, siteID, rule)
			calls = append(calls, name)
		}
	}

	var b strings.Builder
	b.WriteString("(function () {\n")
	b.WriteString("  try {\n")
	b.WriteString(defs.String())
	b.WriteString("    function applyAll() {\n")
	b.WriteString("      try {\n")
	for _, c := range calls {
		fmt.Fprintf(&b, "        %s();\n", c)
	}
	b.WriteString("      } catch (e) {}\n")
	b.WriteString("    }\n")
	fmt.Fprintf(&b, "    setTimeout(applyAll, %d);\n", g.initialDelay.Milliseconds())
	b.WriteString("    var root = document.documentElement || document.body;\n")
	b.WriteString("    if (root && typeof MutationObserver !== \"undefined\") {\n")
	b.WriteString("      new MutationObserver(function () { applyAll(); }).observe(root, { childList: true, subtree: true });\n")
	b.WriteString("    }\n")
	fmt.Fprintf(&b, "    setInterval(applyAll, %d);\n", g.interval.Milliseconds())
	b.WriteString("  } catch (e) {}\n")
	b.WriteString("})();\n")
	return b.String()
}

// writeRule emits one rule procedure. Every body swallows its own errors so
// a page with unexpected structure cannot stop the other rules.
func (g *Generator) writeRule(b *strings.Builder, name, siteID string, rule catalog.Rule) {
	fmt.Fprintf(b, "    function %s() {\n", name)
	b.WriteString("      try {\n")

	if rule.Kind == catalog.KindReplace {
		fmt.Fprintf(b, "        if (!document.body || document.getElementById(%s)) return;\n", jsString(PlaceholderID))
		fmt.Fprintf(b, "        document.body.innerHTML = %s;\n", jsString(g.placeholderMarkup(siteID)))
		b.WriteString("      } catch (e) {}\n")
		b.WriteString("    }\n")
		return
	}

	fmt.Fprintf(b, "        document.querySelectorAll(%s).forEach(function (el) {\n", jsString(rule.Query()))
	switch rule.Kind {
	case catalog.KindLabel:
		fmt.Fprintf(b, "          if ((el.getAttribute(\"aria-label\") || \"\").toLowerCase().indexOf(%s) === -1) return;\n",
			jsString(strings.ToLower(rule.Pattern)))
	case catalog.KindText:
		fmt.Fprintf(b, "          if ((el.textContent || \"\").trim().indexOf(%s) === -1) return;\n", jsString(rule.Pattern))
	}
	if rule.Closest != "" {
		fmt.Fprintf(b, "          var target = el.closest(%s) || el;\n", jsString(rule.Closest))
	} else {
		b.WriteString("          var target = el;\n")
	}
	b.WriteString("          if (target.parentNode) target.parentNode.removeChild(target);\n")
	b.WriteString("        });\n")
	b.WriteString("      } catch (e) {}\n")
	b.WriteString("    }\n")
}

// Placeholder returns the markup the replace rule assigns to the page body.
func (g *Generator) Placeholder(siteID string) string {
	return g.placeholderMarkup(siteID)
}

func (g *Generator) placeholderMarkup(siteID string) string {
	message, ok := g.placeholders[siteID]
	if !ok {
		name := siteID
		if site, found := catalog.LookupSite(siteID); found {
			name = site.Name
		}
		message = "You chose to block " + name + "."
	}

	return `<div id="` + PlaceholderID + `" style="display:flex;align-items:center;justify-content:center;` +
		`min-height:100vh;padding:24px;box-sizing:border-box;text-align:center;` +
		`font-family:-apple-system,BlinkMacSystemFont,sans-serif;background:#fafafa;color:#222;">` +
		`<div><h1 style="font-size:22px;margin:0 0 12px;">Access blocked</h1>` +
		`<p style="font-size:15px;color:#666;margin:0;">` + g.sanitizer.Sanitize(message) + `</p></div></div>`
}

// functionName derives a JavaScript identifier for a rule.
func functionName(featureID string, index int) string {
	var b strings.Builder
	b.WriteString("block_")
	for _, r := range featureID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	fmt.Fprintf(&b, "_%d", index)
	return b.String()
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		// Encoding a string cannot fail.
		panic(err)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Digest returns the hex SHA3-256 digest of a script. It identifies a
// script in logs, the injection history and HTTP ETags.
func Digest(script string) string {
	sum := sha3.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])
}
