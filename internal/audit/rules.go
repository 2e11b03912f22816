package audit

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"

	"github.com/nao1215/quietfeed/internal/blocker"
	"github.com/nao1215/quietfeed/internal/catalog"
)

// RuleResult is the number of elements one rule matches in a document.
type RuleResult struct {
	// Feature is the feature the rule belongs to.
	Feature string `json:"feature"`

	// Kind is the rule kind.
	Kind catalog.RuleKind `json:"kind"`

	// Query is the CSS query the rule starts from. Empty for replace rules.
	Query string `json:"query,omitempty"`

	// Matches is the number of distinct elements the rule would remove, or
	// 1 for a replace rule that would still replace the body.
	Matches int `json:"matches"`
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*goquery.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// Render writes the document as HTML.
func Render(w io.Writer, doc *goquery.Document) error {
	for _, n := range doc.Nodes {
		if err := html.Render(w, n); err != nil {
			return fmt.Errorf("failed to render HTML: %w", err)
		}
	}
	return nil
}

// RenderString returns the document as an HTML string.
func RenderString(doc *goquery.Document) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Evaluate counts, for every rule of every step, the elements the rule
// would remove from doc. The document is not modified; each rule is counted
// against the original page.
func Evaluate(doc *goquery.Document, steps []blocker.Step) []RuleResult {
	var out []RuleResult
	for _, step := range steps {
		for _, rule := range step.Rules {
			n := 0
			if rule.Kind == catalog.KindReplace {
				if needsReplace(doc) {
					n = 1
				}
			} else {
				n = len(targets(doc, rule))
			}
			out = append(out, RuleResult{
				Feature: step.Feature,
				Kind:    rule.Kind,
				Query:   rule.Query(),
				Matches: n,
			})
		}
	}
	return out
}

// Reconcile applies every rule of every step to doc in order, the way one
// applyAll pass does in the page. placeholder is the body markup for
// replace rules. It returns the number of elements removed and whether the
// body was replaced.
func Reconcile(doc *goquery.Document, steps []blocker.Step, placeholder string) (removed int, replaced bool) {
	for _, step := range steps {
		for _, rule := range step.Rules {
			if rule.Kind == catalog.KindReplace {
				if needsReplace(doc) {
					doc.Find("body").First().SetHtml(placeholder)
					replaced = true
				}
				continue
			}
			for _, target := range targets(doc, rule) {
				target.Remove()
				removed++
			}
		}
	}
	return removed, replaced
}

// needsReplace reports whether a replace rule would still change the page:
// there is a body and it does not hold the placeholder yet.
func needsReplace(doc *goquery.Document) bool {
	if doc.Find("body").Length() == 0 {
		return false
	}
	return doc.Find("#" + blocker.PlaceholderID).Length() == 0
}

// targets returns the distinct elements a non-replace rule removes.
func targets(doc *goquery.Document, rule catalog.Rule) []*goquery.Selection {
	query := rule.Query()
	if query == "" {
		return nil
	}

	fold := cases.Fold()
	pattern := rule.Pattern
	if rule.Kind == catalog.KindLabel {
		pattern = fold.String(pattern)
	}

	var (
		out  []*goquery.Selection
		seen = make(map[*html.Node]bool)
	)
	doc.Find(query).Each(func(_ int, el *goquery.Selection) {
		switch rule.Kind {
		case catalog.KindLabel:
			label, _ := el.Attr("aria-label")
			if !strings.Contains(fold.String(label), pattern) {
				return
			}
		case catalog.KindText:
			if !strings.Contains(strings.TrimSpace(el.Text()), pattern) {
				return
			}
		}

		target := el
		if rule.Closest != "" {
			if c := el.Closest(rule.Closest); c.Length() > 0 {
				target = c
			}
		}
		node := target.Get(0)
		if seen[node] || node.Parent == nil {
			return
		}
		seen[node] = true
		out = append(out, target)
	})
	return out
}
