package catalog

import (
	_ "embed"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// FullBlock is the feature identifier that replaces a whole site with the
// blocked placeholder. Every site in the catalogue defines it.
const FullBlock = "fullBlock"

// RuleKind names how a rule finds the elements it removes.
type RuleKind string

// Rule kinds understood by the script generator and the static auditor.
const (
	// KindLink removes anchors whose href contains Pattern.
	KindLink RuleKind = "link"
	// KindSelector removes every element matching Selector.
	KindSelector RuleKind = "selector"
	// KindLabel removes elements whose aria-label contains Pattern,
	// ignoring case. Selector narrows the candidates (default "[aria-label]").
	KindLabel RuleKind = "label"
	// KindText removes elements matching Selector whose trimmed text
	// contains Pattern.
	KindText RuleKind = "text"
	// KindReplace replaces the document body with the blocked placeholder.
	KindReplace RuleKind = "replace"
)

// Rule describes one removal or replacement applied for a feature.
type Rule struct {
	Kind     RuleKind `yaml:"kind"`
	Selector string   `yaml:"selector,omitempty"`
	Pattern  string   `yaml:"pattern,omitempty"`
	// Closest, when set, removes the nearest ancestor matching this
	// selector instead of the matched element itself.
	Closest string `yaml:"closest,omitempty"`
}

// Feature is a blockable part of a site.
type Feature struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Rules       []Rule `yaml:"rules"`
}

// Site is a supported destination with its fixed list of features.
type Site struct {
	ID       string    `yaml:"id"`
	Name     string    `yaml:"name"`
	Icon     string    `yaml:"icon"`
	Gradient []string  `yaml:"gradient"`
	BaseURL  string    `yaml:"baseURL"`
	Hosts    []string  `yaml:"hosts"`
	Features []Feature `yaml:"features"`
}

// table is the parsed catalogue. It is never handed out directly.
type table struct {
	Sites []Site `yaml:"sites"`
	index map[string]int
}

var loadTable = sync.OnceValues(func() (*table, error) {
	return parse(catalogYAML)
})

// parse decodes and validates a catalogue document.
func parse(data []byte) (*table, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	t.index = make(map[string]int, len(t.Sites))
	for i, s := range t.Sites {
		t.index[s.ID] = i
	}
	return &t, nil
}

func (t *table) validate() error {
	seenSites := make(map[string]bool)
	for _, s := range t.Sites {
		if s.ID == "" {
			return fmt.Errorf("catalog: site without id")
		}
		if seenSites[s.ID] {
			return fmt.Errorf("catalog: duplicate site %q", s.ID)
		}
		seenSites[s.ID] = true

		seenFeatures := make(map[string]bool)
		for _, f := range s.Features {
			if f.ID == "" {
				return fmt.Errorf("catalog: site %q: feature without id", s.ID)
			}
			if seenFeatures[f.ID] {
				return fmt.Errorf("catalog: site %q: duplicate feature %q", s.ID, f.ID)
			}
			seenFeatures[f.ID] = true
			if len(f.Rules) == 0 {
				return fmt.Errorf("catalog: %s/%s: no rules", s.ID, f.ID)
			}
			for _, r := range f.Rules {
				if err := r.validate(); err != nil {
					return fmt.Errorf("catalog: %s/%s: %w", s.ID, f.ID, err)
				}
			}
		}
	}
	return nil
}

func (r Rule) validate() error {
	switch r.Kind {
	case KindLink, KindLabel:
		if r.Pattern == "" {
			return fmt.Errorf("%s rule needs a pattern", r.Kind)
		}
	case KindText:
		if r.Pattern == "" || r.Selector == "" {
			return fmt.Errorf("text rule needs a selector and a pattern")
		}
	case KindSelector:
		if r.Selector == "" {
			return fmt.Errorf("selector rule needs a selector")
		}
	case KindReplace:
	default:
		return fmt.Errorf("unknown rule kind %q", r.Kind)
	}
	return nil
}

// mustTable returns the embedded catalogue. The table is compiled into the
// binary, so a decode failure is a programming error.
func mustTable() *table {
	t, err := loadTable()
	if err != nil {
		panic(err)
	}
	return t
}

func (s Site) clone() Site {
	out := s
	out.Gradient = slices.Clone(s.Gradient)
	out.Hosts = slices.Clone(s.Hosts)
	out.Features = make([]Feature, len(s.Features))
	for i, f := range s.Features {
		out.Features[i] = f.clone()
	}
	return out
}

func (f Feature) clone() Feature {
	out := f
	out.Rules = slices.Clone(f.Rules)
	return out
}

// Sites returns every supported site in catalogue order.
func Sites() []Site {
	t := mustTable()
	out := make([]Site, len(t.Sites))
	for i, s := range t.Sites {
		out[i] = s.clone()
	}
	return out
}

// SiteIDs returns the identifiers of every supported site.
func SiteIDs() []string {
	t := mustTable()
	ids := make([]string, len(t.Sites))
	for i, s := range t.Sites {
		ids[i] = s.ID
	}
	return ids
}

// LookupSite returns the site with the given identifier.
func LookupSite(id string) (Site, bool) {
	t := mustTable()
	i, ok := t.index[id]
	if !ok {
		return Site{}, false
	}
	return t.Sites[i].clone(), true
}

// LookupFeature returns a feature of a site.
func LookupFeature(siteID, featureID string) (Feature, bool) {
	t := mustTable()
	i, ok := t.index[siteID]
	if !ok {
		return Feature{}, false
	}
	for _, f := range t.Sites[i].Features {
		if f.ID == featureID {
			return f.clone(), true
		}
	}
	return Feature{}, false
}

// FeatureIDs returns the feature identifiers of a site in catalogue order,
// or nil for an unknown site.
func FeatureIDs(siteID string) []string {
	t := mustTable()
	i, ok := t.index[siteID]
	if !ok {
		return nil
	}
	ids := make([]string, len(t.Sites[i].Features))
	for j, f := range t.Sites[i].Features {
		ids[j] = f.ID
	}
	return ids
}

// HasFeature reports whether the site defines the feature.
func HasFeature(siteID, featureID string) bool {
	return slices.Contains(FeatureIDs(siteID), featureID)
}

// SiteForURL maps a page URL to the site serving it. Hosts match exactly or
// as a parent domain, so "www.instagram.com" resolves to instagram.
func SiteForURL(rawURL string) (Site, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return Site{}, false
	}
	host := strings.ToLower(u.Hostname())

	t := mustTable()
	for _, s := range t.Sites {
		for _, h := range s.Hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return s.clone(), true
			}
		}
	}
	return Site{}, false
}

// Query returns the CSS selector that finds the candidate elements of the
// rule. Replace rules have no candidates and return "".
func (r Rule) Query() string {
	switch r.Kind {
	case KindLink:
		return `a[href*="` + cssString(r.Pattern) + `"]`
	case KindLabel:
		if r.Selector != "" {
			return r.Selector
		}
		return "[aria-label]"
	case KindSelector, KindText:
		return r.Selector
	default:
		return ""
	}
}

// cssString escapes s for use inside a double-quoted CSS string.
func cssString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
