package catalog

import (
	"strings"
	"testing"
)

func TestEmbeddedCatalogLoads(t *testing.T) {
	t.Parallel()

	if _, err := loadTable(); err != nil {
		t.Fatalf("embedded catalogue failed to load: %v", err)
	}
}

func TestSites(t *testing.T) {
	t.Parallel()

	t.Run("has the three supported sites in order", func(t *testing.T) {
		t.Parallel()
		ids := SiteIDs()
		want := []string{"instagram", "facebook", "youtube"}
		if len(ids) != len(want) {
			t.Fatalf("expected %d sites, got %d (%v)", len(want), len(ids), ids)
		}
		for i := range want {
			if ids[i] != want[i] {
				t.Errorf("site %d: expected %q, got %q", i, want[i], ids[i])
			}
		}
	})

	t.Run("every site defines fullBlock", func(t *testing.T) {
		t.Parallel()
		for _, s := range Sites() {
			f, ok := LookupFeature(s.ID, FullBlock)
			if !ok {
				t.Errorf("site %q has no %s feature", s.ID, FullBlock)
				continue
			}
			if len(f.Rules) != 1 || f.Rules[0].Kind != KindReplace {
				t.Errorf("site %q: fullBlock should be a single replace rule, got %+v", s.ID, f.Rules)
			}
		}
	})

	t.Run("every site has display metadata", func(t *testing.T) {
		t.Parallel()
		for _, s := range Sites() {
			if s.Name == "" || s.BaseURL == "" || len(s.Hosts) == 0 {
				t.Errorf("site %q is missing metadata: %+v", s.ID, s)
			}
			if len(s.Gradient) != 2 {
				t.Errorf("site %q: expected two gradient colours, got %v", s.ID, s.Gradient)
			}
		}
	})
}

func TestAccessorsReturnCopies(t *testing.T) {
	t.Parallel()

	s, ok := LookupSite("instagram")
	if !ok {
		t.Fatal("expected instagram to exist")
	}
	s.Features[0].Rules[0].Pattern = "/mutated/"
	s.Hosts[0] = "evil.example"

	again, _ := LookupSite("instagram")
	if again.Features[0].Rules[0].Pattern == "/mutated/" {
		t.Error("mutating a returned rule changed the catalogue")
	}
	if again.Hosts[0] == "evil.example" {
		t.Error("mutating returned hosts changed the catalogue")
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		site    string
		feature string
		want    bool
	}{
		{name: "instagram reels", site: "instagram", feature: "reels", want: true},
		{name: "youtube shorts", site: "youtube", feature: "shorts", want: true},
		{name: "reels is not a youtube feature", site: "youtube", feature: "reels", want: false},
		{name: "unknown site", site: "myspace", feature: "reels", want: false},
		{name: "empty feature", site: "facebook", feature: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := HasFeature(tt.site, tt.feature); got != tt.want {
				t.Errorf("HasFeature(%q, %q) = %v, want %v", tt.site, tt.feature, got, tt.want)
			}
			_, ok := LookupFeature(tt.site, tt.feature)
			if ok != tt.want {
				t.Errorf("LookupFeature(%q, %q) ok = %v, want %v", tt.site, tt.feature, ok, tt.want)
			}
		})
	}

	if ids := FeatureIDs("myspace"); ids != nil {
		t.Errorf("expected nil feature ids for unknown site, got %v", ids)
	}
}

func TestSiteForURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url    string
		want   string
		wantOK bool
	}{
		{url: "https://www.instagram.com/reels/abc/", want: "instagram", wantOK: true},
		{url: "https://instagram.com/", want: "instagram", wantOK: true},
		{url: "https://m.facebook.com/home.php", want: "facebook", wantOK: true},
		{url: "https://M.YOUTUBE.COM/watch?v=1", want: "youtube", wantOK: true},
		{url: "https://youtu.be/xyz", want: "youtube", wantOK: true},
		{url: "https://notinstagram.com/", wantOK: false},
		{url: "https://example.com/instagram.com", wantOK: false},
		{url: "not a url", wantOK: false},
		{url: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			s, ok := SiteForURL(tt.url)
			if ok != tt.wantOK {
				t.Fatalf("SiteForURL(%q) ok = %v, want %v", tt.url, ok, tt.wantOK)
			}
			if ok && s.ID != tt.want {
				t.Errorf("SiteForURL(%q) = %q, want %q", tt.url, s.ID, tt.want)
			}
		})
	}
}

func TestParseRejectsBrokenTables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "unknown rule kind",
			doc:     "sites:\n  - id: a\n    features:\n      - id: f\n        rules:\n          - kind: explode\n",
			wantErr: "unknown rule kind",
		},
		{
			name:    "link without pattern",
			doc:     "sites:\n  - id: a\n    features:\n      - id: f\n        rules:\n          - kind: link\n",
			wantErr: "needs a pattern",
		},
		{
			name:    "duplicate site",
			doc:     "sites:\n  - id: a\n  - id: a\n",
			wantErr: "duplicate site",
		},
		{
			name:    "duplicate feature",
			doc:     "sites:\n  - id: a\n    features:\n      - id: f\n        rules: [{kind: replace}]\n      - id: f\n        rules: [{kind: replace}]\n",
			wantErr: "duplicate feature",
		},
		{
			name:    "feature without rules",
			doc:     "sites:\n  - id: a\n    features:\n      - id: f\n",
			wantErr: "no rules",
		},
		{
			name:    "invalid yaml",
			doc:     "sites: [",
			wantErr: "decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRuleQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule Rule
		want string
	}{
		{name: "link", rule: Rule{Kind: KindLink, Pattern: "/reels/"}, want: `a[href*="/reels/"]`},
		{name: "link escapes quotes", rule: Rule{Kind: KindLink, Pattern: `/a"b\`}, want: `a[href*="/a\"b\\"]`},
		{name: "label default", rule: Rule{Kind: KindLabel, Pattern: "stories"}, want: "[aria-label]"},
		{name: "label scoped", rule: Rule{Kind: KindLabel, Selector: "div[aria-label]", Pattern: "stories"}, want: "div[aria-label]"},
		{name: "selector", rule: Rule{Kind: KindSelector, Selector: "#comments"}, want: "#comments"},
		{name: "text", rule: Rule{Kind: KindText, Selector: "span", Pattern: "x"}, want: "span"},
		{name: "replace", rule: Rule{Kind: KindReplace}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.rule.Query(); got != tt.want {
				t.Errorf("Query() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLabelRulesSpareCommonNavigation(t *testing.T) {
	t.Parallel()

	// aria-labels of controls no feature is meant to hide.
	labels := []string{"Search history", "Activity history", "Watch history", "Home", "Settings"}
	for _, site := range Sites() {
		for _, f := range site.Features {
			for _, r := range f.Rules {
				if r.Kind != KindLabel {
					continue
				}
				pattern := strings.ToLower(r.Pattern)
				for _, label := range labels {
					if strings.Contains(strings.ToLower(label), pattern) {
						t.Errorf("%s/%s label rule %q matches %q", site.ID, f.ID, r.Pattern, label)
					}
				}
			}
		}
	}
}
