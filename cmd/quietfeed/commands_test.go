package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/quietfeed/internal/audit"
	"github.com/nao1215/quietfeed/internal/blocker"
	"github.com/nao1215/quietfeed/internal/catalog"
	"github.com/nao1215/quietfeed/internal/config"
	"github.com/nao1215/quietfeed/internal/database"
	"github.com/nao1215/quietfeed/internal/report"
	"github.com/nao1215/quietfeed/internal/settings"
)

const testConfig = `defaults:
  enabled: [reels]
sites:
  instagram:
    enabled: [reels, explore]
`

// cli runs the root command against an isolated data directory and
// configuration file.
type cli struct {
	dir    string
	config string
}

func newCLI(t *testing.T) *cli {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, ".quietfeed")
	if err := os.WriteFile(path, []byte(testConfig), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return &cli{dir: dir, config: path}
}

func (c *cli) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--data-dir", c.dir, "-c", c.config))
	err := root.Execute()
	return out.String(), err
}

func (c *cli) mustRun(t *testing.T, args ...string) string {
	t.Helper()

	out, err := c.run(t, args...)
	if err != nil {
		t.Fatalf("quietfeed %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestBuildConfigErrors(t *testing.T) {
	t.Parallel()

	t.Run("explicit config file must exist", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		root.SetOut(io.Discard)
		root.SetErr(io.Discard)
		root.SetArgs([]string{"sites", "-c", filepath.Join(t.TempDir(), "missing.yaml")})
		if err := root.Execute(); !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("unknown store", func(t *testing.T) {
		t.Parallel()

		c := newCLI(t)
		if _, err := c.run(t, "sites", "--store", "redis"); !errors.Is(err, config.ErrUnknownStore) {
			t.Errorf("expected ErrUnknownStore, got %v", err)
		}
	})

	t.Run("format flags are exclusive", func(t *testing.T) {
		t.Parallel()

		c := newCLI(t)
		if _, err := c.run(t, "sites", "--json", "--markdown"); err == nil {
			t.Error("expected an error for --json with --markdown")
		}
	})
}

func TestSitesCmd(t *testing.T) {
	t.Parallel()

	t.Run("text", func(t *testing.T) {
		t.Parallel()

		out := newCLI(t).mustRun(t, "sites")
		for _, want := range []string{"instagram", "youtube", "shorts", "blocked"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("json uses configured defaults", func(t *testing.T) {
		t.Parallel()

		out := newCLI(t).mustRun(t, "sites", "--json")

		var sites []report.SiteStatus
		if err := json.Unmarshal([]byte(out), &sites); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if len(sites) != len(catalog.SiteIDs()) {
			t.Fatalf("expected %d sites, got %d", len(catalog.SiteIDs()), len(sites))
		}

		enabled := map[string]int{}
		for _, s := range sites {
			enabled[s.ID] = s.EnabledCount()
		}
		want := map[string]int{"instagram": 2, "facebook": 1, "youtube": 0}
		for id, n := range want {
			if enabled[id] != n {
				t.Errorf("%s: expected %d enabled, got %d", id, n, enabled[id])
			}
		}
	})

	t.Run("markdown", func(t *testing.T) {
		t.Parallel()

		out := newCLI(t).mustRun(t, "sites", "--markdown")
		if !strings.Contains(out, "# Blockable features") {
			t.Errorf("expected a markdown heading, got:\n%s", out)
		}
	})
}

func TestGenerateCmd(t *testing.T) {
	t.Parallel()

	t.Run("uses the saved selection", func(t *testing.T) {
		t.Parallel()

		out := newCLI(t).mustRun(t, "generate", "instagram")
		if want := blocker.Generate("instagram", []string{"reels", "explore"}); out != want {
			t.Errorf("unexpected script:\n%s", out)
		}
	})

	t.Run("feature flag overrides the selection", func(t *testing.T) {
		t.Parallel()

		out := newCLI(t).mustRun(t, "generate", "youtube", "--feature", "comments", "-f", "shorts")
		if want := blocker.Generate("youtube", []string{"shorts", "comments"}); out != want {
			t.Errorf("unexpected script:\n%s", out)
		}
	})

	t.Run("digest", func(t *testing.T) {
		t.Parallel()

		out := newCLI(t).mustRun(t, "generate", "instagram", "--digest")
		want := blocker.Digest(blocker.Generate("instagram", []string{"reels", "explore"}))
		if strings.TrimSpace(out) != want {
			t.Errorf("expected digest %s, got %q", want, out)
		}
	})

	t.Run("nothing enabled prints nothing", func(t *testing.T) {
		t.Parallel()

		if out := newCLI(t).mustRun(t, "generate", "youtube"); out != "" {
			t.Errorf("expected no output, got %q", out)
		}
	})

	t.Run("writes to a file", func(t *testing.T) {
		t.Parallel()

		c := newCLI(t)
		path := filepath.Join(c.dir, "out", "instagram.js")
		c.mustRun(t, "generate", "instagram", "-o", path)

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read script: %v", err)
		}
		if !strings.Contains(string(data), "/reels/") {
			t.Error("expected the reels rule in the written script")
		}
	})

	t.Run("unknown ids", func(t *testing.T) {
		t.Parallel()

		c := newCLI(t)
		if _, err := c.run(t, "generate", "myspace"); !errors.Is(err, settings.ErrUnknownSite) {
			t.Errorf("expected ErrUnknownSite, got %v", err)
		}
		if _, err := c.run(t, "generate", "youtube", "-f", "reels"); !errors.Is(err, settings.ErrUnknownFeature) {
			t.Errorf("expected ErrUnknownFeature, got %v", err)
		}
	})
}

func TestSettingsCmd(t *testing.T) {
	t.Parallel()

	t.Run("file store", func(t *testing.T) {
		t.Parallel()

		c := newCLI(t)
		steps := []struct {
			args []string
			want string
		}{
			{args: []string{"settings", "list", "instagram"}, want: "instagram: reels, explore\n"},
			{args: []string{"settings", "enable", "youtube", "comments", "shorts"}, want: "youtube: shorts, comments\n"},
			{args: []string{"settings", "list", "youtube"}, want: "youtube: shorts, comments\n"},
			{args: []string{"settings", "toggle", "youtube", "shorts"}, want: "youtube/shorts: allowed\n"},
			{args: []string{"settings", "disable", "instagram", "explore"}, want: "instagram: reels\n"},
			{args: []string{"settings", "reset", "instagram"}, want: "instagram: reels, explore\n"},
			{args: []string{"settings", "list", "facebook"}, want: "facebook: reels\n"},
		}
		for _, step := range steps {
			if got := c.mustRun(t, step.args...); got != step.want {
				t.Errorf("quietfeed %s: expected %q, got %q", strings.Join(step.args, " "), step.want, got)
			}
		}

		if _, err := os.Stat(filepath.Join(c.dir, config.SettingsFileName)); err != nil {
			t.Errorf("expected the settings file in the data dir: %v", err)
		}
	})

	t.Run("sqlite store", func(t *testing.T) {
		t.Parallel()

		c := newCLI(t)
		c.mustRun(t, "settings", "enable", "youtube", "homeFeed", "--store", "sqlite")

		if got := c.mustRun(t, "settings", "list", "youtube", "--store", "sqlite"); got != "youtube: homeFeed\n" {
			t.Errorf("expected the selection to persist in sqlite, got %q", got)
		}
		if got := c.mustRun(t, "settings", "list", "youtube"); got != "youtube: (none)\n" {
			t.Errorf("expected the file store to be untouched, got %q", got)
		}
	})

	t.Run("memory store forgets", func(t *testing.T) {
		t.Parallel()

		c := newCLI(t)
		c.mustRun(t, "settings", "enable", "youtube", "shorts", "--store", "memory")
		if got := c.mustRun(t, "settings", "list", "youtube", "--store", "memory"); got != "youtube: (none)\n" {
			t.Errorf("expected nothing kept between runs, got %q", got)
		}
	})

	t.Run("disabling everything persists", func(t *testing.T) {
		t.Parallel()

		c := newCLI(t)
		c.mustRun(t, "settings", "disable", "instagram", "reels", "explore")
		c.mustRun(t, "settings", "disable", "facebook", "reels")

		got := c.mustRun(t, "settings", "list")
		want := "instagram: (none)\nfacebook: (none)\nyoutube: (none)\n"
		if got != want {
			t.Errorf("expected the empty selection to survive, got %q", got)
		}
	})

	t.Run("verbose names the settings file", func(t *testing.T) {
		t.Parallel()

		c := newCLI(t)
		var stderr bytes.Buffer
		root := NewRootCmd()
		root.SetOut(io.Discard)
		root.SetErr(&stderr)
		root.SetArgs([]string{"settings", "list", "-v", "--data-dir", c.dir, "-c", c.config})
		if err := root.Execute(); err != nil {
			t.Fatal(err)
		}
		if log := stderr.String(); !strings.Contains(log, "using settings file") || !strings.Contains(log, config.SettingsFileName) {
			t.Errorf("expected the settings path in the debug log, got %q", stderr.String())
		}
	})

	t.Run("list prints every site", func(t *testing.T) {
		t.Parallel()

		got := newCLI(t).mustRun(t, "settings", "list")
		want := "instagram: reels, explore\nfacebook: reels\nyoutube: (none)\n"
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("unknown feature", func(t *testing.T) {
		t.Parallel()

		if _, err := newCLI(t).run(t, "settings", "enable", "youtube", "stories"); !errors.Is(err, settings.ErrUnknownFeature) {
			t.Errorf("expected ErrUnknownFeature, got %v", err)
		}
	})
}

func TestEditItems(t *testing.T) {
	t.Parallel()

	site, ok := catalog.LookupSite("youtube")
	if !ok {
		t.Fatal("youtube missing from catalogue")
	}

	items := editItems(site, []string{"comments"})
	if len(items) != len(site.Features)+1 {
		t.Fatalf("expected one item per feature plus done, got %d", len(items))
	}
	if items[len(items)-1] != doneItem {
		t.Errorf("expected last item %q, got %q", doneItem, items[len(items)-1])
	}
	for i, f := range site.Features {
		checked := strings.HasPrefix(items[i], "[x] ")
		if checked != (f.ID == "comments") {
			t.Errorf("item %q: unexpected check state", items[i])
		}
		if !strings.Contains(items[i], f.Name) {
			t.Errorf("item %q does not name %s", items[i], f.Name)
		}
	}
}

const instagramPage = `<!DOCTYPE html>
<html><body>
<nav>
  <a href="/">Home</a>
  <a href="/reels/">Reels</a>
</nav>
<main><p>feed</p></main>
</body></html>`

func TestAuditCmd(t *testing.T) {
	t.Parallel()

	type summary struct {
		Files   int            `json:"files"`
		Removed int            `json:"removed"`
		Failed  int            `json:"failed"`
		Results []audit.Result `json:"results"`
	}

	c := newCLI(t)
	page := filepath.Join(c.dir, "home.html")
	if err := os.WriteFile(page, []byte(instagramPage), 0600); err != nil {
		t.Fatal(err)
	}

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		out := c.mustRun(t, "audit", "instagram", page, "--feature", "reels", "--json")
		var got summary
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if got.Files != 1 || got.Removed != 1 || got.Failed != 0 {
			t.Errorf("unexpected summary %+v", got)
		}
		if len(got.Results) != 1 || !got.Results[0].Stable {
			t.Errorf("expected one stable result, got %+v", got.Results)
		}
	})

	t.Run("missing file fails after reporting", func(t *testing.T) {
		t.Parallel()

		out, err := c.run(t, "audit", "instagram", page, filepath.Join(c.dir, "missing.html"))
		if !errors.Is(err, errAuditFailed) {
			t.Fatalf("expected errAuditFailed, got %v", err)
		}
		if !strings.Contains(out, "home.html") {
			t.Errorf("expected the report to be written, got:\n%s", out)
		}
	})

	t.Run("output file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "reports", "audit.md")
		out := c.mustRun(t, "audit", "instagram", page, "--feature", "reels", "-o", path)
		if !strings.Contains(out, "home.html") {
			t.Errorf("expected the report on stdout as well, got:\n%s", out)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !strings.HasPrefix(string(data), "#") {
			t.Errorf("expected a Markdown report in %s, got:\n%s", path, data)
		}
	})

	t.Run("unknown site", func(t *testing.T) {
		t.Parallel()

		if _, err := c.run(t, "audit", "myspace", page); !errors.Is(err, settings.ErrUnknownSite) {
			t.Errorf("expected ErrUnknownSite, got %v", err)
		}
	})
}

func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	if got := c.mustRun(t, "history"); !strings.Contains(got, "No injections recorded.") {
		t.Errorf("expected an empty history message, got %q", got)
	}

	db, err := database.Open(c.dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	ctx := context.Background()
	script := blocker.Generate("youtube", []string{"shorts"})
	if err := db.RecordInjection(ctx, "youtube", "https://www.youtube.com/", []string{"shorts"}, blocker.Digest(script)); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordInjection(ctx, "instagram", "https://www.instagram.com/", []string{"reels"}, "abc"); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	var entries []struct {
		Site     string   `json:"site"`
		URL      string   `json:"url"`
		Features []string `json:"features"`
	}
	out := c.mustRun(t, "history", "youtube", "--json")
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0].URL != "https://www.youtube.com/" {
		t.Errorf("unexpected entries %+v", entries)
	}

	out = c.mustRun(t, "history", "--json", "-n", "1")
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(entries) != 1 || entries[0].Site != "instagram" {
		t.Errorf("expected only the newest entry, got %+v", entries)
	}

	if got := c.mustRun(t, "history", "--list-sites"); got != "instagram\nyoutube\n" {
		t.Errorf("unexpected site list %q", got)
	}

	path := filepath.Join(c.dir, "history.json")
	c.mustRun(t, "history", "-o", path)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read history file: %v", err)
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("expected JSON in %s: %v\n%s", path, err, data)
	}
	if len(entries) != 2 {
		t.Errorf("expected both entries in the file, got %+v", entries)
	}
}
