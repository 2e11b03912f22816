package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/quietfeed/internal/audit"
	"github.com/nao1215/quietfeed/internal/catalog"
	"github.com/nao1215/quietfeed/internal/database"
)

// createTestResults returns audit results with one success and one failure.
func createTestResults() []audit.Result {
	return []audit.Result{
		{
			Path:    "home.html",
			Site:    "instagram",
			Removed: 3,
			Stable:  true,
			Rules: []audit.RuleResult{
				{Feature: "reels", Kind: catalog.KindLink, Query: `a[href*="/reels/"]`, Matches: 2},
				{Feature: "suggested", Kind: catalog.KindText, Query: "span", Matches: 1},
			},
		},
		{Path: "missing.html", Site: "instagram", Error: "no such file"},
	}
}

func createTestHistory() []database.Injection {
	return []database.Injection{
		{
			ID:        2,
			Site:      "youtube",
			URL:       "https://m.youtube.com/",
			Features:  []string{"shorts", "comments"},
			Digest:    "0123456789abcdef0123",
			Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func enabledInstagramReels(site string) []string {
	if site == "instagram" {
		return []string{"reels"}
	}
	return nil
}

func TestNewSiteStatuses(t *testing.T) {
	t.Parallel()

	sites := NewSiteStatuses(enabledInstagramReels)
	if len(sites) != len(catalog.SiteIDs()) {
		t.Fatalf("expected %d sites, got %d", len(catalog.SiteIDs()), len(sites))
	}
	if sites[0].ID != "instagram" || sites[0].EnabledCount() != 1 {
		t.Errorf("unexpected instagram status %+v", sites[0])
	}
	for _, s := range sites[1:] {
		if s.EnabledCount() != 0 {
			t.Errorf("%s: expected nothing enabled", s.ID)
		}
	}

	if got := NewSiteStatuses(nil); got[0].EnabledCount() != 0 {
		t.Error("expected nil lookup to enable nothing")
	}
}

// TestTextWriter tests the terminal table writer.
func TestTextWriter(t *testing.T) {
	t.Parallel()

	t.Run("sites", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewTextWriter(&buf).WriteSites(NewSiteStatuses(enabledInstagramReels)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		for _, want := range []string{"instagram", "directMessages", "youtube", "shorts", "blocked"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q\n%s", want, out)
			}
		}
	})

	t.Run("audit", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewTextWriter(&buf).WriteAudit(createTestResults())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("expected byte count %d, got %d", buf.Len(), n)
		}
		out := buf.String()
		if !strings.Contains(out, "home.html") || !strings.Contains(out, "error: no such file") {
			t.Errorf("unexpected output\n%s", out)
		}
		if strings.Contains(out, "suggested") {
			t.Error("expected rule rows only in verbose mode")
		}
		if !strings.Contains(out, "2 file(s) audited") {
			t.Error("expected footer")
		}
	})

	t.Run("verbose audit lists rules", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewTextWriter(&buf, WithVerbose(true)).WriteAudit(createTestResults()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "suggested (text)") {
			t.Errorf("expected rule rows\n%s", buf.String())
		}
	})

	t.Run("history", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewTextWriter(&buf).WriteHistory(createTestHistory()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "0123456789ab") || strings.Contains(out, "0123456789abcdef0123") {
			t.Errorf("expected shortened digest\n%s", out)
		}
		if !strings.Contains(out, "shorts,comments") {
			t.Errorf("expected features\n%s", out)
		}
	})

	t.Run("empty history", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewTextWriter(&buf).WriteHistory(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if buf.String() != "No injections recorded.\n" {
			t.Errorf("unexpected output %q", buf.String())
		}
	})
}

// TestJSONWriter tests the JSON writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("sites are valid JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteSites(NewSiteStatuses(enabledInstagramReels)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var sites []SiteStatus
		if err := json.Unmarshal(buf.Bytes(), &sites); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(sites) != 3 || !sites[0].Features[0].Enabled {
			t.Errorf("unexpected sites %+v", sites)
		}
	})

	t.Run("audit totals", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteAudit(createTestResults()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got struct {
			Files   int `json:"files"`
			Removed int `json:"removed"`
			Failed  int `json:"failed"`
		}
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Files != 2 || got.Removed != 3 || got.Failed != 1 {
			t.Errorf("unexpected totals %+v", got)
		}
	})

	t.Run("empty values encode as arrays", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)
		if _, err := w.WriteSites(nil); err != nil {
			t.Fatal(err)
		}
		if _, err := w.WriteHistory(nil); err != nil {
			t.Fatal(err)
		}
		if buf.String() != "[]\n[]\n" {
			t.Errorf("unexpected output %q", buf.String())
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).WriteHistory(createTestHistory()); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "\n  {\n    \"id\": 2,") {
			t.Errorf("expected indented output\n%s", buf.String())
		}
		if !strings.Contains(buf.String(), `"timestamp": "2026-03-01T12:00:00Z"`) {
			t.Errorf("expected UTC timestamp\n%s", buf.String())
		}
	})
}

// TestMarkdownWriter tests the Markdown writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("sites", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteSites(NewSiteStatuses(enabledInstagramReels)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		for _, want := range []string{"# Blockable features", "## Instagram", "## YouTube", "`fullBlock`", "✅ blocked"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q\n%s", want, out)
			}
		}
	})

	t.Run("audit with chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteAudit(createTestResults()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		for _, want := range []string{"# Audit Report", "```mermaid", "Matches by feature", "## home.html", "Audit failed: no such file"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q\n%s", want, out)
			}
		}
	})

	t.Run("audit without matches has no chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		results := []audit.Result{{Path: "blank.html", Stable: true, Rules: []audit.RuleResult{{Feature: "reels", Kind: catalog.KindLink}}}}
		if _, err := NewMarkdownWriter(&buf).WriteAudit(results); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(buf.String(), "```mermaid") {
			t.Error("expected no chart without matches")
		}
	})

	t.Run("history", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteHistory(createTestHistory()); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "# Injection History") || !strings.Contains(buf.String(), "shorts, comments") {
			t.Errorf("unexpected output\n%s", buf.String())
		}
	})
}

// failingWriter returns an error from every method.
type failingWriter struct{}

var errWrite = errors.New("write failed")

func (failingWriter) WriteSites([]SiteStatus) (int, error)           { return 0, errWrite }
func (failingWriter) WriteAudit([]audit.Result) (int, error)         { return 0, errWrite }
func (failingWriter) WriteHistory([]database.Injection) (int, error) { return 0, errWrite }

// TestMultiWriter tests writing to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var a, b bytes.Buffer
		m := NewMultiWriter(NewJSONWriter(&a), NewMarkdownWriter(&b))
		n, err := m.WriteHistory(createTestHistory())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Len() == 0 || b.Len() == 0 {
			t.Error("expected both writers to produce output")
		}
		if n < a.Len() {
			t.Errorf("expected total byte count, got %d", n)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		m := NewMultiWriter(failingWriter{}, NewJSONWriter(&buf))
		if _, err := m.WriteAudit(createTestResults()); !errors.Is(err, errWrite) {
			t.Fatalf("expected errWrite, got %v", err)
		}
		if buf.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})
}
