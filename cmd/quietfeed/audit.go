package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/quietfeed/internal/audit"
	"github.com/nao1215/quietfeed/internal/catalog"
	"github.com/nao1215/quietfeed/internal/settings"
)

// errAuditFailed is returned when at least one file could not be audited.
var errAuditFailed = errors.New("audit failed")

// NewAuditCmd creates the audit command.
func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit <site> <file>...",
		Short: "Check blocking rules against saved HTML pages",
		Long: `Audit applies the rules of the enabled features to saved HTML pages without
a browser. For each file it reports how many elements every rule matches,
how many one pass removes, and whether a second pass changes nothing.

Use it to find rules that no longer match after a site redesign.

Examples:
  # Audit a saved Instagram home page with the saved selection
  quietfeed audit instagram home.html

  # Audit several pages for specific features, with per-rule detail
  quietfeed audit -v youtube --feature shorts watch.html home.html

  # Markdown report with a chart of matches per feature
  quietfeed audit --markdown instagram *.html

  # Print a table and keep a JSON copy for later comparison
  quietfeed audit instagram home.html -o audit.json`,
		Args: cobra.MinimumNArgs(2),
		RunE: runAuditCmd,
	}

	cmd.Flags().StringSliceP("feature", "f", nil,
		"Feature to audit (repeatable); overrides the saved selection")
	cmd.Flags().IntP("concurrency", "n", 0,
		"Number of files audited at once (default from configuration)")
	addFormatFlags(cmd)
	addOutputFlag(cmd)

	return cmd
}

func runAuditCmd(cmd *cobra.Command, args []string) error {
	site, err := lookupSite(args[0])
	if err != nil {
		return err
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	var enabled []string
	if cmd.Flags().Changed("feature") {
		if enabled, err = cmd.Flags().GetStringSlice("feature"); err != nil {
			return err
		}
		for _, id := range enabled {
			if !catalog.HasFeature(site.ID, id) {
				return fmt.Errorf("%w: %s/%s", settings.ErrUnknownFeature, site.ID, id)
			}
		}
	} else {
		svc, err := e.settings(cmd.Context())
		if err != nil {
			return err
		}
		enabled = svc.Enabled(site.ID)
	}

	concurrency, err := cmd.Flags().GetInt("concurrency")
	if err != nil {
		return err
	}
	if concurrency <= 0 {
		concurrency = e.cfg.AuditConcurrency
	}

	w, closeReport, err := openReportWriter(cmd)
	if err != nil {
		return err
	}
	defer closeReport()

	auditor := audit.New(
		audit.WithGenerator(e.generator()),
		audit.WithConcurrency(concurrency),
		audit.WithLogger(e.logger),
	)
	results, err := auditor.AuditFiles(cmd.Context(), site.ID, enabled, args[1:])
	if err != nil {
		return err
	}
	if _, err := w.WriteAudit(results); err != nil {
		return err
	}
	if err := closeReport(); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d file(s) could not be read", errAuditFailed, failed, len(results))
	}
	return nil
}
