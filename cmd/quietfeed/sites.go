package main

import (
	"github.com/spf13/cobra"

	"github.com/nao1215/quietfeed/internal/report"
)

// NewSitesCmd creates the sites command.
func NewSitesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "List supported sites and their blockable features",
		Long: `Sites lists every supported site with its features and marks the ones
currently blocked.

Examples:
  # Show a table
  quietfeed sites

  # Machine-readable catalogue for a web-view host
  quietfeed sites --json`,
		Args: cobra.NoArgs,
		RunE: runSitesCmd,
	}
	addFormatFlags(cmd)
	return cmd
}

func runSitesCmd(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	svc, err := e.settings(cmd.Context())
	if err != nil {
		return err
	}

	w, err := newReportWriter(cmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	_, err = w.WriteSites(report.NewSiteStatuses(svc.Enabled))
	return err
}
