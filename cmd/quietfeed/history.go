package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// defaultHistoryLimit is the number of injections shown by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [site]",
		Short: "Show recorded script injections",
		Long: `History lists the scripts injected by "quietfeed preview" and handed out by
"quietfeed serve", newest first.

Examples:
  # Last 20 injections on any site
  quietfeed history

  # Every injection on YouTube
  quietfeed history youtube --limit 0

  # Sites that have any history
  quietfeed history --list-sites

  # Save the full log as Markdown
  quietfeed history --limit 0 -o history.md`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of entries (0 for all)")
	cmd.Flags().BoolP("list-sites", "L", false,
		"List the sites with recorded injections")
	addFormatFlags(cmd)
	addOutputFlag(cmd)

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	var site string
	if len(args) == 1 {
		s, err := lookupSite(args[0])
		if err != nil {
			return err
		}
		site = s.ID
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	db, err := e.database()
	if err != nil {
		return err
	}

	listSites, err := cmd.Flags().GetBool("list-sites")
	if err != nil {
		return err
	}
	if listSites {
		sites, err := db.SitesWithHistory(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range sites {
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
		return nil
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	entries, err := db.History(cmd.Context(), site, limit)
	if err != nil {
		return err
	}

	w, closeReport, err := openReportWriter(cmd)
	if err != nil {
		return err
	}
	if _, err := w.WriteHistory(entries); err != nil {
		_ = closeReport()
		return err
	}
	return closeReport()
}
