package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/quietfeed/internal/config"
)

// NewRootCmd creates the root command for quietfeed.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quietfeed",
		Short: "Hide reels, shorts and other feeds from social media web views",
		Long: `quietfeed generates JavaScript that removes addictive features such as
Reels, Shorts and Explore from Instagram, Facebook and YouTube when they are
shown in a web view.

Which features are blocked is stored per site. The selection can be edited
from the command line, served to a web-view host over HTTP, or checked
against saved HTML pages with the audit command.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .quietfeed in current directory, XDG config dir or home)")
	cmd.PersistentFlags().String("store", config.DefaultStore,
		"Settings backend: file, sqlite or memory")
	cmd.PersistentFlags().String("data-dir", "",
		"Directory for the settings file and database (default: XDG directories)")

	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())
	cmd.AddCommand(NewSitesCmd())
	cmd.AddCommand(NewGenerateCmd())
	cmd.AddCommand(NewSettingsCmd())
	cmd.AddCommand(NewAuditCmd())
	cmd.AddCommand(NewPreviewCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
