package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/quietfeed/internal/blocker"
	"github.com/nao1215/quietfeed/internal/catalog"
	"github.com/nao1215/quietfeed/internal/settings"
)

// NewGenerateCmd creates the generate command.
func NewGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <site>",
		Short: "Print the blocking script for a site",
		Long: `Generate prints the JavaScript that hides the enabled features of a site.
The script is meant to be injected into a web view after each page load.

Nothing is printed when no feature is enabled.

Examples:
  # Script for the saved Instagram selection
  quietfeed generate instagram

  # Script for an ad-hoc selection, ignoring saved settings
  quietfeed generate youtube --feature shorts --feature comments

  # Only the SHA3-256 digest, to detect changes
  quietfeed generate instagram --digest`,
		Args: cobra.ExactArgs(1),
		RunE: runGenerateCmd,
	}

	cmd.Flags().StringSliceP("feature", "f", nil,
		"Feature to block (repeatable); overrides the saved selection")
	cmd.Flags().BoolP("digest", "d", false,
		"Print the script digest instead of the script")
	cmd.Flags().StringP("output", "o", "",
		"Write the script to a file instead of stdout")

	return cmd
}

func runGenerateCmd(cmd *cobra.Command, args []string) error {
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

	script := e.generator().Generate(site.ID, enabled)
	if script == "" {
		e.logger.Warn("no features enabled, nothing to generate", "site", site.ID)
		return nil
	}

	showDigest, err := cmd.Flags().GetBool("digest")
	if err != nil {
		return err
	}
	if showDigest {
		fmt.Fprintln(cmd.OutOrStdout(), blocker.Digest(script))
		return nil
	}

	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if outputPath == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), script)
		return err
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, []byte(script), 0600); err != nil {
		return fmt.Errorf("failed to write script: %w", err)
	}
	e.logger.Info("script written", "path", outputPath, "site", site.ID)
	return nil
}
