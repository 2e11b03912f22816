package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/nao1215/quietfeed/internal/catalog"
	"github.com/nao1215/quietfeed/internal/settings"
)

// doneItem ends the interactive editor.
const doneItem = "Done"

// NewSettingsCmd creates the settings command and its subcommands.
func NewSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change which features are blocked",
		Long: `Settings manages the per-site selection of blocked features. Changes are
saved to the configured store immediately.

Examples:
  quietfeed settings list
  quietfeed settings enable instagram reels explore
  quietfeed settings toggle youtube shorts
  quietfeed settings reset facebook
  quietfeed settings edit`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list [site]",
			Short: "List the blocked features of every site, or of one site",
			Args:  cobra.MaximumNArgs(1),
			RunE:  runSettingsList,
		},
		&cobra.Command{
			Use:   "enable <site> <feature>...",
			Short: "Block one or more features",
			Args:  cobra.MinimumNArgs(2),
			RunE:  runSettingsSet(true),
		},
		&cobra.Command{
			Use:   "disable <site> <feature>...",
			Short: "Stop blocking one or more features",
			Args:  cobra.MinimumNArgs(2),
			RunE:  runSettingsSet(false),
		},
		&cobra.Command{
			Use:   "toggle <site> <feature>",
			Short: "Flip one feature",
			Args:  cobra.ExactArgs(2),
			RunE:  runSettingsToggle,
		},
		&cobra.Command{
			Use:   "reset <site>",
			Short: "Restore the configured default selection of a site",
			Args:  cobra.ExactArgs(1),
			RunE:  runSettingsReset,
		},
		&cobra.Command{
			Use:   "edit [site]",
			Short: "Pick blocked features interactively",
			Args:  cobra.MaximumNArgs(1),
			RunE:  runSettingsEdit,
		},
	)
	return cmd
}

// withSettings runs fn with a loaded settings service and closes the
// environment afterwards.
func withSettings(cmd *cobra.Command, fn func(*settings.Service) error) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	svc, err := e.settings(cmd.Context())
	if err != nil {
		return err
	}
	return fn(svc)
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	sites := catalog.SiteIDs()
	if len(args) == 1 {
		site, err := lookupSite(args[0])
		if err != nil {
			return err
		}
		sites = []string{site.ID}
	}

	return withSettings(cmd, func(svc *settings.Service) error {
		for _, id := range sites {
			printSelection(cmd.OutOrStdout(), id, svc.Enabled(id))
		}
		return nil
	})
}

func runSettingsSet(on bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withSettings(cmd, func(svc *settings.Service) error {
			site := args[0]
			for _, feature := range args[1:] {
				if err := svc.Set(cmd.Context(), site, feature, on); err != nil {
					return err
				}
			}
			printSelection(cmd.OutOrStdout(), site, svc.Enabled(site))
			return nil
		})
	}
}

func runSettingsToggle(cmd *cobra.Command, args []string) error {
	return withSettings(cmd, func(svc *settings.Service) error {
		on, err := svc.Toggle(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s: %s\n", args[0], args[1], onOff(on))
		return nil
	})
}

func runSettingsReset(cmd *cobra.Command, args []string) error {
	return withSettings(cmd, func(svc *settings.Service) error {
		if err := svc.Reset(cmd.Context(), args[0]); err != nil {
			return err
		}
		printSelection(cmd.OutOrStdout(), args[0], svc.Enabled(args[0]))
		return nil
	})
}

// runSettingsEdit asks for a site, then toggles features until Done is
// picked. Each toggle is saved right away.
func runSettingsEdit(cmd *cobra.Command, args []string) error {
	return withSettings(cmd, func(svc *settings.Service) error {
		var site catalog.Site
		if len(args) == 1 {
			s, err := lookupSite(args[0])
			if err != nil {
				return err
			}
			site = s
		} else {
			sites := catalog.Sites()
			names := make([]string, 0, len(sites))
			for _, s := range sites {
				names = append(names, fmt.Sprintf("%s (%d blocked)", s.Name, len(svc.Enabled(s.ID))))
			}
			prompt := promptui.Select{
				Label: "Select site",
				Items: names,
			}
			idx, _, err := prompt.Run()
			if err != nil {
				return errors.New("selection cancelled")
			}
			site = sites[idx]
		}

		cursor := 0
		for {
			items := editItems(site, svc.Enabled(site.ID))
			prompt := promptui.Select{
				Label:     fmt.Sprintf("Block features on %s", site.Name),
				Items:     items,
				Size:      len(items),
				CursorPos: cursor,
			}
			idx, _, err := prompt.Run()
			if err != nil {
				return errors.New("selection cancelled")
			}
			if idx == len(site.Features) {
				break
			}
			cursor = idx
			if _, err := svc.Toggle(cmd.Context(), site.ID, site.Features[idx].ID); err != nil {
				return err
			}
		}

		printSelection(cmd.OutOrStdout(), site.ID, svc.Enabled(site.ID))
		return nil
	})
}

// editItems returns one checkbox line per feature in catalogue order,
// followed by doneItem.
func editItems(site catalog.Site, enabled []string) []string {
	on := make(map[string]bool, len(enabled))
	for _, id := range enabled {
		on[id] = true
	}

	items := make([]string, 0, len(site.Features)+1)
	for _, f := range site.Features {
		box := "[ ]"
		if on[f.ID] {
			box = "[x]"
		}
		items = append(items, fmt.Sprintf("%s %s - %s", box, f.Name, f.Description))
	}
	return append(items, doneItem)
}

func printSelection(w io.Writer, site string, enabled []string) {
	list := "(none)"
	if len(enabled) > 0 {
		list = strings.Join(enabled, ", ")
	}
	fmt.Fprintf(w, "%s: %s\n", site, list)
}

func onOff(on bool) string {
	if on {
		return "blocked"
	}
	return "allowed"
}
