package config

import (
	"time"

	"github.com/nao1215/quietfeed/internal/catalog"
)

// SiteConfig holds per-site settings from the configuration file.
type SiteConfig struct {
	// Enabled lists the features to block when the settings store has no
	// selection for the site yet.
	Enabled []string `yaml:"enabled,omitempty"`

	// Placeholder is the message shown on the blocked page when fullBlock
	// is enabled. Markup is stripped before use.
	Placeholder string `yaml:"placeholder,omitempty"`
}

// File represents the structure of the .quietfeed configuration file.
type File struct {
	// Store selects the settings backend ("file", "sqlite" or "memory").
	Store string `yaml:"store,omitempty"`

	// Delay overrides the wait before the first script application.
	Delay time.Duration `yaml:"delay,omitempty"`

	// Interval overrides the period of the polling fallback.
	Interval time.Duration `yaml:"interval,omitempty"`

	// Listen overrides the HTTP API address used by "quietfeed serve".
	Listen string `yaml:"listen,omitempty"`

	// Sites maps site identifiers (e.g. "instagram") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every site unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a site, merging the
// site-specific entry over the defaults.
func (cf *File) GetSiteConfig(siteID string) SiteConfig {
	result := cf.Defaults

	if siteConfig, ok := cf.Sites[siteID]; ok {
		if siteConfig.Enabled != nil {
			result.Enabled = siteConfig.Enabled
		}
		if siteConfig.Placeholder != "" {
			result.Placeholder = siteConfig.Placeholder
		}
	}

	return result
}

// DefaultSelection returns the enabled features configured for each site.
// Features a site does not define are dropped, so a shared default such as
// "reels" only applies where it exists. Sites left empty are omitted.
func (cf *File) DefaultSelection(siteIDs []string) map[string][]string {
	out := make(map[string][]string)
	for _, id := range siteIDs {
		var enabled []string
		for _, feature := range cf.GetSiteConfig(id).Enabled {
			if catalog.HasFeature(id, feature) {
				enabled = append(enabled, feature)
			}
		}
		if len(enabled) > 0 {
			out[id] = enabled
		}
	}
	return out
}
