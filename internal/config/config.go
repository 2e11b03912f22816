package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/quietfeed/internal/blocker"
	"github.com/nao1215/quietfeed/internal/catalog"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "quietfeed"

	// StoreFile keeps settings in a YAML file under the XDG config dir.
	StoreFile = "file"
	// StoreSQLite keeps settings in the SQLite database under the XDG data dir.
	StoreSQLite = "sqlite"
	// StoreMemory keeps settings for the lifetime of the process only.
	StoreMemory = "memory"

	// DefaultStore is the settings backend used when none is configured.
	DefaultStore = StoreFile

	// DefaultDelay is the wait before the first application of a script.
	// Single-page apps render their shell after the load event, so an
	// immediate pass would find nothing to remove.
	DefaultDelay = blocker.DefaultInitialDelay

	// DefaultInterval is the period of the polling fallback.
	DefaultInterval = blocker.DefaultInterval

	// DefaultListenAddress is where "quietfeed serve" listens. Loopback only:
	// the API is meant for the web-view host on the same device.
	DefaultListenAddress = "127.0.0.1:8787"

	// DefaultBrowserTimeout bounds navigation in "quietfeed preview".
	DefaultBrowserTimeout = 30 * time.Second

	// DefaultAuditConcurrency is the number of HTML files audited at once.
	DefaultAuditConcurrency = 4

	// SettingsFileName is the name of the file store inside XDGConfigDir.
	SettingsFileName = "settings.yaml"
)

// Config holds all configuration options for quietfeed. It is built from
// defaults, then the configuration file, then CLI flags, and passed down
// explicitly rather than kept in package state.
type Config struct {
	// Store is the settings backend: "file", "sqlite" or "memory".
	Store string

	// SettingsPath is the YAML file used by the file store.
	SettingsPath string

	// DBDir is the directory holding the SQLite database. Used by the
	// sqlite store and by the injection history.
	DBDir string

	// Delay is the wait before the first application of a generated script.
	Delay time.Duration

	// Interval is the period of the polling fallback in generated scripts.
	Interval time.Duration

	// ListenAddress is the HTTP API address for "quietfeed serve".
	ListenAddress string

	// BrowserTimeout bounds page navigation in "quietfeed preview".
	BrowserTimeout time.Duration

	// AuditConcurrency is the number of files "quietfeed audit" reads at once.
	AuditConcurrency int

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path of the configuration file, if any.
	ConfigFilePath string

	// SiteConfigs holds the per-site settings from the configuration file.
	// Never nil after NewConfig.
	SiteConfigs *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Store:            DefaultStore,
		SettingsPath:     filepath.Join(XDGConfigDir(), SettingsFileName),
		DBDir:            XDGDataDir(),
		Delay:            DefaultDelay,
		Interval:         DefaultInterval,
		ListenAddress:    DefaultListenAddress,
		BrowserTimeout:   DefaultBrowserTimeout,
		AuditConcurrency: DefaultAuditConcurrency,
		SiteConfigs: &File{
			Sites: make(map[string]SiteConfig),
		},
	}
}

// ApplyFile copies the values set in a configuration file over the current
// configuration. Zero values in the file leave the configuration unchanged.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	if f.Store != "" {
		c.Store = f.Store
	}
	if f.Delay != 0 {
		c.Delay = f.Delay
	}
	if f.Interval != 0 {
		c.Interval = f.Interval
	}
	if f.Listen != "" {
		c.ListenAddress = f.Listen
	}
	if f.Sites == nil {
		f.Sites = make(map[string]SiteConfig)
	}
	c.SiteConfigs = f
}

// GeneratorOptions returns the blocker options described by the configuration.
func (c *Config) GeneratorOptions() []blocker.Option {
	opts := []blocker.Option{
		blocker.WithInitialDelay(c.Delay),
		blocker.WithInterval(c.Interval),
	}
	for _, id := range catalog.SiteIDs() {
		if msg := c.SiteConfigs.GetSiteConfig(id).Placeholder; msg != "" {
			opts = append(opts, blocker.WithPlaceholder(id, msg))
		}
	}
	return opts
}

// XDGDataDir returns the XDG data directory for quietfeed.
// On Linux: ~/.local/share/quietfeed
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for quietfeed.
// On Linux: ~/.config/quietfeed
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.Delay <= 0 {
		return ErrInvalidDelay
	}
	if c.Interval <= 0 {
		return ErrInvalidInterval
	}
	switch c.Store {
	case StoreFile, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStore, c.Store)
	}
	if c.AuditConcurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.SiteConfigs == nil {
		return nil
	}
	for _, id := range c.SiteConfigs.Defaults.Enabled {
		if !knownAnywhere(id) {
			return fmt.Errorf("%w: %q in defaults", ErrUnknownFeature, id)
		}
	}
	for siteID, sc := range c.SiteConfigs.Sites {
		if _, ok := catalog.LookupSite(siteID); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSite, siteID)
		}
		for _, id := range sc.Enabled {
			if !catalog.HasFeature(siteID, id) {
				return fmt.Errorf("%w: %s/%s", ErrUnknownFeature, siteID, id)
			}
		}
	}
	return nil
}

// knownAnywhere reports whether any site defines the feature.
func knownAnywhere(featureID string) bool {
	for _, id := range catalog.SiteIDs() {
		if catalog.HasFeature(id, featureID) {
			return true
		}
	}
	return false
}
