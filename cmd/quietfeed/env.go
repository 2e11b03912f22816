package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/quietfeed/internal/blocker"
	"github.com/nao1215/quietfeed/internal/catalog"
	"github.com/nao1215/quietfeed/internal/config"
	"github.com/nao1215/quietfeed/internal/database"
	qflog "github.com/nao1215/quietfeed/internal/log"
	"github.com/nao1215/quietfeed/internal/report"
	"github.com/nao1215/quietfeed/internal/settings"
)

// env bundles what a command needs: configuration, logger and the lazily
// opened database. Close must be called when the command returns.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *database.DB
}

// newEnv builds the configuration from flags and the config file.
func newEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return &env{
		cfg:    cfg,
		logger: qflog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose),
	}, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from defaults, the config file and flags,
// in that order of precedence.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit path must exist; otherwise a missing file means defaults.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		f, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(f)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if cmd.Flags().Changed("store") {
		if cfg.Store, err = cmd.Flags().GetString("store"); err != nil {
			return nil, err
		}
	}

	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.SettingsPath = filepath.Join(dataDir, config.SettingsFileName)
		cfg.DBDir = dataDir
	}

	return cfg, nil
}

// database opens the SQLite database on first use.
func (e *env) database() (*database.DB, error) {
	if e.db != nil {
		return e.db, nil
	}
	db, err := database.Open(e.cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	e.logger.Debug("database opened", "path", db.Path())
	e.db = db
	return db, nil
}

// settings loads the selection from the configured store. Until a selection
// has been saved, the config file's enabled lists apply.
func (e *env) settings(ctx context.Context) (*settings.Service, error) {
	var store settings.Store
	switch e.cfg.Store {
	case config.StoreSQLite:
		db, err := e.database()
		if err != nil {
			return nil, err
		}
		store = database.NewSettingsStore(db)
	case config.StoreMemory:
		store = settings.NewMemoryStore(nil)
	default:
		fs := settings.NewFileStore(e.cfg.SettingsPath)
		e.logger.Debug("using settings file", "path", fs.Path())
		store = fs
	}

	defaults := settings.Selection(e.cfg.SiteConfigs.DefaultSelection(catalog.SiteIDs()))
	svc, err := settings.New(ctx, store,
		settings.WithDefaults(defaults),
		settings.WithLogger(e.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return svc, nil
}

func (e *env) generator() *blocker.Generator {
	return blocker.New(e.cfg.GeneratorOptions()...)
}

// Close releases the database if it was opened.
func (e *env) Close() error {
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return err
}

// addFormatFlags registers the mutually exclusive report format flags.
func addFormatFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")
}

// newReportWriter selects the report writer from the format flags.
func newReportWriter(cmd *cobra.Command, w io.Writer) (report.Writer, error) {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	switch {
	case jsonOutput && markdownOutput:
		return nil, errors.New("--json and --markdown are mutually exclusive")
	case jsonOutput:
		return report.NewJSONWriter(w, report.WithPrettyPrint()), nil
	case markdownOutput:
		return report.NewMarkdownWriter(w), nil
	default:
		return report.NewTextWriter(w, report.WithVerbose(getVerboseFlag(cmd))), nil
	}
}

// addOutputFlag registers the flag that saves a copy of a report to a file.
func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "",
		"Also write the report to a file; .json and .md select the format")
}

// fileReportWriter selects the report format from the file extension.
func fileReportWriter(path string, w io.Writer) report.Writer {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	case ".md", ".markdown":
		return report.NewMarkdownWriter(w)
	default:
		return report.NewTextWriter(w)
	}
}

// openReportWriter returns the writer for stdout, combined with a writer
// for the --output file when one is given. The returned close func must be
// called once the report is written.
func openReportWriter(cmd *cobra.Command) (report.Writer, func() error, error) {
	w, err := newReportWriter(cmd, cmd.OutOrStdout())
	if err != nil {
		return nil, nil, err
	}
	path, err := cmd.Flags().GetString("output")
	if err != nil {
		return nil, nil, err
	}
	if path == "" {
		return w, func() error { return nil }, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return report.NewMultiWriter(w, fileReportWriter(path, f)), f.Close, nil
}

// lookupSite resolves a site argument or returns an error naming the
// supported sites.
func lookupSite(id string) (catalog.Site, error) {
	site, ok := catalog.LookupSite(id)
	if !ok {
		return catalog.Site{}, fmt.Errorf("%w: %q (supported: %v)", settings.ErrUnknownSite, id, catalog.SiteIDs())
	}
	return site, nil
}
