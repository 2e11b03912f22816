package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	qflog "github.com/nao1215/quietfeed/internal/log"
	"github.com/nao1215/quietfeed/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve scripts and settings over HTTP",
		Long: `Serve starts an HTTP API for a web-view host on the same device. The host
asks for the script of the page it just loaded, and a settings screen can
read and change the selection.

Routes:
  GET    /healthz
  GET    /v1/sites
  GET    /v1/sites/{site}
  GET    /v1/sites/{site}/script
  GET    /v1/sites/{site}/features
  PUT    /v1/sites/{site}/features
  DELETE /v1/sites/{site}/features
  POST   /v1/sites/{site}/features/{feature}/toggle
  POST   /v1/page-loaded

Examples:
  quietfeed serve
  quietfeed serve --listen 127.0.0.1:9000 --store sqlite`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", "",
		"Listen address (default from configuration, 127.0.0.1:8787)")
	cmd.Flags().Bool("json-log", false,
		"Write logs as JSON")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	addr, err := cmd.Flags().GetString("listen")
	if err != nil {
		return err
	}
	if addr == "" {
		addr = e.cfg.ListenAddress
	}
	jsonLog, err := cmd.Flags().GetBool("json-log")
	if err != nil {
		return err
	}
	if jsonLog {
		e.logger = qflog.NewSecureJSONLogger(cmd.ErrOrStderr(), e.cfg.Verbose)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := e.settings(ctx)
	if err != nil {
		return err
	}
	db, err := e.database()
	if err != nil {
		return err
	}

	cancel := svc.Subscribe(func(site string, enabled []string) {
		e.logger.Info("selection changed", "site", site, "enabled", enabled)
	})
	defer cancel()

	srv := server.New(svc,
		server.WithGenerator(e.generator()),
		server.WithRecorder(db),
		server.WithLogger(e.logger),
	)
	return srv.ListenAndServe(ctx, addr)
}
