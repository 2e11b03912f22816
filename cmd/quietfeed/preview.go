package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/quietfeed/internal/webview"
)

// NewPreviewCmd creates the preview command.
func NewPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <url>",
		Short: "Open a page in Chrome and inject the blocking script",
		Long: `Preview loads a page in Chrome, injects the script for the enabled features
exactly as a web-view host would, and records the injection in the history.

Chrome is launched headless unless --headful is given, or an existing
instance is used with --remote.

Examples:
  # Inject into the YouTube home page
  quietfeed preview https://www.youtube.com/

  # Watch the result in a visible window for 30 seconds
  quietfeed preview --headful --hold 30s https://www.instagram.com/

  # Save the DOM after the script ran
  quietfeed preview --dump after.html https://m.facebook.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runPreviewCmd,
	}

	cmd.Flags().String("remote", "",
		"DevTools WebSocket URL of a running Chrome (default: launch one)")
	cmd.Flags().Bool("headful", false,
		"Show the browser window")
	cmd.Flags().DurationP("timeout", "t", 0,
		"Page load timeout (default from configuration)")
	cmd.Flags().String("dump", "",
		"Write the page DOM to this file after the script ran")
	cmd.Flags().Duration("hold", 0,
		"Keep the page open this long after injection")

	return cmd
}

func runPreviewCmd(cmd *cobra.Command, args []string) error {
	pageURL := args[0]
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		pageURL = "https://" + pageURL
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	flags := cmd.Flags()
	remote, err := flags.GetString("remote")
	if err != nil {
		return err
	}
	headful, err := flags.GetBool("headful")
	if err != nil {
		return err
	}
	timeout, err := flags.GetDuration("timeout")
	if err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = e.cfg.BrowserTimeout
	}
	dumpPath, err := flags.GetString("dump")
	if err != nil {
		return err
	}
	hold, err := flags.GetDuration("hold")
	if err != nil {
		return err
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

	session, err := webview.NewRodSession(ctx, webview.RodOptions{
		RemoteURL: remote,
		Headful:   headful,
		Timeout:   timeout,
		Logger:    e.logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			e.logger.Warn("failed to close browser", "error", err)
		}
	}()

	if err := session.Open(ctx, pageURL); err != nil {
		return err
	}

	bridge := webview.NewBridge(svc,
		webview.WithGenerator(e.generator()),
		webview.WithRecorder(db),
		webview.WithLogger(e.logger),
	)
	out, err := bridge.OnPageLoaded(ctx, session.URL(), session)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch {
	case out.Site == "":
		fmt.Fprintf(w, "%s is not a supported site; nothing injected\n", session.URL())
	case !out.Executed:
		fmt.Fprintf(w, "no features enabled for %s; nothing injected\n", out.Site)
	default:
		fmt.Fprintf(w, "injected %s script (%s) blocking: %s\n",
			out.Site, out.Digest[:12], strings.Join(out.Features, ", "))
	}

	// The script waits before its first pass; give it one delay and one
	// polling period before reading the DOM back.
	if out.Executed && (dumpPath != "" || hold > 0) {
		if err := sleep(ctx, e.cfg.Delay+e.cfg.Interval); err != nil {
			return err
		}
	}

	if dumpPath != "" {
		if err := dumpDOM(ctx, session, dumpPath); err != nil {
			return err
		}
		fmt.Fprintf(w, "DOM written to %s\n", dumpPath)
	}

	if hold > 0 {
		// Interrupting the hold is the normal way to end a preview.
		_ = sleep(ctx, hold)
	}
	return nil
}

func dumpDOM(ctx context.Context, session *webview.RodSession, path string) error {
	dom, err := session.DOM(ctx)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(dom), 0600); err != nil {
		return fmt.Errorf("failed to write DOM: %w", err)
	}
	return nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
