package webview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// ErrNoPage is returned when a RodSession is used before Open.
var ErrNoPage = errors.New("no page open")

// RodOptions configures a RodSession.
type RodOptions struct {
	// RemoteURL is the DevTools WebSocket URL of a running Chrome.
	// Empty launches a local headless Chrome.
	RemoteURL string

	// Headful shows the browser window when launching locally.
	Headful bool

	// Timeout bounds navigation and page load. Default: 30s.
	Timeout time.Duration

	// Logger receives browser lifecycle events.
	Logger *slog.Logger
}

func (o *RodOptions) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// RodSession drives one stealth page in Chrome and implements Executor.
type RodSession struct {
	opts     RodOptions
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	url      string
}

// NewRodSession launches Chrome, or connects to RemoteURL.
func NewRodSession(ctx context.Context, opts RodOptions) (*RodSession, error) {
	opts.defaults()
	log := opts.Logger

	s := &RodSession{opts: opts}

	wsURL := opts.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(!opts.Headful).
			Set("disable-blink-features", "AutomationControlled").
			Context(ctx)

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch chrome: %w", err)
		}
		wsURL = u
		s.launcher = l
		log.Debug("launched local chrome", "headful", opts.Headful)
	} else {
		log.Debug("connecting to remote chrome")
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		s.cleanupLauncher()
		return nil, fmt.Errorf("failed to connect to chrome: %w", err)
	}
	s.browser = b
	return s, nil
}

// Open creates a stealth page, navigates to pageURL and waits for the load
// event. A previous page is closed first.
func (s *RodSession) Open(ctx context.Context, pageURL string) error {
	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}

	page, err := stealth.Page(s.browser)
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		_ = page.Close()
		return fmt.Errorf("failed to navigate to %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.opts.Logger.Warn("wait load timeout", "url", pageURL, "error", err)
	}

	s.page = page
	s.url = pageURL
	if info, err := page.Info(); err == nil && info.URL != "" {
		s.url = info.URL
	}
	return nil
}

// URL returns the URL of the open page after redirects.
func (s *RodSession) URL() string {
	return s.url
}

// ExecuteScript evaluates script in the open page.
func (s *RodSession) ExecuteScript(ctx context.Context, script string) error {
	if s.page == nil {
		return ErrNoPage
	}
	if _, err := s.page.Context(ctx).Eval(asFunction(script)); err != nil {
		return fmt.Errorf("failed to evaluate script: %w", err)
	}
	return nil
}

// DOM returns the current outer HTML of the document.
func (s *RodSession) DOM(ctx context.Context) (string, error) {
	if s.page == nil {
		return "", ErrNoPage
	}
	res, err := s.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("failed to read DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// Close closes the page and the browser, and kills a locally launched Chrome.
func (s *RodSession) Close() error {
	var errs []error
	if s.page != nil {
		errs = append(errs, s.page.Close())
		s.page = nil
	}
	if s.browser != nil {
		errs = append(errs, s.browser.Close())
		s.browser = nil
	}
	s.cleanupLauncher()
	return errors.Join(errs...)
}

func (s *RodSession) cleanupLauncher() {
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
		s.launcher = nil
	}
}

// asFunction wraps a script in an arrow function, the form page.Eval
// expects.
func asFunction(script string) string {
	return "() => {\n" + script + "\n}"
}
