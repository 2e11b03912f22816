// Package log provides the slog setup for quietfeed.
//
// SecureHandler wraps any slog.Handler and rewrites attributes before they
// reach the output:
//   - cookies, session identifiers and tokens are masked (previews may run
//     with a logged-in session cookie),
//   - query strings and fragments are stripped from URLs, since social
//     media links often carry tracking or auth parameters,
//   - long string values such as generated scripts are truncated.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//	logger.Info("injected script", "url", pageURL, "digest", digest)
package log
