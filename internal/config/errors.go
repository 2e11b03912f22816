package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can match them
// with errors.Is() while still printing a readable message.
var (
	// ErrInvalidDelay is returned when the initial script delay is not positive.
	ErrInvalidDelay = errors.New("invalid delay: must be positive")

	// ErrInvalidInterval is returned when the reapplication interval is not positive.
	ErrInvalidInterval = errors.New("invalid interval: must be positive")

	// ErrUnknownStore is returned when the settings store backend is not one
	// of "file", "sqlite" or "memory".
	ErrUnknownStore = errors.New("unknown settings store: use file, sqlite or memory")

	// ErrUnknownSite is returned when the configuration file names a site
	// that is not in the catalogue.
	ErrUnknownSite = errors.New("unknown site")

	// ErrUnknownFeature is returned when the configuration file enables a
	// feature the site does not define.
	ErrUnknownFeature = errors.New("unknown feature")

	// ErrInvalidConcurrency is returned when the audit concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")
)
