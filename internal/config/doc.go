// Package config provides the configuration for quietfeed: generator
// timings, the settings store backend, the HTTP listen address and per-site
// defaults read from the optional .quietfeed YAML file.
package config
