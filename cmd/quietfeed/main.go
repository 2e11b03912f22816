// Package main provides the entry point for the quietfeed CLI.
//
// quietfeed generates scripts that hide addictive parts of social media
// sites (reels, shorts, explore feeds) inside a web view, and keeps the
// per-site selection of blocked features.
//
// Usage:
//
//	quietfeed generate instagram
//	quietfeed settings enable youtube shorts
//	quietfeed serve
//
// See --help for all available options.
package main

// main is the entry point for quietfeed.
func main() {
	Execute()
}
