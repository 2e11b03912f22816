// Package catalog holds the immutable table of supported sites and the
// features that can be hidden on each of them.
//
// The table is data, not code: it is compiled into the binary from
// catalog.yaml and parsed once on first use. Each feature carries the rules
// (link, selector, label, text or replace) that the script generator turns
// into JavaScript and that the static auditor evaluates against saved HTML.
//
// Every accessor returns copies, so callers can never modify the shared
// table.
package catalog
