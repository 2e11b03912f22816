// Package database provides SQLite-based storage for quietfeed.
//
// The DB stores:
//   - the enabled-feature selection, when the sqlite settings store is used
//   - the injection log: one row per script the web-view bridge executed
//
// SQLite is used through modernc.org/sqlite, which is CGO-free, so the
// binary cross-compiles for the devices the web view runs on. Generated
// scripts themselves are never stored; the log keeps their digest.
package database
