// Package settings owns the user's enabled-feature selection.
//
// A Selection maps a site ID to the features the user chose to block on it.
// The Service holds the current selection in memory, persists every change
// through a Store and notifies subscribers afterwards, so the web-view
// bridge and the HTTP API always read the same state.
//
// Three stores are provided: MemoryStore for tests and one-shot commands,
// FileStore for a YAML file in the XDG config directory, and the SQLite
// store in package database.
package settings
