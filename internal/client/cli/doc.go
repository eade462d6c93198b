// Package cli provides the interactive PlotKeeper command-line client.
//
// It wires configuration, the local SQLite cache, the HTTP backend client,
// and an interactive REPL that works the same online and offline. Writes
// always land in the local cache first; a background sync loop drains the
// mutation queue and pulls remote changes whenever the backend is reachable.
//
// Key features:
//   - Add / edit / delete records in any synchronized table
//   - List and show cached records
//   - Trigger a sync or a queue push by hand
//   - Inspect the pending mutation queue and connectivity status
//   - Cache image attachments for offline viewing
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
