// Package client contains client-side building blocks for the sync engine.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Remote interface) to talk to
//     the backend: Ping, per-table Pull, and the Insert/Update/Delete verbs
//     that replay queued mutations.
//  2. A concrete HTTP JSON implementation (see HTTPRemote) that maps status
//     codes to sentinel errors and retries transient pull/ping failures with
//     bounded exponential backoff. Push calls are deliberately not retried
//     in-call: the mutation queue owns retry accounting.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database, applying embedded goose migrations, and constructing
//     the repository set the services operate on.
//
// # Error Handling
//
// Remote conditions callers care about are sentinel errors matched with
// errors.Is: ErrUnavailable (transient; the item stays queued) and
// ErrRejected (permanent; retrying cannot help).
package client
