// Package models defines the data shapes shared by the local store, the
// mutation queue and the sync engine.
package models

import "time"

// SyncStatus tells whether a cached record matches the server's view.
type SyncStatus string

const (
	// SyncStatusSynced marks a record confirmed by (or pulled from) the server.
	SyncStatusSynced SyncStatus = "synced"
	// SyncStatusPending marks a record with local changes not yet pushed.
	SyncStatusPending SyncStatus = "pending"
)

// CachedRecord is a denormalized snapshot of one remote entity, stored in the
// per-table cache. Exactly one record exists per (table, id).
type CachedRecord struct {
	ID         string
	Fields     Fields
	UpdatedAt  time.Time
	SyncStatus SyncStatus
}
