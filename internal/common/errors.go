// Package common defines shared sentinel errors used across the sync engine.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Sync-level errors.
	ErrOffline        = errors.New("offline")
	ErrSyncInProgress = errors.New("sync already in progress")

	// Validation errors.
	ErrUnknownTable     = errors.New("unknown table")
	ErrUnknownOperation = errors.New("unknown operation")
)
