package services

import "github.com/dkravcenko/plotkeeper/internal/client/models"

// Resolve picks the winner between a cached record and its incoming remote
// counterpart: last write wins by UpdatedAt, whole-record replacement, no
// field-level merge. On a tie the local copy is kept, so a still-pending
// local edit is never clobbered by an equally old remote version.
//
// Resolve is a pure function and never fails; conflict resolution is not an
// error path.
func Resolve(local, remote *models.CachedRecord) *models.CachedRecord {
	if local == nil {
		return remote
	}
	if remote == nil {
		return local
	}
	if remote.UpdatedAt.After(local.UpdatedAt) {
		return remote
	}
	return local
}
