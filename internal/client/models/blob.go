package models

import "time"

// AttachmentBlob is a compressed binary payload (typically a photo) cached
// locally, keyed by the reference it was fetched from. At most one blob
// exists per source reference.
type AttachmentBlob struct {
	ID          string
	SourceRef   string
	Data        []byte
	ContentType string
	Width       int
	Height      int
	CachedAt    time.Time
}
