package payloads

import (
	"time"

	"github.com/google/uuid"
)

// MediaUploadedEvent is emitted once an upload batch has been verified and
// committed to the catalog.
type MediaUploadedEvent struct {
	MediaID    uuid.UUID `json:"media_id"`
	UploaderID uuid.UUID `json:"uploader_id"`
	AlbumID    uuid.UUID `json:"album_id"`
	SizeBytes  int64     `json:"size_bytes"`
	MimeType   string    `json:"mime_type"`
}

// MediaPurgedEvent carries the storage keys of a purged catalog row so the
// purge worker can remove the blobs with retries.
type MediaPurgedEvent struct {
	MediaID      uuid.UUID `json:"media_id"`
	StorageKey   string    `json:"storage_key"`
	ThumbnailKey *string   `json:"thumbnail_key,omitempty"`
	PurgedAt     time.Time `json:"purged_at"`
}

// TagCreatedEvent signals a new pending tag request for a recipient.
type TagCreatedEvent struct {
	TagRequestID uuid.UUID `json:"tag_request_id"`
	SenderID     uuid.UUID `json:"sender_id"`
	RecipientID  uuid.UUID `json:"recipient_id"`
	MediaCount   int       `json:"media_count"`
}

// NotificationRequestedEvent tells downstream systems to alert a user.
type NotificationRequestedEvent struct {
	UserID uuid.UUID `json:"user_id"`
	Type   string    `json:"type"`
	Title  string    `json:"title,omitempty"`
	Body   string    `json:"body,omitempty"`
}
