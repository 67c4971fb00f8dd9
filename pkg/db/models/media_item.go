package models

import (
	"time"

	"github.com/google/uuid"
)

// MediaItem is the catalog row for one uploaded object. SizeBytes is fixed at
// upload verification and never changes afterwards. RefCount is mutated only
// through relative SQL updates; the row is deleted when it reaches zero.
type MediaItem struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UploaderID   uuid.UUID `gorm:"column:uploader_id;type:uuid;not null;index"`
	StorageKey   string    `gorm:"column:storage_key;not null;unique"`
	ThumbnailKey *string   `gorm:"column:thumbnail_key"`
	FileName     string    `gorm:"column:file_name;not null"`
	MimeType     string    `gorm:"column:mime_type;not null"`
	SizeBytes    int64     `gorm:"column:size_bytes;not null"`
	RefCount     int       `gorm:"column:ref_count;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}
