package models

import (
	"time"

	"github.com/google/uuid"
)

// AlbumRowMember places a media item in one row of an album. The
// (album_id, media_id) unique index keeps an item to a single appearance per
// album regardless of which row it lands in.
type AlbumRowMember struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AlbumID   uuid.UUID `gorm:"column:album_id;type:uuid;not null;uniqueIndex:uq_album_members_album_media,priority:1"`
	RowID     uuid.UUID `gorm:"column:row_id;type:uuid;not null;index"`
	MediaID   uuid.UUID `gorm:"column:media_id;type:uuid;not null;uniqueIndex:uq_album_members_album_media,priority:2;index"`
	AddedBy   uuid.UUID `gorm:"column:added_by;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
