package models

import (
	"time"

	"github.com/google/uuid"
)

// AlbumRow groups media within an album by event label and date. The
// (album_id, event, event_date) unique index makes FindOrCreateRow idempotent.
type AlbumRow struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AlbumID   uuid.UUID `gorm:"column:album_id;type:uuid;not null;uniqueIndex:uq_album_rows_album_event,priority:1"`
	Event     string    `gorm:"column:event;not null;uniqueIndex:uq_album_rows_album_event,priority:2"`
	EventDate string    `gorm:"column:event_date;not null;uniqueIndex:uq_album_rows_album_event,priority:3"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
