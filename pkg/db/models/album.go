package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dcastano/framevault-backend/pkg/enums"
)

// Album is either a user's main album (created at registration, immutable
// name, never deleted) or a group album.
type Album struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   uuid.UUID       `gorm:"column:owner_id;type:uuid;not null;index"`
	Kind      enums.AlbumKind `gorm:"column:kind;type:album_kind;not null"`
	Name      string          `gorm:"column:name;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
