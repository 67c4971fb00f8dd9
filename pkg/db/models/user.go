package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents the canonical identity entity. Quota counters live on the
// user row so charge and refund can be single conditional updates.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string     `gorm:"type:text;not null;uniqueIndex"`
	Username     string     `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	FirstName    string     `gorm:"column:first_name;not null"`
	LastName     string     `gorm:"column:last_name;not null"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	MainAlbumID  *uuid.UUID `gorm:"column:main_album_id;type:uuid"`
	TotalBytes   int64      `gorm:"column:total_bytes;not null"`
	UsedBytes    int64      `gorm:"column:used_bytes;not null;default:0"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
