package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/dcastano/framevault-backend/pkg/db/types"
)

// TagRequest is one pending share addressed to a recipient. Each request
// holds one reference per media item until it is accepted or rejected.
// Position orders a recipient's queue; removal compacts positions.
type TagRequest struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RecipientID uuid.UUID         `gorm:"column:recipient_id;type:uuid;not null;index"`
	SenderID    uuid.UUID         `gorm:"column:sender_id;type:uuid;not null"`
	Position    int               `gorm:"column:position;not null"`
	MediaIDs    dbtypes.UUIDArray `gorm:"type:uuid[];column:media_ids;not null;default:ARRAY[]::uuid[]"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}
