package library

import (
	"time"

	"github.com/google/uuid"

	"github.com/dcastano/framevault-backend/pkg/db/models"
)

// UploadFileInput describes one file the client intends to upload.
type UploadFileInput struct {
	FileName  string `json:"fileName" validate:"required"`
	MimeType  string `json:"mimeType" validate:"required"`
	SizeBytes int64  `json:"sizeBytes" validate:"required,gt=0"`
}

// UploadTicket carries the presigned PUT targets for one file. Thumbnail
// fields are present only for video uploads.
type UploadTicket struct {
	FileName           string  `json:"fileName"`
	StorageKey         string  `json:"storageKey"`
	UploadURL          string  `json:"uploadUrl"`
	ThumbnailKey       *string `json:"thumbnailKey,omitempty"`
	ThumbnailUploadURL *string `json:"thumbnailUploadUrl,omitempty"`
}

// CompletedFile identifies a blob the client finished uploading.
type CompletedFile struct {
	StorageKey   string  `json:"storageKey" validate:"required"`
	ThumbnailKey *string `json:"thumbnailKey,omitempty"`
	FileName     string  `json:"fileName" validate:"required"`
	MimeType     string  `json:"mimeType" validate:"required"`
}

// AlbumTarget addresses a row inside an album by its event coordinates.
type AlbumTarget struct {
	AlbumID   uuid.UUID `json:"albumId" validate:"required"`
	Event     string    `json:"event" validate:"required"`
	EventDate string    `json:"eventDate" validate:"required"`
}

// UploadCompleteInput finalizes a verified batch into one album row, with an
// optional simultaneous share to recipients.
type UploadCompleteInput struct {
	UploaderID uuid.UUID
	Target     AlbumTarget
	Files      []CompletedFile
	Recipients []string
}

// MoveInput relocates media from a source album into one or more target rows.
type MoveInput struct {
	ActorID       uuid.UUID
	SourceAlbumID uuid.UUID
	MediaIDs      []uuid.UUID
	Targets       []AlbumTarget
}

// DeleteInput removes media from one album, or from every album the actor
// owns when Permanent is set.
type DeleteInput struct {
	ActorID   uuid.UUID
	AlbumID   uuid.UUID
	MediaIDs  []uuid.UUID
	Permanent bool
}

// DeleteResult reports how many memberships each touched album lost.
type DeleteResult struct {
	LostPerAlbum map[uuid.UUID]int `json:"lostPerAlbum"`
	PurgedCount  int               `json:"purgedCount"`
}

// ShareInput offers media to recipients by username. Resolution is
// all-or-nothing; one unknown handle aborts the whole share.
type ShareInput struct {
	SenderID  uuid.UUID
	MediaIDs  []uuid.UUID
	Usernames []string
}

// AcceptTagInput consumes the pending request at Index, attaching its media
// to the given rows.
type AcceptTagInput struct {
	RecipientID uuid.UUID
	Index       int
	Targets     []AlbumTarget
}

// MediaDTO is the API-facing shape of a catalog row.
type MediaDTO struct {
	ID           uuid.UUID `json:"id"`
	UploaderID   uuid.UUID `json:"uploaderId"`
	FileName     string    `json:"fileName"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
	ViewURL      string    `json:"viewUrl,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AlbumRowDTO is one event row with its media in membership order.
type AlbumRowDTO struct {
	ID        uuid.UUID  `json:"id"`
	Event     string     `json:"event"`
	EventDate string     `json:"eventDate"`
	Media     []MediaDTO `json:"media"`
}

// AlbumDTO is an album with its populated rows.
type AlbumDTO struct {
	ID        uuid.UUID     `json:"id"`
	OwnerID   uuid.UUID     `json:"ownerId"`
	Kind      string        `json:"kind"`
	Name      string        `json:"name"`
	Rows      []AlbumRowDTO `json:"rows,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// TagRequestDTO is one pending entry in a recipient's queue.
type TagRequestDTO struct {
	Index      int         `json:"index"`
	SenderID   uuid.UUID   `json:"senderId"`
	MediaCount int         `json:"mediaCount"`
	Media      []MediaDTO  `json:"media,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	MediaIDs   []uuid.UUID `json:"-"`
}

// DownloadLink pairs a media id with its short-lived download URL.
type DownloadLink struct {
	MediaID uuid.UUID `json:"mediaId"`
	URL     string    `json:"url"`
}

// StorageUsage reports the user's quota counters.
type StorageUsage struct {
	TotalBytes int64 `json:"totalBytes"`
	UsedBytes  int64 `json:"usedBytes"`
}

func mediaDTO(item models.MediaItem) MediaDTO {
	return MediaDTO{
		ID:         item.ID,
		UploaderID: item.UploaderID,
		FileName:   item.FileName,
		MimeType:   item.MimeType,
		SizeBytes:  item.SizeBytes,
		CreatedAt:  item.CreatedAt,
	}
}
