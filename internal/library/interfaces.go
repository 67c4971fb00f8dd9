package library

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcastano/framevault-backend/pkg/db/models"
	"github.com/dcastano/framevault-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CatalogStore is the media_items surface the collector drives. Reference
// counts move exclusively through AddRefsTx and PurgeIfZeroTx.
type CatalogStore interface {
	CreateTx(tx *gorm.DB, item *models.MediaItem) error
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.MediaItem, error)
	GetByIDsTx(tx *gorm.DB, ids []uuid.UUID) ([]models.MediaItem, error)
	AddRefsTx(tx *gorm.DB, id uuid.UUID, delta int) error
	PurgeIfZeroTx(tx *gorm.DB, ids []uuid.UUID) ([]models.MediaItem, error)
	DeleteTx(tx *gorm.DB, ids []uuid.UUID) error
}

// AlbumStore covers albums, rows, and row membership.
type AlbumStore interface {
	CreateTx(tx *gorm.DB, album *models.Album) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Album, error)
	GetByIDTx(tx *gorm.DB, id uuid.UUID) (*models.Album, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Album, error)
	RenameTx(tx *gorm.DB, id uuid.UUID, name string) error
	DeleteTx(tx *gorm.DB, id uuid.UUID) error
	FindOrCreateRowTx(tx *gorm.DB, albumID uuid.UUID, event, eventDate string) (*models.AlbumRow, error)
	AttachTx(tx *gorm.DB, albumID, rowID, addedBy uuid.UUID, mediaIDs []uuid.UUID) ([]uuid.UUID, error)
	DetachTx(tx *gorm.DB, albumID uuid.UUID, mediaIDs []uuid.UUID) ([]uuid.UUID, error)
	PruneEmptyRowsTx(tx *gorm.DB, albumID uuid.UUID) error
	MembersTx(tx *gorm.DB, albumIDs, mediaIDs []uuid.UUID) ([]models.AlbumRowMember, error)
	MembersByAlbum(ctx context.Context, albumID uuid.UUID) ([]models.AlbumRowMember, error)
	MembersByAlbumTx(tx *gorm.DB, albumID uuid.UUID) ([]models.AlbumRowMember, error)
	RowsByAlbum(ctx context.Context, albumID uuid.UUID) ([]models.AlbumRow, error)
	AlbumsHoldingTx(tx *gorm.DB, mediaIDs []uuid.UUID) ([]models.Album, error)
	CountOwnerMembershipsTx(tx *gorm.DB, ownerID, mediaID uuid.UUID) (int64, error)
}

// QuotaStore tracks per-user byte counters.
type QuotaStore interface {
	ChargeTx(tx *gorm.DB, userID uuid.UUID, bytes int64) error
	RefundTx(tx *gorm.DB, userID uuid.UUID, bytes int64) error
	Usage(ctx context.Context, userID uuid.UUID) (total int64, used int64, err error)
}

// TagStore is the per-recipient queue of pending share requests.
type TagStore interface {
	CreateTx(tx *gorm.DB, senderID, recipientID uuid.UUID, mediaIDs []uuid.UUID) (*models.TagRequest, error)
	ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.TagRequest, error)
	GetByIndexTx(tx *gorm.DB, recipientID uuid.UUID, index int) (*models.TagRequest, error)
	RemoveByIndexTx(tx *gorm.DB, recipientID uuid.UUID, index int) error
}

// UserDirectory resolves share recipients.
type UserDirectory interface {
	FindByUsernames(ctx context.Context, usernames []string) ([]models.User, error)
}

// BlobStore is the presign and object surface of the blob buckets.
type BlobStore interface {
	PresignMediaUpload(ctx context.Context, key, contentType string) (string, error)
	PresignThumbnailUpload(ctx context.Context, key, contentType string) (string, error)
	PresignView(ctx context.Context, key string) (string, error)
	PresignThumbnail(ctx context.Context, key string) (string, error)
	PresignDownload(ctx context.Context, key, filename string) (string, error)
	Head(ctx context.Context, key string) (int64, error)
	DeleteMediaObjects(ctx context.Context, keys []string) error
	DeleteThumbnailObjects(ctx context.Context, keys []string) error
}
