package albums

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dcastano/framevault-backend/pkg/db/models"
	"github.com/dcastano/framevault-backend/pkg/enums"
)

// Repository owns albums, album_rows, and album_row_members. The unique
// (album_id, media_id) index keeps an item to one appearance per album, so
// attach results report what actually entered rather than what was requested.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTx inserts an album.
func (r *Repository) CreateTx(tx *gorm.DB, album *models.Album) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(album).Error
}

// GetByID loads an album.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Album, error) {
	var album models.Album
	if err := r.db.WithContext(ctx).First(&album, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &album, nil
}

// GetByIDTx loads an album inside an open transaction.
func (r *Repository) GetByIDTx(tx *gorm.DB, id uuid.UUID) (*models.Album, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var album models.Album
	if err := tx.First(&album, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &album, nil
}

// ListByOwner returns the user's albums, main album first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Album, error) {
	var rows []models.Album
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("kind ASC").
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// RenameTx updates a group album's name. Main albums are rejected upstream.
func (r *Repository) RenameTx(tx *gorm.DB, id uuid.UUID, name string) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.Album{}).
		Where("id = ? AND kind = ?", id, enums.AlbumKindGroup).
		UpdateColumn("name", name).Error
}

// DeleteTx removes the album row. Rows and members cascade in Postgres; the
// caller detaches members first so ref counts stay coherent.
func (r *Repository) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Delete(&models.Album{}, "id = ?", id).Error
}

// FindOrCreateRowTx resolves the (album, event, event_date) row, creating it
// when missing. Concurrent creators converge on the same row through the
// unique index.
func (r *Repository) FindOrCreateRowTx(tx *gorm.DB, albumID uuid.UUID, event, eventDate string) (*models.AlbumRow, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}

	row := models.AlbumRow{
		ID:        uuid.New(),
		AlbumID:   albumID,
		Event:     event,
		EventDate: eventDate,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		return &row, nil
	}

	var existing models.AlbumRow
	err := tx.Where("album_id = ? AND event = ? AND event_date = ?", albumID, event, eventDate).
		First(&existing).Error
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

// AttachTx inserts members into the row and reports which media actually
// entered the album. Items already present elsewhere in the album are skipped
// by the (album_id, media_id) constraint.
func (r *Repository) AttachTx(tx *gorm.DB, albumID, rowID, addedBy uuid.UUID, mediaIDs []uuid.UUID) ([]uuid.UUID, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}

	entered := make([]uuid.UUID, 0, len(mediaIDs))
	for _, mediaID := range mediaIDs {
		member := models.AlbumRowMember{
			ID:      uuid.New(),
			AlbumID: albumID,
			RowID:   rowID,
			MediaID: mediaID,
			AddedBy: addedBy,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			entered = append(entered, mediaID)
		}
	}
	return entered, nil
}

// DetachTx removes the media from every row of the album and reports which
// were actually present.
func (r *Repository) DetachTx(tx *gorm.DB, albumID uuid.UUID, mediaIDs []uuid.UUID) ([]uuid.UUID, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if len(mediaIDs) == 0 {
		return nil, nil
	}

	var removed []models.AlbumRowMember
	err := tx.Clauses(clause.Returning{}).
		Where("album_id = ? AND media_id IN ?", albumID, mediaIDs).
		Delete(&removed).Error
	if err != nil {
		return nil, err
	}

	out := make([]uuid.UUID, 0, len(removed))
	for _, m := range removed {
		out = append(out, m.MediaID)
	}
	return out, nil
}

// PruneEmptyRowsTx drops rows of the album that no longer hold members.
func (r *Repository) PruneEmptyRowsTx(tx *gorm.DB, albumID uuid.UUID) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.
		Where("album_id = ? AND id NOT IN (?)", albumID,
			tx.Session(&gorm.Session{NewDB: true}).
				Model(&models.AlbumRowMember{}).
				Select("row_id").
				Where("album_id = ?", albumID),
		).
		Delete(&models.AlbumRow{}).Error
}

// MembersTx snapshots which of the media are present in which of the albums.
func (r *Repository) MembersTx(tx *gorm.DB, albumIDs, mediaIDs []uuid.UUID) ([]models.AlbumRowMember, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if len(albumIDs) == 0 || len(mediaIDs) == 0 {
		return nil, nil
	}
	var rows []models.AlbumRowMember
	err := tx.Where("album_id IN ? AND media_id IN ?", albumIDs, mediaIDs).Find(&rows).Error
	return rows, err
}

// MembersByAlbum lists the membership of one album.
func (r *Repository) MembersByAlbum(ctx context.Context, albumID uuid.UUID) ([]models.AlbumRowMember, error) {
	var rows []models.AlbumRowMember
	err := r.db.WithContext(ctx).Where("album_id = ?", albumID).Find(&rows).Error
	return rows, err
}

// MembersByAlbumTx lists the membership of one album inside a transaction.
func (r *Repository) MembersByAlbumTx(tx *gorm.DB, albumID uuid.UUID) ([]models.AlbumRowMember, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var rows []models.AlbumRowMember
	err := tx.Where("album_id = ?", albumID).Find(&rows).Error
	return rows, err
}

// RowsByAlbum lists the rows of an album in creation order.
func (r *Repository) RowsByAlbum(ctx context.Context, albumID uuid.UUID) ([]models.AlbumRow, error) {
	var rows []models.AlbumRow
	err := r.db.WithContext(ctx).
		Where("album_id = ?", albumID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// AlbumsHoldingTx lists every album, regardless of owner, that still holds at
// least one of the media among its members.
func (r *Repository) AlbumsHoldingTx(tx *gorm.DB, mediaIDs []uuid.UUID) ([]models.Album, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if len(mediaIDs) == 0 {
		return nil, nil
	}
	var rows []models.Album
	err := tx.Model(&models.Album{}).
		Distinct("albums.*").
		Joins("JOIN album_row_members ON album_row_members.album_id = albums.id").
		Where("album_row_members.media_id IN ?", mediaIDs).
		Find(&rows).Error
	return rows, err
}

// CountOwnerMembershipsTx counts how many albums owned by the user still hold
// the media item. Quota refunds fire only when this reaches zero.
func (r *Repository) CountOwnerMembershipsTx(tx *gorm.DB, ownerID, mediaID uuid.UUID) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	var count int64
	err := tx.Model(&models.AlbumRowMember{}).
		Joins("JOIN albums ON albums.id = album_row_members.album_id").
		Where("albums.owner_id = ? AND album_row_members.media_id = ?", ownerID, mediaID).
		Count(&count).Error
	return count, err
}
