package tags

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcastano/framevault-backend/pkg/db/models"
)

// ErrNotFound is returned when a positional index does not resolve to a
// pending request for the recipient.
var ErrNotFound = errors.New("tag request not found")

// Repository owns the tag_requests table. Each recipient holds an ordered
// queue addressed by position; removing an entry compacts the positions that
// follow it so indexes stay dense.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTx appends a request to the end of the recipient's queue and returns
// the stored row. Position is assigned inside the transaction so concurrent
// shares to the same recipient serialize on the row lock.
func (r *Repository) CreateTx(tx *gorm.DB, senderID, recipientID uuid.UUID, mediaIDs []uuid.UUID) (*models.TagRequest, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if len(mediaIDs) == 0 {
		return nil, errors.New("tag request requires at least one media item")
	}

	var next int
	err := tx.Model(&models.TagRequest{}).
		Where("recipient_id = ?", recipientID).
		Select("COALESCE(MAX(position) + 1, 0)").
		Scan(&next).Error
	if err != nil {
		return nil, err
	}

	req := models.TagRequest{
		ID:          uuid.New(),
		RecipientID: recipientID,
		SenderID:    senderID,
		Position:    next,
		MediaIDs:    append([]uuid.UUID(nil), mediaIDs...),
	}
	if err := tx.Create(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// ListByRecipient returns the recipient's pending queue in positional order.
func (r *Repository) ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.TagRequest, error) {
	var rows []models.TagRequest
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("position ASC").
		Find(&rows).Error
	return rows, err
}

// GetByIndexTx resolves the request at the given position in the recipient's
// queue.
func (r *Repository) GetByIndexTx(tx *gorm.DB, recipientID uuid.UUID, index int) (*models.TagRequest, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var req models.TagRequest
	err := tx.Where("recipient_id = ? AND position = ?", recipientID, index).
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// RemoveByIndexTx deletes the request at the given position and shifts every
// later entry down by one so the queue stays dense.
func (r *Repository) RemoveByIndexTx(tx *gorm.DB, recipientID uuid.UUID, index int) error {
	if tx == nil {
		return errors.New("transaction required")
	}

	res := tx.Where("recipient_id = ? AND position = ?", recipientID, index).
		Delete(&models.TagRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return tx.Model(&models.TagRequest{}).
		Where("recipient_id = ? AND position > ?", recipientID, index).
		UpdateColumn("position", gorm.Expr("position - 1")).Error
}

// CountByRecipient reports how many requests are pending for the user.
func (r *Repository) CountByRecipient(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TagRequest{}).
		Where("recipient_id = ?", recipientID).
		Count(&count).Error
	return count, err
}
