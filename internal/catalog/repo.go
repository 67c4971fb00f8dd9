package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dcastano/framevault-backend/pkg/db/models"
)

// Repository owns the media_items table. Reference counts only ever move
// through relative updates here; callers never write absolute values.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTx inserts a catalog row. RefCount starts at whatever the caller
// computed for the initial attachment set.
func (r *Repository) CreateTx(tx *gorm.DB, item *models.MediaItem) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(item).Error
}

// GetByIDs loads catalog rows for the given ids.
func (r *Repository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.MediaItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.MediaItem
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// GetByIDsTx loads catalog rows inside an open transaction.
func (r *Repository) GetByIDsTx(tx *gorm.DB, ids []uuid.UUID) ([]models.MediaItem, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.MediaItem
	err := tx.Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// AddRefsTx applies a relative ref count change. Negative deltas decrement.
func (r *Repository) AddRefsTx(tx *gorm.DB, id uuid.UUID, delta int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if delta == 0 {
		return nil
	}
	return tx.Model(&models.MediaItem{}).
		Where("id = ?", id).
		UpdateColumn("ref_count", gorm.Expr("ref_count + ?", delta)).Error
}

// PurgeIfZeroTx deletes rows from the candidate set whose ref count is at or
// below zero and returns the deleted rows so the caller can clean up blobs.
// Rows that picked up a reference since the candidate set was built survive.
func (r *Repository) PurgeIfZeroTx(tx *gorm.DB, ids []uuid.UUID) ([]models.MediaItem, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var purged []models.MediaItem
	err := tx.Clauses(clause.Returning{}).
		Where("id IN ? AND ref_count <= 0", ids).
		Delete(&purged).Error
	if err != nil {
		return nil, err
	}
	return purged, nil
}

// DeleteTx removes catalog rows outright. Used when an upload batch is rolled
// back before any references exist.
func (r *Repository) DeleteTx(tx *gorm.DB, ids []uuid.UUID) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if len(ids) == 0 {
		return nil
	}
	return tx.Where("id IN ?", ids).Delete(&models.MediaItem{}).Error
}
