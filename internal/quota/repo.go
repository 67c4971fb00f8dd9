package quota

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcastano/framevault-backend/pkg/db/models"
)

// ErrQuotaExceeded is returned when a charge would push used bytes past the
// user's total.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Repository mutates the per-user byte counters. Charge and refund are single
// conditional updates so concurrent operations cannot oversubscribe a plan.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ChargeTx adds bytes to used_bytes only when the result stays within
// total_bytes. Zero-byte charges are a no-op.
func (r *Repository) ChargeTx(tx *gorm.DB, userID uuid.UUID, bytes int64) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if bytes < 0 {
		return errors.New("charge bytes must be non-negative")
	}
	if bytes == 0 {
		return nil
	}

	res := tx.Model(&models.User{}).
		Where("id = ? AND used_bytes + ? <= total_bytes", userID, bytes).
		UpdateColumn("used_bytes", gorm.Expr("used_bytes + ?", bytes))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Zero rows covers both an over-quota user and a user that does not
		// exist; only the former is a quota failure.
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return ErrQuotaExceeded
	}
	return nil
}

// RefundTx subtracts bytes from used_bytes, flooring at zero.
func (r *Repository) RefundTx(tx *gorm.DB, userID uuid.UUID, bytes int64) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if bytes < 0 {
		return errors.New("refund bytes must be non-negative")
	}
	if bytes == 0 {
		return nil
	}

	return tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("used_bytes", gorm.Expr(
			"CASE WHEN used_bytes - ? < 0 THEN 0 ELSE used_bytes - ? END", bytes, bytes,
		)).Error
}

// Usage reports the quota counters for a user.
func (r *Repository) Usage(ctx context.Context, userID uuid.UUID) (total int64, used int64, err error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Select("total_bytes", "used_bytes").
		First(&user, "id = ?", userID).Error; err != nil {
		return 0, 0, err
	}
	return user.TotalBytes, user.UsedBytes, nil
}
