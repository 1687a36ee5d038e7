package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketplace-backend/models"
)

// IdempotencyRepository backs the idempotency guard. Claim relies on the
// store's create-if-absent primitive: an insert that silently loses against
// an existing key.
type IdempotencyRepository interface {
	// Claim inserts a `processing` record for key and reports whether this
	// caller won the insert.
	Claim(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (*models.IdempotencyRecord, error)
	// Reclaim flips a `failed` record back to `processing` so a redelivery
	// can retry it. Only one concurrent caller can win the flip.
	Reclaim(ctx context.Context, key string) (bool, error)
	MarkCompleted(ctx context.Context, key string, resultRef *uuid.UUID) error
	MarkFailed(ctx context.Context, key string, reason string) error
}

type GormIdempotencyRepository struct {
	db *gorm.DB
}

func NewGormIdempotencyRepository(db *gorm.DB) IdempotencyRepository {
	return &GormIdempotencyRepository{db: db}
}

func (r *GormIdempotencyRepository) Claim(ctx context.Context, key string) (bool, error) {
	record := models.IdempotencyRecord{
		Key:    key,
		Status: models.IdempotencyStatusProcessing,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormIdempotencyRepository) Get(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	var record models.IdempotencyRecord
	if err := r.db.WithContext(ctx).First(&record, "key = ?", key).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *GormIdempotencyRepository) Reclaim(ctx context.Context, key string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.IdempotencyRecord{}).
		Where("key = ? AND status = ?", key, models.IdempotencyStatusFailed).
		Updates(map[string]interface{}{
			"status":     models.IdempotencyStatusProcessing,
			"last_error": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormIdempotencyRepository) MarkCompleted(ctx context.Context, key string, resultRef *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.IdempotencyRecord{}).
		Where("key = ?", key).
		Updates(map[string]interface{}{
			"status":     models.IdempotencyStatusCompleted,
			"result_ref": resultRef,
		}).Error
}

func (r *GormIdempotencyRepository) MarkFailed(ctx context.Context, key string, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.IdempotencyRecord{}).
		Where("key = ?", key).
		Updates(map[string]interface{}{
			"status":     models.IdempotencyStatusFailed,
			"last_error": reason,
		}).Error
}
