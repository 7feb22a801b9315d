package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/persistence/models"
)

// ProcessedEventStore is an IdempotencyStore on the processed_events table,
// used when Redis is not configured
type ProcessedEventStore struct {
	db *gorm.DB
}

// NewProcessedEventStore creates a new ProcessedEventStore
func NewProcessedEventStore(db *gorm.DB) *ProcessedEventStore {
	return &ProcessedEventStore{db: db}
}

// MarkProcessed inserts the key. An existing but expired key is taken over.
func (s *ProcessedEventStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).
		Create(&models.ProcessedEventModel{Key: key, ExpiresAt: now.Add(ttl), CreatedAt: now})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	result = s.db.WithContext(ctx).
		Model(&models.ProcessedEventModel{}).
		Where("key = ? AND expires_at <= ?", key, now).
		Updates(map[string]interface{}{"expires_at": now.Add(ttl), "created_at": now})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// IsProcessed reports an unexpired key
func (s *ProcessedEventStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.ProcessedEventModel{}).
		Where("key = ? AND expires_at > ?", key, time.Now().UTC()).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Release deletes the key
func (s *ProcessedEventStore) Release(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).
		Where("key = ?", key).
		Delete(&models.ProcessedEventModel{}).Error
}

// DeleteExpired removes keys whose TTL has passed
func (s *ProcessedEventStore) DeleteExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", time.Now().UTC()).
		Delete(&models.ProcessedEventModel{})
	return result.RowsAffected, result.Error
}

// Close is a no-op; the database is owned by the caller
func (s *ProcessedEventStore) Close() error {
	return nil
}

var _ shared.IdempotencyStore = (*ProcessedEventStore)(nil)
