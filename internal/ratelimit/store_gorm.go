package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Wikid82/bookingshield/internal/models"
)

const recordTable = "rate_limit_records"

var recordKeyColumns = []clause.Column{{Name: "identifier"}, {Name: "endpoint"}, {Name: "secondary_key"}}

// GormCounterStore keeps counters in the rate_limit_records table.
type GormCounterStore struct {
	db *gorm.DB
}

// NewGormCounterStore returns a CounterStore backed by the given database.
func NewGormCounterStore(db *gorm.DB) *GormCounterStore {
	return &GormCounterStore{db: db}
}

// IncrementAndCheck performs an INSERT ... ON CONFLICT DO UPDATE whose SET
// clause carries the whole window/block decision, then reads the row back in
// the same transaction.
func (s *GormCounterStore) IncrementAndCheck(ctx context.Context, key Key, window time.Duration, now time.Time) (Counter, error) {
	nowMs := now.UnixMilli()
	cutoff := now.Add(-window).UnixMilli()

	col := func(name string) string { return recordTable + "." + name }
	active := fmt.Sprintf("%s IS NOT NULL AND %s > ?", col("blocked_until"), col("blocked_until"))

	var rec models.RateLimitRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.RateLimitRecord{
			Identifier:   key.Identifier,
			Endpoint:     key.Endpoint,
			SecondaryKey: key.SecondaryKey,
			RequestCount: 1,
			WindowStart:  nowMs,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: recordKeyColumns,
			DoUpdates: clause.Assignments(map[string]interface{}{
				"request_count": gorm.Expr(
					fmt.Sprintf("CASE WHEN %s THEN %s WHEN %s < ? THEN 1 ELSE %s + 1 END",
						active, col("request_count"), col("window_start"), col("request_count")),
					nowMs, cutoff),
				"window_start": gorm.Expr(
					fmt.Sprintf("CASE WHEN %s THEN %s WHEN %s < ? THEN ? ELSE %s END",
						active, col("window_start"), col("window_start"), col("window_start")),
					nowMs, cutoff, nowMs),
				"blocked_until": gorm.Expr(
					fmt.Sprintf("CASE WHEN %s THEN %s ELSE NULL END", active, col("blocked_until")),
					nowMs),
				"updated_at": now,
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return whereKey(tx, key).First(&rec).Error
	})
	if err != nil {
		return Counter{}, fmt.Errorf("upsert rate limit record %s: %w", key, err)
	}

	c := counterFromRecord(key, &rec)
	c.Blocked = blockActive(c.BlockedUntil, now)
	return c, nil
}

// ApplyBlock is a compare-and-swap on total_blocks.
func (s *GormCounterStore) ApplyBlock(ctx context.Context, key Key, expectedTotalBlocks int, until time.Time, reason string) (bool, error) {
	res := whereKey(s.db.WithContext(ctx).Model(&models.RateLimitRecord{}), key).
		Where("total_blocks = ?", expectedTotalBlocks).
		Updates(map[string]interface{}{
			"blocked_until":         until.UnixMilli(),
			"total_blocks":          expectedTotalBlocks + 1,
			"last_violation_reason": reason,
		})
	if res.Error != nil {
		return false, fmt.Errorf("apply block %s: %w", key, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Get loads a bucket without modifying it.
func (s *GormCounterStore) Get(ctx context.Context, key Key) (*Counter, error) {
	var rec models.RateLimitRecord
	if err := whereKey(s.db.WithContext(ctx), key).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load rate limit record %s: %w", key, err)
	}
	c := counterFromRecord(key, &rec)
	return &c, nil
}

// ListByIdentifier returns every bucket recorded for an identifier.
func (s *GormCounterStore) ListByIdentifier(ctx context.Context, identifier string) ([]models.RateLimitRecord, error) {
	var res []models.RateLimitRecord
	err := s.db.WithContext(ctx).
		Where("identifier = ?", NormalizeIdentifier(identifier)).
		Order("endpoint asc, secondary_key asc").
		Find(&res).Error
	if err != nil {
		return nil, err
	}
	return res, nil
}

func whereKey(db *gorm.DB, key Key) *gorm.DB {
	return db.Where("identifier = ? AND endpoint = ? AND secondary_key = ?", key.Identifier, key.Endpoint, key.SecondaryKey)
}

func counterFromRecord(key Key, rec *models.RateLimitRecord) Counter {
	return Counter{
		Key:          key,
		Count:        rec.RequestCount,
		WindowStart:  rec.WindowStartTime(),
		BlockedUntil: rec.BlockedUntilTime(),
		TotalBlocks:  rec.TotalBlocks,
		Reason:       rec.LastViolationReason,
	}
}
