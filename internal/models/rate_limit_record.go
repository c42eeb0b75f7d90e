package models

import (
	"time"
)

// RateLimitRecord is the persisted fixed-window counter for one
// (identifier, endpoint, secondary key) bucket.
//
// Window start and block expiry are stored as unix milliseconds so the
// conditional upsert can compare them numerically on any SQL backend.
type RateLimitRecord struct {
	ID                  uint      `json:"id" gorm:"primaryKey"`
	Identifier          string    `json:"identifier" gorm:"not null;size:255;uniqueIndex:idx_rate_limit_key"`
	Endpoint            string    `json:"endpoint" gorm:"not null;size:64;uniqueIndex:idx_rate_limit_key"`
	SecondaryKey        string    `json:"secondary_key" gorm:"not null;default:'';size:255;uniqueIndex:idx_rate_limit_key"`
	RequestCount        int       `json:"request_count" gorm:"not null;default:0"`
	WindowStart         int64     `json:"window_start" gorm:"not null"`
	BlockedUntil        *int64    `json:"blocked_until,omitempty" gorm:"index"`
	TotalBlocks         int       `json:"total_blocks" gorm:"not null;default:0"`
	LastViolationReason string    `json:"last_violation_reason" gorm:"type:text"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// WindowStartTime returns the start of the current counting window.
func (r *RateLimitRecord) WindowStartTime() time.Time {
	return time.UnixMilli(r.WindowStart).UTC()
}

// BlockedUntilTime returns the block expiry, or nil when the bucket was never blocked.
func (r *RateLimitRecord) BlockedUntilTime() *time.Time {
	if r.BlockedUntil == nil {
		return nil
	}
	t := time.UnixMilli(*r.BlockedUntil).UTC()
	return &t
}
