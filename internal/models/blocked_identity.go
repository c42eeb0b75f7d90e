package models

import (
	"time"
)

// BlockedIdentity is an IP-wide block consulted before any counting happens.
// A permanent block is terminal for the limiter; only an administrator can
// remove it.
type BlockedIdentity struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	UUID         string     `json:"uuid" gorm:"uniqueIndex"`
	Identifier   string     `json:"identifier" gorm:"uniqueIndex;not null;size:255"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"` // ignored when Permanent
	Permanent    bool       `json:"permanent"`
	Reason       string     `json:"reason" gorm:"type:text"`
	CreatedBy    string     `json:"created_by"` // admin, seed, cli
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ActiveAt reports whether the block applies at the given instant.
func (b *BlockedIdentity) ActiveAt(now time.Time) bool {
	if b.Permanent {
		return true
	}
	return b.BlockedUntil != nil && now.Before(*b.BlockedUntil)
}
