package models

import (
	"time"
)

// SecurityEventType enumerates the audit events written by the rate limiter.
type SecurityEventType string

const (
	EventRateLimitExceeded SecurityEventType = "rate_limit_exceeded"
	EventIPBlocked         SecurityEventType = "ip_blocked"
	EventIPBlockCreated    SecurityEventType = "ip_block_created"
	EventIPUnblocked       SecurityEventType = "ip_unblocked"
)

// Severity of a SecurityEvent.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities so alert thresholds can be compared.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// SecurityEvent is an append-only audit record. Rows are written once and
// never updated or deleted by the service.
type SecurityEvent struct {
	ID         uint              `json:"id" gorm:"primaryKey"`
	UUID       string            `json:"uuid" gorm:"uniqueIndex"`
	EventType  SecurityEventType `json:"event_type" gorm:"index;size:64"`
	Identifier string            `json:"identifier" gorm:"index;size:255"`
	Details    string            `json:"details" gorm:"type:text"` // JSON
	Severity   Severity          `json:"severity" gorm:"size:16"`
	CreatedAt  time.Time         `json:"created_at" gorm:"index"`
}

// SecurityEventDetails is the structured payload serialised into SecurityEvent.Details.
type SecurityEventDetails struct {
	Endpoint        string     `json:"endpoint,omitempty"`
	SecondaryKey    string     `json:"secondary_key,omitempty"`
	Count           int        `json:"count,omitempty"`
	Limit           int        `json:"limit,omitempty"`
	TotalBlocks     int        `json:"total_blocks,omitempty"`
	RequiresCaptcha bool       `json:"requires_captcha"`
	BlockedUntil    *time.Time `json:"blocked_until,omitempty"`
	Permanent       bool       `json:"permanent,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	Actor           string     `json:"actor,omitempty"`
}
