package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Wikid82/bookingshield/internal/logger"
	"github.com/Wikid82/bookingshield/internal/metrics"
	"github.com/Wikid82/bookingshield/internal/models"
	"github.com/Wikid82/bookingshield/internal/ratelimit"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// Notifier forwards security events to operators.
type Notifier interface {
	Notify(ev models.SecurityEvent)
}

// EventFilter narrows AuditService.List.
type EventFilter struct {
	Identifier string
	EventType  models.SecurityEventType
	Limit      int
}

// AuditService is the append-only security event log.
type AuditService struct {
	db          *gorm.DB
	notifier    Notifier
	minSeverity models.Severity
	now         func() time.Time
}

// NewAuditService returns an AuditService. Events at or above minSeverity are
// forwarded to notifier when it is non-nil.
func NewAuditService(db *gorm.DB, notifier Notifier, minSeverity models.Severity) *AuditService {
	return &AuditService{db: db, notifier: notifier, minSeverity: minSeverity, now: time.Now}
}

// Record persists an event. Failures are logged and counted but never
// returned: losing an audit row must not change a rate limit decision.
func (s *AuditService) Record(ctx context.Context, ev models.SecurityEvent) {
	if ev.UUID == "" {
		ev.UUID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	if ev.Details == "" {
		ev.Details = "{}"
	}

	// The request may be cancelled right after the decision; the event should still land.
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(&ev).Error; err != nil {
		metrics.IncAuditWriteFailure()
		logger.WithFields(logrus.Fields{
			"event_type": ev.EventType,
			"identifier": ev.Identifier,
			"severity":   ev.Severity,
		}).WithError(err).Error("failed to persist security event")
	}

	if s.notifier != nil && ev.Severity.Rank() >= s.minSeverity.Rank() {
		s.notifier.Notify(ev)
	}
}

// List returns recent events, newest first.
func (s *AuditService) List(ctx context.Context, f EventFilter) ([]models.SecurityEvent, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	q := s.db.WithContext(ctx).Order("id desc").Limit(limit)
	if f.Identifier != "" {
		q = q.Where("identifier = ?", ratelimit.NormalizeIdentifier(f.Identifier))
	}
	if f.EventType != "" {
		q = q.Where("event_type = ?", f.EventType)
	}

	var res []models.SecurityEvent
	if err := q.Find(&res).Error; err != nil {
		return nil, err
	}
	return res, nil
}

func encodeDetails(d models.SecurityEventDetails) string {
	b, err := json.Marshal(d)
	if err != nil {
		return "{}"
	}
	return string(b)
}
