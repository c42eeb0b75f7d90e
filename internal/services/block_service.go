package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Wikid82/bookingshield/internal/models"
	"github.com/Wikid82/bookingshield/internal/ratelimit"
)

var (
	ErrBlockNotFound     = errors.New("block not found")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrInvalidBlockUntil = errors.New("temporary block must expire in the future")
)

// BlockRequest describes an IP-wide block created by an administrator.
type BlockRequest struct {
	Identifier string
	Permanent  bool
	Until      *time.Time // required unless Permanent
	Reason     string
	Actor      string
}

// BlockService is the persistent registry of IP-wide blocks. Temporary blocks
// expire lazily when read; nothing deletes them on a timer.
type BlockService struct {
	db    *gorm.DB
	audit ratelimit.AuditLog
	now   func() time.Time
}

// NewBlockService returns a BlockService using the provided DB. audit may be nil.
func NewBlockService(db *gorm.DB, audit ratelimit.AuditLog) *BlockService {
	return &BlockService{db: db, audit: audit, now: time.Now}
}

// IsBlocked implements ratelimit.BlockRegistry.
func (s *BlockService) IsBlocked(ctx context.Context, identifier string) (ratelimit.BlockStatus, error) {
	var b models.BlockedIdentity
	err := s.db.WithContext(ctx).Where("identifier = ?", ratelimit.NormalizeIdentifier(identifier)).First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ratelimit.BlockStatus{}, nil
		}
		return ratelimit.BlockStatus{}, fmt.Errorf("load blocked identity: %w", err)
	}
	if !b.ActiveAt(s.now()) {
		return ratelimit.BlockStatus{}, nil
	}
	status := ratelimit.BlockStatus{Blocked: true, Permanent: b.Permanent, Reason: b.Reason}
	if !b.Permanent {
		status.Until = b.BlockedUntil
	}
	return status, nil
}

// Block creates or extends an IP-wide block. An existing permanent block is
// never downgraded to a temporary one.
func (s *BlockService) Block(ctx context.Context, req BlockRequest) (*models.BlockedIdentity, error) {
	identifier := ratelimit.NormalizeIdentifier(req.Identifier)
	if !isValidIdentifier(identifier) {
		return nil, ErrInvalidIdentifier
	}
	now := s.now()
	if !req.Permanent && (req.Until == nil || !req.Until.After(now)) {
		return nil, ErrInvalidBlockUntil
	}

	var saved models.BlockedIdentity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.BlockedIdentity
		if err := tx.Where("identifier = ?", identifier).First(&existing).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			saved = models.BlockedIdentity{
				UUID:       uuid.NewString(),
				Identifier: identifier,
				Permanent:  req.Permanent,
				Reason:     req.Reason,
				CreatedBy:  req.Actor,
			}
			if !req.Permanent {
				until := req.Until.UTC()
				saved.BlockedUntil = &until
			}
			return tx.Create(&saved).Error
		}

		if existing.Permanent && !req.Permanent {
			saved = existing
			return nil
		}
		existing.Permanent = req.Permanent
		existing.Reason = req.Reason
		existing.CreatedBy = req.Actor
		existing.BlockedUntil = nil
		if !req.Permanent {
			until := req.Until.UTC()
			existing.BlockedUntil = &until
		}
		saved = existing
		return tx.Save(&saved).Error
	})
	if err != nil {
		return nil, fmt.Errorf("save blocked identity: %w", err)
	}

	s.record(ctx, models.EventIPBlockCreated, &saved, req.Actor)
	return &saved, nil
}

// Unblock removes a block, permanent or not. It is only reachable from the
// admin API and the CLI.
func (s *BlockService) Unblock(ctx context.Context, identifier, actor string) error {
	identifier = ratelimit.NormalizeIdentifier(identifier)
	var existing models.BlockedIdentity
	if err := s.db.WithContext(ctx).Where("identifier = ?", identifier).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBlockNotFound
		}
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&existing).Error; err != nil {
		return fmt.Errorf("delete blocked identity: %w", err)
	}
	s.record(ctx, models.EventIPUnblocked, &existing, actor)
	return nil
}

// List returns blocks ordered by identifier. With activeOnly, expired
// temporary blocks are filtered out.
func (s *BlockService) List(ctx context.Context, activeOnly bool) ([]models.BlockedIdentity, error) {
	var all []models.BlockedIdentity
	if err := s.db.WithContext(ctx).Order("identifier asc").Find(&all).Error; err != nil {
		return nil, err
	}
	if !activeOnly {
		return all, nil
	}
	now := s.now()
	res := make([]models.BlockedIdentity, 0, len(all))
	for i := range all {
		if all[i].ActiveAt(now) {
			res = append(res, all[i])
		}
	}
	return res, nil
}

// CountActive returns the number of active temporary and permanent blocks.
func (s *BlockService) CountActive(ctx context.Context) (temporary, permanent int64, err error) {
	active, err := s.List(ctx, true)
	if err != nil {
		return 0, 0, err
	}
	for i := range active {
		if active[i].Permanent {
			permanent++
		} else {
			temporary++
		}
	}
	return temporary, permanent, nil
}

func (s *BlockService) record(ctx context.Context, eventType models.SecurityEventType, b *models.BlockedIdentity, actor string) {
	if s.audit == nil {
		return
	}
	details := models.SecurityEventDetails{
		BlockedUntil: b.BlockedUntil,
		Permanent:    b.Permanent,
		Reason:       b.Reason,
		Actor:        actor,
	}
	s.audit.Record(ctx, models.SecurityEvent{
		EventType:  eventType,
		Identifier: b.Identifier,
		Severity:   models.SeverityMedium,
		Details:    encodeDetails(details),
	})
}

// isValidIdentifier accepts IP addresses and the shared unknown-client bucket.
func isValidIdentifier(identifier string) bool {
	if identifier == ratelimit.UnknownClient {
		return true
	}
	return net.ParseIP(identifier) != nil
}
