package ratelimit

import (
	"encoding/json"

	"github.com/Wikid82/bookingshield/internal/models"
)

func blockedAttemptEvent(key Key, cfg Config, status BlockStatus) models.SecurityEvent {
	severity := models.SeverityMedium
	if status.Permanent {
		severity = models.SeverityHigh
	}
	return models.SecurityEvent{
		EventType:  models.EventIPBlocked,
		Identifier: key.Identifier,
		Severity:   severity,
		Details: encodeDetails(models.SecurityEventDetails{
			Endpoint:     cfg.Endpoint,
			SecondaryKey: key.SecondaryKey,
			Limit:        cfg.MaxRequests,
			BlockedUntil: status.Until,
			Permanent:    status.Permanent,
			Reason:       status.Reason,
		}),
	}
}

func exceededEvent(key Key, cfg Config, c Counter, d Decision) models.SecurityEvent {
	return models.SecurityEvent{
		EventType:  models.EventRateLimitExceeded,
		Identifier: key.Identifier,
		Severity:   models.SeverityHigh,
		Details: encodeDetails(models.SecurityEventDetails{
			Endpoint:        cfg.Endpoint,
			SecondaryKey:    key.SecondaryKey,
			Count:           c.Count,
			Limit:           cfg.MaxRequests,
			TotalBlocks:     d.TotalBlocks,
			RequiresCaptcha: d.RequiresCaptcha,
			BlockedUntil:    d.BlockUntil,
		}),
	}
}

func encodeDetails(d models.SecurityEventDetails) string {
	b, err := json.Marshal(d)
	if err != nil {
		return "{}"
	}
	return string(b)
}
