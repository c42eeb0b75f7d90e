package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/containrrr/shoutrrr"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Wikid82/bookingshield/internal/logger"
	"github.com/Wikid82/bookingshield/internal/metrics"
	"github.com/Wikid82/bookingshield/internal/models"
)

// NotificationService forwards security events to shoutrrr destinations
// (Slack, Discord, email, generic webhooks). Sends are asynchronous and
// throttled so an attack does not turn into an alert storm.
type NotificationService struct {
	send    func(message string) []error
	limiter *rate.Limiter
}

// NewNotificationService validates urls and returns a notifier allowing at
// most perMinute alerts per minute. It returns nil when urls is empty.
func NewNotificationService(urls []string, perMinute int) (*NotificationService, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("create alert sender: %w", err)
	}
	return newNotificationService(func(msg string) []error {
		return sender.Send(msg, nil)
	}, perMinute), nil
}

func newNotificationService(send func(string) []error, perMinute int) *NotificationService {
	if perMinute < 1 {
		perMinute = 1
	}
	return &NotificationService{
		send:    send,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

// Notify implements Notifier.
func (s *NotificationService) Notify(ev models.SecurityEvent) {
	if s == nil {
		return
	}
	if !s.limiter.Allow() {
		metrics.IncAlertDropped()
		logger.WithFields(logrus.Fields{"event_type": ev.EventType}).Debug("security alert throttled")
		return
	}

	msg := FormatAlert(ev)
	go func() {
		for _, err := range s.send(msg) {
			if err != nil {
				logger.Log().WithError(err).Warn("failed to send security alert")
			}
		}
	}()
}

// FormatAlert renders an event as a short chat message.
func FormatAlert(ev models.SecurityEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s for %s", strings.ToUpper(string(ev.Severity)), ev.EventType, ev.Identifier)

	var d models.SecurityEventDetails
	if err := json.Unmarshal([]byte(ev.Details), &d); err == nil {
		if d.Endpoint != "" {
			fmt.Fprintf(&b, "\nEndpoint: %s", d.Endpoint)
		}
		if d.Limit > 0 && d.Count > 0 {
			fmt.Fprintf(&b, "\nRequests: %d (limit %d)", d.Count, d.Limit)
		}
		if d.TotalBlocks > 0 {
			fmt.Fprintf(&b, "\nTotal blocks: %d", d.TotalBlocks)
		}
		if d.Permanent {
			b.WriteString("\nBlock: permanent")
		} else if d.BlockedUntil != nil {
			fmt.Fprintf(&b, "\nBlocked until: %s", d.BlockedUntil.UTC().Format(time.RFC3339))
		}
		if d.RequiresCaptcha {
			b.WriteString("\nCAPTCHA required")
		}
	}
	return b.String()
}
