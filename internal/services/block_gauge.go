package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Wikid82/bookingshield/internal/logger"
	"github.com/Wikid82/bookingshield/internal/metrics"
)

// StartBlockGauge refreshes the shield_active_blocks gauge on the given cron
// schedule (e.g. "@every 1m"). The gauge is read-only; expired blocks are not
// purged. Stop the returned cron on shutdown.
func StartBlockGauge(blocks *BlockService, schedule string) (*cron.Cron, error) {
	refresh := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		temporary, permanent, err := blocks.CountActive(ctx)
		if err != nil {
			logger.Log().WithError(err).Warn("failed to refresh block gauge")
			return
		}
		metrics.SetActiveBlocks(temporary, permanent)
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, refresh); err != nil {
		return nil, fmt.Errorf("schedule block gauge %q: %w", schedule, err)
	}
	refresh()
	c.Start()
	return c, nil
}
