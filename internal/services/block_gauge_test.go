package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/bookingshield/internal/metrics"
)

func gaugeValue(t *testing.T, kind string) float64 {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics.Register(reg)
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "shield_active_blocks" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "kind" && l.GetValue() == kind {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	return -1
}

func TestStartBlockGauge(t *testing.T) {
	blocks := NewBlockService(setupTestDB(t), nil)
	ctx := context.Background()

	until := time.Now().Add(time.Hour)
	_, err := blocks.Block(ctx, BlockRequest{Identifier: "203.0.113.1", Until: &until})
	require.NoError(t, err)
	_, err = blocks.Block(ctx, BlockRequest{Identifier: "203.0.113.2", Permanent: true})
	require.NoError(t, err)
	_, err = blocks.Block(ctx, BlockRequest{Identifier: "203.0.113.3", Permanent: true})
	require.NoError(t, err)

	c, err := StartBlockGauge(blocks, "@every 1h")
	require.NoError(t, err)
	defer c.Stop()

	assert.Equal(t, float64(1), gaugeValue(t, "temporary"))
	assert.Equal(t, float64(2), gaugeValue(t, "permanent"))
}

func TestStartBlockGauge_BadSchedule(t *testing.T) {
	_, err := StartBlockGauge(NewBlockService(setupTestDB(t), nil), "every now and then")
	assert.Error(t, err)
}
