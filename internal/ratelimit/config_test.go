package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{Endpoint: "booking_creation", MaxRequests: 5, WindowSeconds: 60, BlockDurationSeconds: 300}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing endpoint", func(c *Config) { c.Endpoint = " " }},
		{"zero max", func(c *Config) { c.MaxRequests = 0 }},
		{"zero window", func(c *Config) { c.WindowSeconds = 0 }},
		{"negative block", func(c *Config) { c.BlockDurationSeconds = -1 }},
		{"zero captcha threshold", func(c *Config) { c.CaptchaThreshold = Threshold(0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfigDurations(t *testing.T) {
	cfg := Config{WindowSeconds: 60, BlockDurationSeconds: 300}
	assert.Equal(t, time.Minute, cfg.Window())
	assert.Equal(t, 5*time.Minute, cfg.BlockDuration())
}
