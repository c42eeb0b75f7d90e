package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/bookingshield/internal/ratelimit"
)

// testCounterStore exercises the CounterStore contract against any backend.
func testCounterStore(t *testing.T, store ratelimit.CounterStore) {
	ctx := context.Background()
	window := time.Minute
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("missing bucket", func(t *testing.T) {
		c, err := store.Get(ctx, ratelimit.NewKey("203.0.113.250", "contact_form", ""))
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("counts within window and resets after", func(t *testing.T) {
		key := ratelimit.NewKey("203.0.113.1", "booking_creation", "")
		for i := 1; i <= 3; i++ {
			c, err := store.IncrementAndCheck(ctx, key, window, t0.Add(time.Duration(i)*time.Second))
			require.NoError(t, err)
			assert.Equal(t, i, c.Count)
			assert.True(t, c.WindowStart.Equal(t0.Add(time.Second)), "window start should stay at first request")
			assert.False(t, c.Blocked)
		}

		// exactly window after start is still inside the window
		c, err := store.IncrementAndCheck(ctx, key, window, t0.Add(time.Second+window))
		require.NoError(t, err)
		assert.Equal(t, 4, c.Count)

		later := t0.Add(time.Second + window + time.Millisecond)
		c, err = store.IncrementAndCheck(ctx, key, window, later)
		require.NoError(t, err)
		assert.Equal(t, 1, c.Count)
		assert.True(t, c.WindowStart.Equal(later))
	})

	t.Run("secondary keys are independent", func(t *testing.T) {
		a := ratelimit.NewKey("203.0.113.2", "booking_creation", "salon")
		b := ratelimit.NewKey("203.0.113.2", "booking_creation", "barber")
		_, err := store.IncrementAndCheck(ctx, a, window, t0)
		require.NoError(t, err)
		_, err = store.IncrementAndCheck(ctx, a, window, t0)
		require.NoError(t, err)
		c, err := store.IncrementAndCheck(ctx, b, window, t0)
		require.NoError(t, err)
		assert.Equal(t, 1, c.Count)
	})

	t.Run("active block freezes the counter", func(t *testing.T) {
		key := ratelimit.NewKey("203.0.113.3", "waitlist_signup", "")
		_, err := store.IncrementAndCheck(ctx, key, window, t0)
		require.NoError(t, err)

		until := t0.Add(5 * time.Minute)
		ok, err := store.ApplyBlock(ctx, key, 0, until, "exceeded")
		require.NoError(t, err)
		require.True(t, ok)

		c, err := store.IncrementAndCheck(ctx, key, window, t0.Add(time.Second))
		require.NoError(t, err)
		assert.True(t, c.Blocked)
		assert.Equal(t, 1, c.Count)
		assert.Equal(t, 1, c.TotalBlocks)
		require.NotNil(t, c.BlockedUntil)
		assert.True(t, c.BlockedUntil.Equal(until))

		// stale block is cleared on the next increment
		c, err = store.IncrementAndCheck(ctx, key, window, until.Add(time.Second))
		require.NoError(t, err)
		assert.False(t, c.Blocked)
		assert.Nil(t, c.BlockedUntil)
		assert.Equal(t, 1, c.Count)
		assert.Equal(t, 1, c.TotalBlocks)
		assert.Equal(t, "exceeded", c.Reason)
	})

	t.Run("apply block is compare and swap", func(t *testing.T) {
		key := ratelimit.NewKey("203.0.113.4", "contact_form", "")
		_, err := store.IncrementAndCheck(ctx, key, window, t0)
		require.NoError(t, err)

		ok, err := store.ApplyBlock(ctx, key, 0, t0.Add(time.Minute), "first")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.ApplyBlock(ctx, key, 0, t0.Add(time.Hour), "second")
		require.NoError(t, err)
		assert.False(t, ok)

		c, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, 1, c.TotalBlocks)
		assert.Equal(t, "first", c.Reason)
		assert.True(t, c.BlockedUntil.Equal(t0.Add(time.Minute)))
	})
}
