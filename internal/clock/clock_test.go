package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemClockSleepHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := SystemClock{}.Sleep(ctx, time.Second)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestFakeClockSleepAdvances(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := NewFakeClock(start)

	assert.NoError(t, clk.Sleep(context.Background(), 50*time.Millisecond))
	assert.NoError(t, clk.Sleep(context.Background(), 70*time.Millisecond))
	clk.Advance(time.Second)

	assert.Equal(t, start.Add(1120*time.Millisecond), clk.Now())
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 70 * time.Millisecond}, clk.Sleeps())
}
