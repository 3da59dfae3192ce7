package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		name    string
		base    time.Duration
		attempt int
		max     time.Duration
		want    time.Duration
	}{
		{"first attempt", 5 * time.Second, 1, time.Minute, 5 * time.Second},
		{"second attempt doubles", 5 * time.Second, 2, time.Minute, 10 * time.Second},
		{"third attempt quadruples", 5 * time.Second, 3, time.Minute, 20 * time.Second},
		{"capped", 10 * time.Second, 5, 30 * time.Second, 30 * time.Second},
		{"uncapped", time.Second, 4, 0, 8 * time.Second},
		{"zero attempt treated as first", time.Second, 0, 0, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BackoffDelay(tt.base, tt.attempt, tt.max))
		})
	}
}

func TestPacer_PickWithinRange(t *testing.T) {
	p, _ := newTestPacer()
	r := DelayRange{Min: 2 * time.Second, Max: 4 * time.Second}

	for i := 0; i < 200; i++ {
		d := p.Pick(r)
		assert.GreaterOrEqual(t, d, r.Min)
		assert.LessOrEqual(t, d, r.Max)
	}

	assert.Equal(t, time.Second, p.Pick(DelayRange{Min: time.Second, Max: time.Second}))
}

func TestPacer_WaitUsesSleep(t *testing.T) {
	p, rec := newTestPacer()

	require.NoError(t, p.Wait(context.Background(), DelayRange{Min: time.Second, Max: time.Second}))
	require.NoError(t, p.Backoff(context.Background(), DelayRange{Min: time.Second, Max: time.Second}, 3, 0))

	assert.Equal(t, []time.Duration{time.Second, 4 * time.Second}, rec.sleeps)
}

func TestSleepCtx_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sleepCtx(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPacer_ThrottleUnlimited(t *testing.T) {
	p := NewPacer(0)
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Throttle(context.Background()))
	}
}
