package scraper

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/openintern/backend/internal/config"
)

// DelayRange is a closed interval a randomized wait is drawn from
type DelayRange = config.DelayRange

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Pacer spaces out browser traffic: randomized human-like waits, growing
// backoff between retries, and an overall request rate ceiling.
type Pacer struct {
	mu      sync.Mutex
	rng     *rand.Rand
	limiter *rate.Limiter
	sleep   SleepFunc
}

// NewPacer creates a pacer allowing requestsPerMinute navigations per
// minute; zero disables the ceiling.
func NewPacer(requestsPerMinute int) *Pacer {
	seed := uint64(time.Now().UnixNano())
	return newPacer(requestsPerMinute, rand.New(rand.NewPCG(seed, seed>>1)), sleepCtx)
}

func newPacer(requestsPerMinute int, rng *rand.Rand, sleep SleepFunc) *Pacer {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	return &Pacer{
		rng:     rng,
		limiter: rate.NewLimiter(limit, 1),
		sleep:   sleep,
	}
}

// Pick draws a duration uniformly from r
func (p *Pacer) Pick(r DelayRange) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return r.Min + time.Duration(p.rng.Int64N(int64(r.Max-r.Min)+1))
}

// Wait sleeps for a random duration drawn from r
func (p *Pacer) Wait(ctx context.Context, r DelayRange) error {
	return p.sleep(ctx, p.Pick(r))
}

// Backoff sleeps before retry number attempt+1
func (p *Pacer) Backoff(ctx context.Context, r DelayRange, attempt int, max time.Duration) error {
	return p.sleep(ctx, BackoffDelay(p.Pick(r), attempt, max))
}

// Throttle blocks until the request rate ceiling admits one more navigation
func (p *Pacer) Throttle(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// BackoffDelay doubles base for each attempt already made, capped at max.
// A zero max leaves the delay uncapped.
func BackoffDelay(base time.Duration, attempt int, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if max > 0 && d >= max {
			return max
		}
	}
	if max > 0 && d > max {
		return max
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
