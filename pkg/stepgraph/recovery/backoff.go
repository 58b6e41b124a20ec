package recovery

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Backoff configures the wait between retries.
type Backoff struct {
	// Initial is the wait before the first retry. Zero disables backoff.
	Initial time.Duration

	// Max caps the wait. Zero means no cap.
	Max time.Duration

	// Factor multiplies the wait after each retry. Values below 1 are
	// treated as 1.
	Factor float64

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64
}

// Validate reports out-of-range settings.
func (b Backoff) Validate() error {
	if b.Initial < 0 || b.Max < 0 {
		return fmt.Errorf("%w: negative backoff duration", ErrInvalidPolicy)
	}
	if b.Jitter < 0 || b.Jitter > 1 {
		return fmt.Errorf("%w: jitter %v outside [0,1]", ErrInvalidPolicy, b.Jitter)
	}
	return nil
}

// Delay returns the wait before the given retry (1 = first retry).
func (b Backoff) Delay(retry int) time.Duration {
	if b.Initial <= 0 || retry < 1 {
		return 0
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}

	d := float64(b.Initial)
	for i := 1; i < retry; i++ {
		d *= factor
		if b.Max > 0 && d >= float64(b.Max) {
			d = float64(b.Max)
			break
		}
	}
	out := applyJitter(time.Duration(d), b.Jitter)
	if b.Max > 0 && out > b.Max {
		out = b.Max
	}
	return out
}

// applyJitter returns base +/- (base * jitter * random).
func applyJitter(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return base
	}
	amount := float64(base) * jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(base) + amount)
}

// Wait blocks for d or until ctx is done, returning ctx.Err() in the latter
// case.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
