package engine

import (
	"context"
	"math/rand/v2"
	"time"
)

// Backoff computes the wait before the next whole-run attempt.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  bool
}

// Delay returns initial * 2^(attempt-1), capped at Max. With jitter the
// delay is drawn uniformly from [delay/2, delay].
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 || b.Initial <= 0 {
		return 0
	}

	delay := b.Initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			delay = b.Max
			break
		}
	}
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}

	if b.Jitter && delay > 1 {
		half := delay / 2
		delay = half + rand.N(delay-half+1)
	}
	return delay
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
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
