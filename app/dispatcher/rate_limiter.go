package dispatcher

import (
	"context"
	"time"
)

// rateLimiter paces transport calls to a target messages/second shared by all
// workers of one campaign. A zero or negative rate disables pacing.
type rateLimiter struct {
	ticker *time.Ticker
}

func newRateLimiter(perSecond int) *rateLimiter {
	if perSecond <= 0 {
		return &rateLimiter{}
	}
	return &rateLimiter{ticker: time.NewTicker(time.Second / time.Duration(perSecond))}
}

// Wait blocks until the next send slot or until ctx is done
func (l *rateLimiter) Wait(ctx context.Context) error {
	if l.ticker == nil {
		return nil
	}
	select {
	case <-l.ticker.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *rateLimiter) Stop() {
	if l.ticker != nil {
		l.ticker.Stop()
	}
}
