package jobs

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// pacer spaces the start of consecutive items by at least delay. Call wait
// before every item: the first call returns at once and starts the clock.
type pacer struct {
	lim     *rate.Limiter
	started bool
}

func newPacer(delay time.Duration) *pacer {
	if delay <= 0 {
		return &pacer{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &pacer{lim: rate.NewLimiter(rate.Every(delay), 1)}
}

func (p *pacer) wait(ctx context.Context) error {
	if !p.started {
		// Spend the initial burst token so the next item waits a full delay.
		p.started = true
		p.lim.Allow()
		return nil
	}
	return p.lim.Wait(ctx)
}
