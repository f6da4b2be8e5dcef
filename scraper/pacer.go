package scraper

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Clock abstracts time for the pacer and retry backoff.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
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

// Pacer holds a fixed pause between the end of one page and the start of the
// next. The first request is not delayed.
type Pacer struct {
	limit   rate.Limit
	limiter *rate.Limiter
	clock   Clock
}

// NewPacer builds a pacer releasing one request per delay. A zero delay
// disables pacing.
func NewPacer(delay time.Duration, clock Clock) *Pacer {
	if clock == nil {
		clock = realClock{}
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Pacer{
		limit:   limit,
		limiter: rate.NewLimiter(limit, 1),
		clock:   clock,
	}
}

// Done marks the end of a page. The bucket is drained at this instant so the
// next Wait pauses a full delay however long the page took.
func (p *Pacer) Done() {
	limiter := rate.NewLimiter(p.limit, 1)
	limiter.AllowN(p.clock.Now(), 1)
	p.limiter = limiter
}

// Wait blocks until the next request may start and returns how long it waited.
func (p *Pacer) Wait(ctx context.Context) (time.Duration, error) {
	now := p.clock.Now()
	reservation := p.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return 0, context.Canceled
	}
	delay := reservation.DelayFrom(now)
	if delay <= 0 {
		return 0, ctx.Err()
	}
	if err := p.clock.Sleep(ctx, delay); err != nil {
		reservation.CancelAt(p.clock.Now())
		return 0, err
	}
	return delay, nil
}
