package events

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var ErrThrottled = errors.New("event dropped by rate limit")

var eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "payscheduler_events_dropped_total",
	Help: "Events dropped because the publish rate limit was exceeded",
})

// Throttled drops events above a steady rate instead of blocking the caller.
type Throttled struct {
	next    Publisher
	limiter *rate.Limiter
	dropped atomic.Uint64
}

// NewThrottled allows perSec events per second with an equal burst.
// A non-positive rate disables throttling.
func NewThrottled(next Publisher, perSec int) *Throttled {
	limit := rate.Inf
	burst := 0
	if perSec > 0 {
		limit = rate.Limit(perSec)
		burst = perSec
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (t *Throttled) Publish(ctx context.Context, ev Event) error {
	if !t.limiter.Allow() {
		t.dropped.Add(1)
		eventsDropped.Inc()
		return ErrThrottled
	}
	return t.next.Publish(ctx, ev)
}

// Dropped returns how many events were discarded so far.
func (t *Throttled) Dropped() uint64 {
	return t.dropped.Load()
}
