package events

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "payscheduler_events_published_total",
	Help: "Events handed to the publisher, by topic",
}, []string{"topic"})

// Counting records every event in a prometheus counter and never fails.
type Counting struct{}

func (Counting) Publish(_ context.Context, ev Event) error {
	eventsPublished.WithLabelValues(ev.Topic).Inc()
	return nil
}
