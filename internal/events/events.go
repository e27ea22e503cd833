// Package events notifies interested parties of committed transfers.
// Publishing is fire-and-forget: a failure never undoes a transfer.
package events

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/punchamoorthee/payscheduler/internal/domain"
)

// TopicPayment is published once per committed transfer.
const TopicPayment = "payment"

type Event struct {
	Topic   string         `json:"topic"`
	Payee   domain.Account `json:"payee"`
	Amount  domain.Amount  `json:"amount"`
	Message string         `json:"message"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// LogPublisher writes each event as a structured log line.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	p.log.Info().
		Str("topic", ev.Topic).
		Str("payee", string(ev.Payee)).
		Str("amount", ev.Amount.String()).
		Str("message", ev.Message).
		Msg("event published")
	return nil
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
