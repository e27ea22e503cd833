// Package service is the payment executor: it validates requests, calls the
// external transfer service and keeps the ledger and schedule registry in
// step with what was actually transferred.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/punchamoorthee/payscheduler/internal/apperrors"
	"github.com/punchamoorthee/payscheduler/internal/domain"
	"github.com/punchamoorthee/payscheduler/internal/events"
	"github.com/punchamoorthee/payscheduler/internal/ledger"
	"github.com/punchamoorthee/payscheduler/internal/schedule"
	"github.com/punchamoorthee/payscheduler/internal/transfer"
	"github.com/punchamoorthee/payscheduler/internal/validate"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Deps are the collaborators of an Executor. Publisher, Clock and Logger
// are optional.
type Deps struct {
	Ledger    ledger.Ledger
	Registry  schedule.Registry
	Transfers transfer.Service
	Publisher events.Publisher
	Clock     Clock
	Logger    zerolog.Logger
}

type Executor struct {
	ledger    ledger.Ledger
	registry  schedule.Registry
	transfers transfer.Service
	publisher events.Publisher
	clock     Clock
	log       zerolog.Logger

	locks  *keyedMutex
	tickMu sync.Mutex
}

func NewExecutor(d Deps) *Executor {
	e := &Executor{
		ledger:    d.Ledger,
		registry:  d.Registry,
		transfers: d.Transfers,
		publisher: d.Publisher,
		clock:     d.Clock,
		log:       d.Logger.With().Str("component", "executor").Logger(),
		locks:     newKeyedMutex(),
	}
	if e.publisher == nil {
		e.publisher = events.Nop{}
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	return e
}

// intent is one validated transfer about to cross the execution boundary.
type intent struct {
	kind       string
	payer      domain.Account
	payee      domain.Account
	amount     domain.Amount
	message    string
	scheduleID string
	batchID    string
}

// ExecutePayment moves amount from payer to payee once. A transfer failure
// is recorded as a rejected record and returned as a TransferFailed error
// alongside that record.
func (e *Executor) ExecutePayment(ctx context.Context, payer, payee domain.Account, amount domain.Amount, message string) (domain.TransferRecord, error) {
	if err := validate.Amount(amount); err != nil {
		transfersTotal.WithLabelValues(kindSingle, "invalid").Inc()
		return domain.TransferRecord{}, err
	}

	unlock := e.locks.Lock(accountKey(string(payer)))
	defer unlock()

	return e.execute(ctx, intent{
		kind:    kindSingle,
		payer:   payer,
		payee:   payee,
		amount:  amount,
		message: message,
	})
}

// execute calls the transfer service exactly once and appends exactly one
// record describing the result.
func (e *Executor) execute(ctx context.Context, in intent) (domain.TransferRecord, error) {
	log := e.log.With().
		Str("kind", in.kind).
		Str("payer", string(in.payer)).
		Str("payee", string(in.payee)).
		Str("amount", in.amount.String()).
		Logger()

	// Nothing has reached the transfer service yet, so nothing is recorded.
	if err := ctx.Err(); err != nil {
		return domain.TransferRecord{}, err
	}

	timer := prometheus.NewTimer(transferDuration.WithLabelValues(in.kind))
	transferErr := e.transfers.Transfer(ctx, in.payer, in.payee, in.amount)
	timer.ObserveDuration()

	rec := domain.TransferRecord{
		ID:         uuid.NewString(),
		Payer:      in.payer,
		Payee:      in.payee,
		Amount:     in.amount,
		Message:    in.message,
		Timestamp:  e.clock.Now().UTC().Truncate(time.Microsecond),
		Outcome:    domain.OutcomeCommitted,
		ScheduleID: in.scheduleID,
		BatchID:    in.batchID,
	}
	if transferErr != nil {
		rec.Outcome = domain.OutcomeRejected
		rec.Reason = transferErr.Error()
	}

	// Once the transfer service has answered, the record must be written even
	// if the caller has gone away.
	stored, err := e.ledger.Record(context.WithoutCancel(ctx), rec)
	if err != nil {
		storageFailuresTotal.Inc()
		transfersTotal.WithLabelValues(in.kind, "storage_failure").Inc()
		log.Error().Err(err).
			Str("record_id", rec.ID).
			Str("outcome", string(rec.Outcome)).
			AnErr("transfer_error", transferErr).
			Msg("transfer outcome could not be recorded")
		return rec, apperrors.Storage("service.execute", err)
	}

	if transferErr != nil {
		transfersTotal.WithLabelValues(in.kind, string(domain.OutcomeRejected)).Inc()
		log.Warn().Err(transferErr).Str("record_id", stored.ID).Msg("transfer rejected")
		return stored, apperrors.Wrap(apperrors.KindTransferFailed, "service.execute", transferErr)
	}

	transfersTotal.WithLabelValues(in.kind, string(domain.OutcomeCommitted)).Inc()
	log.Info().Str("record_id", stored.ID).Int64("seq", stored.Seq).Msg("transfer committed")

	ev := events.Event{Topic: events.TopicPayment, Payee: stored.Payee, Amount: stored.Amount, Message: stored.Message}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("record_id", stored.ID).Msg("event publish failed")
	}
	return stored, nil
}

// CheckBalance asks the transfer service; the ledger is never summed.
func (e *Executor) CheckBalance(ctx context.Context, account domain.Account) (domain.Amount, error) {
	bal, err := e.transfers.BalanceOf(ctx, account)
	if err != nil {
		if errors.Is(err, transfer.ErrAccountNotFound) {
			return bal, apperrors.Wrap(apperrors.KindNotFound, "service.CheckBalance", err)
		}
		return bal, apperrors.Wrap(apperrors.KindTransferFailed, "service.CheckBalance", err)
	}
	return bal, nil
}

// ViewTransactionHistory returns one page of the account's records, newest first.
func (e *Executor) ViewTransactionHistory(ctx context.Context, account domain.Account, limit int, cursor string) (domain.HistoryPage, error) {
	page, err := e.ledger.History(ctx, account, limit, cursor)
	if err != nil {
		return domain.HistoryPage{}, passOrStorage("service.ViewTransactionHistory", err)
	}
	return page, nil
}

// passOrStorage keeps classified errors and treats everything else as a
// persistence failure.
func passOrStorage(op string, err error) error {
	if apperrors.KindOf(err) != "" {
		return err
	}
	storageFailuresTotal.Inc()
	return apperrors.Storage(op, err)
}
