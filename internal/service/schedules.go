package service

import (
	"context"
	"fmt"
	"time"

	"github.com/punchamoorthee/payscheduler/internal/apperrors"
	"github.com/punchamoorthee/payscheduler/internal/domain"
	"github.com/punchamoorthee/payscheduler/internal/validate"
)

// ScheduleRun is the outcome of one due schedule within a tick.
// Skipped is set when the schedule was cancelled or advanced after the
// snapshot was taken; no transfer was attempted.
type ScheduleRun struct {
	Schedule domain.ScheduleDefinition
	Record   domain.TransferRecord
	Err      error
	Skipped  bool
}

// SchedulePayment registers a recurring payment first due one interval from
// now. No funds move.
func (e *Executor) SchedulePayment(ctx context.Context, owner, payee domain.Account, amount domain.Amount, interval time.Duration) (domain.ScheduleDefinition, error) {
	if err := validate.Amount(amount); err != nil {
		return domain.ScheduleDefinition{}, err
	}
	if err := validate.Interval(interval); err != nil {
		return domain.ScheduleDefinition{}, err
	}

	// Microseconds keep NextDue exact across every storage backend.
	now := e.clock.Now().UTC().Truncate(time.Microsecond)
	def, err := e.registry.Create(ctx, domain.ScheduleDefinition{
		Owner:     owner,
		Payee:     payee,
		Amount:    amount,
		Interval:  interval,
		NextDue:   now.Add(interval),
		Status:    domain.ScheduleActive,
		CreatedAt: now,
	})
	if err != nil {
		return domain.ScheduleDefinition{}, passOrStorage("service.SchedulePayment", err)
	}
	e.log.Info().
		Str("schedule_id", def.ID).
		Str("owner", string(owner)).
		Str("payee", string(payee)).
		Str("amount", amount.String()).
		Dur("interval", interval).
		Time("next_due", def.NextDue).
		Msg("schedule created")
	return def, nil
}

// CancelSchedule stops a schedule for good. It waits for an in-flight
// execution of the same schedule to finish.
func (e *Executor) CancelSchedule(ctx context.Context, owner domain.Account, id string) (domain.ScheduleDefinition, error) {
	unlock := e.locks.Lock(scheduleKey(id))
	defer unlock()

	def, err := e.registry.Cancel(ctx, owner, id)
	if err != nil {
		return domain.ScheduleDefinition{}, passOrStorage("service.CancelSchedule", err)
	}
	e.log.Info().Str("schedule_id", id).Str("owner", string(owner)).Msg("schedule cancelled")
	return def, nil
}

// ListSchedules returns every schedule of owner, active or not, oldest first.
func (e *Executor) ListSchedules(ctx context.Context, owner domain.Account) ([]domain.ScheduleDefinition, error) {
	defs, err := e.registry.ListByOwner(ctx, owner)
	if err != nil {
		return nil, passOrStorage("service.ListSchedules", err)
	}
	return defs, nil
}

// RunDueSchedules executes every schedule due at now, one at a time.
//
// The due list is snapshotted first, and each schedule is re-read under its
// lock so one cancelled while the batch runs is skipped. A committed payment
// advances NextDue by exactly one interval from its previous value; a failed
// one leaves NextDue untouched so the next tick retries it.
//
// A storage failure stops the batch: it is returned with the runs so far.
// A cancelled ctx also stops the batch before the next transfer starts.
func (e *Executor) RunDueSchedules(ctx context.Context, now time.Time) ([]ScheduleRun, error) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	due, err := e.registry.Due(ctx, now)
	if err != nil {
		return nil, passOrStorage("service.RunDueSchedules", err)
	}

	runs := make([]ScheduleRun, 0, len(due))
	failed := 0
	for _, def := range due {
		if err := ctx.Err(); err != nil {
			e.log.Warn().Err(err).Int("done", len(runs)).Int("due", len(due)).Msg("due schedules interrupted")
			return runs, err
		}

		run := e.runOne(ctx, def)
		runs = append(runs, run)
		switch {
		case run.Skipped:
			scheduleRunsTotal.WithLabelValues("skipped").Inc()
		case run.Err != nil:
			failed++
			scheduleRunsTotal.WithLabelValues("failed").Inc()
		default:
			scheduleRunsTotal.WithLabelValues("committed").Inc()
		}

		if apperrors.KindOf(run.Err) == apperrors.KindStorageFailure {
			e.log.Error().Err(run.Err).
				Str("schedule_id", def.ID).
				Int("done", len(runs)).
				Int("due", len(due)).
				Msg("due schedules halted on storage failure")
			return runs, run.Err
		}
	}

	if len(runs) > 0 {
		e.log.Info().Time("now", now).Int("due", len(runs)).Int("failed", failed).Msg("due schedules processed")
	}
	return runs, nil
}

func (e *Executor) runOne(ctx context.Context, def domain.ScheduleDefinition) ScheduleRun {
	unlockSchedule := e.locks.Lock(scheduleKey(def.ID))
	defer unlockSchedule()

	current, err := e.registry.Get(ctx, def.ID)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return ScheduleRun{Schedule: def, Skipped: true}
		}
		return ScheduleRun{Schedule: def, Err: passOrStorage("service.RunDueSchedules", err)}
	}
	if current.Status != domain.ScheduleActive || !current.NextDue.Equal(def.NextDue) {
		e.log.Info().Str("schedule_id", def.ID).Str("status", string(current.Status)).Msg("schedule changed since snapshot, skipped")
		return ScheduleRun{Schedule: current, Skipped: true}
	}

	unlockAccount := e.locks.Lock(accountKey(string(def.Owner)))
	defer unlockAccount()

	rec, err := e.execute(ctx, intent{
		kind:       kindScheduled,
		payer:      def.Owner,
		payee:      def.Payee,
		amount:     def.Amount,
		message:    fmt.Sprintf("scheduled payment %s", def.ID),
		scheduleID: def.ID,
	})
	// A committed but unrecorded transfer still pays this period.
	paidUnrecorded := apperrors.KindOf(err) == apperrors.KindStorageFailure && rec.Outcome == domain.OutcomeCommitted
	if err != nil && !paidUnrecorded {
		return ScheduleRun{Schedule: def, Record: rec, Err: err}
	}

	next, advErr := e.registry.Advance(context.WithoutCancel(ctx), def.ID, def.NextDue)
	if advErr != nil {
		storageFailuresTotal.Inc()
		e.log.Error().Err(advErr).
			Str("schedule_id", def.ID).
			Str("record_id", rec.ID).
			Time("next_due", def.NextDue).
			Msg("committed scheduled payment could not advance its schedule")
		return ScheduleRun{Schedule: def, Record: rec, Err: apperrors.Storage("service.RunDueSchedules", advErr)}
	}
	return ScheduleRun{Schedule: next, Record: rec, Err: err}
}
