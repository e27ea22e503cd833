// Package tick drives RunDueSchedules from a cron expression.
package tick

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/punchamoorthee/payscheduler/internal/apperrors"
	"github.com/punchamoorthee/payscheduler/internal/service"
)

// Runner processes every schedule due at now.
type Runner interface {
	RunDueSchedules(ctx context.Context, now time.Time) ([]service.ScheduleRun, error)
}

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type Driver struct {
	runner Runner
	clock  service.Clock
	log    zerolog.Logger
	c      *cron.Cron

	mu        sync.Mutex
	runCtx    context.Context
	runCancel context.CancelFunc

	// halted is set by a storage failure. Ticks stop running until restart
	// because a schedule whose payment was not recorded would be paid again.
	halted atomic.Bool
}

// New validates spec (seconds optional, descriptors such as "@every 1m"
// allowed) and prepares a stopped driver.
func New(spec string, loc *time.Location, runner Runner, clock service.Clock, log zerolog.Logger) (*Driver, error) {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = service.SystemClock{}
	}
	d := &Driver{
		runner: runner,
		clock:  clock,
		log:    log.With().Str("component", "tick").Logger(),
	}
	cl := cronLogger{log: d.log}
	d.c = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := d.c.AddFunc(spec, func() { d.Tick(d.context()) }); err != nil {
		return nil, fmt.Errorf("invalid scheduler spec %q: %w", spec, err)
	}
	return d, nil
}

// Start begins firing. Ticks keep ctx's values but not its cancellation:
// a running tick is only cancelled by Stop once its grace period ends.
func (d *Driver) Start(ctx context.Context) {
	d.mu.Lock()
	d.runCtx, d.runCancel = context.WithCancel(context.WithoutCancel(ctx))
	d.mu.Unlock()

	d.c.Start()
	d.log.Info().Str("tz", d.c.Location().String()).Msg("scheduler started")
}

// Stop prevents new ticks and waits for a running one to return or ctx to end.
func (d *Driver) Stop(ctx context.Context) {
	done := d.c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		d.log.Warn().Msg("scheduler stop timed out, cancelling running tick")
	}

	d.mu.Lock()
	if d.runCancel != nil {
		d.runCancel()
	}
	d.mu.Unlock()
	d.log.Info().Msg("scheduler stopped")
}

// Tick runs one firing immediately.
func (d *Driver) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("panic in scheduler tick")
		}
	}()

	if d.halted.Load() {
		d.log.Error().Msg("scheduler halted after a storage failure, tick skipped")
		return
	}

	start := d.clock.Now()
	runs, err := d.runner.RunDueSchedules(ctx, start)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindStorageFailure {
			d.halted.Store(true)
			d.log.Error().Err(err).Int("processed", len(runs)).Msg("storage failure, scheduler halted")
			return
		}
		d.log.Error().Err(err).Int("processed", len(runs)).Msg("due schedules failed")
		return
	}

	failed := 0
	for _, r := range runs {
		if r.Err != nil {
			failed++
			d.log.Warn().Err(r.Err).Str("schedule_id", r.Schedule.ID).Msg("scheduled payment failed")
		}
	}
	d.log.Debug().
		Int("due", len(runs)).
		Int("failed", failed).
		Dur("took", d.clock.Now().Sub(start)).
		Msg("tick finished")
}

// Halted reports whether a storage failure has stopped the driver.
func (d *Driver) Halted() bool {
	return d.halted.Load()
}

func (d *Driver) context() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.runCtx == nil {
		return context.Background()
	}
	return d.runCtx
}

// cronLogger routes cron's own messages into zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
