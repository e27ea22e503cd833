// Package schedule owns recurring payment definitions and their due-time
// bookkeeping.
package schedule

import (
	"context"
	"time"

	"github.com/punchamoorthee/payscheduler/internal/domain"
)

// Registry stores schedule definitions. Definitions are never removed;
// cancellation is a terminal status change.
type Registry interface {
	// Create stores def and returns it with ID, Seq and CreatedAt assigned.
	Create(ctx context.Context, def domain.ScheduleDefinition) (domain.ScheduleDefinition, error)
	// Cancel moves an active schedule to cancelled. It fails with NotFound
	// or NotOwner; cancelling a cancelled schedule returns it unchanged.
	Cancel(ctx context.Context, owner domain.Account, id string) (domain.ScheduleDefinition, error)
	// Due returns active schedules with NextDue <= now, ordered by NextDue
	// then creation order.
	Due(ctx context.Context, now time.Time) ([]domain.ScheduleDefinition, error)
	// Advance moves NextDue from `from` to from+Interval. Inactive schedules,
	// or ones whose NextDue no longer equals from, are returned unchanged.
	Advance(ctx context.Context, id string, from time.Time) (domain.ScheduleDefinition, error)
	Get(ctx context.Context, id string) (domain.ScheduleDefinition, error)
	ListByOwner(ctx context.Context, owner domain.Account) ([]domain.ScheduleDefinition, error)
}
