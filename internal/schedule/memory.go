package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/punchamoorthee/payscheduler/internal/apperrors"
	"github.com/punchamoorthee/payscheduler/internal/domain"
)

// MemoryRegistry is an in-process Registry, safe for concurrent use.
type MemoryRegistry struct {
	mu      sync.RWMutex
	defs    map[string]*domain.ScheduleDefinition
	nextSeq int64
	now     func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		defs: make(map[string]*domain.ScheduleDefinition),
		now:  time.Now,
	}
}

func (r *MemoryRegistry) Create(_ context.Context, def domain.ScheduleDefinition) (domain.ScheduleDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSeq++
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	def.Seq = r.nextSeq
	def.Status = domain.ScheduleActive
	if def.CreatedAt.IsZero() {
		def.CreatedAt = r.now().UTC()
	}
	stored := def
	r.defs[def.ID] = &stored
	return def, nil
}

func (r *MemoryRegistry) Cancel(_ context.Context, owner domain.Account, id string) (domain.ScheduleDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.defs[id]
	if !ok {
		return domain.ScheduleDefinition{}, NotFound("schedule.Cancel", id)
	}
	if def.Owner != owner {
		return domain.ScheduleDefinition{}, NotOwner("schedule.Cancel", id, owner)
	}
	def.Status = domain.ScheduleCancelled
	return *def, nil
}

func (r *MemoryRegistry) Due(_ context.Context, now time.Time) ([]domain.ScheduleDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []domain.ScheduleDefinition
	for _, def := range r.defs {
		if def.DueAt(now) {
			due = append(due, *def)
		}
	}
	SortDue(due)
	return due, nil
}

func (r *MemoryRegistry) Advance(_ context.Context, id string, from time.Time) (domain.ScheduleDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.defs[id]
	if !ok {
		return domain.ScheduleDefinition{}, NotFound("schedule.Advance", id)
	}
	if def.Active() && def.NextDue.Equal(from) {
		def.NextDue = from.Add(def.Interval)
	}
	return *def, nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (domain.ScheduleDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[id]
	if !ok {
		return domain.ScheduleDefinition{}, NotFound("schedule.Get", id)
	}
	return *def, nil
}

func (r *MemoryRegistry) ListByOwner(_ context.Context, owner domain.Account) ([]domain.ScheduleDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.ScheduleDefinition
	for _, def := range r.defs {
		if def.Owner == owner {
			out = append(out, *def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// SortDue orders schedules by NextDue, earliest-created first on ties.
func SortDue(defs []domain.ScheduleDefinition) {
	sort.Slice(defs, func(i, j int) bool {
		if !defs[i].NextDue.Equal(defs[j].NextDue) {
			return defs[i].NextDue.Before(defs[j].NextDue)
		}
		return defs[i].Seq < defs[j].Seq
	})
}

// NotFound reports a lookup of an unknown schedule id.
func NotFound(op, id string) error {
	return apperrors.New(apperrors.KindNotFound, op, "schedule "+id+" does not exist")
}

// NotOwner reports an operation by an account that does not own the schedule.
func NotOwner(op, id string, owner domain.Account) error {
	return apperrors.New(apperrors.KindNotOwner, op, "schedule "+id+" is not owned by "+string(owner))
}
