package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/payscheduler/internal/apperrors"
	"github.com/punchamoorthee/payscheduler/internal/domain"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newDef(owner domain.Account, nextDue time.Time) domain.ScheduleDefinition {
	return domain.ScheduleDefinition{
		Owner:    owner,
		Payee:    "payee",
		Amount:   domain.NewAmount(100),
		Interval: time.Hour,
		NextDue:  nextDue,
	}
}

func TestCreateAssignsIdentity(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	a, err := r.Create(ctx, newDef("alice", t0))
	require.NoError(t, err)
	b, err := r.Create(ctx, newDef("alice", t0))
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Less(t, a.Seq, b.Seq)
	assert.Equal(t, domain.ScheduleActive, a.Status)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestDueOrdering(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	late, _ := r.Create(ctx, newDef("alice", t0.Add(2*time.Minute)))
	tieFirst, _ := r.Create(ctx, newDef("bob", t0))
	tieSecond, _ := r.Create(ctx, newDef("carol", t0))
	_, _ = r.Create(ctx, newDef("dave", t0.Add(time.Hour)))

	due, err := r.Due(ctx, t0.Add(5*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, tieFirst.ID, due[0].ID)
	assert.Equal(t, tieSecond.ID, due[1].ID)
	assert.Equal(t, late.ID, due[2].ID)
}

func TestCancel(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	def, _ := r.Create(ctx, newDef("alice", t0))

	_, err := r.Cancel(ctx, "alice", "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = r.Cancel(ctx, "mallory", def.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotOwner)

	cancelled, err := r.Cancel(ctx, "alice", def.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleCancelled, cancelled.Status)

	again, err := r.Cancel(ctx, "alice", def.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleCancelled, again.Status)

	due, err := r.Due(ctx, t0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)

	// Still listed for audit.
	all, err := r.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAdvanceIsAdditive(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	def, _ := r.Create(ctx, newDef("alice", t0))

	advanced, err := r.Advance(ctx, def.ID, t0)
	require.NoError(t, err)
	assert.True(t, advanced.NextDue.Equal(t0.Add(time.Hour)))

	// Stale `from` leaves the schedule alone.
	same, err := r.Advance(ctx, def.ID, t0)
	require.NoError(t, err)
	assert.True(t, same.NextDue.Equal(t0.Add(time.Hour)))

	_, err = r.Cancel(ctx, "alice", def.ID)
	require.NoError(t, err)
	frozen, err := r.Advance(ctx, def.ID, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, frozen.NextDue.Equal(t0.Add(time.Hour)))

	_, err = r.Advance(ctx, "missing", t0)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGet(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	def, _ := r.Create(ctx, newDef("alice", t0))

	got, err := r.Get(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, def, got)

	_, err = r.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
