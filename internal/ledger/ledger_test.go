package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/payscheduler/internal/apperrors"
	"github.com/punchamoorthee/payscheduler/internal/domain"
)

func record(payer, payee domain.Account, amount int64) domain.TransferRecord {
	return domain.TransferRecord{
		ID:        fmt.Sprintf("%s-%s-%d", payer, payee, amount),
		Payer:     payer,
		Payee:     payee,
		Amount:    domain.NewAmount(amount),
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Outcome:   domain.OutcomeCommitted,
	}
}

func TestMemoryLedgerHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	for i := int64(1); i <= 3; i++ {
		_, err := l.Record(ctx, record("alice", "bob", i))
		require.NoError(t, err)
	}
	_, err := l.Record(ctx, record("carol", "dave", 99))
	require.NoError(t, err)

	page, err := l.History(ctx, "alice", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Records, 3)
	assert.Empty(t, page.NextCursor)
	assert.True(t, page.Records[0].Amount.Equal(domain.NewAmount(3)))
	assert.True(t, page.Records[2].Amount.Equal(domain.NewAmount(1)))

	// Payees see the same records.
	page, err = l.History(ctx, "bob", 10, "")
	require.NoError(t, err)
	assert.Len(t, page.Records, 3)

	page, err = l.History(ctx, "nobody", 10, "")
	require.NoError(t, err)
	assert.Empty(t, page.Records)
}

func TestMemoryLedgerPagination(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	for i := int64(1); i <= 5; i++ {
		_, err := l.Record(ctx, record("alice", "bob", i))
		require.NoError(t, err)
	}

	first, err := l.History(ctx, "alice", 2, "")
	require.NoError(t, err)
	require.Len(t, first.Records, 2)
	require.NotEmpty(t, first.NextCursor)
	assert.Equal(t, int64(5), first.Records[0].Seq)
	assert.Equal(t, int64(4), first.Records[1].Seq)

	second, err := l.History(ctx, "alice", 2, first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.Records, 2)
	assert.Equal(t, int64(3), second.Records[0].Seq)

	third, err := l.History(ctx, "alice", 2, second.NextCursor)
	require.NoError(t, err)
	require.Len(t, third.Records, 1)
	assert.Empty(t, third.NextCursor)

	// Restarting from a cursor yields the same page.
	again, err := l.History(ctx, "alice", 2, first.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, second, again)
}

func TestMemoryLedgerRejectsForeignCursor(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	for i := int64(1); i <= 3; i++ {
		_, err := l.Record(ctx, record("alice", "bob", i))
		require.NoError(t, err)
	}
	page, err := l.History(ctx, "alice", 1, "")
	require.NoError(t, err)

	_, err = l.History(ctx, "bob", 1, page.NextCursor)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCursor)

	_, err = l.History(ctx, "alice", 1, "%%%")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCursor)
}

func TestRecordsAreNotAlteredByLaterAppends(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	first, err := l.Record(ctx, record("alice", "bob", 1))
	require.NoError(t, err)

	for i := int64(2); i <= 4; i++ {
		_, err := l.Record(ctx, record("alice", "bob", i))
		require.NoError(t, err)
	}

	var got []domain.TransferRecord
	for rec, err := range Iterate(ctx, l, "alice", 1) {
		require.NoError(t, err)
		got = append(got, rec)
	}
	require.Len(t, got, 4)
	assert.Equal(t, first, got[3])
	assert.Equal(t, 4, l.Len())
}

func TestIterateStopsEarly(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	for i := int64(1); i <= 10; i++ {
		_, err := l.Record(ctx, record("alice", "bob", i))
		require.NoError(t, err)
	}

	n := 0
	for _, err := range Iterate(ctx, l, "alice", 3) {
		require.NoError(t, err)
		n++
		if n == 4 {
			break
		}
	}
	assert.Equal(t, 4, n)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, ClampLimit(0, 0))
	assert.Equal(t, 5, ClampLimit(5, 0))
	assert.Equal(t, MaxPageSize, ClampLimit(1000, 0))
	assert.Equal(t, 50, ClampLimit(80, 50))
}

func TestCursorRoundTrip(t *testing.T) {
	token := EncodeCursor("acct|with|pipes", 42)
	seq, err := DecodeCursor(token, "acct|with|pipes")
	require.NoError(t, err)
	assert.Equal(t, int64(42), seq)

	_, err = DecodeCursor(EncodeCursor("a", 0), "a")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCursor)
}
