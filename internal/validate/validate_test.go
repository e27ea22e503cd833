package validate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/punchamoorthee/payscheduler/internal/apperrors"
	"github.com/punchamoorthee/payscheduler/internal/domain"
)

func TestAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  domain.Amount
		wantErr bool
	}{
		{name: "one", amount: domain.NewAmount(1)},
		{name: "max int128", amount: domain.MaxAmount},
		{name: "zero", amount: decimal.Zero, wantErr: true},
		{name: "negative", amount: domain.NewAmount(-5), wantErr: true},
		{name: "min int128", amount: domain.MinAmount, wantErr: true},
		{name: "fractional", amount: decimal.RequireFromString("10.5"), wantErr: true},
		{name: "above int128", amount: domain.MaxAmount.Add(decimal.NewFromInt(1)), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Amount(tt.amount)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAmountIsRepeatable(t *testing.T) {
	first := Amount(domain.NewAmount(0))
	for i := 0; i < 5; i++ {
		again := Amount(domain.NewAmount(0))
		assert.Equal(t, first.Error(), again.Error())
		assert.ErrorIs(t, again, apperrors.ErrInvalidAmount)
	}
}

func TestInterval(t *testing.T) {
	assert.NoError(t, Interval(time.Second))
	assert.ErrorIs(t, Interval(0), apperrors.ErrInvalidInterval)
	assert.ErrorIs(t, Interval(-time.Hour), apperrors.ErrInvalidInterval)
}

func TestParallelLengths(t *testing.T) {
	payees := []domain.Account{"a", "b"}
	assert.NoError(t, ParallelLengths(payees, []domain.Amount{domain.NewAmount(1), domain.NewAmount(2)}))
	assert.ErrorIs(t, ParallelLengths(payees, []domain.Amount{domain.NewAmount(1)}), apperrors.ErrLengthMismatch)
	assert.NoError(t, ParallelLengths(nil, nil))
}

func TestBulk(t *testing.T) {
	payees := []domain.Account{"a", "b", "c"}

	err := Bulk(payees, []domain.Amount{domain.NewAmount(1), domain.NewAmount(2)})
	assert.ErrorIs(t, err, apperrors.ErrLengthMismatch)

	err = Bulk(payees, []domain.Amount{domain.NewAmount(1), domain.NewAmount(2), domain.NewAmount(0)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)
	assert.Contains(t, err.Error(), "entry 2")

	assert.NoError(t, Bulk(payees, []domain.Amount{domain.NewAmount(1), domain.NewAmount(2), domain.NewAmount(3)}))
}
