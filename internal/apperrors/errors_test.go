package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := New(KindInvalidAmount, "validate.Amount", "amount must be positive")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.NotErrorIs(t, err, ErrInvalidInterval)

	wrapped := fmt.Errorf("schedule payment: %w", err)
	assert.ErrorIs(t, wrapped, ErrInvalidAmount)
	assert.Equal(t, KindInvalidAmount, KindOf(wrapped))
}

func TestStorageKeepsExistingStorageFailure(t *testing.T) {
	assert.Nil(t, Storage("ledger.Record", nil))

	cause := errors.New("disk full")
	err := Storage("ledger.Record", cause)
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.ErrorIs(t, err, cause)

	again := Storage("service.ExecutePayment", err)
	assert.Same(t, err, again)
}

func TestErrorMessageAndReason(t *testing.T) {
	err := Wrap(KindTransferFailed, "transfer", errors.New("insufficient funds"))
	assert.Equal(t, "transfer: transfer_failed: insufficient funds", err.Error())
	assert.Equal(t, "insufficient funds", Reason(err))

	assert.Equal(t, "not_found", Reason(&Error{Kind: KindNotFound}))
	assert.Equal(t, "boom", Reason(errors.New("boom")))
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
