package ledger

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/punchamoorthee/payscheduler/internal/apperrors"
	"github.com/punchamoorthee/payscheduler/internal/domain"
)

const cursorVersion = "h1"

// EncodeCursor builds the opaque token resuming an account's history after seq.
func EncodeCursor(account domain.Account, seq int64) string {
	raw := strings.Join([]string{cursorVersion, strconv.FormatInt(seq, 10), string(account)}, "|")
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor returns the sequence a token resumes from. Tokens issued for
// another account are rejected.
func DecodeCursor(token string, account domain.Account) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInvalidCursor, "ledger.DecodeCursor", fmt.Errorf("base64 decode: %w", err))
	}
	// The account goes last so ids containing '|' survive the split.
	parts := strings.SplitN(string(raw), "|", 3)
	if len(parts) != 3 || parts[0] != cursorVersion {
		return 0, apperrors.New(apperrors.KindInvalidCursor, "ledger.DecodeCursor", "malformed cursor")
	}
	seq, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || seq <= 0 {
		return 0, apperrors.New(apperrors.KindInvalidCursor, "ledger.DecodeCursor", "malformed cursor position")
	}
	if domain.Account(parts[2]) != account {
		return 0, apperrors.New(apperrors.KindInvalidCursor, "ledger.DecodeCursor", "cursor was issued for another account")
	}
	return seq, nil
}
