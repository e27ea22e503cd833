package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/punchamoorthee/payscheduler/internal/domain"
	"github.com/punchamoorthee/payscheduler/internal/ledger"
)

// prepareSchedule fills the fields Create owns before the insert.
func prepareSchedule(def domain.ScheduleDefinition) domain.ScheduleDefinition {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	def.Status = domain.ScheduleActive
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	return def
}

// pageOf trims a limit+1 fetch to one page and sets the cursor when the
// extra row proved there is more.
func pageOf(account domain.Account, records []domain.TransferRecord, limit int) domain.HistoryPage {
	page := domain.HistoryPage{Records: records}
	if len(records) > limit {
		page.Records = records[:limit]
		page.NextCursor = ledger.EncodeCursor(account, page.Records[limit-1].Seq)
	}
	if page.Records == nil {
		page.Records = []domain.TransferRecord{}
	}
	return page
}
