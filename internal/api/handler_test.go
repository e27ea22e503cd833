package api_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"

	"github.com/punchamoorthee/payscheduler/internal/api"
	"github.com/punchamoorthee/payscheduler/internal/domain"
	"github.com/punchamoorthee/payscheduler/internal/ledger"
	"github.com/punchamoorthee/payscheduler/internal/models"
	"github.com/punchamoorthee/payscheduler/internal/schedule"
	"github.com/punchamoorthee/payscheduler/internal/service"
	"github.com/punchamoorthee/payscheduler/internal/transfer"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type HandlerTestSuite struct {
	suite.Suite
	book   *transfer.Memory
	clock  *fixedClock
	router http.Handler
}

func (s *HandlerTestSuite) SetupTest() {
	s.book = transfer.NewMemory()
	s.book.Fund("alice", domain.NewAmount(1000))
	s.book.Fund("bob", domain.NewAmount(0))
	s.book.Fund("carol", domain.NewAmount(0))
	s.clock = &fixedClock{now: time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)}

	exec := service.NewExecutor(service.Deps{
		Ledger:    ledger.NewMemoryLedger(),
		Registry:  schedule.NewMemoryRegistry(),
		Transfers: s.book,
		Clock:     s.clock,
		Logger:    zerolog.Nop(),
	})
	router, err := api.NewRouter(api.NewHandler(exec, s.clock, zerolog.Nop()), api.RouterOptions{Logger: zerolog.Nop()})
	s.Require().NoError(err)
	s.router = router
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func (s *HandlerTestSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *HandlerTestSuite) decode(rr *httptest.ResponseRecorder, dst any) {
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), dst), rr.Body.String())
}

func (s *HandlerTestSuite) TestHealth() {
	rr := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, rr.Code)
	s.NotEmpty(rr.Header().Get("X-Request-ID"))
}

func (s *HandlerTestSuite) TestCreatePayment() {
	rr := s.do(http.MethodPost, "/api/v1/payments", map[string]any{
		"payer": "alice", "payee": "bob", "amount": 250, "message": "rent",
	})
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())

	var rec domain.TransferRecord
	s.decode(rr, &rec)
	s.Equal(domain.OutcomeCommitted, rec.Outcome)
	s.True(rec.Amount.Equal(domain.NewAmount(250)))

	rr = s.do(http.MethodGet, "/api/v1/accounts/bob/balance", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	var bal models.BalanceResponse
	s.decode(rr, &bal)
	s.True(bal.Balance.Equal(domain.NewAmount(250)))
}

func (s *HandlerTestSuite) TestCreatePaymentValidation() {
	tests := []struct {
		name string
		body any
		code int
		kind string
	}{
		{"zero amount", map[string]any{"payer": "alice", "payee": "bob", "amount": 0}, http.StatusUnprocessableEntity, "invalid_amount"},
		{"negative amount", map[string]any{"payer": "alice", "payee": "bob", "amount": "-5"}, http.StatusUnprocessableEntity, "invalid_amount"},
		{"fractional amount", map[string]any{"payer": "alice", "payee": "bob", "amount": "1.5"}, http.StatusUnprocessableEntity, "invalid_amount"},
		{"missing payer", map[string]any{"payee": "bob", "amount": 5}, http.StatusBadRequest, ""},
		{"unknown field", map[string]any{"payer": "alice", "payee": "bob", "amount": 5, "idempotency": "x"}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rr := s.do(http.MethodPost, "/api/v1/payments", tt.body)
			s.Equal(tt.code, rr.Code, rr.Body.String())
			var resp models.ErrorResponse
			s.decode(rr, &resp)
			s.Equal(tt.kind, resp.Kind)
		})
	}
}

func (s *HandlerTestSuite) TestCreatePaymentRejectedReturnsRecord() {
	rr := s.do(http.MethodPost, "/api/v1/payments", map[string]any{
		"payer": "alice", "payee": "bob", "amount": 5000,
	})
	s.Require().Equal(http.StatusUnprocessableEntity, rr.Code)

	var resp models.ErrorResponse
	s.decode(rr, &resp)
	s.Equal("transfer_failed", resp.Kind)
	s.Require().NotNil(resp.Record)
	s.Equal(domain.OutcomeRejected, resp.Record.Outcome)

	rr = s.do(http.MethodGet, "/api/v1/accounts/alice/history", nil)
	var page domain.HistoryPage
	s.decode(rr, &page)
	s.Len(page.Records, 1)
}

func (s *HandlerTestSuite) TestBulkPayment() {
	rr := s.do(http.MethodPost, "/api/v1/payments/bulk", map[string]any{
		"payer": "alice", "payees": []string{"bob", "carol"}, "amounts": []int{100, 200},
	})
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	var resp models.BulkPaymentResponse
	s.decode(rr, &resp)
	s.Len(resp.Committed, 2)
	s.Nil(resp.Failure)
	s.NotEmpty(resp.BatchID)
}

func (s *HandlerTestSuite) TestBulkPaymentPartial() {
	rr := s.do(http.MethodPost, "/api/v1/payments/bulk", map[string]any{
		"payer": "alice", "payees": []string{"bob", "nobody", "carol"}, "amounts": []int{100, 200, 300},
	})
	s.Require().Equal(http.StatusMultiStatus, rr.Code, rr.Body.String())

	var resp models.BulkPaymentResponse
	s.decode(rr, &resp)
	s.Require().Len(resp.Committed, 1)
	s.Equal(domain.Account("bob"), resp.Committed[0].Payee)
	s.Require().NotNil(resp.Failure)
	s.Equal(1, resp.Failure.Index)
	s.Equal("nobody", resp.Failure.Payee)
	s.Equal("transfer_failed", resp.Failure.Kind)
	s.Equal(1, resp.Failure.Skipped)
	s.Require().NotNil(resp.Failure.Record)
	s.Equal(domain.OutcomeRejected, resp.Failure.Record.Outcome)
}

func (s *HandlerTestSuite) TestBulkPaymentLengthMismatch() {
	rr := s.do(http.MethodPost, "/api/v1/payments/bulk", map[string]any{
		"payer": "alice", "payees": []string{"bob", "carol"}, "amounts": []int{100},
	})
	s.Equal(http.StatusUnprocessableEntity, rr.Code)
	var resp models.ErrorResponse
	s.decode(rr, &resp)
	s.Equal("length_mismatch", resp.Kind)
}

func (s *HandlerTestSuite) TestScheduleLifecycle() {
	rr := s.do(http.MethodPost, "/api/v1/schedules", map[string]any{
		"owner": "alice", "payee": "bob", "amount": 50, "interval_seconds": 86400,
	})
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	var sched models.Schedule
	s.decode(rr, &sched)
	s.Equal(int64(86400), sched.IntervalSeconds)
	s.Equal(s.clock.now.Add(24*time.Hour), sched.NextDue)

	rr = s.do(http.MethodGet, "/api/v1/schedules?owner=alice", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	var list []models.Schedule
	s.decode(rr, &list)
	s.Len(list, 1)

	rr = s.do(http.MethodPost, "/api/v1/schedules/run", map[string]any{"now": sched.NextDue})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	var run models.RunSchedulesResponse
	s.decode(rr, &run)
	s.Equal(1, run.Due)
	s.Equal(0, run.Failed)
	s.Require().Len(run.Results, 1)
	s.Equal("committed", run.Results[0].Outcome)
	s.Require().NotNil(run.Results[0].NextDue)
	s.Equal(sched.NextDue.Add(24*time.Hour), *run.Results[0].NextDue)

	rr = s.do(http.MethodDelete, "/api/v1/schedules/"+sched.ID+"?owner=bob", nil)
	s.Equal(http.StatusForbidden, rr.Code)
	rr = s.do(http.MethodDelete, "/api/v1/schedules/missing?owner=alice", nil)
	s.Equal(http.StatusNotFound, rr.Code)
	rr = s.do(http.MethodDelete, "/api/v1/schedules/"+sched.ID+"?owner=alice", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.decode(rr, &sched)
	s.Equal("cancelled", sched.Status)

	// Empty body runs at the server clock.
	s.clock.now = s.clock.now.Add(30 * 24 * time.Hour)
	rr = s.do(http.MethodPost, "/api/v1/schedules/run", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.decode(rr, &run)
	s.Equal(0, run.Due)
}

func (s *HandlerTestSuite) TestCreateScheduleInvalidInterval() {
	rr := s.do(http.MethodPost, "/api/v1/schedules", map[string]any{
		"owner": "alice", "payee": "bob", "amount": 50, "interval_seconds": 0,
	})
	s.Equal(http.StatusUnprocessableEntity, rr.Code)
	var resp models.ErrorResponse
	s.decode(rr, &resp)
	s.Equal("invalid_interval", resp.Kind)
}

func (s *HandlerTestSuite) TestListSchedulesRequiresOwner() {
	rr := s.do(http.MethodGet, "/api/v1/schedules", nil)
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerTestSuite) TestBalanceUnknownAccount() {
	rr := s.do(http.MethodGet, "/api/v1/accounts/ghost/balance", nil)
	s.Equal(http.StatusNotFound, rr.Code)
}

func (s *HandlerTestSuite) TestHistoryPagination() {
	for i := 1; i <= 3; i++ {
		rr := s.do(http.MethodPost, "/api/v1/payments", map[string]any{"payer": "alice", "payee": "bob", "amount": i})
		s.Require().Equal(http.StatusCreated, rr.Code)
	}

	rr := s.do(http.MethodGet, "/api/v1/accounts/alice/history?limit=2", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	var page domain.HistoryPage
	s.decode(rr, &page)
	s.Require().Len(page.Records, 2)
	s.True(page.Records[0].Amount.Equal(domain.NewAmount(3)))
	s.Require().NotEmpty(page.NextCursor)

	rr = s.do(http.MethodGet, "/api/v1/accounts/alice/history?limit=2&cursor="+page.NextCursor, nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	page = domain.HistoryPage{}
	s.decode(rr, &page)
	s.Require().Len(page.Records, 1)
	s.Empty(page.NextCursor)

	rr = s.do(http.MethodGet, "/api/v1/accounts/alice/history?cursor=%25%25", nil)
	s.Equal(http.StatusBadRequest, rr.Code)
	rr = s.do(http.MethodGet, "/api/v1/accounts/alice/history?limit=abc", nil)
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerTestSuite) TestHistoryExport() {
	for i := 1; i <= 3; i++ {
		rr := s.do(http.MethodPost, "/api/v1/payments", map[string]any{"payer": "alice", "payee": "bob", "amount": i})
		s.Require().Equal(http.StatusCreated, rr.Code)
	}

	rr := s.do(http.MethodGet, "/api/v1/accounts/bob/history/export", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal("application/x-ndjson", rr.Header().Get("Content-Type"))

	var amounts []int64
	scanner := bufio.NewScanner(strings.NewReader(rr.Body.String()))
	for scanner.Scan() {
		var rec domain.TransferRecord
		s.Require().NoError(json.Unmarshal(scanner.Bytes(), &rec))
		amounts = append(amounts, rec.Amount.IntPart())
	}
	s.Equal([]int64{3, 2, 1}, amounts)

	rr = s.do(http.MethodGet, "/api/v1/accounts/nobody/history/export", nil)
	s.Equal(http.StatusOK, rr.Code)
	s.Empty(strings.TrimSpace(rr.Body.String()))
}

func TestRateLimit(t *testing.T) {
	exec := service.NewExecutor(service.Deps{
		Ledger:    ledger.NewMemoryLedger(),
		Registry:  schedule.NewMemoryRegistry(),
		Transfers: transfer.NewMemory(),
		Logger:    zerolog.Nop(),
	})
	router, err := api.NewRouter(api.NewHandler(exec, nil, zerolog.Nop()), api.RouterOptions{RateLimit: "2-M"})
	if err != nil {
		t.Fatal(err)
	}

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/schedules?owner=alice", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	// Health is outside the limited subrouter.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("health returned %d", rr.Code)
	}
}

func TestNewRouterRejectsBadRate(t *testing.T) {
	_, err := api.NewRouter(api.NewHandler(nil, nil, zerolog.Nop()), api.RouterOptions{RateLimit: "lots"})
	if err == nil {
		t.Fatal("expected error for malformed rate")
	}
}
