package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/punchamoorthee/payscheduler/internal/domain"
	"github.com/punchamoorthee/payscheduler/internal/ledger"
	"github.com/punchamoorthee/payscheduler/internal/models"
)

func (h *Handler) CreateScheduleHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ScheduleRequest
	if !h.decode(w, r, &req) {
		return
	}

	def, err := h.payments.SchedulePayment(r.Context(),
		domain.Account(req.Owner), domain.Account(req.Payee), req.Amount,
		time.Duration(req.IntervalSeconds)*time.Second)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, models.NewSchedule(def))
}

func (h *Handler) ListSchedulesHandler(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		respondWithError(w, http.StatusBadRequest, "Missing owner query parameter")
		return
	}

	defs, err := h.payments.ListSchedules(r.Context(), domain.Account(owner))
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	out := make([]models.Schedule, 0, len(defs))
	for _, def := range defs {
		out = append(out, models.NewSchedule(def))
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (h *Handler) CancelScheduleHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		respondWithError(w, http.StatusBadRequest, "Missing owner query parameter")
		return
	}

	def, err := h.payments.CancelSchedule(r.Context(), domain.Account(owner), id)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewSchedule(def))
}

// RunSchedulesHandler runs one tick on demand. An empty body uses the
// server clock.
func (h *Handler) RunSchedulesHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RunSchedulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body: "+err.Error())
		return
	}
	now := h.clock.Now()
	if req.Now != nil {
		now = *req.Now
	}

	runs, err := h.payments.RunDueSchedules(r.Context(), now)
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}

	resp := models.RunSchedulesResponse{
		Now:     now.UTC(),
		Due:     len(runs),
		Results: make([]models.ScheduleRunResult, 0, len(runs)),
	}
	for _, run := range runs {
		res := models.ScheduleRunResult{
			ScheduleID: run.Schedule.ID,
			RecordID:   run.Record.ID,
			Outcome:    string(run.Record.Outcome),
		}
		switch {
		case run.Skipped:
			resp.Skipped++
			res.Skipped = true
		case run.Err != nil:
			resp.Failed++
			res.Error = run.Err.Error()
		default:
			next := run.Schedule.NextDue
			res.NextDue = &next
		}
		resp.Results = append(resp.Results, res)
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	bal, err := h.payments.CheckBalance(r.Context(), domain.Account(id))
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.BalanceResponse{Account: id, Balance: bal})
}

func (h *Handler) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	page, err := h.payments.ViewTransactionHistory(r.Context(), domain.Account(id), limit, q.Get("cursor"))
	if err != nil {
		h.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

type historyPager struct{ payments Payments }

func (p historyPager) History(ctx context.Context, account domain.Account, limit int, cursor string) (domain.HistoryPage, error) {
	return p.payments.ViewTransactionHistory(ctx, account, limit, cursor)
}

// ExportHistoryHandler streams an account's full history as NDJSON, newest first.
func (h *Handler) ExportHistoryHandler(w http.ResponseWriter, r *http.Request) {
	account := domain.Account(mux.Vars(r)["id"])

	enc := json.NewEncoder(w)
	started := false
	for rec, err := range ledger.Iterate(r.Context(), historyPager{h.payments}, account, ledger.MaxPageSize) {
		if err != nil {
			if !started {
				h.respondWithAppError(w, r, err)
				return
			}
			h.requestLogger(r).Error().Err(err).Str("account", string(account)).Msg("history export aborted")
			return
		}
		if !started {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if err := enc.Encode(rec); err != nil {
			return
		}
	}
	if !started {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
	}
}
