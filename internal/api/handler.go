package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/punchamoorthee/payscheduler/internal/apperrors"
	"github.com/punchamoorthee/payscheduler/internal/domain"
	"github.com/punchamoorthee/payscheduler/internal/logger"
	"github.com/punchamoorthee/payscheduler/internal/models"
	"github.com/punchamoorthee/payscheduler/internal/service"
)

// Metrics
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payscheduler_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payscheduler_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// Payments is the executor surface the handlers drive.
type Payments interface {
	ExecutePayment(ctx context.Context, payer, payee domain.Account, amount domain.Amount, message string) (domain.TransferRecord, error)
	ExecuteBulkPayment(ctx context.Context, payer domain.Account, payees []domain.Account, amounts []domain.Amount) ([]domain.TransferRecord, error)
	SchedulePayment(ctx context.Context, owner, payee domain.Account, amount domain.Amount, interval time.Duration) (domain.ScheduleDefinition, error)
	CancelSchedule(ctx context.Context, owner domain.Account, id string) (domain.ScheduleDefinition, error)
	ListSchedules(ctx context.Context, owner domain.Account) ([]domain.ScheduleDefinition, error)
	RunDueSchedules(ctx context.Context, now time.Time) ([]service.ScheduleRun, error)
	CheckBalance(ctx context.Context, account domain.Account) (domain.Amount, error)
	ViewTransactionHistory(ctx context.Context, account domain.Account, limit int, cursor string) (domain.HistoryPage, error)
}

var _ Payments = (*service.Executor)(nil)

type Handler struct {
	payments Payments
	clock    service.Clock
	validate *validator.Validate
	log      zerolog.Logger
}

func NewHandler(p Payments, clock service.Clock, log zerolog.Logger) *Handler {
	if clock == nil {
		clock = service.SystemClock{}
	}
	return &Handler{
		payments: p,
		clock:    clock,
		validate: validator.New(),
		log:      log.With().Str("component", "api").Logger(),
	}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.payments.ExecutePayment(r.Context(),
		domain.Account(req.Payer), domain.Account(req.Payee), req.Amount, req.Message)
	if err != nil {
		h.respondWithRecord(w, r, rec, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/accounts/%s/history", req.Payer))
	respondWithJSON(w, http.StatusCreated, rec)
}

// CreateBulkPaymentHandler answers 201 when every entry committed and 207
// when the batch stopped part way; the body says exactly what committed.
func (h *Handler) CreateBulkPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req models.BulkPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	payees := make([]domain.Account, len(req.Payees))
	for i, p := range req.Payees {
		payees[i] = domain.Account(p)
	}

	committed, err := h.payments.ExecuteBulkPayment(r.Context(), domain.Account(req.Payer), payees, req.Amounts)
	resp := models.BulkPaymentResponse{Committed: committed}
	if resp.Committed == nil {
		resp.Committed = []domain.TransferRecord{}
	}
	if len(committed) > 0 {
		resp.BatchID = committed[0].BatchID
	}

	var bulkErr *service.BulkError
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusCreated, resp)
	case errors.As(err, &bulkErr):
		resp.Failure = &models.BulkFailure{
			Index:   bulkErr.Index,
			Payee:   string(bulkErr.Payee),
			Error:   bulkErr.Err.Error(),
			Kind:    string(apperrors.KindOf(bulkErr.Err)),
			Skipped: len(payees) - bulkErr.Index - 1,
		}
		if bulkErr.Rejected.Seq > 0 {
			rec := bulkErr.Rejected
			resp.Failure.Record = &rec
			resp.BatchID = rec.BatchID
		}
		if apperrors.KindOf(bulkErr.Err) == apperrors.KindStorageFailure {
			h.requestLogger(r).Error().Err(err).Int("committed", len(committed)).Msg("bulk payment lost its audit trail")
			respondWithJSON(w, http.StatusInternalServerError, resp)
			return
		}
		respondWithJSON(w, http.StatusMultiStatus, resp)
	default:
		h.respondWithAppError(w, r, err)
	}
}

// decode reads a JSON body into dst and runs struct validation. It writes
// the error response itself and reports whether the handler may continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("field %s failed %q validation", fe.Field(), fe.Tag())
	}
	return err.Error()
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindInvalidAmount, apperrors.KindInvalidInterval, apperrors.KindLengthMismatch,
		apperrors.KindTransferFailed:
		return http.StatusUnprocessableEntity
	case apperrors.KindInvalidCursor:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindNotOwner:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	code := statusFor(kind)
	if code == http.StatusInternalServerError {
		h.requestLogger(r).Error().Err(err).Msg("request failed")
		respondWithJSON(w, code, models.ErrorResponse{Error: "Internal Server Error", Kind: string(kind)})
		return
	}
	resp := models.ErrorResponse{Error: err.Error(), Kind: string(kind)}
	if kind == apperrors.KindTransferFailed {
		resp.Error = apperrors.Reason(err)
	}
	respondWithJSON(w, code, resp)
}

// respondWithRecord is respondWithAppError for operations that return the
// rejected record next to the error.
func (h *Handler) respondWithRecord(w http.ResponseWriter, r *http.Request, rec domain.TransferRecord, err error) {
	if apperrors.KindOf(err) != apperrors.KindTransferFailed || rec.Seq == 0 {
		h.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{
		Error:  apperrors.Reason(err),
		Kind:   string(apperrors.KindTransferFailed),
		Record: &rec,
	})
}

func (h *Handler) requestLogger(r *http.Request) *zerolog.Logger {
	log := logger.FromContext(r.Context(), h.log)
	return &log
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, models.ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}
