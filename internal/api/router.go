package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/punchamoorthee/payscheduler/internal/logger"
)

type RouterOptions struct {
	// RateLimit is a ulule rate such as "100-S" applied per client IP.
	// Empty disables limiting.
	RateLimit string
	Logger    zerolog.Logger
}

func NewRouter(h *Handler, opts RouterOptions) (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(requestLogging(opts.Logger))

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	if opts.RateLimit != "" {
		rate, err := limiter.NewRateFromFormatted(opts.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid rate limit %q: %w", opts.RateLimit, err)
		}
		apiV1.Use(rateLimit(limiter.New(memory.NewStore(), rate)))
	}

	apiV1.HandleFunc("/payments", h.CreatePaymentHandler).Methods(http.MethodPost)
	apiV1.HandleFunc("/payments/bulk", h.CreateBulkPaymentHandler).Methods(http.MethodPost)
	apiV1.HandleFunc("/schedules", h.CreateScheduleHandler).Methods(http.MethodPost)
	apiV1.HandleFunc("/schedules", h.ListSchedulesHandler).Methods(http.MethodGet)
	apiV1.HandleFunc("/schedules/run", h.RunSchedulesHandler).Methods(http.MethodPost)
	apiV1.HandleFunc("/schedules/{id}", h.CancelScheduleHandler).Methods(http.MethodDelete)
	apiV1.HandleFunc("/accounts/{id}/balance", h.GetBalanceHandler).Methods(http.MethodGet)
	apiV1.HandleFunc("/accounts/{id}/history", h.GetHistoryHandler).Methods(http.MethodGet)
	apiV1.HandleFunc("/accounts/{id}/history/export", h.ExportHistoryHandler).Methods(http.MethodGet)

	return r, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLogging tags each request with an X-Request-ID, stores a
// request-scoped logger in the context and records metrics on completion.
func requestLogging(base zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			endpoint := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					endpoint = tpl
				}
			}

			log := base.With().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()
			w.Header().Set("X-Request-ID", requestID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context(), log)))

			latency := time.Since(start)
			httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(latency.Seconds())
			log.Info().Int("status", rec.status).Dur("latency", latency).Msg("request completed")
		})
	}
}

func rateLimit(l *limiter.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := l.GetIPKey(r)
			lctx, err := l.Get(r.Context(), ip)
			if err != nil {
				log := logger.FromContext(r.Context(), zerolog.Nop())
				log.Error().Err(err).Str("ip", ip).Msg("rate limit check failed")
				respondWithError(w, http.StatusInternalServerError, "Internal server error during rate limit check")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

			if lctx.Reached {
				log := logger.FromContext(r.Context(), zerolog.Nop())
				log.Warn().Str("ip", ip).Int64("limit", lctx.Limit).Msg("rate limit exceeded")
				respondWithError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
