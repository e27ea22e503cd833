package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindSingle    = "single"
	kindBulk      = "bulk"
	kindScheduled = "scheduled"
)

var (
	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payscheduler_transfers_total",
		Help: "Transfer attempts by payment kind and outcome",
	}, []string{"kind", "outcome"})

	transferDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payscheduler_transfer_duration_seconds",
		Help:    "Latency of the external transfer call",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"kind"})

	scheduleRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payscheduler_schedule_runs_total",
		Help: "Due schedules processed, by result",
	}, []string{"result"})

	storageFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payscheduler_storage_failures_total",
		Help: "Mutations the ledger or registry could not persist",
	})
)
