package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/punchamoorthee/payscheduler/internal/api"
	"github.com/punchamoorthee/payscheduler/internal/config"
	"github.com/punchamoorthee/payscheduler/internal/domain"
	"github.com/punchamoorthee/payscheduler/internal/events"
	"github.com/punchamoorthee/payscheduler/internal/ledger"
	"github.com/punchamoorthee/payscheduler/internal/logger"
	"github.com/punchamoorthee/payscheduler/internal/schedule"
	"github.com/punchamoorthee/payscheduler/internal/service"
	"github.com/punchamoorthee/payscheduler/internal/store"
	"github.com/punchamoorthee/payscheduler/internal/tick"
	"github.com/punchamoorthee/payscheduler/internal/transfer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", true)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, !cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	var (
		ledgerStore ledger.Ledger
		registry    schedule.Registry
		pgStore     *store.Store
	)
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pgStore, err = store.NewStore(ctx, cfg.DBSource, cfg.HistoryMaxLimit)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to connect to database")
		}
		defer pgStore.Close()
		ledgerStore, registry = pgStore, pgStore
	case config.StorageSQLite:
		db, err := store.OpenSQLite(ctx, cfg.SQLitePath, cfg.HistoryMaxLimit)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.SQLitePath).Msg("unable to open sqlite")
		}
		defer db.Close()
		ledgerStore, registry = db, db
	default:
		log.Warn().Msg("using in-memory storage, history and schedules are lost on exit")
		ledgerStore = ledger.NewMemoryLedger().WithMaxLimit(cfg.HistoryMaxLimit)
		registry = schedule.NewMemoryRegistry()
	}

	// External transfer service
	var transfers transfer.Service
	switch cfg.TransferBackend {
	case config.StoragePostgres:
		pool := sharedPool(pgStore)
		if pool == nil {
			pool, err = pgxpool.New(ctx, cfg.DBSource)
			if err != nil {
				log.Fatal().Err(err).Msg("unable to connect to transfer database")
			}
			defer pool.Close()
		}
		transfers = transfer.NewPostgres(pool)
	default:
		book := transfer.NewMemory()
		for id, bal := range cfg.MemoryAccounts {
			book.Fund(domain.Account(id), bal)
		}
		log.Info().Int("accounts", len(cfg.MemoryAccounts)).Msg("in-memory transfer book opened")
		transfers = book
	}

	eventLog := events.NewThrottled(events.NewLogPublisher(log), cfg.EventsRatePerSec)
	defer func() {
		log.Info().Uint64("dropped", eventLog.Dropped()).Msg("event log closed")
	}()
	publisher := events.Multi{events.Counting{}, eventLog}

	executor := service.NewExecutor(service.Deps{
		Ledger:    ledgerStore,
		Registry:  registry,
		Transfers: transfers,
		Publisher: publisher,
		Logger:    log,
	})

	if cfg.SchedulerEnabled {
		driver, err := tick.New(cfg.SchedulerSpec, cfg.SchedulerLocation, executor, nil, log)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid scheduler configuration")
		}
		driver.Start(ctx)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			driver.Stop(stopCtx)
		}()
	}

	router, err := api.NewRouter(api.NewHandler(executor, nil, log), api.RouterOptions{
		RateLimit: cfg.RateLimit,
		Logger:    log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("unable to build router")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go shutdownOnDone(ctx, srv, log)

	log.Info().
		Str("port", cfg.Port).
		Str("storage", cfg.StorageDriver).
		Str("transfers", cfg.TransferBackend).
		Bool("scheduler", cfg.SchedulerEnabled).
		Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server failed")
	}
}

func sharedPool(s *store.Store) *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.Db
}

func shutdownOnDone(ctx context.Context, srv *http.Server, log zerolog.Logger) {
	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
