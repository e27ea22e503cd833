package main

import (
	"database/sql"
	"errors"
	"flag"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/punchamoorthee/payscheduler/internal/config"
	"github.com/punchamoorthee/payscheduler/internal/logger"
	"github.com/punchamoorthee/payscheduler/internal/store"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up | down")
	steps := flag.Int("steps", 0, "Number of migrations to apply; 0 applies all")
	flag.Parse()

	log := logger.New("info", true)
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if err := run(cfg.DBSource, *direction, *steps, log); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
}

func run(dsn, direction string, steps int, log zerolog.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}
	source, err := iofs.New(store.Migrations, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return err
	}

	switch {
	case steps != 0 && direction == "down":
		err = m.Steps(-steps)
	case steps != 0:
		err = m.Steps(steps)
	case direction == "down":
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return verr
	}
	if dirty {
		log.Warn().Uint("version", version).Msg("database is in a dirty migration state")
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Uint("version", version).Msg("no new migrations to apply")
		return nil
	}
	log.Info().Str("direction", direction).Uint("version", version).Msg("migrations applied")
	return nil
}
