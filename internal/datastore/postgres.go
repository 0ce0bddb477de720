// Package datastore provides the shared Postgres connection and
// transaction-on-context plumbing every compensation-engine store
// builds on top of.
package datastore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/golang-migrate/migrate/v4/source/file"
)

var dbs = map[string]*sqlx.DB{}

// CurrentMigrationVersion is bumped whenever a migration is added to ./migrations.
const CurrentMigrationVersion = 1

// Datastore is the generic capability Postgres implements; the
// concrete stores hold a *Postgres rather than embedding it.
type Datastore interface {
	RawDB() *sqlx.DB
	NewMigrate() (*migrate.Migrate, error)
	Migrate() error
	RollbackTx(tx *sqlx.Tx)
	BeginTx() (*sqlx.Tx, error)
}

// Postgres is the base Datastore implementation wrapping a *sqlx.DB.
type Postgres struct {
	*sqlx.DB
}

// RawDB returns the underlying *sqlx.DB.
func (pg *Postgres) RawDB() *sqlx.DB {
	return pg.DB
}

// NewMigrate builds a migrate.Migrate bound to this connection.
func (pg *Postgres) NewMigrate() (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(pg.RawDB().DB, &postgres.Config{})
	if err != nil {
		return nil, err
	}
	migrationsURL := os.Getenv("DATABASE_MIGRATIONS_URL")
	if migrationsURL == "" {
		migrationsURL = "file://migrations"
	}
	return migrate.NewWithDatabaseInstance(migrationsURL, "postgres", driver)
}

// Migrate applies pending migrations up to CurrentMigrationVersion.
func (pg *Postgres) Migrate() error {
	m, err := pg.NewMigrate()
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	err = m.Migrate(CurrentMigrationVersion)
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// NewPostgres opens (or reuses a cached) *sqlx.DB for databaseURL and
// optionally migrates it. statsPrefix, when non-empty, registers a
// connection-pool Prometheus collector under that name.
func NewPostgres(databaseURL string, performMigration bool, statsPrefix ...string) (*Postgres, error) {
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	prefix := strings.Join(statsPrefix, "_")
	key := prefix + ":" + databaseURL
	if cached, ok := dbs[key]; ok {
		return &Postgres{cached}, nil
	}

	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	dbs[key] = db

	if prefix != "" {
		collector := collectors.NewDBStatsCollector(db.DB, prefix)
		if err := prometheus.Register(collector); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
		}
	}

	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(80)
	db.SetMaxIdleConns(40)

	pg := &Postgres{db}
	if performMigration {
		if err := pg.Migrate(); err != nil {
			return nil, err
		}
	}
	return pg, nil
}

// RollbackTxAndHandle rolls back tx, reporting unexpected failures to sentry.
func (pg *Postgres) RollbackTxAndHandle(tx *sqlx.Tx) error {
	err := tx.Rollback()
	if err != nil && err != sql.ErrTxDone {
		sentry.CaptureMessage(err.Error())
	}
	return err
}

// RollbackTx rolls back tx, swallowing the error; intended for defer.
func (pg *Postgres) RollbackTx(tx *sqlx.Tx) {
	_ = pg.RollbackTxAndHandle(tx)
}

// BeginTx starts a new transaction.
func (pg *Postgres) BeginTx() (*sqlx.Tx, error) {
	return pg.RawDB().Beginx()
}
