// Package postgres implements store.Store on PostgreSQL. Events keep their
// update ledger in a JSONB column so a locked row carries its own history.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/rendezvous/internal/model"
	"github.com/alfredjeanlab/rendezvous/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Pool settings.
const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
	connectTimeout  = 10 * time.Second
)

// PostgresStore is the pool-backed store. Outside RunInTransaction it runs
// each statement on its own.
type PostgresStore struct {
	conn
	pool *sql.DB
}

var (
	_ store.Store = (*PostgresStore)(nil)
	_ store.Store = (*txStore)(nil)
)

// New connects to databaseURL and brings the schema up to date.
func New(databaseURL string) (*PostgresStore, error) {
	pool, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pool.SetMaxOpenConns(maxOpenConns)
	pool.SetMaxIdleConns(maxIdleConns)
	pool.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrateUp(pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{conn: conn{pool}, pool: pool}, nil
}

func migrateUp(pool *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	drv, err := migratepg.WithInstance(pool, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.pool.Close()
}

// LockEvent outside a transaction has nothing to hold a row lock for, so it
// is a plain read.
func (s *PostgresStore) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	return s.getEvent(ctx, id, false)
}

// RunInTransaction runs fn against one transaction, committing when fn
// returns nil.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&txStore{conn: conn{tx}}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore is the view of the store handed to RunInTransaction callbacks.
type txStore struct {
	conn
}

// LockEvent reads with FOR UPDATE. The lock is held until the transaction
// ends, which serializes updates of one event across replicas.
func (s *txStore) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	return s.getEvent(ctx, id, true)
}

// RunInTransaction joins the open transaction.
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op; the pool belongs to the parent store.
func (s *txStore) Close() error { return nil }
