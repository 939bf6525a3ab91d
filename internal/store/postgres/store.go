package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/internal/store/schema"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// schemaLockID serializes schema setup between processes sharing one database.
const schemaLockID = 0x7665_7875_6d00

// Store is the PostgreSQL adapter. Collections are JSONB rows; every write notifies
// listeners so other processes sharing the database receive fresh snapshots.
type Store struct {
	Pool *pgxpool.Pool
}

var (
	_ store.Adapter    = (*Store)(nil)
	_ store.Subscriber = (*Store)(nil)
	_ store.BatchSaver = (*Store)(nil)
)

// Open connects a pool and brings the schema up to date. An empty dsn falls back to
// DATABASE_URL.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return nil, errors.New("postgres: DSN or DATABASE_URL required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	// One connection is held by the LISTEN loop while subscribed.
	cfg.MaxConns = 6
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.ConnConfig.RuntimeParams["application_name"] = "vexum"
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, classify("connect", "", err)
	}
	s := &Store{Pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s == nil || s.Pool == nil {
		return nil
	}
	s.Pool.Close()
	return nil
}

// SchemaVersion reports the highest applied schema version, 0 for a fresh database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.Pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v)
	return v, err
}

// Migrate applies the embedded schema files not yet recorded in schema_migrations. The
// whole run holds a transaction-scoped advisory lock, so concurrent daemons apply each
// step once.
func (s *Store) Migrate(ctx context.Context) error {
	steps, err := schema.Steps(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	err = pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(schemaLockID)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
			return err
		}
		var current int
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
			return err
		}
		for _, step := range schema.Pending(steps, current) {
			if _, err := tx.Exec(ctx, step.SQL); err != nil {
				return fmt.Errorf("schema %s: %w", step.Name, err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES($1)`, step.Version); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return classify("migrate", "", err)
	}
	return nil
}
