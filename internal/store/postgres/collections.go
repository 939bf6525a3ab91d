package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// NotifyChannel is the LISTEN/NOTIFY channel carrying the kind of each written collection.
const NotifyChannel = "vexum_collections"

const upsertCollection = `
INSERT INTO collections(kind, data, version, updated_at) VALUES($1, $2::jsonb, 1, now())
ON CONFLICT (kind) DO UPDATE SET
  data = EXCLUDED.data,
  version = collections.version + 1,
  updated_at = now()`

// LoadAll reads every stored collection. Kinds never written load as empty.
func (s *Store) LoadAll(ctx context.Context) (models.Snapshot, error) {
	rows, err := s.Pool.Query(ctx, `SELECT kind, data FROM collections`)
	if err != nil {
		return models.Snapshot{}, classify("load", "", err)
	}
	defer rows.Close()
	cols := make(map[models.Kind]json.RawMessage)
	for rows.Next() {
		var kind string
		var data []byte
		if err := rows.Scan(&kind, &data); err != nil {
			return models.Snapshot{}, classify("load", "", err)
		}
		if k, ok := models.ParseKind(kind); ok {
			cols[k] = data
		}
	}
	if err := rows.Err(); err != nil {
		return models.Snapshot{}, classify("load", "", err)
	}
	snap, err := models.SnapshotFromCollections(cols)
	if err != nil {
		return models.Snapshot{}, &store.PersistenceError{Op: "load", Err: err}
	}
	return snap, nil
}

// SaveCollection replaces one collection and notifies listeners in the same transaction.
func (s *Store) SaveCollection(ctx context.Context, kind models.Kind, items json.RawMessage) error {
	return s.SaveAll(ctx, map[models.Kind]json.RawMessage{kind: items})
}

// SaveAll replaces several collections atomically.
func (s *Store) SaveAll(ctx context.Context, cols map[models.Kind]json.RawMessage) error {
	var kind models.Kind
	err := pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		for _, k := range models.Kinds {
			items, ok := cols[k]
			if !ok {
				continue
			}
			kind = k
			if _, err := tx.Exec(ctx, upsertCollection, string(k), string(items)); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, string(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if len(cols) > 1 {
			kind = ""
		}
		return classify("save", kind, err)
	}
	return nil
}

// Subscribe delivers the current snapshot, then a fresh snapshot after every write by any
// process sharing the database. A dropped listener connection is re-established with
// backoff and followed by a reload so no change is missed.
func (s *Store) Subscribe(ctx context.Context, onChange func(models.Snapshot)) (func(), error) {
	conn, err := s.listen(ctx)
	if err != nil {
		return nil, err
	}
	initial, err := s.LoadAll(ctx)
	if err != nil {
		s.unlisten(conn)
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		onChange(initial)
		backoff := 250 * time.Millisecond
		for {
			_, err := conn.Conn().WaitForNotification(subCtx)
			if subCtx.Err() != nil {
				s.unlisten(conn)
				return
			}
			if err != nil {
				slog.Warn("postgres listener lost; reconnecting", "err", err)
				conn.Release()
				conn = s.relisten(subCtx, &backoff)
				if conn == nil {
					return
				}
			}
			snap, err := s.LoadAll(subCtx)
			if err != nil {
				if subCtx.Err() != nil {
					s.unlisten(conn)
					return
				}
				slog.Warn("postgres reload after notify failed", "err", err)
				continue
			}
			backoff = 250 * time.Millisecond
			onChange(snap)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (s *Store) listen(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return nil, classify("subscribe", "", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		conn.Release()
		return nil, classify("subscribe", "", err)
	}
	return conn, nil
}

func (s *Store) relisten(ctx context.Context, backoff *time.Duration) *pgxpool.Conn {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(*backoff):
		}
		if *backoff < 10*time.Second {
			*backoff *= 2
		}
		conn, err := s.listen(ctx)
		if err == nil {
			return conn
		}
		slog.Warn("postgres relisten failed", "err", err)
	}
}

func (s *Store) unlisten(conn *pgxpool.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _ = conn.Exec(ctx, "UNLISTEN "+NotifyChannel)
	conn.Release()
}

// classify maps pgx errors onto the store error types. SQLSTATE class 53 (insufficient
// resources) and 54 (program limit exceeded) are quota conditions.
func classify(op string, kind models.Kind, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "53"), strings.HasPrefix(pgErr.Code, "54"):
			return &store.QuotaExceededError{Kind: kind, Err: err}
		case strings.HasPrefix(pgErr.Code, "22"), strings.HasPrefix(pgErr.Code, "23"):
			return &store.PersistenceError{Op: op, Kind: kind, Err: err}
		}
		transient := strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "40") || strings.HasPrefix(pgErr.Code, "57")
		return &store.PersistenceError{Op: op, Kind: kind, Transient: transient, Err: err}
	}
	return &store.PersistenceError{Op: op, Kind: kind, Transient: true, Err: err}
}
