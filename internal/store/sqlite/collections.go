package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

const upsertCollection = `
INSERT INTO collections(kind, data, version, updated_at) VALUES(?, ?, 1, ?)
ON CONFLICT(kind) DO UPDATE SET
  data = excluded.data,
  version = collections.version + 1,
  updated_at = excluded.updated_at`

// LoadAll reads every stored collection. Kinds never written load as empty.
func (s *Store) LoadAll(ctx context.Context) (models.Snapshot, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT kind, data FROM collections`)
	if err != nil {
		return models.Snapshot{}, classify("load", "", err)
	}
	defer func() { _ = rows.Close() }()
	cols := make(map[models.Kind]json.RawMessage)
	for rows.Next() {
		var kind, data string
		if err := rows.Scan(&kind, &data); err != nil {
			return models.Snapshot{}, classify("load", "", err)
		}
		k, ok := models.ParseKind(kind)
		if !ok {
			continue
		}
		cols[k] = json.RawMessage(data)
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

// SaveCollection replaces one collection.
func (s *Store) SaveCollection(ctx context.Context, kind models.Kind, items json.RawMessage) error {
	if _, err := s.DB.ExecContext(ctx, upsertCollection, string(kind), string(items), time.Now().UnixMilli()); err != nil {
		return classify("save", kind, err)
	}
	return nil
}

// SaveAll replaces several collections in one transaction.
func (s *Store) SaveAll(ctx context.Context, cols map[models.Kind]json.RawMessage) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return classify("save", "", err)
	}
	defer func() { _ = tx.Rollback() }()
	now := time.Now().UnixMilli()
	for _, kind := range models.Kinds {
		items, ok := cols[kind]
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, upsertCollection, string(kind), string(items), now); err != nil {
			return classify("save", kind, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return classify("save", "", err)
	}
	return nil
}

// Version returns how many times kind has been written.
func (s *Store) Version(ctx context.Context, kind models.Kind) (int64, error) {
	var v int64
	err := s.DB.QueryRowContext(ctx, `SELECT version FROM collections WHERE kind = ?`, string(kind)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, classify("version", kind, err)
	}
	return v, nil
}

// classify maps driver errors onto the store error types. A full disk or database is a
// quota condition; everything else may succeed on retry.
func classify(op string, kind models.Kind, err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_FULL {
		return &store.QuotaExceededError{Kind: kind, Err: err}
	}
	return &store.PersistenceError{Op: op, Kind: kind, Transient: true, Err: err}
}
