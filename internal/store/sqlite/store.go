package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/internal/store/schema"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the file-based local adapter. Each collection is one row holding a JSON array.
type Store struct {
	DB   *sql.DB
	path string
}

var (
	_ store.Adapter    = (*Store)(nil)
	_ store.BatchSaver = (*Store)(nil)
)

// connPragmas run on every pooled connection.
var connPragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
}

// DefaultPath returns the database location under home.
func DefaultPath(home string) string {
	return filepath.Join(home, "protected", "vexum.db")
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	// Writers take the lock up front so SaveAll never fails on a lock upgrade.
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Open opens (creating if needed) the SQLite database at path and brings its schema up
// to date.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: database path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s := &Store{DB: db, path: path}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// SchemaVersion reports the applied schema version kept in PRAGMA user_version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.DB.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v)
	return v, err
}

// Migrate applies the embedded schema files newer than user_version, each in its own
// transaction together with the version bump.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("sqlite: store not initialized")
	}
	steps, err := schema.Steps(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return classify("migrate", "", err)
	}
	for _, step := range schema.Pending(steps, current) {
		if err := s.apply(ctx, step); err != nil {
			return fmt.Errorf("sqlite: schema %s: %w", step.Name, err)
		}
	}
	return nil
}

func (s *Store) apply(ctx context.Context, step schema.Step) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
		return err
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", step.Version)); err != nil {
		return err
	}
	return tx.Commit()
}
