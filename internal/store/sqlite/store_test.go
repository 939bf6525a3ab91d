package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	st, err := Open(DefaultPath(filepath.Join(t.TempDir(), "home")))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenClose(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	st, err := Open(DefaultPath(home))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st.Path() != filepath.Join(home, "protected", "vexum.db") {
		t.Errorf("Path = %q", st.Path())
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := Open(""); err == nil {
		t.Fatal("Open(\"\") should fail")
	}
}

func TestMigrate(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()
	if v, err := st.SchemaVersion(ctx); err != nil || v != 1 {
		t.Fatalf("SchemaVersion after Open: %d, %v", v, err)
	}
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("Migrate again: %v", err)
	}
	if v, _ := st.SchemaVersion(ctx); v != 1 {
		t.Errorf("SchemaVersion after second Migrate: %d", v)
	}
}

func TestOpen_pragmasOnEveryConnection(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()
	conns := make([]*sql.Conn, 0, 3)
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()
	for i := 0; i < 3; i++ {
		c, err := st.DB.Conn(ctx)
		if err != nil {
			t.Fatal(err)
		}
		conns = append(conns, c)
		var mode string
		if err := c.QueryRowContext(ctx, `PRAGMA journal_mode`).Scan(&mode); err != nil || mode != "wal" {
			t.Errorf("conn %d journal_mode = %q, %v", i, mode, err)
		}
		var timeout int
		if err := c.QueryRowContext(ctx, `PRAGMA busy_timeout`).Scan(&timeout); err != nil || timeout != 5000 {
			t.Errorf("conn %d busy_timeout = %d, %v", i, timeout, err)
		}
	}
}

func TestLoadAll_emptyDatabase(t *testing.T) {
	st := openTemp(t)
	snap, err := st.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	for _, k := range models.Kinds {
		if snap.Len(k) != 0 {
			t.Errorf("%s len = %d", k, snap.Len(k))
		}
	}
	if snap.Memos == nil {
		t.Error("missing kinds should load as empty, not nil")
	}
}

func TestSaveCollection_roundTrip(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()
	deadline := time.Date(2026, 4, 1, 9, 0, 0, 123456789, time.UTC)
	tasks := []models.Task{{ID: "t1", TaskName: "API", Deadline: deadline, Status: models.TaskInProgress, CompletionRate: 30, Technologies: []string{"go"}}}
	raw, _ := json.Marshal(tasks)
	if err := st.SaveCollection(ctx, models.KindTasks, raw); err != nil {
		t.Fatalf("SaveCollection: %v", err)
	}
	if err := st.SaveCollection(ctx, models.KindTasks, raw); err != nil {
		t.Fatalf("SaveCollection again: %v", err)
	}
	snap, err := st.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(snap.Tasks) != 1 || !snap.Tasks[0].Deadline.Equal(deadline) {
		t.Fatalf("tasks = %+v", snap.Tasks)
	}
	if v, _ := st.Version(ctx, models.KindTasks); v != 2 {
		t.Errorf("version = %d, want 2", v)
	}
	if v, _ := st.Version(ctx, models.KindStaff); v != 0 {
		t.Errorf("unwritten version = %d, want 0", v)
	}
}

func TestSaveAll(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()
	err := st.SaveAll(ctx, map[models.Kind]json.RawMessage{
		models.KindStaff: json.RawMessage(`[{"id":"s1","name":"Sato"}]`),
		models.KindMemos: json.RawMessage(`[{"id":"m1","content":"hi"}]`),
	})
	if err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	snap, _ := st.LoadAll(ctx)
	if len(snap.Staff) != 1 || len(snap.Memos) != 1 {
		t.Fatalf("staff=%d memos=%d", len(snap.Staff), len(snap.Memos))
	}
}

func TestSaveCollection_canceledContext(t *testing.T) {
	st := openTemp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := st.SaveCollection(ctx, models.KindMemos, json.RawMessage(`[]`))
	if !errors.Is(err, store.ErrPersistence) || !store.IsTransient(err) {
		t.Fatalf("err = %v, want transient persistence error", err)
	}
}
