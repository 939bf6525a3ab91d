package cli

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/httpapi"
	"github.com/kshoda-lgtm/vexum-management/internal/state"
	"github.com/kshoda-lgtm/vexum-management/internal/store/storetest"
	"github.com/kshoda-lgtm/vexum-management/pkg/client"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// newDaemonWriter serves a state store over the HTTP API and returns a writer bound to it.
func newDaemonWriter(t *testing.T) (daemonWriter, *state.Store, *storetest.Fake) {
	t.Helper()
	fake := storetest.New()
	var n atomic.Int64
	st := state.New(fake, state.Options{
		NewID:    func() string { return fmt.Sprintf("id-%d", n.Add(1)) },
		Location: time.UTC,
	})
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	app, err := httpapi.NewApp(httpapi.ServerOptions{Home: t.TempDir(), State: st})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	ts := httptest.NewServer(app.Server.Handler)
	t.Cleanup(func() {
		ts.Close()
		app.Close()
		_ = st.Close()
	})
	return daemonWriter{c: client.New(ts.URL, "")}, st, fake
}

func TestDaemonWriter_QueuesBehindServerWrites(t *testing.T) {
	w, st, fake := newDaemonWriter(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var first sync.Once
	fake.BeforeSave(func(kind models.Kind) {
		first.Do(func() {
			close(entered)
			<-release
		})
	})

	errs := make(chan error, 2)
	go func() {
		_, err := st.AddMemo(ctx, "from the daemon")
		errs <- err
	}()
	<-entered
	go func() {
		_, err := w.AddMemo(ctx, "from the cli")
		errs <- err
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	for range 2 {
		if err := <-errs; err != nil {
			t.Fatalf("AddMemo: %v", err)
		}
	}

	persisted, err := fake.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(persisted.Memos) != 2 || len(st.Memos()) != 2 {
		t.Fatalf("persisted=%d in memory=%d, want both memos", len(persisted.Memos), len(st.Memos()))
	}
}

func TestDaemonWriter_EntityRoutes(t *testing.T) {
	w, st, _ := newDaemonWriter(t)
	ctx := context.Background()

	s, err := w.AddStaff(ctx, models.Staff{Name: "Aoi Tanaka"})
	if err != nil {
		t.Fatalf("AddStaff: %v", err)
	}
	acme := "Acme"
	if _, err := w.UpdateStaff(ctx, s.ID, models.StaffPatch{CurrentClient: &acme}); err != nil {
		t.Fatalf("UpdateStaff: %v", err)
	}
	if got, ok := st.GetStaff(s.ID); !ok || got.CurrentClient != "Acme" {
		t.Errorf("staff after update: %+v", got)
	}

	task, err := w.AddTask(ctx, models.Task{TaskName: "Audit", ClientName: "Acme", StaffID: s.ID, Deadline: time.Now().AddDate(0, 0, 3)})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := w.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}

	day := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	shifts, err := w.AddShifts(ctx, models.Shift{ClientName: "Acme", StaffID: "Aoi", StartTime: "09:00", EndTime: "18:00"},
		[]time.Time{day, day.AddDate(0, 0, 1)})
	if err != nil || len(shifts) != 2 {
		t.Fatalf("AddShifts: %v %v", shifts, err)
	}

	if err := w.DeleteStaff(ctx, "missing"); err == nil {
		t.Error("deleting an unknown id should fail")
	}
	if len(st.Staff()) != 1 || len(st.Tasks()) != 0 || len(st.Shifts()) != 2 {
		t.Errorf("staff=%d tasks=%d shifts=%d", len(st.Staff()), len(st.Tasks()), len(st.Shifts()))
	}
}
