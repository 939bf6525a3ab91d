package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/config"
	"github.com/kshoda-lgtm/vexum-management/internal/httpapi"
	"github.com/kshoda-lgtm/vexum-management/internal/state"
	"github.com/kshoda-lgtm/vexum-management/internal/store/storetest"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

func TestStartForeground_emptyHome(t *testing.T) {
	ctx := context.Background()
	err := StartForeground(ctx, StartOptions{Home: ""})
	if err == nil {
		t.Fatal("StartForeground empty home: expected error")
	}
}

func clearBackendEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"VEXUM_BACKEND", "DATABASE_URL", "VEXUM_DB_PATH", "VEXUM_REMOTE_URL",
		"VEXUM_API_KEY", "VEXUM_GRPC_ADDR", "VEXUM_TZ", "VEXUM_SERVER_API_KEY"} {
		t.Setenv(k, "")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestStartForeground_servesAndStops(t *testing.T) {
	clearBackendEnv(t)
	home := t.TempDir()
	port := freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StartForeground(ctx, StartOptions{Home: home, Port: port}) }()

	var info StatusInfo
	for i := 0; i < 200; i++ {
		info, _ = Status(ctx, home)
		if info.Running {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !info.Running || info.PID != os.Getpid() || info.Backend != config.BackendSQLite || info.StartedAt.IsZero() {
		cancel()
		t.Fatalf("status: %+v", info)
	}

	url := BaseURL(info.Addr) + "/health"
	var resp *http.Response
	var err error
	for i := 0; i < 100; i++ {
		if resp, err = http.Get(url); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("GET /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status=%d", resp.StatusCode)
	}

	// A second daemon on the same home is refused by the lock.
	if err := StartForeground(context.Background(), StartOptions{Home: home, Port: freePort(t)}); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second StartForeground: got %v, want ErrAlreadyRunning", err)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("StartForeground returned %v", err)
		}
	case <-time.After(20 * time.Second):
		t.Fatal("daemon did not stop")
	}
	if _, err := os.Stat(recordPath(home)); !os.IsNotExist(err) {
		t.Errorf("instance record left behind: %v", err)
	}
	if _, err := os.Stat(filepath.Join(config.ProtectedDir(home), "vexum.db")); err != nil {
		t.Errorf("sqlite file: %v", err)
	}
}

func TestStatus_notRunning(t *testing.T) {
	home := t.TempDir()
	st, err := Status(context.Background(), home)
	if err != nil || st.Running {
		t.Fatalf("Status: %+v, %v", st, err)
	}

	// An unreadable record is reported as not running.
	if err := os.MkdirAll(config.ProtectedDir(home), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(recordPath(home), []byte("garbage\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if st, _ := Status(context.Background(), home); st.Running {
		t.Error("garbage record reported running")
	}
	if _, err := Stop(context.Background(), home, time.Second); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop: got %v, want ErrNotRunning", err)
	}
}

func TestInstanceRecord(t *testing.T) {
	home := t.TempDir()
	if err := os.MkdirAll(config.ProtectedDir(home), 0o755); err != nil {
		t.Fatal(err)
	}
	started := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	want := instanceRecord{PID: os.Getpid(), Addr: "0.0.0.0:3548", Backend: "postgres", StartedAt: started}
	if err := writeRecord(home, want); err != nil {
		t.Fatal(err)
	}
	got, ok := readRecord(home)
	if !ok || got.PID != want.PID || got.Addr != want.Addr || got.Backend != want.Backend || !got.StartedAt.Equal(started) {
		t.Fatalf("readRecord: %+v, %v", got, ok)
	}
	info, err := Status(context.Background(), home)
	if err != nil || !info.Running || info.Addr != want.Addr || info.Backend != "postgres" || !info.StartedAt.Equal(started) {
		t.Errorf("Status: %+v, %v", info, err)
	}
	if _, err := os.Stat(recordPath(home) + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestDaemonArgs(t *testing.T) {
	args := daemonArgs(StartOptions{
		Home:        "/h",
		Port:        4000,
		Dev:         true,
		EnableOtel:  true,
		EnvFile:     "prod.env",
		Overrides:   config.Overrides{Backend: "postgres", DSN: "postgres://x"},
		ReminderSec: 30,
	})
	want := []string{"daemon", "--home", "/h", "--port", "4000", "--dev", "--otel=true",
		"--env-file", "prod.env", "--backend", "postgres", "--db-url", "postgres://x",
		"--reminder-interval", "30"}
	if !slices.Equal(args, want) {
		t.Errorf("daemonArgs:\n got %v\nwant %v", args, want)
	}
	if args := daemonArgs(StartOptions{Home: "/h", Port: 4000}); !slices.Contains(args, "--otel=false") {
		t.Errorf("disabled otel must be forwarded explicitly: %v", args)
	}
}

func TestBaseURL(t *testing.T) {
	if got := BaseURL("0.0.0.0:4100"); got != "http://127.0.0.1:4100" {
		t.Errorf("BaseURL: %s", got)
	}
	if got := BaseURL("unknown"); got != fmt.Sprintf("http://127.0.0.1:%d", models.DefaultPort) {
		t.Errorf("BaseURL fallback: %s", got)
	}
}

func testApp(t *testing.T) *httpapi.App {
	t.Helper()
	now := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	st := state.New(storetest.New(), state.Options{Now: func() time.Time { return now }, Location: time.UTC})
	if err := st.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	app, err := httpapi.NewApp(httpapi.ServerOptions{Home: t.TempDir(), State: st, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(func() {
		app.Close()
		_ = st.Close()
	})
	return app
}

func nextReminder(t *testing.T, sub *httpapi.Subscription) models.Reminder {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case raw := <-sub.C:
			var ev models.StreamEvent
			if err := json.Unmarshal(raw.Data, &ev); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if ev.Type == "reminder" && ev.Reminder != nil {
				return *ev.Reminder
			}
		case <-timeout:
			t.Fatal("timeout waiting for reminder")
		}
	}
}

func TestRunReminders_publishesOnChange(t *testing.T) {
	app := testApp(t)
	sub := app.Hub.Subscribe()
	defer app.Hub.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runReminders(ctx, 10*time.Millisecond, app)

	first := nextReminder(t, sub)
	if !first.Backup.Recommended || len(first.Overdue) != 0 {
		t.Fatalf("first reminder: %+v", first)
	}

	task, err := app.State.AddTask(ctx, models.Task{
		TaskName: "Payroll",
		Deadline: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	second := nextReminder(t, sub)
	if len(second.Overdue) != 1 || second.Overdue[0].ID != task.ID {
		t.Fatalf("second reminder: %+v", second)
	}
}

func TestReminderKey(t *testing.T) {
	a := models.Reminder{At: time.Now(), Overdue: []models.Task{{ID: "t1"}}}
	b := models.Reminder{At: time.Now().Add(time.Hour), Overdue: []models.Task{{ID: "t1"}}}
	if reminderKey(a) != reminderKey(b) {
		t.Error("timestamp should not change the key")
	}
	b.Backup.Recommended = true
	if reminderKey(a) == reminderKey(b) {
		t.Error("backup advice should change the key")
	}
}

func TestStartForeground_portInUse(t *testing.T) {
	clearBackendEnv(t)
	ln, err := net.Listen("tcp", "0.0.0.0:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	home := t.TempDir()
	err = StartForeground(context.Background(), StartOptions{Home: home, Port: port})
	if err == nil || !strings.Contains(err.Error(), fmt.Sprintf("port %d", port)) {
		t.Fatalf("busy port: got %v", err)
	}
	if _, err := os.Stat(recordPath(home)); !os.IsNotExist(err) {
		t.Errorf("instance record written for a daemon that never served: %v", err)
	}
}

func TestLogTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	old := "old run\n"
	fresh := "a\nb\nc\nd\ne\nf\nlisten on port 3548: address already in use\n"
	if err := os.WriteFile(path, []byte(old+fresh), 0o600); err != nil {
		t.Fatal(err)
	}
	got := logTail(path, int64(len(old)))
	if strings.Contains(got, "old run") || strings.Contains(got, "a\n") {
		t.Errorf("tail includes earlier output: %q", got)
	}
	if !strings.HasSuffix(got, "address already in use") || strings.Count(got, "\n") != 4 {
		t.Errorf("tail: %q", got)
	}
	if got := logTail(path, int64(len(old+fresh))); !strings.HasPrefix(got, "no output") {
		t.Errorf("empty tail: %q", got)
	}
}
