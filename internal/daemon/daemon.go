package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/config"
	"github.com/kshoda-lgtm/vexum-management/internal/httpapi"
	"github.com/kshoda-lgtm/vexum-management/internal/otel"
	"github.com/kshoda-lgtm/vexum-management/internal/state"
	"github.com/kshoda-lgtm/vexum-management/internal/store/backend"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

const (
	// shutdownGrace bounds how long in-flight requests get after a stop signal.
	shutdownGrace = 15 * time.Second
	// startWait bounds how long StartBackground waits for the child to come up.
	startWait = 5 * time.Second
)

// StartForeground opens the configured backend, loads the state store and serves the HTTP
// API until ctx is cancelled.
func StartForeground(ctx context.Context, opts StartOptions) error {
	if opts.Home == "" {
		return errors.New("home is required")
	}
	if opts.Port == 0 {
		opts.Port = models.DefaultPort
	}

	if _, err := config.EnsureProtected(opts.Home); err != nil {
		return err
	}

	lock, err := acquireLock(lockPath(opts.Home))
	if err != nil {
		return err
	}
	defer lock.release()

	servePprof(ctx, opts.PprofAddr)

	cfg, err := config.Resolve(opts.Home, opts.Overrides)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("0.0.0.0:%d", opts.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", opts.Port, err)
	}
	defer func() { _ = ln.Close() }()

	adapter, err := backend.Open(ctx, opts.Home, cfg)
	if err != nil {
		return err
	}
	st := state.New(adapter, state.Options{Location: loc})
	defer func() { _ = st.Close() }()
	if err := st.Load(ctx); err != nil {
		return fmt.Errorf("load %s backend: %w", cfg.Backend, err)
	}

	rec := instanceRecord{PID: os.Getpid(), Addr: addr, Backend: cfg.Backend, StartedAt: time.Now().UTC()}
	if err := writeRecord(opts.Home, rec); err != nil {
		return err
	}
	defer removeRecord(opts.Home)

	srvOpts := httpapi.ServerOptions{
		Home:      opts.Home,
		Addr:      addr,
		Dev:       opts.Dev,
		DevOrigin: opts.DevOrigin,
		APIKey:    cfg.ServerAPIKey,
		State:     st,
	}
	if opts.EnableOtel {
		tel, err := otel.Setup(ctx, "vexum", opts.Version)
		if err == nil {
			err = tel.Instrument(otel.Gauges{Collections: collectionCounts(st), TaskStatus: taskStatusCounts(st)})
		}
		if err != nil {
			slog.Warn("otel init failed, serving without metrics", "err", err)
		} else {
			defer func() { _ = tel.Shutdown(context.Background()) }()
			srvOpts.MetricsHandler = tel.Handler
			srvOpts.UseOtelHTTP = true
		}
	}
	app, err := httpapi.NewApp(srvOpts)
	if err != nil {
		return err
	}

	slog.Info("daemon starting", "addr", addr, "home", opts.Home, "backend", cfg.Backend, "pid", rec.PID)
	go runReminders(ctx, time.Duration(opts.ReminderSec*float64(time.Second)), app)
	serveErr := make(chan error, 1)
	go func() { serveErr <- app.Server.Serve(ln) }()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := app.Server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown incomplete", "err", err)
	}
	slog.Info("daemon stopped", "pid", rec.PID)
	return ctx.Err()
}

func collectionCounts(st *state.Store) func() map[string]int {
	return func() map[string]int {
		out := make(map[string]int, len(models.Kinds))
		for kind, n := range st.Status().Counts {
			out[string(kind)] = n
		}
		return out
	}
}

func taskStatusCounts(st *state.Store) func() map[string]int {
	return func() map[string]int {
		out := make(map[string]int, 4)
		for status, n := range st.TaskCounts() {
			out[string(status)] = n
		}
		return out
	}
}

// daemonArgs rebuilds the command line for a background child process.
func daemonArgs(opts StartOptions) []string {
	args := []string{
		"daemon",
		"--home", opts.Home,
		"--port", strconv.Itoa(opts.Port),
	}
	if opts.Dev {
		args = append(args, "--dev")
	}
	if opts.DevOrigin != "" {
		args = append(args, "--dev-origin", opts.DevOrigin)
	}
	if opts.PprofAddr != "" {
		args = append(args, "--pprof", opts.PprofAddr)
	}
	args = append(args, "--otel="+strconv.FormatBool(opts.EnableOtel))
	if opts.EnvFile != "" {
		args = append(args, "--env-file", opts.EnvFile)
	}
	if opts.Overrides.Backend != "" {
		args = append(args, "--backend", opts.Overrides.Backend)
	}
	if opts.Overrides.DSN != "" {
		args = append(args, "--db-url", opts.Overrides.DSN)
	}
	if opts.Overrides.URL != "" {
		args = append(args, "--url", opts.Overrides.URL)
	}
	if opts.ReminderSec > 0 {
		args = append(args, "--reminder-interval", fmt.Sprintf("%g", opts.ReminderSec))
	}
	return args
}

// StartBackground re-executes the binary as a detached "daemon" child and waits until
// it writes its instance record. A child that exits first is reported with the tail of
// its log.
func StartBackground(ctx context.Context, opts StartOptions) (int, error) {
	if opts.Port == 0 {
		opts.Port = models.DefaultPort
	}
	if _, err := config.EnsureProtected(opts.Home); err != nil {
		return 0, err
	}
	if info, _ := Status(ctx, opts.Home); info.Running {
		return 0, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, info.PID)
	}
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}
	logFile, err := os.OpenFile(LogPath(opts.Home), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}
	// The child holds its own descriptor once started.
	defer func() { _ = logFile.Close() }()
	logStart, _ := logFile.Seek(0, io.SeekEnd)

	cmd := exec.Command(exe, daemonArgs(opts)...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start daemon: %w", err)
	}
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	wait := time.NewTimer(startWait)
	defer wait.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case err := <-exited:
			return 0, fmt.Errorf("daemon exited during startup (%v): %s", err, logTail(LogPath(opts.Home), logStart))
		case <-tick.C:
			if info, _ := Status(ctx, opts.Home); info.Running && info.PID == cmd.Process.Pid {
				return info.PID, nil
			}
		case <-wait.C:
			// Still starting, typically a slow remote backend. Report the pid we launched.
			return cmd.Process.Pid, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// logTail returns what was appended to the log at path after offset, trimmed to its
// last few lines.
func logTail(path string, offset int64) string {
	b, err := os.ReadFile(path)
	if err != nil || int64(len(b)) <= offset {
		return "no output; see " + path
	}
	lines := strings.Split(strings.TrimSpace(string(b[offset:])), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}

// Stop asks the running daemon to shut down and waits up to timeout (15s when zero)
// for its instance record to disappear before killing it. It returns the info of the
// daemon it stopped, or ErrNotRunning.
func Stop(ctx context.Context, home string, timeout time.Duration) (StatusInfo, error) {
	info, err := Status(ctx, home)
	if err != nil {
		return StatusInfo{}, err
	}
	if !info.Running {
		return StatusInfo{}, ErrNotRunning
	}
	proc, err := os.FindProcess(info.PID)
	if err != nil {
		return StatusInfo{}, ErrNotRunning
	}
	if err := terminate(proc); err != nil {
		return info, fmt.Errorf("signal pid %d: %w", info.PID, err)
	}
	if timeout <= 0 {
		timeout = shutdownGrace
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-waitCtx.Done():
			slog.Warn("daemon did not exit in time; killing", "pid", info.PID, "timeout", timeout)
			_ = proc.Kill()
			removeRecord(home)
			return info, nil
		case <-tick.C:
			if st, _ := Status(ctx, home); !st.Running {
				return info, nil
			}
		}
	}
}

// Status reads the instance record and checks that its process is alive. A stale record
// is removed.
func Status(ctx context.Context, home string) (StatusInfo, error) {
	rec, ok := readRecord(home)
	if !ok {
		return StatusInfo{}, nil
	}
	if !alive(rec.PID) {
		removeRecord(home)
		return StatusInfo{}, nil
	}
	return StatusInfo{Running: true, PID: rec.PID, Addr: rec.Addr, Backend: rec.Backend, StartedAt: rec.StartedAt}, nil
}

// BaseURL returns the loopback URL a client uses to reach a daemon listening on addr.
func BaseURL(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return fmt.Sprintf("http://127.0.0.1:%d", models.DefaultPort)
	}
	return "http://127.0.0.1:" + port
}

// servePprof exposes the runtime profiles on their own listener until ctx is done.
func servePprof(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("pprof listener stopped", "addr", addr, "err", err)
		}
	}()
}
