package config

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestWithHome_HomeFrom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if _, ok := HomeFrom(ctx); ok {
		t.Fatal("expected no home in empty context")
	}
	ctx = WithHome(ctx, "/foo/bar")
	got, ok := HomeFrom(ctx)
	if !ok || got != "/foo/bar" {
		t.Fatalf("HomeFrom: got %q, ok=%v; want /foo/bar, true", got, ok)
	}
}

func TestMustHomeFrom(t *testing.T) {
	t.Parallel()
	ctx := WithHome(context.Background(), "/vexum")
	if got := MustHomeFrom(ctx); got != "/vexum" {
		t.Fatalf("MustHomeFrom: got %q", got)
	}
}

func TestMustHomeFrom_panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when home missing")
		}
	}()
	MustHomeFrom(context.Background())
}

func TestResolveHome_override(t *testing.T) {
	t.Parallel()
	got, err := ResolveHome("/custom/home")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	if got != filepath.Clean("/custom/home") {
		t.Fatalf("ResolveHome: got %q", got)
	}
}

func TestResolveHome_env(t *testing.T) {
	t.Setenv("VEXUM_HOME", "/env/home")
	got, err := ResolveHome("")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	if got != filepath.Clean("/env/home") {
		t.Fatalf("ResolveHome from env: got %q", got)
	}
}

func TestResolveHome_default(t *testing.T) {
	t.Setenv("VEXUM_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("UserHomeDir: %v", err)
	}
	got, err := ResolveHome("")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	if want := filepath.Join(home, ".vexum"); got != want {
		t.Fatalf("ResolveHome default: got %q, want %q", got, want)
	}
}

func TestResolveHome_expandsTildeAndRelative(t *testing.T) {
	t.Setenv("VEXUM_HOME", "")
	userHome, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("UserHomeDir: %v", err)
	}
	got, err := ResolveHome("~/office/vexum")
	if err != nil || got != filepath.Join(userHome, "office", "vexum") {
		t.Errorf("ResolveHome(~/office/vexum) = %q, %v", got, err)
	}
	got, err = ResolveHome("rel/home")
	if err != nil || !filepath.IsAbs(got) || !strings.HasSuffix(got, filepath.Join("rel", "home")) {
		t.Errorf("ResolveHome(rel/home) = %q, %v", got, err)
	}
}

func TestEnsureProtected(t *testing.T) {
	home := t.TempDir()
	dir, err := EnsureProtected(home)
	if err != nil {
		t.Fatalf("EnsureProtected: %v", err)
	}
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		t.Fatalf("stat %s: %v", dir, err)
	}
	if runtime.GOOS != "windows" && fi.Mode().Perm() != 0o700 {
		t.Errorf("mode = %v, want 0700", fi.Mode().Perm())
	}
	if _, err := EnsureProtected(home); err != nil {
		t.Errorf("second EnsureProtected: %v", err)
	}
}

// clearEnv blanks every variable Resolve reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	for _, k := range []string{"VEXUM_BACKEND", "DATABASE_URL", "VEXUM_DB_PATH", "VEXUM_REMOTE_URL",
		"VEXUM_API_KEY", "VEXUM_GRPC_ADDR", "VEXUM_TZ", "VEXUM_SERVER_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestResolve_defaultsToSQLite(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	cfg, err := Resolve(home, Overrides{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Backend != BackendSQLite {
		t.Errorf("backend: %q", cfg.Backend)
	}
	if want := filepath.Join(home, "protected", "vexum.db"); cfg.Path != want {
		t.Errorf("path: got %q want %q", cfg.Path, want)
	}
}

func TestResolve_precedence(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	if err := SaveFile(home, Config{Backend: BackendRemote, URL: "http://file:3650", APIKey: "from-file"}); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	cfg, err := Resolve(home, Overrides{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Backend != BackendRemote || cfg.URL != "http://file:3650" || cfg.APIKey != "from-file" {
		t.Fatalf("file config: %+v", cfg)
	}

	t.Setenv("VEXUM_REMOTE_URL", "http://env:3650")
	cfg, err = Resolve(home, Overrides{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.URL != "http://env:3650" {
		t.Errorf("env should override file: %q", cfg.URL)
	}

	cfg, err = Resolve(home, Overrides{Backend: "postgres", DSN: "postgres://flag/db"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Backend != BackendPostgres || cfg.DSN != "postgres://flag/db" {
		t.Errorf("flags should override env and file: %+v", cfg)
	}
}

func TestResolve_validation(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	cases := []Overrides{
		{Backend: "mongo"},
		{Backend: BackendPostgres},
		{Backend: BackendRemoteLive},
		{Backend: BackendGRPC},
	}
	for _, ov := range cases {
		if _, err := Resolve(home, ov); err == nil {
			t.Errorf("Resolve(%+v): expected error", ov)
		}
	}
	t.Setenv("VEXUM_TZ", "Mars/Olympus")
	if _, err := Resolve(home, Overrides{}); err == nil {
		t.Error("expected error for unknown timezone")
	}
}

func TestLoadFile_invalidYAML(t *testing.T) {
	home := t.TempDir()
	if err := os.WriteFile(Path(home), []byte("backend: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(home); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, ".env"), []byte("VEXUM_BACKEND=grpc\nVEXUM_GRPC_ADDR=localhost:50051\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// t.Setenv registered the keys, so values loaded here are restored after the test.
	os.Unsetenv("VEXUM_BACKEND")
	os.Unsetenv("VEXUM_GRPC_ADDR")
	if err := LoadEnv(home, ""); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	cfg, err := Resolve(home, Overrides{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Backend != BackendGRPC || cfg.GRPCAddr != "localhost:50051" {
		t.Errorf("cfg: %+v", cfg)
	}
	if err := LoadEnv(home, filepath.Join(home, "missing.env")); err == nil {
		t.Error("expected error for missing --env-file")
	}
}

func TestLastBackup(t *testing.T) {
	home := t.TempDir()
	got, err := ReadLastBackup(home)
	if err != nil || got != nil {
		t.Fatalf("no backup yet: %v %v", got, err)
	}
	when := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	if err := WriteLastBackup(home, when); err != nil {
		t.Fatalf("WriteLastBackup: %v", err)
	}
	got, err = ReadLastBackup(home)
	if err != nil || got == nil || !got.Equal(when) {
		t.Fatalf("ReadLastBackup: %v %v", got, err)
	}
}
