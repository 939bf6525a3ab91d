package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
)

func init() {
	color.NoColor = true
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"VEXUM_HOME", "VEXUM_BACKEND", "DATABASE_URL", "VEXUM_DB_PATH", "VEXUM_REMOTE_URL",
		"VEXUM_API_KEY", "VEXUM_GRPC_ADDR", "VEXUM_TZ", "VEXUM_SERVER_API_KEY"} {
		t.Setenv(k, "")
	}
}

// run executes the root command against home and returns combined output.
func run(t *testing.T, home, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--home", home}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, home string, args ...string) string {
	t.Helper()
	out, err := run(t, home, "", args...)
	if err != nil {
		t.Fatalf("vexum %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

var createdID = regexp.MustCompile(`\(([^()]+)\)\n$`)

func idFrom(t *testing.T, out string) string {
	t.Helper()
	m := createdID.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no id in %q", out)
	}
	return m[1]
}

func TestNewRootCmd_hasSubcommands(t *testing.T) {
	root := NewRootCmd("test")
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"start", "stop", "status", "doctor", "config", "staff", "task", "meeting",
		"report", "shift", "memo", "export", "import", "backup", "quota", "apikey", "daemon"} {
		if !names[want] {
			t.Errorf("expected subcommand %q", want)
		}
	}
}

func TestNewRootCmd_versionFlag(t *testing.T) {
	root := NewRootCmd("1.2.3")
	if root.Version != "1.2.3" {
		t.Errorf("Version: got %q", root.Version)
	}
}

func TestNewRootCmd_persistentFlags(t *testing.T) {
	root := NewRootCmd("")
	for _, name := range []string{"home", "env-file", "backend", "db-url", "url", "direct"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected --%s persistent flag", name)
		}
	}
}

func TestStaffAndTasks(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()

	staffID := idFrom(t, mustRun(t, home, "staff", "add", "--name", "Aoi Tanaka", "--client", "Kato Trading"))
	out := mustRun(t, home, "staff", "list", "--active")
	if !strings.Contains(out, "Aoi Tanaka @ Kato Trading") {
		t.Errorf("staff list:\n%s", out)
	}

	deadline := time.Now().AddDate(0, 0, 30).Format(dayLayout)
	taskID := idFrom(t, mustRun(t, home, "task", "add", "--name", "Ledger cleanup", "--client", "Kato Trading",
		"--staff", staffID, "--deadline", deadline, "--rate", "20"))
	mustRun(t, home, "task", "update", taskID, "--rate", "80", "--status", "in_progress")

	out = mustRun(t, home, "task", "list", "--staff", staffID)
	if !strings.Contains(out, "Ledger cleanup") || !strings.Contains(out, "80%") {
		t.Errorf("task list:\n%s", out)
	}
	if _, err := run(t, home, "", "task", "update", taskID, "--rate", "101"); err == nil {
		t.Error("rate 101 should be rejected")
	}
	if _, err := run(t, home, "", "task", "list", "--status", "done"); err == nil {
		t.Error("unknown status filter should be rejected")
	}

	past := time.Now().AddDate(0, 0, -3).Format(dayLayout)
	mustRun(t, home, "task", "add", "--name", "Late filing", "--deadline", past)
	out = mustRun(t, home, "task", "due")
	if !strings.Contains(out, "Overdue: 1") || !strings.Contains(out, "Late filing") {
		t.Errorf("task due:\n%s", out)
	}

	mustRun(t, home, "task", "delete", taskID)
	if _, err := run(t, home, "", "task", "delete", taskID); err == nil {
		t.Error("second delete should fail with not found")
	}

	// Data survives in the SQLite file between invocations.
	if _, err := os.Stat(filepath.Join(home, "protected", "vexum.db")); err != nil {
		t.Errorf("sqlite file: %v", err)
	}
}

func TestMeetingDecisionBecomesTask(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()

	out := mustRun(t, home, "meeting", "add", "--title", "Kickoff", "--client", "Kato Trading",
		"--date", "2026-04-01", "--decision", "Weekly sync on Mondays", "--task-decision", "Draft migration plan")
	if !strings.Contains(out, "-> task") {
		t.Fatalf("promoted decision not linked:\n%s", out)
	}
	out = mustRun(t, home, "task", "list")
	if !strings.Contains(out, "Draft migration plan") || strings.Contains(out, "Weekly sync") {
		t.Fatalf("task list after meeting:\n%s", out)
	}

	meetingID := strings.Fields(strings.TrimPrefix(mustRun(t, home, "meeting", "list"), "- "))[0]
	mustRun(t, home, "meeting", "decide", meetingID, "--content", "Order new laptops")
	out = mustRun(t, home, "task", "list")
	if !strings.Contains(out, "Order new laptops") {
		t.Errorf("decide --content did not create a task:\n%s", out)
	}
	if _, err := run(t, home, "", "meeting", "decide", meetingID); err == nil {
		t.Error("decide without --content or --promote should fail")
	}
}

func TestReportGenerate(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	now := time.Now()

	staffID := idFrom(t, mustRun(t, home, "staff", "add", "--name", "Ren Sato", "--client", "Kato Trading"))
	mustRun(t, home, "task", "add", "--name", "Invoice run", "--project", "Billing", "--client", "Kato Trading",
		"--staff", staffID, "--deadline", now.AddDate(0, 0, 10).Format(dayLayout), "--rate", "60")

	out := mustRun(t, home, "report", "generate", "--client", "Kato Trading", "--staff", "Ren Sato",
		"--year", strconv.Itoa(now.Year()), "--month", strconv.Itoa(int(now.Month())), "--upcoming", "Audit: before year end")
	if !strings.Contains(out, "(1 tasks)") || !strings.Contains(out, "Billing 60%") {
		t.Fatalf("report generate:\n%s", out)
	}
	if _, err := run(t, home, "", "report", "generate", "--client", "Kato Trading", "--staff", "Nobody"); err == nil {
		t.Error("unknown staff should fail")
	}
	if out := mustRun(t, home, "report", "list"); !strings.Contains(out, "Kato Trading / Ren Sato") {
		t.Errorf("report list:\n%s", out)
	}
}

func TestShiftsAndMemos(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()

	out := mustRun(t, home, "shift", "add", "--client", "Kato Trading", "--staff", "Ren",
		"--date", "2026-05-01,2026-05-02", "--date", "2026-05-03")
	if !strings.Contains(out, "Added 3 shift(s)") {
		t.Fatalf("shift add:\n%s", out)
	}
	out = mustRun(t, home, "shift", "list", "--from", "2026-05-02", "--to", "2026-05-03")
	if n := strings.Count(out, "Kato Trading"); n != 2 {
		t.Errorf("shift list in range: %d lines\n%s", n, out)
	}
	if _, err := run(t, home, "", "shift", "add", "--client", "Kato Trading", "--staff", "Ren",
		"--date", "2026-05-04", "--start", "9am"); err == nil {
		t.Error("bad start time should fail")
	}

	out = mustRun(t, home, "memo", "add", "call", "the", "accountant")
	memoID := strings.TrimSpace(strings.TrimPrefix(out, "Added memo "))
	if out := mustRun(t, home, "memo", "list"); !strings.Contains(out, "call the accountant") {
		t.Errorf("memo list:\n%s", out)
	}
	mustRun(t, home, "memo", "delete", memoID)
	if out := mustRun(t, home, "memo", "list"); !strings.Contains(out, "No memos.") {
		t.Errorf("memo list after delete:\n%s", out)
	}
}

func TestExportImportBackup(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()

	if out := mustRun(t, home, "backup"); !strings.Contains(out, "Last backup: never") || !strings.Contains(out, "Backup recommended") {
		t.Errorf("backup before export:\n%s", out)
	}
	mustRun(t, home, "staff", "add", "--name", "Aoi Tanaka")
	file := filepath.Join(t.TempDir(), "backup.json")
	mustRun(t, home, "export", "-o", file)
	if out := mustRun(t, home, "backup"); strings.Contains(out, "never") || strings.Contains(out, "Backup recommended") {
		t.Errorf("backup after export:\n%s", out)
	}

	other := t.TempDir()
	out, err := run(t, other, "no\n", "import", file)
	if err != nil || !strings.Contains(out, "Aborted.") {
		t.Fatalf("unconfirmed import: %v\n%s", err, out)
	}
	if !strings.Contains(out, "replaces staff, tasks, meetings, reports, shifts, memos.") {
		t.Errorf("prompt should name the replaced collections:\n%s", out)
	}
	if out := mustRun(t, other, "staff", "list"); !strings.Contains(out, "No staff.") {
		t.Fatalf("aborted import changed data:\n%s", out)
	}
	out, err = run(t, other, "replace\n", "import", file)
	if err != nil || !strings.Contains(out, "Imported.") {
		t.Fatalf("confirmed import: %v\n%s", err, out)
	}
	if out := mustRun(t, other, "staff", "list"); !strings.Contains(out, "Aoi Tanaka") {
		t.Errorf("staff after import:\n%s", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"staff":[]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, other, "", "import", bad, "--yes"); err == nil {
		t.Error("incomplete document should be rejected")
	}
}

func TestDoctorAndQuotaWithoutDaemon(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	out := mustRun(t, home, "doctor")
	if !strings.Contains(out, "Backend: sqlite") || !strings.Contains(out, "\nok\n") {
		t.Errorf("doctor:\n%s", out)
	}
	if out := mustRun(t, home, "quota", "clear"); !strings.Contains(out, "not running") {
		t.Errorf("quota clear:\n%s", out)
	}
	if out := mustRun(t, home, "status"); !strings.Contains(out, "Vexum not running") {
		t.Errorf("status:\n%s", out)
	}

	if out := mustRun(t, home, "stop"); !strings.Contains(out, "Vexum is not running") {
		t.Errorf("stop:\n%s", out)
	}

	if _, err := run(t, home, "", "doctor", "--backend", "postgres"); err == nil {
		t.Error("postgres without dsn should fail doctor")
	}
}

func TestConfigSetAndShow(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	mustRun(t, home, "config", "set", "--set-backend", "remote", "--remote-url", "http://office:3548", "--api-key", "k1")
	out := mustRun(t, home, "config", "show")
	for _, want := range []string{"backend: remote", "url: http://office:3548", "api_key: (set)"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
	if _, err := run(t, home, "", "config", "set", "--set-backend", "mongo"); err == nil {
		t.Error("unknown backend should be rejected")
	}
}

func TestApikeyGenerate(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	out := mustRun(t, home, "apikey", "generate")
	hexKey := regexp.MustCompile(`(?m)^  ([a-f0-9]{64})$`)
	if !hexKey.MatchString(out) {
		t.Errorf("output should contain a 64-char hex key on its own line; got:\n%s", out)
	}
	if !strings.Contains(out, "VEXUM_SERVER_API_KEY") || !strings.Contains(out, "X-API-Key") {
		t.Errorf("output should explain server and client usage:\n%s", out)
	}

	if out := mustRun(t, home, "apikey", "show"); !strings.Contains(out, "No server API key") {
		t.Errorf("apikey show before save:\n%s", out)
	}
	out = mustRun(t, home, "apikey", "generate", "--save")
	b, err := os.ReadFile(filepath.Join(home, "config.yaml"))
	if err != nil || !strings.Contains(string(b), "server_api_key:") {
		t.Errorf("config.yaml after --save: %v\n%s", err, b)
	}
	fp := regexp.MustCompile(`fingerprint ([0-9a-f]{8})`).FindStringSubmatch(out)
	if fp == nil {
		t.Fatalf("no fingerprint in:\n%s", out)
	}
	if out := mustRun(t, home, "apikey", "show"); !strings.Contains(out, fp[1]) {
		t.Errorf("apikey show should print fingerprint %s:\n%s", fp[1], out)
	}
}

func TestApikeyGenerate_envFileUpsert(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("DATABASE_URL=postgres://db/vexum\nVEXUM_SERVER_API_KEY=old\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mustRun(t, home, "apikey", "generate", "--env", envFile)
	mustRun(t, home, "apikey", "generate", "--env", envFile)

	b, err := os.ReadFile(envFile)
	if err != nil {
		t.Fatal(err)
	}
	content := string(b)
	if strings.Count(content, "VEXUM_SERVER_API_KEY=") != 1 || strings.Contains(content, "=old") {
		t.Errorf("key should be replaced, not appended:\n%s", content)
	}
	if !strings.Contains(content, "postgres://db/vexum") {
		t.Errorf("other variables lost:\n%s", content)
	}
	if fi, err := os.Stat(envFile); err == nil && fi.Mode().Perm() != 0o600 {
		t.Errorf("env file mode = %v", fi.Mode().Perm())
	}
}

func TestNuke(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	mustRun(t, home, "memo", "add", "keep me")

	out, err := run(t, home, "nope\n", "nuke")
	if err != nil || !strings.Contains(out, "Aborted.") || !strings.Contains(out, "protected") {
		t.Fatalf("unconfirmed nuke: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(home, "protected", "vexum.db")); err != nil {
		t.Fatalf("aborted nuke removed data: %v", err)
	}
	out, err = run(t, home, "delete everything\n", "nuke")
	if err != nil || !strings.Contains(out, "Deleted.") {
		t.Fatalf("confirmed nuke: %v\n%s", err, out)
	}
	if _, err := os.Stat(home); !os.IsNotExist(err) {
		t.Errorf("home still present: %v", err)
	}
}

func TestImportFromStdinNeedsYes(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	if _, err := run(t, home, `{"staff":[],"tasks":[],"meetings":[],"reports":[]}`, "import", "-"); err == nil {
		t.Error("stdin import without --yes should fail")
	}
	out, err := run(t, home, `{"staff":[],"tasks":[],"meetings":[],"reports":[]}`, "import", "-", "--yes")
	if err != nil || !strings.Contains(out, "Imported.") {
		t.Errorf("stdin import --yes: %v\n%s", err, out)
	}
}

func TestParseDay(t *testing.T) {
	d, err := parseDay("date", "2026-04-01", time.UTC)
	if err != nil || !d.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("parseDay date: %v %v", d, err)
	}
	if _, err := parseDay("date", "2026-04-01T10:00:00+09:00", time.UTC); err != nil {
		t.Errorf("parseDay rfc3339: %v", err)
	}
	if _, err := parseDay("date", "April 1", time.UTC); err == nil || !strings.Contains(err.Error(), "--date") {
		t.Errorf("parseDay invalid: %v", err)
	}
}
