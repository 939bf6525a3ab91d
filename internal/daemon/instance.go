package daemon

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/config"
)

var (
	// ErrAlreadyRunning is returned when another daemon holds the instance lock for a home.
	ErrAlreadyRunning = errors.New("vexum is already running for this home")
	// ErrNotRunning is returned by Stop when no daemon serves the home.
	ErrNotRunning = errors.New("vexum is not running")
)

func lockPath(home string) string {
	return filepath.Join(config.ProtectedDir(home), "daemon.lock")
}

func recordPath(home string) string {
	return filepath.Join(config.ProtectedDir(home), "daemon.json")
}

// LogPath is where a background daemon writes its log.
func LogPath(home string) string {
	return filepath.Join(config.ProtectedDir(home), "daemon.log")
}

// instanceRecord describes the live daemon of a home. It exists only while the daemon
// serves and is what Status reads.
type instanceRecord struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	Backend   string    `json:"backend"`
	StartedAt time.Time `json:"startedAt"`
}

// writeRecord replaces the record atomically so readers never see a partial file.
func writeRecord(home string, rec instanceRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tmp := recordPath(home) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, recordPath(home))
}

// readRecord returns the record, or ok=false when it is missing or unreadable.
func readRecord(home string) (instanceRecord, bool) {
	b, err := os.ReadFile(recordPath(home))
	if err != nil {
		return instanceRecord{}, false
	}
	var rec instanceRecord
	if err := json.Unmarshal(b, &rec); err != nil || rec.PID <= 0 {
		return instanceRecord{}, false
	}
	return rec, true
}

func removeRecord(home string) {
	_ = os.Remove(recordPath(home))
}
