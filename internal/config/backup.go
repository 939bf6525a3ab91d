package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LastBackupPath returns <home>/protected/last_backup.
func LastBackupPath(home string) string {
	return filepath.Join(ProtectedDir(home), "last_backup")
}

// ReadLastBackup returns the time of the last export, or nil if none was recorded.
func ReadLastBackup(home string) (*time.Time, error) {
	b, err := os.ReadFile(LastBackupPath(home))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(b)))
	if err != nil {
		// An unreadable stamp counts as no backup.
		return nil, nil
	}
	return &t, nil
}

// WriteLastBackup records t as the time of the last export.
func WriteLastBackup(home string, t time.Time) error {
	if _, err := EnsureProtected(home); err != nil {
		return err
	}
	return os.WriteFile(LastBackupPath(home), []byte(t.UTC().Format(time.RFC3339Nano)+"\n"), 0o600)
}
