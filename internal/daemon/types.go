package daemon

import (
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/config"
)

// StartOptions configures a daemon. Zero Port uses models.DefaultPort and zero
// ReminderSec uses models.DefaultReminderIntervalSec.
type StartOptions struct {
	Home        string
	Version     string // reported as service.version in metrics
	Port        int
	Dev         bool
	DevOrigin   string // CORS origin in dev mode; empty allows any
	PprofAddr   string
	EnvFile     string           // forwarded to a background child
	Overrides   config.Overrides // --backend, --db-url, --url
	EnableOtel  bool
	ReminderSec float64
}

// StatusInfo reports the daemon of a home. Only Running is set when none is serving.
type StatusInfo struct {
	Running   bool
	PID       int
	Addr      string
	Backend   string
	StartedAt time.Time
}
