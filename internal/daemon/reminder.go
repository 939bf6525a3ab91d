package daemon

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/httpapi"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// runReminders periodically builds the due-soon/overdue/backup digest and publishes it
// on /stream whenever its content changes.
func runReminders(ctx context.Context, interval time.Duration, app *httpapi.App) {
	if interval <= 0 {
		interval = models.DefaultReminderIntervalSec * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := ""
	for {
		rem, err := app.Reminder()
		if err != nil {
			slog.Warn("build reminder failed", "err", err)
		} else if key := reminderKey(rem); key != last {
			last = key
			if len(rem.DueSoon) > 0 || len(rem.Overdue) > 0 || rem.Backup.Recommended {
				slog.Info("reminder",
					"due_soon", len(rem.DueSoon),
					"overdue", len(rem.Overdue),
					"backup_recommended", rem.Backup.Recommended)
			}
			app.PublishReminder(rem)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// reminderKey identifies a digest by the tasks it names and the backup advice, ignoring
// its timestamp.
func reminderKey(rem models.Reminder) string {
	var b strings.Builder
	for _, t := range rem.DueSoon {
		b.WriteString("d:" + t.ID + ";")
	}
	for _, t := range rem.Overdue {
		b.WriteString("o:" + t.ID + ";")
	}
	if rem.Backup.Recommended {
		b.WriteString("backup")
	}
	return b.String()
}
