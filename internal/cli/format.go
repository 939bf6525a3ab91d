package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

const dayLayout = "2006-01-02"

// parseDay accepts YYYY-MM-DD (midnight in loc) or an RFC 3339 timestamp.
func parseDay(flag, v string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(dayLayout, v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: want YYYY-MM-DD or RFC 3339, got %q", flag, v)
	}
	return t, nil
}

func statusLabel(s models.TaskStatus) string {
	switch s {
	case models.TaskCompleted:
		return color.New(color.FgGreen).Sprint(s)
	case models.TaskInProgress:
		return color.New(color.FgCyan).Sprint(s)
	case models.TaskDelayed:
		return color.New(color.FgRed).Sprint(s)
	}
	return color.New(color.FgWhite).Sprint(s)
}

func formatTask(t models.Task, now time.Time, loc *time.Location) string {
	line := fmt.Sprintf("- %s  %s [%s] %d%% due %s", t.ID, t.TaskName, statusLabel(t.Status),
		t.CompletionRate, t.Deadline.In(loc).Format(dayLayout))
	if t.ClientName != "" {
		line += " client=" + t.ClientName
	}
	if t.Overdue(now) {
		line += color.New(color.FgRed).Sprint(" OVERDUE")
	}
	return line
}

func formatStaff(s models.Staff, now time.Time) string {
	line := fmt.Sprintf("- %s  %s", s.ID, s.Name)
	if s.CurrentClient != "" {
		line += " @ " + s.CurrentClient
	}
	if !s.Active(now) {
		line += color.New(color.FgHiBlack).Sprint(" (ended)")
	}
	return line
}

func formatMeeting(m models.Meeting, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- %s  %s %s", m.ID, m.Date.In(loc).Format(dayLayout), m.Title)
	if m.ClientName != "" {
		fmt.Fprintf(&b, " client=%s", m.ClientName)
	}
	for _, d := range m.Decisions {
		marker := "  "
		if d.TaskID != nil {
			marker = color.New(color.FgGreen).Sprint("✓ ")
		} else if d.IsTaskCreated {
			marker = color.New(color.FgYellow).Sprint("! ")
		}
		fmt.Fprintf(&b, "\n    %s%s  %s", marker, d.ID, d.Content)
		if d.TaskID != nil {
			fmt.Fprintf(&b, " -> task %s", *d.TaskID)
		}
	}
	return b.String()
}

func formatReport(r models.MonthlyReport) string {
	return fmt.Sprintf("- %s  %04d-%02d %s / %s (%d tasks)", r.ID, r.Year, r.Month, r.ClientName, r.StaffName, len(r.Tasks))
}

func formatShift(s models.Shift, loc *time.Location) string {
	line := fmt.Sprintf("- %s  %s %s-%s %s @ %s", s.ID, s.Date.In(loc).Format(dayLayout), s.StartTime, s.EndTime, s.StaffID, s.ClientName)
	if s.Notes != "" {
		line += " (" + s.Notes + ")"
	}
	return line
}

func formatMemo(m models.Memo, loc *time.Location) string {
	return fmt.Sprintf("- %s  %s  %s", m.ID, m.UpdatedAt.In(loc).Format("2006-01-02 15:04"), m.Content)
}

func quotaLabel(on bool) string {
	if on {
		return color.New(color.FgRed).Sprint("EXCEEDED (writes blocked)")
	}
	return color.New(color.FgGreen).Sprint("ok")
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
