package state

import (
	"strings"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return store.Invalid(field, "required")
	}
	return nil
}

func validateStaff(s models.Staff) error {
	if err := required("name", s.Name); err != nil {
		return err
	}
	ap := s.AssignmentPeriod
	if ap.End != nil && !ap.Start.IsZero() && ap.End.Before(ap.Start) {
		return store.Invalid("assignmentPeriod.end", "must not be before start")
	}
	return nil
}

func validateTask(t models.Task) error {
	if err := required("taskName", t.TaskName); err != nil {
		return err
	}
	if t.Deadline.IsZero() {
		return store.Invalid("deadline", "required")
	}
	if !t.Status.Valid() {
		return store.Invalid("status", "unknown status %q", t.Status)
	}
	if t.CompletionRate < models.MinCompletionRate || t.CompletionRate > models.MaxCompletionRate {
		return store.Invalid("completionRate", "must be between %d and %d, got %d",
			models.MinCompletionRate, models.MaxCompletionRate, t.CompletionRate)
	}
	return nil
}

func validateMeeting(m models.Meeting) error {
	if err := required("title", m.Title); err != nil {
		return err
	}
	if m.Date.IsZero() {
		return store.Invalid("date", "required")
	}
	seen := make(map[string]struct{}, len(m.Decisions))
	for _, d := range m.Decisions {
		if d.ID == "" {
			return store.Invalid("decisions.id", "required")
		}
		if _, dup := seen[d.ID]; dup {
			return store.Invalid("decisions.id", "duplicate id %q", d.ID)
		}
		seen[d.ID] = struct{}{}
		if err := required("decisions.content", d.Content); err != nil {
			return err
		}
	}
	return nil
}

func validateReport(r models.MonthlyReport) error {
	if r.Year < 1 {
		return store.Invalid("year", "must be positive")
	}
	if r.Month < 1 || r.Month > 12 {
		return store.Invalid("month", "must be between 1 and 12, got %d", r.Month)
	}
	if r.EndDate.Before(r.StartDate) {
		return store.Invalid("endDate", "must not be before startDate")
	}
	for _, t := range r.Tasks {
		if t.CompletionRate < models.MinCompletionRate || t.CompletionRate > models.MaxCompletionRate {
			return store.Invalid("tasks.completionRate", "must be between %d and %d", models.MinCompletionRate, models.MaxCompletionRate)
		}
	}
	return nil
}

func validateShift(s models.Shift) error {
	if err := required("clientName", s.ClientName); err != nil {
		return err
	}
	if err := required("staffId", s.StaffID); err != nil {
		return err
	}
	if s.Date.IsZero() {
		return store.Invalid("date", "required")
	}
	if !validClock(s.StartTime) {
		return store.Invalid("startTime", "want HH:MM, got %q", s.StartTime)
	}
	if !validClock(s.EndTime) {
		return store.Invalid("endTime", "want HH:MM, got %q", s.EndTime)
	}
	return nil
}

func validateMemo(m models.Memo) error {
	return required("content", m.Content)
}

// validClock reports whether v is a 24-hour HH:MM time.
func validClock(v string) bool {
	if len(v) != len("15:04") {
		return false
	}
	_, err := time.Parse("15:04", v)
	return err == nil
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
