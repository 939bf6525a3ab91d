package state

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// Reports returns every monthly report, newest period first.
func (s *Store) Reports() []models.MonthlyReport {
	out := s.reports.list()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	return out
}

// GetReport returns the report with id.
func (s *Store) GetReport(id string) (models.MonthlyReport, bool) { return s.reports.get(id) }

// MonthBounds returns the first instant and the last second of the calendar month in loc.
func MonthBounds(year, month int, loc *time.Location) (start, end time.Time) {
	start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	end = start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end
}

// ReportTasks returns the tasks of the named staff member for the client that were last
// touched (updatedAt, falling back to createdAt) within the requested month.
func (s *Store) ReportTasks(req models.ReportRequest) ([]models.Task, error) {
	if err := validateReportRequest(req); err != nil {
		return nil, err
	}
	member, ok := s.StaffByName(req.StaffName)
	if !ok {
		return nil, &store.NotFoundError{Kind: models.KindStaff, ID: req.StaffName}
	}
	start, end := MonthBounds(req.Year, req.Month, s.loc)
	var out []models.Task
	for _, t := range s.tasks.list() {
		if t.StaffID != member.ID || t.ClientName != req.ClientName {
			continue
		}
		ref := t.UpdatedAt
		if ref.IsZero() {
			ref = t.CreatedAt
		}
		if ref.Before(start) || ref.After(end) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// GenerateMonthlyReport snapshots the selected tasks into a new, persisted report. Later
// task edits do not change it.
func (s *Store) GenerateMonthlyReport(ctx context.Context, req models.ReportRequest) (models.MonthlyReport, error) {
	tasks, err := s.ReportTasks(req)
	if err != nil {
		s.recordFailure(models.KindReports, "generate", err)
		return models.MonthlyReport{}, err
	}
	start, end := MonthBounds(req.Year, req.Month, s.loc)
	snaps := make([]models.ReportTaskSnapshot, 0, len(tasks))
	for _, t := range tasks {
		snaps = append(snaps, models.ReportTaskSnapshot{
			ProjectName:    t.ProjectName,
			Overview:       t.Overview,
			Achievements:   t.Achievements,
			Results:        t.Results,
			Technologies:   append([]string{}, t.Technologies...),
			CompletionRate: t.CompletionRate,
		})
	}
	return s.AddReport(ctx, models.MonthlyReport{
		ClientName:    strings.TrimSpace(req.ClientName),
		StaffName:     strings.TrimSpace(req.StaffName),
		Year:          req.Year,
		Month:         req.Month,
		StartDate:     start,
		EndDate:       end,
		Tasks:         snaps,
		Comments:      req.Comments,
		Issues:        req.Issues,
		NextMonthPlan: req.NextMonthPlan,
		UpcomingTasks: req.UpcomingTasks,
		ImageURL:      req.ImageURL,
	})
}

// AddReport persists a report built elsewhere. A zero period is derived from year and
// month; a zero generatedAt is set to now.
func (s *Store) AddReport(ctx context.Context, draft models.MonthlyReport) (models.MonthlyReport, error) {
	now := s.now().UTC()
	r := draft
	if r.StartDate.IsZero() && r.Month >= 1 && r.Month <= 12 {
		r.StartDate, r.EndDate = MonthBounds(r.Year, r.Month, s.loc)
	}
	r = normalizeReport(r)
	r.ID = s.newID()
	r.CreatedAt, r.UpdatedAt = now, now
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = now
	}
	if err := validateReport(r); err != nil {
		s.recordFailure(models.KindReports, "add", err)
		return models.MonthlyReport{}, err
	}
	if err := addEntity(ctx, s, s.reports, r); err != nil {
		return models.MonthlyReport{}, err
	}
	return r, nil
}

// UpdateReport changes the commentary of a report. The task snapshot and period are fixed.
func (s *Store) UpdateReport(ctx context.Context, id string, patch models.ReportPatch) (models.MonthlyReport, error) {
	return updateEntity(ctx, s, s.reports, id, func(cur models.MonthlyReport) (models.MonthlyReport, error) {
		next := normalizeReport(patch.Apply(cur))
		next.UpdatedAt = s.now().UTC()
		return next, nil
	})
}

// DeleteReport removes the report with id.
func (s *Store) DeleteReport(ctx context.Context, id string) error {
	return deleteEntity(ctx, s, s.reports, id)
}

func validateReportRequest(req models.ReportRequest) error {
	if err := required("clientName", req.ClientName); err != nil {
		return err
	}
	if err := required("staffName", req.StaffName); err != nil {
		return err
	}
	if req.Year < 1 {
		return store.Invalid("year", "must be positive")
	}
	if req.Month < 1 || req.Month > 12 {
		return store.Invalid("month", "must be between 1 and 12, got %d", req.Month)
	}
	return nil
}

func normalizeReport(r models.MonthlyReport) models.MonthlyReport {
	r.StartDate = utc(r.StartDate)
	r.EndDate = utc(r.EndDate)
	r.GeneratedAt = utc(r.GeneratedAt)
	if r.Tasks == nil {
		r.Tasks = []models.ReportTaskSnapshot{}
	}
	for i := range r.Tasks {
		if r.Tasks[i].Technologies == nil {
			r.Tasks[i].Technologies = []string{}
		}
	}
	if r.UpcomingTasks == nil {
		r.UpcomingTasks = []models.UpcomingTaskEntry{}
	}
	if r.ImageURL != nil && *r.ImageURL == "" {
		r.ImageURL = nil
	}
	return r
}
