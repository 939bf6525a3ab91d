package state

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// Tasks returns every task.
func (s *Store) Tasks() []models.Task { return s.tasks.list() }

// GetTask returns the task with id.
func (s *Store) GetTask(id string) (models.Task, bool) { return s.tasks.get(id) }

// TaskFilter narrows ListTasks. Empty fields match everything.
type TaskFilter struct {
	StaffID    string
	ClientName string
	Status     models.TaskStatus
}

// ListTasks returns tasks matching f ordered by deadline.
func (s *Store) ListTasks(f TaskFilter) []models.Task {
	var out []models.Task
	for _, t := range s.tasks.list() {
		if f.StaffID != "" && t.StaffID != f.StaffID {
			continue
		}
		if f.ClientName != "" && t.ClientName != f.ClientName {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out
}

// DueSoon returns unfinished tasks whose deadline falls on the calendar day
// models.DueSoonDays after today.
func (s *Store) DueSoon() []models.Task {
	now := s.now().In(s.loc)
	target := dayOf(now.AddDate(0, 0, models.DueSoonDays), s.loc)
	var out []models.Task
	for _, t := range s.tasks.list() {
		if t.Status == models.TaskCompleted {
			continue
		}
		if dayOf(t.Deadline, s.loc).Equal(target) {
			out = append(out, t)
		}
	}
	return out
}

// Overdue returns unfinished tasks whose deadline has passed, oldest first.
func (s *Store) Overdue() []models.Task {
	now := s.now()
	var out []models.Task
	for _, t := range s.tasks.list() {
		if t.Overdue(now) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out
}

// TaskCounts returns the number of tasks per status.
func (s *Store) TaskCounts() map[models.TaskStatus]int {
	counts := map[models.TaskStatus]int{
		models.TaskNotStarted: 0,
		models.TaskInProgress: 0,
		models.TaskCompleted:  0,
		models.TaskDelayed:    0,
	}
	for _, t := range s.tasks.list() {
		counts[t.Status]++
	}
	return counts
}

// AddTask assigns an id and timestamps to draft and persists it. An empty status
// defaults to not_started.
func (s *Store) AddTask(ctx context.Context, draft models.Task) (models.Task, error) {
	now := s.now().UTC()
	t := normalizeTask(draft)
	t.ID = s.newID()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Status == "" {
		t.Status = models.TaskNotStarted
	}
	if err := validateTask(t); err != nil {
		s.recordFailure(models.KindTasks, "add", err)
		return models.Task{}, err
	}
	if err := addEntity(ctx, s, s.tasks, t); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// UpdateTask merges patch into the task with id. Concurrent updates to different tasks
// are serialized, so neither is lost.
func (s *Store) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	return updateEntity(ctx, s, s.tasks, id, func(cur models.Task) (models.Task, error) {
		next := normalizeTask(patch.Apply(cur))
		next.UpdatedAt = s.now().UTC()
		if err := validateTask(next); err != nil {
			return models.Task{}, err
		}
		return next, nil
	})
}

// DeleteTask removes the task with id.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return deleteEntity(ctx, s, s.tasks, id)
}

func normalizeTask(t models.Task) models.Task {
	t.TaskName = strings.TrimSpace(t.TaskName)
	t.StartDate = utcPtr(t.StartDate)
	t.Deadline = utc(t.Deadline)
	if t.Technologies == nil {
		t.Technologies = []string{}
	}
	return t
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
