package state

import (
	"context"
	"strings"

	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// Staff returns every staff member.
func (s *Store) Staff() []models.Staff { return s.staff.list() }

// GetStaff returns the staff member with id.
func (s *Store) GetStaff(id string) (models.Staff, bool) { return s.staff.get(id) }

// StaffByName returns the first staff member whose name matches exactly (ignoring
// surrounding space).
func (s *Store) StaffByName(name string) (models.Staff, bool) {
	name = strings.TrimSpace(name)
	for _, m := range s.staff.list() {
		if strings.TrimSpace(m.Name) == name {
			return m, true
		}
	}
	return models.Staff{}, false
}

// ActiveStaff returns staff whose assignment is ongoing or ends after now.
func (s *Store) ActiveStaff() []models.Staff {
	now := s.now()
	var out []models.Staff
	for _, m := range s.staff.list() {
		if m.Active(now) {
			out = append(out, m)
		}
	}
	return out
}

// AddStaff assigns an id and timestamps to draft, persists it and returns the stored value.
func (s *Store) AddStaff(ctx context.Context, draft models.Staff) (models.Staff, error) {
	now := s.now().UTC()
	m := normalizeStaff(draft)
	m.ID = s.newID()
	m.CreatedAt, m.UpdatedAt = now, now
	if err := validateStaff(m); err != nil {
		s.recordFailure(models.KindStaff, "add", err)
		return models.Staff{}, err
	}
	if err := addEntity(ctx, s, s.staff, m); err != nil {
		return models.Staff{}, err
	}
	return m, nil
}

// UpdateStaff merges patch into the staff member with id. Nested assignmentPeriod and
// contact fields not named by the patch are kept.
func (s *Store) UpdateStaff(ctx context.Context, id string, patch models.StaffPatch) (models.Staff, error) {
	return updateEntity(ctx, s, s.staff, id, func(cur models.Staff) (models.Staff, error) {
		next := normalizeStaff(patch.Apply(cur))
		next.UpdatedAt = s.now().UTC()
		if err := validateStaff(next); err != nil {
			return models.Staff{}, err
		}
		return next, nil
	})
}

// DeleteStaff removes the staff member with id. Tasks that reference it keep the dangling id.
func (s *Store) DeleteStaff(ctx context.Context, id string) error {
	return deleteEntity(ctx, s, s.staff, id)
}

func normalizeStaff(m models.Staff) models.Staff {
	m.Name = strings.TrimSpace(m.Name)
	m.AssignmentPeriod.Start = utc(m.AssignmentPeriod.Start)
	m.AssignmentPeriod.End = utcPtr(m.AssignmentPeriod.End)
	m.DailyReportLastUpdated = utcPtr(m.DailyReportLastUpdated)
	if m.ProfileImage != nil && *m.ProfileImage == "" {
		m.ProfileImage = nil
	}
	return m
}
