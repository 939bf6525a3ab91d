package state

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// Shifts returns every shift ordered by date and start time.
func (s *Store) Shifts() []models.Shift {
	out := s.shifts.list()
	sortShifts(out)
	return out
}

// ShiftsBetween returns shifts whose date falls in [from, to], ordered by date.
func (s *Store) ShiftsBetween(from, to time.Time) []models.Shift {
	lo, hi := dayOf(from, s.loc), dayOf(to, s.loc)
	var out []models.Shift
	for _, sh := range s.shifts.list() {
		d := dayOf(sh.Date, s.loc)
		if d.Before(lo) || d.After(hi) {
			continue
		}
		out = append(out, sh)
	}
	sortShifts(out)
	return out
}

// GetShift returns the shift with id.
func (s *Store) GetShift(id string) (models.Shift, bool) { return s.shifts.get(id) }

// AddShift persists one shift.
func (s *Store) AddShift(ctx context.Context, draft models.Shift) (models.Shift, error) {
	out, err := s.AddShifts(ctx, draft, []time.Time{draft.Date})
	if err != nil {
		return models.Shift{}, err
	}
	return out[0], nil
}

// AddShifts copies template onto every date and persists them in a single write. Either
// all shifts are stored or none.
func (s *Store) AddShifts(ctx context.Context, template models.Shift, dates []time.Time) ([]models.Shift, error) {
	if len(dates) == 0 {
		err := store.Invalid("dates", "at least one date is required")
		s.recordFailure(models.KindShifts, "add", err)
		return nil, err
	}
	now := s.now().UTC()
	created := make([]models.Shift, 0, len(dates))
	for _, d := range dates {
		sh := template
		sh.Date = d
		sh = normalizeShift(sh)
		sh.ID = s.newID()
		sh.CreatedAt, sh.UpdatedAt = now, now
		if err := validateShift(sh); err != nil {
			s.recordFailure(models.KindShifts, "add", err)
			return nil, err
		}
		created = append(created, sh)
	}
	err := mutate(ctx, s, s.shifts, "add", func(items []models.Shift) ([]models.Shift, error) {
		return append(items, created...), nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateShift merges patch into the shift with id.
func (s *Store) UpdateShift(ctx context.Context, id string, patch models.ShiftPatch) (models.Shift, error) {
	return updateEntity(ctx, s, s.shifts, id, func(cur models.Shift) (models.Shift, error) {
		next := normalizeShift(patch.Apply(cur))
		next.UpdatedAt = s.now().UTC()
		if err := validateShift(next); err != nil {
			return models.Shift{}, err
		}
		return next, nil
	})
}

// DeleteShift removes the shift with id.
func (s *Store) DeleteShift(ctx context.Context, id string) error {
	return deleteEntity(ctx, s, s.shifts, id)
}

func normalizeShift(sh models.Shift) models.Shift {
	sh.ClientName = strings.TrimSpace(sh.ClientName)
	sh.StaffID = strings.TrimSpace(sh.StaffID)
	sh.StartTime = strings.TrimSpace(sh.StartTime)
	sh.EndTime = strings.TrimSpace(sh.EndTime)
	sh.Date = utc(sh.Date)
	return sh
}

func sortShifts(out []models.Shift) {
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
}
