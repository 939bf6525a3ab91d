package state

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// Meetings returns every meeting.
func (s *Store) Meetings() []models.Meeting { return s.meetings.list() }

// GetMeeting returns the meeting with id.
func (s *Store) GetMeeting(id string) (models.Meeting, bool) { return s.meetings.get(id) }

// AddMeeting persists draft, then promotes every decision flagged isTaskCreated without a
// task into a new Task and records the link. The returned meeting carries the links.
func (s *Store) AddMeeting(ctx context.Context, draft models.Meeting) (models.Meeting, error) {
	now := s.now().UTC()
	m := s.normalizeMeeting(draft)
	m.ID = s.newID()
	m.CreatedAt, m.UpdatedAt = now, now
	if err := validateMeeting(m); err != nil {
		s.recordFailure(models.KindMeetings, "add", err)
		return models.Meeting{}, err
	}
	if err := addEntity(ctx, s, s.meetings, m); err != nil {
		return models.Meeting{}, err
	}
	return s.promoteDecisions(ctx, m)
}

// UpdateMeeting merges patch into the meeting with id and promotes newly flagged decisions.
func (s *Store) UpdateMeeting(ctx context.Context, id string, patch models.MeetingPatch) (models.Meeting, error) {
	m, err := updateEntity(ctx, s, s.meetings, id, func(cur models.Meeting) (models.Meeting, error) {
		next := s.normalizeMeeting(patch.Apply(cur))
		next.UpdatedAt = s.now().UTC()
		if err := validateMeeting(next); err != nil {
			return models.Meeting{}, err
		}
		return next, nil
	})
	if err != nil {
		return models.Meeting{}, err
	}
	return s.promoteDecisions(ctx, m)
}

// DeleteMeeting removes the meeting with id. Tasks promoted from it keep their
// createdFromMeetingId.
func (s *Store) DeleteMeeting(ctx context.Context, id string) error {
	return deleteEntity(ctx, s, s.meetings, id)
}

// promoteDecisions creates one task per pending decision of m and links them. Each
// decision is keyed by meeting and decision id: a decision already being promoted by a
// concurrent save is skipped, and a task already created for it is reused.
func (s *Store) promoteDecisions(ctx context.Context, m models.Meeting) (models.Meeting, error) {
	links := make(map[string]string)
	for _, d := range m.Decisions {
		if !d.PendingPromotion() {
			continue
		}
		key := m.ID + "/" + d.ID
		if !s.claimPromotion(key) {
			continue
		}
		taskID, err := s.promoteDecision(ctx, m, d)
		s.releasePromotion(key)
		if err != nil {
			return m, fmt.Errorf("promote decision %s of meeting %s: %w", d.ID, m.ID, err)
		}
		links[d.ID] = taskID
	}
	if len(links) == 0 {
		return m, nil
	}

	return updateEntity(ctx, s, s.meetings, m.ID, func(cur models.Meeting) (models.Meeting, error) {
		for i, d := range cur.Decisions {
			taskID, ok := links[d.ID]
			if !ok || d.TaskID != nil {
				continue
			}
			cur.Decisions[i].TaskID = &taskID
			cur.Decisions[i].IsTaskCreated = true
		}
		cur.UpdatedAt = s.now().UTC()
		return cur, nil
	})
}

func (s *Store) promoteDecision(ctx context.Context, m models.Meeting, d models.Decision) (string, error) {
	if t, ok := s.promotedTask(m.ID, d.ID); ok {
		slog.Debug("decision already promoted; reusing task", "meeting", m.ID, "decision", d.ID, "task", t.ID)
		return t.ID, nil
	}
	deadline := s.now()
	if m.NextMeetingDate != nil {
		deadline = *m.NextMeetingDate
	}
	var staffID string
	if len(m.StaffIDs) > 0 {
		staffID = m.StaffIDs[0]
	}
	meetingID, decisionID := m.ID, d.ID
	t, err := s.AddTask(ctx, models.Task{
		TaskName:              d.Content,
		ProjectName:           m.Title,
		ClientName:            m.ClientName,
		StaffID:               staffID,
		Deadline:              deadline,
		Status:                models.TaskNotStarted,
		Overview:              fmt.Sprintf("Decided in meeting %q", m.Title),
		CreatedFromMeetingID:  &meetingID,
		CreatedFromDecisionID: &decisionID,
	})
	if err != nil {
		return "", err
	}
	slog.Info("decision promoted to task", "meeting", m.ID, "decision", d.ID, "task", t.ID)
	return t.ID, nil
}

func (s *Store) promotedTask(meetingID, decisionID string) (models.Task, bool) {
	for _, t := range s.tasks.list() {
		if t.CreatedFromMeetingID != nil && *t.CreatedFromMeetingID == meetingID &&
			t.CreatedFromDecisionID != nil && *t.CreatedFromDecisionID == decisionID {
			return t, true
		}
	}
	return models.Task{}, false
}

func (s *Store) claimPromotion(key string) bool {
	s.promoMu.Lock()
	defer s.promoMu.Unlock()
	if _, busy := s.promoting[key]; busy {
		return false
	}
	s.promoting[key] = struct{}{}
	return true
}

func (s *Store) releasePromotion(key string) {
	s.promoMu.Lock()
	delete(s.promoting, key)
	s.promoMu.Unlock()
}

func (s *Store) normalizeMeeting(m models.Meeting) models.Meeting {
	m.Title = strings.TrimSpace(m.Title)
	m.Date = utc(m.Date)
	m.NextMeetingDate = utcPtr(m.NextMeetingDate)
	if m.StaffIDs == nil {
		m.StaffIDs = []string{}
	}
	if m.Participants == nil {
		m.Participants = []string{}
	}
	decisions := make([]models.Decision, len(m.Decisions))
	for i, d := range m.Decisions {
		if d.ID == "" {
			d.ID = s.newID()
		}
		d.Content = strings.TrimSpace(d.Content)
		if d.TaskID != nil {
			d.IsTaskCreated = true
		}
		decisions[i] = d
	}
	m.Decisions = decisions
	return m
}
