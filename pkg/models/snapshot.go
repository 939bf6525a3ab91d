package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Snapshot is a point-in-time copy of every collection. It is also the export document.
type Snapshot struct {
	Staff    []Staff         `json:"staff"`
	Tasks    []Task          `json:"tasks"`
	Meetings []Meeting       `json:"meetings"`
	Reports  []MonthlyReport `json:"reports"`
	Shifts   []Shift         `json:"shifts"`
	Memos    []Memo          `json:"memos"`
}

// Normalize replaces nil collections with empty ones so they encode as [] rather than null.
func (s *Snapshot) Normalize() {
	if s.Staff == nil {
		s.Staff = []Staff{}
	}
	if s.Tasks == nil {
		s.Tasks = []Task{}
	}
	if s.Meetings == nil {
		s.Meetings = []Meeting{}
	}
	if s.Reports == nil {
		s.Reports = []MonthlyReport{}
	}
	if s.Shifts == nil {
		s.Shifts = []Shift{}
	}
	if s.Memos == nil {
		s.Memos = []Memo{}
	}
}

// Len returns the number of items in the collection of the given kind.
func (s Snapshot) Len(kind Kind) int {
	switch kind {
	case KindStaff:
		return len(s.Staff)
	case KindTasks:
		return len(s.Tasks)
	case KindMeetings:
		return len(s.Meetings)
	case KindReports:
		return len(s.Reports)
	case KindShifts:
		return len(s.Shifts)
	case KindMemos:
		return len(s.Memos)
	}
	return 0
}

// Raw encodes the collection of the given kind as a JSON array.
func (s Snapshot) Raw(kind Kind) (json.RawMessage, error) {
	s.Normalize()
	var v any
	switch kind {
	case KindStaff:
		v = s.Staff
	case KindTasks:
		v = s.Tasks
	case KindMeetings:
		v = s.Meetings
	case KindReports:
		v = s.Reports
	case KindShifts:
		v = s.Shifts
	case KindMemos:
		v = s.Memos
	default:
		return nil, fmt.Errorf("unknown collection kind %q", kind)
	}
	return json.Marshal(v)
}

// SetRaw decodes a JSON array into the collection of the given kind. Empty or null input
// yields an empty collection.
func (s *Snapshot) SetRaw(kind Kind, raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("[]")
	}
	var err error
	switch kind {
	case KindStaff:
		s.Staff = nil
		err = json.Unmarshal(trimmed, &s.Staff)
	case KindTasks:
		s.Tasks = nil
		err = json.Unmarshal(trimmed, &s.Tasks)
	case KindMeetings:
		s.Meetings = nil
		err = json.Unmarshal(trimmed, &s.Meetings)
	case KindReports:
		s.Reports = nil
		err = json.Unmarshal(trimmed, &s.Reports)
	case KindShifts:
		s.Shifts = nil
		err = json.Unmarshal(trimmed, &s.Shifts)
	case KindMemos:
		s.Memos = nil
		err = json.Unmarshal(trimmed, &s.Memos)
	default:
		return fmt.Errorf("unknown collection kind %q", kind)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	s.Normalize()
	return nil
}

// SnapshotFromCollections builds a Snapshot from per-kind JSON arrays. Kinds absent from
// the map default to empty collections.
func SnapshotFromCollections(cols map[Kind]json.RawMessage) (Snapshot, error) {
	var s Snapshot
	for kind, raw := range cols {
		if err := s.SetRaw(kind, raw); err != nil {
			return Snapshot{}, err
		}
	}
	s.Normalize()
	return s, nil
}
