package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/otel"
	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// Export returns every collection as an indented JSON document suitable for Import.
func (s *Store) Export() ([]byte, error) {
	return json.MarshalIndent(s.Snapshot(), "", "  ")
}

// ParseExport decodes and validates an export document and returns the kinds it
// carries, in models.Kinds order. The staff, tasks, meetings and reports keys must be
// present and hold arrays; shifts and memos are optional.
func ParseExport(doc []byte) (models.Snapshot, []models.Kind, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil || top == nil {
		return models.Snapshot{}, nil, store.Invalid("document", "not a JSON object")
	}
	for _, kind := range models.RequiredImportKinds {
		raw, ok := top[string(kind)]
		if !ok {
			return models.Snapshot{}, nil, store.Invalid(string(kind), "missing")
		}
		if !isArray(raw) {
			return models.Snapshot{}, nil, store.Invalid(string(kind), "must be an array")
		}
	}

	var (
		snap    models.Snapshot
		present []models.Kind
	)
	for _, kind := range models.Kinds {
		raw, ok := top[string(kind)]
		if !ok {
			continue
		}
		if !isArray(raw) && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return models.Snapshot{}, nil, store.Invalid(string(kind), "must be an array")
		}
		if err := validateRaw(kind, raw); err != nil {
			return models.Snapshot{}, nil, err
		}
		if err := snap.SetRaw(kind, raw); err != nil {
			return models.Snapshot{}, nil, store.Invalid(string(kind), "%v", err)
		}
		present = append(present, kind)
	}
	snap.Normalize()
	return snap, present, nil
}

// Import replaces every collection the document carries with its contents. Optional
// collections the document omits keep their current items. The document is fully
// validated first; an invalid document changes nothing. Adapters that implement
// store.BatchSaver apply the collections atomically.
func (s *Store) Import(ctx context.Context, doc []byte) error {
	snap, kinds, err := ParseExport(doc)
	if err != nil {
		s.recordFailure("", "import", err)
		return err
	}
	if err := s.blocked("", "import"); err != nil {
		return err
	}

	cols := make(map[models.Kind]json.RawMessage, len(kinds))
	for _, kind := range kinds {
		raw, err := snap.Raw(kind)
		if err != nil {
			return &store.PersistenceError{Op: "import", Kind: kind, Err: err}
		}
		cols[kind] = raw
	}

	all := s.collections()
	for _, kind := range kinds {
		all[kind].lockWrite()
	}
	defer func() {
		for _, kind := range kinds {
			all[kind].unlockWrite()
		}
	}()
	// A write queued ahead of this one may have switched quota mode on.
	if err := s.blocked("", "import"); err != nil {
		return err
	}

	changed := false
	apply := func(kind models.Kind) {
		ok, err := all[kind].applyRaw(cols[kind], fromLocal)
		if err != nil {
			slog.Warn("import apply failed", "kind", kind, "err", err)
		}
		changed = changed || ok
	}
	defer func() {
		if changed {
			s.notify()
		}
	}()

	start := time.Now()
	if batch, ok := s.adapter.(store.BatchSaver); ok {
		err := batch.SaveAll(ctx, cols)
		otel.RecordBackendWrite(ctx, "all", time.Since(start), err == nil)
		if err != nil {
			return s.failWrite("", "import", err)
		}
		for _, kind := range kinds {
			apply(kind)
		}
	} else {
		// Without a batch write, collections saved before a failure stay applied so memory
		// matches the backend.
		for _, kind := range kinds {
			err := s.adapter.SaveCollection(ctx, kind, cols[kind])
			otel.RecordBackendWrite(ctx, string(kind), time.Since(start), err == nil)
			if err != nil {
				return s.failWrite(kind, "import", err)
			}
			apply(kind)
		}
	}
	s.recordSuccess("", "import")
	slog.Info("import applied", "staff", len(snap.Staff), "tasks", len(snap.Tasks),
		"meetings", len(snap.Meetings), "reports", len(snap.Reports))
	return nil
}

// ReplaceCollection validates items (a JSON array of kind) and writes it as the whole
// collection. Used by peers pushing a collection through the HTTP and gRPC servers.
func (s *Store) ReplaceCollection(ctx context.Context, kind models.Kind, items json.RawMessage) error {
	switch kind {
	case models.KindStaff:
		return replaceEntities(ctx, s, s.staff, items, validateStaff)
	case models.KindTasks:
		return replaceEntities(ctx, s, s.tasks, items, validateTask)
	case models.KindMeetings:
		return replaceEntities(ctx, s, s.meetings, items, validateMeeting)
	case models.KindReports:
		return replaceEntities(ctx, s, s.reports, items, validateReport)
	case models.KindShifts:
		return replaceEntities(ctx, s, s.shifts, items, validateShift)
	case models.KindMemos:
		return replaceEntities(ctx, s, s.memos, items, validateMemo)
	}
	return store.Invalid("kind", "unknown collection %q", kind)
}

// Collection returns the JSON encoding of one collection as last applied.
func (s *Store) Collection(kind models.Kind) (json.RawMessage, error) {
	c, ok := s.collections()[kind]
	if !ok {
		return nil, store.Invalid("kind", "unknown collection %q", kind)
	}
	return append(json.RawMessage(nil), c.currentRaw()...), nil
}

func (s *Store) failWrite(kind models.Kind, op string, err error) error {
	err = classify(op, kind, err)
	if isQuota(err) {
		s.enterQuotaMode(kind, err)
	}
	s.recordFailure(kind, op, err)
	return err
}

func validateRaw(kind models.Kind, raw json.RawMessage) error {
	var err error
	switch kind {
	case models.KindStaff:
		_, err = decodeItems(kind, orEmpty(raw), validateStaff)
	case models.KindTasks:
		_, err = decodeItems(kind, orEmpty(raw), validateTask)
	case models.KindMeetings:
		_, err = decodeItems(kind, orEmpty(raw), validateMeeting)
	case models.KindReports:
		_, err = decodeItems(kind, orEmpty(raw), validateReport)
	case models.KindShifts:
		_, err = decodeItems(kind, orEmpty(raw), validateShift)
	case models.KindMemos:
		_, err = decodeItems(kind, orEmpty(raw), validateMemo)
	default:
		err = fmt.Errorf("unknown collection %q", kind)
	}
	return err
}

func isArray(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '['
}

func orEmpty(raw json.RawMessage) json.RawMessage {
	if isArray(raw) {
		return raw
	}
	return json.RawMessage("[]")
}

// AdviseBackup recommends a backup when none was taken or the last one is older than
// models.BackupRecommendAfterDays. size is the export document size in bytes.
func AdviseBackup(last *time.Time, now time.Time, size int) models.BackupStatus {
	a := models.BackupStatus{
		LastBackup:  last,
		SizeBytes:   size,
		BudgetBytes: models.BackupBudgetBytes,
		OverBudget:  size > models.BackupBudgetBytes,
	}
	a.UsedPercentage = float64(size) / float64(models.BackupBudgetBytes) * 100
	if last == nil {
		a.Recommended = true
		return a
	}
	a.DaysSince = int(now.Sub(*last).Hours() / 24)
	a.Recommended = a.DaysSince >= models.BackupRecommendAfterDays
	return a
}
