// Package state is the application state store: the in-memory source of truth for every
// collection. Each mutation is written through a store.Adapter and applied in memory only
// after the backend confirms it. Writes to one collection are serialized so each write is
// built from the result of the previous one.
package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/otel"
	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// Options configures a Store. Zero values use the defaults.
type Options struct {
	Now      func() time.Time // clock; default time.Now
	NewID    func() string    // id generator; default time-ordered UUIDs
	Location *time.Location   // calendar for report periods and due dates; default time.Local
}

// Store holds the collections and mediates every mutation through the adapter.
// Construct one per process with New and pass it to every consumer.
type Store struct {
	adapter store.Adapter
	now     func() time.Time
	newID   func() string
	loc     *time.Location

	staff    *collection[models.Staff]
	tasks    *collection[models.Task]
	meetings *collection[models.Meeting]
	reports  *collection[models.MonthlyReport]
	shifts   *collection[models.Shift]
	memos    *collection[models.Memo]

	quota atomic.Bool

	statusMu  sync.RWMutex
	lastErr   string
	lastErrAt time.Time
	lastKind  models.Kind

	watchMu  sync.Mutex
	watchers map[int]*watcher
	nextW    int

	promoMu   sync.Mutex
	promoting map[string]struct{}

	subMu       sync.Mutex
	unsubscribe func()
	subCtx      context.Context
	subCancel   context.CancelFunc
}

// New returns a Store writing through adapter. Call Load before serving reads.
func New(adapter store.Adapter, opts Options) *Store {
	s := &Store{
		adapter:   adapter,
		now:       opts.Now,
		newID:     opts.NewID,
		loc:       opts.Location,
		staff:     newCollection[models.Staff](models.KindStaff),
		tasks:     newCollection[models.Task](models.KindTasks),
		meetings:  newCollection[models.Meeting](models.KindMeetings),
		reports:   newCollection[models.MonthlyReport](models.KindReports),
		shifts:    newCollection[models.Shift](models.KindShifts),
		memos:     newCollection[models.Memo](models.KindMemos),
		watchers:  make(map[int]*watcher),
		promoting: make(map[string]struct{}),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = NewID
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	s.subCtx, s.subCancel = context.WithCancel(context.Background())
	return s
}

// Location returns the time zone calendar-day rules are evaluated in.
func (s *Store) Location() *time.Location { return s.loc }

// Adapter returns the adapter the store writes through.
func (s *Store) Adapter() store.Adapter { return s.adapter }

// Load replaces every collection with the backend's current snapshot. When the adapter
// pushes changes, Load also subscribes; pushed snapshots replace collections wholesale.
func (s *Store) Load(ctx context.Context) error {
	snap, err := s.adapter.LoadAll(ctx)
	if err != nil {
		err = classify("load", "", err)
		s.recordFailure("", "load", err)
		return err
	}
	s.applySnapshot(snap, false)
	s.clearError()

	sub, ok := s.adapter.(store.Subscriber)
	if !ok {
		return nil
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.unsubscribe != nil {
		return nil
	}
	unsub, err := sub.Subscribe(s.subCtx, func(snap models.Snapshot) {
		s.applySnapshot(snap, true)
	})
	if err != nil {
		err = classify("subscribe", "", err)
		s.recordFailure("", "subscribe", err)
		return err
	}
	s.unsubscribe = unsub
	return nil
}

// Close stops the push subscription, stops watchers and closes the adapter.
func (s *Store) Close() error {
	s.subMu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.subMu.Unlock()
	s.subCancel()
	if unsub != nil {
		unsub()
	}
	s.watchMu.Lock()
	ws := s.watchers
	s.watchers = make(map[int]*watcher)
	s.watchMu.Unlock()
	for _, w := range ws {
		w.stop()
	}
	return s.adapter.Close()
}

// Snapshot returns a copy of every collection as last successfully applied.
func (s *Store) Snapshot() models.Snapshot {
	snap := models.Snapshot{
		Staff:    s.staff.list(),
		Tasks:    s.tasks.list(),
		Meetings: s.meetings.list(),
		Reports:  s.reports.list(),
		Shifts:   s.shifts.list(),
		Memos:    s.memos.list(),
	}
	snap.Normalize()
	return snap
}

// Status returns the last error, the quota flag and per-collection versions.
func (s *Store) Status() models.SyncStatus {
	st := models.SyncStatus{
		QuotaExceeded: s.quota.Load(),
		Versions:      make(map[models.Kind]uint64, len(models.Kinds)),
		Counts:        make(map[models.Kind]int, len(models.Kinds)),
	}
	for kind, c := range s.collections() {
		st.Versions[kind] = c.currentVersion()
		st.Counts[kind] = c.size()
	}
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	if s.lastErr != "" {
		at := s.lastErrAt
		st.LastError = s.lastErr
		st.LastErrorAt = &at
		st.LastErrorKind = s.lastKind
	}
	return st
}

// QuotaExceeded reports whether the store is in quota-exceeded mode.
func (s *Store) QuotaExceeded() bool { return s.quota.Load() }

// ClearQuota leaves quota-exceeded mode once the backend limit has been lifted externally.
func (s *Store) ClearQuota() {
	if s.quota.CompareAndSwap(true, false) {
		slog.Info("quota-exceeded mode cleared; backend writes resumed")
		otel.SetQuotaExceeded(false)
		s.clearError()
	}
}

// Watch registers fn to receive a snapshot after every applied change, local or pushed.
// Delivery is asynchronous and coalesced: a slow watcher sees the latest snapshot, not
// every intermediate one. The returned func stops delivery.
func (s *Store) Watch(fn func(models.Snapshot)) (cancel func()) {
	w := newWatcher(fn)
	s.watchMu.Lock()
	id := s.nextW
	s.nextW++
	s.watchers[id] = w
	s.watchMu.Unlock()
	return func() {
		s.watchMu.Lock()
		_, ok := s.watchers[id]
		delete(s.watchers, id)
		s.watchMu.Unlock()
		if ok {
			w.stop()
		}
	}
}

// notify snapshots under watchMu so offers reach watchers in snapshot order.
func (s *Store) notify() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	snap := s.Snapshot()
	for _, w := range s.watchers {
		w.offer(snap)
	}
}

func (s *Store) applySnapshot(snap models.Snapshot, pushed bool) {
	snap.Normalize()
	changed := false
	for _, kind := range models.Kinds {
		raw, err := snap.Raw(kind)
		if err != nil {
			slog.Warn("snapshot encode failed", "kind", kind, "err", err)
			continue
		}
		c := s.collections()[kind]
		c.lockWrite()
		from := fromLoad
		if pushed {
			from = fromPush
		}
		ok, err := c.applyRaw(raw, from)
		c.unlockWrite()
		if err != nil {
			slog.Warn("snapshot apply failed", "kind", kind, "err", err)
			continue
		}
		changed = changed || ok
	}
	if pushed {
		otel.RecordPushSnapshot(context.Background(), changed)
	}
	if changed {
		s.notify()
	}
}

func (s *Store) collections() map[models.Kind]anyCollection {
	return map[models.Kind]anyCollection{
		models.KindStaff:    s.staff,
		models.KindTasks:    s.tasks,
		models.KindMeetings: s.meetings,
		models.KindReports:  s.reports,
		models.KindShifts:   s.shifts,
		models.KindMemos:    s.memos,
	}
}

func (s *Store) recordFailure(kind models.Kind, op string, err error) {
	otel.RecordMutation(context.Background(), string(kind), op, outcomeOf(err))
	if errors.Is(err, store.ErrPersistence) || errors.Is(err, store.ErrQuotaExceeded) {
		slog.Warn("mutation failed", "kind", kind, "op", op, "err", err)
	}
	s.statusMu.Lock()
	s.lastErr = err.Error()
	s.lastErrAt = s.now().UTC()
	s.lastKind = kind
	s.statusMu.Unlock()
}

func (s *Store) recordSuccess(kind models.Kind, op string) {
	otel.RecordMutation(context.Background(), string(kind), op, "ok")
	if !s.quota.Load() {
		s.clearError()
	}
}

func (s *Store) clearError() {
	s.statusMu.Lock()
	s.lastErr = ""
	s.lastErrAt = time.Time{}
	s.lastKind = ""
	s.statusMu.Unlock()
}

// blocked returns the blocked-write error while quota mode is on.
func (s *Store) blocked(kind models.Kind, op string) error {
	if !s.quota.Load() {
		return nil
	}
	err := &store.QuotaExceededError{Kind: kind, Blocked: true}
	s.recordFailure(kind, op, err)
	return err
}

func (s *Store) enterQuotaMode(kind models.Kind, err error) {
	if s.quota.CompareAndSwap(false, true) {
		slog.Error("backend quota exceeded; blocking writes, only local state is current", "kind", kind, "err", err)
		otel.SetQuotaExceeded(true)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

// classify makes sure every adapter failure surfaces as one of the typed errors.
func classify(op string, kind models.Kind, err error) error {
	var (
		pe *store.PersistenceError
		qe *store.QuotaExceededError
		ne *store.NotFoundError
		ve *store.ValidationError
	)
	switch {
	case errors.As(err, &pe), errors.As(err, &qe), errors.As(err, &ne), errors.As(err, &ve):
		return err
	default:
		// Unclassified adapter errors (including context cancellation) are retryable.
		return &store.PersistenceError{Op: op, Kind: kind, Transient: true, Err: err}
	}
}
