// Package storetest provides an in-memory store.Adapter with fault and latency injection.
package storetest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// Fake is an in-memory request/response adapter. It is safe for concurrent use.
type Fake struct {
	mu       sync.Mutex
	cols     map[models.Kind]json.RawMessage
	saves    map[models.Kind]int
	failNext error
	quota    bool
	loadErr  error
	before   func(kind models.Kind)
	closed   bool

	subMu  sync.Mutex
	subs   map[int]chan models.Snapshot
	nextID int
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		cols:  make(map[models.Kind]json.RawMessage),
		saves: make(map[models.Kind]int),
		subs:  make(map[int]chan models.Snapshot),
	}
}

// Seed replaces the stored data with snap without notifying subscribers.
func (f *Fake) Seed(snap models.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range models.Kinds {
		raw, _ := snap.Raw(k)
		f.cols[k] = raw
	}
}

// FailNext makes the next SaveCollection return err.
func (f *Fake) FailNext(err error) {
	f.mu.Lock()
	f.failNext = err
	f.mu.Unlock()
}

// FailLoad makes LoadAll return err until cleared with nil.
func (f *Fake) FailLoad(err error) {
	f.mu.Lock()
	f.loadErr = err
	f.mu.Unlock()
}

// SetQuotaExceeded makes every SaveCollection fail with a quota error while on is true.
func (f *Fake) SetQuotaExceeded(on bool) {
	f.mu.Lock()
	f.quota = on
	f.mu.Unlock()
}

// BeforeSave installs a hook run at the start of every SaveCollection, outside the lock.
// Tests use it to hold writes in flight.
func (f *Fake) BeforeSave(hook func(kind models.Kind)) {
	f.mu.Lock()
	f.before = hook
	f.mu.Unlock()
}

// Saves returns how many successful writes hit kind.
func (f *Fake) Saves(kind models.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves[kind]
}

// Collection returns the stored JSON array for kind.
func (f *Fake) Collection(kind models.Kind) json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append(json.RawMessage(nil), f.cols[kind]...)
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) LoadAll(ctx context.Context) (models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.Snapshot{}, &store.PersistenceError{Op: "load", Transient: true, Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return models.Snapshot{}, f.loadErr
	}
	return f.snapshotLocked()
}

func (f *Fake) SaveCollection(ctx context.Context, kind models.Kind, items json.RawMessage) error {
	f.mu.Lock()
	hook := f.before
	f.mu.Unlock()
	if hook != nil {
		hook(kind)
	}
	if err := ctx.Err(); err != nil {
		return &store.PersistenceError{Op: "save", Kind: kind, Transient: true, Err: err}
	}

	f.mu.Lock()
	if f.quota {
		f.mu.Unlock()
		return &store.QuotaExceededError{Kind: kind}
	}
	if err := f.failNext; err != nil {
		f.failNext = nil
		f.mu.Unlock()
		return err
	}
	f.cols[kind] = append(json.RawMessage(nil), items...)
	f.saves[kind]++
	snap, err := f.snapshotLocked()
	f.mu.Unlock()
	if err != nil {
		return &store.PersistenceError{Op: "save", Kind: kind, Err: err}
	}
	f.broadcast(snap)
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.subMu.Lock()
	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
	f.subMu.Unlock()
	return nil
}

func (f *Fake) snapshotLocked() (models.Snapshot, error) {
	return models.SnapshotFromCollections(f.cols)
}

func (f *Fake) broadcast(snap models.Snapshot) {
	f.subMu.Lock()
	defer f.subMu.Unlock()
	for _, ch := range f.subs {
		ch <- snap
	}
}

// Live wraps a Fake and adds push delivery: every write, and every Push, reaches all
// subscribers asynchronously and in order.
type Live struct {
	*Fake
}

// NewLive returns an empty Live fake.
func NewLive() *Live {
	return &Live{Fake: New()}
}

// Push stores snap as if another client had written it and notifies subscribers.
func (l *Live) Push(snap models.Snapshot) {
	l.Seed(snap)
	l.mu.Lock()
	current, _ := l.snapshotLocked()
	l.mu.Unlock()
	l.broadcast(current)
}

// Subscribers returns the number of active subscriptions.
func (l *Live) Subscribers() int {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	return len(l.subs)
}

func (l *Live) Subscribe(ctx context.Context, onChange func(models.Snapshot)) (func(), error) {
	initial, err := l.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	ch := make(chan models.Snapshot, 256)
	ch <- initial

	l.subMu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	l.subMu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range ch {
			onChange(snap)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.subMu.Lock()
			if c, ok := l.subs[id]; ok {
				delete(l.subs, id)
				close(c)
			}
			l.subMu.Unlock()
			<-done
		})
	}, nil
}
