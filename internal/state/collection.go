package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kshoda-lgtm/vexum-management/internal/otel"
	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// collection is one kind's in-memory items. writeMu serializes writers for the whole
// build-persist-apply cycle; mu guards reads of items and raw.
type collection[T models.Entity] struct {
	kind    models.Kind
	writeMu sync.Mutex

	mu      sync.RWMutex
	items   []T
	raw     json.RawMessage // encoding of items as last applied
	version uint64
	// sent holds encodings around recent local writes, oldest first; see apply.
	sent []json.RawMessage
}

// maxUnechoed bounds the local write history kept for matching push echoes.
const maxUnechoed = 32

type origin int

const (
	fromLoad origin = iota
	fromLocal
	fromPush
)

type anyCollection interface {
	lockWrite()
	unlockWrite()
	applyRaw(raw json.RawMessage, from origin) (bool, error)
	currentRaw() json.RawMessage
	currentVersion() uint64
	size() int
}

func newCollection[T models.Entity](kind models.Kind) *collection[T] {
	return &collection[T]{kind: kind, items: []T{}, raw: json.RawMessage("[]")}
}

func (c *collection[T]) lockWrite()   { c.writeMu.Lock() }
func (c *collection[T]) unlockWrite() { c.writeMu.Unlock() }

// list returns a deep copy of the items.
func (c *collection[T]) list() []T {
	c.mu.RLock()
	raw := c.raw
	c.mu.RUnlock()
	out := []T{}
	if err := json.Unmarshal(raw, &out); err != nil {
		// raw was produced by json.Marshal of []T.
		panic(fmt.Sprintf("state: corrupt %s encoding: %v", c.kind, err))
	}
	return out
}

func (c *collection[T]) get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if it.EntityID() == id {
			return cloneJSON(it), true
		}
	}
	var zero T
	return zero, false
}

func (c *collection[T]) currentRaw() json.RawMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.raw
}

func (c *collection[T]) currentVersion() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

func (c *collection[T]) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// apply swaps items in and reports whether anything changed. Callers hold writeMu.
//
// Pushed snapshots are full-state and may lag behind local writes: the echo of write N, or
// an unrelated push built before it, can arrive after write N+1 was applied. Local writes
// record the state they replaced and the state they produced in sent; a push equal to any
// of those except the newest is stale and dropped.
func (c *collection[T]) apply(items []T, raw json.RawMessage, from origin) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch from {
	case fromLoad:
		c.sent = nil
	case fromLocal:
		if n := len(c.sent); n == 0 || !bytes.Equal(c.sent[n-1], c.raw) {
			c.sent = append(c.sent, c.raw)
		}
		c.sent = append(c.sent, raw)
		if len(c.sent) > maxUnechoed {
			c.sent = c.sent[len(c.sent)-maxUnechoed:]
		}
	case fromPush:
		for i, sent := range c.sent {
			if !bytes.Equal(sent, raw) {
				continue
			}
			if i < len(c.sent)-1 {
				c.sent = c.sent[i+1:]
				return false
			}
			c.sent = c.sent[i:]
			break
		}
	}
	if bytes.Equal(raw, c.raw) {
		return false
	}
	c.items = items
	c.raw = raw
	c.version++
	return true
}

// applyRaw decodes raw and applies it. The re-encoding canonicalizes key order and
// whitespace so backends that rewrite JSON (postgres jsonb) still compare equal.
func (c *collection[T]) applyRaw(raw json.RawMessage, from origin) (bool, error) {
	items := []T{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return false, fmt.Errorf("decode %s: %w", c.kind, err)
		}
	}
	canon, err := json.Marshal(items)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", c.kind, err)
	}
	return c.apply(items, canon, from), nil
}

func cloneJSON[T any](v T) T {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func indexOf[T models.Entity](items []T, id string) int {
	for i, it := range items {
		if it.EntityID() == id {
			return i
		}
	}
	return -1
}

// mutate runs one serialized write: build the next collection from the latest applied
// items, persist it, then apply it. Nothing changes in memory when build or save fails.
func mutate[T models.Entity](ctx context.Context, s *Store, c *collection[T], op string, build func(items []T) ([]T, error)) error {
	if err := s.blocked(c.kind, op); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	// The write ahead of this one in the queue may have hit the quota.
	if err := s.blocked(c.kind, op); err != nil {
		return err
	}

	next, err := build(c.list())
	if err != nil {
		s.recordFailure(c.kind, op, err)
		return err
	}
	if next == nil {
		next = []T{}
	}
	raw, err := json.Marshal(next)
	if err != nil {
		err = &store.PersistenceError{Op: op, Kind: c.kind, Err: err}
		s.recordFailure(c.kind, op, err)
		return err
	}

	start := time.Now()
	err = s.adapter.SaveCollection(ctx, c.kind, raw)
	otel.RecordBackendWrite(ctx, string(c.kind), time.Since(start), err == nil)
	if err != nil {
		err = classify(op, c.kind, err)
		if isQuota(err) {
			s.enterQuotaMode(c.kind, err)
		}
		s.recordFailure(c.kind, op, err)
		return err
	}

	changed := c.apply(next, raw, fromLocal)
	s.recordSuccess(c.kind, op)
	if changed {
		s.notify()
	}
	return nil
}

func addEntity[T models.Entity](ctx context.Context, s *Store, c *collection[T], item T) error {
	return mutate(ctx, s, c, "add", func(items []T) ([]T, error) {
		if indexOf(items, item.EntityID()) >= 0 {
			return nil, store.Invalid("id", "%s %q already exists", c.kind, item.EntityID())
		}
		return append(items, item), nil
	})
}

// updateEntity applies change to the item with id. change sees the latest applied value.
func updateEntity[T models.Entity](ctx context.Context, s *Store, c *collection[T], id string, change func(T) (T, error)) (T, error) {
	var updated T
	err := mutate(ctx, s, c, "update", func(items []T) ([]T, error) {
		i := indexOf(items, id)
		if i < 0 {
			return nil, &store.NotFoundError{Kind: c.kind, ID: id}
		}
		u, err := change(items[i])
		if err != nil {
			return nil, err
		}
		items[i] = u
		updated = u
		return items, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return updated, nil
}

// deleteEntity removes id. A missing id returns *store.NotFoundError without writing,
// so deleting twice never touches the rest of the collection.
func deleteEntity[T models.Entity](ctx context.Context, s *Store, c *collection[T], id string) error {
	return mutate(ctx, s, c, "delete", func(items []T) ([]T, error) {
		i := indexOf(items, id)
		if i < 0 {
			return nil, &store.NotFoundError{Kind: c.kind, ID: id}
		}
		return append(items[:i], items[i+1:]...), nil
	})
}

// replaceEntities decodes a whole collection, validates every item and writes it.
func replaceEntities[T models.Entity](ctx context.Context, s *Store, c *collection[T], raw json.RawMessage, validate func(T) error) error {
	items, err := decodeItems(c.kind, raw, validate)
	if err != nil {
		s.recordFailure(c.kind, "replace", err)
		return err
	}
	return mutate(ctx, s, c, "replace", func([]T) ([]T, error) { return items, nil })
}

func decodeItems[T models.Entity](kind models.Kind, raw json.RawMessage, validate func(T) error) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, store.Invalid(string(kind), "must be a JSON array")
	}
	items := []T{}
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, store.Invalid(string(kind), "%v", err)
	}
	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		id := it.EntityID()
		if id == "" {
			return nil, store.Invalid(fmt.Sprintf("%s[%d].id", kind, i), "required")
		}
		if _, dup := seen[id]; dup {
			return nil, store.Invalid(fmt.Sprintf("%s[%d].id", kind, i), "duplicate id %q", id)
		}
		seen[id] = struct{}{}
		if err := validate(it); err != nil {
			return nil, prefixField(fmt.Sprintf("%s[%d]", kind, i), err)
		}
	}
	return items, nil
}

func prefixField(prefix string, err error) error {
	var ve *store.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	field := prefix
	if ve.Field != "" {
		field += "." + ve.Field
	}
	return &store.ValidationError{Field: field, Reason: ve.Reason}
}

func isQuota(err error) bool {
	var qe *store.QuotaExceededError
	return errors.As(err, &qe) && !qe.Blocked
}

// NewID returns a time-ordered unique id.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

type watcher struct {
	ch   chan models.Snapshot
	done chan struct{}
	once sync.Once
}

func newWatcher(fn func(models.Snapshot)) *watcher {
	w := &watcher{ch: make(chan models.Snapshot, 1), done: make(chan struct{})}
	go func() {
		defer close(w.done)
		for snap := range w.ch {
			fn(snap)
		}
	}()
	return w
}

// offer replaces any undelivered snapshot with snap. Callers hold Store.watchMu.
func (w *watcher) offer(snap models.Snapshot) {
	select {
	case w.ch <- snap:
		return
	default:
	}
	select {
	case <-w.ch:
	default:
	}
	select {
	case w.ch <- snap:
	default:
	}
}

func (w *watcher) stop() {
	w.once.Do(func() {
		close(w.ch)
		<-w.done
	})
}
