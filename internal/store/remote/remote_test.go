package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// backend is a minimal in-memory implementation of the /data contract.
type backend struct {
	mu     sync.Mutex
	cols   map[string]json.RawMessage
	status int
	events chan models.Snapshot
}

func newBackend() *backend {
	return &backend{cols: map[string]json.RawMessage{}, events: make(chan models.Snapshot, 16)}
}

func (b *backend) snapshot() models.Snapshot {
	cols := make(map[models.Kind]json.RawMessage)
	for k, v := range b.cols {
		cols[models.Kind(k)] = v
	}
	snap, _ := models.SnapshotFromCollections(cols)
	return snap
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	status := b.status
	b.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error":"status %d"}`, status)
		return
	}
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/data":
		b.mu.Lock()
		snap := b.snapshot()
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(snap)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/data/"):
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.cols[strings.TrimPrefix(r.URL.Path, "/data/")] = body
		snap := b.snapshot()
		b.mu.Unlock()
		b.events <- snap
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/stream":
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"connected\"}\n\n")
		w.(http.Flusher).Flush()
		for {
			select {
			case <-r.Context().Done():
				return
			case snap := <-b.events:
				data, _ := json.Marshal(models.StreamEvent{Type: "snapshot", Snapshot: &snap})
				fmt.Fprintf(w, "data: %s\n\n", data)
				w.(http.Flusher).Flush()
			}
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestNew_requiresURL(t *testing.T) {
	if _, err := New("  ", ""); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestStore_roundTrip(t *testing.T) {
	srv := httptest.NewServer(newBackend())
	defer srv.Close()

	s, err := New(srv.URL+"/", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	snap, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(snap.Tasks) != 0 || snap.Tasks == nil {
		t.Fatalf("empty backend should load empty collections: %+v", snap)
	}
	if err := s.SaveCollection(ctx, models.KindMemos, json.RawMessage(`[{"id":"m1","content":"call back"}]`)); err != nil {
		t.Fatalf("SaveCollection: %v", err)
	}
	snap, err = s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(snap.Memos) != 1 || snap.Memos[0].Content != "call back" {
		t.Errorf("memos: %+v", snap.Memos)
	}
}

func TestStore_classifiesStatus(t *testing.T) {
	b := newBackend()
	srv := httptest.NewServer(b)
	defer srv.Close()
	s, _ := New(srv.URL, "")
	ctx := context.Background()

	cases := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusInsufficientStorage, func(err error) bool { return errors.Is(err, store.ErrQuotaExceeded) }},
		{http.StatusTooManyRequests, func(err error) bool { return errors.Is(err, store.ErrQuotaExceeded) }},
		{http.StatusUnprocessableEntity, func(err error) bool { return errors.Is(err, store.ErrValidation) }},
		{http.StatusNotFound, func(err error) bool { return errors.Is(err, store.ErrNotFound) }},
		{http.StatusBadGateway, store.IsTransient},
	}
	for _, tc := range cases {
		b.mu.Lock()
		b.status = tc.status
		b.mu.Unlock()
		err := s.SaveCollection(ctx, models.KindTasks, json.RawMessage(`[]`))
		if err == nil || !tc.check(err) {
			t.Errorf("status %d: unexpected error %v", tc.status, err)
		}
	}
}

func TestStore_networkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(newBackend())
	url := srv.URL
	srv.Close()

	s, _ := New(url, "")
	_, err := s.LoadAll(context.Background())
	if !store.IsTransient(err) {
		t.Fatalf("expected transient persistence error, got %v", err)
	}
}

func TestLiveStore_subscribe(t *testing.T) {
	srv := httptest.NewServer(newBackend())
	defer srv.Close()

	l, err := NewLive(srv.URL, "")
	if err != nil {
		t.Fatalf("NewLive: %v", err)
	}
	got := make(chan models.Snapshot, 16)
	unsubscribe, err := l.Subscribe(context.Background(), func(s models.Snapshot) { got <- s })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	select {
	case snap := <-got:
		if len(snap.Staff) != 0 {
			t.Fatalf("initial snapshot: %+v", snap)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no initial snapshot")
	}

	// The stream may still be connecting; writes are buffered by the backend.
	if err := l.SaveCollection(context.Background(), models.KindStaff, json.RawMessage(`[{"id":"s1","name":"Aoi"}]`)); err != nil {
		t.Fatalf("SaveCollection: %v", err)
	}
	deadline := time.After(5 * time.Second)
	for {
		select {
		case snap := <-got:
			if len(snap.Staff) == 1 && snap.Staff[0].Name == "Aoi" {
				return
			}
		case <-deadline:
			t.Fatal("pushed snapshot not delivered")
		}
	}
}

func TestLiveStore_unsubscribeStops(t *testing.T) {
	srv := httptest.NewServer(newBackend())
	defer srv.Close()

	l, _ := NewLive(srv.URL, "")
	unsubscribe, err := l.Subscribe(context.Background(), func(models.Snapshot) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	done := make(chan struct{})
	go func() {
		unsubscribe()
		unsubscribe()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("unsubscribe did not return")
	}
}
