package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/otel"
)

const (
	sseBuffer       = 64
	sseRetryMillis  = 3000
	defaultKeepLive = 30 * time.Second
)

// Event is one message of the /stream feed. IDs increase by one per published event.
type Event struct {
	ID   uint64
	Data []byte
}

// Subscription receives events in publish order. Dropped counts events discarded
// because the subscriber fell behind.
type Subscription struct {
	C       chan Event
	dropped uint64
}

// Dropped returns how many events this subscriber lost to a full buffer.
func (s *Subscription) Dropped() uint64 { return s.dropped }

// SSEHub fans JSON events out to /stream subscribers. Subscribing and publishing are
// serialized, so a subscriber never receives an event built before its initial one.
type SSEHub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
	seq  uint64

	// Initial, if set, builds the first event each new subscriber receives.
	Initial func() any
	// Keepalive is the comment interval on idle streams; zero means 30s.
	Keepalive time.Duration
}

func NewSSEHub() *SSEHub {
	return &SSEHub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber. Its first event is Initial's, when set.
func (h *SSEHub) Subscribe() *Subscription {
	sub := &Subscription{C: make(chan Event, sseBuffer)}
	h.mu.Lock()
	if h.Initial != nil {
		if b, err := json.Marshal(h.Initial()); err == nil {
			sub.C <- Event{ID: h.seq, Data: b}
		}
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	otel.SSEConnected(1)
	return sub
}

// Unsubscribe removes sub and closes its channel. Repeated calls are no-ops.
func (h *SSEHub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.C)
	otel.SSEConnected(-1)
	if sub.dropped > 0 {
		slog.Debug("sse subscriber fell behind", "dropped", sub.dropped)
	}
}

// Close disconnects every subscriber.
func (h *SSEHub) Close() {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()
	for _, sub := range subs {
		h.Unsubscribe(sub)
	}
}

// Subscribers returns the number of connected subscribers.
func (h *SSEHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *SSEHub) PublishJSON(v any) {
	h.PublishFunc(func() any { return v })
}

// PublishFunc builds the event under the hub lock and sends it to every subscriber. A
// subscriber whose buffer is full loses its oldest pending event, never the newest.
func (h *SSEHub) PublishFunc(build func() any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) == 0 {
		return
	}
	b, err := json.Marshal(build())
	if err != nil {
		slog.Warn("sse event not encodable", "err", err)
		return
	}
	h.seq++
	ev := Event{ID: h.seq, Data: b}
	dropped := 0
	for sub := range h.subs {
		select {
		case sub.C <- ev:
			continue
		default:
		}
		select {
		case <-sub.C:
			sub.dropped++
			dropped++
		default:
		}
		select {
		case sub.C <- ev:
		default:
		}
	}
	otel.RecordSSEEvent(context.Background(), dropped)
}

func writeEvent(w io.Writer, ev Event) error {
	var err error
	if ev.ID > 0 {
		_, err = fmt.Fprintf(w, "id: %s\n", strconv.FormatUint(ev.ID, 10))
	}
	if err == nil {
		_, err = fmt.Fprintf(w, "data: %s\n\n", ev.Data)
	}
	return err
}

func (h *SSEHub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		sub := h.Subscribe()
		defer h.Unsubscribe(sub)

		_, _ = fmt.Fprintf(w, "retry: %d\n", sseRetryMillis)
		_ = writeEvent(w, Event{Data: []byte(`{"type":"connected"}`)})
		flusher.Flush()

		interval := h.Keepalive
		if interval <= 0 {
			interval = defaultKeepLive
		}
		keepalive := time.NewTicker(interval)
		defer keepalive.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepalive.C:
				if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if err := writeEvent(w, ev); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
