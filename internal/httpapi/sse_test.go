package httpapi

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSSEHub_Subscribe_Publish_Unsubscribe(t *testing.T) {
	hub := NewSSEHub()
	sub := hub.Subscribe()
	hub.PublishJSON(map[string]string{"type": "test"})
	ev := <-sub.C
	if !strings.Contains(string(ev.Data), "test") || ev.ID != 1 {
		t.Errorf("PublishJSON: got %d %s", ev.ID, ev.Data)
	}
	hub.Unsubscribe(sub)
	if _, ok := <-sub.C; ok {
		t.Error("expected channel closed after Unsubscribe")
	}
	hub.Unsubscribe(sub) // no-op
}

func TestSSEHub_InitialEvent(t *testing.T) {
	hub := NewSSEHub()
	hub.Initial = func() any { return map[string]string{"type": "snapshot"} }
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)
	if ev := <-sub.C; !strings.Contains(string(ev.Data), "snapshot") {
		t.Errorf("initial: got %s", ev.Data)
	}
}

func TestSSEHub_SlowSubscriberKeepsNewest(t *testing.T) {
	hub := NewSSEHub()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)
	for i := 0; i < cap(sub.C)+10; i++ {
		hub.PublishJSON(map[string]int{"n": i})
	}
	var last Event
	for len(sub.C) > 0 {
		last = <-sub.C
	}
	if want := `{"n":73}`; string(last.Data) != want || last.ID != 74 {
		t.Errorf("newest event: got %d %s want 74 %s", last.ID, last.Data, want)
	}
	if sub.Dropped() != 10 {
		t.Errorf("Dropped = %d, want 10", sub.Dropped())
	}
}

func TestSSEHub_Close(t *testing.T) {
	hub := NewSSEHub()
	a, b := hub.Subscribe(), hub.Subscribe()
	hub.Close()
	if hub.Subscribers() != 0 {
		t.Fatalf("Subscribers = %d after Close", hub.Subscribers())
	}
	for _, sub := range []*Subscription{a, b} {
		if _, ok := <-sub.C; ok {
			t.Error("channel should be closed")
		}
	}
}

func TestSSEHub_Handler(t *testing.T) {
	hub := NewSSEHub()
	hub.Keepalive = 10 * time.Millisecond
	handler := hub.Handler()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequestWithContext(ctx, http.MethodGet, "/stream", nil)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		handler(rec, req)
		close(done)
	}()
	for hub.Subscribers() == 0 {
		time.Sleep(time.Millisecond)
	}
	hub.PublishJSON(map[string]string{"type": "snapshot"})
	// Let the handler write the event and at least one keepalive before reading rec.Body.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	var lines []string
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	body := strings.Join(lines, "\n")
	for _, want := range []string{"retry: 3000", `data: {"type":"connected"}`, "id: 1", `data: {"type":"snapshot"}`, ": keepalive"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q:\n%s", want, body)
		}
	}
	if hub.Subscribers() != 0 {
		t.Error("handler should unsubscribe on return")
	}
}
