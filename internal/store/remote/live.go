package remote

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kshoda-lgtm/vexum-management/pkg/client"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

const (
	minBackoff = 250 * time.Millisecond
	maxBackoff = 10 * time.Second
)

// LiveStore is Store plus push delivery from the remote /stream feed.
type LiveStore struct {
	*Store
	// stream has no timeout; a snapshot stream stays open for the life of the subscription.
	stream *client.Client
}

// NewLive returns a LiveStore for baseURL.
func NewLive(baseURL, apiKey string) (*LiveStore, error) {
	s, err := New(baseURL, apiKey)
	if err != nil {
		return nil, err
	}
	return &LiveStore{Store: s, stream: client.New(s.Client.BaseURL, apiKey, client.WithTimeout(0))}, nil
}

// Subscribe delivers the current snapshot, then every snapshot the remote publishes.
// After a dropped stream it reconnects with backoff and reloads, so a change made while
// disconnected is still delivered.
func (l *LiveStore) Subscribe(ctx context.Context, onChange func(models.Snapshot)) (func(), error) {
	initial, err := l.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		onChange(initial)
		backoff := minBackoff
		for {
			connected := false
			err := l.stream.Stream(subCtx, func(ev models.StreamEvent) {
				connected = true
				backoff = minBackoff
				if ev.Type != "snapshot" || ev.Snapshot == nil {
					return
				}
				snap := *ev.Snapshot
				snap.Normalize()
				onChange(snap)
			})
			if subCtx.Err() != nil {
				return
			}
			slog.Warn("remote stream lost; reconnecting", "url", l.Client.BaseURL, "err", err, "backoff", backoff)
			select {
			case <-subCtx.Done():
				return
			case <-time.After(backoff):
			}
			if !connected && backoff < maxBackoff {
				backoff *= 2
			}
			snap, err := l.LoadAll(subCtx)
			if err != nil {
				continue
			}
			onChange(snap)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}
