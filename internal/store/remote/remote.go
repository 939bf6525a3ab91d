// Package remote implements store.Adapter against another vexum instance's HTTP API.
// Store is request/response only; LiveStore also follows the /stream SSE feed.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/store"
	"github.com/kshoda-lgtm/vexum-management/pkg/client"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// DefaultTimeout bounds each request/response call. The stream is not bounded.
const DefaultTimeout = 30 * time.Second

var (
	_ store.Adapter    = (*Store)(nil)
	_ store.Adapter    = (*LiveStore)(nil)
	_ store.Subscriber = (*LiveStore)(nil)
)

// Store is the request/response adapter.
type Store struct {
	Client *client.Client
}

// New returns a Store for baseURL. apiKey may be empty.
func New(baseURL, apiKey string) (*Store, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("remote backend: url is required")
	}
	return &Store{Client: client.New(baseURL, apiKey, client.WithTimeout(DefaultTimeout))}, nil
}

func (s *Store) LoadAll(ctx context.Context) (models.Snapshot, error) {
	snap, err := s.Client.LoadAll(ctx)
	if err != nil {
		return models.Snapshot{}, classify("load", "", err)
	}
	return snap, nil
}

func (s *Store) SaveCollection(ctx context.Context, kind models.Kind, items json.RawMessage) error {
	if err := s.Client.SaveCollection(ctx, kind, items); err != nil {
		return classify("save", kind, err)
	}
	return nil
}

// Close is a no-op; the HTTP client holds no per-store resources.
func (s *Store) Close() error { return nil }

// classify maps HTTP failures onto the store error types.
func classify(op string, kind models.Kind, err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		// Transport failure: connection refused, timeout, reset.
		return &store.PersistenceError{Op: op, Kind: kind, Transient: true, Err: err}
	}
	switch apiErr.StatusCode {
	case http.StatusTooManyRequests, http.StatusInsufficientStorage, http.StatusPaymentRequired:
		return &store.QuotaExceededError{Kind: kind, Err: err}
	case http.StatusNotFound:
		return &store.PersistenceError{Op: op, Kind: kind, Err: fmt.Errorf("%w: %w", store.ErrNotFound, err)}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &store.ValidationError{Field: string(kind), Reason: apiErr.Message}
	}
	return &store.PersistenceError{Op: op, Kind: kind, Transient: apiErr.Retryable(), Err: err}
}
