// Package client is the Go SDK for the Vexum HTTP API. The CLI talks to a running
// daemon through it and the remote store backend builds on it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

const userAgent = "vexum-client"

// maxErrorBody caps how much of a failed response is read into APIError.Message.
const maxErrorBody = 64 << 10

// Client calls the Vexum HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string // e.g. "http://127.0.0.1:3548", no trailing slash
	APIKey     string // sent as X-API-Key when set
	HTTPClient *http.Client
}

// Option customizes a Client built by New.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithTimeout bounds every request, streams included. Use zero for no bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTPClient = &http.Client{Timeout: d} }
}

// New returns a client for baseURL. apiKey may be empty.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{BaseURL: strings.TrimRight(baseURL, "/"), APIKey: apiKey}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string // the server's {"error": ...} text, or the raw body
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports whether the same request may succeed later.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		r = bytes.NewReader(b)
	case json.RawMessage:
		r = bytes.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return req, nil
}

// send performs the request and returns the response only when it is 2xx; the caller
// owns its body.
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer func() { _ = resp.Body.Close() }()
		return nil, readAPIError(resp, method, path)
	}
	return resp, nil
}

// call sends body and decodes the reply into out, which may be nil.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func readAPIError(resp *http.Response, method, path string) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: msg}
}

// Health reports whether the server answers /health with ok.
func (c *Client) Health(ctx context.Context) (bool, error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err := c.call(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// LoadAll fetches every collection.
func (c *Client) LoadAll(ctx context.Context) (models.Snapshot, error) {
	var snap models.Snapshot
	if err := c.call(ctx, http.MethodGet, "/data", nil, &snap); err != nil {
		return models.Snapshot{}, err
	}
	snap.Normalize()
	return snap, nil
}

// SaveCollection replaces one collection; items must be a JSON array.
func (c *Client) SaveCollection(ctx context.Context, kind models.Kind, items json.RawMessage) error {
	return c.call(ctx, http.MethodPut, "/data/"+url.PathEscape(string(kind)), items, nil)
}

func (c *Client) Status(ctx context.Context) (models.SyncStatus, error) {
	var st models.SyncStatus
	err := c.call(ctx, http.MethodGet, "/status", nil, &st)
	return st, err
}

// ClearQuota takes the server out of quota-exceeded mode.
func (c *Client) ClearQuota(ctx context.Context) error {
	return c.call(ctx, http.MethodDelete, "/status/quota", nil, nil)
}

// Export downloads the export document. The server records it as the latest backup.
func (c *Client) Export(ctx context.Context) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, "/export", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

// Import replaces every collection doc names with its contents.
func (c *Client) Import(ctx context.Context, doc []byte) error {
	return c.call(ctx, http.MethodPost, "/import", doc, nil)
}

func (c *Client) Backup(ctx context.Context) (models.BackupStatus, error) {
	var b models.BackupStatus
	err := c.call(ctx, http.MethodGet, "/backup", nil, &b)
	return b, err
}
