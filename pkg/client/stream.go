package client

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// maxEventBytes bounds one SSE data line; snapshots of a busy office can exceed the
// bufio.Scanner default of 64 KiB.
const maxEventBytes = 16 << 20

// Stream connects to /stream and calls fn for every event until ctx is canceled or the
// connection drops. The returned error is nil only when ctx ended the stream.
func (c *Client) Stream(ctx context.Context, fn func(models.StreamEvent)) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp, http.MethodGet, "/stream")
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64<<10), maxEventBytes)
	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				var ev models.StreamEvent
				if err := json.Unmarshal([]byte(data.String()), &ev); err == nil {
					fn(ev)
				}
				data.Reset()
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return &APIError{Method: http.MethodGet, Path: "/stream", StatusCode: resp.StatusCode, Message: "stream closed by server"}
}
