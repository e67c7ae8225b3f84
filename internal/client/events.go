package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sumire/todoshare/internal/changefeed"
)

// Subscribe opens the server's event stream for the given tables. The
// returned channel is closed when the stream ends: ctx is cancelled, the
// server closes it after sign-out or token expiry, or the connection
// drops. Events are delivered in the order the server wrote them.
func (c *Client) Subscribe(ctx context.Context, tables ...changefeed.Table) (<-chan changefeed.Event, error) {
	token := c.accessToken()
	if token == "" {
		return nil, ErrNotSignedIn
	}

	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = string(t)
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/events?tables="+strings.Join(names, ","), token, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open event stream: %w", wrapConnectionError(err))
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseErrorResponse(resp)
	}

	events := make(chan changefeed.Event)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		var data strings.Builder
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, ":"), strings.HasPrefix(line, "event:"):
			case strings.HasPrefix(line, "data:"):
				data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			case line == "":
				if data.Len() == 0 {
					continue
				}
				var event changefeed.Event
				err := json.Unmarshal([]byte(data.String()), &event)
				data.Reset()
				if err != nil {
					continue
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}
