package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sumire/todoshare/internal/changefeed"
)

const keepAliveInterval = 25 * time.Second

// EventsHandler streams change events to the caller over server-sent events.
type EventsHandler struct {
	feed   changefeed.Subscriber
	logger *zap.Logger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(feed changefeed.Subscriber, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{feed: feed, logger: logger}
}

// Stream subscribes to the tables named in ?tables= (todos and notifications
// when absent) and writes every event the caller may see. Session events for
// the caller are always included. The stream ends when the access token
// expires or the caller signs out.
func (h *EventsHandler) Stream(c echo.Context) error {
	id, err := mustIdentity(c)
	if err != nil {
		return err
	}

	tables, err := parseTables(c.QueryParam("tables"))
	if err != nil {
		return err
	}

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
	}

	ctx := c.Request().Context()
	events, err := h.feed.Subscribe(ctx, tables...)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	fmt.Fprint(res, ": connected\n\n")
	flusher.Flush()

	expiry := time.NewTimer(time.Until(tokenExpiry(c)))
	defer expiry.Stop()
	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	log := h.logger.With(zap.String("user_id", id.ID))
	log.Debug("event stream opened", zap.Any("tables", tables))
	defer log.Debug("event stream closed")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-expiry.C:
			return writeEvent(res, flusher, changefeed.SessionEvent(changefeed.EventExpired, id.ID))
		case <-keepAlive.C:
			if _, err := fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
				return nil
			}
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if !event.VisibleTo(id.ID) {
				continue
			}
			if err := writeEvent(res, flusher, event); err != nil {
				log.Debug("write event", zap.Error(err))
				return nil
			}
			if event.Table == changefeed.TableSessions && event.Type == changefeed.EventSignedOut {
				return nil
			}
		}
	}
}

func writeEvent(res *echo.Response, flusher http.Flusher, event changefeed.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event.Table, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func parseTables(raw string) ([]changefeed.Table, error) {
	tables := []changefeed.Table{changefeed.TableSessions}
	if strings.TrimSpace(raw) == "" {
		return append(tables, changefeed.TableTodos, changefeed.TableNotifications), nil
	}

	for _, name := range strings.Split(raw, ",") {
		t, err := changefeed.ParseTable(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		if t != changefeed.TableSessions {
			tables = append(tables, t)
		}
	}
	return tables, nil
}
