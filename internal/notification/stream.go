package notification

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"StudySync/internal/realtime"
)

const streamKeepAlive = 30 * time.Second

// StreamHandler pushes a user's new notifications to the browser as server-sent events.
type StreamHandler struct {
	subscriber realtime.Subscriber
	logger     *zap.Logger
	keepAlive  time.Duration
}

func NewStreamHandler(subscriber realtime.Subscriber, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{subscriber: subscriber, logger: logger, keepAlive: streamKeepAlive}
}

func writeEvent(w io.Writer, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: notification\ndata: %s\n\n", data)
	return err
}

// Stream holds the connection open until the client goes away.
func (h *StreamHandler) Stream(c echo.Context) error {
	uid, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	ctx := c.Request().Context()
	sub, err := h.subscriber.Subscribe(ctx, Collection, realtime.Filter{
		Events: []realtime.EventType{realtime.Insert},
		Match:  map[string]interface{}{"user_id": uid},
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := io.WriteString(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			n, err := realtime.Decode[Notification](ev.New)
			if err != nil {
				h.logger.Warn("Failed to decode notification event", zap.String("user", uid), zap.Error(err))
				continue
			}
			if err := writeEvent(res, n); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
