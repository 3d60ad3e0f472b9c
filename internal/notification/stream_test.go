package notification

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"StudySync/internal/auth"
	"StudySync/internal/realtime"
)

func TestWriteEvent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeEvent(&buf, Notification{ID: "n1", Title: "NOTICE: Exam week", Type: TypeNotice}))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "event: notification\ndata: {"))
	assert.Contains(t, out, `"title":"NOTICE: Exam week"`)
	assert.True(t, strings.HasSuffix(out, "\n\n"))
}

func TestStream_DeliversOwnInserts(t *testing.T) {
	broker := realtime.NewBroker()
	h := NewStreamHandler(broker, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/notifications/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.Set(auth.ContextKey, &auth.JWTClaims{UserID: "u1"})

	done := make(chan error, 1)
	go func() { done <- h.Stream(c) }()

	for i := 0; i < 20; i++ {
		broker.Publish(Collection, realtime.Insert, Notification{ID: "other", UserID: "u2", Title: "Not mine"}, nil)
		broker.Publish(Collection, realtime.Insert, Notification{ID: "mine", UserID: "u1", Title: "Mine"}, nil)
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	require.NoError(t, <-done)

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, body, `"title":"Mine"`)
	assert.NotContains(t, body, "Not mine")
}
