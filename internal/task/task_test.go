package task

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"StudySync/internal/apperr"
	"StudySync/internal/auth"
	"StudySync/internal/clock"
)

type completedRecorder struct {
	titles []string
}

func (r *completedRecorder) SendTaskCompleted(ctx context.Context, userID, taskID, title string) error {
	r.titles = append(r.titles, userID+":"+title)
	return nil
}

var t0 = time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *completedRecorder) {
	t.Helper()
	rec := &completedRecorder{}
	return NewService(NewMemoryRepository(nil), rec, clock.NewFake(t0), apperr.NewValidator(), zap.NewNop()), rec
}

func TestService_CreateAndList(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "u1", Request{Title: "Essay", Category: "reading", Deadline: t0.Add(48 * time.Hour)})
	require.NoError(t, err)
	_, err = s.Create(ctx, "u1", Request{Title: "Midterm", Category: "Exam", Deadline: t0.Add(24 * time.Hour)})
	require.NoError(t, err)
	_, err = s.Create(ctx, "u2", Request{Title: "Other", Category: "personal", Deadline: t0})
	require.NoError(t, err)

	tasks, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Midterm", tasks[0].Title)
	assert.Equal(t, "exam", tasks[0].Category)
	assert.Equal(t, t0, tasks[0].CreatedAt)
}

func TestService_Validation(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	var verr *apperr.ValidationError

	_, err := s.Create(ctx, "u1", Request{Title: "", Category: "exam", Deadline: t0})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "title", verr.Fields[0].Field)

	_, err = s.Create(ctx, "u1", Request{Title: "Gym", Category: "sport", Deadline: t0})
	assert.True(t, errors.As(err, &verr))

	_, err = s.Create(ctx, "u1", Request{Title: "Gym", Category: "personal"})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "deadline", verr.Fields[0].Field)
}

func TestService_CompletionNotifiesOnce(t *testing.T) {
	s, rec := setup(t)
	ctx := context.Background()
	created, err := s.Create(ctx, "u1", Request{Title: "Lab report", Category: "assignment", Deadline: t0})
	require.NoError(t, err)

	_, err = s.SetCompleted(ctx, "u1", created.ID, true)
	require.NoError(t, err)
	_, err = s.Update(ctx, "u1", created.ID, Request{Title: "Lab report", Category: "assignment", Deadline: t0, Completed: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"u1:Lab report"}, rec.titles)
}

func TestService_OwnerOnly(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	created, err := s.Create(ctx, "u1", Request{Title: "Mine", Category: "project", Deadline: t0})
	require.NoError(t, err)

	_, err = s.SetCompleted(ctx, "u2", created.ID, true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "u2", created.ID), apperr.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "u1", created.ID))
	tasks, err := s.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestHandler_CreateRequiresClaims(t *testing.T) {
	s, _ := setup(t)
	h := NewHandler(s)
	e := echo.New()

	body := []byte(`{"title":"Read ch.3","category":"reading","deadline":"2024-09-03T10:00:00Z"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.Set(auth.ContextKey, &auth.JWTClaims{UserID: "u1"})
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var got Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "u1", got.UserID)
	assert.Contains(t, rec.Body.String(), `"createdAt"`)
}
