package timetable

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(e *echo.Echo, method, target string, body []byte, contentType string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_List(t *testing.T) {
	c, _, _ := setup(t,
		entry("1", "Monday", "Mathematics", "09:00", "10:00"),
		entry("2", "Monday", "Physics", "11:00", "12:00"),
		entry("3", "Tuesday", "Mathematics", "09:00", "10:00"),
	)
	h := NewHandler(c, 1)
	e := echo.New()

	ctx, rec := newRequest(e, http.MethodGet, "/api/timetable?subject=math&page=2", nil, "")
	require.NoError(t, h.List(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)

	var view View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 2, view.Page)
	assert.Equal(t, 2, view.TotalPages)
	require.Len(t, view.Entries, 1)
	assert.Equal(t, "Tuesday", view.Entries[0].Day)
	assert.Contains(t, rec.Body.String(), `"startTime":"09:00"`)
}

func TestHandler_UploadCSV(t *testing.T) {
	c, _, _ := setup(t, entry("old", "Friday", "Latin", "08:00", "09:00"))
	h := NewHandler(c, 10)
	e := echo.New()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "timetable.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Subject,Day,StartTime,EndTime,Professor,Location\nMathematics,Monday,09:00,10:30,Dr. Johnson,Room 101\n"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("replace", "true"))
	require.NoError(t, mw.Close())

	ctx, rec := newRequest(e, http.MethodPost, "/api/admin/timetable/upload", body.Bytes(), mw.FormDataContentType())
	require.NoError(t, h.Upload(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"outcome":"succeeded"}`, rec.Body.String())

	got, err := c.Fetch(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Mathematics", got[0].Subject)
	assert.Equal(t, "Room 101", got[0].Location)
}

func TestHandler_UploadJSONValidation(t *testing.T) {
	c, _, _ := setup(t)
	h := NewHandler(c, 10)
	e := echo.New()

	body := []byte(`{"replace":false,"entries":[{"day":"Someday","subject":"Art","startTime":"10:00","endTime":"11:00"}]}`)
	ctx, rec := newRequest(e, http.MethodPost, "/api/admin/timetable/upload", body, echo.MIMEApplicationJSON)
	require.NoError(t, h.Upload(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"failed_step":"validate"`)
}

func TestHandler_Export(t *testing.T) {
	c, _, _ := setup(t, Entry{ID: "1", ClassID: "CS1", Day: "Monday", Subject: "Intro", StartTime: "09:00", EndTime: "10:00", Professor: "P", Location: "R"})
	h := NewHandler(c, 10)
	e := echo.New()

	ctx, rec := newRequest(e, http.MethodGet, "/api/admin/timetable/export", nil, "")
	require.NoError(t, h.Export(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get(echo.HeaderContentType))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Equal(t, []string{"Course Code,Course Name,Day,Start Time,End Time,Professor,Room", "CS1,Intro,Monday,09:00,10:00,P,R"}, lines)
}

func TestHandler_SyncAndLastSync(t *testing.T) {
	c, _, _ := setup(t)
	h := NewHandler(c, 10)
	e := echo.New()

	ctx, rec := newRequest(e, http.MethodGet, "/api/timetable/sync", nil, "")
	require.NoError(t, h.LastSync(ctx))
	assert.JSONEq(t, `{"last_sync":null}`, rec.Body.String())

	ctx, rec = newRequest(e, http.MethodPost, "/api/admin/timetable/sync", nil, "")
	require.NoError(t, h.Sync(ctx))
	assert.JSONEq(t, `{"synced_at":"2024-09-02T08:00:00Z"}`, rec.Body.String())

	ctx, rec = newRequest(e, http.MethodGet, "/api/timetable/sync", nil, "")
	require.NoError(t, h.LastSync(ctx))
	assert.JSONEq(t, `{"last_sync":"2024-09-02T08:00:00Z"}`, rec.Body.String())
}
