package pkg

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"StudySync/internal/config"
)

func testSettings() *config.Settings {
	return &config.Settings{
		AppEnv:            "test",
		LogLevel:          "error",
		HTTPAddr:          "127.0.0.1:0",
		StoreDriver:       config.DriverMemory,
		SyncStore:         "memory",
		JWTKey:            "test-key",
		JWTTTL:            time.Hour,
		RBACPolicy:        "../../rbac_policy.csv",
		CORSOrigins:       []string{"http://localhost:5173"},
		AdminEmail:        "admin@studysync.test",
		AdminPassword:     "admin-password",
		TimetableCacheTTL: 5 * time.Minute,
		TimetablePageSize: 10,
		PollInterval:      time.Minute,
		NotifyDedup:       true,
		EmailProvider:     "none",
	}
}

type client struct {
	t *testing.T
	e *echo.Echo
}

func (c client) do(method, path, token string, body interface{}, out interface{}) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c.e.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (c client) login(email, password string) (string, string) {
	c.t.Helper()
	var res struct {
		Token string `json:"token"`
		State string `json:"state"`
	}
	code := c.do(http.MethodPost, "/login", "", map[string]string{"email": email, "password": password}, &res)
	require.Equal(c.t, http.StatusOK, code)
	return res.Token, res.State
}

func TestApplication(t *testing.T) {
	var e *echo.Echo
	app := fxtest.New(t, fx.NopLogger, Modules(testSettings()), fx.Populate(&e))
	app.RequireStart()
	defer app.RequireStop()

	c := client{t: t, e: e}

	code := c.do(http.MethodPost, "/register", "", map[string]string{"name": "Ana", "email": "ana@example.com", "password": "password123"}, nil)
	require.Equal(t, http.StatusCreated, code)
	code = c.do(http.MethodPost, "/register", "", map[string]string{"name": "Eve", "email": "eve@example.com", "password": "password123", "role": "admin"}, nil)
	assert.Equal(t, http.StatusForbidden, code)

	student, state := c.login("ana@example.com", "password123")
	assert.Equal(t, "pending", state)

	var gate map[string]string
	assert.Equal(t, http.StatusForbidden, c.do(http.MethodGet, "/api/tasks", student, nil, &gate))
	assert.Equal(t, "pending", gate["state"])
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/profile", student, nil, nil))

	admin, state := c.login("admin@studysync.test", "admin-password")
	assert.Equal(t, "approved", state)

	var pending []struct {
		ID string `json:"id"`
	}
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/admin/users/pending", admin, nil, &pending))
	require.Len(t, pending, 1)
	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/api/admin/users/"+pending[0].ID+"/approve", admin, nil, nil))

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/tasks", student, nil, nil))
	assert.Equal(t, http.StatusForbidden, c.do(http.MethodGet, "/api/admin/users/pending", student, nil, nil))

	var verr struct {
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	}
	code = c.do(http.MethodPost, "/api/tasks", student, map[string]string{"category": "exam"}, &verr)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, verr.Fields)

	code = c.do(http.MethodPost, "/api/admin/notices", admin, map[string]interface{}{"title": "Exam week", "content": "Library open 24h", "is_active": true}, nil)
	require.Equal(t, http.StatusCreated, code)

	var notes []struct {
		Title string `json:"title"`
		Type  string `json:"type"`
	}
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/notifications", student, nil, &notes))
	titles := make([]string, 0, len(notes))
	for _, n := range notes {
		titles = append(titles, n.Title)
	}
	assert.Contains(t, titles, "NOTICE: Exam week")
	assert.Contains(t, titles, "Welcome to StudySync!")

	var notices []map[string]interface{}
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/notices", student, nil, &notices))
	assert.Len(t, notices, 1)

	code = c.do(http.MethodPost, "/api/admin/timetable", admin, map[string]string{"day": "monday", "subject": "Physics", "startTime": "09:00", "endTime": "10:00"}, nil)
	require.Equal(t, http.StatusCreated, code)
	var view struct {
		Total int `json:"total"`
	}
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/timetable?day=Monday", student, nil, &view))
	assert.Equal(t, 1, view.Total)
}
