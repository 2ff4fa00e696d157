package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/krishnarajt/second-thought-backend/internal/domain"
	"github.com/krishnarajt/second-thought-backend/internal/store"
)

type testApp struct {
	repo store.Repo
	log  *zap.Logger
}

func (a *testApp) Logger() *zap.Logger { return a.log }
func (a *testApp) Repo() store.Repo    { return a.repo }

func newTestServer(t *testing.T) (*gin.Engine, store.Repo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return NewRouter(&testApp{repo: repo, log: zap.NewNop()}), repo
}

func seedUser(t *testing.T, repo store.Repo) *domain.User {
	t.Helper()
	u := &domain.User{
		Username: "alice",
		Prefs: domain.Preferences{
			RemindBeforeActivity: true,
			RemindOnStart:        true,
			NudgeDuringActivity:  true,
			CongratulateOnFinish: true,
		},
		DefaultSlotDuration: 30,
		Timezone:            "Asia/Kolkata",
		APIToken:            "token-alice",
	}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	r, _ := newTestServer(t)
	w := doJSON(t, r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	r, repo := newTestServer(t)
	seedUser(t, repo)

	w := doJSON(t, r, http.MethodGet, "/api/settings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/settings", "wrong-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/settings", "token-alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestPutAndGetSchedule(t *testing.T) {
	r, repo := newTestServer(t)
	seedUser(t, repo)

	body := gin.H{"blocks": []gin.H{
		{"description": "Deep work", "start_time": "09:00", "end_time": "10:30"},
		{"description": "Review", "start_time": "11:00", "end_time": "11:30"},
	}}
	w := doJSON(t, r, http.MethodPut, "/api/schedule/2025-06-15", "token-alice", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/api/schedule/2025-06-15", "token-alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	blocks := resp["blocks"].([]any)
	require.Len(t, blocks, 2)
	first := blocks[0].(map[string]any)
	assert.Equal(t, "Deep work", first["description"])
	assert.Equal(t, "09:00", first["start_time"])
	assert.NotEmpty(t, first["uuid"])
	assert.Equal(t, false, first["completed"])
}

func TestPutScheduleReplacesDay(t *testing.T) {
	r, repo := newTestServer(t)
	seedUser(t, repo)

	one := gin.H{"blocks": []gin.H{{"description": "Old plan", "start_time": "09:00", "end_time": "10:00"}}}
	w := doJSON(t, r, http.MethodPut, "/api/schedule/2025-06-15", "token-alice", one)
	require.Equal(t, http.StatusOK, w.Code)

	two := gin.H{"blocks": []gin.H{{"description": "New plan", "start_time": "14:00", "end_time": "15:00"}}}
	w = doJSON(t, r, http.MethodPut, "/api/schedule/2025-06-15", "token-alice", two)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/schedule/2025-06-15", "token-alice", nil)
	resp := decode(t, w)
	blocks := resp["blocks"].([]any)
	require.Len(t, blocks, 1)
	assert.Equal(t, "New plan", blocks[0].(map[string]any)["description"])
}

func TestPutScheduleValidation(t *testing.T) {
	r, repo := newTestServer(t)
	seedUser(t, repo)

	cases := []struct {
		name string
		path string
		body gin.H
	}{
		{"bad date", "/api/schedule/15-06-2025", gin.H{"blocks": []gin.H{}}},
		{"bad clock", "/api/schedule/2025-06-15", gin.H{"blocks": []gin.H{
			{"description": "x", "start_time": "9am", "end_time": "10:00"},
		}}},
		{"inverted interval", "/api/schedule/2025-06-15", gin.H{"blocks": []gin.H{
			{"description": "x", "start_time": "10:00", "end_time": "09:00"},
		}}},
		{"zero length", "/api/schedule/2025-06-15", gin.H{"blocks": []gin.H{
			{"description": "x", "start_time": "10:00", "end_time": "10:00"},
		}}},
		{"missing description", "/api/schedule/2025-06-15", gin.H{"blocks": []gin.H{
			{"start_time": "09:00", "end_time": "10:00"},
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPut, tc.path, "token-alice", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCompleteTask(t *testing.T) {
	r, repo := newTestServer(t)
	seedUser(t, repo)

	body := gin.H{"blocks": []gin.H{{"description": "Deep work", "start_time": "09:00", "end_time": "10:00"}}}
	w := doJSON(t, r, http.MethodPut, "/api/schedule/2025-06-15", "token-alice", body)
	require.Equal(t, http.StatusOK, w.Code)
	id := decode(t, w)["blocks"].([]any)[0].(map[string]any)["uuid"].(string)

	w = doJSON(t, r, http.MethodPost, "/api/tasks/"+id+"/complete", "token-alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/schedule/2025-06-15", "token-alice", nil)
	block := decode(t, w)["blocks"].([]any)[0].(map[string]any)
	assert.Equal(t, true, block["completed"])
	assert.NotEmpty(t, block["completed_at"])

	w = doJSON(t, r, http.MethodPost, "/api/tasks/no-such-task/complete", "token-alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSettingsRoundTrip(t *testing.T) {
	r, repo := newTestServer(t)
	seedUser(t, repo)

	w := doJSON(t, r, http.MethodGet, "/api/settings", "token-alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, true, got["remind_before_activity"])
	assert.Equal(t, "Asia/Kolkata", got["timezone"])
	assert.Equal(t, false, got["telegram_linked"])

	w = doJSON(t, r, http.MethodPut, "/api/settings", "token-alice", gin.H{
		"nudge_during_activity": false,
		"timezone":              "Europe/London",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got = decode(t, w)
	assert.Equal(t, false, got["nudge_during_activity"])
	assert.Equal(t, true, got["remind_on_start"], "untouched prefs keep their value")
	assert.Equal(t, "Europe/London", got["timezone"])

	w = doJSON(t, r, http.MethodPut, "/api/settings", "token-alice", gin.H{"timezone": "Mars/Olympus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLinkCodeEndpoint(t *testing.T) {
	r, repo := newTestServer(t)
	u := seedUser(t, repo)

	w := doJSON(t, r, http.MethodPost, "/api/telegram/link-code", "token-alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	code := resp["code"].(string)
	assert.Len(t, code, 6)
	expires, err := time.Parse(time.RFC3339, resp["expires_at"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(10*time.Minute), expires, time.Minute)

	// The minted code actually links a chat.
	linked, err := repo.ConsumeLinkCode(context.Background(), code, time.Now().UTC(), 777, "alice_tg")
	require.NoError(t, err)
	assert.Equal(t, u.ID, linked.ID)

	w = doJSON(t, r, http.MethodGet, "/api/settings", "token-alice", nil)
	assert.Equal(t, true, decode(t, w)["telegram_linked"])

	w = doJSON(t, r, http.MethodPost, "/api/telegram/unlink", "token-alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodGet, "/api/settings", "token-alice", nil)
	assert.Equal(t, false, decode(t, w)["telegram_linked"])
}

func TestGetTodayUsesUserTimezone(t *testing.T) {
	r, repo := newTestServer(t)
	seedUser(t, repo)

	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	today := time.Now().In(loc).Format(domain.DateLayout)

	body := gin.H{"blocks": []gin.H{{"description": "Morning pages", "start_time": "06:00", "end_time": "06:30"}}}
	w := doJSON(t, r, http.MethodPut, "/api/schedule/"+today, "token-alice", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/schedule/today", "token-alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, today, resp["date"])
	assert.Len(t, resp["blocks"].([]any), 1)
}

func TestRandomCodeShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := randomCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}
