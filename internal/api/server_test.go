package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/pylearn-arcade/internal/config"
	"github.com/terra-clan/pylearn-arcade/internal/content"
	"github.com/terra-clan/pylearn-arcade/internal/game"
	"github.com/terra-clan/pylearn-arcade/internal/game/gametest"
	"github.com/terra-clan/pylearn-arcade/internal/models"
	"github.com/terra-clan/pylearn-arcade/internal/rewards"
	"github.com/terra-clan/pylearn-arcade/internal/services"
	"github.com/terra-clan/pylearn-arcade/internal/session"
	"github.com/terra-clan/pylearn-arcade/internal/storage"
	"github.com/terra-clan/pylearn-arcade/pkg/client"
)

type okCompleter struct{}

func (okCompleter) CompleteActivity(context.Context, client.Credentials, client.CompleteRequest) (*client.CompleteResponse, error) {
	return &client.CompleteResponse{Success: true}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

func newTestServer(t *testing.T, health *services.Registry) *Server {
	t.Helper()

	loader := content.NewLoader()
	loader.Add(&models.Activity{
		Slug:      "pairs",
		Type:      game.KindMatching,
		Title:     "Pairs",
		Category:  "basics",
		TimeLimit: 60,
		Tags:      []string{"lists"},
		Content: map[string]any{"pairs": []any{
			map[string]any{"left": "list", "right": "Mutable sequence"},
			map[string]any{"left": "tuple", "right": "Immutable sequence"},
		}},
	})

	sched := gametest.NewScheduler(time.Now())
	m := session.NewManager(loader, storage.NewMemoryRepository(), storage.NewMemoryStateStore(sched.Now),
		rewards.NewAdapter(okCompleter{}, nil), session.Options{
			Scheduler: sched,
			NewRand:   func() *rand.Rand { return rand.New(rand.NewSource(1)) },
		})
	t.Cleanup(func() { m.Close() })

	return NewServer(config.ServerConfig{AllowedOrigins: []string{"*"}}, m, loader, health)
}

func do(t *testing.T, s *Server, method, path, body string, header http.Header) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func sessionToken(token string) http.Header {
	return http.Header{SessionTokenHeader: []string{token}}
}

type created struct {
	Session models.GameSession `json:"session"`
	Token   string             `json:"token"`
}

func createSession(t *testing.T, s *Server, header http.Header) created {
	t.Helper()
	rec, env := do(t, s, http.MethodPost, "/api/v1/sessions", `{"activity_slug":"pairs"}`, header)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c created
	require.NoError(t, json.Unmarshal(env.Data, &c))
	return c
}

func TestHealthAndReady(t *testing.T) {
	health := services.NewRegistry(time.Second)
	health.Register("database", services.CheckerFunc(func(context.Context) error { return nil }))
	s := newTestServer(t, health)

	rec, env := do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, env = do(t, s, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	health.Register("redis", services.CheckerFunc(func(context.Context) error { return errors.New("down") }))
	rec, env = do(t, s, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, env.Success)
	assert.Contains(t, string(env.Data), "down")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	do(t, s, http.MethodGet, "/health", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "arcade_http_requests_total")
}

func TestCatalogRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := do(t, s, http.MethodGet, "/api/v1/categories", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"basics"`)

	rec, env = do(t, s, http.MethodGet, "/api/v1/categories/basics/activities", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Activities []models.CatalogActivity `json:"activities"`
		Total      int                      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, "pairs", list.Activities[0].Slug)

	rec, env = do(t, s, http.MethodGet, "/api/v1/activities?tag=dicts", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"total":0`)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/categories/nope/activities", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = do(t, s, http.MethodGet, "/api/v1/activities/pairs", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"title":"Pairs"`)

	rec, env = do(t, s, http.MethodGet, "/api/v1/activities/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestCreateSessionValidation(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := do(t, s, http.MethodPost, "/api/v1/sessions", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)
	assert.Equal(t, "activity_slug is required", env.Error.Message)

	rec, env = do(t, s, http.MethodPost, "/api/v1/sessions", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", env.Error.Code)

	rec, env = do(t, s, http.MethodPost, "/api/v1/sessions", `{"activity_slug":"missing"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "activity_not_found", env.Error.Code)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	alice := bearer("alice-token")

	c := createSession(t, s, alice)
	assert.Equal(t, models.SessionStart, c.Session.Status)
	assert.Equal(t, models.PlayerID("alice-token", ""), c.Session.PlayerID)
	path := "/api/v1/sessions/" + c.Session.ID

	rec, _ := do(t, s, http.MethodGet, path, "", alice)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Sessions are scoped to the player who started them
	rec, env := do(t, s, http.MethodGet, path, "", bearer("bob-token"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Code)

	rec, env = do(t, s, http.MethodPost, path+"/events", `{"type":"start"}`, alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, models.SessionRunning, resp.Session.Status)

	rec, env = do(t, s, http.MethodPost, path+"/events", `{"type":"start"}`, alice)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_phase", env.Error.Code)

	rec, env = do(t, s, http.MethodPost, path+"/events", `{"type":"bogus"}`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_event", env.Error.Code)

	rec, env = do(t, s, http.MethodPost, path+"/events", `{"type":"timer"}`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_event", env.Error.Code)

	rec, env = do(t, s, http.MethodPost, path+"/events", `{"type":"select","delta":9}`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)

	rec, env = do(t, s, http.MethodPost, path+"/claim", "", alice)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_completed", env.Error.Code)

	rec, env = do(t, s, http.MethodGet, "/api/v1/sessions", "", alice)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"total":1`)

	rec, env = do(t, s, http.MethodGet, "/api/v1/sessions", "", bearer("bob-token"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"total":0`)

	rec, _ = do(t, s, http.MethodDelete, path, "", alice)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Deleted sessions are still readable, marked stale
	rec, env = do(t, s, http.MethodGet, path, "", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.True(t, resp.Stale)
	assert.Equal(t, models.SessionAbandoned, resp.Session.Status)

	rec, env = do(t, s, http.MethodPost, path+"/events", `{"type":"start"}`, alice)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "session_closed", env.Error.Code)
}

func TestAnonymousSessionsNeedToken(t *testing.T) {
	s := newTestServer(t, nil)

	c := createSession(t, s, nil)
	assert.Equal(t, models.PlayerID("", ""), c.Session.PlayerID)
	path := "/api/v1/sessions/" + c.Session.ID

	// Another anonymous client sees nothing of it
	rec, env := do(t, s, http.MethodGet, "/api/v1/sessions", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"total":0`)
	assert.NotContains(t, string(env.Data), c.Session.ID)

	rec, env = do(t, s, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Code)

	rec, _ = do(t, s, http.MethodPost, path+"/events", `{"type":"start"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, s, http.MethodPost, path+"/claim", "", sessionToken("wrong"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, s, http.MethodDelete, path, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Logged-in players are not owners either
	rec, _ = do(t, s, http.MethodGet, path, "", bearer("bob-token"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	owner := sessionToken(c.Token)
	rec, _ = do(t, s, http.MethodGet, path, "", owner)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, s, http.MethodPost, path+"/events", `{"type":"start"}`, owner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, models.SessionRunning, resp.Session.Status)

	rec, _ = do(t, s, http.MethodDelete, path, "", owner)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPlayerFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, playerFromRequest(req).Anonymous())
	assert.Equal(t, "anonymous", playerFromRequest(req).ID)

	req.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})
	assert.True(t, playerFromRequest(req).Anonymous())

	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "abc"})
	p := playerFromRequest(req)
	assert.Equal(t, "session=abc", p.Cookie)
	assert.Equal(t, models.PlayerID("", "session=abc"), p.ID)

	req.Header.Set("Authorization", "Bearer tok")
	p = playerFromRequest(req)
	assert.Equal(t, "tok", p.BearerToken)
	assert.Equal(t, models.PlayerID("tok", ""), p.ID)
	assert.Empty(t, p.SessionToken)

	req.Header.Set(SessionTokenHeader, "sess-tok")
	p = playerFromRequest(req)
	assert.Equal(t, "sess-tok", p.SessionToken)
	assert.Equal(t, models.PlayerID("tok", ""), p.ID)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{session.ErrSessionNotFound, http.StatusNotFound, "not_found"},
		{session.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{session.ErrClaimInProgress, http.StatusConflict, "claim_in_progress"},
		{session.ErrInvalidToken, http.StatusForbidden, "invalid_token"},
		{game.ErrOutOfRange, http.StatusBadRequest, "invalid_event"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		status, code := errorStatus(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) session.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var raw struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&raw))
		if raw.Type == typ {
			return session.Message{Type: raw.Type, Data: raw.Data}
		}
	}
}

func TestSessionWebSocket(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	c := createSession(t, s, nil)
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + c.Session.ID + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(base+"?token=wrong", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"?token="+c.Token, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readUntil(t, conn, session.MessageState)
	assert.Contains(t, string(first.Data.(json.RawMessage)), `"status":"start"`)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "start"}))
	running := readUntil(t, conn, session.MessageState)
	assert.Contains(t, string(running.Data.(json.RawMessage)), `"status":"running"`)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "bogus"}))
	rejected := readUntil(t, conn, "error")
	assert.Contains(t, string(rejected.Data.(json.RawMessage)), "invalid_event")

	// Deleting the session ends the stream
	rec, _ := do(t, s, http.MethodDelete, "/api/v1/sessions/"+c.Session.ID, "", sessionToken(c.Token))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			break
		}
	}
}
