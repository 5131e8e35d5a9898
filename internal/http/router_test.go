package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cucumber_hub/internal/domain"
	"cucumber_hub/internal/http/handlers"
	"cucumber_hub/internal/http/middleware"
	"cucumber_hub/internal/service"
	"cucumber_hub/internal/store"
	"cucumber_hub/internal/ws"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret-0123"

type staticHistory struct {
	moves []*domain.MoveLog
	err   error
}

func (s staticHistory) RoomMoves(context.Context, string, int) ([]*domain.MoveLog, error) {
	return s.moves, s.err
}

type apiFixture struct {
	router *gin.Engine
	jwt    *service.JWTVerifier
}

func newAPI(t *testing.T, history handlers.MoveHistory, limiter *middleware.RateLimiter) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtVerifier, err := service.NewJWTVerifier(testSecret)
	require.NoError(t, err)

	st := store.NewMemoryStore(0)
	hub := ws.NewHub()
	reg := prometheus.NewRegistry()
	rooms := service.NewRoomService(st, hub, service.RoomServiceOptions{Metrics: service.NewMetrics(reg)})

	r := gin.New()
	RegisterRoutes(r, Deps{
		Handler:  handlers.NewHandler(rooms, history, st, "test"),
		WS:       ws.NewWSHandler(hub, rooms, jwtVerifier, ""),
		Verifier: jwtVerifier,
		Limiter:  limiter,
		Metrics:  reg,
	})
	return &apiFixture{router: r, jwt: jwtVerifier}
}

func (f *apiFixture) do(t *testing.T, method, path, participant string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if participant != "" {
		token, err := f.jwt.Issue(participant, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, w)["error"]
}

func TestAPI_GameFlow(t *testing.T) {
	f := newAPI(t, nil, nil)

	w := f.do(t, http.MethodPost, "/api/rooms/r1/start", "A", gin.H{"seats": []string{"A", "B"}, "seed": "s1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	started := decode[service.StartResult](t, w)
	assert.EqualValues(t, 0, started.Version)

	w = f.do(t, http.MethodGet, "/api/rooms/r1/state", "A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[service.StateMessage](t, w)
	require.NotEmpty(t, snap.View.Hand)
	card := snap.View.Hand[0]

	// B ходит не в свою очередь
	w = f.do(t, http.MethodPost, "/api/rooms/r1/moves", "B", gin.H{
		"game_id": started.GameID, "base_version": 0, "action": gin.H{"type": "play", "play": gin.H{"card": 1}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "illegal_action", errorCode(t, w))

	w = f.do(t, http.MethodPost, "/api/rooms/r1/moves", "A", gin.H{
		"game_id": started.GameID, "base_version": 0, "action": gin.H{"type": "play", "play": gin.H{"card": card}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	moved := decode[service.MoveResult](t, w)
	assert.EqualValues(t, 1, moved.Version)
	assert.NotEmpty(t, moved.Fingerprint)

	// повтор на старой версии
	w = f.do(t, http.MethodPost, "/api/rooms/r1/moves", "B", gin.H{
		"game_id": started.GameID, "base_version": 0, "action": gin.H{"type": "forfeit"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "version_conflict", errorCode(t, w))
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	w = f.do(t, http.MethodPost, "/api/rooms/r1/close", "C", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/rooms/r1/close", "B", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/rooms/r1/moves", "B", gin.H{
		"game_id": started.GameID, "base_version": 2, "action": gin.H{"type": "forfeit"},
	})
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestAPI_StartErrors(t *testing.T) {
	f := newAPI(t, nil, nil)

	w := f.do(t, http.MethodPost, "/api/rooms/r1/start", "C", gin.H{"seats": []string{"A", "B"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/rooms/r1/start", "A", gin.H{"seats": []string{"A"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_seat_count", errorCode(t, w))

	w = f.do(t, http.MethodPost, "/api/rooms/bad:id/start", "A", gin.H{"seats": []string{"A", "B"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_room_id", errorCode(t, w))

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/rooms/r1/start", "A", gin.H{"seats": []string{"A", "B"}}).Code)
	w = f.do(t, http.MethodPost, "/api/rooms/r1/start", "A", gin.H{"seats": []string{"A", "B"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "room_exists", errorCode(t, w))
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestAPI_RequestValidation(t *testing.T) {
	f := newAPI(t, nil, nil)

	w := f.do(t, http.MethodGet, "/api/rooms/r1/state", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/rooms/r1/state", "A", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "room_not_found", errorCode(t, w))

	w = f.do(t, http.MethodPost, "/api/rooms/r1/moves", "A", gin.H{"action": gin.H{"type": "forfeit"}})
	assert.Equal(t, http.StatusBadRequest, w.Code, "base_version is required")

	w = f.do(t, http.MethodPost, "/api/rooms/r1/moves", "A", gin.H{"base_version": 0, "action": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_action", errorCode(t, w))
}

func TestAPI_MoveHistory(t *testing.T) {
	disabled := newAPI(t, nil, nil)
	require.Equal(t, http.StatusCreated, disabled.do(t, http.MethodPost, "/api/rooms/r1/start", "A", gin.H{"seats": []string{"A", "B"}}).Code)
	w := disabled.do(t, http.MethodGet, "/api/rooms/r1/moves", "A", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "move_log_disabled", errorCode(t, w))

	history := staticHistory{moves: []*domain.MoveLog{{RoomID: "r1", Version: 0, Kind: domain.MoveKindStart}}}
	f := newAPI(t, history, nil)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/rooms/r1/start", "A", gin.H{"seats": []string{"A", "B"}}).Code)

	w = f.do(t, http.MethodGet, "/api/rooms/r1/moves", "B", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Moves []domain.MoveLog `json:"moves"`
	}](t, w)
	require.Len(t, body.Moves, 1)
	assert.Equal(t, domain.MoveKindStart, body.Moves[0].Kind)

	w = f.do(t, http.MethodGet, "/api/rooms/r1/moves", "C", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	broken := newAPI(t, staticHistory{err: errors.New("db down")}, nil)
	require.Equal(t, http.StatusCreated, broken.do(t, http.MethodPost, "/api/rooms/r1/start", "A", gin.H{"seats": []string{"A", "B"}}).Code)
	assert.Equal(t, http.StatusServiceUnavailable, broken.do(t, http.MethodGet, "/api/rooms/r1/moves", "A", nil).Code)
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	f := newAPI(t, nil, nil)

	w := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	f.do(t, http.MethodPost, "/api/rooms/r1/moves", "A", gin.H{"base_version": 0, "action": gin.H{"type": "forfeit"}})
	w = f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `cucumbers_moves_total{result="room_not_found"} 1`)
}

func TestAPI_RateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newAPI(t, nil, middleware.NewRateLimiter(rdb, 2))
	move := gin.H{"base_version": 0, "action": gin.H{"type": "forfeit"}}

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/rooms/r1/moves", "A", move).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/rooms/r1/moves", "A", move).Code)
	w := f.do(t, http.MethodPost, "/api/rooms/r1/moves", "A", move)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// у другого участника свой счетчик
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/rooms/r1/moves", "B", move).Code)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("https://app.example"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
