package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cucumber_hub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenVerifier map[string]string

func (v tokenVerifier) Verify(_ context.Context, token string) (string, error) {
	id, ok := v[token]
	if !ok {
		return "", service.ErrInvalidToken
	}
	return id, nil
}

type fakeRooms struct {
	version atomic.Int64
}

func (f *fakeRooms) Snapshot(_ context.Context, roomID, viewerID string) (*service.StateMessage, error) {
	if roomID != "r1" {
		return nil, service.ErrRoomNotFound
	}
	if viewerID != "A" && viewerID != "B" {
		return nil, service.ErrNotAParticipant
	}
	return &service.StateMessage{
		Type:    service.MessageTypeState,
		RoomID:  roomID,
		GameID:  "g1",
		Version: f.version.Load(),
	}, nil
}

func newWSServer(t *testing.T) (*httptest.Server, *Hub, *fakeRooms) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	rooms := &fakeRooms{}
	h := NewWSHandler(hub, rooms, tokenVerifier{"ta": "A", "tc": "C"}, "")

	r := gin.New()
	r.GET("/ws/rooms/:room", h.HandleWS())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub, rooms
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func readState(t *testing.T, conn *websocket.Conn) service.StateMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg service.StateMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestHandleWS_SnapshotThenLiveUpdates(t *testing.T) {
	srv, hub, rooms := newWSServer(t)
	rooms.version.Store(3)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/rooms/r1?token=ta"), nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readState(t, conn)
	assert.EqualValues(t, 3, first.Version)
	assert.Equal(t, "g1", first.GameID)

	require.Eventually(t, func() bool { return hub.Connections("r1") == 1 }, time.Second, 10*time.Millisecond)

	// устаревшая публикация не доходит, следующая версия доходит
	hub.Deliver("r1", "A", []byte(`{"type":"state","game_id":"g1","version":2}`))
	hub.Deliver("r1", "A", []byte(`{"type":"state","game_id":"g1","version":4}`))
	assert.EqualValues(t, 4, readState(t, conn).Version)

	// явный sync присылает снимок заново
	rooms.version.Store(4)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"sync"}`)))
	assert.EqualValues(t, 4, readState(t, conn).Version)
}

func TestHandleWS_DisconnectUnregisters(t *testing.T) {
	srv, hub, _ := newWSServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/rooms/r1?token=ta"), nil)
	require.NoError(t, err)
	readState(t, conn)
	require.Eventually(t, func() bool { return hub.Connections("r1") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Connections("r1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandleWS_Rejections(t *testing.T) {
	srv, _, _ := newWSServer(t)

	cases := map[string]struct {
		path   string
		status int
	}{
		"no token":     {"/ws/rooms/r1", http.StatusUnauthorized},
		"bad token":    {"/ws/rooms/r1?token=zzz", http.StatusUnauthorized},
		"not seated":   {"/ws/rooms/r1?token=tc", http.StatusForbidden},
		"unknown room": {"/ws/rooms/r9?token=ta", http.StatusNotFound},
		"bad room id":  {"/ws/rooms/r:1?token=zzz", http.StatusBadRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, tc.path), nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestHandleWS_OriginCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewWSHandler(NewHub(), &fakeRooms{}, tokenVerifier{"ta": "A"}, "https://app.example")
	r := gin.New()
	r.GET("/ws/rooms/:room", h.HandleWS())
	srv := httptest.NewServer(r)
	defer srv.Close()

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/rooms/r1?token=ta"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://app.example")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/rooms/r1?token=ta"), header)
	require.NoError(t, err)
	conn.Close()
}
