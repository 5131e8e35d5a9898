package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cucumber_hub/internal/domain"
	"cucumber_hub/internal/logger"
	"cucumber_hub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const snapshotTimeout = 5 * time.Second

// Snapshotter источник снимка для догоняния
type Snapshotter interface {
	Snapshot(ctx context.Context, roomID, viewerID string) (*service.StateMessage, error)
}

// WSHandler апгрейд до websocket и подключение сокета к месту в комнате
type WSHandler struct {
	Hub           *Hub
	Rooms         Snapshotter
	Verifier      service.Verifier
	AllowedOrigin string
}

func NewWSHandler(hub *Hub, rooms Snapshotter, verifier service.Verifier, allowedOrigin string) *WSHandler {
	return &WSHandler{
		Hub:           hub,
		Rooms:         rooms,
		Verifier:      verifier,
		AllowedOrigin: allowedOrigin,
	}
}

// HandleWS GET /ws/rooms/:room?token=...
// Браузер не умеет ставить заголовки на websocket, поэтому токен в query.
func (h *WSHandler) HandleWS() gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if h.AllowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == h.AllowedOrigin
		},
	}

	return func(c *gin.Context) {
		roomID := c.Param("room")
		if !domain.ValidRoomID(roomID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_room_id"})
			return
		}

		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token_required"})
			return
		}
		participantID, err := h.Verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		// проверка до апгрейда: чужой комнате отвечаем обычным HTTP.
		// Сам снимок клиент получит после регистрации в хабе.
		if _, err := h.snapshot(c.Request.Context(), roomID, participantID); err != nil {
			status, code := snapshotError(err)
			c.JSON(status, gin.H{"error": code})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.ForRoom(roomID).Warn("ws: ошибка апгрейда", "error", err)
			return
		}

		client := NewClient(h.Hub, conn, roomID, participantID)
		client.Sync = func() {
			payload, err := h.snapshot(context.Background(), roomID, participantID)
			if err != nil {
				logger.ForRoom(roomID).Warn("ws: снимок недоступен", "seat", participantID, "error", err)
				return
			}
			h.Hub.sendTo(client, payload)
		}
		go client.Run()
	}
}

func (h *WSHandler) snapshot(ctx context.Context, roomID, participantID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	msg, err := h.Rooms.Snapshot(ctx, roomID, participantID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

func snapshotError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		return http.StatusNotFound, "room_not_found"
	case errors.Is(err, service.ErrNotAParticipant):
		return http.StatusForbidden, "not_a_participant"
	case errors.Is(err, service.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable, "persistence_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
