package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"cucumber_hub/internal/domain"
	"cucumber_hub/internal/game"
	"cucumber_hub/internal/http/middleware"
	"cucumber_hub/internal/service"

	"github.com/gin-gonic/gin"
)

// roomAndCaller общий пролог: валидный id комнаты и аутентифицированный участник
func roomAndCaller(c *gin.Context) (roomID, participantID string, ok bool) {
	participantID, ok = middleware.ParticipantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", "", false
	}
	roomID = c.Param("room")
	if !domain.ValidRoomID(roomID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_room_id"})
		return "", "", false
	}
	return roomID, participantID, true
}

type startRequest struct {
	Seats []string `json:"seats"`
	Seed  string   `json:"seed"`
}

// StartGame создает комнату. Вызывающий должен сидеть за столом.
func (h *Handler) StartGame(c *gin.Context) {
	roomID, caller, ok := roomAndCaller(c)
	if !ok {
		return
	}
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	seated := false
	for _, id := range req.Seats {
		if id == caller {
			seated = true
			break
		}
	}
	if !seated {
		writeError(c, service.ErrNotAParticipant)
		return
	}

	res, err := h.Rooms.StartGame(c.Request.Context(), roomID, req.Seats, req.Seed)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type moveRequest struct {
	GameID      string          `json:"game_id"`
	BaseVersion *int64          `json:"base_version"`
	Action      json.RawMessage `json:"action"`
}

// ProposeMove ход от имени вызывающего на базовой версии base_version
func (h *Handler) ProposeMove(c *gin.Context) {
	roomID, caller, ok := roomAndCaller(c)
	if !ok {
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BaseVersion == nil || len(req.Action) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	action, err := game.DecodeAction(req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_action"})
		return
	}

	res, err := h.Rooms.ProposeMove(c.Request.Context(), service.MoveRequest{
		RoomID:      roomID,
		GameID:      req.GameID,
		ActorID:     caller,
		BaseVersion: *req.BaseVersion,
		Action:      action,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// State снимок для догоняния: версия, вид вызывающего и отпечаток
func (h *Handler) State(c *gin.Context) {
	roomID, caller, ok := roomAndCaller(c)
	if !ok {
		return
	}
	msg, err := h.Rooms.Snapshot(c.Request.Context(), roomID, caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) CloseRoom(c *gin.Context) {
	roomID, caller, ok := roomAndCaller(c)
	if !ok {
		return
	}
	res, err := h.Rooms.CloseRoom(c.Request.Context(), roomID, caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Moves последние записи журнала комнаты, только для участников
func (h *Handler) Moves(c *gin.Context) {
	roomID, caller, ok := roomAndCaller(c)
	if !ok {
		return
	}
	if h.History == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "move_log_disabled"})
		return
	}
	if _, err := h.Rooms.Snapshot(c.Request.Context(), roomID, caller); err != nil {
		writeError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	moves, err := h.History.RoomMoves(c.Request.Context(), roomID, limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "move_log_unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room_id": roomID,
		"moves":   moves,
	})
}
