package handlers

import (
	"errors"
	"net/http"

	"cucumber_hub/internal/logger"
	"cucumber_hub/internal/service"

	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrNotAParticipant, http.StatusForbidden, "not_a_participant"},
	{service.ErrIllegalAction, http.StatusUnprocessableEntity, "illegal_action"},
	{service.ErrVersionConflict, http.StatusConflict, "version_conflict"},
	{service.ErrRoomClosed, http.StatusGone, "room_closed"},
	{service.ErrRoomNotFound, http.StatusNotFound, "room_not_found"},
	{service.ErrRoomExists, http.StatusConflict, "room_exists"},
	{service.ErrInvalidSeatCount, http.StatusBadRequest, "invalid_seat_count"},
	{service.ErrPersistenceUnavailable, http.StatusServiceUnavailable, "persistence_unavailable"},
}

// через сколько секунд клиенту стоит повторить запрос после перечитывания состояния
const retryAfterSeconds = "1"

// writeError ошибка координатора -> статус и {"error": code}
func writeError(c *gin.Context, err error) {
	if service.Retryable(err) {
		c.Header("Retry-After", retryAfterSeconds)
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"error": m.code})
			return
		}
	}
	logger.Error("необработанная ошибка запроса", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}
