package handlers

import (
	"context"

	"cucumber_hub/internal/domain"
	"cucumber_hub/internal/service"
)

// MoveHistory журнал ходов; nil, если DATABASE_URL не задан
type MoveHistory interface {
	RoomMoves(ctx context.Context, roomID string, limit int) ([]*domain.MoveLog, error)
}

// Pinger зависимость, проверяемая в /healthz
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Rooms   *service.RoomService
	History MoveHistory
	Store   Pinger
	Version string
}

func NewHandler(rooms *service.RoomService, history MoveHistory, store Pinger, version string) *Handler {
	return &Handler{
		Rooms:   rooms,
		History: history,
		Store:   store,
		Version: version,
	}
}
