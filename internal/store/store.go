package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cucumber_hub/internal/domain"
)

var (
	ErrNotFound        = errors.New("room not found")
	ErrExists          = errors.New("room already exists")
	ErrVersionMismatch = errors.New("room version mismatch")
)

// Record - все, что хранится по комнате: сериализованное состояние, версия и места.
// Версия - токен оптимистичной блокировки, меняется только через CompareAndSet.
type Record struct {
	RoomID    string            `json:"room_id"`
	GameID    string            `json:"game_id"`
	GameType  string            `json:"game_type"`
	Status    domain.RoomStatus `json:"status"`
	Seats     []string          `json:"seats"`
	Version   int64             `json:"version"`
	State     json.RawMessage   `json:"state"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (r *Record) Clone() *Record {
	out := *r
	out.Seats = append([]string{}, r.Seats...)
	out.State = append(json.RawMessage{}, r.State...)
	return &out
}

// Store - хранилище состояния комнат
type Store interface {
	// Get возвращает ErrNotFound, если комнаты нет
	Get(ctx context.Context, roomID string) (*Record, error)

	// Create записывает новую комнату, ErrExists если она уже есть
	Create(ctx context.Context, rec *Record) error

	// CompareAndSet перезаписывает комнату, только если сохраненная версия равна expected.
	// Иначе ErrVersionMismatch (в том числе при проигранной гонке), ErrNotFound если записи нет.
	CompareAndSet(ctx context.Context, rec *Record, expected int64) error

	Ping(ctx context.Context) error
}
