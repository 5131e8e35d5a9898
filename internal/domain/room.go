package domain

import (
	"encoding/json"
	"regexp"
	"time"
)

// id комнаты идет в ключи и каналы Redis, поэтому без двоеточий
var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func ValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}

// Статус комнаты: UNINITIALIZED (записи нет) -> ACTIVE -> CLOSED
type RoomStatus string

const (
	RoomActive RoomStatus = "active"
	RoomClosed RoomStatus = "closed"
)

func (s RoomStatus) Valid() bool {
	return s == RoomActive || s == RoomClosed
}

// Запись в журнале примененных ходов
type MoveLog struct {
	ID        int64           `db:"id" json:"id"`
	RoomID    string          `db:"room_id" json:"room_id"`
	GameID    string          `db:"game_id" json:"game_id"`
	ActorID   string          `db:"actor_id" json:"actor_id"`
	Version   int64           `db:"version" json:"version"`
	Kind      string          `db:"kind" json:"kind"`
	Action    json.RawMessage `db:"action" json:"action"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Виды записей журнала
const (
	MoveKindStart = "game_start"
	MoveKindMove  = "move"
	MoveKindClose = "room_close"
)
