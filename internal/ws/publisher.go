package ws

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix = "room:"
	seatSeparator = ":seat:"

	// SeatPattern шаблон PSUBSCRIBE для всех мест всех комнат
	SeatPattern = "room:*:seat:*"
)

// SeatChannel канал pub/sub одного места: room:{room}:seat:{seat}
func SeatChannel(roomID, seatID string) string {
	return channelPrefix + roomID + seatSeparator + seatID
}

// ParseSeatChannel обратное к SeatChannel. id комнаты не содержит ":seat:"
func ParseSeatChannel(channel string) (roomID, seatID string, ok bool) {
	rest, found := strings.CutPrefix(channel, channelPrefix)
	if !found {
		return "", "", false
	}
	roomID, seatID, found = strings.Cut(rest, seatSeparator)
	if !found || roomID == "" || seatID == "" {
		return "", "", false
	}
	return roomID, seatID, true
}

// RedisPublisher публикует виды мест в Redis; доставку до сокетов делает Hub.Run
// на каждом инстансе
type RedisPublisher struct {
	rdb redis.UniversalClient
}

func NewRedisPublisher(rdb redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, roomID, seatID string, payload []byte) error {
	return p.rdb.Publish(ctx, SeatChannel(roomID, seatID), payload).Err()
}
