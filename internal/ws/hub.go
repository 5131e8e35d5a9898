package ws

import (
	"context"
	"sync"

	"cucumber_hub/internal/logger"

	"github.com/redis/go-redis/v9"
)

type seatKey struct {
	room string
	seat string
}

// Hub сокеты этого инстанса по (комната, место).
// Одно место может быть открыто в нескольких вкладках, каждая получает копию.
type Hub struct {
	mu      sync.RWMutex
	clients map[seatKey]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[seatKey]map[*Client]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	key := seatKey{room: c.RoomID, seat: c.SeatID}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[key]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[key] = set
	}
	set[c] = struct{}{}
	logger.ForRoom(c.RoomID).Debug("ws: клиент подключен", "seat", c.SeatID, "connections", len(set))
}

// Unregister повторный вызов безопасен; канал send закрывается ровно один раз
func (h *Hub) Unregister(c *Client) {
	key := seatKey{room: c.RoomID, seat: c.SeatID}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[key]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, key)
	}
	close(c.send)
	logger.ForRoom(c.RoomID).Debug("ws: клиент отключен", "seat", c.SeatID)
}

// Publish локальная доставка: реализует service.Publisher, когда Redis не настроен
func (h *Hub) Publish(_ context.Context, roomID, seatID string, payload []byte) error {
	h.Deliver(roomID, seatID, payload)
	return nil
}

// Deliver отдает payload всем сокетам места без блокировки.
// Клиент с переполненным буфером отключается: после переподключения он
// получит актуальный снимок. Возвращает число принявших сокетов.
func (h *Hub) Deliver(roomID, seatID string, payload []byte) int {
	var (
		delivered int
		slow      []*Client
	)

	h.mu.RLock()
	for c := range h.clients[seatKey{room: roomID, seat: seatID}] {
		switch c.offer(payload) {
		case offerQueued:
			delivered++
		case offerFull:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		logger.ForRoom(roomID).Warn("ws: буфер клиента переполнен, отключаем", "seat", seatID)
		h.Unregister(c)
	}
	return delivered
}

// sendTo доставка одному клиенту (снимок при подключении), если он еще зарегистрирован
func (h *Hub) sendTo(c *Client, payload []byte) bool {
	h.mu.RLock()
	_, registered := h.clients[seatKey{room: c.RoomID, seat: c.SeatID}][c]
	result := offerStale
	if registered {
		result = c.offer(payload)
	}
	h.mu.RUnlock()

	if result == offerFull {
		h.Unregister(c)
	}
	return result == offerQueued
}

// Connections число открытых сокетов в комнате
func (h *Hub) Connections(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for key, set := range h.clients {
		if key.room == roomID {
			n += len(set)
		}
	}
	return n
}

// Run подписывается на каналы мест в Redis и раздает сообщения локальным сокетам.
// Блокируется до отмены ctx.
func (h *Hub) Run(ctx context.Context, rdb redis.UniversalClient) error {
	sub := rdb.PSubscribe(ctx, SeatPattern)
	defer sub.Close()

	// дожидаемся подтверждения подписки, иначе первые публикации теряются
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	logger.Info("ws: подписка на каналы мест активна", "pattern", SeatPattern)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			roomID, seatID, ok := ParseSeatChannel(msg.Channel)
			if !ok {
				logger.Warn("ws: неизвестный канал", "channel", msg.Channel)
				continue
			}
			h.Deliver(roomID, seatID, []byte(msg.Payload))
		}
	}
}
