package ws

import (
	"encoding/json"
	"sync"
	"time"

	"cucumber_hub/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

type offerResult int

const (
	offerQueued offerResult = iota
	offerStale
	offerFull
)

// Client один websocket конкретного места. Сервер только пишет виды;
// от клиента принимается {"type":"sync"} - перезапросить снимок.
type Client struct {
	RoomID string
	SeatID string

	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Sync перезапрашивает снимок; вызывается при подключении и по запросу клиента
	Sync func()

	mu      sync.Mutex
	gameID  string
	version int64
	seen    bool
}

func NewClient(hub *Hub, conn *websocket.Conn, roomID, seatID string) *Client {
	return &Client{
		RoomID: roomID,
		SeatID: seatID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    hub,
	}
}

type envelope struct {
	Type    string `json:"type"`
	GameID  string `json:"game_id"`
	Version int64  `json:"version"`
}

// offer ставит сообщение в очередь. Виды с версией не новее уже отправленной
// в той же партии отбрасываются: снимок и живая публикация могут прийти в любом порядке.
// Проверка версии и запись в send идут под одним локом, иначе две
// параллельные доставки могут встать в очередь в обратном порядке.
// Вызывается только под локом хаба, поэтому send еще не закрыт.
func (c *Client) offer(payload []byte) offerResult {
	var env envelope
	versioned := json.Unmarshal(payload, &env) == nil && env.GameID != ""

	c.mu.Lock()
	defer c.mu.Unlock()

	if versioned && c.seen && c.gameID == env.GameID && env.Version <= c.version {
		return offerStale
	}
	select {
	case c.send <- payload:
		if versioned {
			c.gameID, c.version, c.seen = env.GameID, env.Version, true
		}
		return offerQueued
	default:
		return offerFull
	}
}

// Run регистрирует клиента, шлет снимок и обслуживает соединение до разрыва
func (c *Client) Run() {
	c.hub.Register(c)
	go c.writePump()

	if c.Sync != nil {
		c.Sync()
	}
	c.readPump()
}

func (c *Client) readPump() {
	log := logger.ForRoom(c.RoomID).With("seat", c.SeatID)
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("ws: ошибка чтения", "error", err)
			}
			return
		}
		var env envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			log.Debug("ws: некорректное сообщение клиента", "error", err)
			continue
		}
		if env.Type == "sync" && c.Sync != nil {
			c.resetVersion()
			c.Sync()
		}
	}
}

// resetVersion после явного sync клиент хочет снимок даже той же версии
func (c *Client) resetVersion() {
	c.mu.Lock()
	c.seen = false
	c.mu.Unlock()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.ForRoom(c.RoomID).Debug("ws: ошибка записи", "seat", c.SeatID, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
