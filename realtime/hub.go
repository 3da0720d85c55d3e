package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Dosada05/studio-leaderboards/models"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

var ErrHubStopped = errors.New("websocket hub stopped")

// Message is the envelope written to websocket clients.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	RoomID  string      `json:"room_id,omitempty"`
}

// LeaderboardRoom is the room clients of one leaderboard join.
func LeaderboardRoom(leaderboardID string) string {
	return "leaderboard_" + leaderboardID
}

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	room     string
	isClosed bool
	mu       sync.Mutex
}

// Hub fans messages out to websocket clients grouped by room.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger, allowedOrigins []string) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Не браузерные клиенты Origin не присылают.
		return origin == "" || set[origin]
	}
}

// Run owns room membership until ctx is cancelled; then every client
// channel is closed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for room, clients := range h.rooms {
				for client := range clients {
					client.close()
				}
				delete(h.rooms, room)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.logger.Debug("websocket client registered",
				slog.String("room", client.room),
				slog.Int("clients", len(h.rooms[client.room])))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok && clients[client] {
				client.close()
				delete(clients, client)
				if len(clients) == 0 {
					delete(h.rooms, client.room)
				}
				h.logger.Debug("websocket client unregistered", slog.String("room", client.room))
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of clients currently in room.
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// BroadcastToRoom sends message to every client in the room. Slow clients
// whose buffer is full miss the message.
func (h *Hub) BroadcastToRoom(roomID string, message interface{}) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message for room %s: %w", roomID, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roomID] {
		client.mu.Lock()
		if client.isClosed {
			client.mu.Unlock()
			continue
		}
		select {
		case client.send <- messageBytes:
		default:
			h.logger.Warn("websocket client buffer full, message dropped", slog.String("room", roomID))
		}
		client.mu.Unlock()
	}
	return nil
}

// PeriodFinalized pushes the finalization summary to the leaderboard room.
func (h *Hub) PeriodFinalized(ctx context.Context, event models.PeriodFinalizedEvent) error {
	room := LeaderboardRoom(event.LeaderboardID)
	return h.BroadcastToRoom(room, Message{
		Type:    models.EventPeriodFinalized,
		Payload: event.Summary(),
		RoomID:  room,
	})
}

// ServeWS upgrades the request and joins the connection to room.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, room string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту ошибкой.
		return fmt.Errorf("websocket upgrade for room %s: %w", room, err)
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		room: room,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return ErrHubStopped
	}

	go client.writePump()
	go client.readPump()
	return nil
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isClosed {
		close(c.send)
		c.isClosed = true
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		// Входящие сообщения клиентов игнорируются.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", slog.String("room", c.room), slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Каждое сообщение отдельным фреймом, чтобы JSON не склеивался.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Warn("websocket write error", slog.String("room", c.room), slog.Any("error", err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
