package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/e-projects/platform-api/internal/models"
)

// Event is the JSON frame pushed to connected clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Event type constants understood by the frontend.
const (
	EventConnected         = "connected"
	EventSessionSuperseded = "session_superseded"
	EventChatMessage       = "chat_message"
)

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	userID    string
	sessionID string
	admin     bool
}

// Hub fans events out to connected websocket clients. Connections are keyed
// by user; admin connections additionally receive the admin broadcast used
// for the support inbox. The hub is best-effort: clients falling behind get
// frames dropped, and polling remains the source of truth.
type Hub struct {
	mu     sync.RWMutex
	byUser map[string]map[*client]struct{}
	admins map[*client]struct{}
	logger *zap.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		byUser: make(map[string]map[*client]struct{}),
		admins: make(map[*client]struct{}),
		logger: logger,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.byUser[c.userID]; !ok {
		h.byUser[c.userID] = make(map[*client]struct{})
	}
	h.byUser[c.userID][c] = struct{}{}
	if c.admin {
		h.admins[c] = struct{}{}
	}

	go c.writePump()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.byUser[c.userID]; ok {
		if _, ok := conns[c]; ok {
			close(c.send)
			delete(conns, c)
		}
		if len(conns) == 0 {
			delete(h.byUser, c.userID)
		}
	}
	delete(h.admins, c)
}

// NotifySessionSuperseded tells the given user's connections that their
// session was replaced by a newer login; the client matching the session id
// is expected to log out immediately.
func (h *Hub) NotifySessionSuperseded(userID, sessionID string) {
	h.sendToUser(userID, Event{
		Type:    EventSessionSuperseded,
		Payload: map[string]string{"session_id": sessionID},
	})
}

// NotifyChatMessage pushes an admin reply to the thread owner.
func (h *Hub) NotifyChatMessage(recipientUserID string, msg *models.ChatMessage) {
	h.sendToUser(recipientUserID, Event{Type: EventChatMessage, Payload: msg})
}

// NotifyAdminsChatMessage pushes a user message to every connected admin.
func (h *Hub) NotifyAdminsChatMessage(msg *models.ChatMessage) {
	data, err := json.Marshal(Event{Type: EventChatMessage, Payload: msg})
	if err != nil {
		h.logger.Warn("failed to marshal ws event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.admins {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *Hub) sendToUser(userID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("failed to marshal ws event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byUser[userID] {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (c *client) writePump() {
	defer func() {
		_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
		_ = c.conn.Close()
	}()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
