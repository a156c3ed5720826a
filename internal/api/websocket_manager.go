package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/metrics"
	"github.com/reelsync/backend/internal/middleware"
	"github.com/reelsync/backend/internal/observe"
	"github.com/reelsync/backend/internal/reconcile"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

// Client is one live feed connection of an app session
type Client struct {
	ID        uuid.UUID
	Conn      *websocket.Conn
	Send      chan []byte
	SessionID string
	// done closes when the session ends
	done <-chan struct{}
}

// WebSocketManager fans session events and the community feed out to
// connected clients
type WebSocketManager struct {
	clients   map[*Client]bool
	broadcast chan []byte
	closed    bool
	mu        sync.Mutex
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// WSEvent is the envelope of every pushed message
type WSEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func NewWebSocketManager(allowedOrigins []string, logger *zap.Logger) *WebSocketManager {
	return &WebSocketManager{
		clients:   make(map[*Client]bool),
		broadcast: make(chan []byte, sendBuffer),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || (len(allowed) == 1 && allowed[0] == "*") {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Run delivers broadcasts until ctx is cancelled, then closes every client
func (m *WebSocketManager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return

		case message := <-m.broadcast:
			m.mu.Lock()
			for client := range m.clients {
				m.sendLocked(client, message)
			}
			m.mu.Unlock()
		}
	}
}

// register adds client unless the manager has shut down
func (m *WebSocketManager) register(client *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.clients[client] = true
	metrics.WSConnections.Inc()
	m.logger.Debug("Client registered", zap.String("session_id", client.SessionID))
	return true
}

func (m *WebSocketManager) unregister(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(client)
}

// removeLocked must be called with mu held
func (m *WebSocketManager) removeLocked(client *Client) {
	if _, ok := m.clients[client]; !ok {
		return
	}
	delete(m.clients, client)
	close(client.Send)
	metrics.WSConnections.Dec()
	m.logger.Debug("Client unregistered", zap.String("session_id", client.SessionID))
}

// sendLocked queues message for client. A client whose buffer is full has
// fallen behind and is disconnected; it reconnects and receives the current
// state again.
func (m *WebSocketManager) sendLocked(client *Client, message []byte) {
	if !m.clients[client] {
		return
	}
	select {
	case client.Send <- message:
	default:
		m.logger.Warn("websocket client too slow, disconnecting", zap.String("session_id", client.SessionID))
		m.removeLocked(client)
	}
}

// sendTo queues an event for a single client
func (m *WebSocketManager) sendTo(client *Client, ev WSEvent) {
	msg, err := json.Marshal(ev)
	if err != nil {
		m.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendLocked(client, msg)
}

func (m *WebSocketManager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for client := range m.clients {
		m.removeLocked(client)
	}
}

// Len returns the number of connected clients
func (m *WebSocketManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Broadcast sends a message to every connected client
func (m *WebSocketManager) Broadcast(message any) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		m.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	select {
	case m.broadcast <- jsonMsg:
	default:
		m.logger.Warn("broadcast queue full, dropping message")
	}
}

// ServeWS upgrades the request and streams the calling session's events to
// this connection only. Events carry full state, so the initial snapshot is
// queued after subscribing: anything published in between is superseded by
// it.
func (m *WebSocketManager) ServeWS(initial func(*reconcile.Session) []WSEvent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := middleware.GetSession(r.Context())
		if !ok {
			http.Error(w, "missing session", http.StatusUnauthorized)
			return
		}

		conn, err := m.upgrader.Upgrade(w, r, nil)
		if err != nil {
			m.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:        uuid.New(),
			Conn:      conn,
			Send:      make(chan []byte, sendBuffer),
			SessionID: session.ID,
			done:      session.Context().Done(),
		}
		if !m.register(client) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			conn.Close()
			return
		}

		dispose := session.Subscribe(func(ev reconcile.Event) {
			m.sendTo(client, WSEvent{Type: string(ev.Type), Payload: ev.Data})
		})
		for _, ev := range initial(session) {
			m.sendTo(client, ev)
		}

		go client.WritePump()
		go client.ReadPump(m, session, dispose)
	}
}

func (c *Client) ReadPump(manager *WebSocketManager, session *reconcile.Session, dispose observe.Disposer) {
	defer func() {
		dispose()
		manager.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		session.Touch()
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		// The feed is server to client only; reads keep the connection alive
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				manager.logger.Debug("websocket closed", zap.String("session_id", c.SessionID), zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-c.done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
			return

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
