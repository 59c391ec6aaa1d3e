package websocket

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"certificate-studio/certificate-backend/internal/notifications"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
)

// Authenticator resolves the user behind an upgrade request
type Authenticator func(r *http.Request) (string, error)

// Manager handles WebSocket connections and message routing
type Manager struct {
	connections  map[string]*Connection
	mu           sync.RWMutex
	hub          *Hub
	upgrader     websocket.Upgrader
	authenticate Authenticator
	logger       *zap.Logger
}

// Connection represents a WebSocket client connection
type Connection struct {
	ID           string
	UserID       string
	Conn         *websocket.Conn
	Send         chan notifications.WebSocketMessage
	ConnectedAt  time.Time
	LastActivity time.Time
	UserAgent    string
	IPAddress    string
	mu           sync.Mutex
}

// Hub owns the connection set and is the only place Send channels are closed
type Hub struct {
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	stop        chan struct{}
	once        sync.Once
	logger      *zap.Logger
}

// NewManager creates a new WebSocket manager. An empty origin list, or one
// containing "*", accepts every origin.
func NewManager(authenticate Authenticator, allowedOrigins []string, logger *zap.Logger) *Manager {
	hub := &Hub{
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		stop:        make(chan struct{}),
		logger:      logger,
	}

	go hub.run()

	return &Manager{
		connections:  make(map[string]*Connection),
		hub:          hub,
		authenticate: authenticate,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Handle is the gin handler for GET /ws
func (m *Manager) Handle(c *gin.Context) {
	if _, err := m.HandleConnection(c.Writer, c.Request); err != nil {
		m.logger.Debug("WebSocket connection rejected", zap.Error(err))
	}
}

// HandleConnection authenticates and upgrades a request
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	userID, err := m.authenticate(r)
	if err != nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	now := time.Now()
	connection := &Connection{
		ID:           uuid.New().String(),
		UserID:       userID,
		Conn:         conn,
		Send:         make(chan notifications.WebSocketMessage, sendBuffer),
		ConnectedAt:  now,
		LastActivity: now,
		UserAgent:    r.Header.Get("User-Agent"),
		IPAddress:    r.RemoteAddr,
	}

	// Send is only ever closed by the hub, so fill it before the hub knows
	// about the connection.
	connection.Send <- m.statusMessage(connection)

	m.mu.Lock()
	m.connections[connection.ID] = connection
	m.mu.Unlock()

	select {
	case m.hub.register <- connection:
	case <-m.hub.stop:
		m.mu.Lock()
		delete(m.connections, connection.ID)
		m.mu.Unlock()
		conn.Close()
		return nil, fmt.Errorf("websocket manager closed")
	}

	go m.readPump(connection)
	go m.writePump(connection)

	return connection, nil
}

// readPump reads client messages until the connection fails
func (m *Manager) readPump(conn *Connection) {
	defer func() {
		m.remove(conn)
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(maxMessageSize)
	conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg notifications.WebSocketMessage
		if err := conn.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Warn("WebSocket read failed", zap.String("connection_id", conn.ID), zap.Error(err))
			}
			return
		}

		conn.mu.Lock()
		conn.LastActivity = time.Now()
		conn.mu.Unlock()

		m.handleMessage(conn, &msg)
	}
}

// writePump pumps messages from the Send channel to the socket
func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming messages. Clients only ever ask for
// their connection status; progress flows server to client.
func (m *Manager) handleMessage(conn *Connection, msg *notifications.WebSocketMessage) {
	switch msg.Type {
	case notifications.WSMessageTypePresence, notifications.WSMessageTypeStatus:
		m.trySend(conn, m.statusMessage(conn))
	default:
		m.logger.Debug("Unknown message type", zap.String("type", msg.Type))
	}
}

func (m *Manager) statusMessage(conn *Connection) notifications.WebSocketMessage {
	msg := notifications.NewMessage(notifications.WSMessageTypeStatus, map[string]interface{}{
		"status":        "connected",
		"connection_id": conn.ID,
	})
	msg.Target = conn.UserID
	return msg
}

func (m *Manager) trySend(conn *Connection, msg notifications.WebSocketMessage) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.connections[conn.ID]; !ok {
		return false
	}
	select {
	case conn.Send <- msg:
		return true
	default:
		return false
	}
}

func (m *Manager) remove(conn *Connection) {
	m.mu.Lock()
	delete(m.connections, conn.ID)
	m.mu.Unlock()

	select {
	case m.hub.unregister <- conn:
	case <-m.hub.stop:
	}
}

// run runs the hub in its own goroutine
func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.connections[conn] = true
			h.logger.Debug("Connection registered", zap.String("connection_id", conn.ID), zap.String("user_id", conn.UserID))

		case conn := <-h.unregister:
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				close(conn.Send)
				h.logger.Debug("Connection unregistered", zap.String("connection_id", conn.ID), zap.String("user_id", conn.UserID))
			}

		case <-h.stop:
			for conn := range h.connections {
				close(conn.Send)
				delete(h.connections, conn)
			}
			return
		}
	}
}

// SendToUser sends a message to every connection of a user. Connections
// with a full buffer miss the message rather than block the sender.
func (m *Manager) SendToUser(userID string, message notifications.WebSocketMessage) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	message.Target = userID
	sent := 0
	for _, conn := range m.connections {
		if conn.UserID != userID {
			continue
		}
		select {
		case conn.Send <- message:
			sent++
		default:
			m.logger.Warn("WebSocket buffer full, dropping message", zap.String("connection_id", conn.ID))
		}
	}

	if sent == 0 {
		return notifications.ErrUserNotConnected
	}
	return nil
}

// GetConnectionCount returns the number of active connections
func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// GetUserConnections returns all connections for a specific user
func (m *Manager) GetUserConnections(userID string) []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var connections []*Connection
	for _, conn := range m.connections {
		if conn.UserID == userID {
			connections = append(connections, conn)
		}
	}
	return connections
}

// Close closes the WebSocket manager and all connections
func (m *Manager) Close() {
	m.mu.Lock()
	conns := m.connections
	m.connections = make(map[string]*Connection)
	m.mu.Unlock()

	m.hub.once.Do(func() { close(m.hub.stop) })

	for _, conn := range conns {
		conn.Conn.Close()
	}
}
