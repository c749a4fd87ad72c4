package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection is a single authenticated gateway connection. A user may hold
// several at once (one per device or tab); each gets its own id.
type Connection struct {
	ID        string    // connection id (UUID)
	UserID    string    // authenticated caller
	Conn      net.Conn  // underlying TCP connection
	CreatedAt time.Time // when the connection was established
	LastPing  time.Time  // last frame or pong received
	writeMu   sync.Mutex // serializes outbound frames
}

// Write sends a WebSocket text frame. The mutex keeps concurrent event
// deliveries from interleaving frame bytes.
func (c *Connection) Write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// WritePing sends a protocol-level ping frame.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}

// WritePong answers a client ping.
func (c *Connection) WritePong() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPongFrame(nil))
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// Manager is a thread-safe registry of live connections, indexed by
// connection id and by user.
type Manager struct {
	mu     sync.RWMutex
	byID   map[string]*Connection
	byUser map[string]map[string]*Connection // user id -> conn id -> conn
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		byID:   make(map[string]*Connection),
		byUser: make(map[string]map[string]*Connection),
	}
}

// Add registers a connection under both indexes.
func (m *Manager) Add(c *Connection) {
	m.mu.Lock()
	m.byID[c.ID] = c
	if m.byUser[c.UserID] == nil {
		m.byUser[c.UserID] = make(map[string]*Connection)
	}
	m.byUser[c.UserID][c.ID] = c
	m.mu.Unlock()
}

// Remove deletes and closes the connection. It returns (found, lastForUser):
// lastForUser is true when the user has no remaining connections, which is
// when the gateway announces them offline.
func (m *Manager) Remove(id string) (bool, bool) {
	m.mu.Lock()
	c, ok := m.byID[id]
	lastForUser := false
	if ok {
		delete(m.byID, id)
		userConns := m.byUser[c.UserID]
		delete(userConns, id)
		if len(userConns) == 0 {
			delete(m.byUser, c.UserID)
			lastForUser = true
		}
	}
	m.mu.Unlock()

	if ok {
		c.Close()
	}
	return ok, lastForUser
}

// Get returns the connection for the given id, or nil.
func (m *Manager) Get(id string) *Connection {
	m.mu.RLock()
	c := m.byID[id]
	m.mu.RUnlock()
	return c
}

// Count returns the number of live connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	n := len(m.byID)
	m.mu.RUnlock()
	return n
}

// All returns a snapshot of all current connections, safe to iterate
// without holding the lock.
func (m *Manager) All() []*Connection {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.byID))
	for _, c := range m.byID {
		conns = append(conns, c)
	}
	m.mu.RUnlock()
	return conns
}
