// Package registry provides the connection registry tracking live clients.
package registry

import "sync"

// Conn is the transport handle of a connected client. Implementations are
// expected to be safe for concurrent sends and to fail (not block) once the
// underlying connection is gone.
type Conn interface {
	Send(data []byte) error
}

type client struct {
	conn Conn
	name string
}

// ClientRegistry tracks live connections, their display names and current
// room association. A client is associated with at most one room at a time.
type ClientRegistry struct {
	mu          sync.RWMutex
	clients     map[string]*client
	clientRooms map[string]string // clientID -> room code
}

// NewClientRegistry creates a new client registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients:     make(map[string]*client),
		clientRooms: make(map[string]string),
	}
}

// Add registers a connection under the given client ID.
func (r *ClientRegistry) Add(clientID string, conn Conn, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[clientID] = &client{conn: conn, name: name}
}

// Remove drops a connection and its room association.
func (r *ClientRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, clientID)
	delete(r.clientRooms, clientID)
}

// Send delivers data to a client. Returns false when the client is unknown
// or the connection is no longer writable; this is not fatal, the caller
// decides whether to care.
func (r *ClientRegistry) Send(clientID string, data []byte) bool {
	r.mu.RLock()
	c, ok := r.clients[clientID]
	r.mu.RUnlock()

	if !ok {
		return false
	}
	return c.conn.Send(data) == nil
}

// Name returns the display name registered for a client.
func (r *ClientRegistry) Name(clientID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[clientID]; ok {
		return c.name
	}
	return ""
}

// SetName updates the display name of a client.
func (r *ClientRegistry) SetName(clientID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[clientID]; ok {
		c.name = name
	}
}

// GetRoom returns the room code the client is in, if any.
func (r *ClientRegistry) GetRoom(clientID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.clientRooms[clientID]
	return code, ok
}

// SetRoom associates a client with a room.
func (r *ClientRegistry) SetRoom(clientID, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clientRooms[clientID] = code
}

// ClearRoom drops a client's room association.
func (r *ClientRegistry) ClearRoom(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clientRooms, clientID)
}

// IsInRoom reports whether the client is currently associated with a room.
func (r *ClientRegistry) IsInRoom(clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clientRooms[clientID]
	return ok
}

// Count returns the number of live connections.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
