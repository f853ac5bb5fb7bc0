package server

import (
	"sync"

	"github.com/hactazia/quiznet/internal/metrics"
)

// MaxClients caps concurrent connections; the accept loop drops anything
// past it.
const MaxClients = 100

// Registry tracks every connected client by id. It is the delivery fabric
// the game engine broadcasts through. Thread-safe for concurrent access.
type Registry struct {
	mu      sync.RWMutex
	clients map[int64]*Client // clientID → Client
}

// NewRegistry creates an empty client registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[int64]*Client, MaxClients),
	}
}

// Add registers a client. It refuses once MaxClients are connected.
func (r *Registry) Add(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clients) >= MaxClients {
		return false
	}
	r.clients[c.ID()] = c
	metrics.ConnectedClients.Inc()
	return true
}

// Remove unregisters a client. Removing an unknown id is a no-op.
func (r *Registry) Remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; ok {
		delete(r.clients, id)
		metrics.ConnectedClients.Dec()
	}
}

// Get returns the client with the given id, or nil.
func (r *Registry) Get(id int64) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[id]
}

// Count returns the number of connected clients.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// ForEach iterates over all connected clients until fn returns false.
func (r *Registry) ForEach(fn func(*Client) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		if !fn(c) {
			return
		}
	}
}

// Send delivers an event payload to one client. Unknown ids are dropped:
// the client may have disconnected between snapshot and delivery.
func (r *Registry) Send(clientID int64, payload []byte) {
	if c := r.Get(clientID); c != nil {
		c.Send(payload)
	}
}

// SessionEnded clears the client's session binding when its session is
// torn down.
func (r *Registry) SessionEnded(clientID int64) {
	if c := r.Get(clientID); c != nil {
		c.SetSessionID(0)
	}
}
