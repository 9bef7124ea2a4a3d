// internal/registry/registry.go
package registry

import (
	"sync"

	"github.com/google/uuid"
)

type Role string

const (
	RoleViewer   Role = "viewer"
	RoleProducer Role = "producer"
)

// Sender is the outbound side of a live connection. Enqueue must never block;
// it reports whether the message was queued.
type Sender interface {
	Enqueue(msg []byte) bool
}

// Connection is one live socket. Role and SiteID are fixed for the
// connection's lifetime; SessionID is bound at most once by the pairing
// manager through BindSession.
type Connection struct {
	ID        string
	Role      Role
	SiteID    string
	SessionID string
	Send      Sender
}

// Registry tracks every live connection. It is the only shared map for
// connection state; all mutation goes through its methods.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

func New() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

func (r *Registry) Register(role Role, siteID string, send Sender) *Connection {
	conn := &Connection{
		ID:     uuid.NewString(),
		Role:   role,
		SiteID: siteID,
		Send:   send,
	}
	r.mu.Lock()
	r.conns[conn.ID] = conn
	r.mu.Unlock()
	return conn
}

// Unregister removes a connection. Removing an already-absent id is a no-op,
// so cleanup paths racing on a socket fault stay idempotent.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
}

func (r *Registry) Lookup(id string) (*Connection, bool) {
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()
	return conn, ok
}

// ViewersBySite returns the viewer connections currently subscribed to a site.
func (r *Registry) ViewersBySite(siteID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var viewers []*Connection
	for _, conn := range r.conns {
		if conn.Role == RoleViewer && conn.SiteID == siteID {
			viewers = append(viewers, conn)
		}
	}
	return viewers
}

// BindSession attaches a pairing session reference to a connection.
func (r *Registry) BindSession(connID, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[connID]
	if !ok {
		return false
	}
	conn.SessionID = sessionID
	return true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
