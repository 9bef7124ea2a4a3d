// internal/pairing/pairing.go
package pairing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"sync"
	"time"

	"aquahub/internal/data"
)

type State int

const (
	StateCreated State = iota
	StatePaired
	StateClosed
)

// Session binds one viewer connection to one future producer connection. The
// id doubles as the pairing token handed to the camera (QR payload), so it is
// generated from crypto/rand rather than a uuid.
type Session struct {
	ID             string
	ViewerConnID   string
	ProducerConnID string
	SiteID         string
	State          State
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Messenger delivers a message to a single connection by id.
type Messenger interface {
	SendTo(connID string, msg []byte) bool
}

// Manager owns all pairing sessions. Expiry is enforced lazily on every
// lookup; Run additionally sweeps dead sessions to bound memory.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	ttl       time.Duration
	messenger Messenger
	now       func() time.Time
}

func NewManager(ttl time.Duration, messenger Messenger) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		ttl:       ttl,
		messenger: messenger,
		now:       time.Now,
	}
}

func newToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b)
}

// Create opens a new session owned by a viewer connection. A viewer may hold
// any number of concurrent sessions.
func (m *Manager) Create(viewerConnID string) (*Session, error) {
	if viewerConnID == "" {
		return nil, ErrViewerNotConnected
	}
	now := m.now()
	sess := &Session{
		ID:           newToken(),
		ViewerConnID: viewerConnID,
		State:        StateCreated,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.ttl),
	}
	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return sess, nil
}

// Join binds a producer connection to a session. The token is redeemable
// exactly once: a second join fails with ErrSessionAlreadyPaired and the
// original producer stays bound. On success the owning viewer receives a
// SESSION_CONNECTED message.
func (m *Manager) Join(sessionID, producerConnID, siteID string) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if sess.State == StateClosed {
		m.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if m.now().After(sess.ExpiresAt) {
		sess.State = StateClosed
		m.mu.Unlock()
		return nil, ErrSessionExpired
	}
	if sess.State == StatePaired {
		m.mu.Unlock()
		return nil, ErrSessionAlreadyPaired
	}
	sess.ProducerConnID = producerConnID
	sess.SiteID = siteID
	sess.State = StatePaired
	viewerID := sess.ViewerConnID
	m.mu.Unlock()

	if !m.messenger.SendTo(viewerID, data.MarshalSessionConnected(sess.ID, producerConnID, siteID)) {
		log.Printf("Pairing: viewer %s unreachable for session %s", viewerID, sess.ID)
	}
	return sess, nil
}

// Lookup returns a session if it is still live. A session past its expiry is
// closed on the spot and reported as not found there after.
func (m *Manager) Lookup(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok || sess.State == StateClosed {
		return nil, ErrSessionNotFound
	}
	if m.now().After(sess.ExpiresAt) {
		sess.State = StateClosed
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// CloseByConn closes every session the connection participates in, as viewer
// or producer, and notifies the counterpart. The tokens become permanently
// unusable.
func (m *Manager) CloseByConn(connID string) {
	type notice struct {
		target    string
		sessionID string
	}
	var notices []notice

	m.mu.Lock()
	for _, sess := range m.sessions {
		if sess.State == StateClosed {
			continue
		}
		var counterpart string
		switch connID {
		case sess.ViewerConnID:
			counterpart = sess.ProducerConnID
		case sess.ProducerConnID:
			counterpart = sess.ViewerConnID
		default:
			continue
		}
		sess.State = StateClosed
		if counterpart != "" {
			notices = append(notices, notice{target: counterpart, sessionID: sess.ID})
		}
	}
	m.mu.Unlock()

	for _, n := range notices {
		m.messenger.SendTo(n.target, data.MarshalSessionDisconnected(n.sessionID))
	}
}

// Sweep drops closed and expired sessions. Lazy expiry at lookup remains
// authoritative; this only reclaims memory.
func (m *Manager) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, sess := range m.sessions {
		if sess.State == StateClosed || now.After(sess.ExpiresAt) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps periodically until the context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	interval := m.ttl / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				log.Printf("Pairing: swept %d dead sessions", n)
			}
		}
	}
}
