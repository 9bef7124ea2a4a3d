// internal/incident/incident.go
package incident

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"aquahub/internal/data"
)

// Notifier dispatches an outbound emergency notification. Invocations are
// fire-and-forget: the outcome never feeds back into incident state.
type Notifier interface {
	Notify(ctx context.Context, siteID string, score float64) error
}

// AlertSink records an alert and fans it out to viewers.
type AlertSink interface {
	Record(severity data.Severity, siteID, message string) data.Alert
}

type Config struct {
	CriticalThresholdNTU   float64
	SafeFrameThreshold     int
	Cooldown               time.Duration
	WarningThresholdNTU    float64
	WarningDebounce        time.Duration
	WarningConfidenceFloor float64
	NotifyTimeout          time.Duration
}

// siteState is the per-site incident lock. Mutated only by that site's actor
// goroutine (single-writer invariant).
type siteState struct {
	locked        bool
	lockedAt      time.Time
	safeFrames    int
	lastWarningAt time.Time
}

type actor struct {
	siteID     string
	inbox      chan data.Prediction
	state      siteState
	lockedFlag atomic.Bool // mirror of state.locked for read-only peeks
}

// Manager runs one state machine per site. Predictions for the same site are
// applied one at a time through the site's actor; different sites run fully
// in parallel.
type Manager struct {
	cfg      Config
	notifier Notifier
	alerts   AlertSink
	now      func() time.Time

	mu     sync.Mutex
	actors map[string]*actor
	wg     sync.WaitGroup
	done   chan struct{}
}

func NewManager(cfg Config, notifier Notifier, alerts AlertSink) *Manager {
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 30 * time.Second
	}
	return &Manager{
		cfg:      cfg,
		notifier: notifier,
		alerts:   alerts,
		now:      time.Now,
		actors:   make(map[string]*actor),
		done:     make(chan struct{}),
	}
}

// Apply hands a prediction to the owning site actor, spawning it on first
// sight of the site.
func (m *Manager) Apply(p data.Prediction) {
	m.mu.Lock()
	a, ok := m.actors[p.SiteID]
	if !ok {
		a = &actor{siteID: p.SiteID, inbox: make(chan data.Prediction, 64)}
		m.actors[p.SiteID] = a
		m.wg.Add(1)
		go m.run(a)
	}
	m.mu.Unlock()

	select {
	case a.inbox <- p:
	case <-m.done:
	}
}

// Shutdown stops all site actors after draining queued predictions.
func (m *Manager) Shutdown() {
	close(m.done)
	m.wg.Wait()
}

func (m *Manager) run(a *actor) {
	defer m.wg.Done()
	for {
		select {
		case p := <-a.inbox:
			m.step(a, p)
		case <-m.done:
			for {
				select {
				case p := <-a.inbox:
					m.step(a, p)
				default:
					return
				}
			}
		}
	}
}

// step applies one prediction to a site's state. It runs only on the site's
// actor goroutine.
func (m *Manager) step(a *actor, p data.Prediction) {
	st := &a.state
	defer func() { a.lockedFlag.Store(st.locked) }()
	now := m.now()

	// Safe-frame counter updates unconditionally, locked or not.
	if p.Status == data.StatusClear {
		st.safeFrames++
	} else {
		st.safeFrames = 0
	}

	critical := p.Status == data.StatusPollutant && p.Turbidity > m.cfg.CriticalThresholdNTU
	switch {
	case critical:
		if !st.locked {
			st.locked = true
			st.lockedAt = now
			st.safeFrames = 0
			m.alerts.Record(data.SeverityCritical, p.SiteID, fmt.Sprintf(
				"Pollutant detected! Turbidity=%.2f NTU, pH=%.2f", p.Turbidity, p.PH))
			log.Printf("Incident: critical contamination at %s, locking and dispatching notification", p.SiteID)
			m.dispatch(p)
		}
		// Further critical frames while locked land in history only; the
		// notifier stays suppressed until the lock clears.

	case p.Status == data.StatusModerate && p.Turbidity > m.cfg.WarningThresholdNTU:
		if m.shouldWarn(st, p, now) {
			st.lastWarningAt = now
			m.alerts.Record(data.SeverityWarning, p.SiteID, fmt.Sprintf(
				"Elevated turbidity %.2f NTU", p.Turbidity))
		}
	}

	if st.locked &&
		now.Sub(st.lockedAt) >= m.cfg.Cooldown &&
		st.safeFrames >= m.cfg.SafeFrameThreshold {
		st.locked = false
		st.safeFrames = 0
		m.alerts.Record(data.SeverityInfo, p.SiteID, "Readings stabilized, incident lock released")
		log.Printf("Incident: %s stabilized, lock released", p.SiteID)
	}
}

// shouldWarn debounces warning alerts per site: a fixed quiet window plus a
// confidence floor. Warnings never touch the critical cooldown or the lock.
func (m *Manager) shouldWarn(st *siteState, p data.Prediction, now time.Time) bool {
	if p.Confidence < m.cfg.WarningConfidenceFloor {
		return false
	}
	return st.lastWarningAt.IsZero() || now.Sub(st.lastWarningAt) >= m.cfg.WarningDebounce
}

// dispatch fires the notifier without blocking the actor. A slow or failing
// notification never delays prediction processing, and its outcome never
// rolls back the recorded alert.
func (m *Manager) dispatch(p data.Prediction) {
	score := p.Turbidity / 100.0
	if score > 1.0 {
		score = 1.0
	}
	siteID := p.SiteID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.NotifyTimeout)
		defer cancel()
		if err := m.notifier.Notify(ctx, siteID, score); err != nil {
			log.Printf("Incident: notifier dispatch for %s failed: %v", siteID, err)
		}
	}()
}

// Locked reports whether a site currently holds an incident lock. Read-only
// peek for the API surface; may lag the actor by in-flight predictions.
func (m *Manager) Locked(siteID string) bool {
	m.mu.Lock()
	a, ok := m.actors[siteID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	// The actor is the single writer; a stale read here is acceptable.
	return a.lockedFlag.Load()
}
