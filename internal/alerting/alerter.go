// internal/alerting/alerter.go
package alerting

import (
	"log"
	"sync"
	"time"

	"aquahub/internal/data"

	"github.com/google/uuid"
)

// Broadcaster pushes an alert to the viewers of its site.
type Broadcaster interface {
	BroadcastAlert(siteID string, a data.Alert)
}

// Alerter records alerts in a bounded in-memory buffer (oldest evicted first)
// and fans each one out over the hub.
type Alerter struct {
	mu       sync.RWMutex
	alerts   []data.Alert
	capacity int
	hub      Broadcaster
	now      func() time.Time
}

func NewAlerter(hub Broadcaster, capacity int) *Alerter {
	if capacity <= 0 {
		capacity = 200
	}
	return &Alerter{
		alerts:   make([]data.Alert, 0, capacity),
		capacity: capacity,
		hub:      hub,
		now:      time.Now,
	}
}

// Record creates an alert, stores it, and broadcasts it. The stored record is
// the durable fact; delivery is best-effort.
func (a *Alerter) Record(severity data.Severity, siteID, message string) data.Alert {
	alert := data.Alert{
		ID:        uuid.NewString(),
		SiteID:    siteID,
		Severity:  severity,
		Message:   message,
		Timestamp: a.now().UTC(),
	}

	a.mu.Lock()
	if len(a.alerts) >= a.capacity {
		a.alerts = a.alerts[1:]
	}
	a.alerts = append(a.alerts, alert)
	a.mu.Unlock()

	log.Printf("ALERT [%s] %s: %s", severity, siteID, message)
	if a.hub != nil {
		a.hub.BroadcastAlert(siteID, alert)
	}
	return alert
}

// Recent returns the newest alerts first, optionally filtered by site.
func (a *Alerter) Recent(siteID string, limit int) []data.Alert {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var result []data.Alert
	for i := len(a.alerts) - 1; i >= 0; i-- {
		if siteID != "" && a.alerts[i].SiteID != siteID {
			continue
		}
		result = append(result, a.alerts[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}

// Acknowledge marks an alert acknowledged and returns the updated record.
func (a *Alerter) Acknowledge(id string) (data.Alert, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.alerts {
		if a.alerts[i].ID == id {
			a.alerts[i].Acknowledged = true
			return a.alerts[i], true
		}
	}
	return data.Alert{}, false
}
