// internal/history/history.go
package history

import (
	"sort"
	"sync"

	"aquahub/internal/data"
)

// Store keeps the most recent predictions per site in bounded rings. When a
// ring is full the oldest entry is evicted first. Insertion order is the
// production order, so reads come back timestamp-monotonic.
type Store struct {
	mu       sync.RWMutex
	rings    map[string][]data.Prediction
	capacity int
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = 60
	}
	return &Store{
		rings:    make(map[string][]data.Prediction),
		capacity: capacity,
	}
}

func (s *Store) Append(p data.Prediction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring := s.rings[p.SiteID]
	if len(ring) >= s.capacity {
		ring = ring[1:]
	}
	s.rings[p.SiteID] = append(ring, p)
}

// Recent returns up to count predictions for a site, oldest first. A count of
// zero or less returns the whole ring.
func (s *Store) Recent(siteID string, count int) []data.Prediction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ring := s.rings[siteID]
	if count <= 0 || count > len(ring) {
		count = len(ring)
	}
	// Return a copy so callers never alias the ring.
	result := make([]data.Prediction, count)
	copy(result, ring[len(ring)-count:])
	return result
}

func (s *Store) Latest(siteID string) (data.Prediction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ring := s.rings[siteID]
	if len(ring) == 0 {
		return data.Prediction{}, false
	}
	return ring[len(ring)-1], true
}

// Sites lists every site with at least one prediction, sorted for stable
// summary output.
func (s *Store) Sites() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sites := make([]string, 0, len(s.rings))
	for site, ring := range s.rings {
		if len(ring) > 0 {
			sites = append(sites, site)
		}
	}
	sort.Strings(sites)
	return sites
}
