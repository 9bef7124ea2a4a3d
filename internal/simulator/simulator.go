// internal/simulator/simulator.go
package simulator

import (
	"context"
	"log"
	"time"

	"aquahub/internal/classifier"
	"aquahub/internal/data"
)

// Publisher is the ingest-side publish path: ring append, broadcast, incident
// handoff.
type Publisher interface {
	Publish(p data.Prediction)
}

// Simulator emits synthetic readings for sites without a camera so the
// dashboard and incident machinery stay live. It must never cover a camera
// site: mixing synthetic and real readings on one site corrupts its history.
type Simulator struct {
	sites    []string
	interval time.Duration
	source   *classifier.Simulated
	sink     Publisher
}

func New(sites []string, interval time.Duration, source *classifier.Simulated, sink Publisher) *Simulator {
	return &Simulator{
		sites:    sites,
		interval: interval,
		source:   source,
		sink:     sink,
	}
}

// Run emits one reading per site per tick until the context is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	if len(s.sites) == 0 {
		return
	}
	log.Printf("Simulator: emitting synthetic readings for %v every %s", s.sites, s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, site := range s.sites {
				s.sink.Publish(s.source.Reading(site))
			}
		}
	}
}
