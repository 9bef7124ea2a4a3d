// internal/classifier/simulated.go
package classifier

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"aquahub/internal/data"
)

// statusWeights skews synthetic readings towards clear/moderate with the
// occasional pollutant event.
var statusWeights = []struct {
	status data.Status
	weight int
}{
	{data.StatusClear, 55},
	{data.StatusModerate, 35},
	{data.StatusPollutant, 10},
}

// Simulated produces weighted random readings. It stands in for the external
// inference service on sites without a camera and in tests.
type Simulated struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimulated() *Simulated {
	return &Simulated{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *Simulated) Classify(ctx context.Context, frame []byte) (data.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return data.Prediction{}, err
	}
	return s.Reading(""), nil
}

// Reading generates one synthetic prediction for a site.
func (s *Simulated) Reading(siteID string) data.Prediction {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, sw := range statusWeights {
		total += sw.weight
	}
	pick := s.rnd.Intn(total)
	status := data.StatusClear
	for _, sw := range statusWeights {
		if pick < sw.weight {
			status = sw.status
			break
		}
		pick -= sw.weight
	}

	p := data.Prediction{
		SiteID:    siteID,
		Timestamp: time.Now().UTC(),
		Status:    status,
	}
	switch status {
	case data.StatusClear:
		p.Turbidity = round2(s.uniform(0.5, 4.0))
		p.PH = round2(s.uniform(6.8, 7.5))
		p.Confidence = round1(s.uniform(88, 99))
		p.ComplianceScore = round1(s.uniform(92, 100))
	case data.StatusModerate:
		p.Turbidity = round2(s.uniform(4.0, 25.0))
		p.PH = round2(s.uniform(6.0, 8.5))
		p.Confidence = round1(s.uniform(75, 92))
		p.ComplianceScore = round1(s.uniform(65, 90))
	default: // pollutant
		p.Turbidity = round2(s.uniform(25.0, 120.0))
		p.PH = round2(s.uniform(4.0, 10.5))
		p.Confidence = round1(s.uniform(82, 97))
		p.ComplianceScore = round1(s.uniform(10, 55))
	}
	return p
}

func (s *Simulated) uniform(lo, hi float64) float64 {
	return lo + s.rnd.Float64()*(hi-lo)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
