// internal/ingest/ingest.go
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"aquahub/internal/classifier"
	"aquahub/internal/data"
	"aquahub/internal/history"
)

var (
	ErrClassificationTimeout = errors.New("classification timed out")
	ErrClassificationError   = errors.New("classification error")
)

// Broadcaster fans a prediction (and optionally the raw frame relay) out to
// viewer connections.
type Broadcaster interface {
	BroadcastPrediction(siteID string, p data.Prediction)
	BroadcastLiveStream(siteID string, image string, p data.Prediction)
}

// IncidentSink receives every prediction for incident evaluation. Must not
// block the caller.
type IncidentSink interface {
	Apply(p data.Prediction)
}

// Pipeline accepts frames from producer connections, throttles them per
// connection, classifies accepted frames, and publishes the result.
type Pipeline struct {
	classifier  classifier.Classifier
	history     *history.Store
	broadcaster Broadcaster
	incidents   IncidentSink

	minInterval time.Duration
	timeout     time.Duration
	now         func() time.Time

	mu           sync.Mutex
	lastAccepted map[string]time.Time // producer connection id -> last accepted frame
	throttled    atomic.Int64

	siteMu sync.Mutex
	sites  map[string]*sync.Mutex // per-site publish locks, never a global one
}

func NewPipeline(cls classifier.Classifier, store *history.Store, b Broadcaster, inc IncidentSink, minInterval, timeout time.Duration) *Pipeline {
	return &Pipeline{
		classifier:   cls,
		history:      store,
		broadcaster:  b,
		incidents:    inc,
		minInterval:  minInterval,
		timeout:      timeout,
		now:          time.Now,
		lastAccepted: make(map[string]time.Time),
		sites:        make(map[string]*sync.Mutex),
	}
}

// Ingest processes one frame from a producer connection. Over-rate frames are
// dropped silently (counted); classifier failures drop the frame and leave a
// gap in the site history rather than guessing values. The classifier call is
// detached from the connection's lifetime: a frame already in flight when its
// socket closes still lands in site state.
func (pl *Pipeline) Ingest(producerConnID, siteID, image string) error {
	if !pl.accept(producerConnID) {
		return nil
	}

	frame, err := data.DecodeImage(image)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrClassificationError, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pl.timeout)
	defer cancel()

	p, err := pl.classifier.Classify(ctx, frame)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: site %s", ErrClassificationTimeout, siteID)
		}
		return fmt.Errorf("%w: %v", ErrClassificationError, err)
	}

	p.SiteID = siteID
	if p.Timestamp.IsZero() {
		p.Timestamp = pl.now().UTC()
	}

	pl.publish(p, image)
	return nil
}

// Publish appends a prediction to the site ring and hands it to broadcast and
// incident evaluation, in that order, under the site's publish lock. Used
// directly by the simulator, which has no frame to relay.
func (pl *Pipeline) Publish(p data.Prediction) {
	pl.publish(p, "")
}

func (pl *Pipeline) publish(p data.Prediction, image string) {
	mu := pl.siteLock(p.SiteID)
	mu.Lock()
	defer mu.Unlock()

	pl.history.Append(p)
	if image != "" {
		pl.broadcaster.BroadcastLiveStream(p.SiteID, image, p)
	}
	pl.broadcaster.BroadcastPrediction(p.SiteID, p)
	// Hand to the site actor last; its inbox is buffered and the notifier is
	// invoked fire-and-forget, so this never stalls the broadcast path.
	pl.incidents.Apply(p)
}

// accept applies the per-connection frame throttle.
func (pl *Pipeline) accept(producerConnID string) bool {
	now := pl.now()
	pl.mu.Lock()
	defer pl.mu.Unlock()

	last, seen := pl.lastAccepted[producerConnID]
	if seen && now.Sub(last) < pl.minInterval {
		pl.throttled.Add(1)
		return false
	}
	pl.lastAccepted[producerConnID] = now
	return true
}

// Forget clears throttle state for a closed connection.
func (pl *Pipeline) Forget(producerConnID string) {
	pl.mu.Lock()
	delete(pl.lastAccepted, producerConnID)
	pl.mu.Unlock()
}

// ThrottledCount reports how many frames were dropped by the throttle.
func (pl *Pipeline) ThrottledCount() int64 {
	return pl.throttled.Load()
}

func (pl *Pipeline) siteLock(siteID string) *sync.Mutex {
	pl.siteMu.Lock()
	defer pl.siteMu.Unlock()
	mu, ok := pl.sites[siteID]
	if !ok {
		mu = &sync.Mutex{}
		pl.sites[siteID] = mu
	}
	return mu
}
