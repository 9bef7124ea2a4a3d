package incident

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"aquahub/internal/data"
)

type fakeNotifier struct {
	calls atomic.Int64
	fired chan string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{fired: make(chan string, 16)}
}

func (f *fakeNotifier) Notify(ctx context.Context, siteID string, score float64) error {
	f.calls.Add(1)
	f.fired <- siteID
	return nil
}

func (f *fakeNotifier) waitForCall(t *testing.T) {
	t.Helper()
	select {
	case <-f.fired:
	case <-time.After(time.Second):
		t.Fatal("notifier was not invoked")
	}
}

type fakeSink struct {
	mu     sync.Mutex
	alerts []data.Alert
}

func (f *fakeSink) Record(severity data.Severity, siteID, message string) data.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := data.Alert{Severity: severity, SiteID: siteID, Message: message}
	f.alerts = append(f.alerts, a)
	return a
}

func (f *fakeSink) count(severity data.Severity) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.alerts {
		if a.Severity == severity {
			n++
		}
	}
	return n
}

func testConfig() Config {
	return Config{
		CriticalThresholdNTU:   45,
		SafeFrameThreshold:     10,
		Cooldown:               10 * time.Minute,
		WarningThresholdNTU:    15,
		WarningDebounce:        30 * time.Second,
		WarningConfidenceFloor: 60,
	}
}

// harness drives the state machine synchronously through step, as the site
// actor would, with a controllable clock.
type harness struct {
	m        *Manager
	a        *actor
	notifier *fakeNotifier
	sink     *fakeSink
	now      time.Time
}

func newHarness(cfg Config) *harness {
	h := &harness{
		notifier: newFakeNotifier(),
		sink:     &fakeSink{},
		now:      time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	h.m = NewManager(cfg, h.notifier, h.sink)
	h.m.now = func() time.Time { return h.now }
	h.a = &actor{siteID: "SITE-01", inbox: make(chan data.Prediction, 64)}
	return h
}

func (h *harness) feed(status data.Status, turbidity float64) {
	h.m.step(h.a, data.Prediction{
		SiteID:     "SITE-01",
		Timestamp:  h.now,
		Status:     status,
		Turbidity:  turbidity,
		Confidence: 90,
	})
}

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

func TestCriticalLocksAndNotifiesOnce(t *testing.T) {
	h := newHarness(testConfig())

	h.feed(data.StatusClear, 2)
	h.feed(data.StatusClear, 2)
	h.feed(data.StatusPollutant, 50)

	h.notifier.waitForCall(t)
	if !h.a.state.locked {
		t.Fatal("expected incident lock after critical frame")
	}
	if got := h.sink.count(data.SeverityCritical); got != 1 {
		t.Fatalf("expected 1 critical alert, got %d", got)
	}

	// Further critical frames are duplicate-suppressed.
	h.feed(data.StatusPollutant, 80)
	h.feed(data.StatusPollutant, 90)
	time.Sleep(20 * time.Millisecond)
	if got := h.notifier.calls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 notifier call, got %d", got)
	}
	if got := h.sink.count(data.SeverityCritical); got != 1 {
		t.Fatalf("locked incidents must not record duplicate critical alerts, got %d", got)
	}
}

func TestLockReleasesAfterCooldownAndSafeFrames(t *testing.T) {
	h := newHarness(testConfig())

	h.feed(data.StatusClear, 2)
	h.feed(data.StatusClear, 2)
	h.feed(data.StatusPollutant, 50)
	h.notifier.waitForCall(t)

	// Cooldown elapses before the safe frames arrive.
	h.advance(11 * time.Minute)
	for i := 0; i < 9; i++ {
		h.feed(data.StatusClear, 2)
		if !h.a.state.locked {
			t.Fatalf("lock released early at safe frame %d", i+1)
		}
	}
	h.feed(data.StatusClear, 2)
	if h.a.state.locked {
		t.Fatal("lock must release exactly at the 10th consecutive safe frame")
	}
	if got := h.notifier.calls.Load(); got != 1 {
		t.Fatalf("release must not re-invoke notifier, got %d calls", got)
	}
}

func TestLockHeldUntilCooldownEvenWithSafeFrames(t *testing.T) {
	h := newHarness(testConfig())

	h.feed(data.StatusPollutant, 50)
	h.notifier.waitForCall(t)

	// Ten safe frames well inside the cooldown window.
	for i := 0; i < 10; i++ {
		h.advance(time.Second)
		h.feed(data.StatusClear, 2)
	}
	if !h.a.state.locked {
		t.Fatal("lock must hold while cooldown has not elapsed")
	}

	// Once the cooldown has elapsed, the next clear frame releases it.
	h.advance(10 * time.Minute)
	h.feed(data.StatusClear, 2)
	if h.a.state.locked {
		t.Fatal("lock must release once both conditions hold")
	}
}

func TestSafeCounterResetsOnAnyNonClearFrame(t *testing.T) {
	h := newHarness(testConfig())

	h.feed(data.StatusPollutant, 50)
	h.notifier.waitForCall(t)
	h.advance(11 * time.Minute)

	for i := 0; i < 9; i++ {
		h.feed(data.StatusClear, 2)
	}
	if h.a.state.safeFrames != 9 {
		t.Fatalf("expected 9 safe frames, got %d", h.a.state.safeFrames)
	}

	// A moderate frame resets the counter even while locked.
	h.feed(data.StatusModerate, 10)
	if h.a.state.safeFrames != 0 {
		t.Fatalf("safe counter must reset on non-clear frame, got %d", h.a.state.safeFrames)
	}
	if !h.a.state.locked {
		t.Fatal("lock must survive the reset")
	}

	// The run starts over.
	for i := 0; i < 10; i++ {
		h.feed(data.StatusClear, 2)
	}
	if h.a.state.locked {
		t.Fatal("lock must release after a fresh run of 10 safe frames")
	}
}

func TestSubThresholdPollutantDoesNotLock(t *testing.T) {
	h := newHarness(testConfig())

	h.feed(data.StatusPollutant, 40) // below 45 NTU
	time.Sleep(20 * time.Millisecond)
	if h.a.state.locked {
		t.Fatal("sub-threshold pollutant must not lock")
	}
	if got := h.notifier.calls.Load(); got != 0 {
		t.Fatalf("notifier must not fire below threshold, got %d calls", got)
	}
}

func TestModerateRecordsWarningWithoutNotifier(t *testing.T) {
	h := newHarness(testConfig())

	h.feed(data.StatusModerate, 20)
	if got := h.sink.count(data.SeverityWarning); got != 1 {
		t.Fatalf("expected 1 warning alert, got %d", got)
	}
	time.Sleep(20 * time.Millisecond)
	if got := h.notifier.calls.Load(); got != 0 {
		t.Fatalf("warnings must never invoke the notifier, got %d calls", got)
	}
}

func TestWarningDebounce(t *testing.T) {
	h := newHarness(testConfig())

	h.feed(data.StatusModerate, 20)
	h.advance(5 * time.Second)
	h.feed(data.StatusModerate, 22)
	if got := h.sink.count(data.SeverityWarning); got != 1 {
		t.Fatalf("warning inside debounce window must be suppressed, got %d", got)
	}

	h.advance(30 * time.Second)
	h.feed(data.StatusModerate, 22)
	if got := h.sink.count(data.SeverityWarning); got != 2 {
		t.Fatalf("expected a second warning after the window, got %d", got)
	}
}

func TestWarningConfidenceFloor(t *testing.T) {
	h := newHarness(testConfig())

	h.m.step(h.a, data.Prediction{
		SiteID: "SITE-01", Status: data.StatusModerate, Turbidity: 20, Confidence: 40,
	})
	if got := h.sink.count(data.SeverityWarning); got != 0 {
		t.Fatalf("low-confidence moderate frame must not warn, got %d", got)
	}
}

func TestWarningIndependentOfLockState(t *testing.T) {
	h := newHarness(testConfig())

	h.feed(data.StatusPollutant, 50)
	h.notifier.waitForCall(t)

	h.advance(time.Minute)
	h.feed(data.StatusModerate, 20)
	if got := h.sink.count(data.SeverityWarning); got != 1 {
		t.Fatalf("moderate reading while locked must still warn, got %d", got)
	}
}

func TestSitesRunIndependently(t *testing.T) {
	h := newHarness(testConfig())
	m := h.m

	m.Apply(data.Prediction{SiteID: "SITE-A", Status: data.StatusPollutant, Turbidity: 90, Confidence: 95})
	m.Apply(data.Prediction{SiteID: "SITE-B", Status: data.StatusClear, Turbidity: 1, Confidence: 95})

	h.notifier.waitForCall(t)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if m.Locked("SITE-A") {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !m.Locked("SITE-A") {
		t.Fatal("SITE-A should be locked")
	}
	if m.Locked("SITE-B") {
		t.Fatal("SITE-B must be unaffected by SITE-A's incident")
	}
	m.Shutdown()
}

func TestRelockAfterReleaseNotifiesAgain(t *testing.T) {
	h := newHarness(testConfig())

	h.feed(data.StatusPollutant, 50)
	h.notifier.waitForCall(t)

	h.advance(11 * time.Minute)
	for i := 0; i < 10; i++ {
		h.feed(data.StatusClear, 2)
	}
	if h.a.state.locked {
		t.Fatal("expected release")
	}

	// A fresh incident is a fresh notification.
	h.feed(data.StatusPollutant, 60)
	h.notifier.waitForCall(t)
	if got := h.notifier.calls.Load(); got != 2 {
		t.Fatalf("expected 2 notifier calls across 2 incidents, got %d", got)
	}
}
