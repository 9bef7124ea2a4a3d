package history

import (
	"testing"
	"time"

	"aquahub/internal/data"
)

func pred(site string, seq int) data.Prediction {
	return data.Prediction{
		SiteID:    site,
		Timestamp: time.Date(2025, 6, 1, 0, 0, seq, 0, time.UTC),
		Status:    data.StatusClear,
		Turbidity: float64(seq),
	}
}

func TestRingEvictsOldestFirst(t *testing.T) {
	s := NewStore(3)

	for i := 1; i <= 5; i++ {
		s.Append(pred("SITE-01", i))
	}

	got := s.Recent("SITE-01", 0)
	if len(got) != 3 {
		t.Fatalf("expected capacity 3, got %d", len(got))
	}
	for i, want := range []float64{3, 4, 5} {
		if got[i].Turbidity != want {
			t.Fatalf("entry %d: expected seq %.0f, got %.0f", i, want, got[i].Turbidity)
		}
	}
}

func TestRecentPreservesInsertionOrder(t *testing.T) {
	s := NewStore(10)
	for i := 1; i <= 4; i++ {
		s.Append(pred("SITE-01", i))
	}

	got := s.Recent("SITE-01", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if !got[0].Timestamp.Before(got[1].Timestamp) {
		t.Fatal("entries must come back timestamp-monotonic")
	}
	if got[1].Turbidity != 4 {
		t.Fatalf("expected newest entry last, got seq %.0f", got[1].Turbidity)
	}
}

func TestSitesAreIsolated(t *testing.T) {
	s := NewStore(2)
	s.Append(pred("SITE-01", 1))
	s.Append(pred("SITE-01", 2))
	s.Append(pred("SITE-01", 3))
	s.Append(pred("SITE-02", 1))

	if got := len(s.Recent("SITE-02", 0)); got != 1 {
		t.Fatalf("SITE-02 must be unaffected by SITE-01 evictions, got %d entries", got)
	}

	latest, ok := s.Latest("SITE-01")
	if !ok || latest.Turbidity != 3 {
		t.Fatalf("unexpected latest for SITE-01: %+v ok=%v", latest, ok)
	}
	if _, ok := s.Latest("SITE-03"); ok {
		t.Fatal("unknown site must report no latest")
	}
}

func TestSitesListing(t *testing.T) {
	s := NewStore(5)
	s.Append(pred("SITE-02", 1))
	s.Append(pred("SITE-01", 1))

	sites := s.Sites()
	if len(sites) != 2 || sites[0] != "SITE-01" || sites[1] != "SITE-02" {
		t.Fatalf("unexpected sites %v", sites)
	}
}

func TestRecentReturnsCopy(t *testing.T) {
	s := NewStore(5)
	s.Append(pred("SITE-01", 1))

	got := s.Recent("SITE-01", 0)
	got[0].Turbidity = 99

	again := s.Recent("SITE-01", 0)
	if again[0].Turbidity == 99 {
		t.Fatal("Recent must not alias the internal ring")
	}
}
