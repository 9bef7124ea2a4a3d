package classifier

import (
	"context"
	"testing"

	"aquahub/internal/data"
)

func TestSimulatedReadingsStayInRange(t *testing.T) {
	s := NewSimulated()

	for i := 0; i < 200; i++ {
		p := s.Reading("SITE-09")
		if p.SiteID != "SITE-09" {
			t.Fatalf("site stamp missing: %+v", p)
		}
		switch p.Status {
		case data.StatusClear, data.StatusModerate, data.StatusPollutant:
		default:
			t.Fatalf("unexpected status %q", p.Status)
		}
		if p.Turbidity < 0 {
			t.Fatalf("negative turbidity %v", p.Turbidity)
		}
		if p.Confidence < 0 || p.Confidence > 100 {
			t.Fatalf("confidence out of range: %v", p.Confidence)
		}
		if p.ComplianceScore < 0 || p.ComplianceScore > 100 {
			t.Fatalf("compliance out of range: %v", p.ComplianceScore)
		}
	}
}

func TestSimulatedClassifyHonorsContext(t *testing.T) {
	s := NewSimulated()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Classify(ctx, []byte("frame")); err == nil {
		t.Fatal("cancelled context must fail")
	}

	if _, err := s.Classify(context.Background(), []byte("frame")); err != nil {
		t.Fatalf("classify: %v", err)
	}
}
