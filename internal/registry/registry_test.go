package registry

import (
	"sync"
	"testing"
)

type nopSender struct{}

func (nopSender) Enqueue(msg []byte) bool { return true }

func TestRegisterAndLookup(t *testing.T) {
	r := New()

	conn := r.Register(RoleViewer, "SITE-01", nopSender{})
	if conn.ID == "" {
		t.Fatal("expected generated connection id")
	}

	got, ok := r.Lookup(conn.ID)
	if !ok || got != conn {
		t.Fatal("lookup must return the registered connection")
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Fatal("lookup of unknown id must fail")
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := New()
	conn := r.Register(RoleProducer, "SITE-01", nopSender{})

	r.Unregister(conn.ID)
	r.Unregister(conn.ID) // second unregister is a no-op
	r.Unregister("never-existed")

	if r.Count() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Count())
	}
}

func TestViewersBySiteFiltersRoleAndSite(t *testing.T) {
	r := New()
	v1 := r.Register(RoleViewer, "SITE-01", nopSender{})
	r.Register(RoleViewer, "SITE-02", nopSender{})
	r.Register(RoleProducer, "SITE-01", nopSender{})

	viewers := r.ViewersBySite("SITE-01")
	if len(viewers) != 1 || viewers[0].ID != v1.ID {
		t.Fatalf("expected only the SITE-01 viewer, got %d connections", len(viewers))
	}
}

func TestBindSession(t *testing.T) {
	r := New()
	conn := r.Register(RoleProducer, "SITE-01", nopSender{})

	if !r.BindSession(conn.ID, "sess-1") {
		t.Fatal("bind on live connection must succeed")
	}
	got, _ := r.Lookup(conn.ID)
	if got.SessionID != "sess-1" {
		t.Fatalf("expected bound session, got %q", got.SessionID)
	}
	if r.BindSession("missing", "sess-2") {
		t.Fatal("bind on unknown connection must fail")
	}
}

func TestConcurrentLifecycles(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := r.Register(RoleViewer, "SITE-01", nopSender{})
			r.ViewersBySite("SITE-01")
			r.Unregister(conn.ID)
		}()
	}
	wg.Wait()
	if r.Count() != 0 {
		t.Fatalf("expected all connections unregistered, got %d", r.Count())
	}
}
