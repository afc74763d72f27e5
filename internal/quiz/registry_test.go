package quiz

import (
	"testing"
	"time"

	"github.com/medrevise/medrevise/internal/scoring"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	s := newTestSession(ModeAll)
	r.Put(s)
	if got, ok := r.Get("s1"); !ok || got != s {
		t.Fatal("stored session not found")
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
	if got := r.ForUser("u1"); len(got) != 1 {
		t.Fatalf("sessions for u1 = %d, want 1", len(got))
	}
	if got := r.ForUser("someone-else"); len(got) != 0 {
		t.Fatalf("sessions for stranger = %d, want 0", len(got))
	}
	r.Delete("s1")
	if _, ok := r.Get("s1"); ok {
		t.Fatal("deleted session still present")
	}
}

func TestRegistryPruneIdle(t *testing.T) {
	r := NewRegistry()
	stale := newTestSession(ModeAll)
	stale.touchedAt = time.Now().Add(-2 * time.Hour)
	r.Put(stale)

	fresh := NewSession("s2", "u1", "lec1", lectureItems(), ModeAll, scoring.New(), DefaultCaseConfig())
	r.Put(fresh)

	if n := r.PruneIdle(time.Hour); n != 1 {
		t.Fatalf("pruned %d, want 1", n)
	}
	if _, ok := r.Get("s1"); ok {
		t.Fatal("stale session should be gone")
	}
	if _, ok := r.Get("s2"); !ok {
		t.Fatal("fresh session should survive")
	}
}
