package proxy

import (
	"testing"
)

func TestCandidatesOrderedByScore(t *testing.T) {
	pool := NewPool()
	pool.SetProxies([]string{"http://good:3128", "http://bad:3128", "http://new:3128"})

	for i := 0; i < 3; i++ {
		pool.Report("http://good:3128", true)
		pool.Report("http://bad:3128", false)
	}

	got := pool.Candidates(3)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	if got[0] != "http://good:3128" {
		t.Errorf("expected the succeeding proxy first, got %q", got[0])
	}
	if got[2] != "http://bad:3128" {
		t.Errorf("expected the failing proxy last, got %q", got[2])
	}
}

func TestCandidatesLimit(t *testing.T) {
	pool := NewPool()
	pool.SetProxies([]string{"http://a:3128", "http://b:3128", "http://c:3128"})

	if got := pool.Candidates(2); len(got) != 2 {
		t.Errorf("expected 2 candidates, got %d", len(got))
	}
	if got := pool.Candidates(10); len(got) != 3 {
		t.Errorf("expected all 3 candidates, got %d", len(got))
	}
	if got := pool.Candidates(0); got != nil {
		t.Errorf("expected nil for zero limit, got %v", got)
	}
}

func TestFailingProxyStaysInPool(t *testing.T) {
	pool := NewPool()
	pool.SetProxies([]string{"http://flaky:3128"})

	for i := 0; i < 100; i++ {
		pool.Report("http://flaky:3128", false)
	}

	got := pool.Candidates(1)
	if len(got) != 1 || got[0] != "http://flaky:3128" {
		t.Errorf("expected failing proxy to remain available, got %v", got)
	}
}

func TestSetProxiesKeepsSurvivorStats(t *testing.T) {
	pool := NewPool()
	pool.SetProxies([]string{"http://keep:3128", "http://drop:3128"})
	pool.Report("http://keep:3128", true)
	pool.Report("http://keep:3128", true)

	pool.SetProxies([]string{"http://keep:3128", "http://fresh:3128"})

	if pool.Len() != 2 {
		t.Fatalf("expected 2 proxies, got %d", pool.Len())
	}
	// The survivor outranks the newcomer because its successes carried over.
	got := pool.Candidates(2)
	if got[0] != "http://keep:3128" {
		t.Errorf("expected survivor first, got %q", got[0])
	}

	pool.Report("http://drop:3128", true)
	if pool.Len() != 2 {
		t.Errorf("reporting a dropped proxy must not resurrect it")
	}
}

func TestEmptyPool(t *testing.T) {
	pool := NewPool()
	if got := pool.Candidates(3); got != nil {
		t.Errorf("expected nil from empty pool, got %v", got)
	}
	pool.SetProxies([]string{"", ""})
	if pool.Len() != 0 {
		t.Errorf("expected blank addresses to be ignored, got %d entries", pool.Len())
	}
}
