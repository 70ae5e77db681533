package simcache

import (
	"sync"
	"testing"
)

func TestGetOrComputeMemoizes(t *testing.T) {
	c, err := New(16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	calls := 0
	compute := func() float64 {
		calls++
		return 3.5
	}

	key := Key{Pressure: "temperature", Patch: 1, Species: 2}
	for i := 0; i < 3; i++ {
		if got := c.GetOrCompute(key, compute); got != 3.5 {
			t.Errorf("GetOrCompute = %v, want 3.5", got)
		}
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Entries != 1 {
		t.Errorf("stats = %+v", s)
	}
	if hr := s.HitRate(); hr < 0.66 || hr > 0.67 {
		t.Errorf("hit rate = %v", hr)
	}
}

func TestDistinctKeys(t *testing.T) {
	c, _ := New(16)
	a := c.GetOrCompute(Key{Pressure: "x", Species: 1}, func() float64 { return 1 })
	b := c.GetOrCompute(Key{Pressure: "x", Species: 2}, func() float64 { return 2 })
	if a == b {
		t.Error("distinct keys shared a score")
	}
}

func TestPurge(t *testing.T) {
	c, _ := New(4)
	c.GetOrCompute(Key{Pressure: "x"}, func() float64 { return 1 })
	c.Purge()

	if s := c.Stats(); s != (Stats{}) {
		t.Errorf("stats after purge = %+v", s)
	}
	calls := 0
	c.GetOrCompute(Key{Pressure: "x"}, func() float64 { calls++; return 1 })
	if calls != 1 {
		t.Error("purged entry was still served")
	}
}

func TestEviction(t *testing.T) {
	c, _ := New(2)
	for i := uint32(0); i < 5; i++ {
		c.GetOrCompute(Key{Species: i}, func() float64 { return float64(i) })
	}
	if got := c.Stats().Entries; got != 2 {
		t.Errorf("entries = %d, want 2", got)
	}
}

func TestNilCache(t *testing.T) {
	var c *Cache
	if got := c.GetOrCompute(Key{}, func() float64 { return 9 }); got != 9 {
		t.Errorf("nil cache GetOrCompute = %v", got)
	}
	c.Purge()
	if s := c.Stats(); s != (Stats{}) {
		t.Errorf("nil cache stats = %+v", s)
	}
}

func TestNewRejectsBadSize(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Error("expected error for zero size")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := New(64)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := uint32(0); i < 100; i++ {
				key := Key{Pressure: "p", Species: i % 10}
				want := float64(i % 10)
				if got := c.GetOrCompute(key, func() float64 { return want }); got != want {
					t.Errorf("GetOrCompute(%v) = %v, want %v", key, got, want)
				}
			}
		}()
	}
	wg.Wait()

	s := c.Stats()
	if s.Hits+s.Misses != 800 {
		t.Errorf("lookups = %d, want 800", s.Hits+s.Misses)
	}
}
