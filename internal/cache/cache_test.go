package cache

import (
	"strconv"
	"sync"
	"testing"
)

func TestCache_GetSet(t *testing.T) {
	c := New[string, int](10)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get on empty cache should miss")
	}

	c.Set("a", 1)
	c.Set("a", 2)
	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Errorf("Get(a) = %d, %v; want 2, true", v, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCache_GetOrCreateOnce(t *testing.T) {
	c := New[uint64, string](0)

	var calls int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetOrCreate(42, func() string {
				mu.Lock()
				calls++
				mu.Unlock()
				return "unit"
			})
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
	s := c.Stats()
	if s.Hits != 15 || s.Misses != 1 {
		t.Errorf("Stats() hits=%d misses=%d, want 15/1", s.Hits, s.Misses)
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int, int](4)
	var evicted []int
	c.OnEvict(func(k, _ int) { evicted = append(evicted, k) })

	for i := range 4 {
		c.Set(i, i)
	}
	// Touch 0 so 1 becomes the oldest.
	c.Get(0)
	c.Set(4, 4)

	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 after eviction", c.Len())
	}
	if _, ok := c.Get(0); !ok {
		t.Error("recently used key 0 was evicted")
	}
	if len(evicted) != 2 || evicted[0] != 1 || evicted[1] != 2 {
		t.Errorf("evicted = %v, want [1 2]", evicted)
	}
	if c.Stats().Evictions != 2 {
		t.Errorf("Evictions = %d, want 2", c.Stats().Evictions)
	}
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := New[string, int](0)
	var evicted int
	c.OnEvict(func(string, int) { evicted++ })

	for i := range 5 {
		c.Set(strconv.Itoa(i), i)
	}
	if !c.Delete("3") {
		t.Error("Delete(3) = false, want true")
	}
	if c.Delete("3") {
		t.Error("second Delete(3) = true, want false")
	}
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", c.Len())
	}
	if evicted != 5 {
		t.Errorf("OnEvict called %d times, want 5", evicted)
	}
}

func TestCache_HitRate(t *testing.T) {
	c := New[int, int](0)
	if c.Stats().HitRate != 0 {
		t.Error("HitRate before lookups should be 0")
	}
	c.Set(1, 1)
	c.Get(1)
	c.Get(2)
	if got := c.Stats().HitRate; got != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", got)
	}
}

func BenchmarkCacheGetOrCreate(b *testing.B) {
	c := New[uint64, int](1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.GetOrCreate(uint64(i%100), func() int { return i })
	}
}
