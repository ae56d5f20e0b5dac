package opencl

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/multierr"

	"github.com/gogpu/opencl/driver"
)

// Tracker observes resource lifetimes. Implementations must be safe for
// concurrent use.
type Tracker interface {
	// Created is called once a wrapper owns a new native handle.
	Created(kind Kind, r Resource)
	// Released is called after the native handle h has been released.
	Released(kind Kind, h driver.Handle)
}

type nopTracker struct{}

func (nopTracker) Created(Kind, Resource)       {}
func (nopTracker) Released(Kind, driver.Handle) {}

// KindStats counts resources of one kind.
type KindStats struct {
	Created  int
	Released int
}

// Live returns the number of resources not yet released.
func (s KindStats) Live() int { return s.Created - s.Released }

type liveEntry struct {
	seq  uint64
	kind Kind
	res  Resource
}

// LiveSet is a Tracker that keeps every live resource. It is meant for
// tests and leak diagnostics.
type LiveSet struct {
	mu    sync.Mutex
	seq   uint64
	live  map[driver.Handle]liveEntry
	stats map[Kind]KindStats
}

var _ Tracker = (*LiveSet)(nil)

// NewLiveSet creates an empty LiveSet.
func NewLiveSet() *LiveSet {
	return &LiveSet{
		live:  make(map[driver.Handle]liveEntry),
		stats: make(map[Kind]KindStats),
	}
}

// Created implements Tracker.
func (s *LiveSet) Created(kind Kind, r Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.live[r.Handle()] = liveEntry{seq: s.seq, kind: kind, res: r}
	st := s.stats[kind]
	st.Created++
	s.stats[kind] = st
}

// Released implements Tracker.
func (s *LiveSet) Released(kind Kind, h driver.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.live, h)
	st := s.stats[kind]
	st.Released++
	s.stats[kind] = st
}

// Len returns the number of live resources.
func (s *LiveSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Stats returns per-kind counters.
func (s *LiveSet) Stats() map[Kind]KindStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[Kind]KindStats, len(s.stats))
	for k, v := range s.stats {
		out[k] = v
	}
	return out
}

// snapshot returns live entries, newest first.
func (s *LiveSet) snapshot() []liveEntry {
	s.mu.Lock()
	entries := make([]liveEntry, 0, len(s.live))
	for _, e := range s.live {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	slices.SortFunc(entries, func(a, b liveEntry) int { return cmp.Compare(b.seq, a.seq) })
	return entries
}

// Leaks returns one error per live resource, or nil when none are live.
func (s *LiveSet) Leaks() error {
	var err error
	for _, e := range s.snapshot() {
		err = multierr.Append(err, fmt.Errorf("opencl: leaked %s %#x", e.kind, uintptr(e.res.Handle())))
	}
	return err
}

// ReleaseAll releases every live resource, newest first, so kernels go
// before their programs and memory objects before their contexts.
func (s *LiveSet) ReleaseAll() {
	for _, e := range s.snapshot() {
		e.res.Release()
	}
}
