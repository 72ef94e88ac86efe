package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Version is one immutable published value.
type Version[T any] struct {
	Value    T
	StoredAt time.Time
	Seq      uint64
}

// Snapshot holds a single copy-on-write value. Readers never block: they get
// the current Version pointer and must treat it as read-only. Writers are
// serialized.
type Snapshot[T any] struct {
	writeMu    sync.Mutex
	current    atomic.Pointer[Version[T]]
	seq        atomic.Uint64
	ttl        time.Duration
	refreshing atomic.Bool
	now        func() time.Time
}

func NewSnapshot[T any](ttl time.Duration) *Snapshot[T] {
	return &Snapshot[T]{ttl: ttl, now: time.Now}
}

// WithClock replaces the time source used for StoredAt and staleness.
func (s *Snapshot[T]) WithClock(now func() time.Time) *Snapshot[T] {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Snapshot[T]) Load() (*Version[T], bool) {
	v := s.current.Load()
	return v, v != nil
}

func (s *Snapshot[T]) Store(value T) *Version[T] {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.publish(value)
}

// Update computes a replacement from the current version under the write
// lock. Returning keep=false leaves the snapshot untouched.
func (s *Snapshot[T]) Update(fn func(current *Version[T]) (next T, keep bool)) (*Version[T], bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, keep := fn(s.current.Load())
	if !keep {
		return s.current.Load(), false
	}
	return s.publish(next), true
}

func (s *Snapshot[T]) Clear() {
	s.writeMu.Lock()
	s.current.Store(nil)
	s.writeMu.Unlock()
}

// IsStale reports whether v is older than the TTL. A zero TTL never expires.
func (s *Snapshot[T]) IsStale(v *Version[T]) bool {
	if v == nil {
		return true
	}
	if s.ttl <= 0 {
		return false
	}
	return s.now().Sub(v.StoredAt) >= s.ttl
}

func (s *Snapshot[T]) TTL() time.Duration {
	return s.ttl
}

// BeginRefresh marks a background refresh as running. It returns false when
// one already is, so callers can skip scheduling another.
func (s *Snapshot[T]) BeginRefresh() bool {
	return s.refreshing.CompareAndSwap(false, true)
}

func (s *Snapshot[T]) EndRefresh() {
	s.refreshing.Store(false)
}

func (s *Snapshot[T]) Refreshing() bool {
	return s.refreshing.Load()
}

func (s *Snapshot[T]) publish(value T) *Version[T] {
	v := &Version[T]{
		Value:    value,
		StoredAt: s.now(),
		Seq:      s.seq.Add(1),
	}
	s.current.Store(v)
	return v
}
