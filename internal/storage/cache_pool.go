package storage

import "fmt"

// Handle identifies a slot of a CachePool. The zero Handle is never valid.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.gen == 0
}

// String returns a debug representation.
func (h Handle) String() string {
	return fmt.Sprintf("Handle(%d#%d)", h.index, h.gen)
}

type cacheSlot[T any] struct {
	value T
	gen   uint32
	refs  int32
	live  bool
}

// CachePool is a generational pool for objects that may outlive a frame.
//
// Acquire returns a handle holding one reference. Retain and Release adjust
// the count; when it drops to zero the slot is reclaimed, its generation is
// bumped and the reclaim hook runs, so stale handles fail Get instead of
// aliasing the next occupant.
type CachePool[T any] struct {
	slots   []cacheSlot[T]
	free    []uint32
	reclaim func(*T)
	live    int
}

// NewCachePool creates a pool. reclaim, if non-nil, runs when a slot's last
// reference is released, before the slot is reused; it is where cached
// resources and render-value cookies are dropped.
func NewCachePool[T any](reclaim func(*T)) *CachePool[T] {
	return &CachePool[T]{reclaim: reclaim}
}

// Acquire allocates a slot with one reference and returns its handle and
// the zeroed object.
func (p *CachePool[T]) Acquire() (Handle, *T) {
	var idx uint32
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		p.slots = append(p.slots, cacheSlot[T]{})
		idx = uint32(len(p.slots) - 1) //nolint:gosec // bounded by slot count
	}
	s := &p.slots[idx]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.refs = 1
	s.live = true
	var zero T
	s.value = zero
	p.live++
	return Handle{index: idx, gen: s.gen}, &s.value
}

func (p *CachePool[T]) slot(h Handle) (*cacheSlot[T], bool) {
	if h.IsZero() || int(h.index) >= len(p.slots) {
		return nil, false
	}
	s := &p.slots[h.index]
	if !s.live || s.gen != h.gen {
		return nil, false
	}
	return s, true
}

// Get returns the object for h, or false when h is stale or invalid.
// The pointer is valid until the next Acquire.
func (p *CachePool[T]) Get(h Handle) (*T, bool) {
	s, ok := p.slot(h)
	if !ok {
		return nil, false
	}
	return &s.value, true
}

// Retain adds a reference. It returns false for a stale handle.
func (p *CachePool[T]) Retain(h Handle) bool {
	s, ok := p.slot(h)
	if !ok {
		return false
	}
	s.refs++
	return true
}

// Release drops a reference and reclaims the slot when none remain. It
// reports whether the slot was reclaimed.
func (p *CachePool[T]) Release(h Handle) bool {
	s, ok := p.slot(h)
	if !ok {
		return false
	}
	s.refs--
	if s.refs > 0 {
		return false
	}
	if p.reclaim != nil {
		p.reclaim(&s.value)
	}
	var zero T
	s.value = zero
	s.live = false
	// Bump the generation on reclaim as well, so the old handle stays dead
	// even if the slot is never reacquired.
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	p.free = append(p.free, h.index)
	p.live--
	return true
}

// Refs returns the reference count of h, or 0 when stale.
func (p *CachePool[T]) Refs(h Handle) int {
	s, ok := p.slot(h)
	if !ok {
		return 0
	}
	return int(s.refs)
}

// Len returns the number of live slots.
func (p *CachePool[T]) Len() int {
	return p.live
}
