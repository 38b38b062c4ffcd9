// Package storage provides the object pools that back every per-frame
// object of the render-buffer core.
//
// Pool is a frame arena: objects are handed out by dense index and the
// whole pool is recycled at once with Clear. CachePool outlives frames:
// slots are reference counted and every handle carries a generation so a
// recycled slot never re-exposes its old identity.
//
// Thread safety: pools are not safe for concurrent use.
package storage

// chunkSize is the number of objects allocated together. Objects never
// move once allocated, so pointers stay valid until Clear.
const chunkSize = 64

// Pool is a typed arena of T indexed by a dense integer.
//
// After warmup, allocations are minimized: Clear keeps the chunks and
// New hands them out again, reset to the zero value.
//
// Usage:
//
//	var pool storage.Pool[Buffer]
//	b, idx := pool.New()
//	// use b...
//	pool.Clear() // at the start of the next frame
type Pool[T any] struct {
	chunks [][]T
	n      int
	reset  func(*T)
}

// NewPool creates a pool. reset, if non-nil, is called on every object when
// it is handed out again after Clear, instead of zeroing it. Use it to keep
// capacity of slices owned by the object.
func NewPool[T any](reset func(*T)) *Pool[T] {
	return &Pool[T]{reset: reset}
}

// New returns a fresh object and its dense index.
func (p *Pool[T]) New() (*T, int) {
	ci, off := p.n/chunkSize, p.n%chunkSize
	if ci == len(p.chunks) {
		p.chunks = append(p.chunks, make([]T, chunkSize))
	}
	obj := &p.chunks[ci][off]
	if p.reset != nil {
		p.reset(obj)
	} else {
		var zero T
		*obj = zero
	}
	idx := p.n
	p.n++
	return obj, idx
}

// At returns the object with index idx. It panics when idx was not handed
// out since the last Clear.
func (p *Pool[T]) At(idx int) *T {
	if idx < 0 || idx >= p.n {
		panic("storage: pool index out of range")
	}
	return &p.chunks[idx/chunkSize][idx%chunkSize]
}

// Len returns the number of live objects.
func (p *Pool[T]) Len() int {
	return p.n
}

// Cap returns the number of objects the pool can hand out without
// allocating.
func (p *Pool[T]) Cap() int {
	return len(p.chunks) * chunkSize
}

// All calls fn for every live object in allocation order. fn may allocate
// from the pool; objects allocated during the walk are visited too.
func (p *Pool[T]) All(fn func(idx int, obj *T)) {
	for i := 0; i < p.n; i++ {
		fn(i, p.At(i))
	}
}

// Clear recycles every object. Pointers obtained before Clear must not be
// used afterwards.
func (p *Pool[T]) Clear() {
	p.n = 0
}
