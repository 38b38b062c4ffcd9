package pack

// Interval is a 1D allocation: a run of Length texels starting at Offset
// in row Layer of a strip surface.
type Interval struct {
	Layer  int
	Offset int
	Length int
}

// IsValid reports whether the interval was allocated.
func (iv Interval) IsValid() bool {
	return iv.Length > 0
}

// End returns one past the last texel.
func (iv Interval) End() int {
	return iv.Offset + iv.Length
}

// IntervalAllocator packs strips of varying length into layers of a fixed
// length, first fit. Shadow maps are thin strips, so packing them as
// intervals wastes far less of the scratch surface than shelf packing.
type IntervalAllocator struct {
	length    int
	maxLayers int
	next      []int
	allocated int
}

// NewIntervalAllocator creates an allocator with layers of the given
// length.
func NewIntervalAllocator(length, maxLayers int) *IntervalAllocator {
	if length < 1 {
		length = 1
	}
	if maxLayers < 1 {
		maxLayers = 1
	}
	return &IntervalAllocator{length: length, maxLayers: maxLayers}
}

// Allocate reserves an interval of the given length. It returns an invalid
// interval when no layer has room.
func (a *IntervalAllocator) Allocate(length int) Interval {
	if length <= 0 || length > a.length {
		return Interval{}
	}
	for i, n := range a.next {
		if n+length <= a.length {
			a.next[i] = n + length
			a.allocated += length
			return Interval{Layer: i, Offset: n, Length: length}
		}
	}
	if len(a.next) == a.maxLayers {
		return Interval{}
	}
	a.next = append(a.next, length)
	a.allocated += length
	return Interval{Layer: len(a.next) - 1, Offset: 0, Length: length}
}

// Fits reports whether an interval of the given length could ever be
// placed.
func (a *IntervalAllocator) Fits(length int) bool {
	return length > 0 && length <= a.length
}

// Length returns the length of one layer.
func (a *IntervalAllocator) Length() int {
	return a.length
}

// LayersUsed returns the number of layers holding at least one interval.
func (a *IntervalAllocator) LayersUsed() int {
	return len(a.next)
}

// Allocated returns the total length handed out since the last Reset.
func (a *IntervalAllocator) Allocated() int {
	return a.allocated
}

// Reset frees every interval.
func (a *IntervalAllocator) Reset() {
	a.next = a.next[:0]
	a.allocated = 0
}
