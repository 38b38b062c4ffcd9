package storage

import "testing"

type item struct {
	id   int
	tags []string
}

func TestPool_NewAndClear(t *testing.T) {
	var p Pool[item]
	for i := range 200 {
		obj, idx := p.New()
		if idx != i {
			t.Fatalf("New() index = %d, want %d", idx, i)
		}
		obj.id = i
	}
	if p.Len() != 200 {
		t.Fatalf("Len() = %d, want 200", p.Len())
	}
	if got := p.At(150).id; got != 150 {
		t.Errorf("At(150).id = %d, want 150", got)
	}

	first := p.At(0)
	capBefore := p.Cap()
	p.Clear()
	if p.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", p.Len())
	}
	obj, idx := p.New()
	if idx != 0 || obj != first {
		t.Error("New() after Clear should reuse the first slot")
	}
	if obj.id != 0 {
		t.Errorf("reused object not zeroed: id = %d", obj.id)
	}
	if p.Cap() != capBefore {
		t.Errorf("Cap() = %d, want %d", p.Cap(), capBefore)
	}
}

func TestPool_PointersStable(t *testing.T) {
	var p Pool[item]
	a, _ := p.New()
	a.id = 42
	for range 1000 {
		p.New()
	}
	if a.id != 42 || p.At(0) != a {
		t.Error("pointer into pool moved after growth")
	}
}

func TestPool_ResetKeepsCapacity(t *testing.T) {
	p := NewPool(func(it *item) {
		it.id = 0
		it.tags = it.tags[:0]
	})
	obj, _ := p.New()
	obj.tags = append(obj.tags, "a", "b", "c")
	p.Clear()
	obj, _ = p.New()
	if len(obj.tags) != 0 || cap(obj.tags) < 3 {
		t.Errorf("reset tags len=%d cap=%d, want len 0 cap >= 3", len(obj.tags), cap(obj.tags))
	}
}

func TestPool_AtOutOfRangePanics(t *testing.T) {
	var p Pool[item]
	p.New()
	defer func() {
		if recover() == nil {
			t.Error("At(1) did not panic")
		}
	}()
	p.At(1)
}

func TestPool_All(t *testing.T) {
	var p Pool[item]
	for i := range 5 {
		obj, _ := p.New()
		obj.id = i * 10
	}
	sum := 0
	p.All(func(idx int, obj *item) {
		if obj.id != idx*10 {
			t.Errorf("All() idx %d has id %d", idx, obj.id)
		}
		sum += obj.id
	})
	if sum != 100 {
		t.Errorf("sum = %d, want 100", sum)
	}
}

func TestCachePool_Generations(t *testing.T) {
	reclaimed := 0
	p := NewCachePool(func(it *item) { reclaimed++ })

	h1, obj := p.Acquire()
	obj.id = 7
	if got, ok := p.Get(h1); !ok || got.id != 7 {
		t.Fatalf("Get(h1) = %v, %v", got, ok)
	}

	if !p.Retain(h1) {
		t.Fatal("Retain(h1) = false")
	}
	if p.Release(h1) {
		t.Error("first Release reclaimed a slot with two references")
	}
	if !p.Release(h1) {
		t.Error("second Release did not reclaim")
	}
	if reclaimed != 1 {
		t.Errorf("reclaim hook ran %d times, want 1", reclaimed)
	}
	if _, ok := p.Get(h1); ok {
		t.Error("Get() on a released handle succeeded")
	}

	h2, obj2 := p.Acquire()
	if h2 == h1 {
		t.Error("reacquired slot reused the old handle identity")
	}
	if obj2.id != 0 {
		t.Errorf("reacquired object not zeroed: id = %d", obj2.id)
	}
	if _, ok := p.Get(h1); ok {
		t.Error("stale handle resolves to the new occupant")
	}
	if p.Retain(h1) || p.Release(h1) {
		t.Error("stale handle accepted by Retain/Release")
	}
	if p.Len() != 1 {
		t.Errorf("Len() = %d, want 1", p.Len())
	}
	if p.Refs(h2) != 1 {
		t.Errorf("Refs(h2) = %d, want 1", p.Refs(h2))
	}
}

func TestCachePool_ZeroHandle(t *testing.T) {
	p := NewCachePool[item](nil)
	p.Acquire()
	var h Handle
	if !h.IsZero() {
		t.Error("zero Handle IsZero() = false")
	}
	if _, ok := p.Get(h); ok {
		t.Error("Get(zero) succeeded")
	}
}
