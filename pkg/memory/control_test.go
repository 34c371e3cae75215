package memory

import (
	"errors"
	"testing"

	"github.com/go-logr/logr"
)

type widget struct {
	id        int
	destroyed *int
}

func (w *widget) Destroy() {
	*w.destroyed++
}

func newWidget(id int) (*widget, *int) {
	n := 0
	return &widget{id: id, destroyed: &n}, &n
}

func expectPanic(t *testing.T, want error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic with %v", want)
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, want) {
			t.Fatalf("expected panic with %v, got %v", want, r)
		}
	}()
	fn()
}

func TestControlBlock_StartsWithOneStrong(t *testing.T) {
	w, _ := newWidget(1)
	b := newPointerBlock(w)

	if b.UseCount() != 1 {
		t.Errorf("Expected strong=1, got %d", b.UseCount())
	}
	if b.WeakCount() != 0 {
		t.Errorf("Expected weak=0, got %d", b.WeakCount())
	}
	if b.Kind() != KindPointer {
		t.Errorf("Expected pointer kind, got %s", b.Kind())
	}
	if b.ID() == 0 {
		t.Error("block id should be assigned")
	}
}

func TestControlBlock_ReleasedWithoutWeak(t *testing.T) {
	w, destroyed := newWidget(1)
	b := newPointerBlock(w)

	b.DecStrong()

	if *destroyed != 1 {
		t.Errorf("Expected object destroyed once, got %d", *destroyed)
	}
	if !b.Expired() || !b.Released() {
		t.Error("block should be expired and released")
	}
	if b.ptr != nil {
		t.Error("pointer block should drop its object")
	}
}

func TestControlBlock_WeakKeepsBlock(t *testing.T) {
	w, destroyed := newWidget(1)
	b := newPointerBlock(w)
	b.IncWeak()

	b.DecStrong()
	if *destroyed != 1 {
		t.Errorf("Expected object destroyed at strong 1->0, got %d", *destroyed)
	}
	if b.Released() {
		t.Error("block must survive while a weak count remains")
	}

	b.DecWeak()
	if !b.Released() {
		t.Error("block should be released once weak reaches 0")
	}
	if *destroyed != 1 {
		t.Errorf("object must not be destroyed twice, got %d", *destroyed)
	}
}

func TestControlBlock_WeakReleaseBeforeStrong(t *testing.T) {
	w, destroyed := newWidget(1)
	b := newPointerBlock(w)
	b.IncWeak()
	b.IncStrong()

	b.DecWeak()
	if b.Released() || *destroyed != 0 {
		t.Error("dropping the weak count alone must not destroy anything")
	}
	b.DecStrong()
	if *destroyed != 0 {
		t.Error("object destroyed with an owner left")
	}
	b.DecStrong()
	if *destroyed != 1 || !b.Released() {
		t.Errorf("Expected destroyed=1 released=true, got %d %v", *destroyed, b.Released())
	}
}

func TestControlBlock_InPlaceZeroesValue(t *testing.T) {
	n := 0
	b := &InPlaceBlock[widget]{value: widget{id: 7, destroyed: &n}}
	b.counters = newCounters(KindInPlace)
	b.IncWeak()

	b.DecStrong()

	if n != 1 {
		t.Errorf("Expected destroy hook to run once, got %d", n)
	}
	if b.value.id != 0 || b.value.destroyed != nil {
		t.Error("in-place storage should be zeroed after destruction")
	}
	if b.Released() {
		t.Error("storage must be retained while weak > 0")
	}
	b.DecWeak()
	if !b.Released() {
		t.Error("block should be released")
	}
}

func TestControlBlock_Misuse(t *testing.T) {
	w, _ := newWidget(1)
	b := newPointerBlock(w)
	b.DecStrong()

	expectPanic(t, ErrReleasedBlock, func() { b.IncStrong() })
	expectPanic(t, ErrReleasedBlock, func() { b.DecWeak() })

	w2, _ := newWidget(2)
	b2 := newPointerBlock(w2)
	b2.IncWeak()
	b2.DecStrong()
	expectPanic(t, ErrCounterUnderflow, func() { b2.DecStrong() })
	expectPanic(t, ErrExpired, func() { b2.IncStrong() })
}

func TestBlockKind_String(t *testing.T) {
	tests := []struct {
		kind BlockKind
		want string
	}{
		{KindPointer, "pointer"},
		{KindInPlace, "inplace"},
		{BlockKind(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("%d: expected %q, got %q", tt.kind, tt.want, got)
		}
	}
}

func TestControlBlock_SingleAllocation(t *testing.T) {
	SetLogger(logr.Discard())

	before := ReadStatsFor(KindInPlace)
	allocs := testing.AllocsPerRun(100, func() {
		s := MakeShared(7)
		s.Reset()
	})
	if allocs != 1 {
		t.Errorf("MakeShared+Reset: expected 1 allocation, got %v", allocs)
	}
	if d := ReadStatsFor(KindInPlace).Sub(before); d.BlocksReleased < 100 || d.LiveBlocks() != 0 {
		t.Errorf("expected every in-place block counted and released, got %+v", d)
	}

	v := new(int)
	allocs = testing.AllocsPerRun(100, func() {
		s := NewShared(v)
		s.Reset()
	})
	if allocs != 1 {
		t.Errorf("NewShared+Reset: expected 1 allocation for the block, got %v", allocs)
	}
}
