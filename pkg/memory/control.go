package memory

import (
	"sync/atomic"
)

// Reference-counted shared ownership
//
// A control block tracks two lifetimes:
// - the managed object: alive while strong > 0
// - the block itself:   alive while strong + weak > 0
//
// Shared handles drive the strong counter, Weak handles only the weak one.
// Whoever observes the triggering transition performs the destruction:
// strong 1 → 0 destroys the object, strong+weak → 0 releases the block.
//
// Nothing here is synchronized. All handles referencing one block must be
// used from one goroutine at a time.

// BlockKind identifies the storage strategy of a control block
type BlockKind int

const (
	KindPointer BlockKind = iota // object lives in its own allocation
	KindInPlace                  // object lives inside the block
)

func (k BlockKind) String() string {
	switch k {
	case KindPointer:
		return "pointer"
	case KindInPlace:
		return "inplace"
	default:
		return "unknown"
	}
}

// ControlBlock is the bookkeeping shared by every handle of one managed object
type ControlBlock interface {
	IncStrong()
	DecStrong()
	IncWeak()
	DecWeak()
	UseCount() int
	WeakCount() int
	// Expired reports whether the managed object has been destroyed
	Expired() bool
	// Released reports whether the block itself has been released
	Released() bool
	Kind() BlockKind
	ID() uint64
}

var blockSeq atomic.Uint64

// lifecycle is the destruction policy a concrete block plugs into counters
type lifecycle interface {
	destroyObject()
	destroyBlock()
}

// counters holds the state shared by both block variants
type counters struct {
	id       uint64
	kind     BlockKind
	strong   int
	weak     int
	expired  bool
	released bool
}

func newCounters(kind BlockKind) counters {
	c := counters{id: blockSeq.Add(1), kind: kind, strong: 1}
	blocksCreatedBy[kind].Inc()
	if l := logger.V(1); l.Enabled() {
		l.Info("block created", "block", c.id, "kind", kind.String())
	}
	return c
}

func (c *counters) IncStrong() {
	c.mustBeLive()
	if c.expired {
		// Reviving a destroyed object would hand out a dangling pointer.
		panic(ErrExpired)
	}
	c.strong++
}

func (c *counters) IncWeak() {
	c.mustBeLive()
	c.weak++
}

func (c *counters) UseCount() int  { return c.strong }
func (c *counters) WeakCount() int { return c.weak }
func (c *counters) Expired() bool  { return c.expired }
func (c *counters) Released() bool { return c.released }

func (c *counters) Kind() BlockKind { return c.kind }
func (c *counters) ID() uint64      { return c.id }

func (c *counters) mustBeLive() {
	if c.released {
		panic(ErrReleasedBlock)
	}
}

func (c *counters) decStrong(l lifecycle) {
	c.mustBeLive()
	if c.strong <= 0 {
		panic(ErrCounterUnderflow)
	}
	if c.strong > 1 {
		c.strong--
		return
	}

	// The object's own self-reference slot releases a weak count while it is
	// destroyed; pin the block so that release cannot free it underneath us.
	c.strong = 0
	c.expired = true
	c.weak++
	l.destroyObject()
	objectsDestroyedBy[c.kind].Inc()
	if l := logger.V(1); l.Enabled() {
		l.Info("object destroyed", "block", c.id, "kind", c.kind.String(), "weak", c.weak-1)
	}
	c.weak--

	if c.weak == 0 {
		c.release(l)
	}
}

func (c *counters) decWeak(l lifecycle) {
	c.mustBeLive()
	if c.weak <= 0 {
		panic(ErrCounterUnderflow)
	}
	c.weak--
	if c.strong == 0 && c.weak == 0 {
		c.release(l)
	}
}

func (c *counters) release(l lifecycle) {
	c.released = true
	l.destroyBlock()
	blocksReleasedBy[c.kind].Inc()
	if l := logger.V(1); l.Enabled() {
		l.Info("block released", "block", c.id, "kind", c.kind.String())
	}
}

// PointerBlock owns an object that was allocated on its own.
// Destroying the object disposes it and drops the block's pointer so the
// collector can reclaim it.
type PointerBlock[T any] struct {
	counters
	ptr *T
}

func newPointerBlock[T any](ptr *T) *PointerBlock[T] {
	return &PointerBlock[T]{counters: newCounters(KindPointer), ptr: ptr}
}

func (b *PointerBlock[T]) DecStrong() { b.decStrong(b) }
func (b *PointerBlock[T]) DecWeak()   { b.decWeak(b) }

func (b *PointerBlock[T]) destroyObject() {
	obj := b.ptr
	b.ptr = nil
	Dispose(obj)
}

func (b *PointerBlock[T]) destroyBlock() {}

// InPlaceBlock stores the object inline, so block and object share one
// allocation. Destroying the object disposes it and zeroes the storage;
// the storage itself goes away with the block.
type InPlaceBlock[T any] struct {
	counters
	value T
}

func (b *InPlaceBlock[T]) DecStrong() { b.decStrong(b) }
func (b *InPlaceBlock[T]) DecWeak()   { b.decWeak(b) }

func (b *InPlaceBlock[T]) destroyObject() {
	Dispose(&b.value)
	var zero T
	b.value = zero
}

func (b *InPlaceBlock[T]) destroyBlock() {}

var (
	_ ControlBlock = (*PointerBlock[int])(nil)
	_ ControlBlock = (*InPlaceBlock[int])(nil)
)
