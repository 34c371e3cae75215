package memory

import (
	"unsafe"

	"github.com/pkg/errors"
)

// Shared is a strong handle: while it holds a block, the managed object
// stays alive.
//
// The zero value is a null handle. Go assignment copies the struct without
// touching the counters, so a handle must be duplicated with Clone and
// handed over with Move; Reset (or Release) stands in for a destructor.
type Shared[T any] struct {
	ptr   *T
	block ControlBlock
}

// Null returns an empty handle
func Null[T any]() Shared[T] {
	return Shared[T]{}
}

// NewShared takes ownership of ptr with a fresh pointer-owning block.
// A nil ptr yields a null handle and allocates nothing.
func NewShared[T any](ptr *T) Shared[T] {
	if ptr == nil {
		return Shared[T]{}
	}
	s := Shared[T]{ptr: ptr, block: newPointerBlock(ptr)}
	bindSelf(&s)
	return s
}

// MakeShared copies v into a block that stores it inline: one allocation
// for object and bookkeeping.
func MakeShared[T any](v T) Shared[T] {
	b := &InPlaceBlock[T]{value: v}
	b.counters = newCounters(KindInPlace)
	s := Shared[T]{ptr: &b.value, block: b}
	bindSelf(&s)
	return s
}

// MakeSharedWith builds the object inside its block by running init on the
// zeroed storage. If init fails nothing is owned and no counter moved.
func MakeSharedWith[T any](init func(*T) error) (Shared[T], error) {
	b := &InPlaceBlock[T]{}
	if init != nil {
		if err := init(&b.value); err != nil {
			return Shared[T]{}, errors.Wrap(err, "memory: in-place construction failed")
		}
	}
	b.counters = newCounters(KindInPlace)
	s := Shared[T]{ptr: &b.value, block: b}
	bindSelf(&s)
	return s, nil
}

// Alias shares owner's block but exposes ptr, which need not be related to
// the owned object. The owned object outlives the returned handle.
// An empty owner or a nil ptr yields a null handle.
func Alias[U, T any](owner *Shared[T], ptr *U) Shared[U] {
	if owner.block == nil || ptr == nil {
		return Shared[U]{}
	}
	owner.block.IncStrong()
	return Shared[U]{ptr: ptr, block: owner.block}
}

// Convert copies s into a handle of a related type; conv maps the tracked
// pointer, e.g. to an embedded base struct.
func Convert[U, T any](s *Shared[T], conv func(*T) *U) Shared[U] {
	if s.block == nil {
		return Shared[U]{}
	}
	return Alias(s, conv(s.ptr))
}

// MoveConvert is the moving form of Convert: s ends up null and the
// counters do not change.
func MoveConvert[U, T any](s *Shared[T], conv func(*T) *U) Shared[U] {
	if s.block == nil {
		return Shared[U]{}
	}
	p := conv(s.ptr)
	if p == nil {
		s.Reset()
		return Shared[U]{}
	}
	out := Shared[U]{ptr: p, block: s.block}
	s.ptr, s.block = nil, nil
	return out
}

// Promote turns a weak handle into a strong one. It fails with ErrExpired
// when the object is already gone.
func Promote[T any](w *Weak[T]) (Shared[T], error) {
	if w.block == nil || w.block.UseCount() == 0 {
		return Shared[T]{}, errors.WithStack(ErrExpired)
	}
	w.block.IncStrong()
	return Shared[T]{ptr: w.ptr, block: w.block}, nil
}

// Clone returns another owner of the same object
func (s *Shared[T]) Clone() Shared[T] {
	if s.block != nil {
		s.block.IncStrong()
	}
	return Shared[T]{ptr: s.ptr, block: s.block}
}

// Move hands ownership to the returned handle and leaves s null
func (s *Shared[T]) Move() Shared[T] {
	out := *s
	s.ptr, s.block = nil, nil
	return out
}

// Assign makes s another owner of src's object. Nothing happens when both
// already track the same address.
func (s *Shared[T]) Assign(src *Shared[T]) {
	if s.ptr == src.ptr {
		return
	}
	next := src.Clone()
	s.Reset()
	*s = next
}

// MoveFrom transfers src's ownership into s, leaving src null. When both
// already track the same address nothing happens and src keeps its
// reference.
func (s *Shared[T]) MoveFrom(src *Shared[T]) {
	if s.ptr == src.ptr {
		return
	}
	next := src.Move()
	s.Reset()
	*s = next
}

// Reset drops this handle's ownership and makes it null
func (s *Shared[T]) Reset() {
	if s.block == nil {
		return
	}
	b := s.block
	s.ptr, s.block = nil, nil
	b.DecStrong()
}

// Release is Reset, named for use with defer
func (s *Shared[T]) Release() {
	s.Reset()
}

// ResetTo replaces the current ownership with fresh ownership of ptr
func (s *Shared[T]) ResetTo(ptr *T) {
	next := NewShared(ptr)
	next.Swap(s)
	next.Reset()
}

// Swap exchanges the state of two handles
func (s *Shared[T]) Swap(other *Shared[T]) {
	s.ptr, other.ptr = other.ptr, s.ptr
	s.block, other.block = other.block, s.block
}

// Weak returns a weak observer of the same object
func (s *Shared[T]) Weak() Weak[T] {
	return NewWeak(s)
}

// Get returns the tracked pointer; nil for a null handle
func (s *Shared[T]) Get() *T {
	return s.ptr
}

// Deref returns the tracked pointer and panics on a null handle
func (s *Shared[T]) Deref() *T {
	if s.ptr == nil {
		panic(ErrNullDeref)
	}
	return s.ptr
}

// UseCount returns the number of strong owners, 0 for a null handle
func (s *Shared[T]) UseCount() int {
	if s.block == nil {
		return 0
	}
	return s.block.UseCount()
}

// Valid reports whether the handle tracks an object
func (s *Shared[T]) Valid() bool {
	return s.ptr != nil
}

// ControlBlock exposes the bookkeeping block, nil for a null handle
func (s *Shared[T]) ControlBlock() ControlBlock {
	return s.block
}

// Equal compares tracked pointers, not blocks
func (s *Shared[T]) Equal(other *Shared[T]) bool {
	return s.ptr == other.ptr
}

// Equal compares the tracked addresses of handles of possibly different
// types. Two aliases of one block over different sub-objects are not equal.
func Equal[T, U any](a *Shared[T], b *Shared[U]) bool {
	return unsafe.Pointer(a.ptr) == unsafe.Pointer(b.ptr)
}
