// Package unique provides a single-owner handle with a pluggable deleter.
//
// A Ptr owns at most one object and destroys it through its deleter when
// reset. It is move-only by contract: hand it over with Move or MoveFrom,
// never by copying the struct. It has no counters, so it never talks to a
// control block; code holding a Ptr may still pass Get() around as a
// borrowed pointer.
package unique

import "rcptr_go/pkg/memory"

// Deleter destroys an object a Ptr lets go of
type Deleter[T any] interface {
	Delete(p *T)
}

// DefaultDelete disposes the object through memory.Dispose. It carries no
// state, so it takes no room in a Ptr.
type DefaultDelete[T any] struct{}

func (DefaultDelete[T]) Delete(p *T) {
	memory.Dispose(p)
}

// DeleteFunc adapts a function to Deleter
type DeleteFunc[T any] func(p *T)

func (f DeleteFunc[T]) Delete(p *T) {
	f(p)
}

// Ptr is a unique owner of a *T.
type Ptr[T any, D Deleter[T]] struct {
	// The deleter comes first: a zero-size field at the end of a struct
	// would be padded.
	del D
	ptr *T
}

// New owns ptr with the default deleter
func New[T any](ptr *T) Ptr[T, DefaultDelete[T]] {
	return Ptr[T, DefaultDelete[T]]{ptr: ptr}
}

// NewWithDeleter owns ptr and destroys it with del
func NewWithDeleter[T any, D Deleter[T]](ptr *T, del D) Ptr[T, D] {
	return Ptr[T, D]{del: del, ptr: ptr}
}

// Release gives up ownership without destroying and returns the pointer
func (u *Ptr[T, D]) Release() *T {
	p := u.ptr
	u.ptr = nil
	return p
}

// Reset takes ownership of ptr (which may be nil) and destroys the
// previously owned object, if any
func (u *Ptr[T, D]) Reset(ptr *T) {
	old := u.ptr
	u.ptr = ptr
	if old != nil {
		u.del.Delete(old)
	}
}

// Swap exchanges owned objects and deleters
func (u *Ptr[T, D]) Swap(other *Ptr[T, D]) {
	*u, *other = *other, *u
}

// Move hands ownership and the deleter to the returned Ptr; u is left empty
func (u *Ptr[T, D]) Move() Ptr[T, D] {
	out := Ptr[T, D]{del: u.del, ptr: u.ptr}
	u.ptr = nil
	return out
}

// MoveFrom destroys u's object and takes over src's object and deleter
func (u *Ptr[T, D]) MoveFrom(src *Ptr[T, D]) {
	if u == src {
		return
	}
	u.Reset(src.Release())
	u.del = src.del
}

// Get returns the owned pointer, nil when empty
func (u *Ptr[T, D]) Get() *T {
	return u.ptr
}

// Deref returns the owned pointer and panics when empty
func (u *Ptr[T, D]) Deref() *T {
	if u.ptr == nil {
		panic(memory.ErrNullDeref)
	}
	return u.ptr
}

// Deleter returns the deleter so stateful deleters can be inspected
func (u *Ptr[T, D]) Deleter() *D {
	return &u.del
}

// Valid reports whether an object is owned
func (u *Ptr[T, D]) Valid() bool {
	return u.ptr != nil
}
