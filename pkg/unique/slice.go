package unique

import "rcptr_go/pkg/memory"

// SliceDeleter destroys the elements a Slice lets go of
type SliceDeleter[T any] interface {
	DeleteAll(s []T)
}

// DefaultSliceDelete disposes every element in order
type DefaultSliceDelete[T any] struct{}

func (DefaultSliceDelete[T]) DeleteAll(s []T) {
	for i := range s {
		memory.Dispose(&s[i])
	}
}

// Slice is the array flavour of Ptr: it owns a run of elements and
// destroys all of them together.
type Slice[T any, D SliceDeleter[T]] struct {
	del D
	s   []T
}

// NewSlice owns s with the default deleter
func NewSlice[T any](s []T) Slice[T, DefaultSliceDelete[T]] {
	return Slice[T, DefaultSliceDelete[T]]{s: s}
}

// NewSliceWithDeleter owns s and destroys it with del
func NewSliceWithDeleter[T any, D SliceDeleter[T]](s []T, del D) Slice[T, D] {
	return Slice[T, D]{del: del, s: s}
}

func (u *Slice[T, D]) Release() []T {
	s := u.s
	u.s = nil
	return s
}

func (u *Slice[T, D]) Reset(s []T) {
	old := u.s
	u.s = s
	if old != nil {
		u.del.DeleteAll(old)
	}
}

func (u *Slice[T, D]) Swap(other *Slice[T, D]) {
	*u, *other = *other, *u
}

func (u *Slice[T, D]) Move() Slice[T, D] {
	out := Slice[T, D]{del: u.del, s: u.s}
	u.s = nil
	return out
}

// At returns the element at index i; out of range panics like a slice
func (u *Slice[T, D]) At(i int) *T {
	return &u.s[i]
}

func (u *Slice[T, D]) Len() int    { return len(u.s) }
func (u *Slice[T, D]) Get() []T    { return u.s }
func (u *Slice[T, D]) Deleter() *D { return &u.del }
func (u *Slice[T, D]) Valid() bool { return u.s != nil }
