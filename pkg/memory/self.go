package memory

// EnableSharedFromThis lets an object hand out handles to itself. Embed it
// by value, parameterized with the embedding type:
//
//	type Session struct {
//		memory.EnableSharedFromThis[Session]
//		...
//	}
//
// The slot is filled when a Shared handle first takes ownership of the
// object (NewShared, MakeShared, MakeSharedWith) and emptied when the object
// is destroyed. Objects never owned that way get expired handles, and so
// do plain Go copies of an owned object: the slot remembers its own address
// and a copied slot reads as empty.
//
// The slot is matched by the owned type only. A Derived that embeds a Base
// carrying EnableSharedFromThis[Base] gets no binding when owned as
// Shared[Derived]; embed EnableSharedFromThis[Derived] instead, or own the
// Base.
type EnableSharedFromThis[T any] struct {
	weakThis Weak[T]
	self     *EnableSharedFromThis[T]
}

// SharedFromThis returns a new owner of the object, or a null handle if the
// object is not owned by any Shared handle
func (e *EnableSharedFromThis[T]) SharedFromThis() Shared[T] {
	return e.slot().Lock()
}

// WeakFromThis returns a new observer of the object
func (e *EnableSharedFromThis[T]) WeakFromThis() Weak[T] {
	return e.slot().Clone()
}

// slot returns the observer bound to this object. A value copied from
// another object's slot holds no count of its own and is dropped.
func (e *EnableSharedFromThis[T]) slot() *Weak[T] {
	if e.self != e {
		e.weakThis = Weak[T]{}
		e.self = nil
	}
	return &e.weakThis
}

func (e *EnableSharedFromThis[T]) bindWeakThis(s *Shared[T]) {
	w := e.slot()
	if w.ptr == s.ptr && !w.Expired() {
		logger.Info("self-reference already bound, keeping the first owner",
			"block", w.block.ID(), "attempted", s.block.ID())
		return
	}
	w.Reset()
	*w = NewWeak(s)
	e.self = e
}

func (e *EnableSharedFromThis[T]) releaseWeakThis() {
	e.slot().Reset()
	e.self = nil
}

type selfBinder[T any] interface {
	bindWeakThis(s *Shared[T])
}

type selfReleaser interface {
	releaseWeakThis()
}

func bindSelf[T any](s *Shared[T]) {
	if b, ok := any(s.ptr).(selfBinder[T]); ok {
		b.bindWeakThis(s)
	}
}
