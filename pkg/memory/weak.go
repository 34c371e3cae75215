package memory

// Weak observes an object without keeping it alive. It holds the control
// block alive, so liveness can be checked after the object is gone.
//
// The zero value observes nothing and is always expired. As with Shared,
// duplicate with Clone, hand over with Move and drop with Reset.
type Weak[T any] struct {
	ptr   *T
	block ControlBlock
}

// NewWeak returns an observer of s's object
func NewWeak[T any](s *Shared[T]) Weak[T] {
	if s.block != nil {
		s.block.IncWeak()
	}
	return Weak[T]{ptr: s.ptr, block: s.block}
}

// ConvertWeak copies w into an observer of a related type
func ConvertWeak[U, T any](w *Weak[T], conv func(*T) *U) Weak[U] {
	if w.block == nil {
		return Weak[U]{}
	}
	p := conv(w.ptr)
	if p == nil {
		return Weak[U]{}
	}
	w.block.IncWeak()
	return Weak[U]{ptr: p, block: w.block}
}

// Clone returns another observer of the same object
func (w *Weak[T]) Clone() Weak[T] {
	if w.block != nil {
		w.block.IncWeak()
	}
	return Weak[T]{ptr: w.ptr, block: w.block}
}

// Move hands the observation to the returned handle and leaves w empty
func (w *Weak[T]) Move() Weak[T] {
	out := *w
	w.ptr, w.block = nil, nil
	return out
}

// Assign makes w observe src's object. Nothing happens when both already
// track the same address.
func (w *Weak[T]) Assign(src *Weak[T]) {
	if w.ptr == src.ptr {
		return
	}
	next := src.Clone()
	w.Reset()
	*w = next
}

// AssignShared makes w observe the object owned by s
func (w *Weak[T]) AssignShared(s *Shared[T]) {
	if w.ptr == s.ptr && w.block == s.block {
		return
	}
	next := NewWeak(s)
	w.Reset()
	*w = next
}

// MoveFrom transfers src's observation into w, leaving src empty. When both
// already track the same address nothing happens.
func (w *Weak[T]) MoveFrom(src *Weak[T]) {
	if w.ptr == src.ptr {
		return
	}
	next := src.Move()
	w.Reset()
	*w = next
}

// Reset stops observing and makes w empty
func (w *Weak[T]) Reset() {
	if w.block == nil {
		return
	}
	b := w.block
	w.ptr, w.block = nil, nil
	b.DecWeak()
}

// Release is Reset, named for use with defer
func (w *Weak[T]) Release() {
	w.Reset()
}

// Swap exchanges the state of two observers
func (w *Weak[T]) Swap(other *Weak[T]) {
	w.ptr, other.ptr = other.ptr, w.ptr
	w.block, other.block = other.block, w.block
}

// UseCount returns the number of strong owners of the observed object
func (w *Weak[T]) UseCount() int {
	if w.block == nil {
		return 0
	}
	return w.block.UseCount()
}

// Expired reports whether the observed object is gone
func (w *Weak[T]) Expired() bool {
	return w.UseCount() == 0
}

// Lock returns a new owner of the observed object, or a null handle if it
// has expired. The check and the increment are one step only because
// blocks are never shared across goroutines.
func (w *Weak[T]) Lock() Shared[T] {
	if w.Expired() {
		return Shared[T]{}
	}
	s, err := Promote(w)
	if err != nil {
		return Shared[T]{}
	}
	return s
}

// ControlBlock exposes the bookkeeping block, nil for an empty observer
func (w *Weak[T]) ControlBlock() ControlBlock {
	return w.block
}
