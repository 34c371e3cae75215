package unique

import (
	"testing"
	"unsafe"
)

type resource struct {
	id     int
	closed *int
}

func (r *resource) Destroy() {
	*r.closed++
}

type countingDeleter struct {
	calls int
}

func (c *countingDeleter) Delete(p *resource) {
	c.calls++
	*p.closed++
}

func TestUnique_StatelessDeleterIsFree(t *testing.T) {
	var u Ptr[int, DefaultDelete[int]]
	if unsafe.Sizeof(u) != unsafe.Sizeof(uintptr(0)) {
		t.Errorf("Expected a pointer-sized Ptr, got %d bytes", unsafe.Sizeof(u))
	}

	var f Ptr[int, DeleteFunc[int]]
	if unsafe.Sizeof(f) <= unsafe.Sizeof(uintptr(0)) {
		t.Error("a stateful deleter should take room")
	}
}

func TestUnique_ResetDestroys(t *testing.T) {
	n := 0
	u := New(&resource{id: 1, closed: &n})
	if !u.Valid() || u.Get().id != 1 {
		t.Fatal("Ptr should own the resource")
	}

	m := 0
	u.Reset(&resource{id: 2, closed: &m})
	if n != 1 {
		t.Errorf("Expected old resource destroyed, got %d", n)
	}
	if u.Get().id != 2 {
		t.Error("Ptr should own the new resource")
	}

	u.Reset(nil)
	if m != 1 || u.Valid() {
		t.Error("Reset(nil) should destroy and empty")
	}
	u.Reset(nil) // no-op
	if m != 1 {
		t.Error("empty reset must not destroy again")
	}
}

func TestUnique_Release(t *testing.T) {
	n := 0
	r := &resource{closed: &n}
	u := New(r)

	got := u.Release()
	if got != r || u.Valid() {
		t.Error("Release should return the pointer and empty the Ptr")
	}
	u.Reset(nil)
	if n != 0 {
		t.Error("released object must not be destroyed")
	}
}

func TestUnique_MoveAndSwap(t *testing.T) {
	n1, n2 := 0, 0
	a := New(&resource{id: 1, closed: &n1})
	b := New(&resource{id: 2, closed: &n2})

	a.Swap(&b)
	if a.Get().id != 2 || b.Get().id != 1 {
		t.Error("swap should exchange owned objects")
	}

	c := a.Move()
	if a.Valid() || c.Get().id != 2 {
		t.Error("move should transfer ownership")
	}

	c.MoveFrom(&b)
	if n2 != 1 {
		t.Error("move-assign should destroy the previously owned object")
	}
	if b.Valid() || c.Get().id != 1 {
		t.Error("move-assign should take the source's object")
	}
	c.MoveFrom(&c)
	if !c.Valid() {
		t.Error("self move-assign should be a no-op")
	}
	c.Reset(nil)
	if n1 != 1 {
		t.Error("object should be destroyed once")
	}
}

func TestUnique_CustomDeleter(t *testing.T) {
	n := 0
	del := &countingDeleter{}
	u := NewWithDeleter[resource](&resource{closed: &n}, del)

	u.Reset(nil)
	if del.calls != 1 || n != 1 {
		t.Errorf("Expected deleter called once, got %d", del.calls)
	}
	if (*u.Deleter()).calls != 1 {
		t.Error("Deleter should expose the stored deleter")
	}

	var freed []int
	f := NewWithDeleter(&resource{id: 5}, DeleteFunc[resource](func(p *resource) {
		freed = append(freed, p.id)
	}))
	g := f.Move()
	g.Reset(nil)
	if len(freed) != 1 || freed[0] != 5 {
		t.Errorf("Expected func deleter to run for id 5, got %v", freed)
	}
}

func TestUnique_DerefEmptyPanics(t *testing.T) {
	var u Ptr[int, DefaultDelete[int]]
	defer func() {
		if recover() == nil {
			t.Error("Deref on an empty Ptr should panic")
		}
	}()
	u.Deref()
}

func TestUniqueSlice_DestroysAll(t *testing.T) {
	n := 0
	items := []resource{{id: 1, closed: &n}, {id: 2, closed: &n}, {id: 3, closed: &n}}
	u := NewSlice(items)

	if u.Len() != 3 || u.At(1).id != 2 {
		t.Error("slice should be owned as given")
	}
	moved := u.Move()
	if u.Valid() {
		t.Error("moved-from slice should be empty")
	}
	moved.Reset(nil)
	if n != 3 {
		t.Errorf("Expected all 3 elements destroyed, got %d", n)
	}

	var s Slice[int, DefaultSliceDelete[int]]
	if unsafe.Sizeof(s) != unsafe.Sizeof([]int(nil)) {
		t.Error("stateless slice deleter should take no room")
	}
}
