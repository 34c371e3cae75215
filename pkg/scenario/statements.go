package scenario

import (
	"fmt"

	"github.com/pkg/errors"

	"rcptr_go/pkg/ast"
	"rcptr_go/pkg/memory"
	"rcptr_go/pkg/unique"
)

// statement describes one script form: its arity and what it does
type statement struct {
	minArgs int
	maxArgs int
	run     func(r *Runner, expr *ast.Value, args []*ast.Value) error
}

func (s statement) arity() string {
	switch {
	case s.minArgs != s.maxArgs:
		return fmt.Sprintf("%d to %d arguments", s.minArgs, s.maxArgs)
	case s.minArgs == 1:
		return "1 argument"
	default:
		return fmt.Sprintf("%d arguments", s.minArgs)
	}
}

var statements = map[string]statement{
	"make":        {2, 2, stmtMake},
	"new":         {2, 2, stmtNew},
	"null":        {1, 1, stmtNull},
	"copy":        {2, 2, stmtCopy},
	"move":        {2, 2, stmtMove},
	"assign":      {2, 2, stmtAssign},
	"move-assign": {2, 2, stmtMoveAssign},
	"alias":       {2, 2, stmtAlias},
	"upcast":      {2, 2, stmtUpcast},
	"weak":        {2, 2, stmtWeak},
	"lock":        {2, 2, stmtLock},
	"promote":     {2, 2, stmtPromote},
	"self":        {2, 2, stmtSelf},
	"self-weak":   {2, 2, stmtSelfWeak},
	"reset":       {1, 1, stmtReset},
	"reset-to":    {2, 2, stmtResetTo},
	"swap":        {2, 2, stmtSwap},

	"unique":         {2, 2, stmtUnique},
	"unique-reset":   {1, 2, stmtUniqueReset},
	"unique-release": {1, 1, stmtUniqueRelease},

	"expect-count":     {2, 2, stmtExpectCount},
	"expect-expired":   {2, 2, stmtExpectExpired},
	"expect-destroyed": {2, 2, stmtExpectDestroyed},
	"expect-null":      {2, 2, stmtExpectNull},
	"expect-equal":     {3, 3, stmtExpectEqual},

	"print": {1, 1, stmtPrint},
}

// Argument helpers

func symArg(args []*ast.Value, i int) (string, error) {
	if !ast.IsSym(args[i]) {
		return "", errors.Errorf("argument %d: expected a handle name, got %s", i+1, args[i])
	}
	return args[i].Str, nil
}

func intArg(args []*ast.Value, i int) (int64, error) {
	if !ast.IsInt(args[i]) {
		return 0, errors.Errorf("argument %d: expected an integer, got %s", i+1, args[i])
	}
	return args[i].Int, nil
}

func boolArg(args []*ast.Value, i int) (bool, error) {
	switch {
	case ast.SymEqStr(args[i], "true"):
		return true, nil
	case ast.SymEqStr(args[i], "false"):
		return false, nil
	}
	return false, errors.Errorf("argument %d: expected true or false, got %s", i+1, args[i])
}

// namePair reads the two leading handle names of a statement
func namePair(args []*ast.Value) (string, string, error) {
	a, err := symArg(args, 0)
	if err != nil {
		return "", "", err
	}
	b, err := symArg(args, 1)
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}

func (r *Runner) lookupPair(args []*ast.Value) (string, any, error) {
	dst, src, err := namePair(args)
	if err != nil {
		return "", nil, err
	}
	h, err := r.lookup(src)
	if err != nil {
		return "", nil, err
	}
	return dst, h, nil
}

func (r *Runner) lookupArg(args []*ast.Value, i int) (any, error) {
	name, err := symArg(args, i)
	if err != nil {
		return nil, err
	}
	return r.lookup(name)
}

func kindName(h any) string {
	switch h.(type) {
	case *sharedObject:
		return "shared"
	case *sharedBase:
		return "shared base"
	case *sharedPart:
		return "shared part"
	case *weakObject:
		return "weak"
	case *uniqueObject:
		return "unique"
	default:
		return "unknown"
	}
}

func wrongKind(want string, h any) error {
	return errors.Errorf("expected a %s handle, got %s", want, kindName(h))
}

// Construction

func stmtMake(r *Runner, _ *ast.Value, args []*ast.Value) error {
	name, err := symArg(args, 0)
	if err != nil {
		return err
	}
	v, err := intArg(args, 1)
	if err != nil {
		return err
	}
	s := memory.MakeShared(r.newObject(v))
	r.bind(name, &s)
	return nil
}

func stmtNew(r *Runner, _ *ast.Value, args []*ast.Value) error {
	name, err := symArg(args, 0)
	if err != nil {
		return err
	}
	v, err := intArg(args, 1)
	if err != nil {
		return err
	}
	obj := r.newObject(v)
	s := memory.NewShared(&obj)
	r.bind(name, &s)
	return nil
}

func stmtNull(r *Runner, _ *ast.Value, args []*ast.Value) error {
	name, err := symArg(args, 0)
	if err != nil {
		return err
	}
	r.bind(name, &sharedObject{})
	return nil
}

// Copy and move

func stmtCopy(r *Runner, _ *ast.Value, args []*ast.Value) error {
	dst, h, err := r.lookupPair(args)
	if err != nil {
		return err
	}
	var c any
	switch h := h.(type) {
	case *sharedObject:
		v := h.Clone()
		c = &v
	case *sharedBase:
		v := h.Clone()
		c = &v
	case *sharedPart:
		v := h.Clone()
		c = &v
	case *weakObject:
		v := h.Clone()
		c = &v
	default:
		return errors.Errorf("%s handles cannot be copied", kindName(h))
	}
	r.bind(dst, c)
	return nil
}

func stmtMove(r *Runner, _ *ast.Value, args []*ast.Value) error {
	dst, h, err := r.lookupPair(args)
	if err != nil {
		return err
	}
	var m any
	switch h := h.(type) {
	case *sharedObject:
		v := h.Move()
		m = &v
	case *sharedBase:
		v := h.Move()
		m = &v
	case *sharedPart:
		v := h.Move()
		m = &v
	case *weakObject:
		v := h.Move()
		m = &v
	case *uniqueObject:
		v := h.Move()
		m = &v
	}
	r.bind(dst, m)
	return nil
}

func stmtAssign(r *Runner, _ *ast.Value, args []*ast.Value) error {
	return r.assign(args, false)
}

func stmtMoveAssign(r *Runner, _ *ast.Value, args []*ast.Value) error {
	return r.assign(args, true)
}

// assign copies or moves src into an existing dst. A missing dst is bound
// to an empty handle of src's kind first.
func (r *Runner) assign(args []*ast.Value, move bool) error {
	dst, src, err := r.lookupPair(args)
	if err != nil {
		return err
	}
	d, ok := r.env[dst]
	if !ok {
		d = emptyLike(src)
		r.env[dst] = d
	}
	switch d := d.(type) {
	case *sharedObject:
		return assignShared(d, src, move)
	case *sharedBase:
		return assignShared(d, src, move)
	case *sharedPart:
		return assignShared(d, src, move)
	case *weakObject:
		switch s := src.(type) {
		case *weakObject:
			if move {
				d.MoveFrom(s)
			} else {
				d.Assign(s)
			}
			return nil
		case *sharedObject:
			if move {
				return errors.New("cannot move a shared handle into a weak one")
			}
			d.AssignShared(s)
			return nil
		}
	case *uniqueObject:
		if s, ok := src.(*uniqueObject); ok && move {
			d.MoveFrom(s)
			return nil
		}
	}
	return errors.Errorf("cannot assign %s to %s", kindName(src), kindName(d))
}

func assignShared[T any](d *memory.Shared[T], src any, move bool) error {
	s, ok := src.(*memory.Shared[T])
	if !ok {
		return errors.Errorf("cannot assign %s to %s", kindName(src), kindName(d))
	}
	if move {
		d.MoveFrom(s)
	} else {
		d.Assign(s)
	}
	return nil
}

func emptyLike(h any) any {
	switch h.(type) {
	case *sharedBase:
		return &sharedBase{}
	case *sharedPart:
		return &sharedPart{}
	case *weakObject:
		return &weakObject{}
	case *uniqueObject:
		return &uniqueObject{}
	default:
		return &sharedObject{}
	}
}

// Views

func stmtAlias(r *Runner, _ *ast.Value, args []*ast.Value) error {
	dst, h, err := r.lookupPair(args)
	if err != nil {
		return err
	}
	s, ok := h.(*sharedObject)
	if !ok {
		return wrongKind("shared", h)
	}
	var p sharedPart
	if obj := s.Get(); obj != nil {
		p = memory.Alias(s, &obj.Part)
	}
	r.bind(dst, &p)
	return nil
}

func stmtUpcast(r *Runner, _ *ast.Value, args []*ast.Value) error {
	dst, h, err := r.lookupPair(args)
	if err != nil {
		return err
	}
	s, ok := h.(*sharedObject)
	if !ok {
		return wrongKind("shared", h)
	}
	b := memory.Convert(s, toBase)
	r.bind(dst, &b)
	return nil
}

// Weak handles

func stmtWeak(r *Runner, _ *ast.Value, args []*ast.Value) error {
	dst, h, err := r.lookupPair(args)
	if err != nil {
		return err
	}
	var w weakObject
	switch h := h.(type) {
	case *sharedObject:
		w = h.Weak()
	case *weakObject:
		w = h.Clone()
	default:
		return wrongKind("shared or weak", h)
	}
	r.bind(dst, &w)
	return nil
}

func stmtLock(r *Runner, _ *ast.Value, args []*ast.Value) error {
	dst, h, err := r.lookupPair(args)
	if err != nil {
		return err
	}
	w, ok := h.(*weakObject)
	if !ok {
		return wrongKind("weak", h)
	}
	s := w.Lock()
	r.bind(dst, &s)
	return nil
}

func stmtPromote(r *Runner, _ *ast.Value, args []*ast.Value) error {
	dst, h, err := r.lookupPair(args)
	if err != nil {
		return err
	}
	w, ok := h.(*weakObject)
	if !ok {
		return wrongKind("weak", h)
	}
	s, err := memory.Promote(w)
	if err != nil {
		r.printf("promote %s: %v", args[1].Str, err)
	}
	r.bind(dst, &s)
	return nil
}

// Self references

// selfTarget returns the object behind a shared or unique handle, nil when
// the handle is empty
func selfTarget(h any) (*Object, error) {
	switch h := h.(type) {
	case *sharedObject:
		return h.Get(), nil
	case *uniqueObject:
		return h.Get(), nil
	}
	return nil, wrongKind("shared or unique", h)
}

func stmtSelf(r *Runner, _ *ast.Value, args []*ast.Value) error {
	dst, h, err := r.lookupPair(args)
	if err != nil {
		return err
	}
	obj, err := selfTarget(h)
	if err != nil {
		return err
	}
	var s sharedObject
	if obj != nil {
		s = obj.SharedFromThis()
	}
	r.bind(dst, &s)
	return nil
}

func stmtSelfWeak(r *Runner, _ *ast.Value, args []*ast.Value) error {
	dst, h, err := r.lookupPair(args)
	if err != nil {
		return err
	}
	obj, err := selfTarget(h)
	if err != nil {
		return err
	}
	var w weakObject
	if obj != nil {
		w = obj.WeakFromThis()
	}
	r.bind(dst, &w)
	return nil
}

// Reset and swap

func stmtReset(r *Runner, _ *ast.Value, args []*ast.Value) error {
	h, err := r.lookupArg(args, 0)
	if err != nil {
		return err
	}
	releaseHandle(h)
	return nil
}

func stmtResetTo(r *Runner, _ *ast.Value, args []*ast.Value) error {
	h, err := r.lookupArg(args, 0)
	if err != nil {
		return err
	}
	v, err := intArg(args, 1)
	if err != nil {
		return err
	}
	s, ok := h.(*sharedObject)
	if !ok {
		return wrongKind("shared", h)
	}
	obj := r.newObject(v)
	s.ResetTo(&obj)
	return nil
}

func stmtSwap(r *Runner, _ *ast.Value, args []*ast.Value) error {
	a, err := r.lookupArg(args, 0)
	if err != nil {
		return err
	}
	b, err := r.lookupArg(args, 1)
	if err != nil {
		return err
	}
	switch a := a.(type) {
	case *sharedObject:
		if b, ok := b.(*sharedObject); ok {
			a.Swap(b)
			return nil
		}
	case *sharedBase:
		if b, ok := b.(*sharedBase); ok {
			a.Swap(b)
			return nil
		}
	case *sharedPart:
		if b, ok := b.(*sharedPart); ok {
			a.Swap(b)
			return nil
		}
	case *weakObject:
		if b, ok := b.(*weakObject); ok {
			a.Swap(b)
			return nil
		}
	case *uniqueObject:
		if b, ok := b.(*uniqueObject); ok {
			a.Swap(b)
			return nil
		}
	}
	return errors.Errorf("cannot swap %s with %s", kindName(a), kindName(b))
}

// Unique ownership

func stmtUnique(r *Runner, _ *ast.Value, args []*ast.Value) error {
	name, err := symArg(args, 0)
	if err != nil {
		return err
	}
	v, err := intArg(args, 1)
	if err != nil {
		return err
	}
	obj := r.newObject(v)
	u := unique.New(&obj)
	r.bind(name, &u)
	return nil
}

func (r *Runner) lookupUnique(args []*ast.Value) (*uniqueObject, error) {
	h, err := r.lookupArg(args, 0)
	if err != nil {
		return nil, err
	}
	u, ok := h.(*uniqueObject)
	if !ok {
		return nil, wrongKind("unique", h)
	}
	return u, nil
}

func stmtUniqueReset(r *Runner, _ *ast.Value, args []*ast.Value) error {
	u, err := r.lookupUnique(args)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		u.Reset(nil)
		return nil
	}
	v, err := intArg(args, 1)
	if err != nil {
		return err
	}
	obj := r.newObject(v)
	u.Reset(&obj)
	return nil
}

func stmtUniqueRelease(r *Runner, _ *ast.Value, args []*ast.Value) error {
	u, err := r.lookupUnique(args)
	if err != nil {
		return err
	}
	if obj := u.Release(); obj != nil {
		r.printf("released %d", obj.Value)
	}
	return nil
}

// Expectations

func useCount(h any) int {
	switch h := h.(type) {
	case *sharedObject:
		return h.UseCount()
	case *sharedBase:
		return h.UseCount()
	case *sharedPart:
		return h.UseCount()
	case *weakObject:
		return h.UseCount()
	case *uniqueObject:
		if h.Valid() {
			return 1
		}
	}
	return 0
}

func isNull(h any) bool {
	switch h := h.(type) {
	case *sharedObject:
		return !h.Valid()
	case *sharedBase:
		return !h.Valid()
	case *sharedPart:
		return !h.Valid()
	case *weakObject:
		return h.ControlBlock() == nil
	case *uniqueObject:
		return !h.Valid()
	}
	return true
}

func stmtExpectCount(r *Runner, expr *ast.Value, args []*ast.Value) error {
	h, err := r.lookupArg(args, 0)
	if err != nil {
		return err
	}
	want, err := intArg(args, 1)
	if err != nil {
		return err
	}
	if got := useCount(h); int64(got) != want {
		return r.fail(expr, "%s: use count is %d, want %d", args[0].Str, got, want)
	}
	return nil
}

func stmtExpectExpired(r *Runner, expr *ast.Value, args []*ast.Value) error {
	h, err := r.lookupArg(args, 0)
	if err != nil {
		return err
	}
	want, err := boolArg(args, 1)
	if err != nil {
		return err
	}
	w, ok := h.(*weakObject)
	if !ok {
		return wrongKind("weak", h)
	}
	if got := w.Expired(); got != want {
		return r.fail(expr, "%s: expired is %t, want %t", args[0].Str, got, want)
	}
	return nil
}

func stmtExpectDestroyed(r *Runner, expr *ast.Value, args []*ast.Value) error {
	v, err := intArg(args, 0)
	if err != nil {
		return err
	}
	want, err := boolArg(args, 1)
	if err != nil {
		return err
	}
	if got := r.destroyed[v] > 0; got != want {
		return r.fail(expr, "object %d: destroyed is %t, want %t", v, got, want)
	}
	return nil
}

func stmtExpectNull(r *Runner, expr *ast.Value, args []*ast.Value) error {
	h, err := r.lookupArg(args, 0)
	if err != nil {
		return err
	}
	want, err := boolArg(args, 1)
	if err != nil {
		return err
	}
	if got := isNull(h); got != want {
		return r.fail(expr, "%s: null is %t, want %t", args[0].Str, got, want)
	}
	return nil
}

func stmtExpectEqual(r *Runner, expr *ast.Value, args []*ast.Value) error {
	a, err := r.lookupArg(args, 0)
	if err != nil {
		return err
	}
	b, err := r.lookupArg(args, 1)
	if err != nil {
		return err
	}
	want, err := boolArg(args, 2)
	if err != nil {
		return err
	}
	var got bool
	switch a := a.(type) {
	case *sharedObject:
		got, err = equalTo(a, b)
	case *sharedBase:
		got, err = equalTo(a, b)
	case *sharedPart:
		got, err = equalTo(a, b)
	default:
		err = wrongKind("shared", a)
	}
	if err != nil {
		return err
	}
	if got != want {
		return r.fail(expr, "%s == %s is %t, want %t", args[0].Str, args[1].Str, got, want)
	}
	return nil
}

func equalTo[T any](a *memory.Shared[T], b any) (bool, error) {
	switch b := b.(type) {
	case *sharedObject:
		return memory.Equal(a, b), nil
	case *sharedBase:
		return memory.Equal(a, b), nil
	case *sharedPart:
		return memory.Equal(a, b), nil
	}
	return false, wrongKind("shared", b)
}

// Output

func stmtPrint(r *Runner, _ *ast.Value, args []*ast.Value) error {
	h, err := r.lookupArg(args, 0)
	if err != nil {
		return err
	}
	name := args[0].Str
	if isNull(h) {
		r.printf("%s: null", name)
		return nil
	}
	switch h := h.(type) {
	case *sharedObject:
		r.printf("%s: count=%d value=%d", name, h.UseCount(), h.Get().Value)
	case *sharedBase:
		r.printf("%s: count=%d value=%d", name, h.UseCount(), h.Get().Value)
	case *sharedPart:
		r.printf("%s: count=%d label=%s", name, h.UseCount(), h.Get().Label)
	case *weakObject:
		r.printf("%s: count=%d expired=%t", name, h.UseCount(), h.Expired())
	case *uniqueObject:
		r.printf("%s: value=%d", name, h.Get().Value)
	}
	return nil
}
