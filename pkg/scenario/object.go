package scenario

import (
	"fmt"

	"rcptr_go/pkg/memory"
	"rcptr_go/pkg/unique"
)

// Base is embedded first in Object, so a handle converted to *Base tracks
// the same address as the Object handle it came from.
type Base struct {
	Value int64
}

// Part is a sub-object exposed through aliasing handles
type Part struct {
	Label string
}

// Object is the managed type scripts create. Its Value names it in
// expectations and output.
type Object struct {
	Base
	memory.EnableSharedFromThis[Object]
	Part Part

	onDestroy func(*Object)
}

func (o *Object) Destroy() {
	if o.onDestroy != nil {
		o.onDestroy(o)
	}
}

func newObject(v int64, onDestroy func(*Object)) Object {
	return Object{
		Base:      Base{Value: v},
		Part:      Part{Label: fmt.Sprintf("part-%d", v)},
		onDestroy: onDestroy,
	}
}

func toBase(o *Object) *Base { return &o.Base }

type (
	sharedObject = memory.Shared[Object]
	sharedBase   = memory.Shared[Base]
	sharedPart   = memory.Shared[Part]
	weakObject   = memory.Weak[Object]
	uniqueObject = unique.Ptr[Object, unique.DefaultDelete[Object]]
)
