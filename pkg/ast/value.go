package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag represents the type of a Value
type Tag int

const (
	TInt Tag = iota
	TSym
	TStr
	TCell
	TNil
)

// Value is the tagged union for script data
type Value struct {
	Tag Tag

	// TInt
	Int int64

	// TSym, TStr
	Str string

	// TCell
	Car *Value
	Cdr *Value

	// Line where the value starts, 0 when built in code
	Line int
}

// Nil is the singleton nil value
var Nil = &Value{Tag: TNil}

// NewInt creates an integer value
func NewInt(i int64) *Value {
	return &Value{Tag: TInt, Int: i}
}

// NewSym creates a symbol value
func NewSym(s string) *Value {
	return &Value{Tag: TSym, Str: s}
}

// NewStr creates a string value
func NewStr(s string) *Value {
	return &Value{Tag: TStr, Str: s}
}

// NewCell creates a cons cell
func NewCell(car, cdr *Value) *Value {
	return &Value{Tag: TCell, Car: car, Cdr: cdr}
}

// IsNil checks if a value is nil
func IsNil(v *Value) bool {
	return v == nil || v.Tag == TNil
}

// IsSym checks if a value is a symbol
func IsSym(v *Value) bool {
	return v != nil && v.Tag == TSym
}

// IsInt checks if a value is an integer
func IsInt(v *Value) bool {
	return v != nil && v.Tag == TInt
}

// IsStr checks if a value is a string
func IsStr(v *Value) bool {
	return v != nil && v.Tag == TStr
}

// IsCell checks if a value is a cons cell
func IsCell(v *Value) bool {
	return v != nil && v.Tag == TCell
}

// SymEqStr compares a symbol to a string
func SymEqStr(s *Value, str string) bool {
	if s == nil || s.Tag != TSym {
		return false
	}
	return s.Str == str
}

// List helpers
func List1(a *Value) *Value {
	return NewCell(a, Nil)
}

func List2(a, b *Value) *Value {
	return NewCell(a, NewCell(b, Nil))
}

func List3(a, b, c *Value) *Value {
	return NewCell(a, NewCell(b, NewCell(c, Nil)))
}

// ListLen returns the length of a list
func ListLen(v *Value) int {
	n := 0
	for !IsNil(v) && IsCell(v) {
		n++
		v = v.Cdr
	}
	return n
}

// ListToSlice converts a list to a slice
func ListToSlice(v *Value) []*Value {
	var result []*Value
	for !IsNil(v) && IsCell(v) {
		result = append(result, v.Car)
		v = v.Cdr
	}
	return result
}

// SliceToList converts a slice to a list
func SliceToList(items []*Value) *Value {
	result := Nil
	for i := len(items) - 1; i >= 0; i-- {
		result = NewCell(items[i], result)
	}
	return result
}

// String returns a string representation of a value
func (v *Value) String() string {
	if v == nil {
		return "nil"
	}
	switch v.Tag {
	case TInt:
		return strconv.FormatInt(v.Int, 10)
	case TSym:
		return v.Str
	case TStr:
		return strconv.Quote(v.Str)
	case TCell:
		return listToString(v)
	case TNil:
		return "()"
	default:
		return "?"
	}
}

func listToString(v *Value) string {
	var sb strings.Builder
	sb.WriteByte('(')
	first := true
	for !IsNil(v) && IsCell(v) {
		if !first {
			sb.WriteByte(' ')
		}
		first = false
		sb.WriteString(v.Car.String())
		v = v.Cdr
	}
	if !IsNil(v) {
		// Improper list
		sb.WriteString(" . ")
		sb.WriteString(v.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// TagName returns the name of a tag
func TagName(t Tag) string {
	switch t {
	case TInt:
		return "INT"
	case TSym:
		return "SYM"
	case TStr:
		return "STR"
	case TCell:
		return "CELL"
	case TNil:
		return "NIL"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", t)
	}
}
