// Package irtype is the small, dependency-free vocabulary of LLVM-shaped
// types shared between the type lattice (C1) and the abstract builder
// (C4), so neither package needs to import the other. It mirrors the
// handful of LLVM type kinds the compiler actually emits: integers,
// floats, pointers, arrays, structs, and function types.
package irtype

import (
	"fmt"
	"strings"
)

// Kind enumerates the LLVM type shapes the compiler emits.
type Kind int

const (
	Void Kind = iota
	Int
	Float
	Pointer
	Array
	Struct
	Func
)

// Type is an immutable LLVM-shaped type description.
type Type struct {
	Kind     Kind
	Bits     int    // Int and Float: bit width. A float's flavor is in FloatKw.
	FloatKw  string // "half"|"bfloat"|"float"|"double"|"fp128" for Kind==Float
	Elem     *Type  // Pointer/Array element type
	Len      int    // Array length
	Fields   []Type // Struct field types, in order
	Packed   bool   // Struct: true if no ABI padding should be inserted
	Params   []Type // Func parameter types
	Ret      *Type  // Func return type
	VarArg   bool
}

func VoidTy() Type                     { return Type{Kind: Void} }
func IntTy(bits int) Type              { return Type{Kind: Int, Bits: bits} }
func FloatTy(kw string, bits int) Type { return Type{Kind: Float, FloatKw: kw, Bits: bits} }
func PointerTy(elem Type) Type         { return Type{Kind: Pointer, Elem: &elem} }
func ArrayTy(elem Type, n int) Type    { return Type{Kind: Array, Elem: &elem, Len: n} }
func StructTy(fields []Type, packed bool) Type {
	return Type{Kind: Struct, Fields: fields, Packed: packed}
}
func FuncTy(params []Type, ret Type, varArg bool) Type {
	return Type{Kind: Func, Params: params, Ret: &ret, VarArg: varArg}
}

// String renders the type in LLVM textual-IR syntax.
func (t Type) String() string {
	switch t.Kind {
	case Void:
		return "void"
	case Int:
		return fmt.Sprintf("i%d", t.Bits)
	case Float:
		return t.FloatKw
	case Pointer:
		return t.Elem.String() + "*"
	case Array:
		return fmt.Sprintf("[%d x %s]", t.Len, t.Elem.String())
	case Struct:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.String()
		}
		open, close := "{", "}"
		if t.Packed {
			open, close = "<{", "}>"
		}
		return open + strings.Join(parts, ", ") + close
	case Func:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		variadic := ""
		if t.VarArg {
			if len(parts) > 0 {
				variadic = ", ..."
			} else {
				variadic = "..."
			}
		}
		return fmt.Sprintf("%s (%s%s)", t.Ret.String(), strings.Join(parts, ", "), variadic)
	}
	return "?"
}

// Equal performs a structural comparison by textual form, which is how the
// compiler decides two LLVM types are interchangeable (spec P2/P3).
func Equal(a, b Type) bool { return a.String() == b.String() }

// IsAggregate reports whether t needs ABI classification (spec §4.2).
func (t Type) IsAggregate() bool { return t.Kind == Struct || t.Kind == Array }
