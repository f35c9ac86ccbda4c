package cimport

import (
	"fmt"

	"modernc.org/cc/v4"

	"github.com/funvibe/pythoc-go/internal/typelattice"
)

// fromCType translates one parsed C type into a surface type, covering the
// scalar/pointer shapes a header's extern prototypes actually use (spec
// §4.8). Aggregates are deliberately not translated here: a cimport'd
// header's function prototypes are expected to pass structs by pointer,
// matching how the rest of this compiler's ABI layer (C3) already handles
// by-value aggregates only for functions defined in the surface language
// itself.
func fromCType(ct cc.Type) (typelattice.Type, error) {
	if ct == nil {
		return nil, fmt.Errorf("cimport: nil C type")
	}
	switch ct.Kind() {
	case cc.Void:
		return typelattice.Builtins["i8"], nil // void-returning symbols are surfaced as i8 and ignored by callers
	case cc.Bool:
		return typelattice.IntType{Width: 8, Signed: false}, nil
	case cc.Char:
		return typelattice.IntType{Width: 8, Signed: true}, nil
	case cc.SChar:
		return typelattice.IntType{Width: 8, Signed: true}, nil
	case cc.UChar:
		return typelattice.IntType{Width: 8, Signed: false}, nil
	case cc.Short:
		return typelattice.IntType{Width: 16, Signed: true}, nil
	case cc.UShort:
		return typelattice.IntType{Width: 16, Signed: false}, nil
	case cc.Int, cc.Enum:
		return typelattice.IntType{Width: 32, Signed: true}, nil
	case cc.UInt:
		return typelattice.IntType{Width: 32, Signed: false}, nil
	case cc.Long, cc.LongLong:
		return typelattice.IntType{Width: 64, Signed: true}, nil
	case cc.ULong, cc.ULongLong:
		return typelattice.IntType{Width: 64, Signed: false}, nil
	case cc.Float:
		return typelattice.FloatType{Kind: "f32"}, nil
	case cc.Double:
		return typelattice.FloatType{Kind: "f64"}, nil
	case cc.LongDouble:
		return typelattice.FloatType{Kind: "f128"}, nil
	case cc.Ptr:
		pointee, err := fromCType(ct.Elem())
		if err != nil {
			// an unsupported pointee (e.g. pointer-to-struct, pointer-to-
			// function) still yields a usable opaque pointer: callers on
			// the surface side only need the pointer's own width/ABI
			// class, not its pointee's layout, to pass it across a cimport
			// boundary.
			pointee = typelattice.IntType{Width: 8, Signed: false}
		}
		return typelattice.PointerType{Pointee: pointee}, nil
	case cc.Array:
		elem, err := fromCType(ct.Elem())
		if err != nil {
			return nil, err
		}
		n := ct.Len()
		return typelattice.ArrayType{Elem: elem, Dims: []int{int(n)}}, nil
	default:
		return nil, fmt.Errorf("cimport: unsupported C type kind %v", ct.Kind())
	}
}
