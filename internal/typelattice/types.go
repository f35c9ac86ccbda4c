// Package typelattice implements C1: the representation of every surface
// type, with size/alignment/LLVM-lowering/mangling derived structurally
// rather than stored, per spec §3's invariant that a type's LLVM lowering
// is a pure function of its canonical name.
package typelattice

import (
	"fmt"
	"strings"

	"github.com/funvibe/pythoc-go/internal/irtype"
)

// Type is the common interface every lattice entry satisfies (spec §3).
type Type interface {
	// String returns the canonical textual name; two types with equal
	// canonical names are interchangeable (spec §3 invariant).
	String() string
	LLVM() irtype.Type
	Size() int
	Align() int
	Linear() bool
	// Mangle returns the fragment this type contributes when used as a
	// suffix value in `@compile(suffix=T)` (spec §4.6).
	Mangle() string
}

// ---- primitives ----

type IntType struct {
	Width  int
	Signed bool
}

func (t IntType) String() string {
	if t.Signed {
		return fmt.Sprintf("i%d", t.Width)
	}
	return fmt.Sprintf("u%d", t.Width)
}
func (t IntType) LLVM() irtype.Type { return irtype.IntTy(t.Width) }
func (t IntType) Size() int         { return (t.Width + 7) / 8 }
func (t IntType) Align() int        { return t.Size() }
func (t IntType) Linear() bool      { return false }
func (t IntType) Mangle() string    { return t.String() }

// floatKinds maps surface spelling to (LLVM keyword, bit width).
var floatKinds = map[string][2]any{
	"f16":  {"half", 2},
	"bf16": {"bfloat", 2},
	"f32":  {"float", 4},
	"f64":  {"double", 8},
	"f128": {"fp128", 16},
}

type FloatType struct{ Kind string } // one of f16,bf16,f32,f64,f128

func (t FloatType) String() string { return t.Kind }
func (t FloatType) LLVM() irtype.Type {
	kw := floatKinds[t.Kind][0].(string)
	return irtype.FloatTy(kw, floatKinds[t.Kind][1].(int)*8)
}
func (t FloatType) Size() int      { return floatKinds[t.Kind][1].(int) }
func (t FloatType) Align() int     { return t.Size() }
func (t FloatType) Linear() bool   { return false }
func (t FloatType) Mangle() string { return t.Kind }

// ---- pointer / array ----

// PointerType is `ptr[T]` or `ptr[T, d1, ..., dk]`, which decays to
// `ptr[array[T, d2, ..., dk]]` when more than one dimension is given
// (spec §3).
type PointerType struct {
	Pointee Type
	Dims    []int // extra dims beyond the first; empty for a plain ptr[T]
}

func (t PointerType) effective() Type {
	if len(t.Dims) == 0 {
		return t.Pointee
	}
	return ArrayType{Elem: t.Pointee, Dims: t.Dims}
}
func (t PointerType) String() string {
	if len(t.Dims) == 0 {
		return fmt.Sprintf("ptr[%s]", t.Pointee.String())
	}
	dims := make([]string, len(t.Dims))
	for i, d := range t.Dims {
		dims[i] = fmt.Sprintf("%d", d)
	}
	return fmt.Sprintf("ptr[%s, %s]", t.Pointee.String(), strings.Join(dims, ", "))
}
func (t PointerType) LLVM() irtype.Type { return irtype.PointerTy(t.effective().LLVM()) }
func (t PointerType) Size() int         { return 8 }
func (t PointerType) Align() int        { return 8 }
func (t PointerType) Linear() bool      { return false }
func (t PointerType) Mangle() string    { return "ptr_" + t.effective().Mangle() }

// ArrayType is `array[T, d1, ..., dn]`; dimension order is meaningful and
// never reordered (spec §3).
type ArrayType struct {
	Elem Type
	Dims []int
}

func (t ArrayType) String() string {
	dims := make([]string, len(t.Dims))
	for i, d := range t.Dims {
		dims[i] = fmt.Sprintf("%d", d)
	}
	return fmt.Sprintf("array[%s, %s]", t.Elem.String(), strings.Join(dims, ", "))
}
func (t ArrayType) LLVM() irtype.Type {
	ty := t.Elem.LLVM()
	for i := len(t.Dims) - 1; i >= 0; i-- {
		ty = irtype.ArrayTy(ty, t.Dims[i])
	}
	return ty
}
func (t ArrayType) Size() int {
	n := 1
	for _, d := range t.Dims {
		n *= d
	}
	return n * t.Elem.Size()
}
func (t ArrayType) Align() int     { return t.Elem.Align() }
func (t ArrayType) Linear() bool   { return t.Elem.Linear() }
func (t ArrayType) Mangle() string { return "array_" + t.Elem.Mangle() }

// ---- aggregates (struct/union) ----

// Field is one (name, type) pair; Name is empty for a positional field.
type Field struct {
	Name string
	Type Type
}

// StructType supports the two-stage cyclic-reference construction from
// spec §9: NewOpaqueStruct installs a named, fieldless handle into the
// registry; SetFields fills it in afterward. Field types may reference
// the same *StructType pointer (through ptr[Node]) without recursing.
type StructType struct {
	Name   string
	Fields []Field
}

func NewOpaqueStruct(name string) *StructType { return &StructType{Name: name} }

func (t *StructType) SetFields(fields []Field) { t.Fields = fields }

func (t *StructType) String() string { return t.Name }
func (t *StructType) LLVM() irtype.Type {
	fts := make([]irtype.Type, len(t.Fields))
	for i, f := range t.Fields {
		if _, ok := f.Type.(PyConstType); ok {
			continue // pyconst fields do not participate in storage (spec §3)
		}
		fts[i] = f.Type.LLVM()
	}
	fts = compactNonPyconst(t.Fields, fts)
	return irtype.StructTy(fts, false)
}
func compactNonPyconst(fields []Field, llvm []irtype.Type) []irtype.Type {
	out := make([]irtype.Type, 0, len(fields))
	for i, f := range fields {
		if _, ok := f.Type.(PyConstType); ok {
			continue
		}
		out = append(out, llvm[i])
	}
	return out
}
func (t *StructType) Size() int {
	size := 0
	for _, f := range t.Fields {
		if _, ok := f.Type.(PyConstType); ok {
			continue
		}
		a := f.Type.Align()
		if a > 0 && size%a != 0 {
			size += a - size%a
		}
		size += f.Type.Size()
	}
	if al := t.Align(); al > 0 && size%al != 0 {
		size += al - size%al
	}
	return size
}
func (t *StructType) Align() int {
	max := 1
	for _, f := range t.Fields {
		if _, ok := f.Type.(PyConstType); ok {
			continue
		}
		if a := f.Type.Align(); a > max {
			max = a
		}
	}
	return max
}
func (t *StructType) Linear() bool {
	for _, f := range t.Fields {
		if f.Type.Linear() {
			return true
		}
	}
	return false
}
func (t *StructType) Mangle() string { return t.Name }

// FieldIndex returns the position of a named field, or -1.
func (t *StructType) FieldIndex(name string) int {
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// UnionType: storage is the max member; assignment sets exactly one field
// (spec §4.4).
type UnionType struct {
	Name   string
	Fields []Field
}

func NewOpaqueUnion(name string) *UnionType    { return &UnionType{Name: name} }
func (t *UnionType) SetFields(fields []Field)  { t.Fields = fields }
func (t *UnionType) String() string            { return t.Name }
func (t *UnionType) LLVM() irtype.Type {
	sz := t.Size()
	return irtype.ArrayTy(irtype.IntTy(8), sz)
}
func (t *UnionType) Size() int {
	max := 0
	for _, f := range t.Fields {
		if s := f.Type.Size(); s > max {
			max = s
		}
	}
	return max
}
func (t *UnionType) Align() int {
	max := 1
	for _, f := range t.Fields {
		if a := f.Type.Align(); a > max {
			max = a
		}
	}
	return max
}
func (t *UnionType) Linear() bool {
	for _, f := range t.Fields {
		if f.Type.Linear() {
			return true
		}
	}
	return false
}
func (t *UnionType) Mangle() string { return t.Name }
func (t *UnionType) FieldIndex(name string) int {
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// ---- enum (tagged variant) ----

type EnumVariant struct {
	Name    string
	Payload Type // nil for a void variant
	Tag     int64
}

// EnumType: tag integer type plus an ordered set of variants, auto-numbered
// starting at 0 or last+1 unless an explicit tag is given (spec §3).
type EnumType struct {
	Name     string
	Tag      Type
	Variants []EnumVariant
}

func (t *EnumType) String() string { return t.Name }
func (t *EnumType) LLVM() irtype.Type {
	payloadSize := 0
	for _, v := range t.Variants {
		if v.Payload != nil {
			if s := v.Payload.Size(); s > payloadSize {
				payloadSize = s
			}
		}
	}
	fields := []irtype.Type{t.Tag.LLVM()}
	if payloadSize > 0 {
		fields = append(fields, irtype.ArrayTy(irtype.IntTy(8), payloadSize))
	}
	return irtype.StructTy(fields, false)
}
func (t *EnumType) Size() int {
	payloadSize := 0
	for _, v := range t.Variants {
		if v.Payload != nil {
			if s := v.Payload.Size(); s > payloadSize {
				payloadSize = s
			}
		}
	}
	size := t.Tag.Size() + payloadSize
	if al := t.Align(); al > 0 && size%al != 0 {
		size += al - size%al
	}
	return size
}
func (t *EnumType) Align() int {
	max := t.Tag.Align()
	for _, v := range t.Variants {
		if v.Payload != nil {
			if a := v.Payload.Align(); a > max {
				max = a
			}
		}
	}
	return max
}
func (t *EnumType) Linear() bool {
	for _, v := range t.Variants {
		if v.Payload != nil && v.Payload.Linear() {
			return true
		}
	}
	return false
}
func (t *EnumType) Mangle() string { return t.Name }
func (t *EnumType) VariantByName(name string) (EnumVariant, int, bool) {
	for i, v := range t.Variants {
		if v.Name == name {
			return v, i, true
		}
	}
	return EnumVariant{}, -1, false
}

// ---- function type ----

type FuncType struct {
	Params []Type
	Ret    Type
	VarArg bool
}

func (t FuncType) String() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.String()
	}
	ret := "void"
	if t.Ret != nil {
		ret = t.Ret.String()
	}
	return fmt.Sprintf("func[(%s), %s]", strings.Join(parts, ", "), ret)
}
func (t FuncType) LLVM() irtype.Type {
	params := make([]irtype.Type, len(t.Params))
	for i, p := range t.Params {
		params[i] = p.LLVM()
	}
	ret := irtype.VoidTy()
	if t.Ret != nil {
		ret = t.Ret.LLVM()
	}
	return irtype.FuncTy(params, ret, t.VarArg)
}
func (t FuncType) Size() int      { return 8 } // function pointer
func (t FuncType) Align() int     { return 8 }
func (t FuncType) Linear() bool   { return false }
func (t FuncType) Mangle() string { return t.String() }

// ---- qualifier wrappers ----

type ConstType struct{ Inner Type }

func (t ConstType) String() string      { return "const[" + t.Inner.String() + "]" }
func (t ConstType) LLVM() irtype.Type   { return t.Inner.LLVM() }
func (t ConstType) Size() int           { return t.Inner.Size() }
func (t ConstType) Align() int          { return t.Inner.Align() }
func (t ConstType) Linear() bool        { return t.Inner.Linear() }
func (t ConstType) Mangle() string      { return "const_" + t.Inner.Mangle() }

type VolatileType struct{ Inner Type }

func (t VolatileType) String() string    { return "volatile[" + t.Inner.String() + "]" }
func (t VolatileType) LLVM() irtype.Type { return t.Inner.LLVM() }
func (t VolatileType) Size() int         { return t.Inner.Size() }
func (t VolatileType) Align() int        { return t.Inner.Align() }
func (t VolatileType) Linear() bool      { return t.Inner.Linear() }
func (t VolatileType) Mangle() string    { return "volatile_" + t.Inner.Mangle() }

// StaticType marks a variable's storage as a module global (spec §4.5);
// it does not change the value's own type identity once loaded.
type StaticType struct{ Inner Type }

func (t StaticType) String() string    { return "static[" + t.Inner.String() + "]" }
func (t StaticType) LLVM() irtype.Type { return t.Inner.LLVM() }
func (t StaticType) Size() int         { return t.Inner.Size() }
func (t StaticType) Align() int        { return t.Inner.Align() }
func (t StaticType) Linear() bool      { return t.Inner.Linear() }
func (t StaticType) Mangle() string    { return "static_" + t.Inner.Mangle() }

// LinearType marks a value as required to be consumed exactly once along
// every control-flow path (spec §3/§4.5 Linear type policy).
type LinearType struct{ Inner Type }

func (t LinearType) String() string    { return "linear[" + t.Inner.String() + "]" }
func (t LinearType) LLVM() irtype.Type { return t.Inner.LLVM() }
func (t LinearType) Size() int         { return t.Inner.Size() }
func (t LinearType) Align() int        { return t.Inner.Align() }
func (t LinearType) Linear() bool      { return true }
func (t LinearType) Mangle() string    { return "lin_" + t.Inner.Mangle() }

// RefinedType pairs a tuple type with a named pure predicate established
// either statically (assume) or dynamically (refine); storage is shared
// with the underlying tuple (spec §3).
type RefinedType struct {
	Underlying Type
	PredName   string
}

func (t RefinedType) String() string    { return fmt.Sprintf("refined[%s]", t.PredName) }
func (t RefinedType) LLVM() irtype.Type { return t.Underlying.LLVM() }
func (t RefinedType) Size() int         { return t.Underlying.Size() }
func (t RefinedType) Align() int        { return t.Underlying.Align() }
func (t RefinedType) Linear() bool      { return t.Underlying.Linear() }
func (t RefinedType) Mangle() string    { return "refined_" + t.PredName }

// PyConstType is a zero-sized compile-time-constant type: it occupies no
// storage, participates in type identity, and its value is known at
// lowering time (spec §3).
type PyConstType struct{ Value string }

func (t PyConstType) String() string    { return fmt.Sprintf("pyconst[%s]", t.Value) }
func (t PyConstType) LLVM() irtype.Type { return irtype.StructTy(nil, false) }
func (t PyConstType) Size() int         { return 0 }
func (t PyConstType) Align() int        { return 1 }
func (t PyConstType) Linear() bool      { return false }
func (t PyConstType) Mangle() string    { return t.Value }

// Equal compares two lattice entries by canonical name (spec §3 invariant).
func Equal(a, b Type) bool { return a.String() == b.String() }
