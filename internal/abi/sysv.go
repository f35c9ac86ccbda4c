package abi

import "github.com/funvibe/pythoc-go/internal/typelattice"

// SysVClassifier implements the System V x86-64 ABI's eightbyte
// classification (SysV ABI draft §3.2.3) for aggregate parameters and
// return values: structs/unions larger than two eightbytes (16 bytes) pass
// in MEMORY; everything else is carried in one or two eightbytes, each
// independently classified INTEGER or SSE.
type SysVClassifier struct{}

// eightbyteKind is the per-8-byte-chunk classification prior to merging.
type eightbyteKind int

const (
	ebNone eightbyteKind = iota
	ebInteger
	ebSSE
)

func (SysVClassifier) ClassifyParam(t typelattice.Type) Classification {
	return classifySysV(t)
}

func (SysVClassifier) ClassifyReturn(t typelattice.Type) Classification {
	return classifySysV(t)
}

func classifySysV(t typelattice.Type) Classification {
	if !isAggregate(t) {
		return Classification{Class: Direct}
	}
	size := t.Size()
	if size == 0 {
		return Classification{Class: Ignore}
	}
	if size > 16 {
		return Classification{Class: Indirect}
	}
	kinds := make([]eightbyteKind, (size+7)/8)
	classifyFields(t, 0, kinds)
	return coerceFromEightbytes(kinds, size)
}

// classifyFields walks an aggregate's scalar leaves, merging each leaf's
// eightbyte classification into kinds at the appropriate offset. Any
// INTEGER leaf in an eightbyte dominates an SSE leaf sharing it (SysV ABI
// merge rule); the merge is approximated field-by-field in declaration
// order, which matches natural (non-packed) layout offsets.
func classifyFields(t typelattice.Type, base int, kinds []eightbyteKind) {
	switch tt := t.(type) {
	case *typelattice.StructType:
		off := 0
		for _, f := range tt.Fields {
			if _, ok := f.Type.(typelattice.PyConstType); ok {
				continue
			}
			a := f.Type.Align()
			if a > 0 && off%a != 0 {
				off += a - off%a
			}
			classifyFields(f.Type, base+off, kinds)
			off += f.Type.Size()
		}
	case *typelattice.UnionType:
		for _, f := range tt.Fields {
			classifyFields(f.Type, base, kinds)
		}
	case typelattice.ArrayType:
		stride := tt.Elem.Size()
		n := 1
		for _, d := range tt.Dims {
			n *= d
		}
		for i := 0; i < n; i++ {
			classifyFields(tt.Elem, base+i*stride, kinds)
		}
	case typelattice.FloatType:
		mergeLeaf(kinds, base, tt.Size(), ebSSE)
	default:
		mergeLeaf(kinds, base, t.Size(), ebInteger)
	}
}

func mergeLeaf(kinds []eightbyteKind, base, size int, kind eightbyteKind) {
	startIdx := base / 8
	endIdx := (base + size - 1) / 8
	for i := startIdx; i <= endIdx && i < len(kinds); i++ {
		switch {
		case kinds[i] == ebNone:
			kinds[i] = kind
		case kinds[i] == ebSSE && kind == ebInteger:
			kinds[i] = ebInteger // INTEGER dominates SSE when they share an eightbyte
		}
	}
}

func coerceFromEightbytes(kinds []eightbyteKind, size int) Classification {
	i64 := typelattice.IntType{Width: 64, Signed: true}
	f64 := typelattice.FloatType{Kind: "f64"}

	if len(kinds) == 1 {
		if kinds[0] == ebSSE {
			return Classification{Class: Coerce, CoerceType: scaledFloat(size)}
		}
		return Classification{Class: Coerce, CoerceType: scaledInt(size)}
	}

	// Two eightbytes: build a 2-field struct coercion type.
	fields := make([]typelattice.Field, 2)
	for i, k := range kinds {
		if k == ebSSE {
			fields[i] = typelattice.Field{Type: f64}
		} else {
			fields[i] = typelattice.Field{Type: i64}
		}
	}
	st := typelattice.NewOpaqueStruct("")
	st.SetFields(fields)
	return Classification{Class: Coerce, CoerceType: st}
}

func scaledInt(size int) typelattice.Type {
	switch {
	case size <= 1:
		return typelattice.IntType{Width: 8, Signed: true}
	case size <= 2:
		return typelattice.IntType{Width: 16, Signed: true}
	case size <= 4:
		return typelattice.IntType{Width: 32, Signed: true}
	default:
		return typelattice.IntType{Width: 64, Signed: true}
	}
}

func scaledFloat(size int) typelattice.Type {
	if size <= 4 {
		return typelattice.FloatType{Kind: "f32"}
	}
	return typelattice.FloatType{Kind: "f64"}
}

func isAggregate(t typelattice.Type) bool {
	switch t.(type) {
	case *typelattice.StructType, *typelattice.UnionType, typelattice.ArrayType:
		return true
	default:
		return false
	}
}
