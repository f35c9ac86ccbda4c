package abi

import "github.com/funvibe/pythoc-go/internal/typelattice"

// AArch64Classifier implements the AAPCS64 procedure-call standard's
// aggregate rules: an empty aggregate contributes nothing (void); a
// homogeneous floating-point aggregate (HFA) of up to four identical-kind
// float members — recursing through nested structs — is coerced to an
// array of that float type whatever its size; any other aggregate larger
// than 16 bytes passes by hidden reference; everything else up to 16
// bytes is coerced through one or two 64-bit integer registers.
type AArch64Classifier struct{}

func (AArch64Classifier) ClassifyParam(t typelattice.Type) Classification {
	return classifyAArch64(t)
}

func (AArch64Classifier) ClassifyReturn(t typelattice.Type) Classification {
	return classifyAArch64(t)
}

func classifyAArch64(t typelattice.Type) Classification {
	if !isAggregate(t) {
		return Classification{Class: Direct}
	}
	if t.Size() == 0 {
		return Classification{Class: Ignore}
	}
	if kind, count, ok := hfaKind(t); ok && count <= 4 {
		elem := typelattice.FloatType{Kind: kind}
		return Classification{Class: Coerce, CoerceType: typelattice.ArrayType{Elem: elem, Dims: []int{count}}}
	}
	if t.Size() > 16 {
		return Classification{Class: Indirect}
	}
	return coerceFromEightbytes(kindsForPlainAggregate(t), t.Size())
}

// hfaKind reports whether t is a homogeneous floating-point aggregate: every
// leaf scalar (recursing through nested structs and fixed-size arrays) is a
// float of the same kind. Returns the shared kind and the total leaf count.
func hfaKind(t typelattice.Type) (kind string, count int, ok bool) {
	switch tt := t.(type) {
	case typelattice.FloatType:
		return tt.Kind, 1, true
	case *typelattice.StructType:
		total := 0
		shared := ""
		for _, f := range tt.Fields {
			if _, isPy := f.Type.(typelattice.PyConstType); isPy {
				continue
			}
			k, n, fok := hfaKind(f.Type)
			if !fok {
				return "", 0, false
			}
			if shared == "" {
				shared = k
			} else if shared != k {
				return "", 0, false
			}
			total += n
		}
		if total == 0 {
			return "", 0, false
		}
		return shared, total, true
	case typelattice.ArrayType:
		n := 1
		for _, d := range tt.Dims {
			n *= d
		}
		k, elemCount, fok := hfaKind(tt.Elem)
		if !fok {
			return "", 0, false
		}
		return k, n * elemCount, true
	default:
		return "", 0, false
	}
}

// kindsForPlainAggregate mirrors the SysV eightbyte split for a non-HFA
// aggregate of at most 16 bytes: AAPCS64 coerces it through one or two
// 64-bit general-purpose registers, same chunking as SysV's INTEGER class.
func kindsForPlainAggregate(t typelattice.Type) []eightbyteKind {
	size := t.Size()
	kinds := make([]eightbyteKind, (size+7)/8)
	for i := range kinds {
		kinds[i] = ebInteger
	}
	return kinds
}
