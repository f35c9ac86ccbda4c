package abi

import "github.com/funvibe/pythoc-go/internal/typelattice"

import "testing"

func point2D() typelattice.Type {
	s := typelattice.NewOpaqueStruct("Point2D")
	s.SetFields([]typelattice.Field{
		{Name: "a", Type: typelattice.IntType{Width: 32, Signed: true}},
		{Name: "b", Type: typelattice.IntType{Width: 32, Signed: true}},
	})
	return s
}

func TestSysVSmallIntStructCoercesToI64(t *testing.T) {
	c := SysVClassifier{}.ClassifyParam(point2D())
	if c.Class != Coerce {
		t.Fatalf("expected Coerce, got %v", c.Class)
	}
	if c.CoerceType.String() != "i64" {
		t.Fatalf("expected i64 coercion, got %s", c.CoerceType.String())
	}
}

func TestSysVLargeStructIndirect(t *testing.T) {
	s := typelattice.NewOpaqueStruct("Big")
	fields := make([]typelattice.Field, 3)
	for i := range fields {
		fields[i] = typelattice.Field{Type: typelattice.IntType{Width: 64, Signed: true}}
	}
	s.SetFields(fields)
	c := SysVClassifier{}.ClassifyParam(s)
	if c.Class != Indirect {
		t.Fatalf("expected Indirect for 24-byte struct, got %v", c.Class)
	}
}

func TestAArch64EmptyStructIgnored(t *testing.T) {
	s := typelattice.NewOpaqueStruct("Empty")
	s.SetFields(nil)
	c := AArch64Classifier{}.ClassifyParam(s)
	if c.Class != Ignore {
		t.Fatalf("expected Ignore for empty struct, got %v", c.Class)
	}
}

func TestAArch64HFACoercesToFloatArray(t *testing.T) {
	s := typelattice.NewOpaqueStruct("Vec2")
	s.SetFields([]typelattice.Field{
		{Name: "x", Type: typelattice.FloatType{Kind: "f32"}},
		{Name: "y", Type: typelattice.FloatType{Kind: "f32"}},
	})
	c := AArch64Classifier{}.ClassifyParam(s)
	if c.Class != Coerce {
		t.Fatalf("expected Coerce, got %v", c.Class)
	}
	arr, ok := c.CoerceType.(typelattice.ArrayType)
	if !ok || arr.Dims[0] != 2 {
		t.Fatalf("expected array[f32,2] HFA coercion, got %s", c.CoerceType.String())
	}
}

func TestAArch64NestedStructHFA(t *testing.T) {
	inner := typelattice.NewOpaqueStruct("Pair")
	inner.SetFields([]typelattice.Field{
		{Name: "a", Type: typelattice.FloatType{Kind: "f64"}},
		{Name: "b", Type: typelattice.FloatType{Kind: "f64"}},
	})
	outer := typelattice.NewOpaqueStruct("Quad")
	outer.SetFields([]typelattice.Field{
		{Name: "lo", Type: inner},
		{Name: "hi", Type: inner},
	})
	k, count, ok := hfaKind(outer)
	if !ok || k != "f64" || count != 4 {
		t.Fatalf("expected HFA f64 x4 through nested structs, got kind=%s count=%d ok=%v", k, count, ok)
	}
}

func TestForTripleSelectsAArch64(t *testing.T) {
	if _, ok := ForTriple("aarch64-unknown-linux-gnu").(AArch64Classifier); !ok {
		t.Fatalf("expected AArch64Classifier for aarch64 triple")
	}
	if _, ok := ForTriple("x86_64-unknown-linux-gnu").(SysVClassifier); !ok {
		t.Fatalf("expected SysVClassifier for x86_64 triple")
	}
}
