package typelattice

import "testing"

func TestIntTypeSizeAlign(t *testing.T) {
	i32 := IntType{Width: 32, Signed: true}
	if i32.Size() != 4 {
		t.Fatalf("expected size 4, got %d", i32.Size())
	}
	if i32.String() != "i32" {
		t.Fatalf("expected i32, got %s", i32.String())
	}
}

func TestStructSizeMatchesNaturalCLayout(t *testing.T) {
	// struct Point2D { a: i32; b: i32 } — spec scenario 2: natural layout,
	// no custom packing, size 8.
	s := NewOpaqueStruct("Point2D")
	s.SetFields([]Field{
		{Name: "a", Type: IntType{Width: 32, Signed: true}},
		{Name: "b", Type: IntType{Width: 32, Signed: true}},
	})
	if got := s.Size(); got != 8 {
		t.Fatalf("expected size 8, got %d", got)
	}
}

func TestPyConstFieldElidedFromStorage(t *testing.T) {
	s := NewOpaqueStruct("Tagged")
	s.SetFields([]Field{
		{Name: "tag", Type: PyConstType{Value: "1"}},
		{Name: "x", Type: IntType{Width: 64, Signed: true}},
	})
	if got := s.Size(); got != 8 {
		t.Fatalf("pyconst field must not contribute to storage, got size %d", got)
	}
}

func TestCyclicStructViaPointer(t *testing.T) {
	// Node { next: ptr[Node] } — two-stage construction from spec §9.
	node := NewOpaqueStruct("Node")
	node.SetFields([]Field{
		{Name: "value", Type: IntType{Width: 32, Signed: true}},
		{Name: "next", Type: PointerType{Pointee: node}},
	})
	if got := node.Size(); got != 16 {
		t.Fatalf("expected padded size 16 (4-byte value + 4 pad + 8-byte ptr), got %d", got)
	}
	if node.FieldIndex("next") != 1 {
		t.Fatalf("expected field index 1 for next")
	}
}

func TestEqualByCanonicalName(t *testing.T) {
	a := IntType{Width: 32, Signed: true}
	b := IntType{Width: 32, Signed: true}
	if !Equal(a, b) {
		t.Fatalf("expected equal canonical names")
	}
}

func TestLinearPropagatesThroughArray(t *testing.T) {
	lin := LinearType{Inner: IntType{Width: 64, Signed: true}}
	arr := ArrayType{Elem: lin, Dims: []int{4}}
	if !arr.Linear() {
		t.Fatalf("array of linear elements must itself be linear")
	}
}
