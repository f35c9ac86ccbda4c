package typeresolve

import (
	"testing"

	"github.com/funvibe/pythoc-go/internal/ast"
	"github.com/funvibe/pythoc-go/internal/registry"
)

func ident(name string) *ast.Identifier { return &ast.Identifier{Value: name} }

func TestResolveBareBuiltin(t *testing.T) {
	r := New(registry.New())
	ty, err := r.Resolve(ident("i32"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ty.String() != "i32" {
		t.Fatalf("expected i32, got %s", ty.String())
	}
}

func TestResolvePointerToPointee(t *testing.T) {
	r := New(registry.New())
	sub := &ast.Subscript{
		Base:  ident("ptr"),
		Items: []ast.SubscriptItem{{Value: ident("i64")}},
	}
	ty, err := r.Resolve(sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ty.String() != "ptr[i64]" {
		t.Fatalf("expected ptr[i64], got %s", ty.String())
	}
}

func TestResolveArrayDims(t *testing.T) {
	r := New(registry.New())
	sub := &ast.Subscript{
		Base: ident("array"),
		Items: []ast.SubscriptItem{
			{Value: ident("f32")},
			{Value: &ast.IntegerLiteral{Value: 3}},
			{Value: &ast.IntegerLiteral{Value: 4}},
		},
	}
	ty, err := r.Resolve(sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ty.String() != "array[f32, 3, 4]" {
		t.Fatalf("expected array[f32, 3, 4], got %s", ty.String())
	}
}

func TestResolveUnknownNameFails(t *testing.T) {
	r := New(registry.New())
	if _, err := r.Resolve(ident("Frobnicator")); err == nil {
		t.Fatalf("expected BadAnnotation for unknown name")
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	r := New(registry.New())
	sub := &ast.Subscript{
		Base:  ident("ptr"),
		Items: []ast.SubscriptItem{{Value: ident("i32")}},
	}
	a, err1 := r.Resolve(sub)
	b, err2 := r.Resolve(sub)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v %v", err1, err2)
	}
	if a.String() != b.String() {
		t.Fatalf("resolution not idempotent: %s vs %s", a.String(), b.String())
	}
}
