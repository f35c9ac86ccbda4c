package lower

import (
	"testing"

	"github.com/funvibe/pythoc-go/internal/ast"
	"github.com/funvibe/pythoc-go/internal/irtype"
	"github.com/funvibe/pythoc-go/internal/registry"
	"github.com/funvibe/pythoc-go/internal/typelattice"
	"github.com/funvibe/pythoc-go/internal/valueref"
)

func newTestLowerer(t *testing.T) *Lowerer {
	t.Helper()
	reg := registry.New()
	reg.Scopes().Push(registry.ScopeFunction)
	return New(reg, nil, nil, nil, nil, "test.pyc")
}

func namedCall(base string, attr string, args ...ast.Expression) *ast.Call {
	return &ast.Call{
		Callee: &ast.Attribute{Base: &ast.Identifier{Value: base}, Name: attr},
		Args:   args,
	}
}

func TestLowerIntrinsicCallIgnoresOtherCallees(t *testing.T) {
	l := newTestLowerer(t)
	_, _, ok := l.lowerIntrinsicCall(&ast.Call{Callee: &ast.Identifier{Value: "plain_fn"}})
	if ok {
		t.Fatalf("expected a plain function-name callee to fall through, not be claimed as an intrinsic")
	}
}

func TestLowerIntrinsicCallUnknownName(t *testing.T) {
	l := newTestLowerer(t)
	_, diags, ok := l.lowerIntrinsicCall(namedCall("_pc_intrinsics", "frobnicate"))
	if !ok {
		t.Fatalf("expected the _pc_intrinsics namespace to be claimed")
	}
	if len(diags) == 0 {
		t.Fatalf("expected a diagnostic for an unknown intrinsic name")
	}
}

func TestIntrinsicMoveRequiresBareName(t *testing.T) {
	l := newTestLowerer(t)
	_, diags := l.intrinsicMove(namedCall("_pc_intrinsics", "move", &ast.IntegerLiteral{Value: 1}))
	if len(diags) == 0 {
		t.Fatalf("expected a diagnostic when move's argument isn't a bare name")
	}
}

func TestIntrinsicMoveRejectsNonLinear(t *testing.T) {
	l := newTestLowerer(t)
	l.reg.Scopes().Declare("x", valueref.Ref{Kind: valueref.RValue, Type: typelattice.IntType{Width: 32, Signed: true}})

	_, diags := l.intrinsicMove(namedCall("_pc_intrinsics", "move", &ast.Identifier{Value: "x"}))
	if len(diags) == 0 {
		t.Fatalf("expected a diagnostic when moving a non-linear value")
	}
}

func TestIntrinsicMoveRejectsAlreadyConsumed(t *testing.T) {
	l := newTestLowerer(t)
	ref := valueref.NewLinear(linearStub{}, nil, []valueref.PathKey{""})
	l.reg.Scopes().Declare("x", ref.Consume(""))

	_, diags := l.intrinsicMove(namedCall("_pc_intrinsics", "move", &ast.Identifier{Value: "x"}))
	if len(diags) == 0 {
		t.Fatalf("expected a diagnostic when moving an already-consumed value")
	}
}

func TestIntrinsicCopyRequiresOneArgument(t *testing.T) {
	l := newTestLowerer(t)
	_, diags := l.intrinsicCopy(namedCall("_pc_intrinsics", "copy"))
	if len(diags) == 0 {
		t.Fatalf("expected a diagnostic when copy is called with no arguments")
	}
}

func TestIntrinsicBitcastRequiresTwoArguments(t *testing.T) {
	l := newTestLowerer(t)
	_, diags := l.intrinsicBitcast(namedCall("_pc_intrinsics", "bitcast", &ast.Identifier{Value: "x"}))
	if len(diags) == 0 {
		t.Fatalf("expected a diagnostic when bitcast is called with only one argument")
	}
}

// linearStub is a minimal typelattice.Type standing in for a real linear
// type, just enough to drive NewLinear's bookkeeping in isolation from the
// rest of the lattice.
type linearStub struct{}

func (linearStub) String() string       { return "linear_stub" }
func (linearStub) LLVM() irtype.Type    { return irtype.IntTy(8) }
func (linearStub) Size() int            { return 8 }
func (linearStub) Align() int           { return 8 }
func (linearStub) Linear() bool         { return true }
func (linearStub) Mangle() string       { return "linear_stub" }
