package lower

import (
	"github.com/funvibe/pythoc-go/internal/ast"
	"github.com/funvibe/pythoc-go/internal/diagnostics"
	"github.com/funvibe/pythoc-go/internal/irbuilder"
	"github.com/funvibe/pythoc-go/internal/typelattice"
	"github.com/funvibe/pythoc-go/internal/valueref"
)

// intrinsicNamespace is the bare name `_pc_intrinsics.*` calls are
// dispatched through (spec §6 "dynamic/attribute-style intrinsics ...
// model as tagged variants of a namespace object"; supplemented from
// `original_source/pythoc/_pc_intrinsics.py`/`inline/_intrinsics.py`).
const intrinsicNamespace = "_pc_intrinsics"

// lowerIntrinsicCall handles `_pc_intrinsics.<name>(...)`, returning ok
// false for any call whose callee isn't that namespace so lowerCall can
// fall through to ordinary function-call resolution.
func (l *Lowerer) lowerIntrinsicCall(n *ast.Call) (ref valueref.Ref, diags []*diagnostics.Diagnostic, ok bool) {
	at, isAttr := n.Callee.(*ast.Attribute)
	if !isAttr {
		return valueref.Ref{}, nil, false
	}
	base, isName := at.Base.(*ast.Identifier)
	if !isName || base.Value != intrinsicNamespace {
		return valueref.Ref{}, nil, false
	}

	switch at.Name {
	case "move":
		ref, diags = l.intrinsicMove(n)
	case "copy":
		ref, diags = l.intrinsicCopy(n)
	case "addressof":
		ref, diags = l.intrinsicAddressOf(n)
	case "bitcast":
		ref, diags = l.intrinsicBitcast(n)
	default:
		diags = []*diagnostics.Diagnostic{l.errf(n, diagnostics.KindTyping, "unknown intrinsic %s.%s", intrinsicNamespace, at.Name)}
	}
	return ref, diags, true
}

// intrinsicMove resolves `_pc_intrinsics.move(x)`: the one surface form
// that can mark a linear local's root path Consumed (spec §3/§4.5 P1) —
// without it, a linear binding could never satisfy the "all active
// sub-paths consumed before the owning scope exits" invariant, since no
// other lowering path (passing the value to a function call included)
// ever writes a Consumed state back into the scope binding itself.
func (l *Lowerer) intrinsicMove(n *ast.Call) (valueref.Ref, []*diagnostics.Diagnostic) {
	if len(n.Args) != 1 {
		return valueref.Ref{}, []*diagnostics.Diagnostic{l.errf(n, diagnostics.KindLinear, "%s.move expects exactly one argument", intrinsicNamespace)}
	}
	id, ok := n.Args[0].(*ast.Identifier)
	if !ok {
		return valueref.Ref{}, []*diagnostics.Diagnostic{l.errf(n, diagnostics.KindLinear, "%s.move argument must be a bare name", intrinsicNamespace)}
	}
	b, ok := l.reg.Scopes().Lookup(id.Value)
	if !ok {
		return valueref.Ref{}, []*diagnostics.Diagnostic{l.errf(n, diagnostics.KindTyping, "undefined name %q", id.Value)}
	}
	if b.Value.Type == nil || !b.Value.Type.Linear() {
		return valueref.Ref{}, []*diagnostics.Diagnostic{l.errf(n, diagnostics.KindLinear, "%s.move argument %q is not a linear value", intrinsicNamespace, id.Value)}
	}
	if b.Value.State("") != valueref.Active {
		return valueref.Ref{}, []*diagnostics.Diagnostic{l.errf(n, diagnostics.KindLinear, "%s.move: %q already consumed", intrinsicNamespace, id.Value)}
	}

	out := b.Value
	if out.Kind == valueref.Address {
		loaded := l.builder.Load(out.IR.(irbuilder.Value))
		out.Kind = valueref.RValue
		out.IR = loaded
	}
	l.reg.Scopes().Declare(id.Value, b.Value.Consume(""))
	return out, nil
}

// intrinsicCopy reads a value without touching its linear state — an
// explicit escape hatch for passing a linear value's current contents to
// an API that, unlike a real move, must not disturb the binding's own
// ownership bookkeeping.
func (l *Lowerer) intrinsicCopy(n *ast.Call) (valueref.Ref, []*diagnostics.Diagnostic) {
	if len(n.Args) != 1 {
		return valueref.Ref{}, []*diagnostics.Diagnostic{l.errf(n, diagnostics.KindTyping, "%s.copy expects exactly one argument", intrinsicNamespace)}
	}
	return l.lowerExpr(n.Args[0])
}

// intrinsicAddressOf resolves `_pc_intrinsics.addressof(x)` to a raw
// pointer value over x's storage (spec §4.4's addressable-lvalue rule,
// exposed directly rather than only through attribute/subscript targets).
func (l *Lowerer) intrinsicAddressOf(n *ast.Call) (valueref.Ref, []*diagnostics.Diagnostic) {
	if len(n.Args) != 1 {
		return valueref.Ref{}, []*diagnostics.Diagnostic{l.errf(n, diagnostics.KindTyping, "%s.addressof expects exactly one argument", intrinsicNamespace)}
	}
	ptr, t, diags := l.addressOf(n.Args[0])
	if len(diags) > 0 {
		return valueref.Ref{}, diags
	}
	return valueref.Ref{Kind: valueref.RValue, Type: typelattice.PointerType{Pointee: t}, IR: ptr}, nil
}

// intrinsicBitcast resolves `_pc_intrinsics.bitcast(x, T)`: lowers x and
// reinterprets its bit pattern as T without a conversion instruction,
// delegating to the builder's own BitCast op (C4).
func (l *Lowerer) intrinsicBitcast(n *ast.Call) (valueref.Ref, []*diagnostics.Diagnostic) {
	if len(n.Args) != 2 {
		return valueref.Ref{}, []*diagnostics.Diagnostic{l.errf(n, diagnostics.KindTyping, "%s.bitcast expects exactly two arguments", intrinsicNamespace)}
	}
	val, diags := l.lowerExpr(n.Args[0])
	if len(diags) > 0 {
		return valueref.Ref{}, diags
	}
	target, err := l.resolver.Resolve(n.Args[1])
	if err != nil {
		return valueref.Ref{}, []*diagnostics.Diagnostic{l.errf(n, diagnostics.KindAnnotation, "%s.bitcast target type: %v", intrinsicNamespace, err)}
	}
	out := l.builder.BitCast(val.IR.(irbuilder.Value), target.LLVM())
	return valueref.Ref{Kind: valueref.RValue, Type: target, IR: out}, nil
}
