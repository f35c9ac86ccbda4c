// Package lower implements C7 (expression lowering) and C8
// (statement/CFG lowering): turning a collected function body into IR
// against the abstract builder (C4), using the type resolver (C5), the
// registry's scope stack (C2) and the linear-token bookkeeping carried on
// every ValueRef (C6). Grounded on the teacher's AST-walking evaluator
// (internal/evaluator), generalized from a tree-walking interpreter
// dispatching on node type to a tree-to-IR lowerer doing the same
// dispatch, and on the teacher's Backend abstraction for how a frontend
// stays on one side of an emission interface.
package lower

import (
	"github.com/funvibe/pythoc-go/internal/ast"
	"github.com/funvibe/pythoc-go/internal/collector"
	"github.com/funvibe/pythoc-go/internal/diagnostics"
	"github.com/funvibe/pythoc-go/internal/effects"
	"github.com/funvibe/pythoc-go/internal/funcmgr"
	"github.com/funvibe/pythoc-go/internal/irbuilder"
	"github.com/funvibe/pythoc-go/internal/irtype"
	"github.com/funvibe/pythoc-go/internal/registry"
	"github.com/funvibe/pythoc-go/internal/typelattice"
	"github.com/funvibe/pythoc-go/internal/typeresolve"
	"github.com/funvibe/pythoc-go/internal/valueref"
)

// Lowerer implements funcmgr.BodyEmitter, lowering one function body at a
// time against the shared registry/builder/effects state for a
// compilation unit.
type Lowerer struct {
	reg      *registry.Registry
	resolver *typeresolve.Resolver
	builder  *irbuilder.Builder
	funcs    *funcmgr.Manager
	fx       *effects.Resolver
	file     string

	// yieldSinks is the active stack of generator-inlining consumers
	// (innermost last): a `for x in gen(...): body` inlines gen's
	// statements directly into the caller, redirecting every `yield v`
	// inside it to bind v to x and lower the for-body in place (spec
	// §4.5 "for...in generator()").
	yieldSinks []func(valueref.Ref) []*diagnostics.Diagnostic

	// consumerBreakFlags is the active stack of "did the inlined for-body
	// just break" slots, pushed only around the span of lowering that
	// body (i.e. inside a yield sink's own call), so a break statement
	// belonging to the generator's own internal loop never sets a flag
	// meant for the outer for-loop's break (spec §4.5 generator for...else).
	consumerBreakFlags []*irbuilder.Value
}

func New(reg *registry.Registry, resolver *typeresolve.Resolver, builder *irbuilder.Builder, funcs *funcmgr.Manager, fx *effects.Resolver, file string) *Lowerer {
	return &Lowerer{reg: reg, resolver: resolver, builder: builder, funcs: funcs, fx: fx, file: file}
}

// SetFuncs wires the function manager in after construction, for the
// driver's chicken-and-egg wiring order: funcmgr.New needs a BodyEmitter
// (this Lowerer) before the Lowerer itself has a Manager to call back
// into for generator inlining and wrapper lookups (C9/C8).
func (l *Lowerer) SetFuncs(funcs *funcmgr.Manager) { l.funcs = funcs }

// EmitBody lowers one collected function's statements into wrapper's body
// (spec §4.6 "pass 2 emits bodies").
func (l *Lowerer) EmitBody(fn *registry.FunctionInfo, wrapper *irbuilder.FuncWrapper, def *collector.Definition) []*diagnostics.Diagnostic {
	var diags []*diagnostics.Diagnostic

	l.reg.Scopes().Push(registry.ScopeFunction)
	defer l.reg.Scopes().Pop()

	entry := l.builder.EntryBlock(wrapper, "entry")
	l.builder.SetReturnAbiContext(wrapper, entry)
	defer l.builder.ClearReturnAbiContext()

	for i, name := range fn.ParamNames {
		v := wrapper.GetUserArgUnpacked(l.builder, i)
		ref := valueref.Ref{Kind: valueref.RValue, Type: fn.ParamTypes[i], IR: v}
		if fn.ParamTypes[i].Linear() {
			ref = valueref.NewLinear(fn.ParamTypes[i], v, []valueref.PathKey{""})
		}
		l.reg.Scopes().Declare(name, ref)
	}

	bodyDiags := l.lowerBlock(def.Func.Body)
	diags = append(diags, bodyDiags...)

	// A function whose last statement is not itself a return falls off
	// the end; for a void-returning function this is the normal case.
	if len(def.Func.Body) == 0 {
		l.builder.Ret(nil)
	} else if _, ok := def.Func.Body[len(def.Func.Body)-1].(*ast.ReturnStatement); !ok {
		l.builder.Ret(nil)
	}

	return diags
}

func (l *Lowerer) errf(tok ast.Node, kind diagnostics.Kind, format string, args ...any) *diagnostics.Diagnostic {
	return diagnostics.New(kind, tok.GetToken(), format, args...)
}

// requireEqual enforces spec invariant P2: two lattice entries participate
// in one operation only when their canonical names match exactly.
func (l *Lowerer) requireEqual(node ast.Node, a, b typelattice.Type) *diagnostics.Diagnostic {
	if typelattice.Equal(a, b) {
		return nil
	}
	return l.errf(node, diagnostics.KindTyping, "type mismatch: %s vs %s", a.String(), b.String())
}

func isFloat(t typelattice.Type) bool {
	_, ok := t.(typelattice.FloatType)
	return ok
}

func isInt(t typelattice.Type) (typelattice.IntType, bool) {
	it, ok := t.(typelattice.IntType)
	return it, ok
}

// resolveCallee finds the FunctionInfo matching an unmangled call-site
// name and argument types: an exact parameter-type match wins (spec §4.6
// overload resolution by argument-type suffix), falling back to the sole
// candidate sharing that unmangled name when only one was ever declared
// (the common case of a function with no suffix= overloads at all).
func (l *Lowerer) resolveCallee(unmangled string, argTypes []typelattice.Type) (mangled string, fi *registry.FunctionInfo, ok bool) {
	var sole *registry.FunctionInfo
	var soleMangled string
	count := 0
	for m, cand := range l.reg.AllFunctions() {
		if cand.Unmangled != unmangled {
			continue
		}
		count++
		sole, soleMangled = cand, m
		if len(cand.ParamTypes) != len(argTypes) {
			continue
		}
		match := true
		for i, pt := range cand.ParamTypes {
			if !typelattice.Equal(pt, argTypes[i]) {
				match = false
				break
			}
		}
		if match {
			return m, cand, true
		}
	}
	if count == 1 {
		return soleMangled, sole, true
	}
	return "", nil, false
}

func underlying(t typelattice.Type) typelattice.Type {
	switch v := t.(type) {
	case typelattice.ConstType:
		return underlying(v.Inner)
	case typelattice.VolatileType:
		return underlying(v.Inner)
	case typelattice.StaticType:
		return underlying(v.Inner)
	case typelattice.LinearType:
		return underlying(v.Inner)
	case typelattice.RefinedType:
		return underlying(v.Underlying)
	default:
		return t
	}
}
