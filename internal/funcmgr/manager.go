package funcmgr

import (
	"fmt"

	"github.com/funvibe/pythoc-go/internal/ast"
	"github.com/funvibe/pythoc-go/internal/collector"
	"github.com/funvibe/pythoc-go/internal/diagnostics"
	"github.com/funvibe/pythoc-go/internal/irbuilder"
	"github.com/funvibe/pythoc-go/internal/registry"
	"github.com/funvibe/pythoc-go/internal/typelattice"
	"github.com/funvibe/pythoc-go/internal/typeresolve"
)

// BodyEmitter is implemented by the statement lowerer (C8); the function
// manager calls back into it once every signature in the compilation unit
// is installed (spec §4.6 "pass 2 emits bodies").
type BodyEmitter interface {
	EmitBody(fn *registry.FunctionInfo, wrapper *irbuilder.FuncWrapper, def *collector.Definition) []*diagnostics.Diagnostic
}

// Manager runs the two-pass collect/emit scheme over a set of collected
// definitions (spec §4.6).
type Manager struct {
	reg      *registry.Registry
	resolver *typeresolve.Resolver
	builder  *irbuilder.Builder
	emitter  BodyEmitter

	// order preserves declaration order for deterministic emission.
	order    []string // mangled names, pass-1 installation order
	defs     map[string]*collector.Definition
	wrappers map[string]*irbuilder.FuncWrapper
}

func New(reg *registry.Registry, resolver *typeresolve.Resolver, builder *irbuilder.Builder, emitter BodyEmitter) *Manager {
	return &Manager{
		reg: reg, resolver: resolver, builder: builder, emitter: emitter,
		defs:     map[string]*collector.Definition{},
		wrappers: map[string]*irbuilder.FuncWrapper{},
	}
}

// CollectPass1 installs every definition's FunctionInfo plus a forward LLVM
// declaration, before any body is emitted — this is what makes mutual and
// three-way recursion resolve by plain mangled-name lookup in pass 2
// (spec invariant (i), §4.6).
func (m *Manager) CollectPass1(defs []*collector.Definition) []*diagnostics.Diagnostic {
	var diags []*diagnostics.Diagnostic
	for _, d := range defs {
		if d.Kind != collector.KindFunction {
			continue
		}
		fi, err := m.buildSignature(d)
		if err != nil {
			diags = append(diags, diagnostics.New(diagnostics.KindTyping, d.Func.GetToken(), "%s: %v", d.Name, err))
			continue
		}
		if existing, ok := m.reg.Function(fi.Mangled); ok {
			// Invariant P3: same unmangled+suffix must mangle identically
			// and share one FunctionInfo; a differing kind here means two
			// incompatible definitions collided under one mangled name.
			if existing.Kind != fi.Kind {
				diags = append(diags, diagnostics.New(diagnostics.KindTyping, d.Func.GetToken(),
					"mangled name %q redeclared with a different kind", fi.Mangled))
			}
			continue
		}
		m.reg.DeclareFunction(fi)
		m.order = append(m.order, fi.Mangled)
		m.defs[fi.Mangled] = d

		applyCABI := fi.Kind == registry.KindExtern || fi.Kind == registry.KindCompile
		m.wrappers[fi.Mangled] = m.builder.DeclareFunction(fi.Mangled, fi.ParamTypes, fi.ReturnType, fi.VarArg, applyCABI)
	}
	return diags
}

// EmitPass2 walks every installed signature in declaration order, asking
// the body emitter to lower each — reusing pass 1's forward declaration so
// a call compiled before its callee's body still targets the one real
// wrapper (spec §4.6 "Pass 2 emits bodies ... resolves by mangled-name
// lookup").
func (m *Manager) EmitPass2() []*diagnostics.Diagnostic {
	var diags []*diagnostics.Diagnostic
	for _, mangled := range m.order {
		fi, _ := m.reg.Function(mangled)
		if fi.Kind == registry.KindExtern {
			continue // extern contributes only a declaration, no body
		}
		def := m.defs[mangled]
		wrapper := m.wrappers[mangled]
		diags = append(diags, m.emitter.EmitBody(fi, wrapper, def)...)
	}
	return diags
}

// Wrapper returns the pass-1-installed FuncWrapper for a mangled name, for
// call-site lowering in C7 (spec §4.6 direct/mutual/three-way recursion).
func (m *Manager) Wrapper(mangled string) (*irbuilder.FuncWrapper, bool) {
	w, ok := m.wrappers[mangled]
	return w, ok
}

// DefinitionOf returns the collected AST definition backing a mangled
// name, for generator inlining at a for-loop call site (C8: a `for x in
// gen(...)` needs gen's own statement list, not just its signature).
func (m *Manager) DefinitionOf(mangled string) (*collector.Definition, bool) {
	d, ok := m.defs[mangled]
	return d, ok
}

func (m *Manager) buildSignature(d *collector.Definition) (*registry.FunctionInfo, error) {
	fn := d.Func
	paramTypes := make([]typelattice.Type, 0, len(fn.Params))
	paramNames := make([]string, 0, len(fn.Params))
	for _, p := range fn.Params {
		pt, err := m.resolver.Resolve(p.Annotation)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		paramTypes = append(paramTypes, pt)
		paramNames = append(paramNames, p.Name)
	}
	var retType typelattice.Type
	if fn.ReturnType != nil {
		rt, err := m.resolver.Resolve(fn.ReturnType)
		if err != nil {
			return nil, fmt.Errorf("return type: %w", err)
		}
		retType = rt
	}

	kind, lib, err := classifyKind(d.Decorator.Name, d.Decorator)
	if err != nil {
		return nil, err
	}
	if hasYield(fn.Body) {
		kind = registry.KindGenerator
	}

	suffix, err := m.resolveSuffix(d.Decorator, paramTypes)
	if err != nil {
		return nil, err
	}
	mangled := Mangle(d.Name, suffix, "")

	return &registry.FunctionInfo{
		Unmangled:      d.Name,
		Mangled:        mangled,
		ParamNames:     paramNames,
		ParamTypes:     paramTypes,
		ReturnType:     retType,
		Kind:           kind,
		EffectBindings: map[string]string{},
		VarArg:         fn.VarArg,
		ExternLib:      lib,
	}, nil
}

func classifyKind(decName string, dec *ast.Decorator) (registry.FunctionKind, string, error) {
	switch decName {
	case "compile":
		return registry.KindCompile, "", nil
	case "inline":
		return registry.KindInline, "", nil
	case "extern":
		lib, _ := collector.DecoratorKwargString(dec, "lib")
		return registry.KindExtern, lib, nil
	default:
		return 0, "", fmt.Errorf("unrecognized function decorator %q", decName)
	}
}

func hasYield(body []ast.Statement) bool {
	for _, s := range body {
		switch st := s.(type) {
		case *ast.YieldStatement:
			return true
		case *ast.IfStatement:
			if hasYield(st.Then) || hasYield(st.Else) {
				return true
			}
		case *ast.WhileStatement:
			if hasYield(st.Body) {
				return true
			}
		case *ast.ForStatement:
			if hasYield(st.Body) || hasYield(st.Else) {
				return true
			}
		}
	}
	return false
}

// resolveSuffix turns a `@compile(suffix=...)` kwarg, if any, into a
// SuffixFragment. Supports a bare type-name suffix, an integer suffix, and
// a parenthesized tuple of either (spec §4.6).
func (m *Manager) resolveSuffix(dec *ast.Decorator, _ []typelattice.Type) (SuffixFragment, error) {
	expr, ok := dec.Kwargs["suffix"]
	if !ok {
		return nil, nil
	}
	return m.suffixFragmentOf(expr)
}

func (m *Manager) suffixFragmentOf(expr ast.Expression) (SuffixFragment, error) {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		return IntFragment{Value: e.Value}, nil
	case *ast.TupleLiteral:
		elems := make([]SuffixFragment, 0, len(e.Elems))
		for _, el := range e.Elems {
			f, err := m.suffixFragmentOf(el)
			if err != nil {
				return nil, err
			}
			elems = append(elems, f)
		}
		return TupleFragment{Elems: elems}, nil
	default:
		t, err := m.resolver.Resolve(expr)
		if err != nil {
			return nil, fmt.Errorf("suffix=: %w", err)
		}
		return TypeFragment{T: t}, nil
	}
}
