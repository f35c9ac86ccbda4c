// Package collector implements the decorator-driven collection pass:
// for each top-level definition decorated with @compile/@inline/@extern/
// @struct/@union/@enum, it captures the source AST node, the lexical
// scope it closes over (module globals plus any outer factory locals),
// and its type annotations, before any lowering begins (spec §1(a),
// §4.6). Grounded on the teacher's module loader (internal/modules),
// which walks a package's files collecting top-level declarations before
// analysis runs, generalized here from package-of-files to
// decorator-tagged definitions within one or more files.
package collector

import (
	"fmt"

	"github.com/funvibe/pythoc-go/internal/ast"
	"github.com/funvibe/pythoc-go/internal/config"
	"github.com/funvibe/pythoc-go/internal/diagnostics"
)

// Kind is which decorator drove the collection of one definition.
type Kind int

const (
	KindFunction Kind = iota
	KindAggregate
	KindEnum
)

// ClosureScope captures the lexical environment a nested def closes over:
// the module's globals plus any locals of an enclosing "factory" function
// (a plain, undecorated def whose body returns or defines the decorated
// one) — spec §1(a) "closure cells + module globals + outer factory
// locals".
type ClosureScope struct {
	ModuleGlobals map[string]ast.Expression // name -> initializer expression
	OuterLocals   map[string]ast.Expression // name -> initializer expression, from factory scopes
}

// Definition is one collected compiled entity, prior to any lowering.
type Definition struct {
	Kind      Kind
	Name      string
	Decorator *ast.Decorator
	Func      *ast.FunctionDef
	Aggregate *ast.AggregateDef
	Enum      *ast.EnumDef
	Scope     ClosureScope
	File      string
}

// Collector walks a parsed program and gathers every decorated definition,
// reachable at any nesting depth under plain (undecorated) factory
// functions (spec §9 "multi-file collection order" supplement: definitions
// are collected in source order within a file, and files in the order
// passed to Collect).
type Collector struct {
	defs  []*Definition
	diags []*diagnostics.Diagnostic
}

func New() *Collector { return &Collector{} }

func (c *Collector) Diagnostics() []*diagnostics.Diagnostic { return c.diags }
func (c *Collector) Definitions() []*Definition             { return c.defs }

// Collect walks one parsed file's top-level statements.
func (c *Collector) Collect(prog *ast.Program) {
	globals := moduleGlobals(prog)
	for _, stmt := range prog.Statements {
		c.collectStatement(stmt, prog.File, ClosureScope{ModuleGlobals: globals})
	}
}

func moduleGlobals(prog *ast.Program) map[string]ast.Expression {
	out := map[string]ast.Expression{}
	for _, stmt := range prog.Statements {
		if a, ok := stmt.(*ast.AssignStatement); ok {
			if id, ok := a.Target.(*ast.Identifier); ok {
				out[id.Value] = a.Value
			}
		}
	}
	return out
}

func (c *Collector) collectStatement(stmt ast.Statement, file string, scope ClosureScope) {
	switch s := stmt.(type) {
	case *ast.FunctionDef:
		if dec := findDecorator(s.Decorators, config.DecoratorCompile, config.DecoratorInline, config.DecoratorExtern); dec != nil {
			c.defs = append(c.defs, &Definition{Kind: KindFunction, Name: s.Name, Decorator: dec, Func: s, Scope: scope, File: file})
			return
		}
		// A plain def is a "factory": recurse into its body so nested
		// decorated defs (and aggregates) it returns/declares are still
		// collected, extending the closure with this factory's locals
		// (spec §1(a)).
		inner := ClosureScope{ModuleGlobals: scope.ModuleGlobals, OuterLocals: factoryLocals(s)}
		for _, bodyStmt := range s.Body {
			c.collectStatement(bodyStmt, file, inner)
		}
	case *ast.AggregateDef:
		if dec := findDecorator(s.Decorators, config.DecoratorStruct, config.DecoratorUnion); dec != nil {
			c.defs = append(c.defs, &Definition{Kind: KindAggregate, Name: s.Name, Decorator: dec, Aggregate: s, Scope: scope, File: file})
		} else {
			c.diags = append(c.diags, diagnostics.New(diagnostics.KindAnnotation, s.GetToken(),
				"aggregate %q declared without @struct/@union", s.Name))
		}
	case *ast.EnumDef:
		if dec := findDecorator(s.Decorators, config.DecoratorEnum); dec != nil {
			c.defs = append(c.defs, &Definition{Kind: KindEnum, Name: s.Name, Decorator: dec, Enum: s, Scope: scope, File: file})
		} else {
			c.diags = append(c.diags, diagnostics.New(diagnostics.KindAnnotation, s.GetToken(),
				"enum %q declared without @enum", s.Name))
		}
	case *ast.IfStatement:
		for _, inner := range s.Then {
			c.collectStatement(inner, file, scope)
		}
		for _, inner := range s.Else {
			c.collectStatement(inner, file, scope)
		}
	}
}

func factoryLocals(fn *ast.FunctionDef) map[string]ast.Expression {
	out := map[string]ast.Expression{}
	for _, stmt := range fn.Body {
		if a, ok := stmt.(*ast.AssignStatement); ok {
			if id, ok := a.Target.(*ast.Identifier); ok {
				out[id.Value] = a.Value
			}
		}
	}
	return out
}

func findDecorator(decs []*ast.Decorator, names ...string) *ast.Decorator {
	for _, d := range decs {
		for _, n := range names {
			if d.Name == n {
				return d
			}
		}
	}
	return nil
}

// DecoratorKwargString reads a string-literal kwarg off a decorator, for
// e.g. @extern(lib="m") (spec §4.6/§4.8).
func DecoratorKwargString(dec *ast.Decorator, key string) (string, bool) {
	expr, ok := dec.Kwargs[key]
	if !ok {
		return "", false
	}
	lit, ok := expr.(*ast.StringLiteral)
	if !ok {
		return "", false
	}
	return lit.Value, true
}

// DecoratorKwargBool reads a boolean-literal kwarg, defaulting to false
// when absent, with an error surfaced only when present-but-wrong-type.
func DecoratorKwargBool(dec *ast.Decorator, key string) (bool, error) {
	expr, ok := dec.Kwargs[key]
	if !ok {
		return false, nil
	}
	lit, ok := expr.(*ast.BoolLiteral)
	if !ok {
		return false, fmt.Errorf("%s= expects a bool literal", key)
	}
	return lit.Value, nil
}
