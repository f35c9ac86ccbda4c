// Package typeresolve implements C5: parsing an annotation expression tree
// into a typelattice.Type entry. Resolution is pure and idempotent —
// resolving the same subtree twice yields an equal entry (spec §4.1).
// Grounded on the teacher's Pratt parser's dispatch-by-token-kind shape,
// generalized here to dispatch-by-subscript-base-name.
package typeresolve

import (
	"fmt"
	"strconv"

	"github.com/funvibe/pythoc-go/internal/ast"
	"github.com/funvibe/pythoc-go/internal/config"
	"github.com/funvibe/pythoc-go/internal/registry"
	"github.com/funvibe/pythoc-go/internal/typelattice"
)

// BadAnnotation is returned when an annotation tree cannot be resolved
// into a lattice entry (spec §4.1).
type BadAnnotation struct {
	Detail string
}

func (e *BadAnnotation) Error() string { return "bad annotation: " + e.Detail }

// Resolver resolves annotation expressions against the builtin table and
// the registry's user aggregates.
type Resolver struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Resolver { return &Resolver{reg: reg} }

// Resolve dispatches on the shape of expr (spec §4.1).
func (r *Resolver) Resolve(expr ast.TypeExpr) (typelattice.Type, error) {
	switch e := expr.(type) {
	case *ast.Identifier:
		return r.resolveName(e.Value)
	case *ast.Subscript:
		return r.resolveSubscript(e)
	default:
		return nil, &BadAnnotation{Detail: fmt.Sprintf("unsupported annotation node %T", expr)}
	}
}

func (r *Resolver) resolveName(name string) (typelattice.Type, error) {
	if t, ok := typelattice.Lookup(name); ok {
		return t, nil
	}
	if e, ok := r.reg.Aggregate(name); ok {
		return e.Type, nil
	}
	return nil, &BadAnnotation{Detail: "unknown type name " + name}
}

func (r *Resolver) resolveSubscript(sub *ast.Subscript) (typelattice.Type, error) {
	baseIdent, ok := sub.Base.(*ast.Identifier)
	if !ok {
		return nil, &BadAnnotation{Detail: "subscript base is not a bare name"}
	}
	switch baseIdent.Value {
	case config.TypeCtorPtr:
		return r.resolvePointer(sub)
	case config.TypeCtorArray:
		return r.resolveArray(sub)
	case config.TypeCtorStruct:
		return r.resolveInlineTuple(sub, false)
	case config.TypeCtorUnion:
		return r.resolveInlineTuple(sub, true)
	case config.TypeCtorEnum:
		return nil, &BadAnnotation{Detail: "enum[...] is declared with @enum, not used as an inline annotation"}
	case config.TypeCtorFunc:
		return r.resolveFunc(sub)
	case config.TypeCtorConst:
		inner, err := r.resolveSingle(sub)
		if err != nil {
			return nil, err
		}
		return typelattice.ConstType{Inner: inner}, nil
	case config.TypeCtorVolatile:
		inner, err := r.resolveSingle(sub)
		if err != nil {
			return nil, err
		}
		return typelattice.VolatileType{Inner: inner}, nil
	case config.TypeCtorStatic:
		inner, err := r.resolveSingle(sub)
		if err != nil {
			return nil, err
		}
		return typelattice.StaticType{Inner: inner}, nil
	case config.TypeCtorPyconst:
		return r.resolvePyconst(sub)
	case config.TypeCtorTypeof:
		return r.resolveTypeof(sub)
	case config.TypeCtorRefined:
		return r.resolveRefined(sub)
	default:
		// Could be a user aggregate used generically, e.g. Vec[i32] in
		// library code; the core type system has no generics, so this is
		// only valid when base itself already names a concrete aggregate.
		return r.resolveName(baseIdent.Value)
	}
}

// resolveSingle expects exactly one positional item (used by qualifier
// wrappers: const[T], volatile[T], static[T]).
func (r *Resolver) resolveSingle(sub *ast.Subscript) (typelattice.Type, error) {
	if len(sub.Items) != 1 || sub.Items[0].Key != "" {
		return nil, &BadAnnotation{Detail: "expected exactly one positional type argument"}
	}
	return r.Resolve(sub.Items[0].Value)
}

// resolvePointer handles `ptr[T]` and `ptr[T, d1, ..., dk]` (spec §3: extra
// dims decay to ptr[array[T, d2..dk]]).
func (r *Resolver) resolvePointer(sub *ast.Subscript) (typelattice.Type, error) {
	if len(sub.Items) == 0 {
		return nil, &BadAnnotation{Detail: "ptr[] requires a pointee type"}
	}
	pointee, err := r.Resolve(sub.Items[0].Value)
	if err != nil {
		return nil, err
	}
	var dims []int
	for _, it := range sub.Items[1:] {
		n, err := constInt(it.Value)
		if err != nil {
			return nil, err
		}
		dims = append(dims, n)
	}
	// d1 is the decayed outer dimension; only d2..dk describe the pointee.
	if len(dims) <= 1 {
		dims = nil
	} else {
		dims = dims[1:]
	}
	return typelattice.PointerType{Pointee: pointee, Dims: dims}, nil
}

// resolveArray handles `array[T, d1, ..., dn]` (spec §3/§4.1).
func (r *Resolver) resolveArray(sub *ast.Subscript) (typelattice.Type, error) {
	if len(sub.Items) < 2 {
		return nil, &BadAnnotation{Detail: "array[] requires an element type and at least one dimension"}
	}
	elem, err := r.Resolve(sub.Items[0].Value)
	if err != nil {
		return nil, err
	}
	var dims []int
	for _, it := range sub.Items[1:] {
		n, err := constInt(it.Value)
		if err != nil {
			return nil, err
		}
		dims = append(dims, n)
	}
	return typelattice.ArrayType{Elem: elem, Dims: dims}, nil
}

// resolveInlineTuple handles `struct[x: i32, y: f64]` / `union[...]`: an
// anonymous aggregate named by structural mangling since it has no
// @struct/@union decorator-declared name (spec §4.1).
func (r *Resolver) resolveInlineTuple(sub *ast.Subscript, isUnion bool) (typelattice.Type, error) {
	fields := make([]typelattice.Field, 0, len(sub.Items))
	for i, it := range sub.Items {
		ft, err := r.Resolve(it.Value)
		if err != nil {
			return nil, err
		}
		name := it.Key
		if name == "" {
			name = fmt.Sprintf("_%d", i)
		}
		fields = append(fields, typelattice.Field{Name: name, Type: ft})
	}
	if isUnion {
		u := typelattice.NewOpaqueUnion(anonymousName(fields))
		u.SetFields(fields)
		return u, nil
	}
	s := typelattice.NewOpaqueStruct(anonymousName(fields))
	s.SetFields(fields)
	return s, nil
}

func anonymousName(fields []typelattice.Field) string {
	name := "anon"
	for _, f := range fields {
		name += "_" + f.Type.Mangle()
	}
	return name
}

// resolveFunc handles `func[(p1, p2, ...), ret]`, where the first item is
// itself a positional tuple of parameter types (spec §4.1 "variadic type
// lists").
func (r *Resolver) resolveFunc(sub *ast.Subscript) (typelattice.Type, error) {
	if len(sub.Items) != 2 {
		return nil, &BadAnnotation{Detail: "func[] requires (params), return"}
	}
	paramsExpr, ok := sub.Items[0].Value.(*ast.TupleLiteral)
	if !ok {
		return nil, &BadAnnotation{Detail: "func[] first argument must be a parenthesized parameter list"}
	}
	params := make([]typelattice.Type, 0, len(paramsExpr.Elems))
	varArg := false
	for _, p := range paramsExpr.Elems {
		if _, isStar := p.(*ast.StarExpr); isStar {
			varArg = true
			continue
		}
		pt, err := r.Resolve(p)
		if err != nil {
			return nil, err
		}
		params = append(params, pt)
	}
	var ret typelattice.Type
	if id, ok := sub.Items[1].Value.(*ast.Identifier); !ok || id.Value != "void" {
		rt, err := r.Resolve(sub.Items[1].Value)
		if err != nil {
			return nil, err
		}
		ret = rt
	}
	return typelattice.FuncType{Params: params, Ret: ret, VarArg: varArg}, nil
}

// resolvePyconst handles `pyconst[v]`: v is retained as its literal text,
// since its value is known at lowering time, not resolution time.
func (r *Resolver) resolvePyconst(sub *ast.Subscript) (typelattice.Type, error) {
	if len(sub.Items) != 1 {
		return nil, &BadAnnotation{Detail: "pyconst[] requires exactly one value"}
	}
	return typelattice.PyConstType{Value: literalText(sub.Items[0].Value)}, nil
}

// resolveTypeof handles `typeof[expr]`. Full expression-type inference is
// the lowerer's job (it has a live ValueRef to ask); at resolve time we can
// only handle the literal shapes that are themselves annotations.
func (r *Resolver) resolveTypeof(sub *ast.Subscript) (typelattice.Type, error) {
	if len(sub.Items) != 1 {
		return nil, &BadAnnotation{Detail: "typeof[] requires exactly one expression"}
	}
	if id, ok := sub.Items[0].Value.(*ast.Identifier); ok {
		if b, ok := r.reg.Scopes().Lookup(id.Value); ok {
			return b.Value.Type, nil
		}
	}
	return nil, &BadAnnotation{Detail: "typeof[] target is not a resolvable binding at this point"}
}

func (r *Resolver) resolveRefined(sub *ast.Subscript) (typelattice.Type, error) {
	if len(sub.Items) != 2 {
		return nil, &BadAnnotation{Detail: "refined[] requires (underlying, predicate_name)"}
	}
	underlying, err := r.Resolve(sub.Items[0].Value)
	if err != nil {
		return nil, err
	}
	id, ok := sub.Items[1].Value.(*ast.Identifier)
	if !ok {
		return nil, &BadAnnotation{Detail: "refined[] predicate must be a bare name"}
	}
	return typelattice.RefinedType{Underlying: underlying, PredName: id.Value}, nil
}

func constInt(e ast.Expression) (int, error) {
	lit, ok := e.(*ast.IntegerLiteral)
	if !ok {
		return 0, &BadAnnotation{Detail: "expected an integer literal dimension"}
	}
	return int(lit.Value), nil
}

func literalText(e ast.Expression) string {
	switch v := e.(type) {
	case *ast.IntegerLiteral:
		return strconv.FormatInt(v.Value, 10)
	case *ast.StringLiteral:
		return v.Value
	case *ast.Identifier:
		return v.Value
	default:
		return fmt.Sprintf("%v", e)
	}
}
