package cimport

import (
	"fmt"
	"os"

	"modernc.org/cc/v4"

	"github.com/funvibe/pythoc-go/internal/typelattice"
	"github.com/funvibe/pythoc-go/internal/utils"
)

// ParseHeader parses a C header (or a file containing `#include`s) into a
// list of extern function declarations, translating each C prototype's
// parameter and return types into surface PC types (spec §4.8). The
// underlying grammar/preprocessor is modernc.org/cc/v4, a pure-Go C11
// parser, so this subsystem never shells out except to compile the
// accompanying C sources.
func ParseHeader(path string, includeDirs, cflags []string) ([]ExternDecl, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cimport: header %s: %w", path, err)
	}

	cfg := &cc.Config{}
	sources := []cc.Source{{Name: path}}
	predef, _, _ := cc.HostConfig("")
	_ = predef

	ast, err := cc.Parse(cfg, sources)
	if err != nil {
		return nil, fmt.Errorf("cimport: cc.Parse: %w", err)
	}

	var decls []ExternDecl
	for name, fn := range ast.Scope.Nodes {
		decl, ok := asFuncDecl(fn)
		if !ok {
			continue
		}
		ret, params, varArg, err := translateSignature(decl)
		if err != nil {
			continue // unsupported C type shape: skip this symbol rather than fail the whole header
		}
		decls = append(decls, ExternDecl{
			Symbol:      name,
			WrapperName: utils.ExternFallbackName("", name),
			ParamTypes:  params,
			ReturnType:  ret,
			VarArg:      varArg,
		})
	}
	return decls, nil
}

// asFuncDecl narrows one scope node to a function declarator. The cc
// package's AST shape is deep (Declarator -> DirectDeclarator chains); this
// helper isolates that walk so translateSignature only deals with already
// confirmed function declarators.
func asFuncDecl(node any) (*cc.Declarator, bool) {
	nodes, ok := node.([]cc.Node)
	if !ok || len(nodes) == 0 {
		return nil, false
	}
	d, ok := nodes[0].(*cc.Declarator)
	if !ok || d.Type() == nil || d.Type().Kind() != cc.Function {
		return nil, false
	}
	return d, true
}

// translateSignature converts one cc.Declarator's function type into
// surface types via the C-to-surface scalar mapping in types.go.
func translateSignature(d *cc.Declarator) (ret typelattice.Type, params []typelattice.Type, varArg bool, err error) {
	ft := d.Type()
	ret, err = fromCType(ft.Result())
	if err != nil {
		return nil, nil, false, err
	}
	for i := 0; i < ft.NumParameters(); i++ {
		pt, err := fromCType(ft.Parameters()[i].Type())
		if err != nil {
			return nil, nil, false, err
		}
		params = append(params, pt)
	}
	return ret, params, ft.IsVariadic(), nil
}
