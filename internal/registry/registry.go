// Package registry implements C2: the process-wide tables of builtin
// entities, user aggregates, function instances, and variable scopes.
// The scope-stack shape (Prelude/Global/Function/Block) is grounded on
// the teacher's internal/symbols package (ScopeType enum, a Symbol struct
// carrying a type and definition-site provenance); the function/aggregate
// tables and link-object list are new, built for this spec's registry.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/funvibe/pythoc-go/internal/typelattice"
	"github.com/funvibe/pythoc-go/internal/valueref"
)

// FunctionKind distinguishes the four ways a definition can be realized
// (spec §4.6).
type FunctionKind int

const (
	KindCompile FunctionKind = iota
	KindInline
	KindExtern
	KindGenerator
)

// FunctionInfo is one entry in the mangled-name-keyed function table
// (spec §3).
type FunctionInfo struct {
	Unmangled       string
	Mangled         string
	ParamNames      []string
	ParamTypes      []typelattice.Type
	ReturnType      typelattice.Type
	Kind            FunctionKind
	EffectBindings  map[string]string // capability -> resolved impl mangled name
	SourceScopeID   int
	OwnsObjectFile  bool
	OverloadEnabled bool
	VarArg          bool
	ExternLib       string // set when Kind == KindExtern
}

// AggregateEntry is a user struct/union/enum installed by the collector.
type AggregateEntry struct {
	Name       string
	Type       typelattice.Type // *typelattice.StructType / *UnionType / *EnumType
	FieldIndex map[string]int
	SourceNode any // the ast.AggregateDef/EnumDef that defined it
}

// LinkObject is one compiled-and-ready-to-link object file, deduplicated
// by content hash (spec §4.8/§4.9).
type LinkObject struct {
	Path string
	Hash string
	Lib  string // "" if the object itself provides the symbols
}

// Registry is the process-global compilation-unit state (spec §5: shared
// sequentially across one thread; two units sharing a process must use
// distinct suffixes to avoid name collisions).
type Registry struct {
	Builtins   map[string]any
	aggregates map[string]*AggregateEntry
	functions  map[string]*FunctionInfo
	mangledIdx map[string]string // mangled -> unmangled

	linkObjects []LinkObject
	linkHashes  map[string]bool

	scopes *ScopeStack
}

func New() *Registry {
	return &Registry{
		Builtins:   map[string]any{},
		aggregates: map[string]*AggregateEntry{},
		functions:  map[string]*FunctionInfo{},
		mangledIdx: map[string]string{},
		linkHashes: map[string]bool{},
		scopes:     NewScopeStack(),
	}
}

// ---- aggregates ----

func (r *Registry) DefineAggregate(name string, t typelattice.Type, node any) *AggregateEntry {
	e := &AggregateEntry{Name: name, Type: t, FieldIndex: map[string]int{}, SourceNode: node}
	r.aggregates[name] = e
	return e
}

func (r *Registry) Aggregate(name string) (*AggregateEntry, bool) {
	e, ok := r.aggregates[name]
	return e, ok
}

// ---- functions ----

// DeclareFunction installs a FunctionInfo keyed by its mangled name. Spec
// invariant P3: two definitions sharing unmangled name and mangling-
// relevant suffix must mangle identically and share one FunctionInfo —
// callers are expected to look up before declaring to enforce that.
func (r *Registry) DeclareFunction(fi *FunctionInfo) {
	r.functions[fi.Mangled] = fi
	r.mangledIdx[fi.Mangled] = fi.Unmangled
}

func (r *Registry) Function(mangled string) (*FunctionInfo, bool) {
	fi, ok := r.functions[mangled]
	return fi, ok
}

func (r *Registry) Unmangle(mangled string) (string, bool) {
	u, ok := r.mangledIdx[mangled]
	return u, ok
}

// AllFunctions returns every declared function, for the driver's emission
// pass (spec §5: "emission order is registry order (definition order)" —
// callers iterate FunctionInfo in the order DeclareFunction installed them
// by keeping their own ordered slice; this accessor is for lookups).
func (r *Registry) AllFunctions() map[string]*FunctionInfo { return r.functions }

// ---- link objects ----

// RegisterLinkObject adds an object file to the link set, deduplicating by
// content hash so two cimport calls naming the same compiled source don't
// link it twice (spec §4.8 step v, §8 scenario 6).
func (r *Registry) RegisterLinkObject(path, lib string) (*LinkObject, error) {
	hash, err := hashFile(path)
	if err != nil {
		return nil, fmt.Errorf("hashing object %s: %w", path, err)
	}
	if r.linkHashes[hash] {
		for _, o := range r.linkObjects {
			if o.Hash == hash {
				return &o, nil
			}
		}
	}
	obj := LinkObject{Path: path, Hash: hash, Lib: lib}
	r.linkObjects = append(r.linkObjects, obj)
	r.linkHashes[hash] = true
	return &obj, nil
}

func (r *Registry) LinkObjects() []LinkObject { return r.linkObjects }

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ---- variable scopes ----

func (r *Registry) Scopes() *ScopeStack { return r.scopes }

// VarBinding is one entry in a variable scope (spec §3).
type VarBinding struct {
	Name  string
	Value valueref.Ref
}

// ScopeType mirrors the teacher's symbols.ScopeType enum, generalized to
// this compiler's needs.
type ScopeType int

const (
	ScopeGlobal ScopeType = iota
	ScopeFunction
	ScopeBlock
)

type scope struct {
	kind     ScopeType
	bindings map[string]*VarBinding
}

// ScopeStack is the variable registry: a stack of scopes. Exiting a scope
// discards only entries declared at that depth but linear-state mutations
// to outer entries remain visible (spec §3 Lifecycle).
type ScopeStack struct {
	stack []*scope
}

func NewScopeStack() *ScopeStack {
	s := &ScopeStack{}
	s.Push(ScopeGlobal)
	return s
}

func (s *ScopeStack) Push(kind ScopeType) {
	s.stack = append(s.stack, &scope{kind: kind, bindings: map[string]*VarBinding{}})
}

func (s *ScopeStack) Pop() {
	if len(s.stack) > 1 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

func (s *ScopeStack) Depth() int { return len(s.stack) }

// Declare installs a new binding in the current (innermost) scope.
func (s *ScopeStack) Declare(name string, v valueref.Ref) *VarBinding {
	b := &VarBinding{Name: name, Value: v}
	s.stack[len(s.stack)-1].bindings[name] = b
	return b
}

// Lookup searches from innermost to outermost scope.
func (s *ScopeStack) Lookup(name string) (*VarBinding, bool) {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if b, ok := s.stack[i].bindings[name]; ok {
			return b, true
		}
	}
	return nil, false
}

// LookupLocal searches only the innermost scope (used to detect
// redeclaration within the same block).
func (s *ScopeStack) LookupLocal(name string) (*VarBinding, bool) {
	b, ok := s.stack[len(s.stack)-1].bindings[name]
	return b, ok
}

// CurrentScopeBindings returns every binding declared directly in the
// innermost scope, for block-exit bookkeeping.
func (s *ScopeStack) CurrentScopeBindings() map[string]*VarBinding {
	return s.stack[len(s.stack)-1].bindings
}

// LiveBindings returns every binding visible from the innermost scope up
// to (and including) the nearest enclosing function scope, for the
// unconsumed-linear-token check at a return point (spec §7
// LinearTokensNotConsumed): a local declared in an outer block of the
// same function is still live at a return nested inside an if/while/for.
func (s *ScopeStack) LiveBindings() map[string]*VarBinding {
	out := map[string]*VarBinding{}
	for i := len(s.stack) - 1; i >= 0; i-- {
		for name, b := range s.stack[i].bindings {
			if _, seen := out[name]; !seen {
				out[name] = b
			}
		}
		if s.stack[i].kind == ScopeFunction {
			break
		}
	}
	return out
}
