// Package valueref implements C6: a tagged union of the things an
// expression can lower to, carrying a PC-type hint and the linear-token
// provenance the statement lowerer (C8) needs to check spec invariant P1.
package valueref

import (
	"github.com/funvibe/pythoc-go/internal/irtype"
	"github.com/funvibe/pythoc-go/internal/typelattice"
)

// Kind discriminates the ValueRef union (spec §3).
type Kind int

const (
	RValue Kind = iota
	Address
	PythonConstant
	TypeClass
	Callable
)

// LinearState is the per-sub-path state the linear checker tracks.
type LinearState int

const (
	Active LinearState = iota
	Consumed
	Unknown
)

// PathKey identifies a reachable sub-path into a linear-typed value: a
// tuple of field/array indices from the root (spec §3/§4.5).
type PathKey string

// Ref is a ValueRef: the result of lowering one expression node.
type Ref struct {
	Kind Kind
	Type typelattice.Type // PC-type hint (C1 entry)

	// IR carries the underlying builder handle: an *irbuilder.Value for
	// RValue/Address refs. Left untyped (any) so this leaf package does not
	// need to import internal/irbuilder (which itself needs ValueRef at
	// call/ret packing boundaries) — avoids an import cycle.
	IR any

	// PythonConstant payload: the compile-time-known value, present when
	// Kind == PythonConstant. Concrete Go types: int64, float64, string, bool.
	ConstValue any

	// linear provenance: sub-path -> state. nil unless Type.Linear().
	linear map[PathKey]LinearState
	// node is the AST node (as `any`, to dodge an ast import cycle with
	// the lowerer) that produced the current top-level linear state, used
	// to point diagnostics at the right line.
	node any
}

// NewLinear seeds a fresh linear ValueRef with every reachable sub-path
// (spec §3: "for each reachable sub-path ... active|consumed").
func NewLinear(t typelattice.Type, ir any, paths []PathKey) Ref {
	m := make(map[PathKey]LinearState, len(paths))
	for _, p := range paths {
		m[p] = Active
	}
	return Ref{Kind: RValue, Type: t, IR: ir, linear: m}
}

// State returns the linear state of a sub-path, defaulting to Unknown for
// paths never tracked (e.g. a value that was never linear).
func (r Ref) State(p PathKey) LinearState {
	if r.linear == nil {
		return Unknown
	}
	if s, ok := r.linear[p]; ok {
		return s
	}
	return Unknown
}

// Consume marks a sub-path (and everything nested under it) as consumed,
// returning a new Ref — Refs are treated as value types so callers don't
// need to worry about aliasing the map across branches.
func (r Ref) Consume(p PathKey) Ref {
	out := r.clone()
	for k := range out.linear {
		if hasPrefix(k, p) {
			out.linear[k] = Consumed
		}
	}
	return out
}

// ActivePaths returns every sub-path still Active, in map order (the
// caller sorts if deterministic output matters) — used by the statement
// lowerer at function exit to build the LinearTokensNotConsumed diagnostic
// (spec §7).
func (r Ref) ActivePaths() []PathKey {
	var out []PathKey
	for k, v := range r.linear {
		if v == Active {
			out = append(out, k)
		}
	}
	return out
}

// Merge reconciles this Ref's linear state with other's (spec §4.5 If:
// "the two captures are reconciled path-by-path"). ok is false if any
// shared path differs in a way not covered by the "unknown compatible
// with consumed" rule.
func (r Ref) Merge(other Ref) (merged Ref, ok bool) {
	merged = r.clone()
	ok = true
	for k, v := range other.linear {
		cur, present := merged.linear[k]
		if !present {
			merged.linear[k] = v
			continue
		}
		if cur == v {
			continue
		}
		if (cur == Unknown && v == Consumed) || (cur == Consumed && v == Unknown) {
			merged.linear[k] = Consumed
			continue
		}
		ok = false
	}
	return merged, ok
}

func (r Ref) clone() Ref {
	out := r
	out.linear = make(map[PathKey]LinearState, len(r.linear))
	for k, v := range r.linear {
		out.linear[k] = v
	}
	return out
}

func hasPrefix(path, prefix PathKey) bool {
	if prefix == "" {
		return true
	}
	return len(path) >= len(prefix) && path[:len(prefix)] == prefix
}

// LLVM is a convenience accessor for the type hint's LLVM lowering.
func (r Ref) LLVM() irtype.Type { return r.Type.LLVM() }
