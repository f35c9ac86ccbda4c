package typelattice

import "strconv"

// Builtins is the fixed table of primitive scalar types recognized by the
// type resolver (C5) before it ever consults user aggregates (spec §4.1).
var Builtins = buildBuiltins()

func buildBuiltins() map[string]Type {
	m := map[string]Type{}
	for _, w := range []int{8, 16, 32, 64} {
		m["i"+strconv.Itoa(w)] = IntType{Width: w, Signed: true}
		m["u"+strconv.Itoa(w)] = IntType{Width: w, Signed: false}
	}
	for _, k := range []string{"f16", "bf16", "f32", "f64", "f128"} {
		m[k] = FloatType{Kind: k}
	}
	return m
}

// Lookup resolves a bare builtin name, or reports ok=false.
func Lookup(name string) (Type, bool) {
	t, ok := Builtins[name]
	return t, ok
}
