// Package abi implements C3: classification of aggregate parameters and
// return values into the platform calling-convention's direct-register,
// coerced, or indirect-memory passing modes. Two classifiers are provided,
// selected by target triple: x86-64 SysV (eightbyte INTEGER/SSE/MEMORY
// classification) and AArch64 AAPCS64 (homogeneous-float-aggregate rules).
// Grounded on the teacher's backend abstraction pattern (one interface,
// multiple concrete implementations selected by target) generalized from
// execution backend selection to ABI classification.
package abi

import "github.com/funvibe/pythoc-go/internal/typelattice"

// Class is how one value crosses a call boundary.
type Class int

const (
	// Direct: the value's own LLVM type is passed/returned as-is.
	Direct Class = iota
	// Coerce: the value is bitcast to a different LLVM shape (an i64, a
	// {i64,i64} pair, a {double,double} pair, or a small array) before
	// crossing the boundary.
	Coerce
	// Indirect: the value is passed/returned via a hidden pointer to
	// caller-allocated memory.
	Indirect
	// Ignore: a zero-sized value contributes nothing to the ABI (spec:
	// empty struct -> void on AAPCS64).
	Ignore
)

// Classification is the outcome for one parameter or return value.
type Classification struct {
	Class      Class
	CoerceType typelattice.Type // set when Class == Coerce: the shape to bitcast through
}

// Classifier abstracts the target-specific eightbyte/HFA rules so C4's
// builder can ask "how does this cross the boundary" without knowing which
// target triple it is emitting for.
type Classifier interface {
	ClassifyParam(t typelattice.Type) Classification
	ClassifyReturn(t typelattice.Type) Classification
}

// ForTriple selects a Classifier by LLVM target triple prefix.
func ForTriple(triple string) Classifier {
	if hasAArch64Prefix(triple) {
		return AArch64Classifier{}
	}
	return SysVClassifier{}
}

func hasAArch64Prefix(triple string) bool {
	return len(triple) >= 7 && (triple[:7] == "aarch64" || triple[:5] == "arm64")
}
