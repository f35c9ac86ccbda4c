// Package funcmgr implements C9: mangled-name construction and the
// two-pass collect/emit scheme that lets direct, mutual, and three-way
// recursion resolve purely by mangled-name lookup. Grounded on the
// teacher's two-phase collection (internal/modules.Loader separating
// "load every file's top-level names" from "analyze bodies") generalized
// from module-level forward declarations to per-function ones.
package funcmgr

import (
	"strconv"
	"strings"

	"github.com/funvibe/pythoc-go/internal/typelattice"
)

// SuffixFragment is one contributor to a mangled name's suffix (spec
// §4.6): a type, a tuple of fragments, or an integer constant.
type SuffixFragment interface{ fragment() string }

type TypeFragment struct{ T typelattice.Type }

func (f TypeFragment) fragment() string { return f.T.String() }

type TupleFragment struct{ Elems []SuffixFragment }

func (f TupleFragment) fragment() string {
	parts := make([]string, len(f.Elems))
	for i, e := range f.Elems {
		parts[i] = e.fragment()
	}
	return strings.Join(parts, "_")
}

type IntFragment struct{ Value int64 }

func (f IntFragment) fragment() string { return strconv.FormatInt(f.Value, 10) }

// Mangle builds `unmangled + '.' + suffix_fragment` (spec §4.6). When
// suffix is nil and effectSuffix is "", the mangled name equals unmangled.
// The caller-context effect suffix is appended after the user suffix when
// non-empty, per the ordering spec §4.6 specifies.
func Mangle(unmangled string, suffix SuffixFragment, effectSuffix string) string {
	var frag string
	if suffix != nil {
		frag = suffix.fragment()
	}
	if effectSuffix != "" {
		if frag != "" {
			frag += "_" + effectSuffix
		} else {
			frag = effectSuffix
		}
	}
	if frag == "" {
		return unmangled
	}
	return unmangled + "." + frag
}

// ArgTypeFragment builds a suffix fragment from a tuple of call-site
// argument types, in order (spec §4.6 "compute argument type fragments,
// mangle, and look up the specialisation"). Nothing in this module calls
// it; call-site overload resolution compares parameter types directly.
func ArgTypeFragment(argTypes []typelattice.Type) SuffixFragment {
	elems := make([]SuffixFragment, len(argTypes))
	for i, t := range argTypes {
		elems[i] = TypeFragment{T: t}
	}
	return TupleFragment{Elems: elems}
}
