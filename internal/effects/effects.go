// Package effects implements C10: resolution of abstract capability
// references (`effect.rng.next()`) to a concrete implementation at
// lowering time, using the three-level priority direct binding > caller
// override > library default (spec §4.7). Grounded on the teacher's
// symbol-table scope-stack pattern, generalized here from a variable
// scope stack to a suffix-and-override context stack.
package effects

import "fmt"

// Binding is one resolved capability implementation: the capability name,
// the mangled name of the function it resolves to, and whether it is
// sealed. It carries no effect suffix; suffixes live on the context stack.
type Binding struct {
	Capability string
	ImplName   string
	Sealed     bool // true once set via direct `effect.C = impl` assignment
}

// overrideFrame is one `with effect(C=impl, suffix=s): ...` context.
type overrideFrame struct {
	overrides map[string]string // capability -> impl mangled name
	suffix    string
}

// Resolver tracks sealed direct bindings, library defaults, and the
// currently active stack of caller-override contexts (spec §4.7).
type Resolver struct {
	sealed   map[string]*Binding
	defaults map[string]string // capability -> impl mangled name
	stack    []overrideFrame

	cache map[cacheKey]*Binding
}

type cacheKey struct {
	unmangled     string
	suffixSnapshot string
}

func New() *Resolver {
	return &Resolver{
		sealed:   map[string]*Binding{},
		defaults: map[string]string{},
		cache:    map[cacheKey]*Binding{},
	}
}

// Seal records a direct `effect.C = impl` assignment. Once sealed, a
// capability cannot be overridden by any caller context (spec §4.7.1).
func (r *Resolver) Seal(capability, implName string) error {
	if b, ok := r.sealed[capability]; ok && b.ImplName != implName {
		return fmt.Errorf("effect %q already sealed to %q", capability, b.ImplName)
	}
	r.sealed[capability] = &Binding{Capability: capability, ImplName: implName, Sealed: true}
	return nil
}

// SetDefault records a library-declared `effect.default(C=impl)` (spec
// §4.7.3), the lowest-priority resolution source.
func (r *Resolver) SetDefault(capability, implName string) {
	r.defaults[capability] = implName
}

// PushContext enters a `with effect(...)` block, pushing a suffix (for
// exception-safe pop-on-unwind callers must always pair this with
// PopContext, e.g. via defer) — spec §4.7.2.
func (r *Resolver) PushContext(overrides map[string]string, suffix string) {
	r.stack = append(r.stack, overrideFrame{overrides: overrides, suffix: suffix})
}

func (r *Resolver) PopContext() {
	if len(r.stack) == 0 {
		panic("effects: PopContext with empty context stack")
	}
	r.stack = r.stack[:len(r.stack)-1]
}

// SuffixStackSnapshot renders the currently active suffix stack into a
// string used as half of the resolution cache key (spec §4.7: "cached by
// (unmangled, suffix_stack_snapshot)").
func (r *Resolver) SuffixStackSnapshot() string {
	s := ""
	for _, f := range r.stack {
		if f.suffix != "" {
			s += "/" + f.suffix
		}
	}
	return s
}

// EffectiveSuffix returns the innermost non-empty suffix on the current
// context stack ("" when none is set). Nothing in this module calls it:
// funcmgr mangles every function with an empty effect suffix, so a
// suffix pushed by a context does not reach mangled names.
func (r *Resolver) EffectiveSuffix() string {
	for i := len(r.stack) - 1; i >= 0; i-- {
		if r.stack[i].suffix != "" {
			return r.stack[i].suffix
		}
	}
	return ""
}

// Resolve looks up capability for a function named unmangled, applying the
// three-level priority and caching by (unmangled, suffix stack snapshot)
// (spec §4.7).
func (r *Resolver) Resolve(unmangled, capability string) (*Binding, error) {
	key := cacheKey{unmangled: unmangled, suffixSnapshot: r.SuffixStackSnapshot() + "|" + capability}
	if b, ok := r.cache[key]; ok {
		return b, nil
	}
	b, err := r.resolveUncached(capability)
	if err != nil {
		return nil, err
	}
	r.cache[key] = b
	return b, nil
}

func (r *Resolver) resolveUncached(capability string) (*Binding, error) {
	if b, ok := r.sealed[capability]; ok {
		return b, nil
	}
	for i := len(r.stack) - 1; i >= 0; i-- {
		if impl, ok := r.stack[i].overrides[capability]; ok {
			return &Binding{Capability: capability, ImplName: impl}, nil
		}
	}
	if impl, ok := r.defaults[capability]; ok {
		return &Binding{Capability: capability, ImplName: impl}, nil
	}
	return nil, fmt.Errorf("effect %q has no sealed binding, caller override, or library default", capability)
}
