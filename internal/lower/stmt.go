package lower

import (
	"github.com/funvibe/pythoc-go/internal/ast"
	"github.com/funvibe/pythoc-go/internal/diagnostics"
	"github.com/funvibe/pythoc-go/internal/irbuilder"
	"github.com/funvibe/pythoc-go/internal/irtype"
	"github.com/funvibe/pythoc-go/internal/registry"
	"github.com/funvibe/pythoc-go/internal/typelattice"
	"github.com/funvibe/pythoc-go/internal/valueref"
)

func (l *Lowerer) lowerBlock(stmts []ast.Statement) []*diagnostics.Diagnostic {
	var diags []*diagnostics.Diagnostic
	for _, s := range stmts {
		diags = append(diags, l.lowerStatement(s)...)
	}
	return diags
}

func (l *Lowerer) lowerStatement(s ast.Statement) []*diagnostics.Diagnostic {
	switch st := s.(type) {
	case *ast.ExpressionStatement:
		return l.lowerExpressionStatement(st)
	case *ast.AssignStatement:
		return l.lowerAssign(st)
	case *ast.ReturnStatement:
		return l.lowerReturn(st)
	case *ast.YieldStatement:
		return l.lowerYield(st)
	case *ast.BreakStatement:
		if n := len(l.consumerBreakFlags); n > 0 {
			flag := l.consumerBreakFlags[n-1]
			l.builder.Store(l.builder.ConstInt(irtype.IntTy(1), 1), *flag)
		}
		if err := l.builder.Break(); err != nil {
			return []*diagnostics.Diagnostic{l.errf(st, diagnostics.KindControl, "%v", err)}
		}
		return nil
	case *ast.ContinueStatement:
		if err := l.builder.Continue(); err != nil {
			return []*diagnostics.Diagnostic{l.errf(st, diagnostics.KindControl, "%v", err)}
		}
		return nil
	case *ast.PassStatement:
		return nil
	case *ast.IfStatement:
		return l.lowerIf(st)
	case *ast.WhileStatement:
		return l.lowerWhile(st)
	case *ast.ForStatement:
		return l.lowerFor(st)
	case *ast.MatchStatement:
		return l.lowerMatch(st)
	case *ast.WithEffectStmt:
		return l.lowerWithEffect(st)
	default:
		return []*diagnostics.Diagnostic{l.errf(s, diagnostics.KindTyping, "unsupported statement form %T", s)}
	}
}

func (l *Lowerer) lowerExpressionStatement(st *ast.ExpressionStatement) []*diagnostics.Diagnostic {
	ref, diags := l.lowerExpr(st.Expr)
	if len(diags) > 0 {
		return diags
	}
	// A bare linear-typed rvalue with nowhere to be consumed is a dangling
	// linear token (spec §7 LinearTokensNotConsumed) unless it is a call
	// whose result the caller explicitly discards, which the surface
	// grammar has no syntax to distinguish from "forgot to bind it" — so
	// both are flagged the same way.
	if ref.Type != nil && ref.Type.Linear() {
		return []*diagnostics.Diagnostic{l.errf(st, diagnostics.KindLinear, "linear value discarded without being consumed")}
	}
	return nil
}

// lowerAssign covers `x: T = e` (fresh declaration), `x = e` (existing
// binding or lvalue path), and `x += e` (spec §4.4/§4.5).
func (l *Lowerer) lowerAssign(st *ast.AssignStatement) []*diagnostics.Diagnostic {
	if st.Annotation != nil {
		declT, err := l.resolver.Resolve(st.Annotation)
		if err != nil {
			return []*diagnostics.Diagnostic{l.errf(st, diagnostics.KindAnnotation, "%v", err)}
		}
		val, diags := l.lowerExpr(st.Value)
		if len(diags) > 0 {
			return diags
		}
		switch st.Qualifier {
		case "const":
			declT = typelattice.ConstType{Inner: declT}
		case "static":
			declT = typelattice.StaticType{Inner: declT}
		}
		slot := l.builder.Alloca(declT.LLVM())
		l.builder.Store(val.IR.(irbuilder.Value), slot)
		id, ok := st.Target.(*ast.Identifier)
		if !ok {
			return []*diagnostics.Diagnostic{l.errf(st, diagnostics.KindTyping, "declaration target must be a bare name")}
		}
		ref := valueref.Ref{Kind: valueref.Address, Type: declT, IR: slot}
		if declT.Linear() {
			ref = valueref.NewLinear(declT, slot, []valueref.PathKey{""})
			ref.Kind = valueref.Address
		}
		l.reg.Scopes().Declare(id.Value, ref)
		return nil
	}

	if st.AugOp != "" {
		ptr, t, diags := l.addressOf(st.Target)
		if len(diags) > 0 {
			return diags
		}
		cur := l.builder.Load(ptr)
		val, diags := l.lowerExpr(st.Value)
		if len(diags) > 0 {
			return diags
		}
		if d := l.requireEqual(st, t, val.Type); d != nil {
			return []*diagnostics.Diagnostic{d}
		}
		var result irbuilder.Value
		float := isFloat(underlying(t))
		switch st.AugOp {
		case "+":
			if float {
				result = l.builder.FAdd(cur, val.IR.(irbuilder.Value))
			} else {
				result = l.builder.IAdd(cur, val.IR.(irbuilder.Value))
			}
		case "-":
			if float {
				result = l.builder.FSub(cur, val.IR.(irbuilder.Value))
			} else {
				result = l.builder.ISub(cur, val.IR.(irbuilder.Value))
			}
		case "*":
			if float {
				result = l.builder.FMul(cur, val.IR.(irbuilder.Value))
			} else {
				result = l.builder.IMul(cur, val.IR.(irbuilder.Value))
			}
		case "/":
			if float {
				result = l.builder.FDiv(cur, val.IR.(irbuilder.Value))
			} else {
				result = l.builder.SDiv(cur, val.IR.(irbuilder.Value))
			}
		default:
			return []*diagnostics.Diagnostic{l.errf(st, diagnostics.KindTyping, "unsupported augmented operator %q", st.AugOp)}
		}
		l.builder.Store(result, ptr)
		return nil
	}

	ptr, t, diags := l.addressOf(st.Target)
	if len(diags) > 0 {
		return diags
	}
	val, diags := l.lowerExpr(st.Value)
	if len(diags) > 0 {
		return diags
	}
	if d := l.requireEqual(st, t, val.Type); d != nil {
		return []*diagnostics.Diagnostic{d}
	}
	l.builder.Store(val.IR.(irbuilder.Value), ptr)
	return nil
}

func (l *Lowerer) lowerReturn(st *ast.ReturnStatement) []*diagnostics.Diagnostic {
	if diags := l.checkUnconsumedLinear(st); len(diags) > 0 {
		return diags
	}
	if st.Value == nil {
		l.builder.Ret(nil)
		return nil
	}
	val, diags := l.lowerExpr(st.Value)
	if len(diags) > 0 {
		return diags
	}
	v := val.IR.(irbuilder.Value)
	l.builder.Ret(&v)
	return nil
}

// checkUnconsumedLinear enforces spec invariant P1 at every return point:
// every linear-typed local still Active at exit is a diagnostic.
func (l *Lowerer) checkUnconsumedLinear(node ast.Node) []*diagnostics.Diagnostic {
	var diags []*diagnostics.Diagnostic
	for name, b := range l.reg.Scopes().LiveBindings() {
		if b.Value.Type == nil || !b.Value.Type.Linear() {
			continue
		}
		if len(b.Value.ActivePaths()) > 0 {
			diags = append(diags, l.errf(node, diagnostics.KindLinear, "linear value %q not consumed on this path", name))
		}
	}
	return diags
}

func (l *Lowerer) lowerYield(st *ast.YieldStatement) []*diagnostics.Diagnostic {
	if len(l.yieldSinks) == 0 {
		return []*diagnostics.Diagnostic{l.errf(st, diagnostics.KindControl, "yield used outside of an inlined generator consumer")}
	}
	val, diags := l.lowerExpr(st.Value)
	if len(diags) > 0 {
		return diags
	}
	sink := l.yieldSinks[len(l.yieldSinks)-1]
	return sink(val)
}

func (l *Lowerer) lowerIf(st *ast.IfStatement) []*diagnostics.Diagnostic {
	cond, diags := l.lowerExpr(st.Condition)
	if len(diags) > 0 {
		return diags
	}
	thenBlk := l.builder.NewBlock("if.then")
	elseBlk := l.builder.NewBlock("if.else")
	mergeBlk := l.builder.NewBlock("if.merge")

	zero := l.builder.ConstInt(cond.Type.LLVM(), 0)
	truthy := l.builder.ICmp("ne", cond.IR.(irbuilder.Value), zero)
	l.builder.CondBr(truthy, thenBlk, elseBlk)

	l.reg.Scopes().Push(registry.ScopeBlock)
	before := l.reg.Scopes().LiveBindings()
	l.builder.SetInsertPoint(thenBlk)
	diags = append(diags, l.lowerBlock(st.Then)...)
	thenTerminated := l.builder.CurrentBlockTerminated()
	if !thenTerminated {
		l.builder.Br(mergeBlk)
	}
	thenLive := l.reg.Scopes().LiveBindings()
	l.reg.Scopes().Pop()

	l.reg.Scopes().Push(registry.ScopeBlock)
	l.builder.SetInsertPoint(elseBlk)
	diags = append(diags, l.lowerBlock(st.Else)...)
	elseTerminated := l.builder.CurrentBlockTerminated()
	if !elseTerminated {
		l.builder.Br(mergeBlk)
	}
	elseLive := l.reg.Scopes().LiveBindings()
	l.reg.Scopes().Pop()

	if d := l.mergeBranchLinearState(st, before, thenLive, thenTerminated, elseLive, elseTerminated); d != nil {
		diags = append(diags, d)
	}

	l.builder.SetInsertPoint(mergeBlk)
	return diags
}

// mergeBranchLinearState reconciles a linear local's state across an
// if/else split (spec §4.5, §8 scenario 1): a binding consumed on one
// reachable arm but not the other leaves the merge point's linear state
// ambiguous, which is exactly the LinearTokenInconsistentBranches case. A
// branch that itself terminated (return/break/continue) never reaches the
// merge point, so its state is irrelevant to reconciliation — only the
// branches that fall through to mergeBlk can disagree.
func (l *Lowerer) mergeBranchLinearState(node ast.Node, before, thenLive, elseLive map[string]*registry.VarBinding, thenTerminated, elseTerminated bool) *diagnostics.Diagnostic {
	if thenTerminated && elseTerminated {
		return nil
	}
	for name, b := range before {
		if b.Value.Type == nil || !b.Value.Type.Linear() {
			continue
		}
		var merged valueref.Ref
		switch {
		case thenTerminated:
			merged = elseLive[name].Value
		case elseTerminated:
			merged = thenLive[name].Value
		default:
			m, ok := thenLive[name].Value.Merge(elseLive[name].Value)
			if !ok {
				return l.errf(node, diagnostics.KindLinear, "linear value %q consumed inconsistently across if/else branches", name)
			}
			merged = m
		}
		l.reg.Scopes().Declare(name, merged)
	}
	return nil
}

func (l *Lowerer) lowerWhile(st *ast.WhileStatement) []*diagnostics.Diagnostic {
	var diags []*diagnostics.Diagnostic
	header := l.builder.NewBlock("while.header")
	body := l.builder.NewBlock("while.body")
	exit := l.builder.NewBlock("while.exit")

	l.builder.Br(header)
	l.builder.SetInsertPoint(header)
	cond, d := l.lowerExpr(st.Condition)
	diags = append(diags, d...)
	zero := l.builder.ConstInt(cond.Type.LLVM(), 0)
	truthy := l.builder.ICmp("ne", cond.IR.(irbuilder.Value), zero)
	l.builder.CondBr(truthy, body, exit)

	l.builder.SetInsertPoint(body)
	l.builder.PushLoop(header, exit, nil)
	diags = append(diags, l.lowerBlock(st.Body)...)
	l.builder.PopLoop()
	if !l.builder.CurrentBlockTerminated() {
		l.builder.Br(header)
	}

	l.builder.SetInsertPoint(exit)
	return diags
}

// lowerFor handles the array-iteration form `for x in arr: body [else:]`
// (spec §4.5 iterator forms); generator-call and refine() iterables are
// dispatched to their own lowering below.
func (l *Lowerer) lowerFor(st *ast.ForStatement) []*diagnostics.Diagnostic {
	if call, ok := st.Iterable.(*ast.Call); ok {
		if callee, ok := call.Callee.(*ast.Identifier); ok && callee.Value == "refine" {
			return l.lowerForRefine(st, call)
		}
		if diags, handled := l.tryLowerForGenerator(st, call); handled {
			return diags
		}
	}
	return l.lowerForArray(st)
}

func (l *Lowerer) lowerForArray(st *ast.ForStatement) []*diagnostics.Diagnostic {
	var diags []*diagnostics.Diagnostic
	arrPtr, arrType, d := l.addressOf(st.Iterable)
	diags = append(diags, d...)
	if len(d) > 0 {
		return diags
	}
	at, ok := underlying(arrType).(typelattice.ArrayType)
	if !ok {
		return append(diags, l.errf(st, diagnostics.KindTyping, "for-loop iterable must be an array, got %s", arrType.String()))
	}
	n := at.Dims[0]
	idxT := typelattice.IntType{Width: 64, Signed: false}

	idxSlot := l.builder.Alloca(idxT.LLVM())
	l.builder.Store(l.builder.ConstInt(idxT.LLVM(), 0), idxSlot)

	header := l.builder.NewBlock("for.header")
	body := l.builder.NewBlock("for.body")
	exit := l.builder.NewBlock("for.exit")

	var brokeSlot irbuilder.Value
	var brokePtr *irbuilder.Value
	if st.Else != nil {
		brokeSlot = l.builder.Alloca(irtype.IntTy(1))
		l.builder.Store(l.builder.ConstInt(irtype.IntTy(1), 0), brokeSlot)
		brokePtr = &brokeSlot
	}

	l.builder.Br(header)
	l.builder.SetInsertPoint(header)
	idx := l.builder.Load(idxSlot)
	limit := l.builder.ConstInt(idxT.LLVM(), int64(n))
	cond := l.builder.ICmp("ult", idx, limit)
	l.builder.CondBr(cond, body, exit)

	l.builder.SetInsertPoint(body)
	elemPtr := l.builder.GEPIndexed(arrPtr, []int{0}, idx)
	elemVal := l.builder.Load(elemPtr)

	l.reg.Scopes().Push(registry.ScopeBlock)
	l.bindForTarget(st.Target, valueref.Ref{Kind: valueref.RValue, Type: at.Elem, IR: elemVal})
	l.builder.PushLoop(header, exit, brokePtr)
	diags = append(diags, l.lowerBlock(st.Body)...)
	l.builder.PopLoop()
	l.reg.Scopes().Pop()

	// A body ending in break/continue/return already terminated this
	// block; the increment and the back-edge to header belong only to the
	// normal fall-through path (spec §4.5 "a terminated block is never
	// appended to again").
	if !l.builder.CurrentBlockTerminated() {
		next := l.builder.IAdd(idx, l.builder.ConstInt(idxT.LLVM(), 1))
		l.builder.Store(next, idxSlot)
		l.builder.Br(header)
	}

	l.builder.SetInsertPoint(exit)
	if st.Else != nil {
		elseBlk := l.builder.NewBlock("for.else")
		after := l.builder.NewBlock("for.after")
		broke := l.builder.Load(*brokePtr)
		zero := l.builder.ConstInt(irtype.IntTy(1), 0)
		notBroke := l.builder.ICmp("eq", broke, zero)
		l.builder.CondBr(notBroke, elseBlk, after)
		l.builder.SetInsertPoint(elseBlk)
		diags = append(diags, l.lowerBlock(st.Else)...)
		if !l.builder.CurrentBlockTerminated() {
			l.builder.Br(after)
		}
		l.builder.SetInsertPoint(after)
	}
	return diags
}

func (l *Lowerer) bindForTarget(target ast.Expression, val valueref.Ref) {
	switch t := target.(type) {
	case *ast.Identifier:
		l.reg.Scopes().Declare(t.Value, val)
	case *ast.TupleLiteral:
		// destructuring over a tuple rvalue extracts each named element
		// by position (spec §4.5 "for x, y in ...").
		for i, el := range t.Elems {
			id, ok := el.(*ast.Identifier)
			if !ok {
				continue
			}
			l.reg.Scopes().Declare(id.Value, valueref.Ref{Kind: valueref.RValue, Type: val.Type, IR: l.builder.ExtractValue(val.IR.(irbuilder.Value), i)})
		}
	}
}

// lowerForRefine handles `for x in refine(args..., pred): body else:
// elseBody` (spec §4.5): args are evaluated once, the predicate is
// checked, and control goes to body with a RefinedType binding on success
// or to the else clause on failure — this is the one iterator form that
// runs its body at most once, so it lowers to a plain conditional rather
// than a loop.
func (l *Lowerer) lowerForRefine(st *ast.ForStatement, call *ast.Call) []*diagnostics.Diagnostic {
	ref, diags := l.lowerRefine(call)
	if len(diags) > 0 {
		return diags
	}
	// refine's runtime check is the predicate function named by
	// RefinedType.PredName, called with the same argument values.
	predT := ref.Type.(typelattice.RefinedType)
	mangled, fi, ok := l.resolveCallee(predT.PredName, []typelattice.Type{ref.Type.(typelattice.RefinedType).Underlying})
	thenBlk := l.builder.NewBlock("refine.then")
	elseBlk := l.builder.NewBlock("refine.else")
	afterBlk := l.builder.NewBlock("refine.after")
	if !ok {
		diags = append(diags, l.errf(st, diagnostics.KindTyping, "refine predicate %q is not a declared function", predT.PredName))
		l.builder.Br(elseBlk)
	} else {
		wrapper, _ := l.funcs.Wrapper(mangled)
		result := l.builder.Call(wrapper, []irbuilder.Value{ref.IR.(irbuilder.Value)}, wrapper.ApplyCABI)
		_ = fi
		zero := l.builder.ConstInt(irtype.IntTy(8), 0)
		truthy := l.builder.ICmp("ne", *result, zero)
		l.builder.CondBr(truthy, thenBlk, elseBlk)
	}

	l.builder.SetInsertPoint(thenBlk)
	l.reg.Scopes().Push(registry.ScopeBlock)
	l.bindForTarget(st.Target, ref)
	diags = append(diags, l.lowerBlock(st.Body)...)
	l.reg.Scopes().Pop()
	if !l.builder.CurrentBlockTerminated() {
		l.builder.Br(afterBlk)
	}

	l.builder.SetInsertPoint(elseBlk)
	diags = append(diags, l.lowerBlock(st.Else)...)
	if !l.builder.CurrentBlockTerminated() {
		l.builder.Br(afterBlk)
	}

	l.builder.SetInsertPoint(afterBlk)
	return diags
}

// tryLowerForGenerator inlines a KindGenerator function's body directly at
// the call site: every `yield v` inside it binds v to the for-loop target
// and executes the for-body in place (spec §4.5 generator iteration,
// implemented here as source-level inlining rather than a coroutine
// transform, since the compiled dialect has no stack-switching runtime).
func (l *Lowerer) tryLowerForGenerator(st *ast.ForStatement, call *ast.Call) (diags []*diagnostics.Diagnostic, handled bool) {
	callee, ok := call.Callee.(*ast.Identifier)
	if !ok {
		return nil, false
	}
	argTypes := make([]typelattice.Type, 0, len(call.Args))
	argVals := make([]valueref.Ref, 0, len(call.Args))
	for _, a := range call.Args {
		v, d := l.lowerExpr(a)
		if len(d) > 0 {
			return d, true
		}
		argTypes = append(argTypes, v.Type)
		argVals = append(argVals, v)
	}
	_, fi, ok := l.resolveCallee(callee.Value, argTypes)
	if !ok || fi.Kind != registry.KindGenerator {
		return nil, false
	}
	genDef, ok := l.funcs.DefinitionOf(fi.Mangled)
	if !ok {
		return []*diagnostics.Diagnostic{l.errf(st, diagnostics.KindControl, "generator %q has no collected body to inline", callee.Value)}, true
	}

	l.reg.Scopes().Push(registry.ScopeFunction)
	for i, name := range fi.ParamNames {
		l.reg.Scopes().Declare(name, argVals[i])
	}

	// A `break` lowered while inside the inlined for-body targets whichever
	// loop the generator's own body happens to have pushed at that point
	// (its internal while/for), not a loop context of this statement's
	// own — inlining gives the consumer no separate loop to jump out of.
	// consumerBreakFlags lets the break *statement* additionally record,
	// into a slot scoped to exactly the span of lowering st.Body, that a
	// break happened — scoped that narrowly so a break belonging to the
	// generator's own internal loop (lowered outside any sink invocation)
	// never sets it (spec §4.5 generator for...else).
	var brokeSlot irbuilder.Value
	if st.Else != nil {
		brokeSlot = l.builder.Alloca(irtype.IntTy(1))
		l.builder.Store(l.builder.ConstInt(irtype.IntTy(1), 0), brokeSlot)
	}

	sink := func(v valueref.Ref) []*diagnostics.Diagnostic {
		l.reg.Scopes().Push(registry.ScopeBlock)
		l.bindForTarget(st.Target, v)
		if st.Else != nil {
			l.consumerBreakFlags = append(l.consumerBreakFlags, &brokeSlot)
		}
		d := l.lowerBlock(st.Body)
		if st.Else != nil {
			l.consumerBreakFlags = l.consumerBreakFlags[:len(l.consumerBreakFlags)-1]
		}
		l.reg.Scopes().Pop()
		return d
	}
	l.yieldSinks = append(l.yieldSinks, sink)
	diags = append(diags, l.lowerBlock(genDef.Func.Body)...)
	l.yieldSinks = l.yieldSinks[:len(l.yieldSinks)-1]

	l.reg.Scopes().Pop()

	if st.Else != nil {
		elseBlk := l.builder.NewBlock("for.gen.else")
		after := l.builder.NewBlock("for.gen.after")
		broke := l.builder.Load(brokeSlot)
		zero := l.builder.ConstInt(irtype.IntTy(1), 0)
		notBroke := l.builder.ICmp("eq", broke, zero)
		l.builder.CondBr(notBroke, elseBlk, after)
		l.builder.SetInsertPoint(elseBlk)
		diags = append(diags, l.lowerBlock(st.Else)...)
		if !l.builder.CurrentBlockTerminated() {
			l.builder.Br(after)
		}
		l.builder.SetInsertPoint(after)
	}
	return diags, true
}

// lowerMatch lowers a match statement as a sequential cascade of pattern
// tests (spec §4.4/§4.5): not the optimal jump-table decision tree a
// mature backend would build, but a correct linear cascade the surface
// semantics (first matching case wins) require regardless of strategy.
func (l *Lowerer) lowerMatch(st *ast.MatchStatement) []*diagnostics.Diagnostic {
	subject, diags := l.lowerExpr(st.Subject)
	if len(diags) > 0 {
		return diags
	}
	after := l.builder.NewBlock("match.after")
	for _, c := range st.Cases {
		testBlk := l.builder.NewBlock("match.test")
		bodyBlk := l.builder.NewBlock("match.body")
		nextBlk := l.builder.NewBlock("match.next")
		l.builder.Br(testBlk)
		l.builder.SetInsertPoint(testBlk)

		l.reg.Scopes().Push(registry.ScopeBlock)
		matched, d := l.lowerPatternTest(c.Pattern, subject)
		diags = append(diags, d...)
		if c.Guard != nil {
			guardVal, d := l.lowerExpr(c.Guard)
			diags = append(diags, d...)
			zero := l.builder.ConstInt(guardVal.Type.LLVM(), 0)
			truthy := l.builder.ICmp("ne", guardVal.IR.(irbuilder.Value), zero)
			matched = l.builder.ICmp("ne", l.builder.IMul(matched, truthy), l.builder.ConstInt(irtype.IntTy(1), 0))
		}
		l.builder.CondBr(matched, bodyBlk, nextBlk)

		l.builder.SetInsertPoint(bodyBlk)
		diags = append(diags, l.lowerBlock(c.Body)...)
		l.reg.Scopes().Pop()
		if !l.builder.CurrentBlockTerminated() {
			l.builder.Br(after)
		}

		l.builder.SetInsertPoint(nextBlk)
	}
	l.builder.Br(after)
	l.builder.SetInsertPoint(after)
	return diags
}

// lowerPatternTest returns an i1 match indicator, binding any pattern
// names into the current (already-pushed) block scope as a side effect.
func (l *Lowerer) lowerPatternTest(p ast.Pattern, subject valueref.Ref) (irbuilder.Value, []*diagnostics.Diagnostic) {
	truth := func(b bool) irbuilder.Value {
		v := int64(0)
		if b {
			v = 1
		}
		return l.builder.ConstInt(irtype.IntTy(1), v)
	}
	switch pat := p.(type) {
	case *ast.WildcardPattern:
		return truth(true), nil
	case *ast.BindPattern:
		l.reg.Scopes().Declare(pat.Name, subject)
		return truth(true), nil
	case *ast.LiteralPattern:
		lit, diags := l.lowerExpr(pat.Value)
		if len(diags) > 0 {
			return truth(false), diags
		}
		if isFloat(underlying(subject.Type)) {
			return l.builder.FCmp("oeq", subject.IR.(irbuilder.Value), lit.IR.(irbuilder.Value)), nil
		}
		return l.builder.ICmp("eq", subject.IR.(irbuilder.Value), lit.IR.(irbuilder.Value)), nil
	case *ast.OrPattern:
		var acc irbuilder.Value
		var diags []*diagnostics.Diagnostic
		for i, alt := range pat.Alts {
			v, d := l.lowerPatternTest(alt, subject)
			diags = append(diags, d...)
			if i == 0 {
				acc = v
			} else {
				summed := l.builder.IAdd(acc, v)
				acc = l.builder.ICmp("ne", summed, l.builder.ConstInt(irtype.IntTy(1), 0))
			}
		}
		return acc, diags
	case *ast.TuplePattern:
		var diags []*diagnostics.Diagnostic
		acc := truth(true)
		for i, elemPat := range pat.Elems {
			elemVal := valueref.Ref{Kind: valueref.RValue, IR: l.builder.ExtractValue(subject.IR.(irbuilder.Value), i)}
			v, d := l.lowerPatternTest(elemPat, elemVal)
			diags = append(diags, d...)
			prod := l.builder.IMul(acc, v)
			acc = l.builder.ICmp("ne", prod, l.builder.ConstInt(irtype.IntTy(1), 0))
		}
		return acc, diags
	case *ast.ConstructorPattern:
		et, ok := underlying(subject.Type).(*typelattice.EnumType)
		if !ok {
			return truth(false), []*diagnostics.Diagnostic{l.errf(p, diagnostics.KindTyping, "constructor pattern against non-enum type %s", subject.Type.String())}
		}
		variant, idx, ok := et.VariantByName(pat.Variant)
		if !ok {
			return truth(false), []*diagnostics.Diagnostic{l.errf(p, diagnostics.KindTyping, "enum %q has no variant %q", et.Name, pat.Variant)}
		}
		tag := l.builder.ExtractValue(subject.IR.(irbuilder.Value), 0)
		tagMatch := l.builder.ICmp("eq", tag, l.builder.ConstInt(et.Tag.LLVM(), variant.Tag))
		if pat.Payload == nil {
			return tagMatch, nil
		}
		payload := valueref.Ref{Kind: valueref.RValue, Type: variant.Payload, IR: l.builder.ExtractValue(subject.IR.(irbuilder.Value), 1)}
		payloadMatch, diags := l.lowerPatternTest(pat.Payload, payload)
		_ = idx
		prod := l.builder.IMul(tagMatch, payloadMatch)
		return l.builder.ICmp("ne", prod, l.builder.ConstInt(irtype.IntTy(1), 0)), diags
	default:
		return truth(false), []*diagnostics.Diagnostic{l.errf(p, diagnostics.KindTyping, "unsupported pattern form %T", p)}
	}
}

func (l *Lowerer) lowerWithEffect(st *ast.WithEffectStmt) []*diagnostics.Diagnostic {
	overrides := map[string]string{}
	for cap, expr := range st.Overrides {
		id, ok := expr.(*ast.Identifier)
		if !ok {
			return []*diagnostics.Diagnostic{l.errf(st, diagnostics.KindTyping, "effect override for %q must name a function directly", cap)}
		}
		overrides[cap] = id.Value
	}
	suffix := ""
	if st.Suffix != nil {
		if id, ok := st.Suffix.(*ast.Identifier); ok {
			suffix = id.Value
		} else if lit, ok := st.Suffix.(*ast.StringLiteral); ok {
			suffix = lit.Value
		}
	}
	l.fx.PushContext(overrides, suffix)
	defer l.fx.PopContext()
	return l.lowerBlock(st.Body)
}
