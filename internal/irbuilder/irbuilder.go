// Package irbuilder implements C4: a target-agnostic IR-emission
// interface that wraps an opaque, in-memory instruction representation.
// Builder is written against the Backend interface rather than a concrete
// IR library; the package's one Backend, LLVMBackend (llvm_backend.go),
// builds llir/llvm modules, and the lowerer (C7/C8) calls Builder's
// methods. Grounded on the teacher's Backend
// abstraction (internal/backend): one interface, selected implementation,
// frontend code never reaching past it.
package irbuilder

import (
	"fmt"

	"github.com/funvibe/pythoc-go/internal/abi"
	"github.com/funvibe/pythoc-go/internal/irtype"
	"github.com/funvibe/pythoc-go/internal/typelattice"
)

// Value is an opaque handle to one emitted SSA value. The concrete backend
// fills in Handle; everything else here is backend-independent bookkeeping
// the builder needs for ABI packing/unpacking.
type Value struct {
	Handle any // backend-specific (e.g. an *llir.Value, or a textual register name)
	Type   irtype.Type
}

// Block is an opaque handle to one basic block.
type Block struct {
	Handle any
	Name   string
}

// Backend is the minimum an in-memory or textual IR emitter must provide.
// Builder is written entirely against this interface so swapping backends
// never touches C7/C8/C9.
type Backend interface {
	NewModule(name, targetTriple string) any
	NewFunction(module any, name string, params []irtype.Type, ret irtype.Type, varArg bool) any
	NewBlock(fn any, name string) Block
	SetInsertPoint(b Block)

	FuncParam(fn any, i int) Value
	Alloca(t irtype.Type) Value
	Load(ptr Value) Value
	Store(val, ptr Value)
	BitCast(val Value, t irtype.Type) Value
	GEP(ptr Value, indices []int) Value
	// GEPIndexed is GEP with a runtime-computed trailing index, for array
	// element access where the index is not known until the value is
	// lowered (spec §4.4 subscript).
	GEPIndexed(ptr Value, leading []int, index Value) Value

	IAdd(a, b Value) Value
	ISub(a, b Value) Value
	IMul(a, b Value) Value
	SDiv(a, b Value) Value
	UDiv(a, b Value) Value
	FAdd(a, b Value) Value
	FSub(a, b Value) Value
	FMul(a, b Value) Value
	FDiv(a, b Value) Value

	ICmp(pred string, a, b Value) Value
	FCmp(pred string, a, b Value) Value
	SIToFP(v Value, t irtype.Type) Value
	UIToFP(v Value, t irtype.Type) Value
	FPToSI(v Value, t irtype.Type) Value
	Trunc(v Value, t irtype.Type) Value
	SExt(v Value, t irtype.Type) Value
	ZExt(v Value, t irtype.Type) Value

	Br(target Block)
	CondBr(cond Value, then, els Block)
	RawRet(v *Value)
	RawCall(fn any, args []Value) Value

	InsertValue(agg Value, elem Value, index int) Value
	ExtractValue(agg Value, index int) Value
	ConstInt(t irtype.Type, v int64) Value
	ConstFloat(t irtype.Type, v float64) Value
}

// FuncWrapper hides ABI-inserted parameters (an sret pointer, or a split
// coercion register) behind the user-visible argument list the frontend
// asked for (spec §4.3).
type FuncWrapper struct {
	Handle      any
	Name        string
	ParamTypes  []typelattice.Type
	ReturnType  typelattice.Type
	ApplyCABI   bool
	sretArg     *Value // non-nil when the return is Indirect
	userParams  []abi.Classification
	rawParamIdx []int // index into the raw (ABI-expanded) param list for each user param
}

func (w *FuncWrapper) UserArgCount() int { return len(w.userParams) }

// GetUserArg returns the raw (possibly coerced/indirect) value of user
// parameter i, with no unpacking performed.
func (w *FuncWrapper) GetUserArg(b *Builder, i int) Value {
	return b.backend.FuncParam(w.Handle, w.rawParamIdx[i])
}

// GetUserArgUnpacked returns parameter i converted back to its original
// (un-coerced) type, generating an alloca+bitcast+load for Coerce
// parameters or a plain load for Indirect ones (spec §4.3).
func (w *FuncWrapper) GetUserArgUnpacked(b *Builder, i int) Value {
	raw := w.GetUserArg(b, i)
	class := w.userParams[i]
	userType := w.ParamTypes[i]
	switch class.Class {
	case abi.Direct, abi.Ignore:
		return raw
	case abi.Indirect:
		return b.backend.Load(raw)
	case abi.Coerce:
		slot := b.backend.Alloca(class.CoerceType.LLVM())
		b.backend.Store(raw, slot)
		typed := b.backend.BitCast(slot, irtype.PointerTy(userType.LLVM()))
		return b.backend.Load(typed)
	}
	return raw
}

// Builder is the target-agnostic emission façade the lowerer programs
// against (spec §4.3).
type Builder struct {
	backend    Backend
	classifier abi.Classifier
	module     any

	curFn     *FuncWrapper
	curBlock  Block
	loopStack []loopCtx

	// terminated tracks, by block handle, which blocks already ended in a
	// br/condbr/ret: spec §4.5's "a terminated block is never appended to
	// again" invariant, enforced here rather than left to each lowering
	// call site to remember on its own.
	terminated map[any]bool
}

// markTerminated records that the current insert-point block now ends in
// a terminator, so a later joining branch (an if/while/for/match body
// rejoining its surrounding control flow) knows to skip itself instead of
// clobbering a break/continue/return already emitted into the same block.
func (b *Builder) markTerminated() {
	if b.terminated == nil {
		b.terminated = make(map[any]bool)
	}
	b.terminated[b.curBlock.Handle] = true
}

// CurrentBlockTerminated reports whether the block at the current insert
// point already ends in a terminator.
func (b *Builder) CurrentBlockTerminated() bool {
	return b.terminated[b.curBlock.Handle]
}

type loopCtx struct {
	header, exit Block
	brokeFlag    *Value // i1 slot set on any break, used for for...else (spec §4.5)
}

func New(backend Backend, classifier abi.Classifier, moduleName, targetTriple string) *Builder {
	return &Builder{
		backend:    backend,
		classifier: classifier,
		module:     backend.NewModule(moduleName, targetTriple),
	}
}

// DeclareFunction installs a function in the module and returns a wrapper
// that hides any ABI-inserted parameters (spec §4.3).
func (b *Builder) DeclareFunction(name string, paramTypes []typelattice.Type, returnType typelattice.Type, varArg, applyCABI bool) *FuncWrapper {
	var rawParams []irtype.Type
	var rawIdx []int
	var classes []abi.Classification
	rawRet := irtype.VoidTy()
	sretUsed := false

	if applyCABI && returnType != nil {
		rc := b.classifier.ClassifyReturn(returnType)
		if rc.Class == abi.Indirect {
			rawParams = append(rawParams, irtype.PointerTy(returnType.LLVM()))
			sretUsed = true
		} else if rc.Class == abi.Coerce {
			rawRet = rc.CoerceType.LLVM()
		} else if rc.Class != abi.Ignore {
			rawRet = returnType.LLVM()
		}
	} else if returnType != nil {
		rawRet = returnType.LLVM()
	}

	for _, pt := range paramTypes {
		var c abi.Classification
		if applyCABI {
			c = b.classifier.ClassifyParam(pt)
		} else {
			c = abi.Classification{Class: abi.Direct}
		}
		classes = append(classes, c)
		switch c.Class {
		case abi.Ignore:
			// contributes no raw parameter
		case abi.Indirect:
			rawIdx = append(rawIdx, len(rawParams))
			rawParams = append(rawParams, irtype.PointerTy(pt.LLVM()))
		case abi.Coerce:
			rawIdx = append(rawIdx, len(rawParams))
			rawParams = append(rawParams, c.CoerceType.LLVM())
		default:
			rawIdx = append(rawIdx, len(rawParams))
			rawParams = append(rawParams, pt.LLVM())
		}
	}

	fn := b.backend.NewFunction(b.module, name, rawParams, rawRet, varArg)
	w := &FuncWrapper{
		Handle:      fn,
		Name:        name,
		ParamTypes:  paramTypes,
		ReturnType:  returnType,
		ApplyCABI:   applyCABI,
		userParams:  classes,
		rawParamIdx: rawIdx,
	}
	if sretUsed {
		sret := b.backend.FuncParam(fn, 0)
		w.sretArg = &sret
	}
	return w
}

// EntryBlock creates fn's first block. Needed before SetReturnAbiContext,
// since NewBlock (the general block-creation path used for every block
// after the first) addresses the current function through the context
// SetReturnAbiContext itself establishes.
func (b *Builder) EntryBlock(fn *FuncWrapper, name string) Block {
	return b.backend.NewBlock(fn.Handle, name)
}

// SetReturnAbiContext marks fn as the function currently being emitted
// into, so Ret knows whether to sret/coerce (spec §4.3).
func (b *Builder) SetReturnAbiContext(fn *FuncWrapper, entry Block) {
	b.curFn = fn
	b.curBlock = entry
	b.backend.SetInsertPoint(entry)
}

func (b *Builder) ClearReturnAbiContext() { b.curFn = nil }

// Ret emits the function's return, applying sret-store or coercion
// transparently (spec §4.3).
func (b *Builder) Ret(value *Value) {
	defer b.markTerminated()
	fn := b.curFn
	if fn == nil {
		panic("irbuilder: Ret called with no active return ABI context")
	}
	if value == nil || fn.ReturnType == nil {
		b.backend.RawRet(nil)
		return
	}
	if !fn.ApplyCABI {
		b.backend.RawRet(value)
		return
	}
	rc := b.classifier.ClassifyReturn(fn.ReturnType)
	switch rc.Class {
	case abi.Ignore:
		b.backend.RawRet(nil)
	case abi.Indirect:
		b.backend.Store(*value, *fn.sretArg)
		b.backend.RawRet(nil)
	case abi.Coerce:
		slot := b.backend.Alloca(fn.ReturnType.LLVM())
		b.backend.Store(*value, slot)
		typed := b.backend.BitCast(slot, irtype.PointerTy(rc.CoerceType.LLVM()))
		loaded := b.backend.Load(typed)
		b.backend.RawRet(&loaded)
	default:
		b.backend.RawRet(value)
	}
}

// Call packs arguments and unpacks the result according to the ABI
// classifier, so the lowerer always sees pre-coercion types on both sides
// (spec §4.3).
func (b *Builder) Call(fn *FuncWrapper, args []Value, applyCABI bool) *Value {
	raw := make([]Value, 0, len(args)+1)
	var sretSlot *Value

	if applyCABI && fn.ReturnType != nil {
		rc := b.classifier.ClassifyReturn(fn.ReturnType)
		if rc.Class == abi.Indirect {
			slot := b.backend.Alloca(fn.ReturnType.LLVM())
			sretSlot = &slot
			raw = append(raw, slot)
		}
	}

	for i, a := range args {
		if !applyCABI || i >= len(fn.ParamTypes) {
			raw = append(raw, a)
			continue
		}
		c := b.classifier.ClassifyParam(fn.ParamTypes[i])
		switch c.Class {
		case abi.Ignore:
			// drop
		case abi.Coerce:
			slot := b.backend.Alloca(fn.ParamTypes[i].LLVM())
			b.backend.Store(a, slot)
			typed := b.backend.BitCast(slot, irtype.PointerTy(c.CoerceType.LLVM()))
			raw = append(raw, b.backend.Load(typed))
		case abi.Indirect:
			slot := b.backend.Alloca(fn.ParamTypes[i].LLVM())
			b.backend.Store(a, slot)
			raw = append(raw, slot)
		default:
			raw = append(raw, a)
		}
	}

	result := b.backend.RawCall(fn.Handle, raw)

	if sretSlot != nil {
		loaded := b.backend.Load(*sretSlot)
		return &loaded
	}
	if applyCABI && fn.ReturnType != nil {
		rc := b.classifier.ClassifyReturn(fn.ReturnType)
		if rc.Class == abi.Coerce {
			slot := b.backend.Alloca(rc.CoerceType.LLVM())
			b.backend.Store(result, slot)
			typed := b.backend.BitCast(slot, irtype.PointerTy(fn.ReturnType.LLVM()))
			loaded := b.backend.Load(typed)
			return &loaded
		}
		if rc.Class == abi.Ignore {
			return nil
		}
	}
	return &result
}

// --- pass-through primitive operations (spec §4.3 "primitive ops") ---

func (b *Builder) NewBlock(name string) Block { return b.backend.NewBlock(b.curFn.Handle, name) }
func (b *Builder) SetInsertPoint(blk Block)    { b.curBlock = blk; b.backend.SetInsertPoint(blk) }
func (b *Builder) CurrentBlock() Block         { return b.curBlock }

func (b *Builder) Alloca(t irtype.Type) Value       { return b.backend.Alloca(t) }
func (b *Builder) Load(ptr Value) Value             { return b.backend.Load(ptr) }
func (b *Builder) Store(val, ptr Value)             { b.backend.Store(val, ptr) }
func (b *Builder) BitCast(v Value, t irtype.Type) Value { return b.backend.BitCast(v, t) }
func (b *Builder) GEP(ptr Value, idx []int) Value   { return b.backend.GEP(ptr, idx) }
func (b *Builder) GEPIndexed(ptr Value, leading []int, index Value) Value {
	return b.backend.GEPIndexed(ptr, leading, index)
}

func (b *Builder) IAdd(a, c Value) Value { return b.backend.IAdd(a, c) }
func (b *Builder) ISub(a, c Value) Value { return b.backend.ISub(a, c) }
func (b *Builder) IMul(a, c Value) Value { return b.backend.IMul(a, c) }
func (b *Builder) SDiv(a, c Value) Value { return b.backend.SDiv(a, c) }
func (b *Builder) UDiv(a, c Value) Value { return b.backend.UDiv(a, c) }
func (b *Builder) FAdd(a, c Value) Value { return b.backend.FAdd(a, c) }
func (b *Builder) FSub(a, c Value) Value { return b.backend.FSub(a, c) }
func (b *Builder) FMul(a, c Value) Value { return b.backend.FMul(a, c) }
func (b *Builder) FDiv(a, c Value) Value { return b.backend.FDiv(a, c) }

func (b *Builder) ICmp(pred string, a, c Value) Value { return b.backend.ICmp(pred, a, c) }
func (b *Builder) FCmp(pred string, a, c Value) Value { return b.backend.FCmp(pred, a, c) }
func (b *Builder) SIToFP(v Value, t irtype.Type) Value { return b.backend.SIToFP(v, t) }
func (b *Builder) UIToFP(v Value, t irtype.Type) Value { return b.backend.UIToFP(v, t) }
func (b *Builder) FPToSI(v Value, t irtype.Type) Value { return b.backend.FPToSI(v, t) }
func (b *Builder) Trunc(v Value, t irtype.Type) Value  { return b.backend.Trunc(v, t) }
func (b *Builder) SExt(v Value, t irtype.Type) Value   { return b.backend.SExt(v, t) }
func (b *Builder) ZExt(v Value, t irtype.Type) Value   { return b.backend.ZExt(v, t) }

func (b *Builder) Br(target Block) {
	b.backend.Br(target)
	b.markTerminated()
}
func (b *Builder) CondBr(cond Value, then, els Block) {
	b.backend.CondBr(cond, then, els)
	b.markTerminated()
}

func (b *Builder) InsertValue(agg, elem Value, index int) Value {
	return b.backend.InsertValue(agg, elem, index)
}
func (b *Builder) ExtractValue(agg Value, index int) Value { return b.backend.ExtractValue(agg, index) }
func (b *Builder) ConstInt(t irtype.Type, v int64) Value     { return b.backend.ConstInt(t, v) }
func (b *Builder) ConstFloat(t irtype.Type, v float64) Value { return b.backend.ConstFloat(t, v) }

// ModuleText renders the finished module as textual IR, for a backend
// that implements TextEmitter (spec §4.9 emit-object stage). Panics if
// the configured backend has no text form — a driver asking for one
// picked the wrong backend for its target.
func (b *Builder) ModuleText() string {
	te, ok := b.backend.(TextEmitter)
	if !ok {
		panic("irbuilder: backend does not support ModuleText")
	}
	return te.ModuleText(b.module)
}

// Verify checks the finished module's structural soundness, for a backend
// that implements Verifier (spec §4.9 "verify IR" stage). A backend with
// nothing to check (e.g. a trivial textual emitter) simply doesn't
// implement Verifier, and Verify reports no problems.
func (b *Builder) Verify() []string {
	v, ok := b.backend.(Verifier)
	if !ok {
		return nil
	}
	return v.Verify(b.module)
}

// --- loop stack (spec §4.5: "a stack of (loop_header, loop_exit) pairs") ---

func (b *Builder) PushLoop(header, exit Block, brokeFlag *Value) {
	b.loopStack = append(b.loopStack, loopCtx{header: header, exit: exit, brokeFlag: brokeFlag})
}

func (b *Builder) PopLoop() {
	if len(b.loopStack) == 0 {
		panic("irbuilder: PopLoop with empty loop stack")
	}
	b.loopStack = b.loopStack[:len(b.loopStack)-1]
}

func (b *Builder) CurrentLoop() (header, exit Block, brokeFlag *Value, ok bool) {
	if len(b.loopStack) == 0 {
		return Block{}, Block{}, nil, false
	}
	top := b.loopStack[len(b.loopStack)-1]
	return top.header, top.exit, top.brokeFlag, true
}

// Break jumps to the current loop's exit block, setting its broke flag if
// present (for `for...else`, spec §4.5).
func (b *Builder) Break() error {
	header, exit, flag, ok := b.CurrentLoop()
	_ = header
	if !ok {
		return fmt.Errorf("irbuilder: break outside any loop")
	}
	if flag != nil {
		b.backend.Store(b.backend.ConstInt(irtype.IntTy(1), 1), *flag)
	}
	b.backend.Br(exit)
	b.markTerminated()
	return nil
}

// Continue jumps to the current loop's header block.
func (b *Builder) Continue() error {
	header, _, _, ok := b.CurrentLoop()
	if !ok {
		return fmt.Errorf("irbuilder: continue outside any loop")
	}
	b.backend.Br(header)
	b.markTerminated()
	return nil
}
