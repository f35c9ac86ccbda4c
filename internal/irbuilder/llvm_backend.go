package irbuilder

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/funvibe/pythoc-go/internal/irtype"
)

// LLVMBackend is the concrete Backend (spec §4.3) sitting behind Builder,
// grounded on the llir/llvm in-memory IR representation: it builds the
// same *ir.Module/*ir.Func/*ir.Block tree a hand-written llir program
// would, then renders it to textual IR for the driver's object-emission
// stage. The only backend-private state is the block currently being
// emitted into, since Backend's method set addresses every other object
// (module, function, block) explicitly through the `any` handles Builder
// threads back in.
type LLVMBackend struct {
	cur *ir.Block
}

func NewLLVMBackend() *LLVMBackend { return &LLVMBackend{} }

// llvmFunc pairs the llir function value with the parameter/return
// irtype.Type list Builder declared it with, since llir's types.Type
// carries no path back to this compiler's own type lattice.
type llvmFunc struct {
	fn         *ir.Func
	paramTypes []irtype.Type
	retType    irtype.Type
}

func (be *LLVMBackend) NewModule(name, targetTriple string) any {
	m := ir.NewModule()
	m.SourceFilename = name
	m.TargetTriple = targetTriple
	return m
}

func (be *LLVMBackend) NewFunction(module any, name string, params []irtype.Type, ret irtype.Type, varArg bool) any {
	m := module.(*ir.Module)
	llParams := make([]*ir.Param, len(params))
	for i, p := range params {
		llParams[i] = ir.NewParam(fmt.Sprintf("a%d", i), llvmType(p))
	}
	fn := m.NewFunc(name, llvmType(ret), llParams...)
	fn.Sig.Variadic = varArg
	return &llvmFunc{fn: fn, paramTypes: params, retType: ret}
}

func (be *LLVMBackend) NewBlock(fn any, name string) Block {
	f := fn.(*llvmFunc)
	b := f.fn.NewBlock(name)
	return Block{Handle: b, Name: name}
}

func (be *LLVMBackend) SetInsertPoint(b Block) { be.cur = b.Handle.(*ir.Block) }

func (be *LLVMBackend) FuncParam(fn any, i int) Value {
	f := fn.(*llvmFunc)
	return Value{Handle: f.fn.Params[i], Type: f.paramTypes[i]}
}

func (be *LLVMBackend) Alloca(t irtype.Type) Value {
	inst := be.cur.NewAlloca(llvmType(t))
	return Value{Handle: inst, Type: irtype.PointerTy(t)}
}

func (be *LLVMBackend) Load(ptr Value) Value {
	elemTy := *ptr.Type.Elem
	inst := be.cur.NewLoad(llvmType(elemTy), ptr.Handle.(value.Value))
	return Value{Handle: inst, Type: elemTy}
}

func (be *LLVMBackend) Store(val, ptr Value) {
	be.cur.NewStore(val.Handle.(value.Value), ptr.Handle.(value.Value))
}

func (be *LLVMBackend) BitCast(val Value, t irtype.Type) Value {
	inst := be.cur.NewBitCast(val.Handle.(value.Value), llvmType(t))
	return Value{Handle: inst, Type: t}
}

// navigateAggregate walks a chain of constant field/element indices
// starting from an already-dereferenced aggregate type, mirroring the
// step GEP itself performs at IR level (struct field select / array
// element select), so the resulting Value carries the right irtype.Type
// for further chained GEP/BitCast/Load without the lowerer ever touching
// an llir type.
func navigateAggregate(t irtype.Type, path []int) irtype.Type {
	cur := t
	for _, idx := range path {
		switch cur.Kind {
		case irtype.Struct:
			cur = cur.Fields[idx]
		case irtype.Array:
			cur = *cur.Elem
		default:
			panic(fmt.Sprintf("irbuilder: GEP index into non-aggregate type %s", cur.String()))
		}
	}
	return cur
}

func (be *LLVMBackend) GEP(ptr Value, indices []int) Value {
	elemTy := *ptr.Type.Elem
	llIndices := make([]value.Value, len(indices))
	for i, idx := range indices {
		llIndices[i] = constant.NewInt(types.I32, int64(idx))
	}
	inst := be.cur.NewGetElementPtr(llvmType(elemTy), ptr.Handle.(value.Value), llIndices...)
	resultTy := navigateAggregate(elemTy, indices[1:])
	return Value{Handle: inst, Type: irtype.PointerTy(resultTy)}
}

func (be *LLVMBackend) GEPIndexed(ptr Value, leading []int, index Value) Value {
	elemTy := *ptr.Type.Elem
	llIndices := make([]value.Value, 0, len(leading)+1)
	for _, idx := range leading {
		llIndices = append(llIndices, constant.NewInt(types.I32, int64(idx)))
	}
	llIndices = append(llIndices, index.Handle.(value.Value))
	inst := be.cur.NewGetElementPtr(llvmType(elemTy), ptr.Handle.(value.Value), llIndices...)
	arrTy := navigateAggregate(elemTy, leading[1:])
	return Value{Handle: inst, Type: irtype.PointerTy(*arrTy.Elem)}
}

func (be *LLVMBackend) IAdd(a, b Value) Value { return be.binInt(a, b, be.cur.NewAdd) }
func (be *LLVMBackend) ISub(a, b Value) Value { return be.binInt(a, b, be.cur.NewSub) }
func (be *LLVMBackend) IMul(a, b Value) Value { return be.binInt(a, b, be.cur.NewMul) }
func (be *LLVMBackend) SDiv(a, b Value) Value { return be.binInt(a, b, be.cur.NewSDiv) }
func (be *LLVMBackend) UDiv(a, b Value) Value { return be.binInt(a, b, be.cur.NewUDiv) }

func (be *LLVMBackend) binInt(a, b Value, op func(x, y value.Value) *ir.InstBinary) Value {
	inst := op(a.Handle.(value.Value), b.Handle.(value.Value))
	return Value{Handle: inst, Type: a.Type}
}

func (be *LLVMBackend) FAdd(a, b Value) Value { return be.binFloat(a, b, be.cur.NewFAdd) }
func (be *LLVMBackend) FSub(a, b Value) Value { return be.binFloat(a, b, be.cur.NewFSub) }
func (be *LLVMBackend) FMul(a, b Value) Value { return be.binFloat(a, b, be.cur.NewFMul) }
func (be *LLVMBackend) FDiv(a, b Value) Value { return be.binFloat(a, b, be.cur.NewFDiv) }

func (be *LLVMBackend) binFloat(a, b Value, op func(x, y value.Value) *ir.InstBinary) Value {
	inst := op(a.Handle.(value.Value), b.Handle.(value.Value))
	return Value{Handle: inst, Type: a.Type}
}

var icmpPreds = map[string]enum.IPred{
	"eq": enum.IPredEQ, "ne": enum.IPredNE,
	"slt": enum.IPredSLT, "sle": enum.IPredSLE, "sgt": enum.IPredSGT, "sge": enum.IPredSGE,
	"ult": enum.IPredULT, "ule": enum.IPredULE, "ugt": enum.IPredUGT, "uge": enum.IPredUGE,
}

var fcmpPreds = map[string]enum.FPred{
	"oeq": enum.FPredOEQ, "one": enum.FPredONE,
	"olt": enum.FPredOLT, "ole": enum.FPredOLE, "ogt": enum.FPredOGT, "oge": enum.FPredOGE,
}

func (be *LLVMBackend) ICmp(pred string, a, b Value) Value {
	p, ok := icmpPreds[pred]
	if !ok {
		panic("irbuilder: unknown icmp predicate " + pred)
	}
	inst := be.cur.NewICmp(p, a.Handle.(value.Value), b.Handle.(value.Value))
	return Value{Handle: inst, Type: irtype.IntTy(1)}
}

func (be *LLVMBackend) FCmp(pred string, a, b Value) Value {
	p, ok := fcmpPreds[pred]
	if !ok {
		panic("irbuilder: unknown fcmp predicate " + pred)
	}
	inst := be.cur.NewFCmp(p, a.Handle.(value.Value), b.Handle.(value.Value))
	return Value{Handle: inst, Type: irtype.IntTy(1)}
}

func (be *LLVMBackend) SIToFP(v Value, t irtype.Type) Value {
	inst := be.cur.NewSIToFP(v.Handle.(value.Value), llvmType(t))
	return Value{Handle: inst, Type: t}
}

func (be *LLVMBackend) UIToFP(v Value, t irtype.Type) Value {
	inst := be.cur.NewUIToFP(v.Handle.(value.Value), llvmType(t))
	return Value{Handle: inst, Type: t}
}

func (be *LLVMBackend) FPToSI(v Value, t irtype.Type) Value {
	inst := be.cur.NewFPToSI(v.Handle.(value.Value), llvmType(t))
	return Value{Handle: inst, Type: t}
}

func (be *LLVMBackend) Trunc(v Value, t irtype.Type) Value {
	inst := be.cur.NewTrunc(v.Handle.(value.Value), llvmType(t))
	return Value{Handle: inst, Type: t}
}

func (be *LLVMBackend) SExt(v Value, t irtype.Type) Value {
	inst := be.cur.NewSExt(v.Handle.(value.Value), llvmType(t))
	return Value{Handle: inst, Type: t}
}

func (be *LLVMBackend) ZExt(v Value, t irtype.Type) Value {
	inst := be.cur.NewZExt(v.Handle.(value.Value), llvmType(t))
	return Value{Handle: inst, Type: t}
}

func (be *LLVMBackend) Br(target Block) { be.cur.NewBr(target.Handle.(*ir.Block)) }

func (be *LLVMBackend) CondBr(cond Value, then, els Block) {
	be.cur.NewCondBr(cond.Handle.(value.Value), then.Handle.(*ir.Block), els.Handle.(*ir.Block))
}

func (be *LLVMBackend) RawRet(v *Value) {
	if v == nil {
		be.cur.NewRet(nil)
		return
	}
	be.cur.NewRet(v.Handle.(value.Value))
}

func (be *LLVMBackend) RawCall(fn any, args []Value) Value {
	f := fn.(*llvmFunc)
	llArgs := make([]value.Value, len(args))
	for i, a := range args {
		llArgs[i] = a.Handle.(value.Value)
	}
	inst := be.cur.NewCall(f.fn, llArgs...)
	return Value{Handle: inst, Type: f.retType}
}

func (be *LLVMBackend) InsertValue(agg, elem Value, index int) Value {
	inst := be.cur.NewInsertValue(agg.Handle.(value.Value), elem.Handle.(value.Value), uint64(index))
	return Value{Handle: inst, Type: agg.Type}
}

func (be *LLVMBackend) ExtractValue(agg Value, index int) Value {
	resultTy := navigateAggregate(agg.Type, []int{index})
	inst := be.cur.NewExtractValue(agg.Handle.(value.Value), uint64(index))
	return Value{Handle: inst, Type: resultTy}
}

func (be *LLVMBackend) ConstInt(t irtype.Type, v int64) Value {
	it, ok := llvmType(t).(*types.IntType)
	if !ok && v == 0 {
		return Value{Handle: constant.NewZeroInitializer(llvmType(t)), Type: t}
	}
	return Value{Handle: constant.NewInt(it, v), Type: t}
}

func (be *LLVMBackend) ConstFloat(t irtype.Type, v float64) Value {
	ft := llvmType(t).(*types.FloatType)
	return Value{Handle: constant.NewFloat(ft, v), Type: t}
}

// llvmType translates this compiler's own LLVM-shaped vocabulary
// (irtype.Type, C1/C4's lingua franca) into the concrete llir/llvm types
// the backend actually emits.
func llvmType(t irtype.Type) types.Type {
	switch t.Kind {
	case irtype.Void:
		return types.Void
	case irtype.Int:
		return types.NewInt(uint64(t.Bits))
	case irtype.Float:
		switch t.FloatKw {
		case "half":
			return types.Half
		case "float":
			return types.Float
		case "double":
			return types.Double
		case "fp128":
			return types.FP128
		default:
			return types.Double
		}
	case irtype.Pointer:
		return types.NewPointer(llvmType(*t.Elem))
	case irtype.Array:
		return types.NewArray(uint64(t.Len), llvmType(*t.Elem))
	case irtype.Struct:
		st := types.NewStruct()
		for _, f := range t.Fields {
			st.Fields = append(st.Fields, llvmType(f))
		}
		st.Packed = t.Packed
		return st
	case irtype.Func:
		params := make([]types.Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = llvmType(p)
		}
		ft := types.NewFunc(llvmType(*t.Ret), params...)
		ft.Variadic = t.VarArg
		return ft
	}
	panic("irbuilder: unhandled irtype.Kind")
}

// TextEmitter is implemented by a backend able to render its finished
// module as textual IR, for the driver's emit-object stage (spec §4.9):
// Builder stays backend-agnostic for every other operation, but producing
// the .ll text to hand to the system's llc/clang has no abstract
// equivalent worth inventing for a single backend.
type TextEmitter interface {
	ModuleText(module any) string
}

func (be *LLVMBackend) ModuleText(module any) string {
	return module.(*ir.Module).String()
}

// Verifier is implemented by a backend able to check its own structural
// soundness before the module is handed to the system toolchain (spec
// §4.9 "verify IR"). llir/llvm builds the instruction list eagerly but
// never checks it, so an unterminated block (a lowering bug leaving a
// path with no br/ret) would otherwise only surface as an opaque parse
// error out of the external compiler much later.
type Verifier interface {
	Verify(module any) []string
}

// Verify walks every function and block, flagging the two defects a
// bug in C7/C8 could actually produce: a block with no terminator, and
// a terminator whose target block belongs to a different function.
func (be *LLVMBackend) Verify(module any) []string {
	m := module.(*ir.Module)
	var problems []string
	for _, fn := range m.Funcs {
		blocks := make(map[*ir.Block]bool, len(fn.Blocks))
		for _, b := range fn.Blocks {
			blocks[b] = true
		}
		for _, b := range fn.Blocks {
			if b.Term == nil {
				problems = append(problems, fmt.Sprintf("function %s: block %%%s has no terminator", fn.Name(), b.Name()))
				continue
			}
			for _, target := range b.Term.Succs() {
				if !blocks[target] {
					problems = append(problems, fmt.Sprintf("function %s: block %%%s branches to %%%s outside the function", fn.Name(), b.Name(), target.Name()))
				}
			}
		}
	}
	return problems
}
