package irbuilder

import (
	"strings"
	"testing"

	"github.com/funvibe/pythoc-go/internal/abi"
	"github.com/funvibe/pythoc-go/internal/irtype"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	return New(NewLLVMBackend(), abi.SysVClassifier{}, "test_module", "x86_64-unknown-linux-gnu")
}

func TestModuleTextContainsFunction(t *testing.T) {
	b := newTestBuilder(t)
	fn := b.DeclareFunction("answer", nil, nil, false, false)
	entry := b.EntryBlock(fn, "entry")
	b.SetReturnAbiContext(fn, entry)
	v := b.ConstInt(irtype.IntTy(32), 42)
	b.Ret(&v)

	text := b.ModuleText()
	if !strings.Contains(text, "answer") {
		t.Fatalf("expected module text to mention function name, got:\n%s", text)
	}
}

func TestVerifyReportsMissingTerminator(t *testing.T) {
	b := newTestBuilder(t)
	fn := b.DeclareFunction("broken", nil, nil, false, false)
	entry := b.EntryBlock(fn, "entry")
	b.SetInsertPoint(entry)
	// deliberately leave the block without a terminator

	problems := b.Verify()
	if len(problems) == 0 {
		t.Fatalf("expected Verify to flag the unterminated block")
	}
}

func TestVerifyAcceptsWellFormedFunction(t *testing.T) {
	b := newTestBuilder(t)
	fn := b.DeclareFunction("fine", nil, nil, false, false)
	entry := b.EntryBlock(fn, "entry")
	b.SetReturnAbiContext(fn, entry)
	v := b.ConstInt(irtype.IntTy(32), 0)
	b.Ret(&v)

	if problems := b.Verify(); len(problems) != 0 {
		t.Fatalf("expected no problems, got %v", problems)
	}
}

func TestVerifyReportsBranchOutsideFunction(t *testing.T) {
	other := newTestBuilder(t)
	otherFn := other.DeclareFunction("other", nil, nil, false, false)
	foreignBlock := other.EntryBlock(otherFn, "entry")

	b := newTestBuilder(t)
	fn := b.DeclareFunction("jumper", nil, nil, false, false)
	entry := b.EntryBlock(fn, "entry")
	b.SetInsertPoint(entry)
	b.Br(foreignBlock)

	problems := b.Verify()
	if len(problems) == 0 {
		t.Fatalf("expected Verify to flag the cross-function branch")
	}
}
