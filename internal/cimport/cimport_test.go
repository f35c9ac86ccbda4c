package cimport

import (
	"strings"
	"testing"

	"github.com/funvibe/pythoc-go/internal/typelattice"
)

func TestRenderWrapperModuleIncludesEachDecl(t *testing.T) {
	decls := []ExternDecl{
		{Symbol: "puts", WrapperName: "puts", ReturnType: typelattice.IntType{Width: 32, Signed: true}},
		{Symbol: "getpid", WrapperName: "getpid", ReturnType: typelattice.IntType{Width: 32, Signed: true}},
	}
	out := renderWrapperModule("libc", decls)
	for _, d := range decls {
		if !strings.Contains(out, d.WrapperName) {
			t.Errorf("expected generated module to mention %q, got:\n%s", d.WrapperName, out)
		}
	}
	if !strings.Contains(out, `lib="libc"`) {
		t.Errorf("expected generated module to reference the lib name, got:\n%s", out)
	}
}

func TestRenderWrapperModuleEmptyDecls(t *testing.T) {
	out := renderWrapperModule("libm", nil)
	if !strings.Contains(out, "libm") {
		t.Errorf("expected header comment even with no decls, got:\n%s", out)
	}
}
