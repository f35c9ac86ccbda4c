package pythoc

import (
	"testing"

	"github.com/funvibe/pythoc-go/internal/diagnostics"
	"github.com/funvibe/pythoc-go/internal/pipeline"
	"github.com/funvibe/pythoc-go/internal/token"
)

func TestNewResultCarriesPipelineFields(t *testing.T) {
	d := diagnostics.New(diagnostics.KindTyping, token.Token{}, "bad type")
	ctx := &pipeline.PipelineContext{
		ObjectPath:     "build/out.o",
		ExecutablePath: "build/out",
		Errors:         []*diagnostics.Diagnostic{d},
	}
	result := newResult(ctx)
	if result.ObjectPath != "build/out.o" {
		t.Errorf("expected ObjectPath to carry over, got %q", result.ObjectPath)
	}
	if result.ExecutablePath != "build/out" {
		t.Errorf("expected ExecutablePath to carry over, got %q", result.ExecutablePath)
	}
	if len(result.Diagnostics) != 1 {
		t.Fatalf("expected one diagnostic, got %d", len(result.Diagnostics))
	}
}

func TestRunAtExitNoOpWhenNothingRegistered(t *testing.T) {
	atExitFile = ""
	if RunAtExit() {
		t.Fatalf("expected RunAtExit to report false when nothing was registered")
	}
}

func TestRegisterAtExitSetsPendingFile(t *testing.T) {
	defer func() { atExitFile = "" }()
	RegisterAtExit("/nonexistent/does-not-exist.pyc")
	if atExitFile == "" {
		t.Fatalf("expected RegisterAtExit to set the pending file")
	}
}
