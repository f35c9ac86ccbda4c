// Package pythoc is the public embedding API for the compiler: a host
// Go program (or the thin cmd/pythoc CLI) calls Compile/CompileToExecutable
// directly, while a source file consisting of nothing but @compile
// definitions relies on the atexit-style hook registered by RegisterAtExit
// to produce its executable without ever calling either itself (spec
// §6 "the driver is invoked implicitly on atexit; an explicit
// compile_to_executable() entry runs the same pipeline eagerly").
//
// Grounded on the teacher's pkg/embed.VM as the shape of "public package
// wrapping the internal pipeline for host programs," generalized from a
// scripting VM's Bind/Eval surface to an AOT compiler's Compile surface.
package pythoc

import (
	"fmt"
	"os"

	"github.com/funvibe/pythoc-go/internal/diagnostics"
	"github.com/funvibe/pythoc-go/internal/driver"
	"github.com/funvibe/pythoc-go/internal/pipeline"
)

// Options mirrors driver.Options for callers that never need to reach
// into internal/driver directly.
type Options = driver.Options

// Result is what a caller gets back from a successful Compile: the
// produced object and/or executable paths, plus every diagnostic the
// pipeline recorded (non-fatal warnings have no representation yet, so
// today a non-empty Diagnostics always means the build failed).
type Result struct {
	ObjectPath     string
	ExecutablePath string
	Diagnostics    []*diagnostics.Diagnostic
}

func newResult(ctx *pipeline.PipelineContext) Result {
	return Result{
		ObjectPath:     ctx.ObjectPath,
		ExecutablePath: ctx.ExecutablePath,
		Diagnostics:    ctx.Errors,
	}
}

// Compile runs the full pipeline (parse through link, spec §4.9) over
// the named source file, reading it from disk if source is empty.
func Compile(filePath, source string, opts Options) (Result, error) {
	ctx, err := driver.Compile(filePath, source, opts)
	if err != nil {
		return Result{}, err
	}
	return newResult(ctx), nil
}

// CompileToExecutable is Compile with OutputPath defaulted from the
// source file's own name when unset — the explicit, eager counterpart
// to the atexit hook (spec §6).
func CompileToExecutable(filePath string, opts Options) (Result, error) {
	return Compile(filePath, "", opts)
}

var atExitFile string

// RegisterAtExit arms the atexit-style hook: a program built from a
// source file containing only @compile definitions has no explicit
// call site to trigger compilation, so main (generated or hand-written)
// calls this once, and RunAtExit — registered via os.Exit-adjacent
// defer in the caller's own main, since Go has no native atexit — runs
// the driver before the process actually exits.
//
// Callers that want eager, explicit compilation should call
// CompileToExecutable directly instead and skip this registration
// entirely.
func RegisterAtExit(filePath string) {
	atExitFile = filePath
}

// RunAtExit executes the registered compile, if any, and reports
// whether it ran. It must be invoked from a deferred call in the host
// program's own main so it still runs on a normal return; it does not
// itself call os.Exit except to propagate a compile failure's exit
// code, and it never lets a panic inside the pipeline escape as a Go
// stack trace — only the formatted diagnostic reaches the user (spec
// §4.9: "compilation failures during the atexit hook must emit only
// the formatted diagnostic, never the host-runtime traceback of the
// hook itself").
func RunAtExit() bool {
	if atExitFile == "" {
		return false
	}
	file := atExitFile
	atExitFile = ""

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "error[internal]: %v\n", r)
			os.Exit(1)
		}
	}()

	result, err := CompileToExecutable(file, Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error[external]: %v\n", err)
		os.Exit(1)
	}
	if d := diagnostics.First(result.Diagnostics); d != nil {
		fmt.Fprint(os.Stderr, diagnostics.NewFormatter(os.Stderr).Render(d))
		os.Exit(1)
	}
	return true
}
