// Package pipeline orchestrates the driver (C12) as a sequence of
// Processor stages sharing one PipelineContext, the same continue-on-error
// shape the teacher uses for its own compile/analyze/evaluate stages so
// every stage's diagnostics are collected rather than aborting at the
// first failure.
package pipeline

import (
	"github.com/funvibe/pythoc-go/internal/ast"
	"github.com/funvibe/pythoc-go/internal/diagnostics"
	"github.com/funvibe/pythoc-go/internal/registry"
)

// Processor is one stage of the compilation pipeline.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// PipelineContext is threaded through every stage: collect, lower pass 1,
// lower pass 2, verify, optimize, emit object, link (spec §4.9/§5).
type PipelineContext struct {
	FilePath string
	Source   string

	TokenStream any // []token.Token, left untyped here to avoid a lexer import cycle
	AstRoot     *ast.Program

	Reg *registry.Registry

	// Module is the opaque IR module handle produced by C4's backend.
	Module any
	// TargetTriple selects the ABI classifier and backend code generator.
	TargetTriple string

	ObjectPath     string
	ExecutablePath string

	Errors []*diagnostics.Diagnostic
	// Halt stops the pipeline after the current stage even though Run
	// otherwise continues on error, for stages after which continuing is
	// meaningless (e.g. a parse that produced no AST at all).
	Halt bool
}

func (c *PipelineContext) AddError(d *diagnostics.Diagnostic) {
	c.Errors = append(c.Errors, d)
}

func (c *PipelineContext) HasErrors() bool { return len(c.Errors) > 0 }

// Pipeline is a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes every stage in order, continuing after a stage that adds
// diagnostics so later stages can still contribute their own (spec: the
// driver reports every collected diagnostic, not just the first).
func (p *Pipeline) Run(initial *PipelineContext) *PipelineContext {
	ctx := initial
	for _, proc := range p.processors {
		ctx = proc.Process(ctx)
		if ctx.Halt {
			break
		}
	}
	return ctx
}
