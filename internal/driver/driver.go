// Package driver implements C12: the end-to-end compile pipeline —
// parse, collect, install aggregates/externs, two-pass signature/body
// lowering, object emission (cached by IR content hash), and linking —
// wired together as a sequence of pipeline.Processor stages sharing one
// unit of mutable compiler state. Grounded on the teacher's own top-level
// driver (cmd/funxy and internal/pipeline's intended use), which threads
// a single PipelineContext through lex/parse/collect/evaluate stages the
// same continue-on-error way.
package driver

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/funvibe/pythoc-go/internal/abi"
	"github.com/funvibe/pythoc-go/internal/ast"
	"github.com/funvibe/pythoc-go/internal/cimport"
	"github.com/funvibe/pythoc-go/internal/collector"
	"github.com/funvibe/pythoc-go/internal/config"
	"github.com/funvibe/pythoc-go/internal/diagnostics"
	"github.com/funvibe/pythoc-go/internal/effects"
	"github.com/funvibe/pythoc-go/internal/funcmgr"
	"github.com/funvibe/pythoc-go/internal/irbuilder"
	"github.com/funvibe/pythoc-go/internal/lower"
	"github.com/funvibe/pythoc-go/internal/objcache"
	"github.com/funvibe/pythoc-go/internal/parser"
	"github.com/funvibe/pythoc-go/internal/pipeline"
	"github.com/funvibe/pythoc-go/internal/registry"
	"github.com/funvibe/pythoc-go/internal/token"
	"github.com/funvibe/pythoc-go/internal/typelattice"
	"github.com/funvibe/pythoc-go/internal/typeresolve"
	"github.com/funvibe/pythoc-go/internal/utils"
)

// Options configures one compilation run (spec §6 environment / CLI
// surface, §4.9 pipeline stages).
type Options struct {
	TargetTriple   string // e.g. "x86_64-unknown-linux-gnu"
	OutputPath     string // final executable path; "" derives it from FilePath
	BuildDir       string // scratch directory for .ll/.o/cache; defaults to "<dir>/.pythoc-build"
	KeepIntermediates bool
	Project        *config.ProjectConfig
}

// unit is the mutable state threaded across every stage of one
// compilation: the registry (C2), ABI classifier (C3), IR builder (C4),
// effect resolver (C10), cimport importer (C11), object cache, and the
// function manager/lowerer pair driving C7/C8/C9 together.
type unit struct {
	opts Options

	reg      *registry.Registry
	resolver *typeresolve.Resolver
	classifier abi.Classifier
	builder  *irbuilder.Builder
	fx       *effects.Resolver
	cache    *objcache.Cache
	importer *cimport.Importer
	funcs    *funcmgr.Manager
	lowerer  *lower.Lowerer

	funcDefs []*collector.Definition
}

// Compile runs the full pipeline over one source file and returns the
// final context (spec §4.9). A nil error from Compile does not imply a
// successful build — check ctx.HasErrors() and ctx.ExecutablePath.
func Compile(filePath, source string, opts Options) (*pipeline.PipelineContext, error) {
	if opts.TargetTriple == "" {
		opts.TargetTriple = config.DefaultTargetTriple()
	}
	if opts.BuildDir == "" {
		opts.BuildDir = filepath.Join(filepath.Dir(filePath), ".pythoc-build")
	}
	if opts.Project == nil {
		proj, err := config.LoadProjectConfig(filepath.Dir(filePath))
		if err != nil {
			return nil, fmt.Errorf("driver: loading project config: %w", err)
		}
		opts.Project = proj
	}
	if err := os.MkdirAll(opts.BuildDir, 0o755); err != nil {
		return nil, fmt.Errorf("driver: creating build dir: %w", err)
	}

	cache, err := objcache.Open(opts.BuildDir)
	if err != nil {
		return nil, fmt.Errorf("driver: opening object cache: %w", err)
	}
	defer cache.Close()

	reg := registry.New()
	resolver := typeresolve.New(reg)
	classifier := abi.ForTriple(opts.TargetTriple)
	backend := irbuilder.NewLLVMBackend()
	builder := irbuilder.New(backend, classifier, utils.ExtractModuleName(filePath), opts.TargetTriple)
	fx := effects.New()
	importer := cimport.New(reg, cache, opts.Project.CC)

	u := &unit{
		opts: opts, reg: reg, resolver: resolver, classifier: classifier,
		builder: builder, fx: fx, cache: cache, importer: importer,
	}
	u.lowerer = lower.New(reg, resolver, builder, nil, fx, filePath)
	u.funcs = funcmgr.New(reg, resolver, builder, u.lowerer)
	// lower.Lowerer and funcmgr.Manager need each other (the lowerer calls
	// back into the manager for recursive-call wrappers and generator
	// inlining, the manager calls into the lowerer as its BodyEmitter);
	// funcmgr.New takes the lowerer as its BodyEmitter, so the lowerer's
	// own Manager handle is wired in second via SetFuncs.
	u.lowerer.SetFuncs(u.funcs)

	pl := pipeline.New(
		&parseStage{},
		&collectStage{u: u},
		&cimportStage{u: u},
		&signatureStage{u: u},
		&lowerStage{u: u},
		&verifyStage{u: u},
		&emitObjectStage{u: u},
		&linkStage{u: u},
	)

	ctx := &pipeline.PipelineContext{
		FilePath:     filePath,
		Source:       source,
		Reg:          reg,
		TargetTriple: opts.TargetTriple,
	}
	return pl.Run(ctx), nil
}

// --- parse ---

type parseStage struct{}

func (s *parseStage) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	src := ctx.Source
	if src == "" {
		data, err := os.ReadFile(ctx.FilePath)
		if err != nil {
			ctx.AddError(diagnostics.New(diagnostics.KindExternal, token.Token{}, "reading %s: %v", ctx.FilePath, err))
			ctx.Halt = true
			return ctx
		}
		src = string(data)
		ctx.Source = src
	}
	p := parser.New(ctx.FilePath, src)
	ctx.AstRoot = p.ParseProgram()
	ctx.Errors = append(ctx.Errors, p.Diagnostics()...)
	if ctx.AstRoot == nil || len(ctx.AstRoot.Statements) == 0 && len(p.Diagnostics()) > 0 {
		ctx.Halt = true
	}
	return ctx
}

// --- collect: gather decorated definitions, install aggregates/enums ---

type collectStage struct{ u *unit }

func (s *collectStage) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	c := collector.New()
	c.Collect(ctx.AstRoot)
	ctx.Errors = append(ctx.Errors, c.Diagnostics()...)

	// Aggregates/enums are installed in two passes, mirroring C9's own
	// collect/emit split: an opaque named handle for every @struct/@union/
	// @enum first, so mutually- or self-referential field annotations
	// (`next: ptr[Node]` inside Node itself) resolve by name regardless of
	// declaration order, then the fields/variants are filled in against
	// the now-complete name table (spec §3, §4.1).
	var aggDefs, enumDefs []*collector.Definition
	for _, d := range c.Definitions() {
		switch d.Kind {
		case collector.KindFunction:
			s.u.funcDefs = append(s.u.funcDefs, d)
		case collector.KindAggregate:
			aggDefs = append(aggDefs, d)
			isUnion := d.Aggregate.Kind == "union"
			var t typelattice.Type
			if isUnion {
				t = typelattice.NewOpaqueUnion(d.Name)
			} else {
				t = typelattice.NewOpaqueStruct(d.Name)
			}
			s.u.reg.DefineAggregate(d.Name, t, d.Aggregate)
		case collector.KindEnum:
			enumDefs = append(enumDefs, d)
			s.u.reg.DefineAggregate(d.Name, &typelattice.EnumType{Name: d.Name}, d.Enum)
		}
	}
	for _, d := range aggDefs {
		fields := make([]typelattice.Field, 0, len(d.Aggregate.Fields))
		for _, f := range d.Aggregate.Fields {
			ft, err := s.u.resolver.Resolve(f.Annotation)
			if err != nil {
				ctx.AddError(diagnostics.New(diagnostics.KindAnnotation, d.Aggregate.GetToken(), "%s.%s: %v", d.Name, f.Name, err))
				continue
			}
			fields = append(fields, typelattice.Field{Name: f.Name, Type: ft})
		}
		entry, _ := s.u.reg.Aggregate(d.Name)
		switch t := entry.Type.(type) {
		case *typelattice.StructType:
			t.SetFields(fields)
		case *typelattice.UnionType:
			t.SetFields(fields)
		}
		entry.FieldIndex = fieldIndexOf(fields)
	}
	for _, d := range enumDefs {
		entry, _ := s.u.reg.Aggregate(d.Name)
		et := entry.Type.(*typelattice.EnumType)
		if d.Enum.TagType != nil {
			tagT, err := s.u.resolver.Resolve(d.Enum.TagType)
			if err != nil {
				ctx.AddError(diagnostics.New(diagnostics.KindAnnotation, d.Enum.GetToken(), "%s: tag type: %v", d.Name, err))
				continue
			}
			et.Tag = tagT
		} else {
			et.Tag = typelattice.IntType{Width: 32, Signed: true}
		}
		nextTag := int64(0)
		for _, v := range d.Enum.Variants {
			var payload typelattice.Type
			if v.Payload != nil {
				pt, err := s.u.resolver.Resolve(v.Payload)
				if err != nil {
					ctx.AddError(diagnostics.New(diagnostics.KindAnnotation, d.Enum.GetToken(), "%s.%s: %v", d.Name, v.Name, err))
					continue
				}
				payload = pt
			}
			tag := nextTag
			if v.Tag != nil {
				tag = *v.Tag
			}
			et.Variants = append(et.Variants, typelattice.EnumVariant{Name: v.Name, Payload: payload, Tag: tag})
			nextTag = tag + 1
		}
	}
	return ctx
}

func fieldIndexOf(fields []typelattice.Field) map[string]int {
	idx := map[string]int{}
	for i, f := range fields {
		idx[f.Name] = i
	}
	return idx
}

// --- cimport: parse headers, compile accompanying sources, register externs ---

type cimportStage struct{ u *unit }

func (s *cimportStage) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	baseDir := filepath.Dir(ctx.FilePath)
	for _, stmt := range ctx.AstRoot.Statements {
		ci, ok := stmt.(*ast.CImportStatement)
		if !ok {
			continue
		}
		req := cimport.Request{
			HeaderPath:     utils.ResolveSourcePath(baseDir, ci.HeaderPath),
			Lib:            ci.Lib,
			Sources:        ci.Sources,
			Objects:        ci.Objects,
			CompileSources: ci.CompileSources,
			IncludeDirs:    append(append([]string{}, s.u.opts.Project.IncludeDirs...), ci.IncludeDirs...),
			CFlags:         append(append([]string{}, s.u.opts.Project.CFlags...), ci.CFlags...),
			BuildDir:       s.u.opts.BuildDir,
		}
		decls, err := s.u.importer.Import(req)
		if err != nil {
			ctx.AddError(diagnostics.New(diagnostics.KindExternal, ci.GetToken(), "cimport %q: %v", ci.HeaderPath, err))
			continue
		}
		for _, d := range decls {
			fi := &registry.FunctionInfo{
				Unmangled:      d.WrapperName,
				Mangled:        d.WrapperName,
				ParamTypes:     d.ParamTypes,
				ReturnType:     d.ReturnType,
				Kind:           registry.KindExtern,
				EffectBindings: map[string]string{},
				VarArg:         d.VarArg,
				ExternLib:      ci.Lib,
			}
			if _, exists := s.u.reg.Function(fi.Mangled); exists {
				continue
			}
			s.u.reg.DeclareFunction(fi)
			s.u.builder.DeclareFunction(fi.Mangled, fi.ParamTypes, fi.ReturnType, fi.VarArg, true)
		}
	}
	return ctx
}

// --- two-pass function manager (C9) ---

type signatureStage struct{ u *unit }

func (s *signatureStage) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	ctx.Errors = append(ctx.Errors, s.u.funcs.CollectPass1(s.u.funcDefs)...)
	return ctx
}

type lowerStage struct{ u *unit }

func (s *lowerStage) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	ctx.Errors = append(ctx.Errors, s.u.funcs.EmitPass2()...)
	if ctx.HasErrors() {
		// Spec §7: no recovery — a body that failed to lower leaves the
		// module in an unverifiable state, so later stages (emit/link)
		// are skipped once any fatal diagnostic has been recorded.
		ctx.Halt = true
	}
	return ctx
}

// --- verify: check the finished module's structural soundness before it
// ever reaches the host toolchain (spec §4.9 "verify IR") ---

type verifyStage struct{ u *unit }

func (s *verifyStage) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	for _, problem := range s.u.builder.Verify() {
		ctx.AddError(diagnostics.New(diagnostics.KindControl, token.Token{}, "invalid IR: %s", problem))
	}
	if ctx.HasErrors() {
		ctx.Halt = true
	}
	return ctx
}

// --- emit object: render IR text, cache by content hash, invoke the host
// toolchain to optimise and assemble a relocatable object (spec §4.9). The
// optimise and emit-object stages the spec lists separately collapse into
// one `cc -O<n>` invocation here: this compiler has no in-process
// optimiser of its own, and shelling out to a standalone `opt` first would
// just be a second invocation of the same external LLVM toolchain ahead of
// the one already required to turn IR into an object file. ---

type emitObjectStage struct{ u *unit }

func (s *emitObjectStage) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	irText := s.u.builder.ModuleText()
	key := objcache.Key(irText, ctx.TargetTriple, s.u.opts.Project.CacheVersion)

	objPath := objectPath(s.u.opts.BuildDir, ctx.FilePath, ctx.TargetTriple)
	if cached, ok := s.u.cache.Lookup(key); ok {
		if _, err := os.Stat(cached); err == nil {
			ctx.ObjectPath = cached
			return ctx
		}
	}

	if err := os.MkdirAll(filepath.Dir(objPath), 0o755); err != nil {
		ctx.AddError(diagnostics.New(diagnostics.KindExternal, token.Token{}, "creating build directory: %v", err))
		ctx.Halt = true
		return ctx
	}

	base := utils.ExtractModuleName(ctx.FilePath)
	llPath := filepath.Join(filepath.Dir(objPath), base+".ll")
	if err := os.WriteFile(llPath, []byte(irText), 0o644); err != nil {
		ctx.AddError(diagnostics.New(diagnostics.KindExternal, token.Token{}, "writing IR: %v", err))
		ctx.Halt = true
		return ctx
	}
	if !s.u.opts.KeepIntermediates {
		defer os.Remove(llPath)
	}

	// Compile into a sibling temp file first and rename into place only on
	// success, so a crash or a failed cc invocation never leaves a
	// half-written object file sitting at the path future lookups will
	// trust (spec §4.9 "no partial object files are written").
	tmpPath := objPath + ".tmp"
	args := []string{"-x", "ir", "-c", llPath, "-o", tmpPath, optFlag(s.u.opts.Project.OptLevel), "--target=" + ctx.TargetTriple}
	cmd := exec.Command(s.u.opts.Project.CC, args...)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		os.Remove(tmpPath)
		ctx.AddError(diagnostics.New(diagnostics.KindExternal, token.Token{}, "compiling IR to object: %v", err))
		ctx.Halt = true
		return ctx
	}
	if err := os.Rename(tmpPath, objPath); err != nil {
		ctx.AddError(diagnostics.New(diagnostics.KindExternal, token.Token{}, "finalizing object file: %v", err))
		ctx.Halt = true
		return ctx
	}
	if err := s.u.cache.Store(key, "object", objPath); err != nil {
		ctx.AddError(diagnostics.New(diagnostics.KindExternal, token.Token{}, "storing object cache entry: %v", err))
	}
	ctx.ObjectPath = objPath
	return ctx
}

// objectPath mirrors the source file's own path under the build directory
// (spec §4.9 "build/<source-path>.o"), segmented further by target triple
// so cross-compiling for two targets from the same tree never collides on
// one cached object (spec §4.9 "per-target object caches include the
// target triple in the path").
func objectPath(buildDir, sourcePath, triple string) string {
	rel := utils.NormalizeGeneratedPath(filepath.ToSlash(sourcePath))
	rel = strings.TrimPrefix(rel, "/")
	rel = strings.ReplaceAll(rel, "../", "up/")
	return filepath.Join(buildDir, triple, filepath.FromSlash(rel)+".o")
}

func optFlag(level int) string {
	if level < 0 || level > 3 {
		level = 0
	}
	return fmt.Sprintf("-O%d", level)
}

// --- link: invoke the host linker (via cc) against the compiled object
// plus every registered cimport link object ---

type linkStage struct{ u *unit }

func (s *linkStage) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	out := s.u.opts.OutputPath
	if out == "" {
		out = utils.ExtractModuleName(ctx.FilePath)
	}
	args := []string{ctx.ObjectPath, "-o", out}
	seenLibs := map[string]bool{}
	for _, obj := range s.u.reg.LinkObjects() {
		args = append(args, obj.Path)
		if obj.Lib != "" && !seenLibs[obj.Lib] {
			seenLibs[obj.Lib] = true
			args = append(args, "-l"+obj.Lib)
		}
	}
	for _, lib := range s.u.opts.Project.LinkLibs {
		if !seenLibs[lib] {
			seenLibs[lib] = true
			args = append(args, "-l"+lib)
		}
	}
	cmd := exec.Command(s.u.opts.Project.CC, args...)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		ctx.AddError(diagnostics.New(diagnostics.KindExternal, token.Token{}, "linking: %v", err))
		return ctx
	}
	absOut, err := filepath.Abs(out)
	if err == nil {
		out = absOut
	}
	ctx.ExecutablePath = out
	return ctx
}
