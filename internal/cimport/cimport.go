// Package cimport implements C11: parsing a C header into extern
// declarations, compiling accompanying C sources via the host compiler,
// and registering the resulting object files for link. Grounded on the
// teacher's ext subsystem (internal/ext): a content-hash cache in front of
// a code generator that emits Go source, formatted via
// golang.org/x/tools/imports before being written — the same shape this
// package uses to emit a generated wrapper module of `@extern`
// declarations in front of a cached, content-hashed build step.
package cimport

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/tools/imports"

	"github.com/funvibe/pythoc-go/internal/config"
	"github.com/funvibe/pythoc-go/internal/objcache"
	"github.com/funvibe/pythoc-go/internal/registry"
	"github.com/funvibe/pythoc-go/internal/typelattice"
	"github.com/funvibe/pythoc-go/internal/utils"
)

// ExternDecl is one generated `@extern` binding surfaced from a parsed
// header: a C function prototype translated into surface types.
type ExternDecl struct {
	Symbol     string
	WrapperName string
	ParamTypes []typelattice.Type
	ReturnType typelattice.Type
	VarArg     bool
}

// Request is one cimport(...) call's parameters (spec §4.8).
type Request struct {
	HeaderPath     string
	Lib            string
	Sources        []string
	Objects        []string
	CompileSources bool
	IncludeDirs    []string
	CFlags         []string
	BuildDir       string
}

// Importer runs the cimport pipeline against one compilation unit's
// registry and cache.
type Importer struct {
	reg   *registry.Registry
	cache *objcache.Cache
	cc    string
}

func New(reg *registry.Registry, cache *objcache.Cache, cc string) *Importer {
	return &Importer{reg: reg, cache: cache, cc: cc}
}

// Import runs the full cimport pipeline for one request (spec §4.8 steps
// i-v).
func (im *Importer) Import(req Request) ([]ExternDecl, error) {
	key, err := im.cacheKey(req)
	if err != nil {
		return nil, fmt.Errorf("cimport: computing cache key: %w", err)
	}

	// The cache lookup only drops an entry whose recorded wrapper file is
	// gone from disk; a hit is not reused. Every call re-parses the header,
	// rewrites the wrapper module and decl index, and recompiles the C
	// sources.
	if wrapperPath, ok := im.cache.Lookup(key); ok {
		if _, statErr := os.Stat(wrapperPath); statErr != nil {
			im.cache.Store(key, "cimport-wrapper", "") // stale entry, will be overwritten by generate
		}
	}
	decls, err := im.generate(req, key)
	if err != nil {
		return nil, err
	}

	if req.CompileSources && len(req.Sources) > 0 {
		objPaths, err := im.compileSources(req)
		if err != nil {
			return nil, err
		}
		for _, p := range objPaths {
			if _, err := im.reg.RegisterLinkObject(p, req.Lib); err != nil {
				return nil, err
			}
		}
	}
	for _, obj := range req.Objects {
		if _, err := im.reg.RegisterLinkObject(obj, req.Lib); err != nil {
			return nil, err
		}
	}

	return decls, nil
}

// cacheKey computes a key from the header path, its mtime, the lib name,
// and accompanying sources/objects (spec §4.8 step i), grounded on the
// original implementation's richer cache key covering every input that
// affects codegen, not just the header text.
func (im *Importer) cacheKey(req Request) (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "header=%s\n", req.HeaderPath)
	if info, err := os.Stat(req.HeaderPath); err == nil {
		fmt.Fprintf(h, "mtime=%d\n", info.ModTime().UnixNano())
	}
	fmt.Fprintf(h, "lib=%s\n", req.Lib)
	for _, s := range req.Sources {
		fmt.Fprintf(h, "src=%s\n", s)
	}
	for _, o := range req.Objects {
		fmt.Fprintf(h, "obj=%s\n", o)
	}
	fmt.Fprintf(h, "includes=%s\n", strings.Join(req.IncludeDirs, ":"))
	fmt.Fprintf(h, "cflags=%s\n", strings.Join(req.CFlags, " "))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// generate invokes the header parser/codegen and writes the result under
// build/cimport/<normalised-path>/bindings_<base>.py (spec §4.8 step iii,
// §6 file layout).
func (im *Importer) generate(req Request, key string) ([]ExternDecl, error) {
	decls, err := ParseHeader(req.HeaderPath, req.IncludeDirs, req.CFlags)
	if err != nil {
		return nil, fmt.Errorf("cimport: parsing %s: %w", req.HeaderPath, err)
	}

	base := strings.TrimSuffix(filepath.Base(req.HeaderPath), filepath.Ext(req.HeaderPath))
	normalized := utils.NormalizeGeneratedPath(req.HeaderPath)
	wrapperDir := filepath.Join(req.BuildDir, "cimport", normalized)
	if err := os.MkdirAll(wrapperDir, 0o755); err != nil {
		return nil, err
	}
	wrapperPath := filepath.Join(wrapperDir, "bindings_"+base+".py")

	src := renderWrapperModule(req.Lib, decls)
	// The wrapper module is surface-language source, not Go, so
	// x/tools/imports is used only to format the small Go decl index this
	// package writes alongside it (the declared symbol names, below).
	if err := os.WriteFile(wrapperPath, []byte(src), 0o644); err != nil {
		return nil, err
	}
	if err := writeDeclIndex(wrapperPath+".decls.go", decls); err != nil {
		return nil, err
	}

	if err := im.cache.Store(key, "cimport-wrapper", wrapperPath); err != nil {
		return nil, err
	}
	return decls, nil
}

func renderWrapperModule(lib string, decls []ExternDecl) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# generated by cimport for lib=%q\n", lib)
	for _, d := range decls {
		fmt.Fprintf(&b, "@extern(lib=%q)\ndef %s(...) -> %s: ...\n", lib, d.WrapperName, d.ReturnType.String())
	}
	return b.String()
}

// writeDeclIndex writes the parsed declarations' symbol names as a Go
// []string next to the generated wrapper module, formatted with goimports.
// Only the names are written, and nothing in this package reads the file.
func writeDeclIndex(path string, decls []ExternDecl) error {
	var b strings.Builder
	b.WriteString("package cimportcache\n\nvar Decls = []string{\n")
	for _, d := range decls {
		fmt.Fprintf(&b, "\t%q,\n", d.Symbol)
	}
	b.WriteString("}\n")
	formatted, err := imports.Process(path, []byte(b.String()), nil)
	if err != nil {
		formatted = []byte(b.String())
	}
	return os.WriteFile(path, formatted, 0o644)
}

// compileSources invokes the host C compiler to produce object files for
// each source (spec §4.8 step iv).
func (im *Importer) compileSources(req Request) ([]string, error) {
	var objPaths []string
	for _, src := range req.Sources {
		obj := filepath.Join(req.BuildDir, config.TrimSourceExt(filepath.Base(src))+".o")
		if err := os.MkdirAll(filepath.Dir(obj), 0o755); err != nil {
			return nil, err
		}
		args := []string{"-c", src, "-o", obj}
		for _, inc := range req.IncludeDirs {
			args = append(args, "-I"+inc)
		}
		args = append(args, req.CFlags...)
		cmd := exec.Command(im.cc, args...)
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("cimport: compiling %s: %w", src, err)
		}
		objPaths = append(objPaths, obj)
	}
	return objPaths, nil
}
