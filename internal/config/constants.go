// Package config holds compiler-wide constants and the project-level
// configuration surface (environment variables, discovered C compiler,
// recognized source extensions), in the same package-level-var style the
// teacher uses for its own ambient flags.
package config

// Version is the current compiler version, set at build time via
// -ldflags "-X .../config.Version=..." by a release script, the same
// convention the teacher documents for its own Version var.
var Version = "0.1.0"

// SourceFileExt is the canonical extension for the compiled dialect.
const SourceFileExt = ".pyc"

// SourceFileExtensions are all recognized source file extensions.
var SourceFileExtensions = []string{".pyc", ".pythoc"}

// TrimSourceExt removes any recognized source extension from a filename.
func TrimSourceExt(name string) string {
	for _, ext := range SourceFileExtensions {
		if len(name) >= len(ext) && name[len(name)-len(ext):] == ext {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// HasSourceExt returns true if the path ends with any recognized source extension.
func HasSourceExt(path string) bool {
	for _, ext := range SourceFileExtensions {
		if len(path) >= len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}

// IsTestMode mirrors the teacher's package-level test-mode flag. Nothing
// in this module sets or reads it.
var IsTestMode = false

// Decorator names recognized by the collector (§6 External Interfaces).
const (
	DecoratorCompile = "compile"
	DecoratorInline  = "inline"
	DecoratorExtern  = "extern"
	DecoratorStruct  = "struct"
	DecoratorUnion   = "union"
	DecoratorEnum    = "enum"
)

// Decorator keyword-argument names.
const (
	KwargSuffix     = "suffix"
	KwargLib        = "lib"
	KwargSources    = "sources"
	KwargObjects    = "objects"
	KwargTag        = "tag"
	KwargAnonymous  = "anonymous"
	KwargCompileSrc = "compile_sources"
)

// Builtin scalar type names recognized by the type resolver (C5).
var BuiltinIntNames = []string{"i8", "i16", "i32", "i64", "u8", "u16", "u32", "u64"}
var BuiltinFloatNames = []string{"f16", "bf16", "f32", "f64", "f128"}

// Builtin type-constructor names recognized by subscript dispatch (C5).
const (
	TypeCtorPtr      = "ptr"
	TypeCtorArray    = "array"
	TypeCtorStruct   = "struct"
	TypeCtorUnion    = "union"
	TypeCtorEnum     = "enum"
	TypeCtorFunc     = "func"
	TypeCtorConst    = "const"
	TypeCtorVolatile = "volatile"
	TypeCtorStatic   = "static"
	TypeCtorRefined  = "refined"
	TypeCtorPyconst  = "pyconst"
	TypeCtorTypeof   = "typeof"
)
