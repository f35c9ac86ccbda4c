package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ProjectConfig is the optional "pythoc.yaml" sitting next to a compilation
// unit's entry file. It supplies per-project cimport defaults, grounded on
// the teacher's own "funxy.yaml" project file consumed by its ext subsystem.
type ProjectConfig struct {
	OptLevel     int      `yaml:"opt_level"`
	CC           string   `yaml:"cc"`
	IncludeDirs  []string `yaml:"include_dirs"`
	CFlags       []string `yaml:"cflags"`
	LinkLibs     []string `yaml:"link_libs"`
	CacheVersion string   `yaml:"cache_version"`
}

// LoadProjectConfig reads pythoc.yaml from dir, if present. A missing file
// is not an error: every field defaults to the environment-derived value.
func LoadProjectConfig(dir string) (*ProjectConfig, error) {
	path := filepath.Join(dir, "pythoc.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaultProjectConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg := defaultProjectConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func defaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		OptLevel:     OptLevelFromEnv(),
		CC:           DiscoverCCompiler(),
		CacheVersion: "v1",
	}
}

// OptLevelFromEnv resolves PC_OPT_LEVEL (§6 Environment), defaulting to 0
// and clamping to the documented 0..3 range.
func OptLevelFromEnv() int {
	v := os.Getenv("PC_OPT_LEVEL")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	if n < 0 {
		return 0
	}
	if n > 3 {
		return 3
	}
	return n
}

// DefaultTargetTriple resolves PC_TARGET (§6 Environment), falling back to
// the host's own GOOS/GOARCH-implied triple when unset — the common case
// of compiling for the machine running the compiler.
func DefaultTargetTriple() string {
	if v := os.Getenv("PC_TARGET"); v != "" {
		return v
	}
	return runtimeHostTriple()
}

// ccCandidates is the discovery order for the host C compiler (§6).
var ccCandidates = []string{"cc", "clang", "gcc"}

// DiscoverCCompiler finds the first available C compiler on PATH, trying
// the candidates in order. Returns "" if none is found; callers treat that
// as a diagnostic-worthy condition only when a cimport actually needs to
// compile C sources.
func DiscoverCCompiler() string {
	if v := os.Getenv("PC_CC"); v != "" {
		return v
	}
	for _, candidate := range ccCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path
		}
	}
	return ""
}

// runtimeHostTriple derives an LLVM target triple from the running
// process's GOOS/GOARCH, covering the handful of combinations the ABI
// classifier (C3) actually distinguishes (x86-64 SysV vs AArch64 AAPCS64).
func runtimeHostTriple() string {
	arch := "x86_64"
	switch runtime.GOARCH {
	case "arm64":
		arch = "aarch64"
	case "amd64":
		arch = "x86_64"
	default:
		arch = runtime.GOARCH
	}
	switch runtime.GOOS {
	case "darwin":
		return arch + "-apple-darwin"
	case "windows":
		return arch + "-pc-windows-msvc"
	default:
		return arch + "-unknown-linux-gnu"
	}
}
