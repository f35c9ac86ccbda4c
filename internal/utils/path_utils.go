package utils

import (
	"path/filepath"
	"strings"

	"github.com/funvibe/pythoc-go/internal/config"
)

// ResolveSourcePath resolves a source-file reference relative to a base
// directory if it starts with a dot, otherwise returns it unchanged.
func ResolveSourcePath(baseDir, path string) string {
	if len(path) > 0 && path[0] == '.' {
		if baseDir != "." && baseDir != "" {
			return filepath.Join(baseDir, path)
		}
	}
	return path
}

// ExtractModuleName derives a collection-unit name from a file path by
// stripping any recognized source extension.
func ExtractModuleName(path string) string {
	name := filepath.Base(path)
	return config.TrimSourceExt(name)
}

// NormalizeGeneratedPath rewrites backslashes to forward slashes so paths
// embedded in generated wrapper source never collide with Go string-literal
// escape sequences on Windows (spec §4.8).
func NormalizeGeneratedPath(path string) string {
	return strings.ReplaceAll(path, `\`, `/`)
}
