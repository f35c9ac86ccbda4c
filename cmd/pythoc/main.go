// Command pythoc is a thin CLI wrapper over pkg/pythoc: the driver
// itself and the surrounding pipeline are the project's actual scope
// (spec §1 explicitly treats command-line entry points as an external
// collaborator); this file only parses argv and reports the result.
// Grounded on the teacher's cmd/funxy/main.go panic-recovery wrapper
// and pkg/cli.handleBuild's flag-scanning loop, reduced to the one
// "build" command this compiler actually supports.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/funvibe/pythoc-go/internal/diagnostics"
	"github.com/funvibe/pythoc-go/pkg/pythoc"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "this is a bug")
			os.Exit(1)
		}
	}()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	if os.Args[1] != "build" {
		printUsage()
		os.Exit(1)
	}
	os.Exit(runBuild(os.Args[2:]))
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: pythoc build <source.pc> [-o <output>] [--target <triple>] [--build-dir <dir>] [--keep]")
}

func runBuild(args []string) int {
	var sourcePath, outputPath, targetTriple, buildDir string
	keep := false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o":
			if i+1 < len(args) {
				outputPath = args[i+1]
				i++
			}
		case "--target":
			if i+1 < len(args) {
				targetTriple = args[i+1]
				i++
			}
		case "--build-dir":
			if i+1 < len(args) {
				buildDir = args[i+1]
				i++
			}
		case "--keep":
			keep = true
		default:
			if !strings.HasPrefix(args[i], "-") {
				sourcePath = args[i]
			}
		}
	}
	if sourcePath == "" {
		fmt.Fprintln(os.Stderr, "error: no source file specified")
		printUsage()
		return 1
	}
	if outputPath == "" {
		outputPath = strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	}

	result, err := pythoc.CompileToExecutable(sourcePath, pythoc.Options{
		OutputPath:        outputPath,
		TargetTriple:      targetTriple,
		BuildDir:          buildDir,
		KeepIntermediates: keep,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	formatter := diagnostics.NewFormatter(os.Stderr)
	for _, d := range result.Diagnostics {
		fmt.Fprint(os.Stderr, formatter.Render(d))
	}
	if len(result.Diagnostics) > 0 {
		return 1
	}
	fmt.Printf("built %s\n", result.ExecutablePath)
	return 0
}
