// Package diagnostics defines the compiler's structured error values and
// their formatted rendering, grounded on the teacher's own diagnostic
// shape (token-positioned errors collected on a pipeline context) and its
// terminal color detection in internal/evaluator/builtins_term.go.
package diagnostics

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/funvibe/pythoc-go/internal/token"
)

// Kind categorizes a diagnostic per spec §7.
type Kind string

const (
	KindAnnotation Kind = "annotation" // malformed subscript, unknown type name
	KindTyping     Kind = "typing"
	KindABI        Kind = "abi" // internal invariant violation
	KindLinear     Kind = "linear"
	KindControl    Kind = "control-flow"
	KindExternal   Kind = "external" // cimport/link failures
)

// Diagnostic is a single fatal compiler error (§7: no recovery, first
// fatal diagnostic aborts compilation).
type Diagnostic struct {
	Kind    Kind
	Token   token.Token
	File    string
	Message string
	Snippet string // the offending source line, if available
}

func (d *Diagnostic) Error() string {
	return Format(d, false)
}

// Format renders a diagnostic as "file:line:col: error[kind]: message", with an
// optional source snippet line, colorized when color is requested.
func Format(d *Diagnostic, color bool) string {
	var b strings.Builder
	loc := fmt.Sprintf("%s:%d:%d", orDash(d.File), d.Token.Line, d.Token.Column)
	if color {
		fmt.Fprintf(&b, "\033[1m%s\033[0m: \033[31merror[%s]\033[0m: %s\n", loc, d.Kind, d.Message)
	} else {
		fmt.Fprintf(&b, "%s: error[%s]: %s\n", loc, d.Kind, d.Message)
	}
	if d.Snippet != "" {
		fmt.Fprintf(&b, "    %s\n", d.Snippet)
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "<unknown>"
	}
	return s
}

// New constructs a Diagnostic. Callers supply the offending token for
// source-position reporting; Snippet/File may be filled in afterward by
// the driver once the source text is available.
func New(kind Kind, tok token.Token, format string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: kind, Token: tok, Message: fmt.Sprintf(format, args...)}
}

// Formatter renders diagnostics for a specific output stream, deciding on
// color the same way the teacher's builtins_term.go does: isatty on the
// target file descriptor, overridable by PC_NO_COLOR for scripted use.
type Formatter struct {
	color bool
}

// NewFormatter builds a Formatter for the given stream.
func NewFormatter(f *os.File) *Formatter {
	color := os.Getenv("PC_NO_COLOR") == "" &&
		(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
	return &Formatter{color: color}
}

// Render formats a diagnostic for this formatter's stream.
func (fm *Formatter) Render(d *Diagnostic) string {
	return Format(d, fm.color)
}

// First returns the first diagnostic in a slice, or nil. The driver (C12)
// treats diagnostics as fatal-on-first per §7: no recovery within a unit.
func First(ds []*Diagnostic) *Diagnostic {
	if len(ds) == 0 {
		return nil
	}
	return ds[0]
}
