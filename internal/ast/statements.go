package ast

import "github.com/funvibe/pythoc-go/internal/token"

// ExpressionStatement wraps an expression used for its effect (a bare call,
// or — per spec §7 Linear diagnostics — a dangling linear rvalue).
type ExpressionStatement struct {
	Token token.Token
	Expr  Expression
}

func (s *ExpressionStatement) statementNode()      {}
func (s *ExpressionStatement) TokenLiteral() string { return s.Token.Lexeme }
func (s *ExpressionStatement) GetToken() token.Token { return s.Token }

// AssignStatement covers `x: T = e` (Annotation != nil, new binding),
// `x = e` (existing slot, no annotation) and augmented forms `x += e`.
type AssignStatement struct {
	Token      token.Token
	Target     Expression // Identifier, Attribute, or Subscript (lvalue)
	Annotation TypeExpr   // nil unless this is a fresh `x: T = e` declaration
	AugOp      string     // "" for plain `=`, else "+" / "-" / "*" / "/"
	Value      Expression
	Qualifier  string // "" | "const" | "static", from `x: const[T] = e` sugar
}

func (s *AssignStatement) statementNode()      {}
func (s *AssignStatement) TokenLiteral() string { return s.Token.Lexeme }
func (s *AssignStatement) GetToken() token.Token { return s.Token }

// ReturnStatement: `return` or `return expr`.
type ReturnStatement struct {
	Token token.Token
	Value Expression // nil for bare `return`
}

func (s *ReturnStatement) statementNode()      {}
func (s *ReturnStatement) TokenLiteral() string { return s.Token.Lexeme }
func (s *ReturnStatement) GetToken() token.Token { return s.Token }

// YieldStatement: `yield expr` inside a generator function body.
type YieldStatement struct {
	Token token.Token
	Value Expression
}

func (s *YieldStatement) statementNode()      {}
func (s *YieldStatement) TokenLiteral() string { return s.Token.Lexeme }
func (s *YieldStatement) GetToken() token.Token { return s.Token }

// BreakStatement / ContinueStatement.
type BreakStatement struct{ Token token.Token }

func (s *BreakStatement) statementNode()      {}
func (s *BreakStatement) TokenLiteral() string { return s.Token.Lexeme }
func (s *BreakStatement) GetToken() token.Token { return s.Token }

type ContinueStatement struct{ Token token.Token }

func (s *ContinueStatement) statementNode()      {}
func (s *ContinueStatement) TokenLiteral() string { return s.Token.Lexeme }
func (s *ContinueStatement) GetToken() token.Token { return s.Token }

type PassStatement struct{ Token token.Token }

func (s *PassStatement) statementNode()      {}
func (s *PassStatement) TokenLiteral() string { return s.Token.Lexeme }
func (s *PassStatement) GetToken() token.Token { return s.Token }

// IfStatement: if/elif-chain/else. Elif clauses are desugared by the parser
// into nested IfStatement.Else = []Statement{*IfStatement}.
type IfStatement struct {
	Token     token.Token
	Condition Expression
	Then      []Statement
	Else      []Statement // nil if no else/elif
}

func (s *IfStatement) statementNode()      {}
func (s *IfStatement) TokenLiteral() string { return s.Token.Lexeme }
func (s *IfStatement) GetToken() token.Token { return s.Token }

// WhileStatement: while cond: body.
type WhileStatement struct {
	Token     token.Token
	Condition Expression
	Body      []Statement
}

func (s *WhileStatement) statementNode()      {}
func (s *WhileStatement) TokenLiteral() string { return s.Token.Lexeme }
func (s *WhileStatement) GetToken() token.Token { return s.Token }

// ForStatement: `for x in iter: body [else: elseBody]` (spec §4.5 four
// iterator forms, handled uniformly at the AST level and disambiguated
// during lowering).
type ForStatement struct {
	Token     token.Token
	Target    Expression // Identifier or TupleLiteral-of-Identifier (destructuring)
	Iterable  Expression
	Body      []Statement
	Else      []Statement // nil if no `else` clause
}

func (s *ForStatement) statementNode()      {}
func (s *ForStatement) TokenLiteral() string { return s.Token.Lexeme }
func (s *ForStatement) GetToken() token.Token { return s.Token }

// MatchStatement / MatchCase (spec §4.4/§4.5 pattern matching).
type MatchStatement struct {
	Token   token.Token
	Subject Expression
	Cases   []*MatchCase
}

func (s *MatchStatement) statementNode()      {}
func (s *MatchStatement) TokenLiteral() string { return s.Token.Lexeme }
func (s *MatchStatement) GetToken() token.Token { return s.Token }

type MatchCase struct {
	Token   token.Token
	Pattern Pattern
	Guard   Expression // nil if no `if expr` guard
	Body    []Statement
}

// Pattern is the pattern-matching sub-grammar.
type Pattern interface {
	Node
	patternNode()
}

type WildcardPattern struct{ Token token.Token }

func (p *WildcardPattern) patternNode()        {}
func (p *WildcardPattern) TokenLiteral() string { return "_" }
func (p *WildcardPattern) GetToken() token.Token { return p.Token }

type LiteralPattern struct {
	Token token.Token
	Value Expression // IntegerLiteral, StringLiteral, BoolLiteral
}

func (p *LiteralPattern) patternNode()        {}
func (p *LiteralPattern) TokenLiteral() string { return p.Token.Lexeme }
func (p *LiteralPattern) GetToken() token.Token { return p.Token }

// BindPattern binds the scrutinee (or sub-value) to Name, e.g. `x` in
// `case x if x > 0:`.
type BindPattern struct {
	Token token.Token
	Name  string
}

func (p *BindPattern) patternNode()        {}
func (p *BindPattern) TokenLiteral() string { return p.Token.Lexeme }
func (p *BindPattern) GetToken() token.Token { return p.Token }

// OrPattern: `a | b | c`.
type OrPattern struct {
	Token token.Token
	Alts  []Pattern
}

func (p *OrPattern) patternNode()        {}
func (p *OrPattern) TokenLiteral() string { return p.Token.Lexeme }
func (p *OrPattern) GetToken() token.Token { return p.Token }

// TuplePattern: `(p1, ..., pk)`, matches struct fields in order or an
// array literal pattern `[p1,...,pn]` when IsArray is set.
type TuplePattern struct {
	Token   token.Token
	Elems   []Pattern
	IsArray bool
}

func (p *TuplePattern) patternNode()        {}
func (p *TuplePattern) TokenLiteral() string { return p.Token.Lexeme }
func (p *TuplePattern) GetToken() token.Token { return p.Token }

// ConstructorPattern matches an enum variant, tag-only (`Status.Ok`,
// Payload == nil) or constructor-style (`Status.Ok(x)`).
type ConstructorPattern struct {
	Token   token.Token
	Enum    string
	Variant string
	Payload Pattern // nil for tag-only form
}

func (p *ConstructorPattern) patternNode()        {}
func (p *ConstructorPattern) TokenLiteral() string { return p.Token.Lexeme }
func (p *ConstructorPattern) GetToken() token.Token { return p.Token }

// refine / assume: `for x in refine(args, pred): body else: elseBody` and
// the unchecked `assume(args, pred)` constructor form. There is no
// separate refine node: refine is parsed as a ForStatement whose Iterable
// is a Call to a builtin named "refine"; AssumeExpr below covers assume.
type AssumeExpr struct {
	Token token.Token
	Args  []Expression
	Pred  Expression
}

func (a *AssumeExpr) expressionNode()      {}
func (a *AssumeExpr) TokenLiteral() string { return a.Token.Lexeme }
func (a *AssumeExpr) GetToken() token.Token { return a.Token }

// ---- Top-level definitions ----

// Param is one function parameter: `name: T`.
type Param struct {
	Name       string
	Annotation TypeExpr
}

// FunctionDef: `@compile [(suffix=..., anonymous=...)] \n def name(params) -> T: body`.
// Decorators determine Kind (compile/inline/extern/generator is detected
// later from the presence of `yield` in Body).
type FunctionDef struct {
	Token      token.Token
	Decorators []*Decorator
	Name       string // "" for an anonymous @compile(anonymous=True) instance
	Params     []Param
	ReturnType TypeExpr // nil means inferred-void
	Body       []Statement
	VarArg     bool
}

func (f *FunctionDef) statementNode()      {}
func (f *FunctionDef) TokenLiteral() string { return f.Token.Lexeme }
func (f *FunctionDef) GetToken() token.Token { return f.Token }

// AggregateField is one member of a struct/union definition.
type AggregateField struct {
	Name       string
	Annotation TypeExpr
}

// AggregateDef: `@struct [(suffix=...)] \n class Name: field: T ...` — also
// used for `@union`; Kind distinguishes them.
type AggregateDef struct {
	Token      token.Token
	Decorators []*Decorator
	Kind       string // "struct" | "union"
	Name       string
	Fields     []AggregateField
}

func (a *AggregateDef) statementNode()      {}
func (a *AggregateDef) TokenLiteral() string { return a.Token.Lexeme }
func (a *AggregateDef) GetToken() token.Token { return a.Token }

// EnumVariant is one `Name` or `Name(T)` entry, with an optional explicit
// tag value (`Name = 5`).
type EnumVariant struct {
	Name    string
	Payload TypeExpr // nil for a void variant
	Tag     *int64   // nil to auto-number
}

// EnumDef: `@enum(tag_type) \n class Name: Variant ...`.
type EnumDef struct {
	Token      token.Token
	Decorators []*Decorator
	Name       string
	TagType    TypeExpr // defaults to i32 if the decorator gives none
	Variants   []EnumVariant
}

func (e *EnumDef) statementNode()      {}
func (e *EnumDef) TokenLiteral() string { return e.Token.Lexeme }
func (e *EnumDef) GetToken() token.Token { return e.Token }

// CImportStatement: `cimport("path", lib=..., sources=[...], objects=[...], compile_sources=True)`.
type CImportStatement struct {
	Token          token.Token
	HeaderPath     string
	Lib            string
	Sources        []string
	Objects        []string
	CompileSources bool
	IncludeDirs    []string
	CFlags         []string
	Alias          string // binding name the generated module is imported as
}

func (c *CImportStatement) statementNode()      {}
func (c *CImportStatement) TokenLiteral() string { return c.Token.Lexeme }
func (c *CImportStatement) GetToken() token.Token { return c.Token }
