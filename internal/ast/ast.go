// Package ast defines the surface syntax tree for the compiled dialect:
// a Python-like grammar carrying decorators and fixed-width type
// annotations. The Node/Statement/Expression interface shape is grounded
// on the teacher's own internal/ast package, generalized from the
// teacher's Hindley-Milner surface language to this dialect's explicitly
// annotated one. Nodes here carry no Accept(Visitor) method; consumers
// dispatch with type switches.
package ast

import "github.com/funvibe/pythoc-go/internal/token"

// Node is the base interface for all AST nodes.
type Node interface {
	TokenLiteral() string
	GetToken() token.Token
}

// Statement is a Node that appears in a statement position.
type Statement interface {
	Node
	statementNode()
}

// Expression is a Node that appears in an expression position.
type Expression interface {
	Node
	expressionNode()
}

// TypeExpr is an (unresolved) annotation expression, the input to the type
// resolver (C5). Annotations reuse the expression grammar (bare names,
// subscripts, tuples) rather than a separate grammar, per spec §4.1.
type TypeExpr = Expression

// Program is the root of one parsed source file.
type Program struct {
	File       string
	Statements []Statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}
func (p *Program) GetToken() token.Token { return token.Token{} }

// ---- Decorators ----

// Decorator represents one `@name(args...)` line above a definition.
type Decorator struct {
	Token  token.Token
	Name   string
	Args   []Expression
	Kwargs map[string]Expression
}

func (d *Decorator) TokenLiteral() string  { return d.Token.Lexeme }
func (d *Decorator) GetToken() token.Token { return d.Token }

// ---- Identifiers and literals ----

type Identifier struct {
	Token token.Token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Lexeme }
func (i *Identifier) GetToken() token.Token { return i.Token }

type IntegerLiteral struct {
	Token token.Token
	Value int64
}

func (n *IntegerLiteral) expressionNode()      {}
func (n *IntegerLiteral) TokenLiteral() string { return n.Token.Lexeme }
func (n *IntegerLiteral) GetToken() token.Token { return n.Token }

type FloatLiteral struct {
	Token token.Token
	Value float64
}

func (n *FloatLiteral) expressionNode()      {}
func (n *FloatLiteral) TokenLiteral() string { return n.Token.Lexeme }
func (n *FloatLiteral) GetToken() token.Token { return n.Token }

type StringLiteral struct {
	Token token.Token
	Value string
}

func (n *StringLiteral) expressionNode()      {}
func (n *StringLiteral) TokenLiteral() string { return n.Token.Lexeme }
func (n *StringLiteral) GetToken() token.Token { return n.Token }

type BoolLiteral struct {
	Token token.Token
	Value bool
}

func (n *BoolLiteral) expressionNode()      {}
func (n *BoolLiteral) TokenLiteral() string { return n.Token.Lexeme }
func (n *BoolLiteral) GetToken() token.Token { return n.Token }

// NoneLiteral is the surface spelling for a zero-valued pyconst / void.
type NoneLiteral struct{ Token token.Token }

func (n *NoneLiteral) expressionNode()       {}
func (n *NoneLiteral) TokenLiteral() string  { return n.Token.Lexeme }
func (n *NoneLiteral) GetToken() token.Token { return n.Token }

// ---- Compound expressions ----

// Subscript is `Base[Items...]`, used both for generic/annotation
// dispatch (C5) and for array/pointer indexing (C7) — the grammar does
// not distinguish the two positions; the resolver/lowerer do.
type Subscript struct {
	Token token.Token
	Base  Expression
	Items []SubscriptItem
}

// SubscriptItem is one comma-separated entry inside `[...]`: either a bare
// expression (positional) or `key: expr` (named field / kwarg form).
type SubscriptItem struct {
	Key   string // "" if positional
	Value Expression
}

func (s *Subscript) expressionNode()      {}
func (s *Subscript) TokenLiteral() string { return s.Token.Lexeme }
func (s *Subscript) GetToken() token.Token { return s.Token }

type TupleLiteral struct {
	Token token.Token
	Elems []Expression
}

func (t *TupleLiteral) expressionNode()      {}
func (t *TupleLiteral) TokenLiteral() string { return t.Token.Lexeme }
func (t *TupleLiteral) GetToken() token.Token { return t.Token }

type ArrayLiteral struct {
	Token token.Token
	Elems []Expression
}

func (a *ArrayLiteral) expressionNode()      {}
func (a *ArrayLiteral) TokenLiteral() string { return a.Token.Lexeme }
func (a *ArrayLiteral) GetToken() token.Token { return a.Token }

type Attribute struct {
	Token token.Token
	Base  Expression
	Name  string
}

func (a *Attribute) expressionNode()      {}
func (a *Attribute) TokenLiteral() string { return a.Token.Lexeme }
func (a *Attribute) GetToken() token.Token { return a.Token }

type Call struct {
	Token    token.Token
	Callee   Expression
	Args     []Expression
	Starred  []bool // parallel to Args: true if the arg was written as *expr
	Kwargs   map[string]Expression
}

func (c *Call) expressionNode()      {}
func (c *Call) TokenLiteral() string { return c.Token.Lexeme }
func (c *Call) GetToken() token.Token { return c.Token }

type UnaryExpr struct {
	Token token.Token
	Op    string
	Right Expression
}

func (u *UnaryExpr) expressionNode()      {}
func (u *UnaryExpr) TokenLiteral() string { return u.Token.Lexeme }
func (u *UnaryExpr) GetToken() token.Token { return u.Token }

type BinaryExpr struct {
	Token token.Token
	Left  Expression
	Op    string
	Right Expression
}

func (b *BinaryExpr) expressionNode()      {}
func (b *BinaryExpr) TokenLiteral() string { return b.Token.Lexeme }
func (b *BinaryExpr) GetToken() token.Token { return b.Token }

// CompareExpr models a (possibly chained) comparison `a < b < c` as one
// node so the lowerer can single-evaluate shared operands (spec §4.4).
type CompareExpr struct {
	Token    token.Token
	Operands []Expression
	Ops      []string // len(Ops) == len(Operands)-1
}

func (c *CompareExpr) expressionNode()      {}
func (c *CompareExpr) TokenLiteral() string { return c.Token.Lexeme }
func (c *CompareExpr) GetToken() token.Token { return c.Token }

type BoolOpExpr struct {
	Token token.Token
	Op    string // "and" | "or"
	Left  Expression
	Right Expression
}

func (b *BoolOpExpr) expressionNode()      {}
func (b *BoolOpExpr) TokenLiteral() string { return b.Token.Lexeme }
func (b *BoolOpExpr) GetToken() token.Token { return b.Token }

// StarExpr is `*expr` used as a call argument to unpack a struct's fields
// in order (spec §4.4 calls).
type StarExpr struct {
	Token token.Token
	Value Expression
}

func (s *StarExpr) expressionNode()      {}
func (s *StarExpr) TokenLiteral() string { return s.Token.Lexeme }
func (s *StarExpr) GetToken() token.Token { return s.Token }

// EffectRef is `effect.Name.member` or `effect.Name.member()`, recognized
// syntactically so C10 can intercept it before general attribute/call
// lowering (spec §4.7, §9 design notes on namespace objects).
type EffectRef struct {
	Token      token.Token
	Capability string
	Member     string
}

func (e *EffectRef) expressionNode()      {}
func (e *EffectRef) TokenLiteral() string { return e.Token.Lexeme }
func (e *EffectRef) GetToken() token.Token { return e.Token }

// WithEffectStmt models `with effect(C=impl, suffix=s): ...` as an
// expression-statement wrapper (spec §4.7 item 2).
type WithEffectStmt struct {
	Token      token.Token
	Overrides  map[string]Expression // capability name -> impl expression
	Suffix     Expression            // nil if no suffix given
	Body       []Statement
}

func (w *WithEffectStmt) statementNode()      {}
func (w *WithEffectStmt) TokenLiteral() string { return w.Token.Lexeme }
func (w *WithEffectStmt) GetToken() token.Token { return w.Token }
