// Package parser builds an internal/ast tree from a token stream, using a
// Pratt (precedence-climbing) expression parser plus a recursive-descent
// statement grammar — the same overall shape as the teacher's own parser
// (separate prefix/infix dispatch tables, one parse function per
// construct), adapted to a Python-like indentation-block grammar instead
// of the teacher's brace/arrow-delimited one.
package parser

import (
	"strconv"

	"github.com/funvibe/pythoc-go/internal/ast"
	"github.com/funvibe/pythoc-go/internal/diagnostics"
	"github.com/funvibe/pythoc-go/internal/lexer"
	"github.com/funvibe/pythoc-go/internal/token"
)

// precedence levels, lowest to highest.
const (
	_ int = iota
	precLowest
	precOr
	precAnd
	precNot
	precCompare
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precAdditive
	precMultiplicative
	precUnary
	precCall // call / subscript / attribute
)

var precedences = map[token.Type]int{
	token.KW_OR:      precOr,
	token.KW_AND:     precAnd,
	token.EQ:         precCompare,
	token.NOT_EQ:     precCompare,
	token.LT:         precCompare,
	token.GT:         precCompare,
	token.LT_EQ:      precCompare,
	token.GT_EQ:      precCompare,
	token.PIPE:       precBitOr,
	token.CARET:      precBitXor,
	token.AMP:        precBitAnd,
	token.SHL:        precShift,
	token.SHR:        precShift,
	token.PLUS:       precAdditive,
	token.MINUS:      precAdditive,
	token.ASTERISK:   precMultiplicative,
	token.SLASH:      precMultiplicative,
	token.PERCENT:    precMultiplicative,
	token.LPAREN:     precCall,
	token.LBRACKET:   precCall,
	token.DOT:        precCall,
}

var compareOps = map[token.Type]bool{
	token.EQ: true, token.NOT_EQ: true, token.LT: true, token.GT: true, token.LT_EQ: true, token.GT_EQ: true,
}

// Parser holds lexer cursor state and accumulated diagnostics; parsing
// never panics on malformed input — it appends a diagnostic, skips the
// offending token and carries on, so one file can report more than one
// parse error before the driver aborts on the first fatal one.
type Parser struct {
	l    *lexer.Lexer
	file string

	curToken  token.Token
	peekToken token.Token

	diags []*diagnostics.Diagnostic

	prefixFns map[token.Type]func() ast.Expression
	infixFns  map[token.Type]func(ast.Expression) ast.Expression
}

// New constructs a Parser over source text already read from file.
func New(file, source string) *Parser {
	p := &Parser{l: lexer.New(source), file: file}
	p.prefixFns = map[token.Type]func() ast.Expression{}
	p.infixFns = map[token.Type]func(ast.Expression) ast.Expression{}

	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.INT, p.parseIntegerLiteral)
	p.registerPrefix(token.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.KW_TRUE, p.parseBoolLiteral)
	p.registerPrefix(token.KW_FALSE, p.parseBoolLiteral)
	p.registerPrefix(token.KW_NONE, p.parseNoneLiteral)
	p.registerPrefix(token.MINUS, p.parseUnary)
	p.registerPrefix(token.BANG, p.parseUnary)
	p.registerPrefix(token.KW_NOT, p.parseUnary)
	p.registerPrefix(token.TILDE, p.parseUnary)
	p.registerPrefix(token.ASTERISK, p.parseStarExpr)
	p.registerPrefix(token.AMP, p.parseUnary)
	p.registerPrefix(token.LPAREN, p.parseGroupedOrTuple)
	p.registerPrefix(token.LBRACKET, p.parseArrayLiteral)
	p.registerPrefix(token.KW_ASSUME, p.parseAssumeExpr)

	for tt := range map[token.Type]bool{
		token.KW_OR: true, token.KW_AND: true, token.PLUS: true, token.MINUS: true,
		token.ASTERISK: true, token.SLASH: true, token.PERCENT: true,
		token.PIPE: true, token.CARET: true, token.AMP: true, token.SHL: true, token.SHR: true,
	} {
		p.registerInfix(tt, p.parseBinaryOrBoolOp)
	}
	for tt := range compareOps {
		p.registerInfix(tt, p.parseCompare)
	}
	p.registerInfix(token.LPAREN, p.parseCall)
	p.registerInfix(token.LBRACKET, p.parseSubscript)
	p.registerInfix(token.DOT, p.parseAttribute)

	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) registerPrefix(t token.Type, fn func() ast.Expression)            { p.prefixFns[t] = fn }
func (p *Parser) registerInfix(t token.Type, fn func(ast.Expression) ast.Expression) { p.infixFns[t] = fn }

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
	if p.curToken.Type == token.EOF {
		return
	}
}

// Diagnostics returns accumulated parse diagnostics.
func (p *Parser) Diagnostics() []*diagnostics.Diagnostic { return p.diags }

func (p *Parser) errorf(tok token.Token, format string, args ...any) {
	d := diagnostics.New(diagnostics.KindAnnotation, tok, format, args...)
	d.File = p.file
	p.diags = append(p.diags, d)
}

func (p *Parser) curIs(t token.Type) bool  { return p.curToken.Type == t }
func (p *Parser) peekIs(t token.Type) bool { return p.peekToken.Type == t }

func (p *Parser) expect(t token.Type) bool {
	if p.curIs(t) {
		p.nextToken()
		return true
	}
	p.errorf(p.curToken, "expected %s, got %s %q", t, p.curToken.Type, p.curToken.Lexeme)
	return false
}

func (p *Parser) skipNewlines() {
	for p.curIs(token.NEWLINE) {
		p.nextToken()
	}
}

// ParseProgram parses the whole file into a *ast.Program.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{File: p.file}
	p.skipNewlines()
	for !p.curIs(token.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
		p.skipNewlines()
	}
	return prog
}

// ---- statements ----

func (p *Parser) parseBlock() []ast.Statement {
	if !p.expect(token.COLON) {
		return nil
	}
	p.skipNewlines()
	if !p.curIs(token.INDENT) {
		// Single-line body: `if x: return 0`
		stmt := p.parseSimpleStatement()
		return []ast.Statement{stmt}
	}
	p.nextToken() // consume INDENT
	var stmts []ast.Statement
	p.skipNewlines()
	for !p.curIs(token.DEDENT) && !p.curIs(token.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		p.skipNewlines()
	}
	if p.curIs(token.DEDENT) {
		p.nextToken()
	}
	return stmts
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.AT:
		return p.parseDecorated()
	case token.KW_DEF:
		return p.parseFunctionDef(nil)
	case token.KW_IF:
		return p.parseIf()
	case token.KW_WHILE:
		return p.parseWhile()
	case token.KW_FOR:
		return p.parseFor()
	case token.KW_MATCH:
		return p.parseMatch()
	case token.KW_WITH:
		return p.parseWithEffect()
	default:
		return p.parseSimpleStatement()
	}
}

// parseSimpleStatement parses a statement that fits on one logical line:
// return/break/continue/pass/yield, or an assignment/expression statement.
func (p *Parser) parseSimpleStatement() ast.Statement {
	tok := p.curToken
	switch tok.Type {
	case token.KW_RETURN:
		p.nextToken()
		if p.curIs(token.NEWLINE) || p.curIs(token.EOF) || p.curIs(token.DEDENT) {
			return &ast.ReturnStatement{Token: tok}
		}
		v := p.parseExpression(precLowest)
		return &ast.ReturnStatement{Token: tok, Value: v}
	case token.KW_YIELD:
		p.nextToken()
		v := p.parseExpression(precLowest)
		return &ast.YieldStatement{Token: tok, Value: v}
	case token.KW_BREAK:
		p.nextToken()
		return &ast.BreakStatement{Token: tok}
	case token.KW_CONTINUE:
		p.nextToken()
		return &ast.ContinueStatement{Token: tok}
	case token.KW_PASS:
		p.nextToken()
		return &ast.PassStatement{Token: tok}
	default:
		return p.parseAssignOrExprStatement()
	}
}

func (p *Parser) parseDecorated() ast.Statement {
	var decs []*ast.Decorator
	for p.curIs(token.AT) {
		decs = append(decs, p.parseDecorator())
		p.skipNewlines()
	}
	switch p.curToken.Type {
	case token.KW_DEF:
		return p.parseFunctionDef(decs)
	case token.KW_STRUCT, token.KW_UNION:
		return p.parseAggregateDef(decs)
	case token.KW_ENUM:
		return p.parseEnumDef(decs)
	default:
		p.errorf(p.curToken, "decorator must precede def/struct/union/enum, got %s", p.curToken.Type)
		p.nextToken()
		return nil
	}
}

func (p *Parser) parseDecorator() *ast.Decorator {
	tok := p.curToken // AT
	p.nextToken()
	nameTok := p.curToken
	p.expect(token.IDENT)
	d := &ast.Decorator{Token: tok, Name: nameTok.Lexeme, Kwargs: map[string]ast.Expression{}}
	if p.curIs(token.LPAREN) {
		p.nextToken()
		for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
			if p.curIs(token.IDENT) && p.peekIs(token.ASSIGN) {
				key := p.curToken.Lexeme
				p.nextToken()
				p.nextToken()
				d.Kwargs[key] = p.parseExpression(precLowest)
			} else {
				d.Args = append(d.Args, p.parseExpression(precLowest))
			}
			if p.curIs(token.COMMA) {
				p.nextToken()
			}
		}
		p.expect(token.RPAREN)
	}
	p.skipNewlines()
	return d
}

func (p *Parser) parseFunctionDef(decs []*ast.Decorator) ast.Statement {
	tok := p.curToken // KW_DEF
	p.nextToken()
	name := ""
	if p.curIs(token.IDENT) {
		name = p.curToken.Lexeme
		p.nextToken()
	}
	fn := &ast.FunctionDef{Token: tok, Decorators: decs, Name: name}
	p.expect(token.LPAREN)
	for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
		if p.curIs(token.ASTERISK) {
			fn.VarArg = true
			p.nextToken()
		}
		pname := p.curToken.Lexeme
		p.expect(token.IDENT)
		var ann ast.TypeExpr
		if p.curIs(token.COLON) {
			p.nextToken()
			ann = p.parseExpression(precBitOr + 1)
		}
		fn.Params = append(fn.Params, ast.Param{Name: pname, Annotation: ann})
		if p.curIs(token.COMMA) {
			p.nextToken()
		}
	}
	p.expect(token.RPAREN)
	if p.curIs(token.ARROW) {
		p.nextToken()
		fn.ReturnType = p.parseExpression(precBitOr + 1)
	}
	fn.Body = p.parseBlock()
	return fn
}

func (p *Parser) parseAggregateDef(decs []*ast.Decorator) ast.Statement {
	tok := p.curToken
	kind := "struct"
	if p.curIs(token.KW_UNION) {
		kind = "union"
	}
	p.nextToken()
	name := p.curToken.Lexeme
	p.expect(token.IDENT)
	def := &ast.AggregateDef{Token: tok, Decorators: decs, Kind: kind, Name: name}
	if !p.expect(token.COLON) {
		return def
	}
	p.skipNewlines()
	if p.expect(token.INDENT) {
		for !p.curIs(token.DEDENT) && !p.curIs(token.EOF) {
			if p.curIs(token.KW_PASS) {
				p.nextToken()
				p.skipNewlines()
				continue
			}
			fname := p.curToken.Lexeme
			p.expect(token.IDENT)
			p.expect(token.COLON)
			ftype := p.parseExpression(precBitOr + 1)
			def.Fields = append(def.Fields, ast.AggregateField{Name: fname, Annotation: ftype})
			p.skipNewlines()
		}
		if p.curIs(token.DEDENT) {
			p.nextToken()
		}
	}
	return def
}

func (p *Parser) parseEnumDef(decs []*ast.Decorator) ast.Statement {
	tok := p.curToken
	p.nextToken()
	name := p.curToken.Lexeme
	p.expect(token.IDENT)
	def := &ast.EnumDef{Token: tok, Decorators: decs, Name: name}
	if tagExpr, ok := decs0TagArg(decs); ok {
		def.TagType = tagExpr
	}
	if !p.expect(token.COLON) {
		return def
	}
	p.skipNewlines()
	if p.expect(token.INDENT) {
		var nextTag int64
		for !p.curIs(token.DEDENT) && !p.curIs(token.EOF) {
			if p.curIs(token.KW_PASS) {
				p.nextToken()
				p.skipNewlines()
				continue
			}
			vname := p.curToken.Lexeme
			p.expect(token.IDENT)
			v := ast.EnumVariant{Name: vname}
			if p.curIs(token.LPAREN) {
				p.nextToken()
				v.Payload = p.parseExpression(precLowest)
				p.expect(token.RPAREN)
			}
			if p.curIs(token.ASSIGN) {
				p.nextToken()
				if p.curIs(token.INT) {
					n, _ := strconv.ParseInt(p.curToken.Lexeme, 10, 64)
					v.Tag = &n
					p.nextToken()
				}
			}
			if v.Tag == nil {
				tagged := nextTag
				v.Tag = &tagged
			}
			nextTag = *v.Tag + 1
			def.Variants = append(def.Variants, v)
			p.skipNewlines()
		}
		if p.curIs(token.DEDENT) {
			p.nextToken()
		}
	}
	return def
}

func decs0TagArg(decs []*ast.Decorator) (ast.Expression, bool) {
	for _, d := range decs {
		if d.Name == "enum" && len(d.Args) > 0 {
			return d.Args[0], true
		}
	}
	return nil, false
}

func (p *Parser) parseIf() ast.Statement {
	tok := p.curToken
	p.nextToken()
	cond := p.parseExpression(precLowest)
	then := p.parseBlock()
	ifs := &ast.IfStatement{Token: tok, Condition: cond, Then: then}
	p.skipNewlines()
	if p.curIs(token.KW_ELIF) {
		elifTok := p.curToken
		nested := p.parseIf()
		nested.(*ast.IfStatement).Token = elifTok
		ifs.Else = []ast.Statement{nested}
	} else if p.curIs(token.KW_ELSE) {
		p.nextToken()
		ifs.Else = p.parseBlock()
	}
	return ifs
}

func (p *Parser) parseWhile() ast.Statement {
	tok := p.curToken
	p.nextToken()
	cond := p.parseExpression(precLowest)
	body := p.parseBlock()
	return &ast.WhileStatement{Token: tok, Condition: cond, Body: body}
}

func (p *Parser) parseFor() ast.Statement {
	tok := p.curToken
	p.nextToken()
	target := p.parseTargetExpr()
	p.expect(token.KW_IN)
	iter := p.parseExpression(precLowest)
	body := p.parseBlock()
	fs := &ast.ForStatement{Token: tok, Target: target, Iterable: iter, Body: body}
	p.skipNewlines()
	if p.curIs(token.KW_ELSE) {
		p.nextToken()
		fs.Else = p.parseBlock()
	}
	return fs
}

// parseTargetExpr parses a for-loop binding target: a bare name or a
// parenthesized tuple of names for destructuring.
func (p *Parser) parseTargetExpr() ast.Expression {
	if p.curIs(token.LPAREN) {
		return p.parseGroupedOrTuple()
	}
	return p.parseIdentifier()
}

func (p *Parser) parseMatch() ast.Statement {
	tok := p.curToken
	p.nextToken()
	subject := p.parseExpression(precLowest)
	ms := &ast.MatchStatement{Token: tok, Subject: subject}
	if !p.expect(token.COLON) {
		return ms
	}
	p.skipNewlines()
	if p.expect(token.INDENT) {
		for p.curIs(token.KW_CASE) {
			ms.Cases = append(ms.Cases, p.parseMatchCase())
			p.skipNewlines()
		}
		if p.curIs(token.DEDENT) {
			p.nextToken()
		}
	}
	return ms
}

func (p *Parser) parseMatchCase() *ast.MatchCase {
	tok := p.curToken
	p.nextToken()
	pat := p.parsePattern()
	mc := &ast.MatchCase{Token: tok, Pattern: pat}
	if p.curIs(token.KW_IF) {
		p.nextToken()
		mc.Guard = p.parseExpression(precLowest)
	}
	mc.Body = p.parseBlock()
	return mc
}

func (p *Parser) parsePattern() ast.Pattern {
	first := p.parsePrimaryPattern()
	if p.curIs(token.PIPE) {
		alts := []ast.Pattern{first}
		for p.curIs(token.PIPE) {
			p.nextToken()
			alts = append(alts, p.parsePrimaryPattern())
		}
		return &ast.OrPattern{Token: first.GetToken(), Alts: alts}
	}
	return first
}

func (p *Parser) parsePrimaryPattern() ast.Pattern {
	tok := p.curToken
	switch {
	case p.curIs(token.IDENT) && p.curToken.Lexeme == "_":
		p.nextToken()
		return &ast.WildcardPattern{Token: tok}
	case p.curIs(token.INT), p.curIs(token.FLOAT), p.curIs(token.STRING), p.curIs(token.KW_TRUE), p.curIs(token.KW_FALSE):
		lit := p.parsePrimaryExpr()
		return &ast.LiteralPattern{Token: tok, Value: lit}
	case p.curIs(token.LPAREN):
		p.nextToken()
		tp := &ast.TuplePattern{Token: tok}
		for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
			tp.Elems = append(tp.Elems, p.parsePattern())
			if p.curIs(token.COMMA) {
				p.nextToken()
			}
		}
		p.expect(token.RPAREN)
		return tp
	case p.curIs(token.LBRACKET):
		p.nextToken()
		tp := &ast.TuplePattern{Token: tok, IsArray: true}
		for !p.curIs(token.RBRACKET) && !p.curIs(token.EOF) {
			tp.Elems = append(tp.Elems, p.parsePattern())
			if p.curIs(token.COMMA) {
				p.nextToken()
			}
		}
		p.expect(token.RBRACKET)
		return tp
	case p.curIs(token.IDENT):
		name := p.curToken.Lexeme
		p.nextToken()
		if p.curIs(token.DOT) {
			p.nextToken()
			variant := p.curToken.Lexeme
			p.expect(token.IDENT)
			cp := &ast.ConstructorPattern{Token: tok, Enum: name, Variant: variant}
			if p.curIs(token.LPAREN) {
				p.nextToken()
				cp.Payload = p.parsePattern()
				p.expect(token.RPAREN)
			}
			return cp
		}
		return &ast.BindPattern{Token: tok, Name: name}
	default:
		p.errorf(tok, "invalid pattern starting with %s", tok.Type)
		p.nextToken()
		return &ast.WildcardPattern{Token: tok}
	}
}

func (p *Parser) parseWithEffect() ast.Statement {
	tok := p.curToken
	p.nextToken()
	p.expect(token.IDENT) // literal "effect"
	p.expect(token.LPAREN)
	ws := &ast.WithEffectStmt{Token: tok, Overrides: map[string]ast.Expression{}}
	for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
		key := p.curToken.Lexeme
		p.expect(token.IDENT)
		p.expect(token.ASSIGN)
		val := p.parseExpression(precLowest)
		if key == "suffix" {
			ws.Suffix = val
		} else {
			ws.Overrides[key] = val
		}
		if p.curIs(token.COMMA) {
			p.nextToken()
		}
	}
	p.expect(token.RPAREN)
	ws.Body = p.parseBlock()
	return ws
}

// parseAssignOrExprStatement handles `cimport(...)` (recognized by callee
// name), `x: T = e`, `x = e`, `x += e`, and bare expression statements.
func (p *Parser) parseAssignOrExprStatement() ast.Statement {
	tok := p.curToken

	if p.curIs(token.IDENT) && p.curToken.Lexeme == "cimport" && p.peekIs(token.LPAREN) {
		return p.parseCImport()
	}

	if p.curIs(token.IDENT) && (p.peekIs(token.COLON) || p.peekIs(token.ASSIGN) ||
		p.peekIs(token.PLUS_ASSIGN) || p.peekIs(token.MINUS_ASSIGN) ||
		p.peekIs(token.ASTERISK_ASSIGN) || p.peekIs(token.SLASH_ASSIGN)) {
		target := p.parseIdentifier()
		return p.finishAssign(tok, target)
	}

	expr := p.parseExpression(precLowest)
	if p.curIs(token.ASSIGN) || p.curIs(token.PLUS_ASSIGN) || p.curIs(token.MINUS_ASSIGN) ||
		p.curIs(token.ASTERISK_ASSIGN) || p.curIs(token.SLASH_ASSIGN) {
		return p.finishAssign(tok, expr)
	}
	return &ast.ExpressionStatement{Token: tok, Expr: expr}
}

func (p *Parser) finishAssign(tok token.Token, target ast.Expression) ast.Statement {
	as := &ast.AssignStatement{Token: tok, Target: target}
	if p.curIs(token.COLON) {
		p.nextToken()
		as.Annotation = p.parseExpression(precBitOr + 1)
	}
	switch p.curToken.Type {
	case token.ASSIGN:
		p.nextToken()
	case token.PLUS_ASSIGN:
		as.AugOp = "+"
		p.nextToken()
	case token.MINUS_ASSIGN:
		as.AugOp = "-"
		p.nextToken()
	case token.ASTERISK_ASSIGN:
		as.AugOp = "*"
		p.nextToken()
	case token.SLASH_ASSIGN:
		as.AugOp = "/"
		p.nextToken()
	default:
		p.errorf(p.curToken, "expected assignment operator, got %s", p.curToken.Type)
	}
	as.Value = p.parseExpression(precLowest)
	return as
}

func (p *Parser) parseCImport() ast.Statement {
	tok := p.curToken
	p.nextToken() // "cimport"
	p.expect(token.LPAREN)
	ci := &ast.CImportStatement{Token: tok}
	first := true
	for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
		if first && p.curIs(token.STRING) {
			ci.HeaderPath = p.curToken.Literal
			p.nextToken()
			first = false
		} else if p.curIs(token.IDENT) && p.peekIs(token.ASSIGN) {
			key := p.curToken.Lexeme
			p.nextToken()
			p.nextToken()
			p.applyCImportKwarg(ci, key)
		} else {
			p.nextToken()
		}
		if p.curIs(token.COMMA) {
			p.nextToken()
		}
	}
	p.expect(token.RPAREN)
	return ci
}

func (p *Parser) applyCImportKwarg(ci *ast.CImportStatement, key string) {
	switch key {
	case "lib":
		if p.curIs(token.STRING) {
			ci.Lib = p.curToken.Literal
			p.nextToken()
		}
	case "compile_sources":
		ci.CompileSources = p.curIs(token.KW_TRUE)
		p.nextToken()
	case "sources":
		ci.Sources = p.parseStringList()
	case "objects":
		ci.Objects = p.parseStringList()
	case "include_dirs":
		ci.IncludeDirs = p.parseStringList()
	case "cflags":
		ci.CFlags = p.parseStringList()
	default:
		p.parseExpression(precLowest)
	}
}

func (p *Parser) parseStringList() []string {
	var out []string
	if !p.curIs(token.LBRACKET) {
		return out
	}
	p.nextToken()
	for !p.curIs(token.RBRACKET) && !p.curIs(token.EOF) {
		if p.curIs(token.STRING) {
			out = append(out, p.curToken.Literal)
			p.nextToken()
		}
		if p.curIs(token.COMMA) {
			p.nextToken()
		}
	}
	p.expect(token.RBRACKET)
	return out
}

// ---- expressions (Pratt) ----

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return precLowest
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curToken.Type]; ok {
		return pr
	}
	return precLowest
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix, ok := p.prefixFns[p.curToken.Type]
	if !ok {
		p.errorf(p.curToken, "unexpected token %s %q in expression", p.curToken.Type, p.curToken.Lexeme)
		p.nextToken()
		return nil
	}
	left := prefix()

	for !p.curIs(token.NEWLINE) && precedence < p.curPrecedence() {
		infix, ok := p.infixFns[p.curToken.Type]
		if !ok {
			return left
		}
		left = infix(left)
	}
	return left
}

func (p *Parser) parsePrimaryExpr() ast.Expression { return p.parseExpression(precCall) }

func (p *Parser) parseIdentifier() ast.Expression {
	tok := p.curToken
	id := &ast.Identifier{Token: tok, Value: tok.Lexeme}
	p.nextToken()
	if id.Value == "effect" && p.curIs(token.DOT) {
		p.nextToken()
		cap := p.curToken.Lexeme
		p.expect(token.IDENT)
		p.expect(token.DOT)
		member := p.curToken.Lexeme
		p.expect(token.IDENT)
		return &ast.EffectRef{Token: tok, Capability: cap, Member: member}
	}
	return id
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	tok := p.curToken
	n, err := strconv.ParseInt(tok.Lexeme, 10, 64)
	if err != nil {
		p.errorf(tok, "invalid integer literal %q", tok.Lexeme)
	}
	p.nextToken()
	return &ast.IntegerLiteral{Token: tok, Value: n}
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	tok := p.curToken
	f, err := strconv.ParseFloat(tok.Lexeme, 64)
	if err != nil {
		p.errorf(tok, "invalid float literal %q", tok.Lexeme)
	}
	p.nextToken()
	return &ast.FloatLiteral{Token: tok, Value: f}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	tok := p.curToken
	p.nextToken()
	return &ast.StringLiteral{Token: tok, Value: tok.Literal}
}

func (p *Parser) parseBoolLiteral() ast.Expression {
	tok := p.curToken
	p.nextToken()
	return &ast.BoolLiteral{Token: tok, Value: tok.Type == token.KW_TRUE}
}

func (p *Parser) parseNoneLiteral() ast.Expression {
	tok := p.curToken
	p.nextToken()
	return &ast.NoneLiteral{Token: tok}
}

func (p *Parser) parseUnary() ast.Expression {
	tok := p.curToken
	op := tok.Lexeme
	if tok.Type == token.KW_NOT {
		op = "not"
	}
	p.nextToken()
	right := p.parseExpression(precUnary)
	return &ast.UnaryExpr{Token: tok, Op: op, Right: right}
}

func (p *Parser) parseStarExpr() ast.Expression {
	tok := p.curToken
	p.nextToken()
	v := p.parseExpression(precUnary)
	return &ast.StarExpr{Token: tok, Value: v}
}

func (p *Parser) parseAssumeExpr() ast.Expression {
	tok := p.curToken
	p.nextToken()
	p.expect(token.LPAREN)
	ae := &ast.AssumeExpr{Token: tok}
	for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
		ae.Args = append(ae.Args, p.parseExpression(precLowest))
		if p.curIs(token.COMMA) {
			p.nextToken()
		}
	}
	p.expect(token.RPAREN)
	return ae
}

func (p *Parser) parseGroupedOrTuple() ast.Expression {
	tok := p.curToken
	p.nextToken()
	if p.curIs(token.RPAREN) {
		p.nextToken()
		return &ast.TupleLiteral{Token: tok}
	}
	first := p.parseExpression(precLowest)
	if p.curIs(token.COMMA) {
		tl := &ast.TupleLiteral{Token: tok, Elems: []ast.Expression{first}}
		for p.curIs(token.COMMA) {
			p.nextToken()
			if p.curIs(token.RPAREN) {
				break
			}
			tl.Elems = append(tl.Elems, p.parseExpression(precLowest))
		}
		p.expect(token.RPAREN)
		return tl
	}
	p.expect(token.RPAREN)
	return first
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	tok := p.curToken
	p.nextToken()
	al := &ast.ArrayLiteral{Token: tok}
	for !p.curIs(token.RBRACKET) && !p.curIs(token.EOF) {
		al.Elems = append(al.Elems, p.parseExpression(precLowest))
		if p.curIs(token.COMMA) {
			p.nextToken()
		}
	}
	p.expect(token.RBRACKET)
	return al
}

func (p *Parser) parseBinaryOrBoolOp(left ast.Expression) ast.Expression {
	tok := p.curToken
	op := tok.Lexeme
	prec := p.curPrecedence()
	if tok.Type == token.KW_AND || tok.Type == token.KW_OR {
		opName := "and"
		if tok.Type == token.KW_OR {
			opName = "or"
		}
		p.nextToken()
		right := p.parseExpression(prec)
		return &ast.BoolOpExpr{Token: tok, Op: opName, Left: left, Right: right}
	}
	p.nextToken()
	right := p.parseExpression(prec)
	return &ast.BinaryExpr{Token: tok, Left: left, Op: op, Right: right}
}

// parseCompare builds a chained CompareExpr: a < b < c parses as one node
// with Operands=[a,b,c], Ops=["<","<"], so the lowerer can single-evaluate b.
func (p *Parser) parseCompare(left ast.Expression) ast.Expression {
	tok := p.curToken
	ce := &ast.CompareExpr{Token: tok, Operands: []ast.Expression{left}}
	for compareOps[p.curToken.Type] {
		op := p.curToken.Lexeme
		prec := p.curPrecedence()
		p.nextToken()
		right := p.parseExpression(prec)
		ce.Ops = append(ce.Ops, op)
		ce.Operands = append(ce.Operands, right)
	}
	return ce
}

func (p *Parser) parseCall(callee ast.Expression) ast.Expression {
	tok := p.curToken
	p.nextToken()
	call := &ast.Call{Token: tok, Callee: callee, Kwargs: map[string]ast.Expression{}}
	for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
		if p.curIs(token.IDENT) && p.peekIs(token.ASSIGN) {
			key := p.curToken.Lexeme
			p.nextToken()
			p.nextToken()
			call.Kwargs[key] = p.parseExpression(precLowest)
		} else {
			starred := false
			if p.curIs(token.ASTERISK) {
				starred = true
				p.nextToken()
			}
			call.Args = append(call.Args, p.parseExpression(precLowest))
			call.Starred = append(call.Starred, starred)
		}
		if p.curIs(token.COMMA) {
			p.nextToken()
		}
	}
	p.expect(token.RPAREN)
	return call
}

func (p *Parser) parseSubscript(base ast.Expression) ast.Expression {
	tok := p.curToken
	p.nextToken()
	sub := &ast.Subscript{Token: tok, Base: base}
	for !p.curIs(token.RBRACKET) && !p.curIs(token.EOF) {
		if p.curIs(token.IDENT) && p.peekIs(token.COLON) {
			key := p.curToken.Lexeme
			p.nextToken()
			p.nextToken()
			sub.Items = append(sub.Items, ast.SubscriptItem{Key: key, Value: p.parseExpression(precLowest)})
		} else {
			sub.Items = append(sub.Items, ast.SubscriptItem{Value: p.parseExpression(precLowest)})
		}
		if p.curIs(token.COMMA) {
			p.nextToken()
		}
	}
	p.expect(token.RBRACKET)
	return sub
}

func (p *Parser) parseAttribute(base ast.Expression) ast.Expression {
	tok := p.curToken
	p.nextToken()
	name := p.curToken.Lexeme
	p.expect(token.IDENT)
	return &ast.Attribute{Token: tok, Base: base, Name: name}
}
