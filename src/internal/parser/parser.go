// Package parser 把 Ruby 子集源码解析为 ast.Node 语法树
package parser

import (
	"fmt"
	"strings"

	"github.com/VectorBits/Rubisol/src/internal/ast"
)

// ParseError 语法错误。Line/Column 为 0 表示位置未知
type ParseError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return "parse error: " + e.Msg
	}
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Msg)
}

// bailout unwinds the recursive descent on the first error.
type bailout struct{ err *ParseError }

// Parser is a recursive-descent parser over a token slice.
type Parser struct {
	toks []Token
	pos  int

	// noDo > 0 while parsing command arguments or loop conditions,
	// where `do` belongs to the enclosing construct.
	noDo int
}

// Parse parses src into a Program node. Errors are *ParseError.
func Parse(src string) (prog *ast.Node, err error) {
	toks, err := NewLexer(src).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			prog, err = nil, b.err
		}
	}()
	return p.parseProgram(), nil
}

// ---- token helpers ----

func (p *Parser) cur() Token { return p.toks[p.pos] }

func (p *Parser) peek(n int) Token {
	if i := p.pos + n; i < len(p.toks) {
		return p.toks[i]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) at(tt TokenType) bool { return p.cur().Type == tt }

func (p *Parser) atAny(tts ...TokenType) bool {
	for _, tt := range tts {
		if p.at(tt) {
			return true
		}
	}
	return false
}

func (p *Parser) next() Token {
	t := p.cur()
	if t.Type != TokenEOF {
		p.pos++
	}
	return t
}

func (p *Parser) accept(tt TokenType) bool {
	if p.at(tt) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(tt TokenType, what string) Token {
	if !p.at(tt) {
		p.failf(p.cur(), "expected %s, got %s", what, describe(p.cur()))
	}
	return p.next()
}

func (p *Parser) failf(tok Token, format string, args ...any) {
	panic(bailout{&ParseError{Line: tok.Pos.Line, Column: tok.Pos.Column, Msg: fmt.Sprintf(format, args...)}})
}

func (p *Parser) skipNewlines() {
	for p.at(TokenNewline) {
		p.next()
	}
}

func (p *Parser) skipTerms() {
	for p.at(TokenNewline) || p.at(TokenSemicolon) {
		p.next()
	}
}

func describe(t Token) string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenNewline:
		return "newline"
	case TokenIdent, TokenConst, TokenInt, TokenFloat, TokenIVar, TokenLabel:
		return fmt.Sprintf("%s %q", t.Type, t.Literal)
	case TokenString:
		return "string literal"
	case TokenSymbol:
		return fmt.Sprintf("symbol :%s", t.Literal)
	}
	return fmt.Sprintf("'%s'", t.Literal)
}

func withValue(n *ast.Node, v string) *ast.Node {
	n.Value = v
	return n
}

func negate(n *ast.Node) *ast.Node {
	return withValue(ast.New(ast.KindUnary, n.Pos, n), "!")
}

// ---- statements ----

func (p *Parser) parseProgram() *ast.Node {
	prog := ast.New(ast.KindProgram, ast.Pos{})
	prog.Children = p.parseStatements(TokenEOF)
	return prog
}

// parseStatements reads statements until one of terms (or EOF) is the current token.
func (p *Parser) parseStatements(terms ...TokenType) []*ast.Node {
	var stmts []*ast.Node
	for {
		p.skipTerms()
		if p.at(TokenEOF) || p.atAny(terms...) {
			return stmts
		}
		stmts = append(stmts, p.parseStatement())
		if p.at(TokenNewline) || p.at(TokenSemicolon) || p.at(TokenEOF) || p.atAny(terms...) {
			continue
		}
		p.failf(p.cur(), "unexpected %s", describe(p.cur()))
	}
}

func (p *Parser) parseBody(terms ...TokenType) *ast.Node {
	body := ast.New(ast.KindBody, p.cur().Pos)
	body.Children = p.parseStatements(terms...)
	return body
}

func (p *Parser) parseStatement() *ast.Node {
	var stmt *ast.Node
	switch p.cur().Type {
	case TokenClass:
		stmt = p.parseClass()
	case TokenModule:
		stmt = p.parseModule()
	case TokenIf:
		stmt = p.parseIf()
	case TokenUnless:
		stmt = p.parseUnless()
	case TokenWhile, TokenUntil:
		stmt = p.parseWhile()
	case TokenFor:
		stmt = p.parseFor()
	case TokenReturn:
		stmt = p.parseReturn()
	default:
		stmt = lowerDirective(p.parseExpression())
	}
	return p.parseModifiers(stmt)
}

// parseModifiers wraps stmt in trailing `if`/`unless`/`while`/`until` modifiers.
func (p *Parser) parseModifiers(stmt *ast.Node) *ast.Node {
	for {
		tok := p.cur()
		switch tok.Type {
		case TokenIf, TokenUnless, TokenWhile, TokenUntil:
		default:
			return stmt
		}
		p.next()
		cond := p.parseExpression()
		if tok.Type == TokenUnless || tok.Type == TokenUntil {
			cond = negate(cond)
		}
		body := ast.New(ast.KindBody, stmt.Pos, stmt)
		kind := ast.KindIf
		if tok.Type == TokenWhile || tok.Type == TokenUntil {
			kind = ast.KindWhile
		}
		stmt = ast.New(kind, stmt.Pos, cond, body)
	}
}

// lowerDirective turns `require 'x'` into Import and `include M` into Include.
// require(cond, "msg") keeps its call shape.
func lowerDirective(n *ast.Node) *ast.Node {
	if !n.Is(ast.KindCall) || len(n.Children) != 1 {
		return n
	}
	args := n.Children[0]
	if len(args.Children) != 1 {
		return n
	}
	arg := args.Children[0]
	switch {
	case (n.Value == "require" || n.Value == "require_relative") && arg.Is(ast.KindStr):
		return ast.Leaf(ast.KindImport, n.Pos, arg.Value)
	case n.Value == "include" && arg.Is(ast.KindConst):
		return ast.Leaf(ast.KindInclude, n.Pos, arg.Value)
	}
	return n
}

func (p *Parser) parseConstPath(what string) *ast.Node {
	tok := p.expect(TokenConst, what)
	name := tok.Literal
	for p.at(TokenColon2) && p.peek(1).Type == TokenConst {
		p.next()
		name += "::" + p.next().Literal
	}
	return ast.Leaf(ast.KindConst, tok.Pos, name)
}

func (p *Parser) parseClass() *ast.Node {
	tok := p.next()
	if p.at(TokenShl) {
		p.failf(p.cur(), "singleton class (class << self) is not supported")
	}
	name := p.parseConstPath("class name")
	var parent *ast.Node
	if p.accept(TokenLt) {
		parent = p.parseConstPath("parent class name")
	}
	body := p.parseBody(TokenEnd)
	p.expect(TokenEnd, "'end' to close class "+name.Value)
	return ast.New(ast.KindClass, tok.Pos, name, parent, body)
}

func (p *Parser) parseModule() *ast.Node {
	tok := p.next()
	name := p.parseConstPath("module name")
	body := p.parseBody(TokenEnd)
	p.expect(TokenEnd, "'end' to close module "+name.Value)
	return ast.New(ast.KindModule, tok.Pos, name, body)
}

func (p *Parser) parseDef() *ast.Node {
	tok := p.next()
	var name string
	if p.accept(TokenSelf) {
		p.expect(TokenDot, "'.' after self")
		name = "self." + p.methodName()
	} else {
		name = p.methodName()
	}
	// setter: def value=(v)
	if p.at(TokenAssign) && !p.cur().SpaceBefore && p.peek(1).Type == TokenLParen {
		p.next()
		name += "="
	}

	params := ast.New(ast.KindParams, p.cur().Pos)
	switch {
	case p.at(TokenLParen):
		p.next()
		params.Children = p.parseParamList(TokenRParen)
		p.expect(TokenRParen, "')' after parameters")
	case !p.at(TokenNewline) && !p.at(TokenSemicolon):
		params.Children = p.parseParamList(TokenNewline)
	}

	body := p.parseBody(TokenEnd)
	p.expect(TokenEnd, "'end' to close def "+name)
	return withValue(ast.New(ast.KindDef, tok.Pos, params, body), name)
}

func (p *Parser) methodName() string {
	tok := p.cur()
	if tok.Type != TokenIdent {
		p.failf(tok, "expected method name, got %s", describe(tok))
	}
	p.next()
	return tok.Literal
}

func (p *Parser) parseParamList(closing TokenType) []*ast.Node {
	var params []*ast.Node
	for !p.at(closing) && !p.at(TokenEOF) {
		tok := p.cur()
		switch tok.Type {
		case TokenIdent:
			p.next()
			param := ast.Leaf(ast.KindParam, tok.Pos, tok.Literal)
			if p.accept(TokenAssign) {
				param.Children = []*ast.Node{p.parseTernary()}
			}
			params = append(params, param)
		case TokenLabel:
			// keyword parameter, optional default
			p.next()
			param := ast.Leaf(ast.KindParam, tok.Pos, tok.Literal)
			if !p.at(TokenComma) && !p.at(closing) {
				param.Children = []*ast.Node{p.parseTernary()}
			}
			params = append(params, param)
		case TokenStar, TokenPow:
			p.failf(tok, "splat parameters are not supported")
		default:
			p.failf(tok, "expected parameter name, got %s", describe(tok))
		}
		if !p.accept(TokenComma) {
			break
		}
	}
	return params
}

// parseCondition parses the condition of if/while/for, where `do` and `then` are separators.
func (p *Parser) parseCondition() *ast.Node {
	saved := p.noDo
	p.noDo++
	cond := p.parseExpression()
	p.noDo = saved
	if !p.accept(TokenThen) {
		p.accept(TokenDo)
	}
	return cond
}

func (p *Parser) parseIf() *ast.Node {
	tok := p.next() // if / elsif
	cond := p.parseCondition()
	body := p.parseBody(TokenElsif, TokenElse, TokenEnd)
	if p.at(TokenElsif) {
		// elsif 链共用最后一个 end
		return ast.New(ast.KindIf, tok.Pos, cond, body, p.parseIf())
	}
	var els *ast.Node
	if p.accept(TokenElse) {
		els = p.parseBody(TokenEnd)
	}
	p.expect(TokenEnd, "'end' to close if")
	return ast.New(ast.KindIf, tok.Pos, cond, body, els)
}

func (p *Parser) parseUnless() *ast.Node {
	tok := p.next()
	cond := negate(p.parseCondition())
	body := p.parseBody(TokenElse, TokenEnd)
	var els *ast.Node
	if p.accept(TokenElse) {
		els = p.parseBody(TokenEnd)
	}
	p.expect(TokenEnd, "'end' to close unless")
	return ast.New(ast.KindIf, tok.Pos, cond, body, els)
}

func (p *Parser) parseWhile() *ast.Node {
	tok := p.next()
	cond := p.parseCondition()
	if tok.Type == TokenUntil {
		cond = negate(cond)
	}
	body := p.parseBody(TokenEnd)
	p.expect(TokenEnd, "'end' to close "+tok.Literal)
	return ast.New(ast.KindWhile, tok.Pos, cond, body)
}

func (p *Parser) parseFor() *ast.Node {
	tok := p.next()
	v := p.expect(TokenIdent, "loop variable")
	p.expect(TokenIn, "'in'")
	iter := p.parseCondition()
	body := p.parseBody(TokenEnd)
	p.expect(TokenEnd, "'end' to close for")
	return ast.New(ast.KindFor, tok.Pos, ast.Leaf(ast.KindIdent, v.Pos, v.Literal), iter, body)
}

func (p *Parser) parseReturn() *ast.Node {
	tok := p.next()
	var val *ast.Node
	if !p.atStatementEnd() {
		val = p.parseExpression()
		if p.at(TokenComma) {
			p.failf(p.cur(), "multiple return values are not supported")
		}
	}
	return ast.New(ast.KindReturn, tok.Pos, val)
}

func (p *Parser) atStatementEnd() bool {
	return p.atAny(TokenNewline, TokenSemicolon, TokenEOF, TokenEnd, TokenRBrace,
		TokenIf, TokenUnless, TokenWhile, TokenUntil, TokenElse, TokenElsif)
}

// ---- expressions ----

// 二元运算优先级，数字越大越紧
var binaryPrec = map[TokenType]int{
	TokenOrOr:    1,
	TokenAndAnd:  2,
	TokenEq:      3,
	TokenNe:      3,
	TokenLt:      4,
	TokenGt:      4,
	TokenLe:      4,
	TokenGe:      4,
	TokenShl:     5,
	TokenPlus:    6,
	TokenMinus:   6,
	TokenStar:    7,
	TokenSlash:   7,
	TokenPercent: 7,
	TokenPow:     9,
}

// parseExpression handles the lowest-precedence layer: not / and / or.
func (p *Parser) parseExpression() *ast.Node {
	left := p.parseNot()
	for p.at(TokenAnd) || p.at(TokenOr) {
		tok := p.next()
		p.skipNewlines()
		op := "&&"
		if tok.Type == TokenOr {
			op = "||"
		}
		right := p.parseNot()
		left = withValue(ast.New(ast.KindBinary, left.Pos, left, right), op)
	}
	return left
}

func (p *Parser) parseNot() *ast.Node {
	if p.at(TokenNot) {
		tok := p.next()
		return withValue(ast.New(ast.KindUnary, tok.Pos, p.parseNot()), "!")
	}
	return p.parseAssignment()
}

func (p *Parser) parseAssignment() *ast.Node {
	left := p.parseTernary()
	tok := p.cur()
	if tok.Type != TokenAssign && tok.Type != TokenOpAssign {
		return left
	}
	switch {
	case left.Is(ast.KindIdent), left.Is(ast.KindIVar), left.Is(ast.KindIndex), left.Is(ast.KindConst):
	case left.Is(ast.KindSend) && len(left.Children) == 2 && len(left.Children[1].Children) == 0:
	default:
		p.failf(tok, "invalid assignment target %s", left.Kind)
	}
	p.next()
	p.skipNewlines()
	right := p.parseAssignment()
	if tok.Type == TokenAssign {
		return ast.New(ast.KindAssign, left.Pos, left, right)
	}
	return withValue(ast.New(ast.KindOpAssign, left.Pos, left, right), strings.TrimSuffix(tok.Literal, "="))
}

func (p *Parser) parseTernary() *ast.Node {
	cond := p.parseRange()
	if !p.at(TokenQuestion) {
		return cond
	}
	p.next()
	p.skipNewlines()
	var then *ast.Node
	if p.at(TokenLabel) {
		// `c ? a: b` lexes a: as a label
		lt := p.next()
		then = ast.Leaf(ast.KindIdent, lt.Pos, lt.Literal)
	} else {
		then = p.parseTernary()
		p.skipNewlines()
		p.expect(TokenColon, "':' in conditional expression")
	}
	p.skipNewlines()
	els := p.parseTernary()
	return ast.New(ast.KindTernary, cond.Pos, cond, then, els)
}

func (p *Parser) parseRange() *ast.Node {
	lo := p.parseBinary(1)
	if !p.at(TokenDot2) && !p.at(TokenDot3) {
		return lo
	}
	tok := p.next()
	hi := p.parseBinary(1)
	return withValue(ast.New(ast.KindRange, lo.Pos, lo, hi), tok.Literal)
}

func (p *Parser) parseBinary(minPrec int) *ast.Node {
	left := p.parseUnary()
	for {
		tok := p.cur()
		prec, ok := binaryPrec[tok.Type]
		if !ok || prec < minPrec {
			return left
		}
		p.next()
		p.skipNewlines()
		nextMin := prec + 1
		if tok.Type == TokenPow {
			nextMin = prec // 右结合
		}
		right := p.parseBinary(nextMin)
		left = withValue(ast.New(ast.KindBinary, left.Pos, left, right), tok.Literal)
	}
}

func (p *Parser) parseUnary() *ast.Node {
	tok := p.cur()
	switch tok.Type {
	case TokenBang:
		p.next()
		return withValue(ast.New(ast.KindUnary, tok.Pos, p.parseUnary()), "!")
	case TokenMinus:
		p.next()
		// -2 ** 2 == -(2 ** 2)
		operand := p.parseBinary(binaryPrec[TokenPow])
		return withValue(ast.New(ast.KindUnary, tok.Pos, operand), "-")
	case TokenPlus:
		p.next()
		return p.parseUnary()
	}
	return p.parsePostfix(p.parsePrimary())
}

func (p *Parser) parsePrimary() *ast.Node {
	tok := p.cur()
	leaf := func(kind ast.Kind) *ast.Node {
		p.next()
		return ast.Leaf(kind, tok.Pos, tok.Literal)
	}
	switch tok.Type {
	case TokenInt:
		return leaf(ast.KindInt)
	case TokenFloat:
		return leaf(ast.KindFloat)
	case TokenString:
		return leaf(ast.KindStr)
	case TokenSymbol:
		return leaf(ast.KindSym)
	case TokenTrue:
		return leaf(ast.KindTrue)
	case TokenFalse:
		return leaf(ast.KindFalse)
	case TokenNil:
		return leaf(ast.KindNil)
	case TokenSelf:
		return leaf(ast.KindSelf)
	case TokenIVar:
		return leaf(ast.KindIVar)
	case TokenConst:
		return p.parseConstPath("constant")
	case TokenIdent:
		return p.parseIdentifier()
	case TokenDef:
		return p.parseDef()
	case TokenLParen:
		p.next()
		saved := p.noDo
		p.noDo = 0
		inner := p.parseExpression()
		p.noDo = saved
		p.expect(TokenRParen, "')'")
		return inner
	case TokenLBracket:
		return p.parseArray()
	case TokenLBrace:
		return p.parseHash()
	case TokenLabel:
		p.failf(tok, "unexpected label %q outside of arguments", tok.Literal+":")
	}
	p.failf(tok, "unexpected %s", describe(tok))
	return nil
}

// parseIdentifier decides between a local variable reference and a receiver-less call.
func (p *Parser) parseIdentifier() *ast.Node {
	tok := p.next()
	var args *ast.Node
	switch {
	case p.at(TokenLParen) && !p.cur().SpaceBefore:
		args = p.parseParenArgs()
	case p.canStartCommandArg():
		args = p.parseCommandArgs()
	case p.at(TokenLBrace) || p.at(TokenDo) && p.noDo == 0:
		// loop do ... end
		args = ast.New(ast.KindArgs, tok.Pos)
	default:
		return ast.Leaf(ast.KindIdent, tok.Pos, tok.Literal)
	}
	return withValue(ast.New(ast.KindCall, tok.Pos, args, p.parseBlockOpt()), tok.Literal)
}

// canStartCommandArg reports whether the current token begins the first argument
// of a call written without parentheses (`emit :Transfer, a`).
func (p *Parser) canStartCommandArg() bool {
	t := p.cur()
	if !t.SpaceBefore {
		return false
	}
	switch t.Type {
	case TokenInt, TokenFloat, TokenString, TokenSymbol, TokenLabel, TokenIVar, TokenIdent, TokenConst,
		TokenTrue, TokenFalse, TokenNil, TokenSelf, TokenDef, TokenLParen:
		return true
	case TokenBang:
		return !p.peek(1).SpaceBefore
	}
	return false
}

func (p *Parser) parseCommandArgs() *ast.Node {
	saved := p.noDo
	p.noDo++
	args := p.parseArgList(TokenEOF)
	p.noDo = saved
	return args
}

// parseParenArgs parses `(a, b, k: v)`. The Args node carries Value "()" so that
// `x.pop()` and `x.length` stay distinguishable.
func (p *Parser) parseParenArgs() *ast.Node {
	p.expect(TokenLParen, "'('")
	saved := p.noDo
	p.noDo = 0
	args := p.parseArgList(TokenRParen)
	p.noDo = saved
	p.expect(TokenRParen, "')' after arguments")
	args.Value = "()"
	return args
}

// parseArgList reads comma separated arguments. Trailing `k: v` / `k => v` pairs are
// collected into a final Hash argument. closing == TokenEOF means no closing bracket.
func (p *Parser) parseArgList(closing TokenType) *ast.Node {
	args := ast.New(ast.KindArgs, p.cur().Pos)
	var pairs []*ast.Node
	for {
		if closing != TokenEOF {
			p.skipNewlines()
			if p.at(closing) {
				break
			}
		}
		tok := p.cur()
		if tok.Type == TokenLabel {
			p.next()
			p.skipNewlines()
			key := ast.Leaf(ast.KindSym, tok.Pos, tok.Literal)
			pairs = append(pairs, ast.New(ast.KindPair, tok.Pos, key, p.parseTernary()))
		} else {
			arg := p.parseTernary()
			if p.accept(TokenArrow) {
				p.skipNewlines()
				pairs = append(pairs, ast.New(ast.KindPair, arg.Pos, arg, p.parseTernary()))
			} else {
				if len(pairs) > 0 {
					p.failf(tok, "positional argument after keyword arguments")
				}
				args.Children = append(args.Children, arg)
			}
		}
		if !p.accept(TokenComma) {
			break
		}
		p.skipNewlines()
	}
	if len(pairs) > 0 {
		args.Children = append(args.Children, ast.New(ast.KindHash, pairs[0].Pos, pairs...))
	}
	return args
}

func (p *Parser) parseBlockOpt() *ast.Node {
	switch {
	case p.at(TokenDo) && p.noDo == 0:
		return p.parseBlock(TokenEnd, "'end' to close do block")
	case p.at(TokenLBrace):
		return p.parseBlock(TokenRBrace, "'}' to close block")
	}
	return nil
}

func (p *Parser) parseBlock(closing TokenType, what string) *ast.Node {
	tok := p.next()
	saved := p.noDo
	p.noDo = 0

	params := ast.New(ast.KindBlockParams, p.cur().Pos)
	if p.accept(TokenPipe) {
		for !p.at(TokenPipe) {
			v := p.cur()
			if v.Type != TokenIdent {
				p.failf(v, "expected block parameter, got %s", describe(v))
			}
			p.next()
			params.Children = append(params.Children, ast.Leaf(ast.KindIdent, v.Pos, v.Literal))
			if !p.accept(TokenComma) {
				break
			}
		}
		p.expect(TokenPipe, "'|' after block parameters")
	}
	body := p.parseBody(closing)
	p.expect(closing, what)
	p.noDo = saved
	return ast.New(ast.KindBlock, tok.Pos, params, body)
}

func (p *Parser) parsePostfix(n *ast.Node) *ast.Node {
	for {
		tok := p.cur()
		switch {
		case tok.Type == TokenDot || tok.Type == TokenNewline && p.dotOnNextLine():
			p.skipNewlines()
			p.next()
			p.skipNewlines()
			n = p.parseSend(n)
		case tok.Type == TokenLBracket && !tok.SpaceBefore:
			p.next()
			saved := p.noDo
			p.noDo = 0
			idx := p.parseExpression()
			p.noDo = saved
			p.expect(TokenRBracket, "']'")
			n = ast.New(ast.KindIndex, n.Pos, n, idx)
		default:
			return n
		}
	}
}

// dotOnNextLine supports leading-dot method chains split across lines.
func (p *Parser) dotOnNextLine() bool {
	i := 0
	for p.peek(i).Type == TokenNewline {
		i++
	}
	return p.peek(i).Type == TokenDot
}

func (p *Parser) parseSend(recv *ast.Node) *ast.Node {
	nameTok := p.next()
	switch nameTok.Type {
	case TokenIdent, TokenConst:
	default:
		if _, kw := keywords[nameTok.Literal]; !kw {
			p.failf(nameTok, "expected method name after '.', got %s", describe(nameTok))
		}
	}

	var args *ast.Node
	switch {
	case p.at(TokenLParen) && !p.cur().SpaceBefore:
		args = p.parseParenArgs()
	case p.canStartCommandArg():
		args = p.parseCommandArgs()
	default:
		args = ast.New(ast.KindArgs, nameTok.Pos)
	}
	return withValue(ast.New(ast.KindSend, recv.Pos, recv, args, p.parseBlockOpt()), nameTok.Literal)
}

func (p *Parser) parseArray() *ast.Node {
	tok := p.next()
	saved := p.noDo
	p.noDo = 0
	arr := ast.New(ast.KindArray, tok.Pos)
	for !p.at(TokenRBracket) {
		arr.Children = append(arr.Children, p.parseTernary())
		if !p.accept(TokenComma) {
			break
		}
	}
	p.noDo = saved
	p.expect(TokenRBracket, "']' to close array")
	return arr
}

func (p *Parser) parseHash() *ast.Node {
	tok := p.next()
	saved := p.noDo
	p.noDo = 0
	h := ast.New(ast.KindHash, tok.Pos)
	for {
		p.skipNewlines()
		if p.at(TokenRBrace) {
			break
		}
		kt := p.cur()
		var key *ast.Node
		if kt.Type == TokenLabel {
			p.next()
			key = ast.Leaf(ast.KindSym, kt.Pos, kt.Literal)
		} else {
			key = p.parseTernary()
			p.skipNewlines()
			p.expect(TokenArrow, "'=>' in hash literal")
		}
		p.skipNewlines()
		h.Children = append(h.Children, ast.New(ast.KindPair, kt.Pos, key, p.parseTernary()))
		p.skipNewlines()
		if !p.accept(TokenComma) {
			break
		}
	}
	p.skipNewlines()
	p.noDo = saved
	p.expect(TokenRBrace, "'}' to close hash")
	return h
}
