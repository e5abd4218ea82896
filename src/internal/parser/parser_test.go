package parser

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/VectorBits/Rubisol/src/internal/ast"
)

// sexp renders a tree without positions so expectations stay readable.
func sexp(n *ast.Node) string {
	var sb strings.Builder
	sb.WriteString("(" + n.Kind.String())
	if n.Value != "" {
		sb.WriteString(" " + n.Value)
	}
	for _, c := range n.Children {
		sb.WriteString(" " + sexp(c))
	}
	sb.WriteString(")")
	return sb.String()
}

func TestNextToken(t *testing.T) {
	input := "def ok?(a, b = 1_000) x.nil? end :sym name: 0x1F 1.5 1..3"

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenDef, "def"},
		{TokenIdent, "ok?"},
		{TokenLParen, "("},
		{TokenIdent, "a"},
		{TokenComma, ","},
		{TokenIdent, "b"},
		{TokenAssign, "="},
		{TokenInt, "1000"},
		{TokenRParen, ")"},
		{TokenIdent, "x"},
		{TokenDot, "."},
		{TokenIdent, "nil?"},
		{TokenEnd, "end"},
		{TokenSymbol, "sym"},
		{TokenLabel, "name"},
		{TokenInt, "0x1F"},
		{TokenFloat, "1.5"},
		{TokenInt, "1"},
		{TokenDot2, ".."},
		{TokenInt, "3"},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q", i, tt.expectedType, tok.Type)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestLexerNewlines(t *testing.T) {
	toks, err := NewLexer("foo(1,\n 2)\n# comment\n=begin\nignored\n=end\nbar").Tokenize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []string
	for _, tok := range toks {
		got = append(got, tok.Type.String())
	}
	want := "IDENT ( INT , INT ) NEWLINE NEWLINE NEWLINE IDENT EOF"
	if strings.Join(got, " ") != want {
		t.Fatalf("token stream wrong.\nexpected=%q\ngot=     %q", want, strings.Join(got, " "))
	}
	if last := toks[len(toks)-2]; last.Pos.Line != 7 {
		t.Fatalf("bar should be on line 7, got=%d", last.Pos.Line)
	}
}

func TestStringEscapes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"a\"b"`, `a"b`},
		{`"tab\tend"`, "tab\tend"},
		{`'it\'s'`, "it's"},
		{`'raw\n'`, `raw\n`},
	}
	for i, tt := range tests {
		tok := NewLexer(tt.input).NextToken()
		if tok.Type != TokenString || tok.Literal != tt.want {
			t.Fatalf("tests[%d] - expected=%q, got=%s", i, tt.want, tok)
		}
	}
}

func TestParseExpressions(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1 + 2 * 3", "(binary + (int 1) (binary * (int 2) (int 3)))"},
		{"2 ** 3 ** 4", "(binary ** (int 2) (binary ** (int 3) (int 4)))"},
		{"-2 ** 2", "(unary - (binary ** (int 2) (int 2)))"},
		{"a && b || c", "(binary || (binary && (ident a) (ident b)) (ident c))"},
		{"!a == b", "(binary == (unary ! (ident a)) (ident b))"},
		{"not a and b", "(binary && (unary ! (ident a)) (ident b))"},
		{"x = y = 1", "(assign (ident x) (assign (ident y) (int 1)))"},
		{"@total += amount", "(op-assign + (ivar total) (ident amount))"},
		{"@balances[msg.sender] -= 1", "(op-assign - (index (ivar balances) (send sender (ident msg) (args))) (int 1))"},
		{"c ? 1 : 2", "(ternary (ident c) (int 1) (int 2))"},
		{"emit :Transfer, from, 1", "(call emit (args (sym Transfer) (ident from) (int 1)))"},
		{`require(x > 0, "bad")`, "(call require (args () (binary > (ident x) (int 0)) (str bad)))"},
		{"require 'token'", "(import token)"},
		{"include Ownable", "(include Ownable)"},
		{`raise "no" unless ok`, "(if (unary ! (ident ok)) (body (call raise (args (str no)))))"},
		{"xs.each do |x|\n  t += x\nend", "(send each (ident xs) (args) (block (block-params (ident x)) (body (op-assign + (ident t) (ident x)))))"},
		{"xs.each { |x| y << x }", "(send each (ident xs) (args) (block (block-params (ident x)) (body (binary << (ident y) (ident x)))))"},
		{"(1..n).each do |i|\nend", "(send each (range .. (int 1) (ident n)) (args) (block (block-params (ident i)) (body)))"},
		{"transfer(to: a, amount: 5)", "(call transfer (args () (hash (pair (sym to) (ident a)) (pair (sym amount) (int 5)))))"},
		{"h = { 'a' => 1, b: 2 }", "(assign (ident h) (hash (pair (str a) (int 1)) (pair (sym b) (int 2))))"},
		{"x.nil?", "(send nil? (ident x) (args))"},
		{"1_000_000", "(int 1000000)"},
		{"foo\n  .bar", "(send bar (ident foo) (args))"},
		{"sig :mint, to: :address", "(call sig (args (sym mint) (hash (pair (sym to) (sym address)))))"},
	}

	for i, tt := range tests {
		prog, err := Parse(tt.input)
		if err != nil {
			t.Fatalf("tests[%d] - %q: unexpected error: %v", i, tt.input, err)
		}
		if len(prog.Children) != 1 {
			t.Fatalf("tests[%d] - expected 1 statement, got=%d", i, len(prog.Children))
		}
		if got := sexp(prog.Children[0]); got != tt.expected {
			t.Fatalf("tests[%d] - %q\nexpected=%s\ngot=     %s", i, tt.input, tt.expected, got)
		}
	}
}

func TestParseControlFlow(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{
			"if a\n x = 1\nelsif b\n x = 2\nelse\n x = 3\nend",
			"(if (ident a) (body (assign (ident x) (int 1))) (if (ident b) (body (assign (ident x) (int 2))) (body (assign (ident x) (int 3)))))",
		},
		{
			"while i < n do\n i += 1\nend",
			"(while (binary < (ident i) (ident n)) (body (op-assign + (ident i) (int 1))))",
		},
		{"until done\nend", "(while (unary ! (ident done)) (body))"},
		{
			"for x in xs\n s += x\nend",
			"(for (ident x) (ident xs) (body (op-assign + (ident s) (ident x))))",
		},
		{"unless ok then x = 1 end", "(if (unary ! (ident ok)) (body (assign (ident x) (int 1))))"},
		{"return if done", "(if (ident done) (body (return)))"},
		{"def f(a, b = 2); a + b; end", "(def f (params (param a) (param b (int 2))) (body (binary + (ident a) (ident b))))"},
		{"private def _burn(amount)\nend", "(call private (args (def _burn (params (param amount)) (body))))"},
	}

	for i, tt := range tests {
		prog, err := Parse(tt.input)
		if err != nil {
			t.Fatalf("tests[%d] - %q: unexpected error: %v", i, tt.input, err)
		}
		if got := sexp(prog.Children[0]); got != tt.expected {
			t.Fatalf("tests[%d] - %q\nexpected=%s\ngot=     %s", i, tt.input, tt.expected, got)
		}
	}
}

const tokenSource = `
require 'ownable'

class Token < Base
  include Ownable
  attr_reader :owner

  def initialize(name, supply = 100)
    @name = name
    @supply = supply
    @owner = msg.sender
  end

  def _mint(to, amount)
    @balances[to] += amount
  end

  def total?
    @supply > 0
  end
end
`

func TestParseClass(t *testing.T) {
	prog, err := Parse(tokenSource)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ast.Verify(prog); err != nil {
		t.Fatalf("shape error: %v", err)
	}

	classes := prog.FindNodes(ast.KindClass)
	if len(classes) != 1 {
		t.Fatalf("expected 1 class, got=%d", len(classes))
	}
	name, parent, body := ast.ClassParts(classes[0])
	if name.Value != "Token" || parent == nil || parent.Value != "Base" {
		t.Fatalf("class header wrong: %s < %v", name.Value, parent)
	}
	if !body.Children[0].Is(ast.KindInclude) || body.Children[0].Value != "Ownable" {
		t.Fatalf("expected include first, got=%s", sexp(body.Children[0]))
	}

	defs := prog.FindNodes(ast.KindDef)
	want := []string{"initialize", "_mint", "total?"}
	if len(defs) != len(want) {
		t.Fatalf("expected %d defs, got=%d", len(want), len(defs))
	}
	for i, d := range defs {
		if d.Value != want[i] {
			t.Fatalf("defs[%d] - expected=%q, got=%q", i, want[i], d.Value)
		}
	}
	if imports := prog.FindNodes(ast.KindImport); len(imports) != 1 || imports[0].Value != "ownable" {
		t.Fatalf("import not found")
	}
	if defs[0].Pos.Line != 8 {
		t.Fatalf("initialize should start on line 8, got=%d", defs[0].Pos.Line)
	}
}

func TestClassCount(t *testing.T) {
	for n := 0; n <= 4; n++ {
		var sb strings.Builder
		for i := 0; i < n; i++ {
			fmt.Fprintf(&sb, "class C%d\n  def initialize\n  end\nend\n\n", i)
		}
		prog, err := Parse(sb.String())
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if got := len(prog.FindNodes(ast.KindClass)); got != n {
			t.Fatalf("n=%d: expected %d classes, got=%d", n, n, got)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input  string
		line   int
		column int
		msg    string
	}{
		{"class\nend", 1, 6, "expected class name"},
		{"def foo(a\n", 2, 1, "expected ')' after parameters"},
		{"x = `ls`", 1, 5, "backtick"},
		{"class A\n  def f\n  end\n", 4, 1, "'end' to close class A"},
		{"@@count = 1", 1, 1, "class variables"},
		{"a, b = 1, 2", 1, 2, "unexpected ','"},
		{"def f(*args)\nend", 1, 7, "splat"},
		{"'abc", 1, 1, "unterminated string"},
		{"1 = 2", 1, 3, "invalid assignment target"},
	}

	for i, tt := range tests {
		_, err := Parse(tt.input)
		if err == nil {
			t.Fatalf("tests[%d] - %q: expected error", i, tt.input)
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("tests[%d] - expected *ParseError, got=%T", i, err)
		}
		if pe.Line != tt.line || pe.Column != tt.column {
			t.Fatalf("tests[%d] - %q position wrong. expected=%d:%d, got=%d:%d (%s)",
				i, tt.input, tt.line, tt.column, pe.Line, pe.Column, pe.Msg)
		}
		if !strings.Contains(pe.Msg, tt.msg) {
			t.Fatalf("tests[%d] - message wrong. expected to contain %q, got=%q", i, tt.msg, pe.Msg)
		}
	}

	err := (&ParseError{Msg: "empty"}).Error()
	if err != "parse error: empty" {
		t.Fatalf("generic message wrong, got=%q", err)
	}
}
