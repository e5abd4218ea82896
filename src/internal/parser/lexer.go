package parser

import (
	"fmt"
	"strings"

	"github.com/VectorBits/Rubisol/src/internal/ast"
)

// Lexer turns Ruby source into tokens. Newlines inside () and [] are dropped,
// everywhere else they terminate statements.
type Lexer struct {
	input  string
	pos    int
	line   int
	column int
	depth  int // () / [] nesting
	space  bool
}

func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, column: 1}
}

func (l *Lexer) peek(off int) byte {
	if l.pos+off >= len(l.input) {
		return 0
	}
	return l.input[l.pos+off]
}

func (l *Lexer) advance() byte {
	ch := l.input[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return ch
}

func (l *Lexer) here() ast.Pos {
	return ast.Pos{Line: l.line, Column: l.column}
}

// Tokenize lexes the whole input. The first lexical error is returned as a *ParseError.
func (l *Lexer) Tokenize() ([]Token, error) {
	var toks []Token
	for {
		tok := l.NextToken()
		if tok.Type == TokenError {
			return nil, &ParseError{Line: tok.Pos.Line, Column: tok.Pos.Column, Msg: tok.Literal}
		}
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks, nil
		}
	}
}

// NextToken returns the next token in the input.
func (l *Lexer) NextToken() Token {
	l.space = false
	l.skipSpaceAndComments()

	start := l.here()
	tok := func(tt TokenType, lit string) Token {
		return Token{Type: tt, Literal: lit, Pos: start, SpaceBefore: l.space}
	}
	if l.pos >= len(l.input) {
		return tok(TokenEOF, "")
	}

	ch := l.peek(0)
	switch {
	case ch == '\n':
		l.advance()
		return tok(TokenNewline, "\n")
	case isLetter(ch):
		return l.readWord(start)
	case isDigit(ch):
		return l.readNumber(start)
	case ch == '@':
		l.advance()
		if l.peek(0) == '@' {
			return tok(TokenError, "class variables (@@) are not supported")
		}
		if !isLetter(l.peek(0)) {
			return tok(TokenError, "invalid instance variable name")
		}
		return tok(TokenIVar, l.readIdentChars())
	case ch == '"' || ch == '\'':
		s, err := l.readString(ch)
		if err != "" {
			return tok(TokenError, err)
		}
		return tok(TokenString, s)
	case ch == ':':
		if l.peek(1) == ':' {
			l.pos += 2
			l.column += 2
			return tok(TokenColon2, "::")
		}
		if isLetter(l.peek(1)) {
			l.advance()
			name := l.readIdentChars()
			if c := l.peek(0); c == '?' || c == '!' || c == '=' && l.peek(1) != '=' && l.peek(1) != '>' {
				name += string(l.advance())
			}
			return tok(TokenSymbol, name)
		}
		if l.peek(1) == '"' {
			l.advance()
			s, err := l.readString('"')
			if err != "" {
				return tok(TokenError, err)
			}
			return tok(TokenSymbol, s)
		}
		l.advance()
		return tok(TokenColon, ":")
	}

	// 多字符运算符，最长匹配
	for _, op := range operators {
		if strings.HasPrefix(l.input[l.pos:], op.text) {
			for range op.text {
				l.advance()
			}
			switch op.tt {
			case TokenLParen, TokenLBracket:
				l.depth++
			case TokenRParen, TokenRBracket:
				if l.depth > 0 {
					l.depth--
				}
			}
			return tok(op.tt, op.text)
		}
	}

	l.advance()
	if ch == '`' {
		return tok(TokenError, "backtick command execution is not supported")
	}
	return tok(TokenError, fmt.Sprintf("unexpected character %q", ch))
}

var operators = []struct {
	text string
	tt   TokenType
}{
	{"**=", TokenOpAssign},
	{"||=", TokenOpAssign},
	{"&&=", TokenOpAssign},
	{"...", TokenDot3},
	{"**", TokenPow},
	{"==", TokenEq},
	{"!=", TokenNe},
	{"<=", TokenLe},
	{">=", TokenGe},
	{"&&", TokenAndAnd},
	{"||", TokenOrOr},
	{"+=", TokenOpAssign},
	{"-=", TokenOpAssign},
	{"*=", TokenOpAssign},
	{"/=", TokenOpAssign},
	{"%=", TokenOpAssign},
	{"<<", TokenShl},
	{"..", TokenDot2},
	{"=>", TokenArrow},
	{"+", TokenPlus},
	{"-", TokenMinus},
	{"*", TokenStar},
	{"/", TokenSlash},
	{"%", TokenPercent},
	{"<", TokenLt},
	{">", TokenGt},
	{"!", TokenBang},
	{"=", TokenAssign},
	{"?", TokenQuestion},
	{".", TokenDot},
	{",", TokenComma},
	{";", TokenSemicolon},
	{"(", TokenLParen},
	{")", TokenRParen},
	{"[", TokenLBracket},
	{"]", TokenRBracket},
	{"{", TokenLBrace},
	{"}", TokenRBrace},
	{"|", TokenPipe},
}

func (l *Lexer) skipSpaceAndComments() {
	for l.pos < len(l.input) {
		ch := l.peek(0)
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r':
			l.advance()
			l.space = true
		case ch == '\\' && l.peek(1) == '\n':
			l.advance()
			l.advance()
			l.space = true
		case ch == '\n' && l.depth > 0:
			l.advance()
			l.space = true
		case ch == '#':
			for l.pos < len(l.input) && l.peek(0) != '\n' {
				l.advance()
			}
		case ch == '=' && l.column == 1 && strings.HasPrefix(l.input[l.pos:], "=begin"):
			// =begin ... =end 块注释
			idx := strings.Index(l.input[l.pos:], "\n=end")
			if idx < 0 {
				for l.pos < len(l.input) {
					l.advance()
				}
				return
			}
			target := l.pos + idx + len("\n=end")
			for l.pos < target {
				l.advance()
			}
			for l.pos < len(l.input) && l.peek(0) != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readIdentChars() string {
	start := l.pos
	for l.pos < len(l.input) && (isLetter(l.peek(0)) || isDigit(l.peek(0))) {
		l.advance()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readWord(start ast.Pos) Token {
	space := l.space
	word := l.readIdentChars()
	mk := func(tt TokenType, lit string) Token {
		return Token{Type: tt, Literal: lit, Pos: start, SpaceBefore: space}
	}

	if isUpper(word[0]) {
		return mk(TokenConst, word)
	}

	// 点号之后的关键字是方法名: x.nil?, x.class
	wordStart := l.pos - len(word)
	afterDot := wordStart > 0 && l.input[wordStart-1] == '.' && (wordStart < 2 || l.input[wordStart-2] != '.')
	tt, isKeyword := keywords[word]
	if afterDot {
		isKeyword = false
	}

	// foo? / foo! 方法名后缀
	if c := l.peek(0); (c == '?' || c == '!') && l.peek(1) != '=' && !isLetter(l.peek(1)) && !isDigit(l.peek(1)) && !isKeyword {
		word += string(l.advance())
		return mk(TokenIdent, word)
	}

	// label `name:` (not `name::`)
	if l.peek(0) == ':' && l.peek(1) != ':' && !isKeyword && !afterDot {
		l.advance()
		return mk(TokenLabel, word)
	}

	if isKeyword {
		return mk(tt, word)
	}
	return mk(TokenIdent, word)
}

func (l *Lexer) readNumber(start ast.Pos) Token {
	space := l.space
	var sb strings.Builder
	mk := func(tt TokenType) Token {
		return Token{Type: tt, Literal: sb.String(), Pos: start, SpaceBefore: space}
	}

	if l.peek(0) == '0' && (l.peek(1) == 'x' || l.peek(1) == 'X') {
		sb.WriteString("0x")
		l.advance()
		l.advance()
		for isHex(l.peek(0)) || l.peek(0) == '_' {
			if c := l.advance(); c != '_' {
				sb.WriteByte(c)
			}
		}
		return mk(TokenInt)
	}

	for isDigit(l.peek(0)) || l.peek(0) == '_' {
		if c := l.advance(); c != '_' {
			sb.WriteByte(c)
		}
	}

	// 1.5 is a float, 1..5 is a range and 1.times is a call
	isFloat := false
	if l.peek(0) == '.' && isDigit(l.peek(1)) {
		isFloat = true
		sb.WriteByte(l.advance())
		for isDigit(l.peek(0)) || l.peek(0) == '_' {
			if c := l.advance(); c != '_' {
				sb.WriteByte(c)
			}
		}
	}
	if (l.peek(0) == 'e' || l.peek(0) == 'E') && (isDigit(l.peek(1)) || (l.peek(1) == '-' || l.peek(1) == '+') && isDigit(l.peek(2))) {
		// 1e18 is an integer only if the exponent is non-negative and no fraction part exists
		if !isFloat && l.peek(1) != '-' {
			sb.WriteByte(l.advance())
			if l.peek(0) == '+' {
				l.advance()
			}
			for isDigit(l.peek(0)) {
				sb.WriteByte(l.advance())
			}
			return mk(TokenInt)
		}
		isFloat = true
		sb.WriteByte(l.advance())
		if l.peek(0) == '-' || l.peek(0) == '+' {
			sb.WriteByte(l.advance())
		}
		for isDigit(l.peek(0)) {
			sb.WriteByte(l.advance())
		}
	}
	if isFloat {
		return mk(TokenFloat)
	}
	return mk(TokenInt)
}

// readString reads a quoted string and returns its unescaped contents.
// Interpolation `#{}` is kept verbatim.
func (l *Lexer) readString(quote byte) (string, string) {
	l.advance()
	var sb strings.Builder
	for {
		if l.pos >= len(l.input) {
			return "", "unterminated string literal"
		}
		ch := l.advance()
		if ch == quote {
			return sb.String(), ""
		}
		if ch != '\\' || l.pos >= len(l.input) {
			sb.WriteByte(ch)
			continue
		}
		esc := l.advance()
		if quote == '\'' {
			if esc != '\'' && esc != '\\' {
				sb.WriteByte('\\')
			}
			sb.WriteByte(esc)
			continue
		}
		switch esc {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '0':
			sb.WriteByte(0)
		default:
			sb.WriteByte(esc)
		}
	}
}

func isLetter(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isUpper(ch byte) bool {
	return ch >= 'A' && ch <= 'Z'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHex(ch byte) bool {
	return isDigit(ch) || ch >= 'a' && ch <= 'f' || ch >= 'A' && ch <= 'F'
}
