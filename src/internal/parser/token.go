package parser

import (
	"fmt"

	"github.com/VectorBits/Rubisol/src/internal/ast"
)

// TokenType represents the type of a token
type TokenType int

const (
	// 特殊 token
	TokenEOF TokenType = iota
	TokenError
	TokenNewline

	// 字面量
	TokenIdent
	TokenConst
	TokenIVar
	TokenInt
	TokenFloat
	TokenString
	TokenSymbol
	TokenLabel // `name:` inside hashes and keyword arguments

	// 关键字
	TokenClass
	TokenModule
	TokenDef
	TokenEnd
	TokenIf
	TokenElsif
	TokenElse
	TokenUnless
	TokenWhile
	TokenUntil
	TokenFor
	TokenIn
	TokenDo
	TokenThen
	TokenReturn
	TokenSelf
	TokenTrue
	TokenFalse
	TokenNil
	TokenAnd
	TokenOr
	TokenNot

	// 运算符
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenPercent
	TokenPow
	TokenEq
	TokenNe
	TokenLt
	TokenGt
	TokenLe
	TokenGe
	TokenAndAnd
	TokenOrOr
	TokenBang
	TokenAssign
	TokenOpAssign // +=, -=, *=, /=, %=, **=, ||=, &&=
	TokenShl
	TokenDot2
	TokenDot3
	TokenArrow // =>
	TokenQuestion
	TokenColon
	TokenColon2

	// 符号
	TokenDot
	TokenComma
	TokenSemicolon
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenLBrace
	TokenRBrace
	TokenPipe
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenError:     "ERROR",
	TokenNewline:   "NEWLINE",
	TokenIdent:     "IDENT",
	TokenConst:     "CONST",
	TokenIVar:      "IVAR",
	TokenInt:       "INT",
	TokenFloat:     "FLOAT",
	TokenString:    "STRING",
	TokenSymbol:    "SYMBOL",
	TokenLabel:     "LABEL",
	TokenClass:     "class",
	TokenModule:    "module",
	TokenDef:       "def",
	TokenEnd:       "end",
	TokenIf:        "if",
	TokenElsif:     "elsif",
	TokenElse:      "else",
	TokenUnless:    "unless",
	TokenWhile:     "while",
	TokenUntil:     "until",
	TokenFor:       "for",
	TokenIn:        "in",
	TokenDo:        "do",
	TokenThen:      "then",
	TokenReturn:    "return",
	TokenSelf:      "self",
	TokenTrue:      "true",
	TokenFalse:     "false",
	TokenNil:       "nil",
	TokenAnd:       "and",
	TokenOr:        "or",
	TokenNot:       "not",
	TokenPlus:      "+",
	TokenMinus:     "-",
	TokenStar:      "*",
	TokenSlash:     "/",
	TokenPercent:   "%",
	TokenPow:       "**",
	TokenEq:        "==",
	TokenNe:        "!=",
	TokenLt:        "<",
	TokenGt:        ">",
	TokenLe:        "<=",
	TokenGe:        ">=",
	TokenAndAnd:    "&&",
	TokenOrOr:      "||",
	TokenBang:      "!",
	TokenAssign:    "=",
	TokenOpAssign:  "OP_ASSIGN",
	TokenShl:       "<<",
	TokenDot2:      "..",
	TokenDot3:      "...",
	TokenArrow:     "=>",
	TokenQuestion:  "?",
	TokenColon:     ":",
	TokenColon2:    "::",
	TokenDot:       ".",
	TokenComma:     ",",
	TokenSemicolon: ";",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenLBracket:  "[",
	TokenRBracket:  "]",
	TokenLBrace:    "{",
	TokenRBrace:    "}",
	TokenPipe:      "|",
}

// String returns a string representation of the token type
func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(tt))
}

var keywords = map[string]TokenType{
	"class":  TokenClass,
	"module": TokenModule,
	"def":    TokenDef,
	"end":    TokenEnd,
	"if":     TokenIf,
	"elsif":  TokenElsif,
	"else":   TokenElse,
	"unless": TokenUnless,
	"while":  TokenWhile,
	"until":  TokenUntil,
	"for":    TokenFor,
	"in":     TokenIn,
	"do":     TokenDo,
	"then":   TokenThen,
	"return": TokenReturn,
	"self":   TokenSelf,
	"true":   TokenTrue,
	"false":  TokenFalse,
	"nil":    TokenNil,
	"and":    TokenAnd,
	"or":     TokenOr,
	"not":    TokenNot,
}

// Token represents a lexical token with position information
type Token struct {
	Type    TokenType
	Literal string
	Pos     ast.Pos
	// SpaceBefore is set when whitespace separates this token from the previous one.
	// `foo [1]` and `foo[1]` differ in Ruby.
	SpaceBefore bool
}

func (t Token) String() string {
	return fmt.Sprintf("{Type: %s, Literal: %q, Line: %d, Column: %d}", t.Type, t.Literal, t.Pos.Line, t.Pos.Column)
}
