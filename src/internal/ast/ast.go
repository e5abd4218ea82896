// Package ast 定义 Ruby 源码的语法树模型
package ast

import (
	"fmt"
	"strings"
)

// Kind 节点类型（封闭集合）
type Kind int

const (
	KindProgram Kind = iota
	KindClass
	KindModule
	KindDef
	KindParams
	KindParam
	KindBody
	KindAssign
	KindOpAssign
	KindCall
	KindSend
	KindArgs
	KindBlock
	KindBlockParams
	KindIf
	KindWhile
	KindFor
	KindReturn
	KindImport
	KindInclude
	KindBinary
	KindUnary
	KindTernary
	KindRange
	KindIndex
	KindArray
	KindHash
	KindPair

	// 叶子节点
	KindIdent
	KindIVar
	KindConst
	KindSelf
	KindInt
	KindFloat
	KindStr
	KindSym
	KindTrue
	KindFalse
	KindNil

	kindCount
)

var kindNames = [...]string{
	KindProgram:     "program",
	KindClass:       "class",
	KindModule:      "module",
	KindDef:         "def",
	KindParams:      "params",
	KindParam:       "param",
	KindBody:        "body",
	KindAssign:      "assign",
	KindOpAssign:    "op-assign",
	KindCall:        "call",
	KindSend:        "send",
	KindArgs:        "args",
	KindBlock:       "block",
	KindBlockParams: "block-params",
	KindIf:          "if",
	KindWhile:       "while",
	KindFor:         "for",
	KindReturn:      "return",
	KindImport:      "import",
	KindInclude:     "include",
	KindBinary:      "binary",
	KindUnary:       "unary",
	KindTernary:     "ternary",
	KindRange:       "range",
	KindIndex:       "index",
	KindArray:       "array",
	KindHash:        "hash",
	KindPair:        "pair",
	KindIdent:       "ident",
	KindIVar:        "ivar",
	KindConst:       "const",
	KindSelf:        "self",
	KindInt:         "int",
	KindFloat:       "float",
	KindStr:         "str",
	KindSym:         "sym",
	KindTrue:        "true",
	KindFalse:       "false",
	KindNil:         "nil",
}

func (k Kind) String() string {
	if k >= 0 && k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsLeaf reports whether nodes of this kind carry a literal value instead of children.
func (k Kind) IsLeaf() bool {
	return k >= KindIdent && k < kindCount
}

// IsLiteral reports whether the kind is a constant value (no identifiers).
func (k Kind) IsLiteral() bool {
	switch k {
	case KindInt, KindFloat, KindStr, KindSym, KindTrue, KindFalse, KindNil:
		return true
	}
	return false
}

// Pos 源码位置，Line/Column 从 1 开始，0 表示未知
type Pos struct {
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`
}

func (p Pos) String() string {
	if p.Line == 0 {
		return "?"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node is one tree node. Children are exclusively owned and never nil.
type Node struct {
	Kind     Kind    `json:"kind"`
	Value    string  `json:"value,omitempty"`
	Children []*Node `json:"children,omitempty"`
	Pos      Pos     `json:"pos"`
}

// New 创建节点，忽略 nil 子节点以保证 Children 紧凑
func New(kind Kind, pos Pos, children ...*Node) *Node {
	n := &Node{Kind: kind, Pos: pos}
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
	return n
}

// Leaf creates a leaf node holding a literal value.
func Leaf(kind Kind, pos Pos, value string) *Node {
	return &Node{Kind: kind, Value: value, Pos: pos}
}

// Child returns the i-th child or nil when out of range.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// Last returns the last child or nil.
func (n *Node) Last() *Node {
	if n == nil || len(n.Children) == 0 {
		return nil
	}
	return n.Children[len(n.Children)-1]
}

// Is reports whether n is non-nil and of the given kind.
func (n *Node) Is(kind Kind) bool {
	return n != nil && n.Kind == kind
}

// MarshalText lets Kind print as its name in JSON dumps.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// FindNodes 深度优先、先序遍历，返回所有匹配 kind 的节点。每次调用都重新遍历。
func (n *Node) FindNodes(kind Kind) []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		if c.Kind == kind {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Walk visits n and its descendants in pre-order. Returning false from fn skips
// the children of the current node.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Dump renders the tree as an indented s-expression, used by `rubisol parse`.
func Dump(n *Node) string {
	var sb strings.Builder
	dump(&sb, n, 0)
	return sb.String()
}

func dump(sb *strings.Builder, n *Node, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString("(")
	sb.WriteString(n.Kind.String())
	if n.Value != "" {
		sb.WriteString(fmt.Sprintf(" %q", n.Value))
	}
	if n.Pos.Line > 0 {
		sb.WriteString(" @" + n.Pos.String())
	}
	if len(n.Children) == 0 {
		sb.WriteString(")\n")
		return
	}
	sb.WriteString("\n")
	for _, c := range n.Children {
		dump(sb, c, depth+1)
	}
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(")\n")
}
