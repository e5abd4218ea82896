package ast

import "fmt"

// ClassParts splits a class node into name, optional parent and body.
func ClassParts(n *Node) (name, parent, body *Node) {
	switch len(n.Children) {
	case 2:
		return n.Children[0], nil, n.Children[1]
	case 3:
		return n.Children[0], n.Children[1], n.Children[2]
	}
	return nil, nil, nil
}

// CallParts returns the receiver (nil for Call), the Args node and the optional block
// of a Call or Send node.
func CallParts(n *Node) (recv, args, block *Node) {
	rest := n.Children
	if n.Kind == KindSend {
		if len(rest) == 0 {
			return nil, nil, nil
		}
		recv, rest = rest[0], rest[1:]
	}
	if len(rest) > 0 {
		args = rest[0]
	}
	if len(rest) > 1 {
		block = rest[1]
	}
	return recv, args, block
}

// IfParts returns condition, then-body and the optional else branch (an If for elsif or a Body).
func IfParts(n *Node) (cond, then, els *Node) {
	return n.Child(0), n.Child(1), n.Child(2)
}

// BlockParts returns the parameter names and body of a Block node.
func BlockParts(n *Node) ([]string, *Node) {
	if n == nil {
		return nil, nil
	}
	var names []string
	for _, p := range n.Child(0).Children {
		names = append(names, p.Value)
	}
	return names, n.Child(1)
}

// Verify checks that every node's children match the shape its kind expects.
func Verify(n *Node) error {
	var err error
	n.Walk(func(c *Node) bool {
		if err != nil {
			return false
		}
		err = verifyOne(c)
		return err == nil
	})
	return err
}

func verifyOne(n *Node) error {
	count := len(n.Children)
	bad := func(want string) error {
		return fmt.Errorf("%s node at %s: expected %s, got %d children", n.Kind, n.Pos, want, count)
	}
	for _, c := range n.Children {
		if c == nil {
			return fmt.Errorf("%s node at %s has a nil child", n.Kind, n.Pos)
		}
	}

	switch n.Kind {
	case KindProgram, KindBody, KindParams, KindArgs, KindBlockParams, KindArray, KindHash:
		return nil
	case KindClass:
		if count != 2 && count != 3 {
			return bad("name, [parent], body")
		}
		if !n.Children[0].Is(KindConst) || !n.Last().Is(KindBody) {
			return bad("const name and body")
		}
	case KindModule:
		if count != 2 || !n.Children[0].Is(KindConst) || !n.Children[1].Is(KindBody) {
			return bad("const name and body")
		}
	case KindDef:
		if count != 2 || !n.Children[0].Is(KindParams) || !n.Children[1].Is(KindBody) {
			return bad("params and body")
		}
	case KindParam:
		if count > 1 {
			return bad("at most a default value")
		}
	case KindAssign, KindOpAssign, KindBinary, KindIndex, KindPair, KindRange:
		if count != 2 {
			return bad("2")
		}
	case KindCall:
		if count < 1 || count > 2 || !n.Children[0].Is(KindArgs) {
			return bad("args, [block]")
		}
	case KindSend:
		if count < 2 || count > 3 || !n.Children[1].Is(KindArgs) {
			return bad("receiver, args, [block]")
		}
	case KindBlock:
		if count != 2 || !n.Children[0].Is(KindBlockParams) || !n.Children[1].Is(KindBody) {
			return bad("block params and body")
		}
	case KindIf:
		if count < 2 || count > 3 || !n.Children[1].Is(KindBody) {
			return bad("cond, body, [else]")
		}
	case KindWhile:
		if count != 2 || !n.Children[1].Is(KindBody) {
			return bad("cond and body")
		}
	case KindFor:
		if count != 3 || !n.Children[0].Is(KindIdent) || !n.Children[2].Is(KindBody) {
			return bad("var, iterable, body")
		}
	case KindReturn:
		if count > 1 {
			return bad("at most one value")
		}
	case KindUnary:
		if count != 1 {
			return bad("1")
		}
	case KindTernary:
		if count != 3 {
			return bad("3")
		}
	case KindImport, KindInclude, KindIdent, KindIVar, KindConst, KindSelf,
		KindInt, KindFloat, KindStr, KindSym, KindTrue, KindFalse, KindNil:
		if count != 0 {
			return bad("no children")
		}
	default:
		return fmt.Errorf("unknown node kind %s at %s", n.Kind, n.Pos)
	}
	return nil
}
