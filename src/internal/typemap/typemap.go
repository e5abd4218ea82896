// Package typemap 把 Ruby 的动态类型、可见性、可变性映射为 Solidity 的静态等价物。
// 所有函数无副作用。
package typemap

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/VectorBits/Rubisol/src/internal/ast"
)

const (
	Uint256 = "uint256"
	Int256  = "int256"
	String  = "string"
	Bool    = "bool"
	Address = "address"
	Bytes32 = "bytes32"

	DefaultArray   = "uint256[]"
	DefaultMapping = "mapping(address => uint256)"
)

// ErrUnsupported is returned when a value has no static equivalent (nil, floats).
var ErrUnsupported = errors.New("no static type mapping")

// Lookup resolves types the mapper cannot see on its own: identifiers, fields,
// enum symbols. Returning false falls through to the literal rules. May be nil.
type Lookup func(n *ast.Node) (string, bool)

// MapType infers the static type of a value expression.
func MapType(n *ast.Node, lookup Lookup) (string, error) {
	if n == nil {
		return "", fmt.Errorf("empty expression: %w", ErrUnsupported)
	}
	if lookup != nil {
		if t, ok := lookup(n); ok {
			return t, nil
		}
	}

	switch n.Kind {
	case ast.KindInt:
		return Uint256, nil
	case ast.KindStr:
		return String, nil
	case ast.KindTrue, ast.KindFalse:
		return Bool, nil
	case ast.KindSym:
		return String, nil
	case ast.KindNil:
		return "", fmt.Errorf("nil at %s: %w", n.Pos, ErrUnsupported)
	case ast.KindFloat:
		return "", fmt.Errorf("non-integer literal %s at %s: %w", n.Value, n.Pos, ErrUnsupported)
	case ast.KindArray:
		elem := Uint256
		if len(n.Children) > 0 {
			t, err := MapType(n.Children[0], lookup)
			if err != nil {
				return "", err
			}
			elem = t
		}
		return elem + "[]", nil
	case ast.KindHash:
		if len(n.Children) == 0 {
			return DefaultMapping, nil
		}
		pair := n.Children[0]
		k, err := MapType(pair.Child(0), lookup)
		if err != nil {
			return "", err
		}
		v, err := MapType(pair.Child(1), lookup)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("mapping(%s => %s)", k, v), nil
	case ast.KindBinary:
		switch n.Value {
		case "==", "!=", "<", ">", "<=", ">=", "&&", "||":
			return Bool, nil
		}
		return MapType(n.Child(0), lookup)
	case ast.KindUnary:
		if n.Value == "!" {
			return Bool, nil
		}
		return Int256, nil
	case ast.KindTernary:
		return MapType(n.Child(1), lookup)
	case ast.KindRange:
		return DefaultArray, nil
	case ast.KindSend:
		return sendType(n, lookup)
	case ast.KindCall:
		if strings.HasSuffix(n.Value, "?") {
			return Bool, nil
		}
		return Uint256, nil
	case ast.KindIndex:
		recv, err := MapType(n.Child(0), lookup)
		if err != nil {
			return Uint256, nil
		}
		return ElementType(recv), nil
	case ast.KindSelf:
		return Address, nil
	case ast.KindIdent, ast.KindIVar, ast.KindConst:
		return Uint256, nil
	}
	return "", fmt.Errorf("%s expression at %s: %w", n.Kind, n.Pos, ErrUnsupported)
}

// 常见全局属性
var globalMembers = map[string]string{
	"msg.sender":      Address,
	"msg.value":       Uint256,
	"tx.origin":       Address,
	"block.timestamp": Uint256,
	"block.number":    Uint256,
	"block.coinbase":  Address,
}

func sendType(n *ast.Node, lookup Lookup) (string, error) {
	recv := n.Child(0)
	if recv.Is(ast.KindIdent) {
		if t, ok := globalMembers[recv.Value+"."+n.Value]; ok {
			return t, nil
		}
	}
	switch {
	case strings.HasSuffix(n.Value, "?"):
		return Bool, nil
	case n.Value == "length" || n.Value == "size" || n.Value == "count" || n.Value == "balance":
		return Uint256, nil
	case n.Value == "new" && recv.Is(ast.KindConst):
		return recv.Value, nil
	case n.Value == "first" || n.Value == "last" || n.Value == "pop":
		t, err := MapType(recv, lookup)
		if err != nil {
			return Uint256, nil
		}
		return ElementType(t), nil
	}
	return Uint256, nil
}

// ElementType returns V for mapping(K => V) and T for T[]. Other types map to uint256.
func ElementType(t string) string {
	if strings.HasSuffix(t, "[]") {
		return strings.TrimSuffix(t, "[]")
	}
	if strings.HasPrefix(t, "mapping(") {
		if i := strings.Index(t, "=>"); i >= 0 {
			return strings.TrimSpace(strings.TrimSuffix(t[i+2:], ")"))
		}
	}
	return Uint256
}

var sizedType = regexp.MustCompile(`^(uint|int|bytes)(\d+)$`)

// MapDeclared maps a declared type name (`sig :m, to: :address`) to a Solidity type.
func MapDeclared(name string) (string, bool) {
	name = strings.TrimSpace(strings.ToLower(name))
	if strings.HasSuffix(name, "[]") {
		elem, ok := MapDeclared(strings.TrimSuffix(name, "[]"))
		if !ok {
			return "", false
		}
		return elem + "[]", true
	}
	switch name {
	case "address":
		return Address, true
	case "address_payable", "payable":
		return "address payable", true
	case "uint", "uint256", "integer", "int", "fixnum", "numeric":
		return Uint256, true
	case "int256", "signed":
		return Int256, true
	case "string", "str", "text", "symbol":
		return String, true
	case "bool", "boolean":
		return Bool, true
	case "bytes":
		return "bytes", true
	case "array":
		return DefaultArray, true
	case "hash", "mapping":
		return DefaultMapping, true
	}
	if m := sizedType.FindStringSubmatch(name); m != nil {
		bits, _ := strconv.Atoi(m[2])
		switch m[1] {
		case "bytes":
			if bits >= 1 && bits <= 32 {
				return name, true
			}
		default:
			if bits >= 8 && bits <= 256 && bits%8 == 0 {
				return name, true
			}
		}
	}
	return "", false
}

// Usage records how a parameter is used inside a method body.
type Usage struct {
	Iterated bool // xs.each / for x in xs
	Length   bool // xs.length / size / count
	Indexed  bool // xs[i]
}

// InferParam picks a parameter type: default value, usage, naming, then uint256.
func InferParam(name string, def *ast.Node, use Usage) string {
	if def != nil {
		if t, err := MapType(def, nil); err == nil {
			return t
		}
	}
	if use.Iterated || use.Length || use.Indexed {
		return DefaultArray
	}
	if t, ok := typeFromName(name); ok {
		return t
	}
	return Uint256
}

func typeFromName(name string) (string, bool) {
	n := strings.TrimPrefix(strings.ToLower(name), "_")
	switch n {
	case "to", "from", "owner", "spender", "recipient", "sender", "account", "addr", "operator", "new_owner":
		return Address, true
	case "name", "symbol", "uri", "description", "reason", "message":
		return String, true
	}
	switch {
	case strings.HasSuffix(n, "_address"), strings.HasSuffix(n, "_addr"):
		return Address, true
	case strings.HasSuffix(n, "_name"), strings.HasSuffix(n, "_uri"):
		return String, true
	case strings.HasPrefix(n, "is_"), strings.HasPrefix(n, "has_"), strings.HasPrefix(n, "can_"):
		return Bool, true
	}
	return "", false
}

// IsReference reports whether values of the type need a data location (memory).
func IsReference(t string) bool {
	return t == String || t == "bytes" || strings.HasSuffix(t, "]")
}

// Width returns the storage footprint in bytes used by the layout pass.
// Dynamic types, mappings and unknown types take a full slot.
func Width(t string) int {
	t = strings.TrimSpace(t)
	switch t {
	case Bool:
		return 1
	case Address, "address payable":
		return 20
	}
	if m := sizedType.FindStringSubmatch(t); m != nil {
		n, _ := strconv.Atoi(m[2])
		if m[1] == "bytes" {
			return n
		}
		return n / 8
	}
	return 32
}
