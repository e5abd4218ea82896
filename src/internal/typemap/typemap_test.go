package typemap

import (
	"errors"
	"testing"

	"github.com/VectorBits/Rubisol/src/internal/ast"
)

func lit(kind ast.Kind, v string) *ast.Node { return ast.Leaf(kind, ast.Pos{}, v) }

func TestMapType(t *testing.T) {
	pair := ast.New(ast.KindPair, ast.Pos{}, lit(ast.KindStr, "k"), lit(ast.KindTrue, "true"))
	tests := []struct {
		node *ast.Node
		want string
	}{
		{lit(ast.KindInt, "1"), "uint256"},
		{lit(ast.KindStr, "x"), "string"},
		{lit(ast.KindTrue, "true"), "bool"},
		{lit(ast.KindSym, "active"), "string"},
		{ast.New(ast.KindArray, ast.Pos{}), "uint256[]"},
		{ast.New(ast.KindArray, ast.Pos{}, lit(ast.KindStr, "a")), "string[]"},
		{ast.New(ast.KindHash, ast.Pos{}), "mapping(address => uint256)"},
		{ast.New(ast.KindHash, ast.Pos{}, pair), "mapping(string => bool)"},
		{withValue(ast.New(ast.KindBinary, ast.Pos{}, lit(ast.KindInt, "1"), lit(ast.KindInt, "2")), ">"), "bool"},
		{withValue(ast.New(ast.KindBinary, ast.Pos{}, lit(ast.KindInt, "1"), lit(ast.KindInt, "2")), "+"), "uint256"},
		{withValue(ast.New(ast.KindUnary, ast.Pos{}, lit(ast.KindInt, "1")), "-"), "int256"},
		{withValue(ast.New(ast.KindSend, ast.Pos{}, lit(ast.KindIdent, "msg"), ast.New(ast.KindArgs, ast.Pos{})), "sender"), "address"},
		{withValue(ast.New(ast.KindSend, ast.Pos{}, lit(ast.KindIdent, "xs"), ast.New(ast.KindArgs, ast.Pos{})), "empty?"), "bool"},
	}
	for i, tt := range tests {
		got, err := MapType(tt.node, nil)
		if err != nil {
			t.Fatalf("tests[%d] - unexpected error: %v", i, err)
		}
		if got != tt.want {
			t.Fatalf("tests[%d] - expected=%q, got=%q", i, tt.want, got)
		}
	}
}

func withValue(n *ast.Node, v string) *ast.Node {
	n.Value = v
	return n
}

func TestMapTypeUnsupported(t *testing.T) {
	for i, n := range []*ast.Node{lit(ast.KindNil, "nil"), lit(ast.KindFloat, "1.5"), nil} {
		if _, err := MapType(n, nil); !errors.Is(err, ErrUnsupported) {
			t.Fatalf("tests[%d] - expected ErrUnsupported, got=%v", i, err)
		}
	}
}

func TestMapTypeLookup(t *testing.T) {
	lookup := func(n *ast.Node) (string, bool) {
		if n.Is(ast.KindSym) && n.Value == "active" {
			return "Status", true
		}
		if n.Is(ast.KindIVar) && n.Value == "balances" {
			return "mapping(address => uint256)", true
		}
		return "", false
	}
	if got, _ := MapType(lit(ast.KindSym, "active"), lookup); got != "Status" {
		t.Fatalf("enum symbol - expected=%q, got=%q", "Status", got)
	}
	idx := ast.New(ast.KindIndex, ast.Pos{}, lit(ast.KindIVar, "balances"), lit(ast.KindIdent, "who"))
	if got, _ := MapType(idx, lookup); got != "uint256" {
		t.Fatalf("index - expected=%q, got=%q", "uint256", got)
	}
}

func TestMapDeclared(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"address", "address", true},
		{"integer", "uint256", true},
		{"String", "string", true},
		{"boolean", "bool", true},
		{"bytes32", "bytes32", true},
		{"uint8", "uint8", true},
		{"uint7", "", false},
		{"bytes33", "", false},
		{"address[]", "address[]", true},
		{"hash", "mapping(address => uint256)", true},
		{"widget", "", false},
	}
	for i, tt := range tests {
		got, ok := MapDeclared(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("tests[%d] - %q expected=(%q,%v), got=(%q,%v)", i, tt.in, tt.want, tt.ok, got, ok)
		}
	}
}

func TestInferParam(t *testing.T) {
	tests := []struct {
		name string
		def  *ast.Node
		use  Usage
		want string
	}{
		{"amount", nil, Usage{}, "uint256"},
		{"to", nil, Usage{}, "address"},
		{"token_address", nil, Usage{}, "address"},
		{"name", nil, Usage{}, "string"},
		{"token_name", nil, Usage{}, "string"},
		{"is_active", nil, Usage{}, "bool"},
		{"recipients", nil, Usage{Iterated: true}, "uint256[]"},
		{"name", lit(ast.KindInt, "3"), Usage{}, "uint256"},
		{"flag", lit(ast.KindFalse, "false"), Usage{}, "bool"},
	}
	for i, tt := range tests {
		if got := InferParam(tt.name, tt.def, tt.use); got != tt.want {
			t.Fatalf("tests[%d] - %s expected=%q, got=%q", i, tt.name, tt.want, got)
		}
	}
}

func TestVisibilityAndMutability(t *testing.T) {
	vis := map[string]Visibility{"": Public, "public": Public, "private": Private, "protected": Internal, "weird": Public}
	for in, want := range vis {
		if got := MapVisibility(in); got != want {
			t.Fatalf("MapVisibility(%q) expected=%q, got=%q", in, want, got)
		}
	}

	muts := []struct {
		markers []string
		want    Mutability
	}{
		{nil, MutNone},
		{[]string{"view"}, MutView},
		{[]string{"view", "pure"}, MutPure},
		{[]string{"pure", "payable"}, MutPayable},
	}
	for i, tt := range muts {
		if got := MapMutability(tt.markers); got != tt.want {
			t.Fatalf("tests[%d] - expected=%q, got=%q", i, tt.want, got)
		}
	}
}

func TestFunctionName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"balance_of", "balanceOf"},
		{"_mint", "_mint"},
		{"_transfer_from", "_transferFrom"},
		{"paused?", "isPaused"},
		{"is_owner?", "isOwner"},
		{"burn!", "burn"},
		{"name=", "setName"},
		{"self.total", "total"},
	}
	for i, tt := range tests {
		if got := FunctionName(tt.in); got != tt.want {
			t.Fatalf("tests[%d] - expected=%q, got=%q", i, tt.want, got)
		}
	}
	if got := Pascal("pending_review"); got != "PendingReview" {
		t.Fatalf("Pascal expected=%q, got=%q", "PendingReview", got)
	}
}

func TestWidth(t *testing.T) {
	tests := []struct {
		typ  string
		want int
	}{
		{"bool", 1},
		{"address", 20},
		{"uint8", 1},
		{"uint128", 16},
		{"uint256", 32},
		{"bytes4", 4},
		{"string", 32},
		{"mapping(address => uint256)", 32},
	}
	for i, tt := range tests {
		if got := Width(tt.typ); got != tt.want {
			t.Fatalf("tests[%d] - %s expected=%d, got=%d", i, tt.typ, tt.want, got)
		}
	}
	if !IsReference("string") || !IsReference("uint256[]") || IsReference("address") {
		t.Fatalf("IsReference wrong")
	}
}
