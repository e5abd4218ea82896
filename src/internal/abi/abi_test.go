package abi

import (
	"strings"
	"testing"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/VectorBits/Rubisol/src/internal/generator"
	"github.com/VectorBits/Rubisol/src/internal/typemap"
)

func tokenSpec() *generator.ContractSpec {
	return &generator.ContractSpec{
		Name:  "Token",
		Enums: []generator.Enum{{Name: "Status", Members: []string{"Active", "Paused"}}},
		Events: []generator.Event{{Name: "Transfer", Params: []generator.Param{
			{Name: "from", Type: "address"}, {Name: "to", Type: "address"}, {Name: "value", Type: "uint256"},
		}}},
		StateVariables: []*generator.StateVariable{
			{Name: "balances", Type: "mapping(address => uint256)", Visibility: typemap.Public},
			{Name: "status", Type: "Status", Visibility: typemap.Public},
			{Name: "holders", Type: "address[]", Visibility: typemap.Public},
			{Name: "secret", Type: "uint256", Visibility: typemap.Private},
		},
		Functions: []*generator.FunctionSpec{
			{Name: "constructor", Kind: generator.FuncConstructor, Params: []generator.Param{{Name: "_supply", Type: "uint256"}}},
			{Name: "transfer", Visibility: typemap.Public, Returns: []string{"bool"},
				Params: []generator.Param{{Name: "to", Type: "address"}, {Name: "amount", Type: "uint256"}}},
			{Name: "name", Visibility: typemap.External, Mutability: typemap.MutView, Returns: []string{"string"}},
			{Name: "_burn", Visibility: typemap.Private},
		},
	}
}

func TestBuild(t *testing.T) {
	c, err := Build(tokenSpec())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if c.Name != "Token" {
		t.Fatalf("name wrong, got=%q", c.Name)
	}
	if len(c.ABI.Constructor.Inputs) != 1 || c.ABI.Constructor.Inputs[0].Type.String() != "uint256" {
		t.Fatalf("constructor wrong, got=%v", c.ABI.Constructor.Inputs)
	}

	tests := []struct {
		name       string
		sig        string
		mutability string
		outputs    []string
	}{
		{"balances", "balances(address)", "view", []string{"uint256"}},
		{"status", "status()", "view", []string{"uint8"}},
		{"holders", "holders(uint256)", "view", []string{"address"}},
		{"transfer", "transfer(address,uint256)", "nonpayable", []string{"bool"}},
		{"name", "name()", "view", []string{"string"}},
	}
	if len(c.ABI.Methods) != len(tests) {
		t.Fatalf("expected %d methods, got=%d", len(tests), len(c.ABI.Methods))
	}
	for i, tt := range tests {
		m, ok := c.ABI.Methods[tt.name]
		if !ok {
			t.Fatalf("tests[%d] - method %s missing", i, tt.name)
		}
		if m.Sig != tt.sig {
			t.Fatalf("tests[%d] - signature wrong. expected=%q, got=%q", i, tt.sig, m.Sig)
		}
		if m.StateMutability != tt.mutability {
			t.Fatalf("tests[%d] - mutability wrong. expected=%q, got=%q", i, tt.mutability, m.StateMutability)
		}
		if len(m.Outputs) != len(tt.outputs) {
			t.Fatalf("tests[%d] - outputs wrong. expected=%v, got=%v", i, tt.outputs, m.Outputs)
		}
		for j, o := range tt.outputs {
			if m.Outputs[j].Type.String() != o {
				t.Fatalf("tests[%d] - output %d wrong. expected=%q, got=%q", i, j, o, m.Outputs[j].Type.String())
			}
		}
	}
	if _, ok := c.ABI.Events["Transfer"]; !ok {
		t.Fatalf("event Transfer missing")
	}
	if !strings.Contains(string(c.JSON), `"internalType":"enum Status"`) {
		t.Fatalf("enum internal type missing, got=%s", c.JSON)
	}
}

func TestSelectors(t *testing.T) {
	c, err := Build(tokenSpec())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	want := map[string]string{
		"transfer(address,uint256)":         "0xa9059cbb",
		"Transfer(address,address,uint256)": "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
	}
	sels := c.Selectors()
	if len(sels) != 6 {
		t.Fatalf("expected 6 selectors, got=%v", sels)
	}
	for i := 1; i < len(sels); i++ {
		if sels[i-1].Signature > sels[i].Signature {
			t.Fatalf("selectors not sorted: %v", sels)
		}
	}
	found := 0
	for _, s := range sels {
		if id, ok := want[s.Signature]; ok {
			found++
			if s.ID != id {
				t.Fatalf("%s id wrong. expected=%q, got=%q", s.Signature, id, s.ID)
			}
		}
		if s.Kind == "function" && s.ID != SelectorOf(s.Signature) {
			t.Fatalf("%s selector mismatch. expected=%q, got=%q", s.Signature, SelectorOf(s.Signature), s.ID)
		}
	}
	if found != len(want) {
		t.Fatalf("expected %d known selectors, found %d", len(want), found)
	}
	if got := c.Collisions(); len(got) != 0 {
		t.Fatalf("unexpected collisions: %v", got)
	}
}

func TestCollisions(t *testing.T) {
	methods := []ethabi.Method{
		{Name: "a", Sig: "a()", ID: []byte{1, 2, 3, 4}},
		{Name: "b", Sig: "b(uint256)", ID: []byte{1, 2, 3, 4}},
		{Name: "c", Sig: "c()", ID: []byte{9, 9, 9, 9}},
	}
	got := collisions("X", methods)
	expected := "selector collision in X: 0x01020304 shared by a(), b(uint256)"
	if len(got) != 1 || got[0] != expected {
		t.Fatalf("expected=%q, got=%v", expected, got)
	}
}

func TestBuildErrors(t *testing.T) {
	spec := &generator.ContractSpec{
		Name: "Bad",
		Functions: []*generator.FunctionSpec{
			{Name: "f", Visibility: typemap.Public, Params: []generator.Param{{Name: "x", Type: "fixedpoint"}}},
		},
	}
	if _, err := Build(spec); err == nil || !strings.Contains(err.Error(), "Bad.f") {
		t.Fatalf("expected type error for fixedpoint, got=%v", err)
	}
}

func TestCanonical(t *testing.T) {
	b := &builder{enums: map[string]bool{"Color": true}}
	tests := []struct{ input, expected string }{
		{"uint256", "uint256"},
		{"address payable", "address"},
		{"Color", "uint8"},
		{"Color[]", "uint8[]"},
		{"Ownable", "address"},
		{"string", "string"},
	}
	for i, tt := range tests {
		if got := b.canonical(tt.input); got != tt.expected {
			t.Fatalf("tests[%d] - expected=%q, got=%q", i, tt.expected, got)
		}
	}
}

func TestParse(t *testing.T) {
	c, err := Build(tokenSpec())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	back, err := Parse("Token", c.JSON)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(back.Selectors()) != len(c.Selectors()) {
		t.Fatalf("selectors differ after Parse, expected=%d, got=%d", len(c.Selectors()), len(back.Selectors()))
	}
	if _, err := Parse("Bad", []byte("{")); err == nil {
		t.Fatalf("expected error for malformed abi")
	}
}
