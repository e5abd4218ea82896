package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/VectorBits/Rubisol/src/internal/config"
)

const tokenSrc = `
class Token
  def initialize(name, symbol)
    @name = name
    @symbol = symbol
    @total_supply = 1000000
  end
end
`

const tokenSol = `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.20;

contract Token {
    string public name;
    string public symbol;
    uint256 public total_supply = 1000000;

    constructor(string memory _name, string memory _symbol) {
        name = _name;
        symbol = _symbol;
    }
}
`

func defaults() *config.Config {
	cfg := config.Default()
	return &cfg
}

func TestCompile(t *testing.T) {
	res, err := Compile(tokenSrc, Options{Config: defaults()})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if res.Code != tokenSol {
		t.Fatalf("code wrong.\nexpected=\n%s\ngot=\n%s", tokenSol, res.Code)
	}
	if res.AST == nil || len(res.AST.Children) != 1 {
		t.Fatalf("ast missing")
	}
	if len(res.Contracts) != 1 || res.Contracts[0] != "Token" {
		t.Fatalf("contracts wrong, got=%v", res.Contracts)
	}
	if len(res.Errors) != 0 || len(res.Warnings) != 0 {
		t.Fatalf("expected clean result, errors=%v warnings=%v", res.Errors, res.Warnings)
	}
	if !strings.Contains(string(res.ABI["Token"]), `"name":"total_supply"`) {
		t.Fatalf("abi missing getter, got=%s", res.ABI["Token"])
	}
}

func TestCompileRejectsDangerousSource(t *testing.T) {
	src := "class A\n  def initialize\n    system('ls')\n  end\nend\n"
	_, err := Compile(src, Options{Config: defaults()})
	var ce *CompilationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompilationError, got=%v", err)
	}
	if len(ce.Messages) != 1 || !strings.Contains(ce.Messages[0], "system") {
		t.Fatalf("messages wrong, got=%v", ce.Messages)
	}
}

func TestCompileSourceErrorsListed(t *testing.T) {
	_, err := Compile("x = 1\n", Options{Config: defaults()})
	var ce *CompilationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompilationError, got=%v", err)
	}
	if len(ce.Messages) != 2 {
		t.Fatalf("expected class and initialize errors, got=%v", ce.Messages)
	}
}

func TestCompileParseError(t *testing.T) {
	src := "class A\n  def initialize\n    @x = )\n  end\nend\n"
	_, err := Compile(src, Options{Config: defaults()})
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got=%v", err)
	}
}

func TestCompileGeneratedWarnings(t *testing.T) {
	src := `
class Wallet
  def initialize(owner)
    @owner = owner
  end

  def withdraw
    raise "not owner" unless tx.origin == @owner
  end
end
`
	res, err := Compile(src, Options{Config: defaults()})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "tx-origin") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected tx-origin warning, got=%v", res.Warnings)
	}
}

func TestCompileConfigSnapshot(t *testing.T) {
	cfg := config.Default()
	cfg.License = "Apache-2.0"
	cfg.TargetVersion = "0.7.6"
	res, err := Compile(tokenSrc, Options{Config: &cfg})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !strings.HasPrefix(res.Code, "// SPDX-License-Identifier: Apache-2.0\npragma solidity ^0.7.6;\n") {
		t.Fatalf("header wrong, got=\n%s", res.Code)
	}

	cfg.License = "GPL-3.0"
	if !strings.Contains(res.Code, "Apache-2.0") {
		t.Fatalf("result changed after config mutation")
	}
}

func TestCompileUsesProcessDefault(t *testing.T) {
	defer config.Reset()
	cfg := config.Default()
	cfg.License = "UNLICENSED"
	if err := config.Init(cfg); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	res, err := Compile(tokenSrc, Options{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !strings.HasPrefix(res.Code, "// SPDX-License-Identifier: UNLICENSED\n") {
		t.Fatalf("process default not used, got=\n%s", res.Code)
	}
}

func TestCompileWritesOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "build", "Token.sol")
	if _, err := Compile(tokenSrc, Options{Config: defaults(), OutputPath: out}); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if string(data) != tokenSol {
		t.Fatalf("output wrong, got=\n%s", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(out))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestValidateHelper(t *testing.T) {
	if got := Validate(tokenSrc); len(got) != 0 {
		t.Fatalf("expected no findings, got=%v", got)
	}
	if _, err := Parse(tokenSrc); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
}

func TestCompileOneLineClass(t *testing.T) {
	src := "class Token; def initialize(name, symbol); @name = name; @symbol = symbol; @total_supply = 1000000; end; end\n"
	res, err := Compile(src, Options{Config: defaults()})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if res.Code != tokenSol {
		t.Fatalf("code wrong.\nexpected=\n%s\ngot=\n%s", tokenSol, res.Code)
	}
}

func TestCompileReordersWithdraw(t *testing.T) {
	src := `
class Vault
  def initialize
    @deposits = {}
    @total = 0
  end

  def withdraw(to)
    to.transfer(@deposits[to])
    @deposits[to] = nil
  end

  def drain(to)
    to.transfer(@total)
    @total = 0
  end
end
`
	res, err := Compile(src, Options{Config: defaults()})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	for _, want := range []string{
		"mapping(address => uint256) public deposits;",
		"        uint256 depositsAmount = deposits[to];\n        delete deposits[to];\n        payable(to).transfer(depositsAmount);\n",
		"        payable(to).transfer(total);\n        total = 0;\n",
	} {
		if !strings.Contains(res.Code, want) {
			t.Fatalf("output missing %q:\n%s", want, res.Code)
		}
	}

	expected := "reentrancy: Vault.drain writes total after an external call"
	var reentrancy []string
	for _, w := range res.Warnings {
		if strings.HasPrefix(w, "reentrancy:") {
			reentrancy = append(reentrancy, w)
		}
	}
	if len(reentrancy) != 1 || reentrancy[0] != expected {
		t.Fatalf("reentrancy warnings wrong. expected=%q, got=%v", expected, reentrancy)
	}
}
