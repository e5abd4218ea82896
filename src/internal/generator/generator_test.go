package generator

import (
	"errors"
	"strings"
	"testing"

	"github.com/VectorBits/Rubisol/src/internal/config"
	"github.com/VectorBits/Rubisol/src/internal/parser"
	"github.com/VectorBits/Rubisol/src/internal/typemap"
)

func generate(t *testing.T, src string) (string, []*ContractSpec) {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	code, specs, err := Generate(prog, config.Default())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	return code, specs
}

func generateErr(t *testing.T, src string) *CompilationError {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	_, _, err = Generate(prog, config.Default())
	var ce *CompilationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompilationError, got=%v", err)
	}
	return ce
}

func TestGenerateToken(t *testing.T) {
	src := `
class Token
  def initialize(name, symbol)
    @name = name
    @symbol = symbol
    @total_supply = 1000000
  end
end
`
	expected := `// SPDX-License-Identifier: MIT
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
	code, specs := generate(t, src)
	if code != expected {
		t.Fatalf("unexpected output.\nexpected=\n%s\ngot=\n%s", expected, code)
	}
	if len(specs) != 1 {
		t.Fatalf("expected 1 contract, got=%d", len(specs))
	}
	c := specs[0]
	if len(c.Parents) != 0 {
		t.Fatalf("expected no parents, got=%v", c.Parents)
	}
	want := []struct{ name, typ string }{
		{"name", "string"},
		{"symbol", "string"},
		{"total_supply", "uint256"},
	}
	for i, w := range want {
		v := c.StateVariables[i]
		if v.Name != w.name || v.Type != w.typ {
			t.Fatalf("StateVariables[%d] - expected=%s:%s, got=%s:%s", i, w.name, w.typ, v.Name, v.Type)
		}
	}
	if strings.Count(code, "contract Token") != 1 {
		t.Fatalf("expected exactly one contract block")
	}
}

func TestUnderscoreMethodIsPrivate(t *testing.T) {
	src := `
class Vault
  def _check(amount)
    require(amount > 0, "zero")
  end

  def deposit(amount)
    _check(amount)
  end
end
`
	code, specs := generate(t, src)
	fn := specs[0].Function("_check")
	if fn == nil || fn.Visibility != typemap.Private {
		t.Fatalf("expected private _check, got=%+v", fn)
	}
	for _, want := range []string{
		"function _check(uint256 amount) private {",
		`require(amount > 0, "zero");`,
		"function deposit(uint256 amount) public {",
		"_check(amount);",
	} {
		if !strings.Contains(code, want) {
			t.Fatalf("output missing %q:\n%s", want, code)
		}
	}
}

func TestLoopLengthIsCached(t *testing.T) {
	src := `
class Wallet
  def total(amounts)
    sum = 0
    amounts.each do |a|
      sum += a * amounts.size
    end
    sum
  end
end
`
	expected := `    function total(uint256[] memory amounts) public returns (uint256) {
        uint256 sum = 0;
        uint256 amountsLength = amounts.length;
        for (uint256 i = 0; i < amountsLength; i++) {
            uint256 a = amounts[i];
            sum += a * amountsLength;
        }
        return sum;
    }
`
	code, _ := generate(t, src)
	if !strings.Contains(code, expected) {
		t.Fatalf("unexpected loop.\nexpected=\n%s\ngot=\n%s", expected, code)
	}
	if n := strings.Count(code, ".length"); n != 1 {
		t.Fatalf("expected one length read, got=%d", n)
	}
}

func TestNestedLoopReusesLength(t *testing.T) {
	src := `
class Wallet
  def pairs(amounts)
    sum = 0
    amounts.each do |a|
      amounts.each do |b|
        sum += a * b
      end
    end
    sum
  end
end
`
	expected := `        uint256 amountsLength = amounts.length;
        for (uint256 i = 0; i < amountsLength; i++) {
            uint256 a = amounts[i];
            for (uint256 j = 0; j < amountsLength; j++) {
                uint256 b = amounts[j];
                sum += a * b;
            }
        }
`
	code, _ := generate(t, src)
	if !strings.Contains(code, expected) {
		t.Fatalf("unexpected loop.\nexpected=\n%s\ngot=\n%s", expected, code)
	}
	if strings.Contains(code, "amountsLength2") {
		t.Fatalf("inner loop declared a second length local:\n%s", code)
	}
}

func TestStatements(t *testing.T) {
	tests := []struct {
		src      string
		expected []string
	}{
		{
			"def f(x)\n  raise \"no\" unless x > 1\nend",
			[]string{`require(x > 1, "no");`},
		},
		{
			"def f(x)\n  raise \"bad\" if x == 0\nend",
			[]string{`require(!(x == 0), "bad");`},
		},
		{
			"def f\n  raise \"stop\"\nend",
			[]string{`revert("stop");`},
		},
		{
			"def add(x)\n  @items << x\nend",
			[]string{"uint256[] public items;", "items.push(x);"},
		},
		{
			"def run(n)\n  n.times do\n    @count += 1\n  end\nend",
			[]string{"for (uint256 i = 0; i < n; i++) {", "count += 1;"},
		},
		{
			"def sum_to(n)\n  (1..n).each do |i|\n    @total += i\n  end\nend",
			[]string{"for (uint256 i = 1; i <= n; i++) {", "total += i;"},
		},
		{
			"def grade(score)\n  if score > 90\n    @level = 3\n  elsif score > 50\n    @level = 2\n  else\n    @level = 1\n  end\nend",
			[]string{
				"        if (score > 90) {\n            level = 3;\n        } else if (score > 50) {\n            level = 2;\n        } else {\n            level = 1;\n        }\n",
			},
		},
		{
			"def pick(is_ok)\n  if is_ok\n    result = 1\n  else\n    result = 2\n  end\n  result\nend",
			[]string{"function pick(bool is_ok) public returns (uint256) {", "uint256 result;\n", "result = 1;", "return result;"},
		},
		{
			"def same?(name)\n  name == \"x\"\nend",
			[]string{
				"function isSame(string memory name) public returns (bool) {",
				`return keccak256(bytes(name)) == keccak256(bytes("x"));`,
			},
		},
		{
			"def pay(to, amount)\n  emit :Paid, to, amount\nend",
			[]string{"event Paid(address to, uint256 amount);", "emit Paid(to, amount);"},
		},
		{
			"def refund(to)\n  to.transfer(@deposits[to])\n  @deposits[to] = nil\nend",
			[]string{"payable(to).transfer(deposits[to]);", "delete deposits[to];"},
		},
		{
			"def spend(amount)\n  @left = (@left - amount) * 2\nend",
			[]string{"left = (left - amount) * 2;"},
		},
		{
			"def owner?\n  msg.sender == @owner && !@paused\nend",
			[]string{"return msg.sender == owner && !paused;"},
		},
	}

	for i, tt := range tests {
		code, _ := generate(t, "class C\n"+tt.src+"\nend\n")
		for _, want := range tt.expected {
			if !strings.Contains(code, want) {
				t.Fatalf("tests[%d] - output missing %q:\n%s", i, want, code)
			}
		}
	}
}

func TestStateVariables(t *testing.T) {
	src := `
class Bank
  attr_reader :owner

  def initialize
    @owner = msg.sender
    @balances = {}
  end

  def deposit
    @balances[msg.sender] += msg.value
  end

  def credit(account, amount)
    @scores[account] = amount
  end
end
`
	code, specs := generate(t, src)
	for _, want := range []string{
		"address public owner;",
		"mapping(address => uint256) private balances;",
		"mapping(address => uint256) private scores;",
		"constructor() {\n        owner = msg.sender;\n    }",
		"balances[msg.sender] += msg.value;",
	} {
		if !strings.Contains(code, want) {
			t.Fatalf("output missing %q:\n%s", want, code)
		}
	}
	if f := specs[0].Field("balances"); f == nil || f.Initializer != "" {
		t.Fatalf("unexpected balances field: %+v", f)
	}
}

func TestEmptyHashKeyFromFirstUse(t *testing.T) {
	tests := []struct {
		src      string
		expected string
	}{
		{"  def mark\n    @seen[1] = true\n  end", "mapping(uint256 => bool) public seen;"},
		{"  def mark\n    @seen[msg.sender] = 5\n  end", "mapping(address => uint256) public seen;"},
		{"  def mark(name)\n    @seen[name] = 1\n  end", "mapping(string => uint256) public seen;"},
	}
	for i, tt := range tests {
		src := "class Registry\n  def initialize\n    @seen = {}\n  end\n\n" + tt.src + "\nend\n"
		code, _ := generate(t, src)
		if !strings.Contains(code, tt.expected) {
			t.Fatalf("tests[%d] - output missing %q:\n%s", i, tt.expected, code)
		}
	}
}

func TestVisibilityAndMutability(t *testing.T) {
	src := `
class Shop
  def price
    100
  end

  view def quote(amount)
    amount * 2
  end

  payable def buy
    @paid = msg.value
  end

  private

  def helper
    1
  end
end
`
	code, _ := generate(t, src)
	for _, want := range []string{
		"function price() public returns (uint256) {",
		"function quote(uint256 amount) public view returns (uint256) {",
		"function buy() public payable {",
		"function helper() private returns (uint256) {",
		"return amount * 2;",
	} {
		if !strings.Contains(code, want) {
			t.Fatalf("output missing %q:\n%s", want, code)
		}
	}
}

func TestEnumsAndEvents(t *testing.T) {
	src := `
class Order
  enum :status, :pending, :active
  event :Changed, who: :address

  def activate
    @state = :active
    emit :Changed, msg.sender
  end
end
`
	code, _ := generate(t, src)
	for _, want := range []string{
		"enum Status { Pending, Active }",
		"event Changed(address who);",
		"Status public state;",
		"state = Status.Active;",
		"emit Changed(msg.sender);",
	} {
		if !strings.Contains(code, want) {
			t.Fatalf("output missing %q:\n%s", want, code)
		}
	}
}

func TestImportsAndParents(t *testing.T) {
	src := `
require 'ownable'

class Coin < Base
  include Ownable
end
`
	expected := `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.20;

import "ownable.sol";

contract Coin is Base, Ownable {
}
`
	code, _ := generate(t, src)
	if code != expected {
		t.Fatalf("unexpected output.\nexpected=\n%s\ngot=\n%s", expected, code)
	}
}

func TestModules(t *testing.T) {
	code, specs := generate(t, "module Tokens\n  class A\n  end\n  class B\n  end\nend\n")
	if len(specs) != 2 || specs[0].Name != "A" || specs[1].Name != "B" {
		t.Fatalf("expected namespace classes A and B, got=%d", len(specs))
	}
	if !strings.Contains(code, "contract A {\n}\n\ncontract B {\n}\n") {
		t.Fatalf("contracts not separated by one blank line:\n%s", code)
	}

	code, _ = generate(t, "module Pausable\n  def pause\n    @paused = true\n  end\nend\n")
	if !strings.Contains(code, "abstract contract Pausable {") {
		t.Fatalf("expected abstract contract:\n%s", code)
	}
}

func TestHeaderFromConfig(t *testing.T) {
	prog, err := parser.Parse("class A\nend\n")
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.License = "Apache-2.0"
	cfg.TargetVersion = ">=0.7.0 <0.9.0"
	code, _, err := Generate(prog, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(code, "// SPDX-License-Identifier: Apache-2.0\npragma solidity >=0.7.0 <0.9.0;\n\ncontract A {") {
		t.Fatalf("unexpected header:\n%s", code)
	}
}

func TestCompilationErrors(t *testing.T) {
	tests := []struct {
		src      string
		expected string
	}{
		{"class A\n  def initialize\n    @owner = nil\n  end\nend\n", "nil"},
		{"class A\n  def initialize\n    @rate = 1.5\n  end\nend\n", "1.5"},
		{"x = 1\n", "no class declaration found"},
		{"class A\n  def f\n    missing + 1\n  end\nend\n", "undefined local variable or method missing"},
		{"class A\n  def f\n  end\n  def f\n  end\nend\n", "defined twice"},
	}
	for i, tt := range tests {
		ce := generateErr(t, tt.src)
		if !strings.Contains(ce.Error(), tt.expected) {
			t.Fatalf("tests[%d] - expected error containing %q, got=%q", i, tt.expected, ce.Error())
		}
	}
}
