package solc

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtractPragma(t *testing.T) {
	tests := []struct {
		input    string
		pragma   string
		expected string
	}{
		{"pragma solidity ^0.8.20;\ncontract A {}", "^0.8.20", "0.8.30"},
		{"pragma solidity >=0.7.0 <0.9.0;", ">=0.7.0 <0.9.0", "0.8.30"},
		{"pragma solidity ^0.6.12;", "^0.6.12", "0.6.12"},
		{"pragma solidity >=0.5.0;\npragma solidity <0.7.0;", ">=0.5.0", "0.6.12"},
		{"contract A {}", "", ""},
	}
	for i, tt := range tests {
		if got := ExtractPragma(tt.input); got != tt.pragma {
			t.Fatalf("tests[%d] - pragma wrong. expected=%q, got=%q", i, tt.pragma, got)
		}
		if got := ExtractPragmaVersion(tt.input); got != tt.expected {
			t.Fatalf("tests[%d] - version wrong. expected=%q, got=%q", i, tt.expected, got)
		}
	}
}

func TestCheckedArithmetic(t *testing.T) {
	tests := []struct {
		constraint string
		expected   bool
	}{
		{"^0.8.20", true},
		{"^0.8.0", true},
		{">=0.8.0", true},
		{"^0.7.6", false},
		{">=0.7.0 <0.9.0", false},
		{"0.6.12", false},
		{"not a version", false},
		{">=0.9.0", false},
	}
	for i, tt := range tests {
		if got := CheckedArithmetic(tt.constraint); got != tt.expected {
			t.Fatalf("tests[%d] - CheckedArithmetic(%q) expected=%v, got=%v", i, tt.constraint, tt.expected, got)
		}
	}
}

func TestPickVersion(t *testing.T) {
	v, err := PickVersion("^0.7.0")
	if err != nil || v != "0.7.6" {
		t.Fatalf("expected 0.7.6, got=%q (%v)", v, err)
	}
	if _, err := PickVersion(">=1.0.0"); err == nil {
		t.Fatalf("expected error for unsatisfiable constraint")
	}
}

func TestNormalizeVersion(t *testing.T) {
	tests := []struct{ input, expected string }{
		{"^0.8.20", "0.8.20"},
		{" v0.7.6 ", "0.7.6"},
		{">=0.6.0", "0.6.0"},
	}
	for i, tt := range tests {
		if got := normalizeVersion(tt.input); got != tt.expected {
			t.Fatalf("tests[%d] - expected=%q, got=%q", i, tt.expected, got)
		}
	}
}

func TestBuildStandardInput(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "lib"), 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"ownable.sol":     "pragma solidity ^0.8.0;\nimport \"./lib/context.sol\";\ncontract Ownable {}\n",
		"lib/context.sol": "pragma solidity ^0.8.0;\r\ncontract Context {}\r\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	code := "pragma solidity ^0.8.20;\n\nimport \"ownable.sol\";\nimport \"missing.sol\";\n\ncontract A is Ownable {}\n"
	in, err := BuildStandardInput("A", code, []string{dir})
	if err != nil {
		t.Fatalf("BuildStandardInput failed: %v", err)
	}
	if in.Language != "Solidity" {
		t.Fatalf("language wrong, got=%q", in.Language)
	}
	for _, key := range []string{"A.sol", "ownable.sol", "lib/context.sol"} {
		if _, ok := in.Sources[key]; !ok {
			t.Fatalf("source %s missing, got=%v", key, len(in.Sources))
		}
	}
	if _, ok := in.Sources["missing.sol"]; ok {
		t.Fatalf("missing import should be left to solc")
	}
	if got := in.Sources["lib/context.sol"].Content; got != "pragma solidity ^0.8.0;\ncontract Context {}\n" {
		t.Fatalf("line endings not normalised: %q", got)
	}
}
