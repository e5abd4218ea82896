package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sample() *Report {
	r := NewReport("batch", "contracts/", "0.8.20", true)
	ok := NewFileResult("token.rb")
	ok.Output = "build/Token.sol"
	ok.Contracts = []string{"Token"}
	ok.Duration = 12 * time.Millisecond
	ok.AddWarning("warning[tx-origin] line 9: tx.origin used for authorization")
	ok.AddWarning("reentrancy: Vault.withdraw writes total after an external call")
	r.AddFileResult(ok)

	bad := NewFileResult("bad.rb")
	bad.Fail("error[process-execution] line 3: OS process execution with system is not allowed")
	r.AddFileResult(bad)
	return r
}

func TestReportCounts(t *testing.T) {
	r := sample()
	if r.TotalFiles != 2 || r.FailedFiles != 1 {
		t.Fatalf("counts wrong, total=%d failed=%d", r.TotalFiles, r.FailedFiles)
	}
	if r.SeverityDistribution["Warning"] != 2 || r.SeverityDistribution["Error"] != 1 {
		t.Fatalf("distribution wrong, got=%v", r.SeverityDistribution)
	}
}

func TestIssueType(t *testing.T) {
	tests := []struct{ input, expected string }{
		{"warning[tx-origin] line 9: x", "tx-origin"},
		{"error[pragma]: missing", "pragma"},
		{"reentrancy: A.f writes x", "reentrancy"},
		{"selector collision in X: 0x01", "note"},
		{"puts call dropped", "note"},
	}
	for i, tt := range tests {
		if got := issueType(tt.input); got != tt.expected {
			t.Fatalf("tests[%d] - expected=%q, got=%q", i, tt.expected, got)
		}
	}
}

func TestMarkdownGenerator(t *testing.T) {
	content, err := NewMarkdownGenerator().Generate(sample())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	for _, want := range []string{
		"# Rubisol Build Report",
		"**Mode**: batch",
		"- **Total Files**: 2",
		"- **Failed Files**: 1",
		"- **Error**: 1\n- **Warning**: 2",
		"# 📄 Source: `token.rb`",
		"**Contracts**: Token",
		"1. 🟡 **[Warning]** `tx-origin`",
		"2. 🟡 **[Warning]** `reentrancy`",
		"1. 🔴 **[Error]** `process-execution`",
		"**Status**: ❌ Failed",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("report missing %q.\ngot=\n%s", want, content)
		}
	}
	if strings.Count(content, "---\n\n") != 1 {
		t.Fatalf("expected one separator")
	}
}

func TestReporterSavesAtomically(t *testing.T) {
	dir := t.TempDir()
	path, err := NewReporter(NewMarkdownGenerator(), NewFileStorage(dir)).GenerateAndSave(sample())
	if err != nil {
		t.Fatalf("GenerateAndSave failed: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.HasPrefix(filepath.Base(path), "build_report_batch_contracts_0.8.20_") {
		t.Fatalf("report path wrong, got=%q", path)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.HasPrefix(string(data), "# Rubisol Build Report") {
		t.Fatalf("report content wrong (%v)", err)
	}
}

func TestNameComponent(t *testing.T) {
	tests := []struct{ input, expected string }{
		{"batch", "batch"},
		{"  ", "unknown"},
		{"a/b c", "a_b_c"},
		{"..", "unknown"},
		{"0.8.20", "0.8.20"},
	}
	for i, tt := range tests {
		if got := nameComponent(tt.input); got != tt.expected {
			t.Fatalf("tests[%d] - expected=%q, got=%q", i, tt.expected, got)
		}
	}
}

func TestFileName(t *testing.T) {
	at := time.Date(2026, 10, 16, 9, 30, 5, 0, time.UTC)
	tests := []struct {
		mode, target, version string
		expected              string
	}{
		{"batch", "contracts/", "^0.8.20", "build_report_batch_contracts_0.8.20_20261016-093005.md"},
		{"batch", "src/list.yaml", "0.7.6", "build_report_batch_list_0.7.6_20261016-093005.md"},
		{"watch", "", ">=0.6.0 <0.9.0", "build_report_watch_unknown_0.6.0__0.9.0_20261016-093005.md"},
	}
	for i, tt := range tests {
		r := NewReport(tt.mode, tt.target, tt.version, true)
		r.BuildTime = at
		if got := FileName(r); got != tt.expected {
			t.Fatalf("tests[%d] - expected=%q, got=%q", i, tt.expected, got)
		}
	}
}

func TestFileStorageKeepsEarlierReports(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStorage(dir)
	r := sample()
	first, err := s.Save(r, "one")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	second, err := s.Save(r, "two")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if first == second || !strings.HasSuffix(second, "_2.md") {
		t.Fatalf("second report should get a suffix, got=%q and %q", first, second)
	}
	if data, _ := os.ReadFile(first); string(data) != "one" {
		t.Fatalf("first report overwritten, got=%q", data)
	}
	if NewFileStorage("").Dir != "reports" {
		t.Fatalf("default report dir wrong")
	}
}
