package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Reporter struct {
	generator Generator
	storage   Storage
}

func NewReporter(generator Generator, storage Storage) *Reporter {
	return &Reporter{
		generator: generator,
		storage:   storage,
	}
}

func (r *Reporter) GenerateAndSave(report *Report) (string, error) {
	// 生成报告内容
	content, err := r.generator.Generate(report)
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}

	// 保存报告
	filepath, err := r.storage.Save(report, content)
	if err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	return filepath, nil
}

func NewReport(mode, target, targetVersion string, optimize bool) *Report {
	return &Report{
		Mode:                 mode,
		Target:               target,
		TargetVersion:        targetVersion,
		Optimize:             optimize,
		BuildTime:            time.Now(),
		SeverityDistribution: make(map[string]int),
		Results:              make([]FileResult, 0),
	}
}

func (r *Report) AddFileResult(result FileResult) {
	r.Results = append(r.Results, result)
	r.TotalFiles++
	if result.Status != StatusCompiled {
		r.FailedFiles++
	}
	for _, is := range result.Issues {
		r.SeverityDistribution[is.Severity]++
	}
}

const (
	StatusCompiled = "✅ Compiled"
	StatusFailed   = "❌ Failed"
)

func NewFileResult(source string) FileResult {
	return FileResult{
		Source:    source,
		BuildTime: time.Now(),
		Status:    StatusCompiled,
		Issues:    make([]Issue, 0),
	}
}

func (f *FileResult) AddIssue(issue Issue) {
	f.Issues = append(f.Issues, issue)
}

// AddWarning records a pipeline warning, picking its check name when the text has one.
func (f *FileResult) AddWarning(text string) {
	f.AddIssue(Issue{Type: issueType(text), Severity: "Warning", Description: text})
}

// Fail marks the file failed with one error issue per message.
func (f *FileResult) Fail(messages ...string) {
	f.Status = StatusFailed
	for _, m := range messages {
		f.AddIssue(Issue{Type: issueType(m), Severity: "Error", Description: m})
	}
}

var checkRe = regexp.MustCompile(`^(?:error|warning)\[([\w-]+)\]`)

func issueType(text string) string {
	if m := checkRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if i := strings.Index(text, ":"); i > 0 && !strings.Contains(text[:i], " ") {
		return text[:i]
	}
	return "note"
}
