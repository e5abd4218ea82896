package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/VectorBits/Rubisol/src/internal/report/renderers"
)

type FileResult struct {
	Source    string
	Output    string
	BuildTime time.Time
	Duration  time.Duration
	Status    string
	Cached    bool
	Contracts []string
	Issues    []Issue
}

type Issue struct {
	Type        string
	Severity    string // Error | Warning
	Description string
}

type Report struct {
	Mode                 string // batch | watch
	Target               string
	TargetVersion        string
	Optimize             bool
	BuildTime            time.Time
	TotalFiles           int
	FailedFiles          int
	SeverityDistribution map[string]int
	Results              []FileResult
}

type Generator interface {
	Generate(report *Report) (string, error)
}

type MarkdownGenerator struct {
	renderer *renderers.MarkdownRenderer
}

func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{renderer: renderers.NewMarkdownRenderer()}
}

// helloq Generate 生成 markdown 报告
func (g *MarkdownGenerator) Generate(report *Report) (string, error) {
	var b strings.Builder

	// 报告头部
	b.WriteString("# Rubisol Build Report\n\n")
	fmt.Fprintf(&b, "**Mode**: %s\n", report.Mode)
	fmt.Fprintf(&b, "**Target**: %s\n", report.Target)
	fmt.Fprintf(&b, "**Solidity**: %s\n", report.TargetVersion)
	fmt.Fprintf(&b, "**Optimizer**: %s\n", onOff(report.Optimize))
	fmt.Fprintf(&b, "**Build Time**: %s\n\n", report.BuildTime.Format("2006-01-02 15:04:05"))

	b.WriteString("## Build Statistics\n\n")
	fmt.Fprintf(&b, "- **Total Files**: %d\n", report.TotalFiles)
	fmt.Fprintf(&b, "- **Failed Files**: %d\n\n", report.FailedFiles)

	if len(report.SeverityDistribution) > 0 {
		b.WriteString("## Issue Distribution\n\n")
		severities := make([]string, 0, len(report.SeverityDistribution))
		for s := range report.SeverityDistribution {
			severities = append(severities, s)
		}
		sort.Strings(severities)
		for _, s := range severities {
			fmt.Fprintf(&b, "- **%s**: %d\n", s, report.SeverityDistribution[s])
		}
		b.WriteString("\n")
	}

	b.WriteString("## Detailed Results\n\n")
	for i, r := range report.Results {
		issues := make([]string, 0, len(r.Issues))
		for _, is := range r.Issues {
			issues = append(issues, g.renderer.RenderIssue(is.Type, is.Severity, is.Description))
		}
		status := r.Status
		if r.Cached {
			status += " (cached)"
		}
		b.WriteString(g.renderer.RenderFileResult(r.Source, r.Output, status, r.Duration, r.Contracts, issues))

		// 如果不是最后一个结果，添加分隔线
		if i < len(report.Results)-1 {
			b.WriteString("---\n\n")
		}
	}
	return b.String(), nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
