package renderers

import (
	"fmt"
	"strings"
	"time"
)

type MarkdownRenderer struct{}

func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

func (r *MarkdownRenderer) RenderIssue(issueType, severity, description string) string {
	icon := getSeverityIcon(severity)
	return fmt.Sprintf("%s **[%s]** `%s` %s", icon, severity, issueType, description)
}

func (r *MarkdownRenderer) RenderFileResult(source, output, status string, took time.Duration, contracts []string, issues []string) string {
	var result strings.Builder

	// 源文件作为一级标题
	result.WriteString(fmt.Sprintf("# 📄 Source: `%s`\n\n", source))
	result.WriteString(fmt.Sprintf("**Status**: %s\n", status))
	if output != "" {
		result.WriteString(fmt.Sprintf("**Output**: `%s`\n", output))
	}
	if took > 0 {
		result.WriteString(fmt.Sprintf("**Duration**: %s\n", took.Round(time.Millisecond)))
	}
	if len(contracts) > 0 {
		result.WriteString(fmt.Sprintf("**Contracts**: %s\n", strings.Join(contracts, ", ")))
	}
	result.WriteString("\n")

	if len(issues) > 0 {
		result.WriteString("## 🛡️ Issues\n\n")
		for i, is := range issues {
			result.WriteString(fmt.Sprintf("%d. %s\n", i+1, is))
		}
		result.WriteString("\n")
	} else {
		result.WriteString("## ✅ No issues\n\n")
	}
	return result.String()
}

func getSeverityIcon(severity string) string {
	switch severity {
	case "Error":
		return "🔴"
	case "Warning":
		return "🟡"
	default:
		return "⚪"
	}
}
