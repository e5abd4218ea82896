package validator

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	classRe      = regexp.MustCompile(`(?:^|;)\s*class\s+[A-Z]`)
	initializeRe = regexp.MustCompile(`(?:^|;)\s*def\s+initialize\b`)
	pragmaRe     = regexp.MustCompile(`^\s*pragma\s+solidity\b`)
	contractRe   = regexp.MustCompile(`^\s*(?:abstract\s+)?contract\s+\w+`)
	lowCallRe    = regexp.MustCompile(`\.call(?:\{[^}]*\})?\(`)
)

type rule struct {
	check    string
	severity Severity
	re       *regexp.Regexp
	// token overrides the matched text in the message
	token string
	// raw rules see the line before strings and comments are blanked
	raw     bool
	format  string
	matchFn func(line string) bool
}

func (r rule) match(l string) bool {
	if r.matchFn != nil {
		return r.matchFn(l)
	}
	return r.re.MatchString(l)
}

func (r rule) message(l string) string {
	if !strings.Contains(r.format, "%s") {
		return r.format
	}
	tok := r.token
	if tok == "" && r.re != nil {
		m := r.re.FindStringSubmatch(l)
		for _, g := range m[1:] {
			if g != "" {
				tok = g
				break
			}
		}
		if tok == "" {
			tok = m[0]
		}
	}
	return fmt.Sprintf(r.format, tok)
}

var sourceRules = []rule{
	{check: "code-execution", severity: SeverityError, raw: true,
		re:     regexp.MustCompile(`\b(eval|instance_eval|class_eval|module_eval|instance_exec|class_exec)\b`),
		format: "dynamic code execution with %s is not allowed"},
	{check: "process-execution", severity: SeverityError, raw: true,
		re:     regexp.MustCompile(`\b(system|exec|spawn|fork)\b`),
		format: "OS process execution with %s is not allowed"},
	{check: "process-execution", severity: SeverityError, raw: true,
		re: regexp.MustCompile("`"), token: "backticks",
		format: "OS process execution with %s is not allowed"},
	{check: "process-execution", severity: SeverityError, raw: true,
		re: regexp.MustCompile(`%x[({\[<|!]`), token: "%x",
		format: "OS process execution with %s is not allowed"},
	{check: "process-execution", severity: SeverityError, raw: true,
		re:     regexp.MustCompile(`\b(IO\.popen|Open3)\b`),
		format: "OS process execution with %s is not allowed"},
	{check: "dynamic-dispatch", severity: SeverityWarning,
		re:     regexp.MustCompile(`\.(send|public_send|__send__)\b|\b(method_missing|define_method)\b`),
		format: "dynamic dispatch with %s cannot be translated"},
	{check: "float-literal", severity: SeverityWarning,
		re:     regexp.MustCompile(`(?:^|[^\w.])(\d+\.\d+)(?:[^\w.]|$)`),
		format: "float literal %s has no exact Solidity equivalent"},
}

var generatedRules = []rule{
	{check: "weak-randomness", severity: SeverityWarning,
		re:     regexp.MustCompile(`block\.timestamp\s*%|keccak256\([^;]*block\.timestamp`),
		format: "block.timestamp used as a source of randomness"},
	{check: "tx-origin", severity: SeverityWarning,
		re:     regexp.MustCompile(`tx\.origin\s*[!=]=|[!=]=\s*tx\.origin`),
		format: "tx.origin used for authorization"},
	{check: "selfdestruct", severity: SeverityWarning,
		re:     regexp.MustCompile(`\bselfdestruct\s*\(`),
		format: "selfdestruct can remove the contract"},
	{check: "delegatecall", severity: SeverityWarning,
		re:     regexp.MustCompile(`\.delegatecall\s*\(`),
		format: "delegatecall runs foreign code in this contract's storage"},
	{check: "unchecked-call", severity: SeverityWarning,
		matchFn: uncheckedCall,
		format:  "return value of low-level call is not checked"},
}

// uncheckedCall reports a low-level call whose success flag is dropped.
func uncheckedCall(l string) bool {
	loc := lowCallRe.FindStringIndex(l)
	if loc == nil {
		return false
	}
	before := strings.TrimSpace(l[:loc[0]])
	if strings.Contains(before, "=") {
		return false
	}
	for _, p := range []string{"require(", "assert(", "if (", "if(", "return "} {
		if strings.HasPrefix(before, p) {
			return false
		}
	}
	return true
}

func anyLine(lines []string, re *regexp.Regexp) bool {
	for _, l := range lines {
		if re.MatchString(l) {
			return true
		}
	}
	return false
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// maskLines splits text into lines with comments removed and string
// contents blanked, so checks only see code. comment is '#' for Ruby and
// '/' for Solidity (//). Ruby interpolation inside double quotes stays visible.
func maskLines(text string, comment byte) []string {
	raw := splitLines(text)
	out := make([]string, len(raw))
	for i, l := range raw {
		out[i] = maskLine(l, comment)
	}
	return out
}

func maskLine(l string, comment byte) string {
	var b strings.Builder
	quote := byte(0)
	for i := 0; i < len(l); i++ {
		c := l[i]
		if quote != 0 {
			switch {
			case c == '\\' && i+1 < len(l):
				b.WriteString("  ")
				i++
			case c == quote:
				b.WriteByte(c)
				quote = 0
			case comment == '#' && quote == '"' && c == '#' && i+1 < len(l) && l[i+1] == '{':
				end := strings.IndexByte(l[i:], '}')
				if end < 0 {
					end = len(l) - i - 1
				}
				b.WriteString(l[i : i+end+1])
				i += end
			default:
				b.WriteByte(' ')
			}
			continue
		}
		switch {
		case c == '"' || c == '\'':
			quote = c
			b.WriteByte(c)
		case comment == '#' && c == '#':
			return b.String()
		case comment == '/' && c == '/' && i+1 < len(l) && l[i+1] == '/':
			return b.String()
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
