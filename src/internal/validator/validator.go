// Package validator runs pattern checks over Ruby source and generated Solidity.
// Checks only report findings; they never change the text and never fail.
package validator

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one check result. Line is 1-based, 0 when it concerns the whole text.
type Finding struct {
	Check    string   `json:"check"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Line     int      `json:"line,omitempty"`
}

func (f Finding) String() string {
	if f.Line > 0 {
		return fmt.Sprintf("%s[%s] line %d: %s", f.Severity, f.Check, f.Line, f.Message)
	}
	return fmt.Sprintf("%s[%s]: %s", f.Severity, f.Check, f.Message)
}

// ValidationError promotes findings to a failure. Callers decide when to use it.
type ValidationError struct {
	Findings []Finding
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Findings))
	for i, f := range e.Findings {
		msgs[i] = f.String()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Errors returns the error-severity findings.
func Errors(findings []Finding) []Finding {
	return filter(findings, SeverityError)
}

// Warnings returns the warning-severity findings.
func Warnings(findings []Finding) []Finding {
	return filter(findings, SeverityWarning)
}

func filter(findings []Finding, s Severity) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}

// ValidateSource checks Ruby source before it is parsed.
func ValidateSource(text string) []Finding {
	lines := maskLines(text, '#')
	var findings []Finding
	if !anyLine(lines, classRe) {
		findings = append(findings, Finding{Check: "class-declaration", Severity: SeverityError,
			Message: "no class declaration found"})
	}
	if !anyLine(lines, initializeRe) {
		findings = append(findings, Finding{Check: "initializer", Severity: SeverityError,
			Message: "no initialize method found"})
	}
	return append(findings, scan(splitLines(text), lines, sourceRules)...)
}

// ValidateGenerated checks generated Solidity.
func ValidateGenerated(text string) []Finding {
	lines := maskLines(text, '/')
	var findings []Finding
	if !anyLine(lines, pragmaRe) {
		findings = append(findings, Finding{Check: "pragma", Severity: SeverityError,
			Message: "missing pragma solidity directive"})
	}
	if !anyLine(lines, contractRe) {
		findings = append(findings, Finding{Check: "contract-declaration", Severity: SeverityError,
			Message: "missing contract declaration"})
	}
	return append(findings, scan(splitLines(text), lines, generatedRules)...)
}

// scan matches raw rules against raw and the others against masked.
func scan(raw, masked []string, rules []rule) []Finding {
	var out []Finding
	for i, m := range masked {
		for _, r := range rules {
			l := m
			if r.raw {
				l = raw[i]
			}
			if r.match(l) {
				out = append(out, Finding{Check: r.check, Severity: r.severity, Message: r.message(l), Line: i + 1})
			}
		}
	}
	return out
}
