package solc

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var pragmaRe = regexp.MustCompile(`pragma\s+solidity\s+([^;]+);`)

// 各 minor 版本的最后一个 patch
var lastPatch = []struct {
	minor int
	patch int
}{
	{4, 26}, {5, 17}, {6, 12}, {7, 6}, {8, 30},
}

// Releases lists known solc releases in ascending order.
func Releases() []*semver.Version {
	var out []*semver.Version
	for _, lp := range lastPatch {
		for p := 0; p <= lp.patch; p++ {
			out = append(out, semver.MustParse(fmt.Sprintf("0.%d.%d", lp.minor, p)))
		}
	}
	return out
}

// ExtractPragma returns the constraint text of the first `pragma solidity` in source.
func ExtractPragma(source string) string {
	m := pragmaRe.FindStringSubmatch(source)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ParseConstraint parses a pragma constraint. Solidity separates ranges with
// spaces, which semver already treats as AND.
func ParseConstraint(constraint string) (*semver.Constraints, error) {
	c, err := semver.NewConstraint(strings.TrimSpace(constraint))
	if err != nil {
		return nil, fmt.Errorf("invalid pragma constraint %q: %w", constraint, err)
	}
	return c, nil
}

// helloq ExtractPragmaVersion 从源码的所有 pragma 中选出同时满足全部约束的最高已知版本
func ExtractPragmaVersion(source string) string {
	matches := pragmaRe.FindAllStringSubmatch(source, -1)
	if len(matches) == 0 {
		return ""
	}
	var cs []*semver.Constraints
	for _, m := range matches {
		c, err := ParseConstraint(m[1])
		if err != nil {
			return ""
		}
		cs = append(cs, c)
	}
	rel := Releases()
	for i := len(rel) - 1; i >= 0; i-- {
		ok := true
		for _, c := range cs {
			if !c.Check(rel[i]) {
				ok = false
				break
			}
		}
		if ok {
			return rel[i].String()
		}
	}
	return ""
}

// PickVersion returns the highest known release admitted by constraint.
func PickVersion(constraint string) (string, error) {
	c, err := ParseConstraint(constraint)
	if err != nil {
		return "", err
	}
	rel := Releases()
	for i := len(rel) - 1; i >= 0; i-- {
		if c.Check(rel[i]) {
			return rel[i].String(), nil
		}
	}
	return "", fmt.Errorf("no known solc release satisfies %q", constraint)
}

var checkedFrom = semver.MustParse("0.8.0")

// CheckedArithmetic reports whether every release admitted by the constraint
// has built-in overflow checks (>= 0.8.0). An unparsable or empty constraint
// reports false.
func CheckedArithmetic(constraint string) bool {
	c, err := ParseConstraint(constraint)
	if err != nil {
		return false
	}
	admitsAny := false
	for _, v := range Releases() {
		if !c.Check(v) {
			continue
		}
		admitsAny = true
		if v.LessThan(checkedFrom) {
			return false
		}
	}
	return admitsAny
}
