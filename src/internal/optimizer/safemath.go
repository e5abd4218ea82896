package optimizer

import (
	"regexp"
	"strings"

	"github.com/VectorBits/Rubisol/src/internal/solc"
)

const (
	SafeMathImport = `import "@openzeppelin/contracts/math/SafeMath.sol";`
	usingSafeMath  = "using SafeMath for uint256;"
)

var (
	compoundRe = regexp.MustCompile(`^(\s*)([A-Za-z_]\w*)((?:\[[^\]]*\])*) ([-+*])= (.+);$`)
	stepRe     = regexp.MustCompile(`^(\s*)([A-Za-z_]\w*)((?:\[[^\]]*\])*)(\+\+|--);$`)

	safeOps = map[string]string{"+": "add", "-": "sub", "*": "mul", "++": "add", "--": "sub"}
)

// safeArithmetic rewrites compound arithmetic on uint256 state variables to
// SafeMath calls when the pragma admits compilers without overflow checks.
func safeArithmetic(code string) (string, []string) {
	pragma := solc.ExtractPragma(code)
	if pragma == "" || solc.CheckedArithmetic(pragma) {
		return code, nil
	}

	lines, trailing := splitLines(code)
	changed := false
	cs := contracts(lines)
	// 倒序处理，插入的 using 行不会影响前面合约的行号
	for k := len(cs) - 1; k >= 0; k-- {
		c := cs[k]
		fields := map[string]bool{}
		for _, d := range stateDecls(lines, c) {
			if !d.constant && valueType(d.typ) == "uint256" {
				fields[d.name] = true
			}
		}
		if len(fields) == 0 {
			continue
		}

		rewrote := false
		for _, fn := range functions(lines, c) {
			for i := fn.start + 1; i < fn.end; i++ {
				if m := compoundRe.FindStringSubmatch(lines[i]); m != nil && fields[m[2]] {
					target := m[2] + m[3]
					lines[i] = m[1] + target + " = " + target + "." + safeOps[m[4]] + "(" + m[5] + ");"
					rewrote = true
				} else if m := stepRe.FindStringSubmatch(lines[i]); m != nil && fields[m[2]] {
					target := m[2] + m[3]
					lines[i] = m[1] + target + " = " + target + "." + safeOps[m[4]] + "(1);"
					rewrote = true
				}
			}
		}
		if !rewrote {
			continue
		}
		changed = true
		if !hasLine(lines[c.start+1:c.end], usingSafeMath) {
			ins := []string{indentOf(lines[c.start]) + "    " + usingSafeMath}
			if strings.TrimSpace(lines[c.start+1]) != "" {
				ins = append(ins, "")
			}
			lines = insertLines(lines, c.start+1, ins...)
		}
	}

	if changed && !hasLine(lines, SafeMathImport) {
		lines = addImport(lines, SafeMathImport)
	}
	return joinLines(lines, trailing), nil
}

func hasLine(lines []string, want string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) == want {
			return true
		}
	}
	return false
}

func insertLines(lines []string, at int, ins ...string) []string {
	out := make([]string, 0, len(lines)+len(ins))
	out = append(out, lines[:at]...)
	out = append(out, ins...)
	return append(out, lines[at:]...)
}

// addImport puts imp before the first import, or after the pragma line.
func addImport(lines []string, imp string) []string {
	pragma := -1
	for i, l := range lines {
		t := strings.TrimSpace(l)
		if strings.HasPrefix(t, "import ") {
			return insertLines(lines, i, imp)
		}
		if pragma < 0 && strings.HasPrefix(t, "pragma solidity") {
			pragma = i
		}
		if contractRe.MatchString(t) {
			break
		}
	}
	return insertLines(lines, pragma+1, "", imp)
}
