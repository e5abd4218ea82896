package optimizer

import (
	"regexp"
	"strings"
)

// block is a brace-delimited region: start is the header line, end the closing brace line.
type block struct {
	name       string
	start, end int
}

// stateDecl is one state-variable declaration line.
type stateDecl struct {
	line     int
	typ      string
	name     string
	constant bool
}

var (
	contractRe = regexp.MustCompile(`^(?:abstract\s+)?(?:contract|library)\s+(\w+)`)
	functionRe = regexp.MustCompile(`^\s*(?:function\s+(\w+)|constructor)\s*\(`)
	enumRe     = regexp.MustCompile(`^\s*enum\s+(\w+)`)
)

// depths returns the brace depth at the start of each line. Braces inside
// strings and // comments are ignored.
func depths(lines []string) []int {
	out := make([]int, len(lines))
	d := 0
	for i, l := range lines {
		out[i] = d
		d += braceDelta(l)
	}
	return out
}

func braceDelta(l string) int {
	delta := 0
	inStr := byte(0)
	for i := 0; i < len(l); i++ {
		c := l[i]
		switch {
		case inStr != 0:
			if c == '\\' {
				i++
			} else if c == inStr {
				inStr = 0
			}
		case c == '"' || c == '\'':
			inStr = c
		case c == '/' && i+1 < len(l) && l[i+1] == '/':
			return delta
		case c == '{':
			delta++
		case c == '}':
			delta--
		}
	}
	return delta
}

// closing returns the index of the line that closes the block opened on line start.
func closing(lines []string, d []int, start int) int {
	if braceDelta(lines[start]) <= 0 {
		return start
	}
	for i := start + 1; i < len(lines); i++ {
		if d[i]+braceDelta(lines[i]) <= d[start] {
			return i
		}
	}
	return len(lines) - 1
}

func contracts(lines []string) []block {
	d := depths(lines)
	var out []block
	for i, l := range lines {
		if d[i] != 0 {
			continue
		}
		if m := contractRe.FindStringSubmatch(strings.TrimSpace(l)); m != nil && strings.Contains(l, "{") {
			out = append(out, block{name: m[1], start: i, end: closing(lines, d, i)})
		}
	}
	return out
}

func functions(lines []string, c block) []block {
	d := depths(lines)
	var out []block
	for i := c.start + 1; i < c.end; i++ {
		if d[i] != d[c.start]+1 {
			continue
		}
		if m := functionRe.FindStringSubmatch(lines[i]); m != nil && strings.Contains(lines[i], "{") {
			name := m[1]
			if name == "" {
				name = "constructor"
			}
			out = append(out, block{name: name, start: i, end: closing(lines, d, i)})
		}
	}
	return out
}

var notDecl = map[string]bool{
	"event": true, "enum": true, "using": true, "function": true, "constructor": true,
	"modifier": true, "error": true, "struct": true, "import": true, "pragma": true,
	"receive": true, "fallback": true,
}

var declWords = map[string]bool{
	"public": true, "private": true, "internal": true, "external": true,
	"constant": true, "immutable": true, "override": true, "transient": true,
}

// stateDecls finds state-variable declarations directly inside contract c.
func stateDecls(lines []string, c block) []stateDecl {
	d := depths(lines)
	var out []stateDecl
	for i := c.start + 1; i < c.end; i++ {
		if d[i] != d[c.start]+1 {
			continue
		}
		s := strings.TrimSpace(lines[i])
		if !strings.HasSuffix(s, ";") || strings.HasPrefix(s, "//") {
			continue
		}
		if first := strings.Fields(s)[0]; notDecl[first] {
			continue
		}
		if sd, ok := parseDecl(s); ok {
			sd.line = i
			out = append(out, sd)
		}
	}
	return out
}

func parseDecl(s string) (stateDecl, bool) {
	s = strings.TrimSuffix(s, ";")
	if i := initializerAt(s); i >= 0 {
		s = s[:i]
	}
	var sd stateDecl
	rest := ""
	if strings.HasPrefix(s, "mapping") {
		depth := 0
		end := -1
		for i := 0; i < len(s); i++ {
			if s[i] == '(' {
				depth++
			} else if s[i] == ')' {
				depth--
				if depth == 0 {
					end = i
					break
				}
			}
		}
		if end < 0 {
			return sd, false
		}
		sd.typ, rest = s[:end+1], s[end+1:]
	} else {
		f := strings.Fields(s)
		if len(f) < 2 {
			return sd, false
		}
		sd.typ = f[0]
		rest = strings.Join(f[1:], " ")
		if sd.typ == "address" && len(f) > 2 && f[1] == "payable" {
			sd.typ = "address payable"
			rest = strings.Join(f[2:], " ")
		}
	}
	for _, w := range strings.Fields(rest) {
		switch {
		case w == "constant" || w == "immutable":
			sd.constant = true
		case declWords[w]:
		default:
			sd.name = w
		}
	}
	return sd, sd.name != ""
}

// initializerAt returns the index of the assignment `=` outside parentheses,
// skipping `=>`, `==` and comparison operators. -1 when there is none.
func initializerAt(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			if i+1 < len(s) && (s[i+1] == '>' || s[i+1] == '=') {
				i++
				continue
			}
			if i > 0 && strings.IndexByte("=!<>", s[i-1]) >= 0 {
				continue
			}
			return i
		}
	}
	return -1
}

// enums returns the enum type names declared in contract c.
func enums(lines []string, c block) map[string]bool {
	out := map[string]bool{}
	for i := c.start + 1; i < c.end; i++ {
		if m := enumRe.FindStringSubmatch(lines[i]); m != nil {
			out[m[1]] = true
		}
	}
	return out
}

func indentOf(l string) string {
	return l[:len(l)-len(strings.TrimLeft(l, " \t"))]
}

// valueType returns V for mapping(K => V), recursing through nested mappings.
func valueType(t string) string {
	for strings.HasPrefix(t, "mapping(") {
		i := strings.Index(t, "=>")
		if i < 0 {
			return t
		}
		t = strings.TrimSpace(t[i+2 : len(t)-1])
	}
	return strings.TrimSuffix(t, "[]")
}
