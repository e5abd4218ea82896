package optimizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	externalRe = regexp.MustCompile(`\.(?:transfer|send)\(|\.call\{value:`)
	deleteRe   = regexp.MustCompile(`^\s*delete\s+([A-Za-z_]\w*)((?:\[[^\[\]]*\])*)\s*;$`)
	storeRe    = regexp.MustCompile(`^\s*([A-Za-z_]\w*)((?:\[[^\[\]]*\])*)\s*[-+*/%|&^]?=[^=]`)
	pushRe     = regexp.MustCompile(`^\s*([A-Za-z_]\w*)((?:\[[^\[\]]*\])*)\.(?:push|pop)\(`)
	sizedRe    = regexp.MustCompile(`^(?:u?int|bytes)\d*$`)
	invokeRe   = regexp.MustCompile(`(\.)?\b([A-Za-z_]\w*)\s*(?:\{[^}]*\})?\(`)
)

// 类型转换和转账本身不会读取状态
var plainCalls = map[string]bool{
	"payable": true, "address": true, "bool": true, "string": true, "bytes": true,
}

var valueCalls = map[string]bool{"transfer": true, "send": true, "call": true}

// reorderEffects moves a mapping write that directly follows a value transfer
// in front of it. When the transfer reads the same entry, the entry is cached
// in a local first. Writes that cannot be moved are reported.
func reorderEffects(code string) (string, []string) {
	lines, trailing := splitLines(code)
	var warnings []string

	cs := contracts(lines)
	for k := len(cs) - 1; k >= 0; k-- {
		c := cs[k]
		fields := map[string]string{}
		for _, d := range stateDecls(lines, c) {
			if !d.constant {
				fields[d.name] = d.typ
			}
		}
		if len(fields) == 0 {
			continue
		}
		fns := functions(lines, c)
		for f := len(fns) - 1; f >= 0; f-- {
			fn := fns[f]
			body := settle(append([]string(nil), lines[fn.start:fn.end+1]...), fields)
			warnings = append(lateWrites(c.name, fn.name, body, fields), warnings...)
			lines = splice(lines, fn.start, fn.end+1, body)
		}
	}
	return joinLines(lines, trailing), warnings
}

// settle applies hoist until nothing moves.
func settle(body []string, fields map[string]string) []string {
	for moved := true; moved; {
		moved = false
		for i := 1; i+2 < len(body); i++ {
			if !isTransfer(body[i]) {
				continue
			}
			if out, ok := hoist(body[i], body[i+1], fields, body); ok {
				body = splice(body, i, i+2, out)
				moved = true
				break
			}
		}
	}
	return body
}

func isTransfer(l string) bool {
	loc := externalRe.FindStringIndex(l)
	if loc == nil {
		return false
	}
	s := strings.TrimSpace(l)
	if !strings.HasSuffix(s, ";") {
		return false
	}
	if strings.ContainsAny(s, "{}") && !strings.Contains(s, ".call{value:") {
		return false
	}
	// 返回值被接收时不动
	return !strings.Contains(l[:loc[0]], "=")
}

// mutation reports the field and index a statement writes to.
func mutation(l string) (string, string, bool) {
	for _, re := range []*regexp.Regexp{deleteRe, storeRe, pushRe} {
		if m := re.FindStringSubmatch(l); m != nil {
			return m[1], m[2], true
		}
	}
	return "", "", false
}

func hoist(call, next string, fields map[string]string, body []string) ([]string, bool) {
	if indentOf(call) != indentOf(next) {
		return nil, false
	}
	name, index, ok := mutation(next)
	if !ok || index == "" {
		return nil, false
	}
	typ, isField := fields[name]
	if !isField || !strings.HasPrefix(typ, "mapping(") {
		return nil, false
	}
	if strings.Contains(next, ".balance") || externalRe.MatchString(next) {
		return nil, false
	}

	// 其他函数调用可能间接读取该 mapping，不移动
	if !onlyTransfer(call) {
		return nil, false
	}

	field := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
	if !field.MatchString(call) {
		return []string{next, call}, true
	}

	vt := valueType(typ)
	if strings.Count(index, "[") != strings.Count(typ, "mapping(") || !isValueType(vt) {
		return nil, false
	}
	key := name + index
	local := freshLocal(name+"Amount", body)
	rewritten := strings.ReplaceAll(call, key, local)
	if field.MatchString(rewritten) {
		return nil, false
	}
	return []string{indentOf(call) + vt + " " + local + " = " + key + ";", next, rewritten}, true
}

// onlyTransfer reports whether the only calls in l are the value transfer
// and type conversions.
func onlyTransfer(l string) bool {
	for _, m := range invokeRe.FindAllStringSubmatch(l, -1) {
		name := m[2]
		if m[1] == "." {
			if !valueCalls[name] {
				return false
			}
			continue
		}
		if plainCalls[name] || sizedRe.MatchString(name) {
			continue
		}
		return false
	}
	return true
}

func isValueType(t string) bool {
	if t == "string" || t == "bytes" || strings.HasSuffix(t, "]") || strings.HasPrefix(t, "mapping") {
		return false
	}
	return !strings.ContainsAny(t, " (")
}

func freshLocal(base string, body []string) string {
	text := strings.Join(body, "\n")
	name := base
	for n := 2; regexp.MustCompile(`\b` + name + `\b`).MatchString(text); n++ {
		name = base + strconv.Itoa(n)
	}
	return name
}

// lateWrites reports state writes that still follow a value transfer.
func lateWrites(contract, fn string, body []string, fields map[string]string) []string {
	var out []string
	seen := map[string]bool{}
	after := false
	for _, l := range body[1 : len(body)-1] {
		if externalRe.MatchString(l) {
			after = true
			continue
		}
		if !after {
			continue
		}
		name, _, ok := mutation(l)
		if !ok || seen[name] {
			continue
		}
		if _, isField := fields[name]; !isField {
			continue
		}
		seen[name] = true
		out = append(out, fmt.Sprintf("reentrancy: %s.%s writes %s after an external call", contract, fn, name))
	}
	return out
}

func splice(lines []string, from, to int, with []string) []string {
	out := make([]string, 0, len(lines)-(to-from)+len(with))
	out = append(out, lines[:from]...)
	out = append(out, with...)
	return append(out, lines[to:]...)
}
