package generator

import (
	"fmt"
	"strings"

	"github.com/VectorBits/Rubisol/src/internal/config"
	"github.com/VectorBits/Rubisol/src/internal/typemap"
)

const indentUnit = "    "

type writer struct {
	sb strings.Builder
}

func (w *writer) line(depth int, s string) {
	if s == "" {
		w.sb.WriteString("\n")
		return
	}
	w.sb.WriteString(strings.Repeat(indentUnit, depth))
	w.sb.WriteString(s)
	w.sb.WriteString("\n")
}

// Render produces the final source: license, pragma, imports and one block per contract.
func Render(cfg config.Config, imports []string, specs []*ContractSpec) string {
	w := &writer{}
	license := cfg.License
	if license == "" {
		license = config.DefaultLicense
	}
	w.line(0, "// SPDX-License-Identifier: "+license)
	w.line(0, "pragma solidity "+cfg.Constraint()+";")
	if len(imports) > 0 {
		w.line(0, "")
		for _, imp := range imports {
			w.line(0, fmt.Sprintf("import %q;", imp))
		}
	}
	for _, c := range specs {
		w.line(0, "")
		renderContract(w, c)
	}
	return w.sb.String()
}

func renderContract(w *writer, c *ContractSpec) {
	head := "contract " + c.Name
	if c.Abstract {
		head = "abstract " + head
	}
	if len(c.Parents) > 0 {
		head += " is " + strings.Join(c.Parents, ", ")
	}
	w.line(0, head+" {")

	// 每个分组之间空一行
	var groups [][]string
	if len(c.Enums) > 0 {
		var g []string
		for _, e := range c.Enums {
			g = append(g, fmt.Sprintf("enum %s { %s }", e.Name, strings.Join(e.Members, ", ")))
		}
		groups = append(groups, g)
	}
	if len(c.Events) > 0 {
		var g []string
		for _, e := range c.Events {
			g = append(g, fmt.Sprintf("event %s(%s);", e.Name, eventParams(e.Params)))
		}
		groups = append(groups, g)
	}
	if len(c.StateVariables) > 0 {
		var g []string
		for _, v := range c.StateVariables {
			g = append(g, stateVar(v))
		}
		groups = append(groups, g)
	}

	first := true
	for _, g := range groups {
		if !first {
			w.line(0, "")
		}
		first = false
		for _, l := range g {
			w.line(1, l)
		}
	}
	for _, fn := range c.Functions {
		if !first {
			w.line(0, "")
		}
		first = false
		renderFunction(w, fn)
	}
	w.line(0, "}")
}

func eventParams(ps []Param) string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		parts = append(parts, p.Type+" "+p.Name)
	}
	return strings.Join(parts, ", ")
}

func stateVar(v *StateVariable) string {
	s := v.Type + " " + string(v.Visibility)
	if v.Constant {
		s += " constant"
	}
	s += " " + v.Name
	if v.Initializer != "" {
		s += " = " + v.Initializer
	}
	return s + ";"
}

func params(ps []Param) string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		parts = append(parts, withLocation(p.Type)+" "+p.Name)
	}
	return strings.Join(parts, ", ")
}

// Signature renders the function header without the opening brace.
func Signature(fn *FunctionSpec) string {
	if fn.Kind == FuncConstructor {
		s := "constructor(" + params(fn.Params) + ")"
		if fn.Mutability == typemap.MutPayable {
			s += " payable"
		}
		return s
	}
	s := "function " + fn.Name + "(" + params(fn.Params) + ") " + string(fn.Visibility)
	if fn.Mutability != typemap.MutNone {
		s += " " + string(fn.Mutability)
	}
	if len(fn.Returns) > 0 {
		rets := make([]string, 0, len(fn.Returns))
		for _, r := range fn.Returns {
			rets = append(rets, withLocation(r))
		}
		s += " returns (" + strings.Join(rets, ", ") + ")"
	}
	return s
}

func renderFunction(w *writer, fn *FunctionSpec) {
	w.line(1, Signature(fn)+" {")
	renderStmts(w, fn.Body, 2)
	w.line(1, "}")
}

func renderStmts(w *writer, stmts []Statement, depth int) {
	for _, s := range stmts {
		renderStmt(w, s, depth)
	}
}

func renderStmt(w *writer, s Statement, depth int) {
	switch s := s.(type) {
	case AssignStmt:
		w.line(depth, s.Target+" "+s.Op+"= "+s.Value+";")
	case VarDeclStmt:
		if s.Value == "" {
			w.line(depth, s.Type+" "+s.Name+";")
			return
		}
		w.line(depth, s.Type+" "+s.Name+" = "+s.Value+";")
	case IfStmt:
		w.line(depth, "if ("+s.Cond+") {")
		renderStmts(w, s.Then, depth+1)
		for len(s.Else) == 1 {
			next, ok := s.Else[0].(IfStmt)
			if !ok {
				break
			}
			w.line(depth, "} else if ("+next.Cond+") {")
			renderStmts(w, next.Then, depth+1)
			s = next
		}
		if len(s.Else) > 0 {
			w.line(depth, "} else {")
			renderStmts(w, s.Else, depth+1)
		}
		w.line(depth, "}")
	case LoopStmt:
		if s.Init == "" && s.Post == "" {
			w.line(depth, "while ("+s.Cond+") {")
		} else {
			w.line(depth, "for ("+s.Init+"; "+s.Cond+"; "+s.Post+") {")
		}
		renderStmts(w, s.Body, depth+1)
		w.line(depth, "}")
	case RequireStmt:
		if s.Message == "" {
			w.line(depth, "require("+s.Cond+");")
			return
		}
		w.line(depth, "require("+s.Cond+", "+s.Message+");")
	case EmitStmt:
		w.line(depth, "emit "+s.Event+"("+strings.Join(s.Args, ", ")+");")
	case ExprStmt:
		w.line(depth, s.Expr+";")
	case ReturnStmt:
		if s.Value == "" {
			w.line(depth, "return;")
			return
		}
		w.line(depth, "return "+s.Value+";")
	case RevertStmt:
		w.line(depth, "revert("+s.Message+");")
	default:
		panic(fmt.Sprintf("generator: unknown statement %T", s))
	}
}
