// Package generator 将 Ruby 语法树翻译为 Solidity 源码。
// 先把每个顶层 class 收集成 ContractSpec，再统一渲染。
package generator

import (
	"fmt"
	"strings"

	"github.com/VectorBits/Rubisol/src/internal/ast"
	"github.com/VectorBits/Rubisol/src/internal/config"
)

type generator struct {
	cfg     config.Config
	imports []string
	errs    []string
	seen    map[string]bool
}

// Generate translates a Program tree into Solidity text. Every problem found is
// reported at once in a *CompilationError.
func Generate(prog *ast.Node, cfg config.Config) (string, []*ContractSpec, error) {
	if !prog.Is(ast.KindProgram) {
		return "", nil, &CompilationError{Messages: []string{"expected a program node"}}
	}
	g := &generator{cfg: cfg, seen: map[string]bool{}}

	var specs []*ContractSpec
	for _, st := range prog.Children {
		switch st.Kind {
		case ast.KindImport:
			g.addImport(st.Value)
		case ast.KindClass:
			if spec := g.buildContract(st, false); spec != nil {
				specs = append(specs, spec)
			}
		case ast.KindModule:
			specs = append(specs, g.buildModule(st)...)
		}
	}
	if len(specs) == 0 && len(g.errs) == 0 {
		g.errorf(ast.Pos{}, "no class declaration found")
	}
	if len(g.errs) > 0 {
		return "", nil, &CompilationError{Messages: g.errs}
	}
	return Render(cfg, g.imports, specs), specs, nil
}

// buildModule treats a module holding classes as a namespace and any other
// module as an abstract contract.
func (g *generator) buildModule(mod *ast.Node) []*ContractSpec {
	body := mod.Child(1)
	var inner []*ContractSpec
	hasClass := false
	for _, st := range body.Children {
		switch st.Kind {
		case ast.KindClass:
			hasClass = true
			if spec := g.buildContract(st, false); spec != nil {
				inner = append(inner, spec)
			}
		case ast.KindModule:
			hasClass = true
			inner = append(inner, g.buildModule(st)...)
		case ast.KindImport:
			g.addImport(st.Value)
		}
	}
	if hasClass {
		return inner
	}
	if spec := g.buildContract(mod, true); spec != nil {
		return []*ContractSpec{spec}
	}
	return nil
}

// addImport maps `require 'token/erc20'` to `import "token/erc20.sol";`.
func (g *generator) addImport(path string) {
	path = strings.TrimSuffix(path, ".rb")
	if !strings.HasSuffix(path, ".sol") {
		path += ".sol"
	}
	for _, p := range g.imports {
		if p == path {
			return
		}
	}
	g.imports = append(g.imports, path)
}

func (g *generator) errorf(pos ast.Pos, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if pos.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", pos.Line, msg)
	}
	if g.seen[msg] {
		return
	}
	g.seen[msg] = true
	g.errs = append(g.errs, msg)
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}
