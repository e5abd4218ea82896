package generator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/VectorBits/Rubisol/src/internal/ast"
	"github.com/VectorBits/Rubisol/src/internal/typemap"
)

type local struct {
	name string // rendered name
	typ  string
}

// translator turns one method body into statements.
type translator struct {
	b       *builder
	fn      *FunctionSpec
	ctor    bool
	scopes  []map[string]*local
	used    map[string]bool
	cached  map[string]string // rendered iterable -> cached length local
	depth   int
	retType string
}

func newTranslator(b *builder, fn *FunctionSpec, ctor bool) *translator {
	return &translator{
		b:      b,
		fn:     fn,
		ctor:   ctor,
		scopes: []map[string]*local{{}},
		used:   map[string]bool{},
		cached: map[string]string{},
	}
}

func (t *translator) errorf(pos ast.Pos, format string, args ...any) {
	t.b.errorf(pos, format, args...)
}

func (t *translator) lookup(name string) *local {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if l, ok := t.scopes[i][name]; ok {
			return l
		}
	}
	return nil
}

func (t *translator) declare(ruby, name, typ string) {
	t.scopes[len(t.scopes)-1][ruby] = &local{name: name, typ: typ}
	t.used[name] = true
}

// reserve marks a generated name (loop index, cached length) as taken in the current scope.
func (t *translator) reserve(name string) {
	t.scopes[len(t.scopes)-1]["\x00"+name] = &local{name: name}
	t.used[name] = true
}

func (t *translator) pushScope() { t.scopes = append(t.scopes, map[string]*local{}) }

func (t *translator) popScope() {
	for _, l := range t.scopes[len(t.scopes)-1] {
		delete(t.used, l.name)
	}
	t.scopes = t.scopes[:len(t.scopes)-1]
}

// fresh returns name, or name2, name3... when it is already in use.
func (t *translator) fresh(name string) string {
	if !t.used[name] {
		return name
	}
	for i := 2; ; i++ {
		if c := name + strconv.Itoa(i); !t.used[c] {
			return c
		}
	}
}

func withLocation(typ string) string {
	if typemap.IsReference(typ) {
		return typ + " memory"
	}
	return typ
}

// ---- 类型 ----

func (t *translator) lookupType(n *ast.Node) (string, bool) {
	switch n.Kind {
	case ast.KindIdent:
		if l := t.lookup(n.Value); l != nil {
			return l.typ, true
		}
		if f := t.b.spec.Field(n.Value); f != nil {
			return f.Type, true
		}
		if r, ok := t.b.returns[n.Value]; ok {
			return r, true
		}
	case ast.KindIVar:
		if f := t.b.spec.Field(n.Value); f != nil {
			return f.Type, true
		}
	case ast.KindCall:
		if r, ok := t.b.returns[n.Value]; ok {
			return r, true
		}
		if s := t.b.sigs[n.Value]; s != nil && s.returns != "" {
			return s.returns, true
		}
	case ast.KindSend:
		if n.Child(0).Is(ast.KindSelf) {
			if f := t.b.spec.Field(n.Value); f != nil {
				return f.Type, true
			}
			if r, ok := t.b.returns[n.Value]; ok {
				return r, true
			}
		}
	}
	return t.b.enumLookup(n)
}

func (t *translator) typeOf(n *ast.Node) string {
	typ, err := typemap.MapType(n, t.lookupType)
	if err != nil {
		return typemap.Uint256
	}
	return typ
}

func (t *translator) noteReturn(v *ast.Node) {
	if t.retType == "" {
		t.retType = t.typeOf(v)
	}
}

// ---- 语句 ----

// predeclare declares, at the top of the function, locals whose first
// assignment sits inside a nested block so that later uses stay in scope.
func (t *translator) predeclare(body []*ast.Node) []Statement {
	top := map[*ast.Node]bool{}
	for _, n := range body {
		top[n] = true
	}
	seen := map[string]bool{}
	var out []Statement

	var visit func(n *ast.Node, bound map[string]bool)
	visit = func(n *ast.Node, bound map[string]bool) {
		switch n.Kind {
		case ast.KindAssign:
			id := n.Child(0)
			if id.Is(ast.KindIdent) && !bound[id.Value] && !seen[id.Value] && t.lookup(id.Value) == nil {
				seen[id.Value] = true
				if !top[n] && !n.Child(1).Is(ast.KindNil) {
					typ := t.typeOf(n.Child(1))
					name := t.fresh(id.Value)
					t.declare(id.Value, name, typ)
					out = append(out, VarDeclStmt{Type: withLocation(typ), Name: name})
				}
			}
		case ast.KindBlock, ast.KindFor:
			inner := map[string]bool{}
			for k := range bound {
				inner[k] = true
			}
			if n.Is(ast.KindFor) {
				inner[n.Child(0).Value] = true
			} else {
				names, _ := ast.BlockParts(n)
				for _, p := range names {
					inner[p] = true
				}
			}
			bound = inner
		case ast.KindDef:
			return
		}
		for _, c := range n.Children {
			visit(c, bound)
		}
	}
	for _, n := range body {
		visit(n, map[string]bool{})
	}
	return out
}

// block translates a statement list. With implicitReturn the last value
// expression becomes the return value, as in Ruby.
func (t *translator) block(nodes []*ast.Node, implicitReturn bool) []Statement {
	var out []Statement
	for i, n := range nodes {
		if implicitReturn && i == len(nodes)-1 && t.isValue(n) {
			t.noteReturn(n)
			out = append(out, ReturnStmt{Value: t.expr(n)})
			continue
		}
		out = append(out, t.stmt(n)...)
	}
	return out
}

var propertyNames = map[string]bool{
	"length": true, "size": true, "count": true, "balance": true,
	"sender": true, "value": true, "origin": true, "timestamp": true, "number": true,
	"coinbase": true, "data": true, "code": true, "codehash": true, "gasprice": true,
	"first": true, "last": true,
}

// isValue reports whether a trailing statement yields a value worth returning.
func (t *translator) isValue(n *ast.Node) bool {
	switch n.Kind {
	case ast.KindInt, ast.KindStr, ast.KindSym, ast.KindTrue, ast.KindFalse,
		ast.KindIVar, ast.KindIndex, ast.KindUnary, ast.KindTernary, ast.KindSelf:
		return true
	case ast.KindIdent:
		switch n.Value {
		case "break", "next", "raise", "private", "public", "protected":
			return false
		}
		if t.lookup(n.Value) != nil || t.b.spec.Field(n.Value) != nil {
			return true
		}
		_, ok := t.b.returns[n.Value]
		return ok
	case ast.KindBinary:
		return n.Value != "<<"
	case ast.KindSend:
		_, args, block := ast.CallParts(n)
		if block != nil {
			return false
		}
		if strings.HasSuffix(n.Value, "?") {
			return true
		}
		if n.Child(0).Is(ast.KindSelf) && t.b.spec.Field(n.Value) != nil {
			return true
		}
		return len(args.Children) == 0 && args.Value == "" && propertyNames[n.Value]
	case ast.KindCall:
		if strings.HasSuffix(n.Value, "?") {
			return true
		}
		_, ok := t.b.returns[n.Value]
		return ok
	}
	return false
}

func (t *translator) stmt(n *ast.Node) []Statement {
	switch n.Kind {
	case ast.KindAssign:
		return t.assign(n)
	case ast.KindOpAssign:
		return t.opAssign(n)
	case ast.KindIf:
		return []Statement{t.ifStmt(n)}
	case ast.KindWhile:
		cond := t.expr(n.Child(0))
		t.pushScope()
		t.depth++
		body := t.block(n.Child(1).Children, false)
		t.depth--
		t.popScope()
		return []Statement{LoopStmt{Cond: stripParens(cond), Body: body}}
	case ast.KindFor:
		return t.iterate(n.Child(1), []string{n.Child(0).Value}, n.Child(2).Children, false)
	case ast.KindReturn:
		if v := n.Child(0); v != nil {
			if t.ctor {
				t.errorf(n.Pos, "initialize cannot return a value")
			}
			t.noteReturn(v)
			return []Statement{ReturnStmt{Value: t.expr(v)}}
		}
		return []Statement{ReturnStmt{}}
	case ast.KindCall:
		return t.callStmt(n)
	case ast.KindSend:
		return t.sendStmt(n)
	case ast.KindIdent:
		switch n.Value {
		case "break":
			return []Statement{ExprStmt{Expr: "break"}}
		case "next":
			return []Statement{ExprStmt{Expr: "continue"}}
		case "raise":
			return []Statement{RevertStmt{}}
		}
	case ast.KindImport, ast.KindInclude:
		t.errorf(n.Pos, "%s is only allowed at class or file level", n.Kind)
		return nil
	case ast.KindDef, ast.KindClass, ast.KindModule:
		t.errorf(n.Pos, "nested %s inside a method is not supported", n.Kind)
		return nil
	}
	return []Statement{ExprStmt{Expr: t.expr(n)}}
}

func (t *translator) assign(n *ast.Node) []Statement {
	target, value := n.Child(0), n.Child(1)
	switch target.Kind {
	case ast.KindIdent:
		if l := t.lookup(target.Value); l != nil {
			switch {
			case value.Is(ast.KindNil):
				return []Statement{ExprStmt{Expr: "delete " + l.name}}
			case value.Is(ast.KindArray):
				return t.localArray(l.name, l.typ, value, false)
			}
			return []Statement{AssignStmt{Target: l.name, Value: t.expr(value)}}
		}
		if value.Is(ast.KindNil) {
			t.errorf(value.Pos, "local variable %s is initialized with nil, which has no Solidity equivalent", target.Value)
			return nil
		}
		typ := t.typeOf(value)
		if strings.HasPrefix(typ, "mapping(") {
			t.errorf(n.Pos, "local variable %s cannot hold a mapping", target.Value)
			return nil
		}
		name := t.fresh(target.Value)
		t.declare(target.Value, name, typ)
		if value.Is(ast.KindArray) {
			return t.localArray(name, typ, value, true)
		}
		return []Statement{VarDeclStmt{Type: withLocation(typ), Name: name, Value: t.expr(value)}}

	case ast.KindIVar:
		name := target.Value
		switch {
		case value.Is(ast.KindNil):
			return []Statement{ExprStmt{Expr: "delete " + name}}
		case value.Is(ast.KindArray):
			var out []Statement
			if !t.ctor {
				out = append(out, ExprStmt{Expr: "delete " + name})
			}
			for _, el := range value.Children {
				out = append(out, ExprStmt{Expr: name + ".push(" + t.expr(el) + ")"})
			}
			return out
		case value.Is(ast.KindHash):
			if len(value.Children) == 0 {
				if !t.ctor {
					t.errorf(n.Pos, "mapping %s cannot be reset", name)
				}
				return nil
			}
			var out []Statement
			for _, p := range value.Children {
				out = append(out, AssignStmt{Target: name + "[" + t.expr(p.Child(0)) + "]", Value: t.expr(p.Child(1))})
			}
			return out
		}
		return []Statement{AssignStmt{Target: name, Value: t.expr(value)}}

	case ast.KindIndex:
		if value.Is(ast.KindNil) {
			return []Statement{ExprStmt{Expr: "delete " + t.expr(target)}}
		}
		return []Statement{AssignStmt{Target: t.expr(target), Value: t.expr(value)}}

	case ast.KindSend:
		recv := target.Child(0)
		if recv.Is(ast.KindSelf) {
			if f := t.b.spec.Field(target.Value); f != nil {
				return []Statement{AssignStmt{Target: f.Name, Value: t.expr(value)}}
			}
			setter := typemap.FunctionName(target.Value + "=")
			return []Statement{ExprStmt{Expr: setter + "(" + t.expr(value) + ")"}}
		}
		return []Statement{AssignStmt{Target: t.operand(recv) + "." + target.Value, Value: t.expr(value)}}

	case ast.KindConst:
		t.errorf(n.Pos, "constant %s cannot be assigned inside a method", target.Value)
		return nil
	}
	t.errorf(n.Pos, "cannot assign to %s", target.Kind)
	return nil
}

// localArray builds a memory array from a literal: `new T[](n)` then element writes.
func (t *translator) localArray(name, typ string, arr *ast.Node, decl bool) []Statement {
	alloc := fmt.Sprintf("new %s(%d)", typ, len(arr.Children))
	var out []Statement
	if decl {
		out = append(out, VarDeclStmt{Type: withLocation(typ), Name: name, Value: alloc})
	} else {
		out = append(out, AssignStmt{Target: name, Value: alloc})
	}
	for i, el := range arr.Children {
		out = append(out, AssignStmt{Target: fmt.Sprintf("%s[%d]", name, i), Value: t.expr(el)})
	}
	return out
}

func (t *translator) opAssign(n *ast.Node) []Statement {
	target, value := n.Child(0), n.Child(1)
	var lhs string
	switch target.Kind {
	case ast.KindIdent:
		l := t.lookup(target.Value)
		if l == nil {
			if f := t.b.spec.Field(target.Value); f != nil {
				lhs = f.Name
				break
			}
			t.errorf(n.Pos, "undefined local variable %s", target.Value)
			return nil
		}
		lhs = l.name
	case ast.KindIVar, ast.KindIndex:
		lhs = t.expr(target)
	case ast.KindSend:
		if target.Child(0).Is(ast.KindSelf) {
			lhs = target.Value
		} else {
			lhs = t.operand(target.Child(0)) + "." + target.Value
		}
	default:
		t.errorf(n.Pos, "cannot assign to %s", target.Kind)
		return nil
	}

	switch n.Value {
	case "+", "-", "*", "/", "%", "|", "&", "^":
		return []Statement{AssignStmt{Target: lhs, Op: n.Value, Value: t.expr(value)}}
	case "**":
		return []Statement{AssignStmt{Target: lhs, Value: lhs + " ** " + t.wrap(value, 9, true)}}
	}
	t.errorf(n.Pos, "operator %s= is not supported", n.Value)
	return nil
}

// raiseMessage recognises `raise`, `raise "msg"` and `raise Error`.
func (t *translator) raiseMessage(n *ast.Node) (string, bool) {
	switch {
	case n.Is(ast.KindIdent) && n.Value == "raise":
		return "", true
	case n.Is(ast.KindCall) && n.Value == "raise":
		_, args, _ := ast.CallParts(n)
		if len(args.Children) == 0 {
			return "", true
		}
		return t.message(args.Children[len(args.Children)-1]), true
	}
	return "", false
}

func (t *translator) message(n *ast.Node) string {
	switch n.Kind {
	case ast.KindStr:
		return t.expr(n)
	case ast.KindConst:
		return quote(lastSegment(n.Value))
	}
	return t.expr(n)
}

func (t *translator) ifStmt(n *ast.Node) Statement {
	cond, then, els := ast.IfParts(n)
	// raise "m" unless c  => require(c, "m")
	if els == nil && len(then.Children) == 1 {
		if msg, ok := t.raiseMessage(then.Children[0]); ok {
			if cond.Is(ast.KindUnary) && cond.Value == "!" {
				return RequireStmt{Cond: stripParens(t.expr(cond.Child(0))), Message: msg}
			}
			return RequireStmt{Cond: "!" + t.wrap(cond, 10, false), Message: msg}
		}
	}

	s := IfStmt{Cond: stripParens(t.expr(cond))}
	t.pushScope()
	s.Then = t.block(then.Children, false)
	t.popScope()
	switch {
	case els.Is(ast.KindIf):
		s.Else = []Statement{t.ifStmt(els)}
	case els != nil:
		t.pushScope()
		s.Else = t.block(els.Children, false)
		t.popScope()
	}
	return s
}

func (t *translator) callStmt(n *ast.Node) []Statement {
	_, args, block := ast.CallParts(n)
	argv := args.Children
	switch n.Value {
	case "require":
		if len(argv) == 0 || len(argv) > 2 {
			t.errorf(n.Pos, "require expects a condition and an optional message")
			return nil
		}
		rs := RequireStmt{Cond: stripParens(t.expr(argv[0]))}
		if len(argv) == 2 {
			rs.Message = t.message(argv[1])
		}
		return []Statement{rs}
	case "raise":
		msg, _ := t.raiseMessage(n)
		return []Statement{RevertStmt{Message: msg}}
	case "emit":
		return t.emit(n.Pos, argv)
	case "loop":
		if block != nil {
			_, body := ast.BlockParts(block)
			t.pushScope()
			t.depth++
			stmts := t.block(body.Children, false)
			t.depth--
			t.popScope()
			return []Statement{LoopStmt{Cond: "true", Body: stmts}}
		}
	case "puts", "p", "print", "pp":
		t.b.note("line %d: %s call dropped", n.Pos.Line, n.Value)
		return nil
	case "attr_reader", "attr_accessor", "attr_writer", "event", "enum", "sig":
		t.errorf(n.Pos, "%s is only allowed at class level", n.Value)
		return nil
	}
	if block != nil {
		t.errorf(n.Pos, "block passed to %s is not supported", n.Value)
		return nil
	}
	return []Statement{ExprStmt{Expr: t.expr(n)}}
}

func (t *translator) sendStmt(n *ast.Node) []Statement {
	recv, args, block := ast.CallParts(n)
	if block != nil {
		params, body := ast.BlockParts(block)
		switch n.Value {
		case "each":
			return t.iterate(recv, params, body.Children, false)
		case "each_with_index":
			return t.iterate(recv, params, body.Children, true)
		case "times":
			return t.times(recv, params, body.Children)
		case "upto":
			if len(args.Children) == 1 {
				rng := ast.New(ast.KindRange, recv.Pos, recv, args.Children[0])
				rng.Value = ".."
				return t.iterate(rng, params, body.Children, false)
			}
		}
		t.errorf(n.Pos, "block passed to %s is not supported", n.Value)
		return nil
	}
	if n.Value == "delete" && len(args.Children) == 1 {
		return []Statement{ExprStmt{Expr: "delete " + t.operand(recv) + "[" + t.expr(args.Children[0]) + "]"}}
	}
	return []Statement{ExprStmt{Expr: t.expr(n)}}
}

// indexVar picks i, j or k by loop depth.
func (t *translator) indexVar(params []string) string {
	taken := map[string]bool{}
	for _, p := range params {
		taken[p] = true
	}
	names := []string{"i", "j", "k"}
	for d := t.depth; d < len(names); d++ {
		if n := names[d]; !t.used[n] && !taken[n] {
			return n
		}
	}
	return t.fresh("i")
}

func lengthBase(recv *ast.Node) string {
	switch recv.Kind {
	case ast.KindIdent, ast.KindIVar, ast.KindSend:
		return typemap.Camel(strings.TrimRight(recv.Value, "?!"))
	}
	return "items"
}

// iterate lowers `xs.each do |x|` and `for x in xs`. The length is read once
// before the loop and reused inside the body.
func (t *translator) iterate(recv *ast.Node, params []string, body []*ast.Node, withIndex bool) []Statement {
	if recv.Is(ast.KindRange) {
		return t.rangeLoop(recv, params, body)
	}
	typ := t.typeOf(recv)
	if strings.HasPrefix(typ, "mapping(") {
		t.errorf(recv.Pos, "cannot iterate over mapping %s", t.expr(recv))
		return nil
	}
	r := t.operand(recv)
	elem := typemap.ElementType(typ)

	// 嵌套遍历同一序列时沿用外层的长度变量
	lenName, reuse := t.cached[r]
	var out []Statement
	if !reuse {
		lenName = t.fresh(lengthBase(recv) + "Length")
		t.reserve(lenName)
		out = append(out, VarDeclStmt{Type: typemap.Uint256, Name: lenName, Value: r + ".length"})
	}

	t.pushScope()
	var idx string
	if withIndex && len(params) > 1 {
		idx = t.fresh(params[1])
		t.declare(params[1], idx, typemap.Uint256)
	} else {
		idx = t.indexVar(params)
		t.reserve(idx)
	}
	t.depth++
	saved, had := t.cached[r]
	t.cached[r] = lenName
	var inner []Statement
	if len(params) > 0 {
		name := t.fresh(params[0])
		t.declare(params[0], name, elem)
		inner = append(inner, VarDeclStmt{Type: withLocation(elem), Name: name, Value: r + "[" + idx + "]"})
	}
	inner = append(inner, t.block(body, false)...)

	if had {
		t.cached[r] = saved
	} else {
		delete(t.cached, r)
	}
	t.depth--
	t.popScope()

	return append(out, LoopStmt{
		Init: "uint256 " + idx + " = 0",
		Cond: idx + " < " + lenName,
		Post: idx + "++",
		Body: inner,
	})
}

func (t *translator) counted(params []string, lo, hi, op string, body []*ast.Node) []Statement {
	t.pushScope()
	var idx string
	if len(params) > 0 {
		idx = t.fresh(params[0])
		t.declare(params[0], idx, typemap.Uint256)
	} else {
		idx = t.indexVar(params)
		t.reserve(idx)
	}
	t.depth++
	inner := t.block(body, false)
	t.depth--
	t.popScope()
	return []Statement{LoopStmt{
		Init: "uint256 " + idx + " = " + lo,
		Cond: idx + " " + op + " " + hi,
		Post: idx + "++",
		Body: inner,
	}}
}

// n.times do |i|
func (t *translator) times(recv *ast.Node, params []string, body []*ast.Node) []Statement {
	return t.counted(params, "0", t.wrap(recv, 4, true), "<", body)
}

// (a..b).each / (a...b).each
func (t *translator) rangeLoop(rng *ast.Node, params []string, body []*ast.Node) []Statement {
	op := "<="
	if rng.Value == "..." {
		op = "<"
	}
	return t.counted(params, t.expr(rng.Child(0)), t.wrap(rng.Child(1), 4, true), op, body)
}

// emit :Transfer, from, to, amount  |  emit :Transfer, from: a, to: b
func (t *translator) emit(pos ast.Pos, argv []*ast.Node) []Statement {
	if len(argv) == 0 || !(argv[0].Is(ast.KindSym) || argv[0].Is(ast.KindConst) || argv[0].Is(ast.KindStr)) {
		t.errorf(pos, "emit expects an event name")
		return nil
	}
	name := typemap.Pascal(lastSegment(argv[0].Value))
	var names, vals, types []string
	for i, a := range argv[1:] {
		if a.Is(ast.KindHash) {
			for _, p := range a.Children {
				names = append(names, p.Child(0).Value)
				vals = append(vals, t.expr(p.Child(1)))
				types = append(types, t.typeOf(p.Child(1)))
			}
			continue
		}
		names = append(names, argName(a, i))
		vals = append(vals, t.expr(a))
		types = append(types, t.typeOf(a))
	}
	t.b.useEvent(pos, name, names, types)
	return []Statement{EmitStmt{Event: name, Args: vals}}
}

func argName(a *ast.Node, i int) string {
	switch a.Kind {
	case ast.KindIdent, ast.KindIVar, ast.KindSend:
		if !strings.ContainsAny(a.Value, "?!") {
			return a.Value
		}
	}
	return "arg" + strconv.Itoa(i)
}

// useEvent checks an emit against the declared event, or declares it from the
// argument types when it was never declared.
func (b *builder) useEvent(pos ast.Pos, name string, names, types []string) {
	for _, e := range b.spec.Events {
		if e.Name == name {
			if len(e.Params) != len(types) {
				b.errorf(pos, "event %s expects %d arguments, got %d", name, len(e.Params), len(types))
			}
			return
		}
	}
	ev := Event{Name: name}
	seen := map[string]bool{}
	for i, typ := range types {
		n := names[i]
		if seen[n] {
			n = "arg" + strconv.Itoa(i)
		}
		seen[n] = true
		ev.Params = append(ev.Params, Param{Name: n, Type: typ})
	}
	b.spec.Events = append(b.spec.Events, ev)
}

// ---- 表达式 ----

var precedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3,
	"<": 4, ">": 4, "<=": 4, ">=": 4,
	"|": 5, "^": 5, "&": 5,
	"+": 6, "-": 6,
	"*": 7, "/": 7, "%": 7,
	"**": 9,
}

// prec returns the binding strength of the rendered form of n. Unary and
// postfix forms bind tighter than any binary operator.
func prec(n *ast.Node) int {
	switch n.Kind {
	case ast.KindBinary:
		if n.Value == "<<" {
			return 11
		}
		return precedence[n.Value]
	case ast.KindTernary:
		return 0
	case ast.KindUnary:
		return 10
	case ast.KindSend:
		switch n.Value {
		case "empty?", "zero?", "include?", "key?", "has_key?":
			return 3
		case "positive?", "negative?", "any?":
			return 4
		}
	}
	return 11
}

// wrap renders n, adding parentheses when it binds looser than the context.
// right marks the right operand of a left-associative operator.
func (t *translator) wrap(n *ast.Node, ctx int, right bool) string {
	s := t.expr(n)
	p := prec(n)
	if p < ctx || right && p == ctx && ctx != 9 || !right && p == ctx && ctx == 9 {
		return "(" + s + ")"
	}
	return s
}

// operand renders a receiver, which must bind tighter than `.`.
func (t *translator) operand(n *ast.Node) string {
	s := t.expr(n)
	if prec(n) < 11 {
		return "(" + s + ")"
	}
	return s
}

func (t *translator) expr(n *ast.Node) string {
	switch n.Kind {
	case ast.KindInt:
		return n.Value
	case ast.KindFloat:
		t.errorf(n.Pos, "non-integer literal %s has no exact Solidity equivalent", n.Value)
		return n.Value
	case ast.KindStr:
		if strings.Contains(n.Value, "#{") {
			t.errorf(n.Pos, "string interpolation is not supported")
		}
		return quote(n.Value)
	case ast.KindSym:
		return t.b.symbol(n.Value)
	case ast.KindTrue:
		return "true"
	case ast.KindFalse:
		return "false"
	case ast.KindNil:
		t.errorf(n.Pos, "nil has no Solidity equivalent")
		return "0"
	case ast.KindSelf:
		return "address(this)"
	case ast.KindIdent:
		return t.ident(n)
	case ast.KindIVar:
		return n.Value
	case ast.KindConst:
		return lastSegment(n.Value)
	case ast.KindBinary:
		return t.binary(n)
	case ast.KindUnary:
		return n.Value + t.wrap(n.Child(0), 10, false)
	case ast.KindTernary:
		return t.wrap(n.Child(0), 1, false) + " ? " + t.wrap(n.Child(1), 1, false) + " : " + t.wrap(n.Child(2), 0, false)
	case ast.KindIndex:
		return t.operand(n.Child(0)) + "[" + t.expr(n.Child(1)) + "]"
	case ast.KindArray:
		parts := make([]string, 0, len(n.Children))
		for _, c := range n.Children {
			parts = append(parts, t.expr(c))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ast.KindSend:
		return t.send(n)
	case ast.KindCall:
		return t.call(n)
	case ast.KindHash:
		t.errorf(n.Pos, "hash literals are only supported as mapping initializers")
		return ""
	case ast.KindRange:
		t.errorf(n.Pos, "ranges are only supported as loop bounds")
		return ""
	case ast.KindAssign, ast.KindOpAssign, ast.KindIf, ast.KindWhile, ast.KindFor, ast.KindReturn,
		ast.KindDef, ast.KindClass, ast.KindModule, ast.KindImport, ast.KindInclude:
		t.errorf(n.Pos, "%s cannot be used as an expression", n.Kind)
		return ""
	case ast.KindProgram, ast.KindBody, ast.KindParams, ast.KindParam, ast.KindArgs,
		ast.KindBlock, ast.KindBlockParams, ast.KindPair:
		t.errorf(n.Pos, "unexpected %s node", n.Kind)
		return ""
	}
	t.errorf(n.Pos, "unknown node kind %s", n.Kind)
	return ""
}

func (t *translator) binary(n *ast.Node) string {
	if n.Value == "<<" {
		return t.operand(n.Child(0)) + ".push(" + t.expr(n.Child(1)) + ")"
	}
	l, r := n.Child(0), n.Child(1)
	p, ok := precedence[n.Value]
	if !ok {
		t.errorf(n.Pos, "operator %s is not supported", n.Value)
		return ""
	}
	if (n.Value == "==" || n.Value == "!=") && (t.typeOf(l) == typemap.String || t.typeOf(r) == typemap.String) {
		// 字符串只能比较哈希
		return "keccak256(bytes(" + t.expr(l) + ")) " + n.Value + " keccak256(bytes(" + t.expr(r) + "))"
	}
	return t.wrap(l, p, false) + " " + n.Value + " " + t.wrap(r, p, true)
}

var globals = map[string]bool{"msg": true, "block": true, "tx": true, "this": true, "super": true}

func (t *translator) ident(n *ast.Node) string {
	name := n.Value
	if l := t.lookup(name); l != nil {
		return l.name
	}
	if globals[name] {
		return name
	}
	if f := t.b.spec.Field(name); f != nil {
		return f.Name
	}
	if _, ok := t.b.byName[name]; ok {
		return t.b.fnName(name) + "()"
	}
	if len(t.b.spec.Parents) == 0 {
		t.errorf(n.Pos, "undefined local variable or method %s", name)
	}
	return typemap.Camel(name)
}

func (t *translator) args(args *ast.Node) string {
	var parts []string
	for _, a := range args.Children {
		if a.Is(ast.KindHash) {
			var named []string
			for _, p := range a.Children {
				named = append(named, p.Child(0).Value+": "+t.expr(p.Child(1)))
			}
			if len(args.Children) == 1 {
				return "{" + strings.Join(named, ", ") + "}"
			}
			for _, p := range a.Children {
				parts = append(parts, t.expr(p.Child(1)))
			}
			continue
		}
		parts = append(parts, t.expr(a))
	}
	return strings.Join(parts, ", ")
}

func (t *translator) call(n *ast.Node) string {
	_, args, block := ast.CallParts(n)
	if block != nil {
		t.errorf(n.Pos, "block passed to %s is not supported here", n.Value)
	}
	switch n.Value {
	case "raise", "emit", "puts", "p", "print":
		t.errorf(n.Pos, "%s cannot be used as an expression", n.Value)
		return ""
	}
	name := n.Value
	if _, ok := t.b.byName[name]; ok {
		name = t.b.fnName(name)
	} else if strings.ContainsAny(name, "?!=") {
		name = typemap.FunctionName(name)
	}
	return name + "(" + t.args(args) + ")"
}

func (t *translator) send(n *ast.Node) string {
	recv, args, block := ast.CallParts(n)
	if block != nil {
		t.errorf(n.Pos, "block passed to %s can only be used as a statement", n.Value)
		return ""
	}
	name := n.Value
	bare := len(args.Children) == 0 && args.Value == ""

	switch {
	case recv.Is(ast.KindIdent) && globals[recv.Value] && t.lookup(recv.Value) == nil:
		if bare {
			return recv.Value + "." + name
		}
		return recv.Value + "." + name + "(" + t.args(args) + ")"
	case recv.Is(ast.KindSelf):
		if name == "balance" {
			return "address(this).balance"
		}
		if f := t.b.spec.Field(name); f != nil && bare {
			return f.Name
		}
		return t.b.fnName(name) + "(" + t.args(args) + ")"
	case recv.Is(ast.KindConst) && name == "new":
		return "new " + lastSegment(recv.Value) + "(" + t.args(args) + ")"
	}

	r := t.operand(recv)
	switch name {
	case "length", "size", "count":
		if bare || len(args.Children) == 0 {
			return t.length(r)
		}
	case "empty?":
		return t.length(r) + " == 0"
	case "any?":
		if len(args.Children) == 0 {
			return t.length(r) + " > 0"
		}
	case "zero?":
		return r + " == 0"
	case "positive?":
		return r + " > 0"
	case "negative?":
		return r + " < 0"
	case "push":
		return r + ".push(" + t.args(args) + ")"
	case "pop":
		return r + ".pop()"
	case "first":
		return r + "[0]"
	case "last":
		return r + "[" + t.length(r) + " - 1]"
	case "transfer", "send":
		return "payable(" + r + ")." + name + "(" + t.args(args) + ")"
	case "to_i", "to_int", "to_s", "to_sym":
		return r
	case "include?", "key?", "has_key?":
		if len(args.Children) == 1 && strings.HasPrefix(t.typeOf(recv), "mapping(") {
			return r + "[" + t.expr(args.Children[0]) + "] != 0"
		}
	}
	if bare && propertyNames[name] {
		return r + "." + name
	}
	return r + "." + typemap.FunctionName(name) + "(" + t.args(args) + ")"
}

// length returns the cached loop length for r when inside its loop.
func (t *translator) length(r string) string {
	if c, ok := t.cached[r]; ok {
		return c
	}
	return r + ".length"
}

// quote renders a Solidity string literal.
func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// stripParens drops one pair of parentheses wrapping the whole expression.
func stripParens(s string) string {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return s
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return s
			}
		case '"':
			for i++; i < len(s) && s[i] != '"'; i++ {
				if s[i] == '\\' {
					i++
				}
			}
		}
	}
	return s[1 : len(s)-1]
}
