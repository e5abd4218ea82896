package generator

import (
	"fmt"
	"strings"

	"github.com/VectorBits/Rubisol/src/internal/ast"
	"github.com/VectorBits/Rubisol/src/internal/typemap"
)

// methodDecl is one `def` found in a class body together with the modifiers
// written in front of it.
type methodDecl struct {
	node    *ast.Node
	vis     string
	markers []string
}

type signature struct {
	params  map[string]string
	returns string
}

// builder collects one class into a ContractSpec.
type builder struct {
	g    *generator
	spec *ContractSpec

	defs    []*methodDecl
	byName  map[string]*methodDecl
	vis     map[string]string   // `private :foo` 形式的可见性
	markers map[string][]string // `view :foo` 形式的标记
	sigs    map[string]*signature

	hasAttr   bool
	exposed   map[string]bool
	attrOrder []string
	writers   []string

	enumOf    map[string]string // member -> enum, "" when ambiguous
	rawParams map[string]map[string]string
	returns   map[string]string
	hoisted   map[*ast.Node]bool
	refinable map[string]bool // fields declared from `[]` or `{}`, element or key type still open
}

func (g *generator) buildContract(node *ast.Node, abstract bool) *ContractSpec {
	var name, parent, body *ast.Node
	if node.Is(ast.KindModule) {
		name, body = node.Child(0), node.Child(1)
	} else {
		name, parent, body = ast.ClassParts(node)
	}
	if name == nil || lastSegment(name.Value) == "" {
		g.errorf(node.Pos, "class without a name")
		return nil
	}

	b := &builder{
		g:         g,
		spec:      &ContractSpec{Name: lastSegment(name.Value), Abstract: abstract},
		byName:    map[string]*methodDecl{},
		vis:       map[string]string{},
		markers:   map[string][]string{},
		sigs:      map[string]*signature{},
		exposed:   map[string]bool{},
		enumOf:    map[string]string{},
		rawParams: map[string]map[string]string{},
		returns:   map[string]string{},
		hoisted:   map[*ast.Node]bool{},
		refinable: map[string]bool{},
	}
	if parent != nil {
		b.spec.Parents = append(b.spec.Parents, lastSegment(parent.Value))
	}

	b.scanBody(body)
	b.collectState()
	// 第二遍时方法返回类型已知，调用处的类型推断更准确
	b.buildFunctions()
	b.buildFunctions()
	b.addSetters()
	return b.spec
}

func (b *builder) errorf(pos ast.Pos, format string, args ...any) {
	b.g.errorf(pos, format, args...)
}

func (b *builder) note(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	for _, n := range b.spec.Notes {
		if n == msg {
			return
		}
	}
	b.spec.Notes = append(b.spec.Notes, msg)
}

func isVisibility(s string) bool {
	switch s {
	case "private", "public", "protected", "internal", "external":
		return true
	}
	return false
}

func isMarker(s string) bool {
	return s == "view" || s == "pure" || s == "payable"
}

// scanBody is the first pass over a class body: macros, methods and constants.
func (b *builder) scanBody(body *ast.Node) {
	section := ""
	for _, st := range body.Children {
		switch st.Kind {
		case ast.KindInclude:
			b.addParent(lastSegment(st.Value))
		case ast.KindImport:
			b.g.addImport(st.Value)
		case ast.KindDef:
			b.addDef(st, section, nil)
		case ast.KindIdent:
			if isVisibility(st.Value) {
				section = st.Value
				continue
			}
			b.note("line %d: class-level %s ignored", st.Pos.Line, st.Value)
		case ast.KindCall:
			b.macro(st, section)
		case ast.KindAssign:
			b.constant(st)
		case ast.KindClass, ast.KindModule:
			b.errorf(st.Pos, "nested %s inside %s is not supported", st.Kind, b.spec.Name)
		default:
			b.note("line %d: class-level %s ignored", st.Pos.Line, st.Kind)
		}
	}
}

func (b *builder) addParent(name string) {
	for _, p := range b.spec.Parents {
		if p == name {
			return
		}
	}
	b.spec.Parents = append(b.spec.Parents, name)
}

func (b *builder) addDef(def *ast.Node, vis string, markers []string) {
	if _, dup := b.byName[def.Value]; dup {
		b.errorf(def.Pos, "method %s is defined twice", def.Value)
		return
	}
	d := &methodDecl{node: def, vis: vis, markers: markers}
	b.defs = append(b.defs, d)
	b.byName[def.Value] = d
}

func (b *builder) macro(call *ast.Node, section string) {
	_, args, _ := ast.CallParts(call)
	switch name := call.Value; {
	case isVisibility(name):
		b.modifier(call, name, nil, section)
	case isMarker(name):
		b.modifier(call, "", []string{name}, section)
	case name == "attr_reader" || name == "attr_accessor" || name == "attr_writer":
		b.hasAttr = true
		for _, a := range args.Children {
			if !a.Is(ast.KindSym) && !a.Is(ast.KindStr) {
				b.errorf(a.Pos, "%s expects symbols", name)
				continue
			}
			if name != "attr_writer" && !b.exposed[a.Value] {
				b.exposed[a.Value] = true
			}
			if name != "attr_reader" {
				b.writers = append(b.writers, a.Value)
			}
			b.attrOrder = append(b.attrOrder, a.Value)
		}
	case name == "event":
		b.event(call, args.Children)
	case name == "enum":
		b.enum(call, args.Children)
	case name == "sig":
		b.sig(call, args.Children)
	default:
		b.note("line %d: class-level call %s ignored", call.Pos.Line, name)
	}
}

// modifier handles `private :a, :b`, `private def x` and nested forms such as
// `public view def x`.
func (b *builder) modifier(call *ast.Node, vis string, markers []string, section string) {
	_, args, _ := ast.CallParts(call)
	for _, a := range args.Children {
		switch {
		case a.Is(ast.KindSym) || a.Is(ast.KindStr):
			if vis != "" {
				b.vis[a.Value] = vis
			}
			b.markers[a.Value] = append(b.markers[a.Value], markers...)
		case a.Is(ast.KindDef):
			v := vis
			if v == "" {
				v = section
			}
			b.addDef(a, v, markers)
		case a.Is(ast.KindCall) && (isVisibility(a.Value) || isMarker(a.Value)):
			v, m := vis, append([]string(nil), markers...)
			if isVisibility(a.Value) {
				v = a.Value
			} else {
				m = append(m, a.Value)
			}
			b.modifier(a, v, m, section)
		default:
			b.errorf(a.Pos, "unexpected %s argument to %s", a.Kind, call.Value)
		}
	}
}

// event :Transfer, from: :address, to: :address, value: :uint256
func (b *builder) event(call *ast.Node, args []*ast.Node) {
	if len(args) == 0 || !(args[0].Is(ast.KindSym) || args[0].Is(ast.KindConst)) {
		b.errorf(call.Pos, "event expects a name")
		return
	}
	ev := Event{Name: typemap.Pascal(lastSegment(args[0].Value))}
	for _, a := range args[1:] {
		switch a.Kind {
		case ast.KindHash:
			for _, p := range a.Children {
				typ, ok := b.declType(p.Child(1))
				if !ok {
					b.errorf(p.Pos, "unknown type for event parameter %s", p.Child(0).Value)
					typ = typemap.Uint256
				}
				ev.Params = append(ev.Params, Param{Name: p.Child(0).Value, Type: typ})
			}
		case ast.KindSym:
			ev.Params = append(ev.Params, Param{Name: a.Value, Type: typemap.Uint256})
		default:
			b.errorf(a.Pos, "unexpected %s in event %s", a.Kind, ev.Name)
		}
	}
	for _, e := range b.spec.Events {
		if e.Name == ev.Name {
			b.errorf(call.Pos, "event %s is declared twice", ev.Name)
			return
		}
	}
	b.spec.Events = append(b.spec.Events, ev)
}

// enum :status, :pending, :active
func (b *builder) enum(call *ast.Node, args []*ast.Node) {
	if len(args) < 2 {
		b.errorf(call.Pos, "enum expects a name and at least one member")
		return
	}
	en := Enum{Name: typemap.Pascal(lastSegment(args[0].Value))}
	for _, a := range args[1:] {
		if !a.Is(ast.KindSym) {
			b.errorf(a.Pos, "enum %s members must be symbols", en.Name)
			continue
		}
		m := typemap.Pascal(a.Value)
		en.Members = append(en.Members, m)
		if prev, ok := b.enumOf[m]; ok && prev != en.Name {
			b.enumOf[m] = ""
		} else {
			b.enumOf[m] = en.Name
		}
	}
	b.spec.Enums = append(b.spec.Enums, en)
}

// sig :transfer, to: :address, amount: :uint256, returns: :bool
func (b *builder) sig(call *ast.Node, args []*ast.Node) {
	if len(args) == 0 || !args[0].Is(ast.KindSym) {
		b.errorf(call.Pos, "sig expects a method name symbol")
		return
	}
	s := &signature{params: map[string]string{}}
	for _, a := range args[1:] {
		if !a.Is(ast.KindHash) {
			b.errorf(a.Pos, "sig %s expects name: type pairs", args[0].Value)
			continue
		}
		for _, p := range a.Children {
			typ, ok := b.declType(p.Child(1))
			if !ok {
				b.errorf(p.Pos, "unknown type in sig %s", args[0].Value)
				continue
			}
			if key := p.Child(0).Value; key == "returns" {
				s.returns = typ
			} else {
				s.params[key] = typ
			}
		}
	}
	b.sigs[args[0].Value] = s
}

// declType resolves a written type (`:address`, `"uint8"`, `[:address]`, `Status`).
func (b *builder) declType(n *ast.Node) (string, bool) {
	switch n.Kind {
	case ast.KindSym, ast.KindStr:
		if t, ok := typemap.MapDeclared(n.Value); ok {
			return t, true
		}
		if b.isEnum(typemap.Pascal(n.Value)) {
			return typemap.Pascal(n.Value), true
		}
		if n.Value != "" && n.Value[0] >= 'A' && n.Value[0] <= 'Z' {
			return n.Value, true
		}
	case ast.KindConst:
		return lastSegment(n.Value), true
	case ast.KindArray:
		if len(n.Children) == 1 {
			if t, ok := b.declType(n.Children[0]); ok {
				return t + "[]", true
			}
		}
	}
	return "", false
}

func (b *builder) isEnum(name string) bool {
	for _, e := range b.spec.Enums {
		if e.Name == name {
			return true
		}
	}
	return false
}

// symbol renders a Ruby symbol: an enum member when one matches, a string otherwise.
func (b *builder) symbol(v string) string {
	m := typemap.Pascal(v)
	if en := b.enumOf[m]; en != "" {
		return en + "." + m
	}
	return quote(v)
}

// MAX_SUPPLY = 1_000_000
func (b *builder) constant(assign *ast.Node) {
	target, value := assign.Child(0), assign.Child(1)
	if !target.Is(ast.KindConst) {
		b.note("line %d: class-level assignment ignored", assign.Pos.Line)
		return
	}
	if !isPureLiteral(value) {
		b.errorf(assign.Pos, "constant %s must be a literal", target.Value)
		return
	}
	typ, err := typemap.MapType(value, b.enumLookup)
	if err != nil {
		b.errorf(assign.Pos, "constant %s: %v", target.Value, err)
		return
	}
	b.spec.StateVariables = append(b.spec.StateVariables, &StateVariable{
		Name:        target.Value,
		Type:        typ,
		Visibility:  typemap.Public,
		Initializer: b.literal(value),
		Constant:    true,
	})
}

func (b *builder) enumLookup(n *ast.Node) (string, bool) {
	if n.Is(ast.KindSym) {
		if en := b.enumOf[typemap.Pascal(n.Value)]; en != "" {
			return en, true
		}
	}
	return "", false
}

func isPureLiteral(n *ast.Node) bool {
	switch n.Kind {
	case ast.KindInt, ast.KindTrue, ast.KindFalse, ast.KindSym:
		return true
	case ast.KindStr:
		return !strings.Contains(n.Value, "#{")
	case ast.KindUnary:
		return n.Value == "-" && n.Child(0).Is(ast.KindInt)
	}
	return false
}

func isEmptyCollection(n *ast.Node) bool {
	return (n.Is(ast.KindArray) || n.Is(ast.KindHash)) && len(n.Children) == 0
}

func (b *builder) literal(n *ast.Node) string {
	switch n.Kind {
	case ast.KindStr:
		return quote(n.Value)
	case ast.KindSym:
		return b.symbol(n.Value)
	case ast.KindTrue:
		return "true"
	case ast.KindFalse:
		return "false"
	case ast.KindUnary:
		return "-" + b.literal(n.Child(0))
	}
	return n.Value
}

// ---- 状态变量 ----

// collectState declares every instance variable. Fields assigned in initialize
// come first, in order of first assignment.
func (b *builder) collectState() {
	for _, d := range b.defs {
		b.rawParams[d.node.Value] = b.paramTypes(d.node)
	}

	init := b.byName["initialize"]
	if init != nil {
		top := map[*ast.Node]bool{}
		for _, st := range init.node.Child(1).Children {
			top[st] = true
		}
		b.scanFields(init.node, top)
	}
	for _, d := range b.defs {
		if d != init {
			b.scanFields(d.node, nil)
		}
	}
	for _, name := range b.attrOrder {
		if b.spec.Field(name) == nil {
			b.declare(name, typemap.Uint256)
		}
	}

	for _, v := range b.spec.StateVariables {
		switch {
		case v.Constant:
		case !b.hasAttr || b.exposed[v.Name]:
			v.Visibility = typemap.Public
		default:
			v.Visibility = typemap.Private
		}
	}
}

func (b *builder) declare(name, typ string) *StateVariable {
	sv := &StateVariable{Name: name, Type: typ, Visibility: typemap.Public}
	b.spec.StateVariables = append(b.spec.StateVariables, sv)
	return sv
}

// scanFields walks a method in pre-order and declares each field at its first
// assignment or use. top holds the direct statements of initialize.
func (b *builder) scanFields(def *ast.Node, top map[*ast.Node]bool) {
	params := b.rawParams[def.Value]
	lookup := func(n *ast.Node) (string, bool) {
		switch n.Kind {
		case ast.KindIdent:
			if t, ok := params[n.Value]; ok {
				return t, true
			}
		case ast.KindIVar:
			if f := b.spec.Field(n.Value); f != nil {
				return f.Type, true
			}
		case ast.KindCall:
			if s := b.sigs[n.Value]; s != nil && s.returns != "" {
				return s.returns, true
			}
		}
		return b.enumLookup(n)
	}

	def.Walk(func(n *ast.Node) bool {
		switch n.Kind {
		case ast.KindAssign, ast.KindOpAssign:
			target, value := n.Child(0), n.Child(1)
			switch {
			case target.Is(ast.KindIVar) && b.spec.Field(target.Value) == nil:
				b.declareAssigned(target.Value, n, top[n] && n.Is(ast.KindAssign), lookup)
			case target.Is(ast.KindIndex):
				b.declareIndexed(target, value, lookup)
			}
		case ast.KindIndex:
			b.declareIndexed(n, nil, lookup)
		case ast.KindBinary:
			if n.Value == "<<" {
				b.declarePushed(n.Child(0), n.Child(1), lookup)
			}
		case ast.KindSend:
			if n.Value == "push" {
				if _, args, _ := ast.CallParts(n); len(args.Children) == 1 {
					b.declarePushed(n.Child(0), args.Children[0], lookup)
				}
			}
		case ast.KindIVar:
			if b.spec.Field(n.Value) == nil {
				b.declare(n.Value, typemap.Uint256)
			}
		}
		return true
	})
}

func (b *builder) declareAssigned(name string, assign *ast.Node, hoist bool, lookup typemap.Lookup) {
	value := assign.Child(1)
	if value.Is(ast.KindNil) {
		b.errorf(value.Pos, "state variable %s is initialized with nil, which has no Solidity equivalent", name)
		b.declare(name, typemap.Uint256)
		return
	}
	typ, err := typemap.MapType(value, lookup)
	if err != nil {
		b.errorf(value.Pos, "state variable %s: %v", name, err)
		typ = typemap.Uint256
	}
	sv := b.declare(name, typ)
	if isEmptyCollection(value) {
		b.refinable[name] = true
	}
	switch {
	case !hoist:
	case isPureLiteral(value):
		sv.Initializer = b.literal(value)
		b.hoisted[assign] = true
	case isEmptyCollection(value):
		b.hoisted[assign] = true
	}
}

// declareIndexed declares `@m[k] = v` as a mapping, nesting for `@m[a][b]`.
func (b *builder) declareIndexed(idx, value *ast.Node, lookup typemap.Lookup) {
	var keys []*ast.Node
	root := idx
	for root.Is(ast.KindIndex) {
		keys = append([]*ast.Node{root.Child(1)}, keys...)
		root = root.Child(0)
	}
	if !root.Is(ast.KindIVar) {
		return
	}
	f := b.spec.Field(root.Value)
	if f != nil && !(b.refinable[root.Value] && strings.HasPrefix(f.Type, "mapping(")) {
		return
	}
	typ := typemap.Uint256
	if value != nil {
		if t, err := typemap.MapType(value, lookup); err == nil {
			typ = t
		}
	}
	for i := len(keys) - 1; i >= 0; i-- {
		k, err := typemap.MapType(keys[i], lookup)
		if err != nil || typemap.IsReference(k) && k != typemap.String {
			k = typemap.Uint256
		}
		typ = "mapping(" + k + " => " + typ + ")"
	}
	if f != nil {
		// `{}` 先按默认类型声明，第一次下标使用时再定键值类型
		f.Type = typ
		delete(b.refinable, root.Value)
		return
	}
	b.declare(root.Value, typ)
}

// declarePushed declares `@xs << v` as an array of v, or refines a field
// declared from an empty literal.
func (b *builder) declarePushed(recv, value *ast.Node, lookup typemap.Lookup) {
	if !recv.Is(ast.KindIVar) {
		return
	}
	elem, err := typemap.MapType(value, lookup)
	if err != nil {
		elem = typemap.Uint256
	}
	f := b.spec.Field(recv.Value)
	switch {
	case f == nil:
		b.declare(recv.Value, elem+"[]")
	case b.refinable[recv.Value] && strings.HasSuffix(f.Type, "[]"):
		f.Type = elem + "[]"
		delete(b.refinable, recv.Value)
	}
}

// paramTypes decides parameter types: sig, then default value, usage and naming.
func (b *builder) paramTypes(def *ast.Node) map[string]string {
	out := map[string]string{}
	s := b.sigs[def.Value]
	for _, p := range def.Child(0).Children {
		if s != nil {
			if t, ok := s.params[p.Value]; ok {
				out[p.Value] = t
				continue
			}
		}
		out[p.Value] = typemap.InferParam(p.Value, p.Child(0), usage(def.Child(1), p.Value))
	}
	return out
}

func usage(body *ast.Node, name string) typemap.Usage {
	var u typemap.Usage
	isName := func(n *ast.Node) bool { return n.Is(ast.KindIdent) && n.Value == name }
	body.Walk(func(n *ast.Node) bool {
		switch n.Kind {
		case ast.KindSend:
			if !isName(n.Child(0)) {
				break
			}
			switch n.Value {
			case "each", "each_with_index", "map", "select", "sum":
				u.Iterated = true
			case "length", "size", "count", "empty?", "first", "last":
				u.Length = true
			}
		case ast.KindFor:
			if isName(n.Child(1)) {
				u.Iterated = true
			}
		case ast.KindIndex:
			if isName(n.Child(0)) {
				u.Indexed = true
			}
		}
		return true
	})
	return u
}

// ---- 函数 ----

func (b *builder) buildFunctions() {
	b.spec.Functions = nil
	if init := b.byName["initialize"]; init != nil {
		b.spec.Functions = append(b.spec.Functions, b.translateDef(init))
	}
	for _, d := range b.defs {
		if d.node.Value != "initialize" {
			b.spec.Functions = append(b.spec.Functions, b.translateDef(d))
		}
	}
}

func (b *builder) fnName(ruby string) string {
	return typemap.FunctionName(ruby)
}

func (b *builder) translateDef(d *methodDecl) *FunctionSpec {
	node := d.node
	ruby := node.Value
	fn := &FunctionSpec{Name: b.fnName(ruby), Visibility: typemap.Public}
	ctor := ruby == "initialize"
	if ctor {
		fn.Kind = FuncConstructor
		fn.Name = "constructor"
	}

	v := d.vis
	if sv, ok := b.vis[ruby]; ok {
		v = sv
	}
	switch {
	case v != "":
		fn.Visibility = typemap.MapVisibility(v)
	case strings.HasPrefix(strings.TrimPrefix(ruby, "self."), "_"):
		fn.Visibility = typemap.Private
	}
	markers := append(append([]string(nil), d.markers...), b.markers[ruby]...)
	fn.Mutability = typemap.MapMutability(markers)
	if ctor && fn.Mutability != typemap.MutPayable {
		fn.Mutability = typemap.MutNone
	}

	t := newTranslator(b, fn, ctor)
	raw := b.rawParams[ruby]
	for _, p := range node.Child(0).Children {
		name := p.Value
		if b.spec.Field(name) != nil {
			name = "_" + name
		}
		t.declare(p.Value, name, raw[p.Value])
		fn.Params = append(fn.Params, Param{Name: name, Type: raw[p.Value]})
	}

	var stmts []*ast.Node
	for _, st := range node.Child(1).Children {
		if !b.hoisted[st] {
			stmts = append(stmts, st)
		}
	}
	fn.Body = append(t.predeclare(stmts), t.block(stmts, !ctor)...)

	ret := t.retType
	if s := b.sigs[ruby]; s != nil && s.returns != "" {
		ret = s.returns
	}
	if ret != "" && !ctor {
		fn.Returns = []string{ret}
		b.returns[ruby] = ret
	}
	return fn
}

// addSetters generates setX for attr_accessor / attr_writer fields.
func (b *builder) addSetters() {
	for _, name := range b.writers {
		f := b.spec.Field(name)
		setter := typemap.FunctionName(name + "=")
		if f == nil || b.spec.Function(setter) != nil || strings.HasPrefix(f.Type, "mapping(") {
			continue
		}
		b.spec.Functions = append(b.spec.Functions, &FunctionSpec{
			Name:       setter,
			Params:     []Param{{Name: "_" + name, Type: f.Type}},
			Visibility: typemap.Public,
			Body:       []Statement{AssignStmt{Target: name, Value: "_" + name}},
		})
	}
}
