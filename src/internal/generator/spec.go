package generator

import (
	"strings"

	"github.com/VectorBits/Rubisol/src/internal/typemap"
)

// ContractSpec is the intermediate form of one contract. It lives for a single
// Generate call.
type ContractSpec struct {
	Name     string
	Parents  []string // primary parent first, then included modules
	Abstract bool     // Ruby module

	Enums          []Enum
	Events         []Event
	StateVariables []*StateVariable
	Functions      []*FunctionSpec // constructor first when present

	// Notes are non-fatal remarks (ignored class-level statements and the like).
	Notes []string
}

type StateVariable struct {
	Name        string
	Type        string
	Visibility  typemap.Visibility
	Initializer string // rendered expression, empty when none
	Constant    bool
}

type Param struct {
	Name string
	Type string
}

type Event struct {
	Name   string
	Params []Param
}

type Enum struct {
	Name    string
	Members []string
}

type FunctionKind int

const (
	FuncNormal FunctionKind = iota
	FuncConstructor
)

type FunctionSpec struct {
	Name       string
	Kind       FunctionKind
	Params     []Param
	Visibility typemap.Visibility
	Mutability typemap.Mutability
	Returns    []string
	Body       []Statement
}

// Statement is one translated statement. The set of variants is closed.
type Statement interface {
	statement()
}

// AssignStmt renders `Target Op= Value;`. Op is empty for plain assignment.
type AssignStmt struct {
	Target string
	Op     string
	Value  string
}

// IfStmt keeps branch order. An elsif chain is an Else holding a single IfStmt.
type IfStmt struct {
	Cond string
	Then []Statement
	Else []Statement
}

// LoopStmt is a `for (Init; Cond; Post)` loop, or a while loop when Init and Post are empty.
type LoopStmt struct {
	Init string
	Cond string
	Post string
	Body []Statement
}

type RequireStmt struct {
	Cond    string
	Message string // rendered literal, may be empty
}

type EmitStmt struct {
	Event string
	Args  []string
}

type ExprStmt struct {
	Expr string
}

type ReturnStmt struct {
	Value string
}

// VarDeclStmt declares a local. Value may be empty.
type VarDeclStmt struct {
	Type  string
	Name  string
	Value string
}

type RevertStmt struct {
	Message string
}

func (AssignStmt) statement()  {}
func (IfStmt) statement()      {}
func (LoopStmt) statement()    {}
func (RequireStmt) statement() {}
func (EmitStmt) statement()    {}
func (ExprStmt) statement()    {}
func (ReturnStmt) statement()  {}
func (VarDeclStmt) statement() {}
func (RevertStmt) statement()  {}

// CompilationError carries every message that made generation fail.
type CompilationError struct {
	Messages []string
}

func (e *CompilationError) Error() string {
	switch len(e.Messages) {
	case 0:
		return "compilation failed"
	case 1:
		return "compilation failed: " + e.Messages[0]
	}
	return "compilation failed:\n  - " + strings.Join(e.Messages, "\n  - ")
}

// Field returns the state variable with the given name, or nil.
func (c *ContractSpec) Field(name string) *StateVariable {
	for _, v := range c.StateVariables {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Function returns the function with the given Solidity name, or nil.
func (c *ContractSpec) Function(name string) *FunctionSpec {
	for _, f := range c.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}
