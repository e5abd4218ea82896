// Package abi derives the Ethereum ABI of generated contracts from their
// ContractSpec and reports selector collisions.
package abi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/VectorBits/Rubisol/src/internal/generator"
	"github.com/VectorBits/Rubisol/src/internal/typemap"
)

// Contract is the ABI of one generated contract.
type Contract struct {
	Name string
	JSON json.RawMessage
	ABI  ethabi.ABI
}

// Selector is a function selector or an event topic.
type Selector struct {
	Kind      string `json:"kind"` // function | event
	Signature string `json:"signature"`
	ID        string `json:"id"`
}

type entry struct {
	Type            string     `json:"type"`
	Name            string     `json:"name,omitempty"`
	Inputs          []argument `json:"inputs"`
	Outputs         []argument `json:"outputs,omitempty"`
	StateMutability string     `json:"stateMutability,omitempty"`
	Anonymous       bool       `json:"anonymous,omitempty"`
}

type argument struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	InternalType string `json:"internalType,omitempty"`
	Indexed      bool   `json:"indexed,omitempty"`
}

// Build derives the ABI of spec: public getters, public and external
// functions, the constructor and events. The JSON is parsed back with
// go-ethereum so every type is checked.
func Build(spec *generator.ContractSpec) (*Contract, error) {
	b := &builder{enums: map[string]bool{}}
	for _, e := range spec.Enums {
		b.enums[e.Name] = true
	}

	var entries []entry
	for _, v := range spec.StateVariables {
		if v.Visibility != typemap.Public {
			continue
		}
		e, err := b.getter(v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", spec.Name, v.Name, err)
		}
		entries = append(entries, e)
	}
	for _, fn := range spec.Functions {
		if fn.Kind != generator.FuncConstructor && fn.Visibility != typemap.Public && fn.Visibility != typemap.External {
			continue
		}
		e, err := b.function(fn)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", spec.Name, fn.Name, err)
		}
		entries = append(entries, e)
	}
	for _, ev := range spec.Events {
		e := entry{Type: "event", Name: ev.Name, Inputs: []argument{}}
		for _, p := range ev.Params {
			a, err := b.argument(p.Name, p.Type)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", spec.Name, ev.Name, err)
			}
			e.Inputs = append(e.Inputs, a)
		}
		entries = append(entries, e)
	}
	if entries == nil {
		entries = []entry{}
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal abi: %w", err)
	}
	parsed, err := ethabi.JSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid abi: %w", spec.Name, err)
	}
	return &Contract{Name: spec.Name, JSON: raw, ABI: parsed}, nil
}

// Parse loads a previously built ABI, e.g. one stored in compiler.Result.
func Parse(name string, raw json.RawMessage) (*Contract, error) {
	parsed, err := ethabi.JSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid abi: %w", name, err)
	}
	return &Contract{Name: name, JSON: raw, ABI: parsed}, nil
}

// Selectors lists function selectors and event topics, sorted by signature.
func (c *Contract) Selectors() []Selector {
	var out []Selector
	for _, m := range c.ABI.Methods {
		out = append(out, Selector{Kind: "function", Signature: m.Sig, ID: hexutil.Encode(m.ID)})
	}
	for _, e := range c.ABI.Events {
		out = append(out, Selector{Kind: "event", Signature: e.Sig, ID: e.ID.Hex()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Signature != out[j].Signature {
			return out[i].Signature < out[j].Signature
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Collisions reports functions whose 4-byte selectors clash.
func (c *Contract) Collisions() []string {
	methods := make([]ethabi.Method, 0, len(c.ABI.Methods))
	for _, m := range c.ABI.Methods {
		methods = append(methods, m)
	}
	return collisions(c.Name, methods)
}

func collisions(contract string, methods []ethabi.Method) []string {
	bySel := map[string][]string{}
	for _, m := range methods {
		id := hexutil.Encode(m.ID)
		bySel[id] = append(bySel[id], m.Sig)
	}
	var out []string
	for id, sigs := range bySel {
		if len(sigs) < 2 {
			continue
		}
		sort.Strings(sigs)
		out = append(out, fmt.Sprintf("selector collision in %s: %s shared by %s", contract, id, strings.Join(sigs, ", ")))
	}
	sort.Strings(out)
	return out
}

// SelectorOf returns the 4-byte selector of a canonical signature such as
// "transfer(address,uint256)".
func SelectorOf(signature string) string {
	return hexutil.Encode(crypto.Keccak256([]byte(signature))[:4])
}

type builder struct {
	enums map[string]bool
}

// getter mirrors the accessor Solidity generates for a public state variable.
func (b *builder) getter(v *generator.StateVariable) (entry, error) {
	e := entry{Type: "function", Name: v.Name, Inputs: []argument{}, StateMutability: "view"}
	t := v.Type
	for {
		if strings.HasPrefix(t, "mapping(") {
			i := strings.Index(t, "=>")
			key, err := b.argument("", strings.TrimSpace(t[len("mapping("):i]))
			if err != nil {
				return e, err
			}
			e.Inputs = append(e.Inputs, key)
			t = strings.TrimSpace(strings.TrimSuffix(t[i+2:], ")"))
			continue
		}
		if strings.HasSuffix(t, "[]") {
			e.Inputs = append(e.Inputs, argument{Type: typemap.Uint256, InternalType: typemap.Uint256})
			t = strings.TrimSuffix(t, "[]")
			continue
		}
		break
	}
	out, err := b.argument("", t)
	if err != nil {
		return e, err
	}
	e.Outputs = []argument{out}
	return e, nil
}

func (b *builder) function(fn *generator.FunctionSpec) (entry, error) {
	e := entry{Type: "function", Name: fn.Name, Inputs: []argument{}, Outputs: []argument{}}
	if fn.Kind == generator.FuncConstructor {
		e = entry{Type: "constructor", Inputs: []argument{}}
	}
	for _, p := range fn.Params {
		a, err := b.argument(p.Name, p.Type)
		if err != nil {
			return e, err
		}
		e.Inputs = append(e.Inputs, a)
	}
	if fn.Kind != generator.FuncConstructor {
		for _, r := range fn.Returns {
			a, err := b.argument("", r)
			if err != nil {
				return e, err
			}
			e.Outputs = append(e.Outputs, a)
		}
	}
	switch fn.Mutability {
	case typemap.MutNone:
		e.StateMutability = "nonpayable"
	default:
		e.StateMutability = string(fn.Mutability)
	}
	return e, nil
}

func (b *builder) argument(name, typ string) (argument, error) {
	internal := stripLocation(typ)
	canonical := b.canonical(internal)
	if _, err := ethabi.NewType(canonical, "", nil); err != nil {
		return argument{}, fmt.Errorf("type %q: %w", typ, err)
	}
	a := argument{Name: name, Type: canonical, InternalType: internal}
	if canonical != internal {
		a.InternalType = internalType(internal, b.enums[strings.TrimSuffix(internal, "[]")])
	}
	return a, nil
}

// canonical maps a Solidity type to its ABI form: enums are uint8 and
// contract types are addresses.
func (b *builder) canonical(t string) string {
	if strings.HasSuffix(t, "[]") {
		return b.canonical(strings.TrimSuffix(t, "[]")) + "[]"
	}
	switch {
	case t == "address payable":
		return typemap.Address
	case b.enums[t]:
		return "uint8"
	case t != "" && t[0] >= 'A' && t[0] <= 'Z':
		return typemap.Address
	}
	return t
}

func internalType(t string, enum bool) string {
	switch {
	case t == "address payable":
		return t
	case enum:
		return "enum " + t
	}
	return "contract " + t
}

func stripLocation(t string) string {
	for _, loc := range []string{" memory", " calldata", " storage"} {
		t = strings.TrimSuffix(t, loc)
	}
	return strings.TrimSpace(t)
}
