// Package compiler runs the pipeline: source validation, parse, generate,
// optimize, generated-code validation, ABI extraction and optional output.
package compiler

import (
	"encoding/json"
	"fmt"

	"github.com/VectorBits/Rubisol/src/internal/abi"
	"github.com/VectorBits/Rubisol/src/internal/ast"
	"github.com/VectorBits/Rubisol/src/internal/config"
	"github.com/VectorBits/Rubisol/src/internal/generator"
	"github.com/VectorBits/Rubisol/src/internal/logger"
	"github.com/VectorBits/Rubisol/src/internal/optimizer"
	"github.com/VectorBits/Rubisol/src/internal/parser"
	"github.com/VectorBits/Rubisol/src/internal/validator"
)

type (
	CompilationError = generator.CompilationError
	ParseError       = parser.ParseError
	ValidationError  = validator.ValidationError
)

type Options struct {
	// Config is copied at the start of Compile. nil uses config.Current().
	Config     *config.Config
	OutputPath string
}

// Result is the outcome of one compilation. Warnings never make Compile fail.
type Result struct {
	Code      string                     `json:"code"`
	AST       *ast.Node                  `json:"ast,omitempty"`
	Errors    []string                   `json:"errors"`
	Warnings  []string                   `json:"warnings"`
	Contracts []string                   `json:"contracts"`
	ABI       map[string]json.RawMessage `json:"abi,omitempty"`
}

// Compile translates Ruby source to Solidity.
//
// Source validation errors fail with *CompilationError before anything is
// parsed. Parse failures return *ParseError. Findings on the generated code are
// always warnings.
func Compile(src string, opts Options) (*Result, error) {
	cfg := config.Current()
	if opts.Config != nil {
		cfg = *opts.Config
	}

	findings := validator.ValidateSource(src)
	if errs := validator.Errors(findings); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, f := range errs {
			msgs[i] = f.String()
		}
		return nil, &CompilationError{Messages: msgs}
	}

	res := &Result{Errors: []string{}, Warnings: []string{}, Contracts: []string{}, ABI: map[string]json.RawMessage{}}
	for _, f := range validator.Warnings(findings) {
		res.Warnings = append(res.Warnings, f.String())
	}

	prog, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	res.AST = prog

	code, specs, err := generator.Generate(prog, cfg)
	if err != nil {
		return nil, err
	}
	for _, spec := range specs {
		res.Contracts = append(res.Contracts, spec.Name)
		res.Warnings = append(res.Warnings, spec.Notes...)
	}

	code, notes := optimizer.Optimize(code, cfg)
	res.Warnings = append(res.Warnings, notes...)
	res.Code = code

	for _, f := range validator.ValidateGenerated(code) {
		res.Warnings = append(res.Warnings, f.String())
	}

	for _, spec := range specs {
		c, err := abi.Build(spec)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("abi: %v", err))
			continue
		}
		res.ABI[spec.Name] = c.JSON
		res.Warnings = append(res.Warnings, c.Collisions()...)
	}

	if opts.OutputPath != "" {
		if err := WriteFile(opts.OutputPath, code); err != nil {
			return nil, err
		}
		logger.InfoFileOnly("wrote %s (%d contracts)", opts.OutputPath, len(res.Contracts))
	}
	return res, nil
}

// Parse returns the syntax tree of src.
func Parse(src string) (*ast.Node, error) {
	return parser.Parse(src)
}

// Validate runs the source checks only.
func Validate(src string) []validator.Finding {
	return validator.ValidateSource(src)
}
