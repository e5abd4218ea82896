// Package optimizer rewrites generated Solidity text. Every pass is
// semantics-preserving and idempotent, so Optimize(Optimize(x)) == Optimize(x).
package optimizer

import (
	"strings"

	"github.com/VectorBits/Rubisol/src/internal/config"
)

// Pass is one rewrite over the whole source.
type Pass struct {
	Name    string
	Enabled func(cfg config.Config) bool
	Run     func(code string) (string, []string)
}

// Passes returns the passes in the order they run.
func Passes() []Pass {
	return []Pass{
		{
			Name:    "layout",
			Enabled: func(c config.Config) bool { return c.GasOptimize },
			Run:     packLayout,
		},
		{
			Name:    "arithmetic",
			Enabled: func(c config.Config) bool { return c.SecurityChecks },
			Run:     safeArithmetic,
		},
		{
			Name:    "reentrancy",
			Enabled: func(c config.Config) bool { return c.SecurityChecks },
			Run:     reorderEffects,
		},
	}
}

// Optimize runs the enabled passes. cfg.Optimize switches all of them off.
func Optimize(code string, cfg config.Config) (string, []string) {
	if !cfg.Optimize {
		return code, nil
	}
	var warnings []string
	for _, p := range Passes() {
		if !p.Enabled(cfg) {
			continue
		}
		var ws []string
		code, ws = p.Run(code)
		warnings = append(warnings, ws...)
	}
	return code, warnings
}

func splitLines(code string) ([]string, bool) {
	trailing := strings.HasSuffix(code, "\n")
	lines := strings.Split(strings.TrimSuffix(code, "\n"), "\n")
	return lines, trailing
}

func joinLines(lines []string, trailing bool) string {
	s := strings.Join(lines, "\n")
	if trailing {
		s += "\n"
	}
	return s
}
