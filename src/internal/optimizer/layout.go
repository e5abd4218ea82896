package optimizer

import (
	"sort"

	"github.com/VectorBits/Rubisol/src/internal/typemap"
)

const slotSize = 32

// packLayout reorders state variables of each contract with first-fit-decreasing
// so that small types share slots. Declarations are only moved when packing
// saves at least one slot. Constants take no storage and stay where they are.
func packLayout(code string) (string, []string) {
	lines, trailing := splitLines(code)
	for _, c := range contracts(lines) {
		en := enums(lines, c)
		var vars []stateDecl
		for _, d := range stateDecls(lines, c) {
			if !d.constant {
				vars = append(vars, d)
			}
		}
		if len(vars) < 2 {
			continue
		}
		widths := make([]int, len(vars))
		for i, v := range vars {
			widths[i] = width(v.typ, en)
		}
		order, slots := firstFitDecreasing(widths)
		if slots >= sequentialSlots(widths) {
			continue
		}
		texts := make([]string, len(vars))
		for i, idx := range order {
			texts[i] = lines[vars[idx].line]
		}
		for i, v := range vars {
			lines[v.line] = texts[i]
		}
	}
	return joinLines(lines, trailing), nil
}

func width(typ string, enums map[string]bool) int {
	if enums[typ] {
		return 1
	}
	return typemap.Width(typ)
}

// sequentialSlots counts slots used when variables are laid out in declaration order.
func sequentialSlots(widths []int) int {
	slots, used := 0, 0
	for _, w := range widths {
		if slots == 0 || used+w > slotSize {
			slots++
			used = w
			continue
		}
		used += w
	}
	return slots
}

// firstFitDecreasing returns the packed order of indexes and the number of slots.
// Equal widths keep their declaration order.
func firstFitDecreasing(widths []int) ([]int, int) {
	idx := make([]int, len(widths))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return widths[idx[a]] > widths[idx[b]] })

	var bins [][]int
	var used []int
	for _, i := range idx {
		placed := false
		for b := range bins {
			if used[b]+widths[i] <= slotSize {
				bins[b] = append(bins[b], i)
				used[b] += widths[i]
				placed = true
				break
			}
		}
		if !placed {
			bins = append(bins, []int{i})
			used = append(used, widths[i])
		}
	}

	order := make([]int, 0, len(widths))
	for _, b := range bins {
		order = append(order, b...)
	}
	return order, len(bins)
}
