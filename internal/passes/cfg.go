// Package passes implements the post-lowering IR pipeline (§4.5-§4.10):
// CFG construction, SSA construction (Braun et al.), constant folding,
// de-SSA, register renumbering, and cleanup. Each pass operates on one
// *ir.Function at a time; Run sequences them over every function in a
// *ir.Module.
package passes

import "kumirc/internal/ir"

// BuildCFG numbers every block's label into fn.LabelIndex, rebuilds
// each block's successor set from its terminator, rebuilds every
// block's predecessor set from those successors, and returns the
// reverse-postorder block-index sequence from entry (§4.5).
func BuildCFG(fn *ir.Function) []int {
	fn.LabelIndex = make(map[string]int, len(fn.Blocks))
	for i, b := range fn.Blocks {
		fn.LabelIndex[b.Label] = i
	}

	for _, b := range fn.Blocks {
		b.Succ = successorsOf(b)
		b.Pred = nil
	}
	for _, b := range fn.Blocks {
		for _, succLabel := range b.Succ {
			if succ := fn.BlockByLabel(succLabel); succ != nil {
				succ.Pred = append(succ.Pred, b.Label)
			}
		}
	}

	return reversePostorder(fn)
}

func successorsOf(b *ir.Block) []string {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	switch term.Op {
	case ir.OpJmp:
		return []string{term.Operands[0].Label}
	case ir.OpCmp:
		return []string{term.Operands[1].Label, term.Operands[2].Label}
	default:
		return nil
	}
}

// reversePostorder computes the block-index sequence by DFS from entry
// (block 0), appending on post-visit and reversing (§4.5).
func reversePostorder(fn *ir.Function) []int {
	if len(fn.Blocks) == 0 {
		return nil
	}
	visited := make([]bool, len(fn.Blocks))
	post := make([]int, 0, len(fn.Blocks))

	var visit func(idx int)
	visit = func(idx int) {
		if idx < 0 || idx >= len(fn.Blocks) || visited[idx] {
			return
		}
		visited[idx] = true
		for _, succLabel := range fn.Blocks[idx].Succ {
			if succIdx, ok := fn.LabelIndex[succLabel]; ok {
				visit(succIdx)
			}
		}
		post = append(post, idx)
	}
	visit(0)

	rpo := make([]int, len(post))
	for i, idx := range post {
		rpo[len(post)-1-i] = idx
	}
	return rpo
}
