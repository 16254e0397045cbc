package passes

import (
	"kumirc/internal/ir"
	"kumirc/internal/types"
)

// RenumberTemps maps every tmp index a function's surviving
// instructions and phis reference to a dense index assigned in
// first-sight order, rewrites every occurrence, and reorders
// fn.TmpTypes to match (§4.9). Gaps left behind by SSA construction,
// folding, and de-SSA's intermediate temps are compacted out.
func RenumberTemps(fn *ir.Function) {
	newIndex := make(map[int]int)
	var newTypes []*types.Type

	assign := func(old int) int {
		if idx, ok := newIndex[old]; ok {
			return idx
		}
		idx := len(newTypes)
		newIndex[old] = idx
		newTypes = append(newTypes, fn.TempType(old))
		return idx
	}

	rewrite := func(op *ir.Operand) {
		if op.Kind == ir.OperandTemp {
			op.Index = assign(op.Index)
		}
	}

	for _, blk := range fn.Blocks {
		for _, phi := range blk.Phis {
			if phi.Removed {
				continue
			}
			if phi.Dest != nil {
				rewrite(phi.Dest)
			}
			for i := range phi.Incoming {
				rewrite(&phi.Incoming[i].Value)
			}
		}
		for _, instr := range blk.Instrs {
			if instr.Removed {
				continue
			}
			if instr.Dest != nil {
				rewrite(instr.Dest)
			}
			for i := range instr.Operands {
				rewrite(&instr.Operands[i])
			}
		}
	}

	fn.TmpTypes = newTypes
	fn.NextTmp = len(newTypes)
}
