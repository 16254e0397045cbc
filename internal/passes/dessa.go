package passes

import "kumirc/internal/ir"

// DeSSA lowers every block's phi instructions into ordinary mov
// instructions at the end of each predecessor (§4.8). Critical edges
// are split first, so a predecessor's parallel copy never shares a
// path with another block's copy sequence.
func DeSSA(fn *ir.Function) {
	splitCriticalEdges(fn)
	for _, blk := range fn.Blocks {
		if len(blk.Phis) == 0 {
			continue
		}
		lowerPhisOf(fn, blk)
		blk.Phis = nil
	}
}

// splitCriticalEdges inserts a fresh jmp-only block on every edge
// whose predecessor branches (two successors) and whose successor is
// itself a join (two-or-more predecessors), §4.8's definition of
// critical.
func splitCriticalEdges(fn *ir.Function) {
	BuildCFG(fn)

	type edge struct{ pred, succ string }
	var critical []edge
	for _, blk := range fn.Blocks {
		if len(blk.Succ) < 2 {
			continue
		}
		for _, succLabel := range blk.Succ {
			if succ := fn.BlockByLabel(succLabel); succ != nil && len(succ.Pred) >= 2 {
				critical = append(critical, edge{blk.Label, succLabel})
			}
		}
	}

	for _, e := range critical {
		pred := fn.BlockByLabel(e.pred)
		succ := fn.BlockByLabel(e.succ)
		if pred == nil || succ == nil {
			continue
		}

		split := ir.NewBlock(fn.NewLabel("edge"))
		split.Succ = []string{e.succ}
		split.Pred = []string{e.pred}
		split.Emit(&ir.Instruction{Op: ir.OpJmp, Operands: []ir.Operand{ir.Lbl(e.succ)}})
		fn.AppendBlock(split)

		term := pred.Terminator()
		for i := range term.Operands {
			if term.Operands[i].Kind == ir.OperandLabel && term.Operands[i].Label == e.succ {
				term.Operands[i] = ir.Lbl(split.Label)
			}
		}
		for i, s := range pred.Succ {
			if s == e.succ {
				pred.Succ[i] = split.Label
			}
		}
		for i, p := range succ.Pred {
			if p == e.pred {
				succ.Pred[i] = split.Label
			}
		}
		for _, phi := range succ.Phis {
			for i := range phi.Incoming {
				if phi.Incoming[i].Block == e.pred {
					phi.Incoming[i].Block = split.Label
				}
			}
		}
	}
}

// lowerPhisOf replaces blk's phis with a parallel copy sequence at the
// end of each predecessor: a pre-copy into fresh temps (so a swap-like
// set of transfers reads every source before any destination is
// overwritten), then a post-copy from those temps into the phi
// destinations (§4.8).
func lowerPhisOf(fn *ir.Function, blk *ir.Block) {
	byPred := make(map[string][]*ir.Instruction)
	for _, phi := range blk.Phis {
		for _, in := range phi.Incoming {
			byPred[in.Block] = append(byPred[in.Block], phi)
		}
	}

	for predLabel, phis := range byPred {
		pred := fn.BlockByLabel(predLabel)
		if pred == nil {
			continue
		}

		freshTmps := make([]int, len(phis))
		for i, phi := range phis {
			freshTmps[i] = fn.NewTemp(fn.TempType(phi.Dest.Index))
		}

		var transfer []*ir.Instruction
		for i, phi := range phis {
			value := incomingValueFrom(phi, predLabel)
			transfer = append(transfer, &ir.Instruction{Op: ir.OpMov, Dest: tempOperand(freshTmps[i]), Operands: []ir.Operand{value}})
		}
		for i, phi := range phis {
			transfer = append(transfer, &ir.Instruction{Op: ir.OpMov, Dest: phi.Dest, Operands: []ir.Operand{ir.Temp(freshTmps[i])}})
		}

		insertBeforeTerminator(pred, transfer)
	}
}

func incomingValueFrom(phi *ir.Instruction, predLabel string) ir.Operand {
	for _, in := range phi.Incoming {
		if in.Block == predLabel {
			return in.Value
		}
	}
	return ir.Operand{}
}

func tempOperand(idx int) *ir.Operand {
	d := ir.Temp(idx)
	return &d
}

func insertBeforeTerminator(blk *ir.Block, extra []*ir.Instruction) {
	termIdx := len(blk.Instrs) - 1
	for termIdx >= 0 && blk.Instrs[termIdx].Removed {
		termIdx--
	}
	if termIdx < 0 {
		blk.Instrs = append(blk.Instrs, extra...)
		return
	}
	merged := make([]*ir.Instruction, 0, len(blk.Instrs)+len(extra))
	merged = append(merged, blk.Instrs[:termIdx]...)
	merged = append(merged, extra...)
	merged = append(merged, blk.Instrs[termIdx:]...)
	blk.Instrs = merged
}
