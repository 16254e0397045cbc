package passes

import (
	"testing"

	"kumirc/internal/ir"
	"kumirc/internal/types"
)

func countMovesInto(fn *ir.Function, destIdx int) int {
	n := 0
	for _, blk := range fn.Blocks {
		for _, instr := range blk.Instrs {
			if !instr.Removed && instr.Op == ir.OpMov && instr.Dest != nil && instr.Dest.Index == destIdx {
				n++
			}
		}
	}
	return n
}

// TestDeSSALowersNonCriticalJoinPhiToMoves builds the same divergent
// diamond as the SSA merge test, runs it through ConstructSSA first so
// there is a real phi to lower, then checks DeSSA leaves one mov into
// the phi's destination per predecessor and clears the block's phi list. The diamond's
// edges are not critical (neither left nor right branches further), so
// no edge-splitting should occur.
func TestDeSSALowersNonCriticalJoinPhiToMoves(t *testing.T) {
	tab := types.NewTable()
	fn := ir.NewFunction("f", 1, tab.Int())
	x := fn.NewLocal(tab.Int())

	entry := ir.NewBlock("entry")
	entry.Emit(&ir.Instruction{Op: ir.OpStore, Operands: []ir.Operand{ir.Local(x), ir.Imm(1, tab.Int())}})
	entry.Emit(&ir.Instruction{Op: ir.OpCmp, Operands: []ir.Operand{ir.Imm(1, tab.Bool()), ir.Lbl("left"), ir.Lbl("right")}})
	left := ir.NewBlock("left")
	left.Emit(&ir.Instruction{Op: ir.OpStore, Operands: []ir.Operand{ir.Local(x), ir.Imm(2, tab.Int())}})
	left.Emit(&ir.Instruction{Op: ir.OpJmp, Operands: []ir.Operand{ir.Lbl("join")}})
	right := ir.NewBlock("right")
	right.Emit(&ir.Instruction{Op: ir.OpJmp, Operands: []ir.Operand{ir.Lbl("join")}})
	join := ir.NewBlock("join")
	loadDest := ir.Temp(fn.NewTemp(tab.Int()))
	join.Emit(&ir.Instruction{Op: ir.OpLoad, Dest: &loadDest, Operands: []ir.Operand{ir.Local(x)}})
	join.Emit(&ir.Instruction{Op: ir.OpRet, Operands: []ir.Operand{loadDest}})
	fn.AppendBlock(entry)
	fn.AppendBlock(left)
	fn.AppendBlock(right)
	fn.AppendBlock(join)

	ConstructSSA(fn, tab)
	phis := nonTrivialPhis(fn)
	if len(phis) != 1 {
		t.Fatalf("setup: got %d phis before DeSSA, want 1", len(phis))
	}
	phiDestIdx := phis[0].Dest.Index
	blockCountBefore := len(fn.Blocks)

	DeSSA(fn)

	joinBlock := fn.BlockByLabel("join")
	if len(joinBlock.Phis) != 0 {
		t.Fatalf("join still has %d phis after DeSSA", len(joinBlock.Phis))
	}
	if len(fn.Blocks) != blockCountBefore {
		t.Fatalf("block count changed from %d to %d; no critical edge should have been split", blockCountBefore, len(fn.Blocks))
	}
	if n := countMovesInto(fn, phiDestIdx); n != 2 {
		t.Fatalf("got %d movs into the former phi destination, want 2 (one per predecessor)", n)
	}
}

// TestDeSSASplitsCriticalEdge builds a branch whose true target has
// two predecessors (a second path also reaches it directly), making
// the branch->target edge critical, and confirms a new block is
// spliced in to carry that edge's copy instead of it landing in the
// shared branch block.
func TestDeSSASplitsCriticalEdge(t *testing.T) {
	tab := types.NewTable()
	fn := ir.NewFunction("f", 1, tab.Int())
	x := fn.NewLocal(tab.Int())

	// branch: cmp -> a, b
	// a: jmp join
	// b: cmp -> a, join    (b has two successors; "a" is the critical
	//                       target since it has two predecessors: branch, b)
	branch := ir.NewBlock("branch")
	branch.Emit(&ir.Instruction{Op: ir.OpCmp, Operands: []ir.Operand{ir.Imm(1, tab.Bool()), ir.Lbl("a"), ir.Lbl("b")}})
	a := ir.NewBlock("a")
	a.Emit(&ir.Instruction{Op: ir.OpStore, Operands: []ir.Operand{ir.Local(x), ir.Imm(1, tab.Int())}})
	a.Emit(&ir.Instruction{Op: ir.OpJmp, Operands: []ir.Operand{ir.Lbl("join")}})
	b := ir.NewBlock("b")
	b.Emit(&ir.Instruction{Op: ir.OpCmp, Operands: []ir.Operand{ir.Imm(0, tab.Bool()), ir.Lbl("a"), ir.Lbl("join")}})
	join := ir.NewBlock("join")
	loadDest := ir.Temp(fn.NewTemp(tab.Int()))
	join.Emit(&ir.Instruction{Op: ir.OpLoad, Dest: &loadDest, Operands: []ir.Operand{ir.Local(x)}})
	join.Emit(&ir.Instruction{Op: ir.OpRet, Operands: []ir.Operand{loadDest}})
	fn.AppendBlock(branch)
	fn.AppendBlock(a)
	fn.AppendBlock(b)
	fn.AppendBlock(join)

	ConstructSSA(fn, tab)
	blockCountBefore := len(fn.Blocks)

	DeSSA(fn)

	if len(fn.Blocks) <= blockCountBefore {
		t.Fatalf("expected a new block for the split critical edge b->a, block count stayed at %d", len(fn.Blocks))
	}
	aBlock := fn.BlockByLabel("a")
	for _, p := range aBlock.Pred {
		if p == "b" {
			t.Fatalf("a's predecessor list still names b directly after splitting: %v", aBlock.Pred)
		}
	}
}
