package passes

import (
	"testing"

	"kumirc/internal/ir"
	"kumirc/internal/types"
)

// diamond builds entry -> (left|right) -> join, the shape every
// if/while lowering produces, and returns the function plus its four
// blocks in program order.
func diamond(t *testing.T, tab *types.Table) (*ir.Function, *ir.Block, *ir.Block, *ir.Block, *ir.Block) {
	t.Helper()
	fn := ir.NewFunction("f", 1, tab.Void())

	entry := ir.NewBlock("entry")
	left := ir.NewBlock("left")
	right := ir.NewBlock("right")
	join := ir.NewBlock("join")

	entry.Emit(&ir.Instruction{Op: ir.OpCmp, Operands: []ir.Operand{ir.Imm(1, tab.Bool()), ir.Lbl("left"), ir.Lbl("right")}})
	left.Emit(&ir.Instruction{Op: ir.OpJmp, Operands: []ir.Operand{ir.Lbl("join")}})
	right.Emit(&ir.Instruction{Op: ir.OpJmp, Operands: []ir.Operand{ir.Lbl("join")}})
	join.Emit(&ir.Instruction{Op: ir.OpRet})

	fn.AppendBlock(entry)
	fn.AppendBlock(left)
	fn.AppendBlock(right)
	fn.AppendBlock(join)
	return fn, entry, left, right, join
}

func TestBuildCFGComputesSuccPredAndRPO(t *testing.T) {
	tab := types.NewTable()
	fn, entry, left, right, join := diamond(t, tab)

	rpo := BuildCFG(fn)

	if len(entry.Succ) != 2 || entry.Succ[0] != "left" || entry.Succ[1] != "right" {
		t.Fatalf("entry successors = %v", entry.Succ)
	}
	if len(join.Pred) != 2 {
		t.Fatalf("join predecessors = %v, want 2", join.Pred)
	}
	if len(left.Succ) != 1 || left.Succ[0] != "join" {
		t.Fatalf("left successors = %v", left.Succ)
	}
	if len(right.Succ) != 1 || right.Succ[0] != "join" {
		t.Fatalf("right successors = %v", right.Succ)
	}

	if rpo[0] != 0 {
		t.Fatalf("rpo[0] = %d, want entry (0)", rpo[0])
	}
	if rpo[len(rpo)-1] != 3 {
		t.Fatalf("rpo last = %d, want join (3)", rpo[len(rpo)-1])
	}
}

func TestBuildCFGLeavesUnreachableBlockWithNoPredecessors(t *testing.T) {
	tab := types.NewTable()
	fn := ir.NewFunction("f", 1, tab.Void())
	entry := ir.NewBlock("entry")
	entry.Emit(&ir.Instruction{Op: ir.OpRet})
	orphan := ir.NewBlock("orphan")
	orphan.Emit(&ir.Instruction{Op: ir.OpRet})
	fn.AppendBlock(entry)
	fn.AppendBlock(orphan)

	rpo := BuildCFG(fn)

	if len(orphan.Pred) != 0 {
		t.Fatalf("orphan predecessors = %v, want none", orphan.Pred)
	}
	if len(rpo) != 1 {
		t.Fatalf("rpo = %v, want only the reachable entry block", rpo)
	}
}
