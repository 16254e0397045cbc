package passes

import (
	"testing"

	"kumirc/internal/ir"
	"kumirc/internal/types"
)

func TestRenumberTempsCompactsGapsLeftByEarlierPasses(t *testing.T) {
	tab := types.NewTable()
	fn, blk := singleBlockFunc(tab)

	// Allocate three temps but only ever use the first and third,
	// mimicking a tmp SSA construction/folding cleared along the way.
	unused := fn.NewTemp(tab.Int())
	_ = unused
	a := ir.Temp(fn.NewTemp(tab.Int()))
	blk.Emit(&ir.Instruction{Op: ir.OpMov, Dest: &a, Operands: []ir.Operand{ir.Imm(4, tab.Int())}})
	skipped := fn.NewTemp(tab.Int())
	_ = skipped
	b := ir.Temp(fn.NewTemp(tab.Int()))
	blk.Emit(&ir.Instruction{Op: ir.OpAdd, Dest: &b, Operands: []ir.Operand{a, ir.Imm(1, tab.Int())}})
	blk.Emit(&ir.Instruction{Op: ir.OpRet, Operands: []ir.Operand{b}})

	RenumberTemps(fn)

	if len(fn.TmpTypes) != 2 {
		t.Fatalf("TmpTypes has %d entries after renumbering, want 2 (only a and b were ever used)", len(fn.TmpTypes))
	}
	if fn.NextTmp != 2 {
		t.Fatalf("NextTmp = %d, want 2", fn.NextTmp)
	}

	movInstr := blk.Instrs[0]
	addInstr := blk.Instrs[1]
	retInstr := blk.Instrs[2]

	if movInstr.Dest.Index != 0 {
		t.Fatalf("first used temp should renumber to 0, got %d", movInstr.Dest.Index)
	}
	if addInstr.Operands[0].Index != movInstr.Dest.Index {
		t.Fatalf("add's left operand %d should still reference a's new index %d", addInstr.Operands[0].Index, movInstr.Dest.Index)
	}
	if addInstr.Dest.Index != 1 {
		t.Fatalf("second used temp should renumber to 1, got %d", addInstr.Dest.Index)
	}
	if retInstr.Operands[0].Index != addInstr.Dest.Index {
		t.Fatalf("ret operand %d should reference b's new index %d", retInstr.Operands[0].Index, addInstr.Dest.Index)
	}
}
