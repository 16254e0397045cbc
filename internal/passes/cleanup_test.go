package passes

import (
	"testing"

	"kumirc/internal/ir"
	"kumirc/internal/types"
)

func TestCleanupDropsNullStringReleaseAndCompactsRemoved(t *testing.T) {
	tab := types.NewTable()
	fn, blk := singleBlockFunc(tab)

	argNull := &ir.Instruction{Op: ir.OpArg, Operands: []ir.Operand{ir.Imm(0, tab.String())}}
	callRelease := &ir.Instruction{Op: ir.OpCall, Operands: []ir.Operand{ir.Lbl("str_release")}}
	blk.Emit(argNull)
	blk.Emit(callRelease)

	argReal := &ir.Instruction{Op: ir.OpArg, Operands: []ir.Operand{ir.Imm(7, tab.String())}}
	callOutput := &ir.Instruction{Op: ir.OpCall, Operands: []ir.Operand{ir.Lbl("output_string")}}
	blk.Emit(argReal)
	blk.Emit(callOutput)

	blk.Emit(&ir.Instruction{Op: ir.OpRet})
	instrCountBefore := len(blk.Instrs)

	Cleanup(fn)

	if len(blk.Instrs) != instrCountBefore-2 {
		t.Fatalf("block has %d instructions after cleanup, want %d (the null-release pair dropped)", len(blk.Instrs), instrCountBefore-2)
	}
	for _, instr := range blk.Instrs {
		if instr.Op == ir.OpCall && len(instr.Operands) == 1 && instr.Operands[0].Label == "str_release" {
			t.Fatalf("str_release call against a known null survived cleanup")
		}
	}
	foundOutput := false
	for _, instr := range blk.Instrs {
		if instr.Op == ir.OpCall && len(instr.Operands) == 1 && instr.Operands[0].Label == "output_string" {
			foundOutput = true
		}
	}
	if !foundOutput {
		t.Fatalf("unrelated call was dropped along with the null release")
	}
}

func TestCleanupCompactsRemovedPhis(t *testing.T) {
	tab := types.NewTable()
	fn := ir.NewFunction("f", 1, tab.Int())
	blk := ir.NewBlock("entry")
	live := ir.Temp(fn.NewTemp(tab.Int()))
	livePhi := &ir.Instruction{Op: ir.OpPhi, Dest: &live}
	dead := ir.Temp(fn.NewTemp(tab.Int()))
	deadPhi := &ir.Instruction{Op: ir.OpPhi, Dest: &dead, Removed: true}
	blk.Phis = []*ir.Instruction{livePhi, deadPhi}
	blk.Emit(&ir.Instruction{Op: ir.OpRet})
	fn.AppendBlock(blk)

	Cleanup(fn)

	if len(blk.Phis) != 1 || blk.Phis[0] != livePhi {
		t.Fatalf("block has phis %+v after cleanup, want only the live one", blk.Phis)
	}
}
