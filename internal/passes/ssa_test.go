package passes

import (
	"testing"

	"kumirc/internal/ir"
	"kumirc/internal/types"
)

func retOperand(fn *ir.Function) ir.Operand {
	for _, blk := range fn.Blocks {
		for _, instr := range blk.Instrs {
			if !instr.Removed && instr.Op == ir.OpRet && len(instr.Operands) == 1 {
				return instr.Operands[0]
			}
		}
	}
	return ir.Operand{}
}

func nonTrivialPhis(fn *ir.Function) []*ir.Instruction {
	var out []*ir.Instruction
	for _, blk := range fn.Blocks {
		for _, phi := range blk.Phis {
			if !phi.Removed {
				out = append(out, phi)
			}
		}
	}
	return out
}

// TestConstructSSAMergesDivergentDefinitionsIntoPhi builds
//
//	entry: stre x, 1; cmp cond, left, right
//	left:  stre x, 2; jmp join
//	right: jmp join
//	join:  load t, x; ret t
//
// right never redefines x, so its value flows straight from entry
// (single predecessor, no phi needed there); left does redefine it, so
// join's merge is a genuine two-way phi that must survive trivial
// elimination.
func TestConstructSSAMergesDivergentDefinitionsIntoPhi(t *testing.T) {
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
		t.Fatalf("got %d surviving phis, want 1", len(phis))
	}
	phi := phis[0]
	if len(phi.Incoming) != 2 {
		t.Fatalf("phi has %d incoming edges, want 2", len(phi.Incoming))
	}

	ret := retOperand(fn)
	if ret.Kind != ir.OperandTemp || ret.Index != phi.Dest.Index {
		t.Fatalf("ret operand %+v does not reference the phi's destination %+v", ret, *phi.Dest)
	}

	var sawTwo, sawEntryValue bool
	for _, in := range phi.Incoming {
		switch in.Block {
		case "left":
			if in.Value.Kind == ir.OperandImmediate && in.Value.ImmValue == 2 {
				sawTwo = true
			}
		case "right":
			if in.Value.Kind == ir.OperandImmediate && in.Value.ImmValue == 1 {
				sawEntryValue = true
			}
		}
	}
	if !sawTwo || !sawEntryValue {
		t.Fatalf("phi incoming values wrong: %+v", phi.Incoming)
	}
}

// TestConstructSSAElidesTrivialPhiWhenBothBranchesAgree mirrors the
// same diamond but with both branches leaving x at its entry value, so
// the join's phi has only one distinct incoming value and must
// collapse rather than survive as a real merge.
func TestConstructSSAElidesTrivialPhiWhenBothBranchesAgree(t *testing.T) {
	tab := types.NewTable()
	fn := ir.NewFunction("f", 1, tab.Int())
	x := fn.NewLocal(tab.Int())

	entry := ir.NewBlock("entry")
	entry.Emit(&ir.Instruction{Op: ir.OpStore, Operands: []ir.Operand{ir.Local(x), ir.Imm(7, tab.Int())}})
	entry.Emit(&ir.Instruction{Op: ir.OpCmp, Operands: []ir.Operand{ir.Imm(1, tab.Bool()), ir.Lbl("left"), ir.Lbl("right")}})

	left := ir.NewBlock("left")
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

	if phis := nonTrivialPhis(fn); len(phis) != 0 {
		t.Fatalf("got %d surviving phis, want 0 (trivial merge should collapse)", len(phis))
	}
	ret := retOperand(fn)
	if ret.Kind != ir.OperandImmediate || ret.ImmValue != 7 {
		t.Fatalf("ret operand = %+v, want immediate 7", ret)
	}
}

// TestConstructSSAResolvesLoopHeaderBackEdgeAfterSealing builds a
// while-style loop:
//
//	entry: jmp header
//	header: load t, x; cmp t, body, end
//	body:  stre x, <t+1-ish immediate>; jmp header
//	end:   load t2, x; ret t2
//
// header has two predecessors (entry, body) but body is only
// discovered after header is first processed, so header's phi must
// start life incomplete and only resolve once body's back edge seals it.
func TestConstructSSAResolvesLoopHeaderBackEdgeAfterSealing(t *testing.T) {
	tab := types.NewTable()
	fn := ir.NewFunction("f", 1, tab.Int())
	x := fn.NewLocal(tab.Int())

	entry := ir.NewBlock("entry")
	entry.Emit(&ir.Instruction{Op: ir.OpStore, Operands: []ir.Operand{ir.Local(x), ir.Imm(0, tab.Int())}})
	entry.Emit(&ir.Instruction{Op: ir.OpJmp, Operands: []ir.Operand{ir.Lbl("header")}})

	header := ir.NewBlock("header")
	headerLoad := ir.Temp(fn.NewTemp(tab.Int()))
	header.Emit(&ir.Instruction{Op: ir.OpLoad, Dest: &headerLoad, Operands: []ir.Operand{ir.Local(x)}})
	header.Emit(&ir.Instruction{Op: ir.OpCmp, Operands: []ir.Operand{headerLoad, ir.Lbl("body"), ir.Lbl("end")}})

	body := ir.NewBlock("body")
	body.Emit(&ir.Instruction{Op: ir.OpStore, Operands: []ir.Operand{ir.Local(x), ir.Imm(9, tab.Int())}})
	body.Emit(&ir.Instruction{Op: ir.OpJmp, Operands: []ir.Operand{ir.Lbl("header")}})

	end := ir.NewBlock("end")
	endLoad := ir.Temp(fn.NewTemp(tab.Int()))
	end.Emit(&ir.Instruction{Op: ir.OpLoad, Dest: &endLoad, Operands: []ir.Operand{ir.Local(x)}})
	end.Emit(&ir.Instruction{Op: ir.OpRet, Operands: []ir.Operand{endLoad}})

	fn.AppendBlock(entry)
	fn.AppendBlock(header)
	fn.AppendBlock(body)
	fn.AppendBlock(end)

	ConstructSSA(fn, tab)

	phis := nonTrivialPhis(fn)
	if len(phis) != 1 {
		t.Fatalf("got %d surviving phis, want 1 (header's loop phi)", len(phis))
	}
	phi := phis[0]
	if len(phi.Incoming) != 2 {
		t.Fatalf("header phi has %d incoming edges, want 2 (entry, body)", len(phi.Incoming))
	}
	var sawEntryZero, sawBodyNine bool
	for _, in := range phi.Incoming {
		if in.Block == "entry" && in.Value.Kind == ir.OperandImmediate && in.Value.ImmValue == 0 {
			sawEntryZero = true
		}
		if in.Block == "body" && in.Value.Kind == ir.OperandImmediate && in.Value.ImmValue == 9 {
			sawBodyNine = true
		}
	}
	if !sawEntryZero || !sawBodyNine {
		t.Fatalf("header phi incoming wrong: %+v", phi.Incoming)
	}
}
