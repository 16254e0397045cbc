package passes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kumirc/internal/ir"
	"kumirc/internal/types"
)

func singleBlockFunc(tab *types.Table) (*ir.Function, *ir.Block) {
	fn := ir.NewFunction("f", 1, tab.Int())
	blk := ir.NewBlock("entry")
	fn.AppendBlock(blk)
	return fn, blk
}

func TestConstantFoldEvaluatesIntArithmetic(t *testing.T) {
	tab := types.NewTable()
	fn, blk := singleBlockFunc(tab)

	sum := ir.Temp(fn.NewTemp(tab.Int()))
	blk.Emit(&ir.Instruction{Op: ir.OpAdd, Dest: &sum, Operands: []ir.Operand{ir.Imm(2, tab.Int()), ir.Imm(3, tab.Int())}})
	prod := ir.Temp(fn.NewTemp(tab.Int()))
	blk.Emit(&ir.Instruction{Op: ir.OpMul, Dest: &prod, Operands: []ir.Operand{sum, ir.Imm(10, tab.Int())}})
	blk.Emit(&ir.Instruction{Op: ir.OpRet, Operands: []ir.Operand{prod}})

	ConstantFold(fn)

	ret := blk.Instrs[len(blk.Instrs)-1]
	require.Equal(t, ir.OperandImmediate, ret.Operands[0].Kind, "ret operand should have folded to an immediate")
	assert.EqualValues(t, 50, ret.Operands[0].ImmValue)
}

func TestConstantFoldAppliesAdditiveAndMultiplicativeIdentities(t *testing.T) {
	tab := types.NewTable()
	fn, blk := singleBlockFunc(tab)

	x := ir.Temp(fn.NewTemp(tab.Int()))
	blk.Emit(&ir.Instruction{Op: ir.OpLoad, Dest: &x, Operands: []ir.Operand{ir.Local(fn.NewLocal(tab.Int()))}})

	plusZero := ir.Temp(fn.NewTemp(tab.Int()))
	blk.Emit(&ir.Instruction{Op: ir.OpAdd, Dest: &plusZero, Operands: []ir.Operand{x, ir.Imm(0, tab.Int())}})
	timesOne := ir.Temp(fn.NewTemp(tab.Int()))
	blk.Emit(&ir.Instruction{Op: ir.OpMul, Dest: &timesOne, Operands: []ir.Operand{plusZero, ir.Imm(1, tab.Int())}})
	timesZero := ir.Temp(fn.NewTemp(tab.Int()))
	blk.Emit(&ir.Instruction{Op: ir.OpMul, Dest: &timesZero, Operands: []ir.Operand{timesOne, ir.Imm(0, tab.Int())}})
	blk.Emit(&ir.Instruction{Op: ir.OpRet, Operands: []ir.Operand{timesZero}})

	ConstantFold(fn)

	ret := blk.Instrs[len(blk.Instrs)-1]
	require.Equal(t, ir.OperandImmediate, ret.Operands[0].Kind, "x*0 should collapse regardless of x")
	assert.EqualValues(t, 0, ret.Operands[0].ImmValue)
}

func TestConstantFoldLeavesDivisionByZeroForRuntime(t *testing.T) {
	tab := types.NewTable()
	fn, blk := singleBlockFunc(tab)

	quot := ir.Temp(fn.NewTemp(tab.Int()))
	div := &ir.Instruction{Op: ir.OpDiv, Dest: &quot, Operands: []ir.Operand{ir.Imm(5, tab.Int()), ir.Imm(0, tab.Int())}}
	blk.Emit(div)
	blk.Emit(&ir.Instruction{Op: ir.OpRet, Operands: []ir.Operand{quot}})

	ConstantFold(fn)

	assert.False(t, div.Removed, "division by zero must not be folded away; the runtime needs to fault on it")
}

func TestConstantFoldEvaluatesFloatArithmetic(t *testing.T) {
	tab := types.NewTable()
	fn, blk := singleBlockFunc(tab)

	half := math.Float64bits(0.5)
	quarter := math.Float64bits(0.25)
	sum := ir.Temp(fn.NewTemp(tab.Float()))
	blk.Emit(&ir.Instruction{Op: ir.OpAdd, Dest: &sum, Operands: []ir.Operand{
		{Kind: ir.OperandImmediate, ImmValue: int64(half), ImmType: tab.Float()},
		{Kind: ir.OperandImmediate, ImmValue: int64(quarter), ImmType: tab.Float()},
	}})
	blk.Emit(&ir.Instruction{Op: ir.OpRet, Operands: []ir.Operand{sum}})

	ConstantFold(fn)

	ret := blk.Instrs[len(blk.Instrs)-1]
	got := math.Float64frombits(uint64(ret.Operands[0].ImmValue))
	assert.Equal(t, 0.75, got)
}
