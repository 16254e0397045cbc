package passes

import (
	"math"

	"kumirc/internal/ir"
	"kumirc/internal/types"
)

// ConstantFold iterates to a fixpoint per function (§4.7): every
// binary arithmetic instruction whose operands are both immediates of
// matching numeric kind is evaluated and replaced by its result, and
// the identities x+0/x-0→x, x*0/0*x→0, x*1/1*x/x/1→x collapse an
// instruction to whichever operand already carries the answer. A
// fold that turns an operand into a new immediate can expose another
// fold next round (e.g. `(1+2)*x` after the first round looks like
// `3*x`), hence the fixpoint rather than one pass.
func ConstantFold(fn *ir.Function) {
	for {
		subst := make(map[int]ir.Operand)
		changed := false

		for _, blk := range fn.Blocks {
			for _, instr := range blk.Instrs {
				if instr.Removed || instr.Dest == nil || !isArith(instr.Op) {
					continue
				}
				left, right := instr.Operands[0], instr.Operands[1]

				if left.IsImm() && right.IsImm() && sameNumericKind(left, right) {
					if result, ok := foldConst(instr.Op, left, right); ok {
						subst[instr.Dest.Index] = result
						instr.Removed = true
						changed = true
						continue
					}
					continue // e.g. division by zero: leave for the runtime to fault on
				}

				if repl, ok := identity(instr.Op, left, right); ok {
					subst[instr.Dest.Index] = repl
					instr.Removed = true
					changed = true
				}
			}
		}

		if !changed {
			return
		}
		rewriteWithSubst(fn, subst)
	}
}

func isArith(op ir.Opcode) bool {
	switch op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod, ir.OpPow:
		return true
	}
	return false
}

func sameNumericKind(a, b ir.Operand) bool {
	if a.ImmType == nil || b.ImmType == nil {
		return false
	}
	if a.ImmType.IsPrimitive(types.Int) && b.ImmType.IsPrimitive(types.Int) {
		return true
	}
	return a.ImmType.IsPrimitive(types.Float) && b.ImmType.IsPrimitive(types.Float)
}

func foldConst(op ir.Opcode, left, right ir.Operand) (ir.Operand, bool) {
	if left.ImmType.IsPrimitive(types.Int) {
		l, r := left.ImmValue, right.ImmValue
		switch op {
		case ir.OpAdd:
			return ir.Imm(l+r, left.ImmType), true
		case ir.OpSub:
			return ir.Imm(l-r, left.ImmType), true
		case ir.OpMul:
			return ir.Imm(l*r, left.ImmType), true
		case ir.OpDiv:
			if r == 0 {
				return ir.Operand{}, false
			}
			return ir.Imm(l/r, left.ImmType), true
		case ir.OpMod:
			if r == 0 {
				return ir.Operand{}, false
			}
			return ir.Imm(l%r, left.ImmType), true
		case ir.OpPow:
			if r < 0 {
				return ir.Operand{}, false
			}
			return ir.Imm(intPow(l, r), left.ImmType), true
		}
		return ir.Operand{}, false
	}

	lf, rf := toFloat(left.ImmValue), toFloat(right.ImmValue)
	switch op {
	case ir.OpAdd:
		return ir.Imm(fromFloat(lf+rf), left.ImmType), true
	case ir.OpSub:
		return ir.Imm(fromFloat(lf-rf), left.ImmType), true
	case ir.OpMul:
		return ir.Imm(fromFloat(lf*rf), left.ImmType), true
	case ir.OpDiv:
		if rf == 0 {
			return ir.Operand{}, false
		}
		return ir.Imm(fromFloat(lf/rf), left.ImmType), true
	case ir.OpPow:
		return ir.Imm(fromFloat(math.Pow(lf, rf)), left.ImmType), true
	}
	return ir.Operand{}, false
}

func intPow(base, exp int64) int64 {
	result := int64(1)
	for ; exp > 0; exp-- {
		result *= base
	}
	return result
}

func toFloat(bits int64) float64   { return math.Float64frombits(uint64(bits)) }
func fromFloat(v float64) int64    { return int64(math.Float64bits(v)) }

func identity(op ir.Opcode, left, right ir.Operand) (ir.Operand, bool) {
	switch op {
	case ir.OpAdd:
		if isImmZero(left) {
			return right, true
		}
		if isImmZero(right) {
			return left, true
		}
	case ir.OpSub:
		if isImmZero(right) {
			return left, true
		}
	case ir.OpMul:
		if isImmZero(left) {
			return left, true
		}
		if isImmZero(right) {
			return right, true
		}
		if isImmOne(left) {
			return right, true
		}
		if isImmOne(right) {
			return left, true
		}
	case ir.OpDiv:
		if isImmOne(right) {
			return left, true
		}
	}
	return ir.Operand{}, false
}

func isImmZero(op ir.Operand) bool { return op.IsImm() && op.ImmValue == 0 }

func isImmOne(op ir.Operand) bool {
	if !op.IsImm() {
		return false
	}
	if op.ImmType != nil && op.ImmType.IsPrimitive(types.Float) {
		return op.ImmValue == fromFloat(1.0)
	}
	return op.ImmValue == 1
}

// resolveSubst follows a fold's substitution chain to a final operand.
func resolveSubst(subst map[int]ir.Operand, op ir.Operand, limit int) ir.Operand {
	for steps := 0; op.Kind == ir.OperandTemp && steps <= limit; steps++ {
		next, ok := subst[op.Index]
		if !ok {
			break
		}
		op = next
	}
	return op
}

func rewriteWithSubst(fn *ir.Function, subst map[int]ir.Operand) {
	limit := len(fn.TmpTypes) + 1
	for _, blk := range fn.Blocks {
		for _, phi := range blk.Phis {
			if phi.Removed {
				continue
			}
			for i := range phi.Incoming {
				phi.Incoming[i].Value = resolveSubst(subst, phi.Incoming[i].Value, limit)
			}
		}
		for _, instr := range blk.Instrs {
			if instr.Removed {
				continue
			}
			for i := range instr.Operands {
				instr.Operands[i] = resolveSubst(subst, instr.Operands[i], limit)
			}
		}
	}
}
