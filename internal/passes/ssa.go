package passes

import (
	"kumirc/internal/ir"
	"kumirc/internal/types"
)

// pendingPhi is an incomplete phi queued against a not-yet-sealed
// block (§4.6): the local it stands in for, and the phi instruction
// itself (already given a destination tmp, empty Incoming).
type pendingPhi struct {
	local int
	instr *ir.Instruction
}

// ssaBuilder carries the Braun-et-al bookkeeping for one function:
// current_def, incomplete_phis, and sealed_blocks, plus a resolved
// map unifying two kinds of "this tmp should read as that operand"
// substitution: a cleared load's destination, and a trivial phi's
// destination once it collapses.
type ssaBuilder struct {
	fn *ir.Function
	t  *types.Table

	currentDef map[int]map[int]ir.Operand
	incomplete map[int][]pendingPhi
	sealed     map[int]bool
	pending    []int // remaining unprocessed-predecessor count per block

	resolved map[int]ir.Operand
	allPhis  []*ir.Instruction
}

// ConstructSSA promotes every function-local store/load pair into SSA
// form (§4.6): locals become virtual registers, merges become
// φ-instructions, and trivial phis collapse to the single value they
// agree on. Module-slot stores/loads (shared, not a single function's
// dataflow) are left untouched. Rebuilds the CFG first since SSA
// construction depends on current Pred/Succ/LabelIndex.
func ConstructSSA(fn *ir.Function, t *types.Table) {
	rpo := BuildCFG(fn)

	b := &ssaBuilder{
		fn:         fn,
		t:          t,
		currentDef: make(map[int]map[int]ir.Operand),
		incomplete: make(map[int][]pendingPhi),
		sealed:     make(map[int]bool),
		pending:    make([]int, len(fn.Blocks)),
		resolved:   make(map[int]ir.Operand),
	}
	for i, blk := range fn.Blocks {
		b.pending[i] = len(blk.Pred)
	}

	for _, idx := range rpo {
		if b.pending[idx] == 0 {
			b.seal(idx)
		}
		b.processBlock(idx)
		for _, succLabel := range fn.Blocks[idx].Succ {
			succIdx, ok := fn.LabelIndex[succLabel]
			if !ok {
				continue
			}
			b.pending[succIdx]--
			if b.pending[succIdx] == 0 {
				b.seal(succIdx)
			}
		}
	}
	// Blocks the RPO walk never reached (no path from entry) still need
	// their incomplete phis resolved rather than left dangling.
	for i := range fn.Blocks {
		if !b.sealed[i] {
			b.seal(i)
		}
	}

	b.eliminateTrivialPhis()
	b.rewrite()
}

func (b *ssaBuilder) defAt(local, blockIdx int) (ir.Operand, bool) {
	m, ok := b.currentDef[local]
	if !ok {
		return ir.Operand{}, false
	}
	v, ok := m[blockIdx]
	return v, ok
}

func (b *ssaBuilder) setDef(local, blockIdx int, v ir.Operand) {
	m, ok := b.currentDef[local]
	if !ok {
		m = make(map[int]ir.Operand)
		b.currentDef[local] = m
	}
	m[blockIdx] = v
}

// processBlock walks one block's instructions in order, recording
// every store to a local as that local's current definition in this
// block and clearing it, and replacing every load from a local with
// its resolved definition (§4.6).
func (b *ssaBuilder) processBlock(blockIdx int) {
	blk := b.fn.Blocks[blockIdx]
	for _, instr := range blk.Instrs {
		if instr.Removed {
			continue
		}
		switch instr.Op {
		case ir.OpStore:
			if instr.Operands[0].Kind == ir.OperandLocal {
				b.setDef(instr.Operands[0].Index, blockIdx, instr.Operands[1])
				instr.Removed = true
			}
		case ir.OpLoad:
			if instr.Operands[0].Kind == ir.OperandLocal {
				v := b.readVariable(instr.Operands[0].Index, blockIdx)
				b.resolved[instr.Dest.Index] = v
				instr.Removed = true
			}
		}
	}
}

// readVariable implements Braun et al.'s read_variable (§4.6): a
// zero-predecessor block yields undef, a single-predecessor block
// recurses regardless of sealing, an unsealed multi-predecessor block
// gets an incomplete phi placeholder, and a sealed one gets a phi
// materialized immediately.
func (b *ssaBuilder) readVariable(local, blockIdx int) ir.Operand {
	if v, ok := b.defAt(local, blockIdx); ok {
		return v
	}

	blk := b.fn.Blocks[blockIdx]
	switch {
	case len(blk.Pred) == 0:
		v := ir.Imm(0, b.t.Undef())
		b.setDef(local, blockIdx, v)
		return v

	case len(blk.Pred) == 1:
		predIdx, ok := b.fn.LabelIndex[blk.Pred[0]]
		if !ok {
			v := ir.Imm(0, b.t.Undef())
			b.setDef(local, blockIdx, v)
			return v
		}
		v := b.readVariable(local, predIdx)
		b.setDef(local, blockIdx, v)
		return v

	case !b.sealed[blockIdx]:
		tmp := b.fn.NewTemp(b.localType(local))
		phi := &ir.Instruction{Op: ir.OpPhi, Dest: phiDest(tmp)}
		blk.Phis = append(blk.Phis, phi)
		b.allPhis = append(b.allPhis, phi)
		b.incomplete[blockIdx] = append(b.incomplete[blockIdx], pendingPhi{local: local, instr: phi})
		v := ir.Temp(tmp)
		b.setDef(local, blockIdx, v)
		return v

	default:
		tmp := b.fn.NewTemp(b.localType(local))
		v := ir.Temp(tmp)
		b.setDef(local, blockIdx, v) // break recursion cycles through this block
		phi := &ir.Instruction{Op: ir.OpPhi, Dest: phiDest(tmp)}
		b.addPhiOperands(phi, local, blockIdx)
		blk.Phis = append(blk.Phis, phi)
		b.allPhis = append(b.allPhis, phi)
		return v
	}
}

func phiDest(tmp int) *ir.Operand {
	d := ir.Temp(tmp)
	return &d
}

func (b *ssaBuilder) localType(local int) *types.Type {
	if local < 0 || local >= len(b.fn.LocalTypes) {
		return b.t.Undef()
	}
	return b.fn.LocalTypes[local]
}

// addPhiOperands reads the variable's value along each of the phi
// block's actual predecessors, filling in the phi's Incoming list
// (§4.6's add_phi_operands).
func (b *ssaBuilder) addPhiOperands(phi *ir.Instruction, local, blockIdx int) {
	blk := b.fn.Blocks[blockIdx]
	for _, predLabel := range blk.Pred {
		predIdx, ok := b.fn.LabelIndex[predLabel]
		if !ok {
			continue
		}
		v := b.readVariable(local, predIdx)
		phi.Incoming = append(phi.Incoming, ir.PhiOperand{Block: predLabel, Value: v})
	}
}

// seal marks every predecessor edge of blockIdx as processed and
// materializes any phi that was left incomplete waiting on it.
func (b *ssaBuilder) seal(blockIdx int) {
	if b.sealed[blockIdx] {
		return
	}
	b.sealed[blockIdx] = true
	pending := b.incomplete[blockIdx]
	delete(b.incomplete, blockIdx)
	for _, p := range pending {
		b.addPhiOperands(p.instr, p.local, blockIdx)
	}
}

// eliminateTrivialPhis repeatedly collapses any phi whose incoming
// values are all its own destination or a single other value, to a
// fixpoint (§4.6). A phi that collapses this round can make another
// phi trivial next round (its incoming value becomes a single
// constant-propagated operand), hence the fixpoint instead of one pass.
func (b *ssaBuilder) eliminateTrivialPhis() {
	for {
		changed := false
		for _, phi := range b.allPhis {
			if phi.Removed {
				continue
			}
			same, ok := trivialValue(phi)
			if !ok {
				continue
			}
			phi.Removed = true
			b.resolved[phi.Dest.Index] = b.resolve(same)
			changed = true
		}
		if !changed {
			return
		}
	}
}

// trivialValue returns the single non-self operand every incoming
// edge of phi agrees on, if one exists.
func trivialValue(phi *ir.Instruction) (ir.Operand, bool) {
	var same *ir.Operand
	for i := range phi.Incoming {
		v := phi.Incoming[i].Value
		if v.Kind == ir.OperandTemp && v.Index == phi.Dest.Index {
			continue
		}
		if same != nil && !operandsEqual(*same, v) {
			return ir.Operand{}, false
		}
		vv := v
		same = &vv
	}
	if same == nil {
		return ir.Operand{}, false
	}
	return *same, true
}

func operandsEqual(a, b ir.Operand) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ir.OperandTemp, ir.OperandLocal, ir.OperandSlot:
		return a.Index == b.Index
	case ir.OperandImmediate:
		return a.ImmValue == b.ImmValue && a.ImmType == b.ImmType
	case ir.OperandLabel:
		return a.Label == b.Label
	}
	return true
}

// resolve follows the resolved chain (a cleared load, or a collapsed
// trivial phi) to the final operand a tmp reference should read as.
func (b *ssaBuilder) resolve(op ir.Operand) ir.Operand {
	for steps := 0; op.Kind == ir.OperandTemp && steps <= len(b.fn.TmpTypes); steps++ {
		next, ok := b.resolved[op.Index]
		if !ok {
			break
		}
		op = next
	}
	return op
}

// rewrite performs the whole-function substitution pass: every
// operand referencing a cleared load's tmp or a collapsed phi's tmp
// is replaced by its resolved value.
func (b *ssaBuilder) rewrite() {
	for _, blk := range b.fn.Blocks {
		for _, phi := range blk.Phis {
			if phi.Removed {
				continue
			}
			for i := range phi.Incoming {
				phi.Incoming[i].Value = b.resolve(phi.Incoming[i].Value)
			}
		}
		for _, instr := range blk.Instrs {
			if instr.Removed {
				continue
			}
			for i := range instr.Operands {
				instr.Operands[i] = b.resolve(instr.Operands[i])
			}
		}
	}
}
