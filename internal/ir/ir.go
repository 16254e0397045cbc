package ir

import (
	"fmt"

	"kumirc/internal/types"
)

// OperandKind discriminates the tagged sum an Operand carries (§3.4).
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandTemp
	OperandLocal
	OperandSlot
	OperandImmediate
	OperandLabel
)

// Operand is a tagged sum of temporary, local, module slot, immediate,
// or block label (§3.4).
type Operand struct {
	Kind  OperandKind
	Index int // Temp/Local/Slot index

	ImmValue int64
	ImmType  *types.Type // for OperandImmediate; also carries the `undef` kind pre-refinement

	Label string // for OperandLabel
}

func Temp(idx int) Operand  { return Operand{Kind: OperandTemp, Index: idx} }
func Local(idx int) Operand { return Operand{Kind: OperandLocal, Index: idx} }
func Slot(idx int) Operand  { return Operand{Kind: OperandSlot, Index: idx} }
func Imm(v int64, t *types.Type) Operand {
	return Operand{Kind: OperandImmediate, ImmValue: v, ImmType: t}
}
func Lbl(label string) Operand { return Operand{Kind: OperandLabel, Label: label} }

func (o Operand) IsTemp() bool { return o.Kind == OperandTemp }
func (o Operand) IsImm() bool  { return o.Kind == OperandImmediate }

// PhiOperand is one incoming edge of a φ-instruction: the predecessor
// block's label and the value flowing in along that edge (§3.4, §6.2).
type PhiOperand struct {
	Block string
	Value Operand
}

// Instruction is a single IR opcode with an optional destination
// temporary and operands (§3.4). Phi instructions use Incoming instead
// of Operands, since their arity tracks predecessor count.
type Instruction struct {
	Op       Opcode
	Dest     *Operand // nil when the instruction produces no value
	Operands []Operand
	Incoming []PhiOperand // only populated when Op == OpPhi

	// Removed marks an instruction cleared in place by a pass
	// (constant folding, SSA promotion of stre/load, dead-call
	// elimination); §4.10 compacts Removed instructions out of the
	// block's list at the end of the pipeline.
	Removed bool
}

func (i *Instruction) IsTerminator() bool { return !i.Removed && i.Op.IsTerminator() }

// Block carries a label, an optional φ-instruction list, an
// instruction list, and successor/predecessor label sets (§3.4).
type Block struct {
	Label  string
	Phis   []*Instruction
	Instrs []*Instruction
	Succ   []string
	Pred   []string
}

func NewBlock(label string) *Block {
	return &Block{Label: label}
}

func (b *Block) Emit(instr *Instruction) { b.Instrs = append(b.Instrs, instr) }

// Terminator returns the block's terminating instruction, or nil if
// the block has not yet been terminated (only valid mid-construction;
// §3.4's invariant requires exactly one by the time lowering finishes).
func (b *Block) Terminator() *Instruction {
	for i := len(b.Instrs) - 1; i >= 0; i-- {
		if !b.Instrs[i].Removed {
			if b.Instrs[i].Op.IsTerminator() {
				return b.Instrs[i]
			}
			return nil
		}
	}
	return nil
}

// Function records a function's locals, blocks, and per-function
// counters (§3.4, §3.5).
type Function struct {
	Name       string
	SymbolID   int
	Generation int // bumped on redefinition; blocks replaced in place (§3.5)

	ParamLocals []int // local indices of the function's parameters, in order

	Blocks []*Block

	LocalTypes []*types.Type // indexed by local index
	TmpTypes   []*types.Type // indexed by tmp index

	ReturnType         *types.Type
	ReturnsOwnedString bool // resolved open question, §9: part of the signature, not a side-band flag

	NextTmp   int
	NextLabel int

	// LabelIndex maps a block's label to its index in Blocks; built by
	// the CFG pass (§4.5) and used by later passes for O(1) lookup.
	LabelIndex map[string]int
}

func NewFunction(name string, symbolID int, returnType *types.Type) *Function {
	return &Function{
		Name:       name,
		SymbolID:   symbolID,
		ReturnType: returnType,
	}
}

func (f *Function) NewLocal(t *types.Type) int {
	idx := len(f.LocalTypes)
	f.LocalTypes = append(f.LocalTypes, t)
	return idx
}

func (f *Function) NewTemp(t *types.Type) int {
	idx := f.NextTmp
	f.NextTmp++
	f.TmpTypes = append(f.TmpTypes, t)
	return idx
}

func (f *Function) TempType(idx int) *types.Type {
	if idx < 0 || idx >= len(f.TmpTypes) {
		return nil
	}
	return f.TmpTypes[idx]
}

func (f *Function) NewLabel(prefix string) string {
	label := fmt.Sprintf("%s.%d", prefix, f.NextLabel)
	f.NextLabel++
	return label
}

func (f *Function) AppendBlock(b *Block) int {
	idx := len(f.Blocks)
	f.Blocks = append(f.Blocks, b)
	return idx
}

func (f *Function) BlockByLabel(label string) *Block {
	if f.LabelIndex != nil {
		if idx, ok := f.LabelIndex[label]; ok {
			return f.Blocks[idx]
		}
	}
	for _, b := range f.Blocks {
		if b.Label == label {
			return b
		}
	}
	return nil
}

// Module owns every function, external declaration, and shared table
// for one translation unit (§3.4).
type Module struct {
	Types *types.Table

	Functions []*Function
	// SymbolToFuncIndex maps a function symbol id to its index in
	// Functions, supporting in-place redefinition (§3.5).
	SymbolToFuncIndex map[int]int

	ExternalFunctions     []ExternalFunctionRef
	SymbolToExternalIndex map[int]int

	SlotTypes  []*types.Type
	SlotInit   []*Operand // nil when a slot has no trivial constant initializer
	SlotSymbol map[int]int // symbol id -> slot index

	StringPool []string // interned string-literal pool; index is the literal id

	ModuleConstructor int // function index, or -1
	ModuleDestructor  int // function index, or -1

	// BuildID discriminates one compile of this source from another
	// (stamped by the driver via uuid.New(), not by this package, so
	// ir stays free of a uuid dependency); echoed in diagnostics and
	// used as the compiled-module cache key's discriminator.
	BuildID string
}

// ExternalFunctionRef is the lowering-facing view of a registered
// external function (§6.4); internal/module constructs these from its
// richer ExternalFunction records.
type ExternalFunctionRef struct {
	SymbolID                int
	SourceName               string
	MangledName              string
	ParamTypes               []*types.Type
	ReturnType                *types.Type
	RequiresMaterialization   bool
}

func NewModule(t *types.Table) *Module {
	return &Module{
		Types:                 t,
		SymbolToFuncIndex:     make(map[int]int),
		SymbolToExternalIndex: make(map[int]int),
		SlotSymbol:            make(map[int]int),
		ModuleConstructor:     -1,
		ModuleDestructor:      -1,
	}
}

// AddFunction creates a function if symbolID has never been seen, or
// returns the existing one (caller then bumps Generation and replaces
// its blocks) implementing the redefinition lifecycle of §3.5.
func (m *Module) AddFunction(name string, symbolID int, returnType *types.Type) *Function {
	if idx, ok := m.SymbolToFuncIndex[symbolID]; ok {
		return m.Functions[idx]
	}
	fn := NewFunction(name, symbolID, returnType)
	idx := len(m.Functions)
	m.Functions = append(m.Functions, fn)
	m.SymbolToFuncIndex[symbolID] = idx
	return fn
}

// RedefineFunction bumps the generation counter and clears the
// function's blocks/locals/temps in place so existing references to
// its symbol id remain valid across recompilation (§3.5).
func (m *Module) RedefineFunction(symbolID int) *Function {
	idx, ok := m.SymbolToFuncIndex[symbolID]
	if !ok {
		return nil
	}
	fn := m.Functions[idx]
	fn.Generation++
	fn.Blocks = nil
	fn.LocalTypes = nil
	fn.TmpTypes = nil
	fn.NextTmp = 0
	fn.NextLabel = 0
	fn.ParamLocals = nil
	fn.LabelIndex = nil
	return fn
}

func (m *Module) AddExternal(ref ExternalFunctionRef) int {
	idx := len(m.ExternalFunctions)
	m.ExternalFunctions = append(m.ExternalFunctions, ref)
	m.SymbolToExternalIndex[ref.SymbolID] = idx
	return idx
}

// InternString adds (or reuses) a string literal in the module's pool
// and returns its literal id, used by str_from_lit (§4.4.3).
func (m *Module) InternString(s string) int {
	for i, existing := range m.StringPool {
		if existing == s {
			return i
		}
	}
	m.StringPool = append(m.StringPool, s)
	return len(m.StringPool) - 1
}

// AddSlot allocates a module-global slot for symbolID and returns its index.
func (m *Module) AddSlot(symbolID int, t *types.Type) int {
	idx := len(m.SlotTypes)
	m.SlotTypes = append(m.SlotTypes, t)
	m.SlotInit = append(m.SlotInit, nil)
	m.SlotSymbol[symbolID] = idx
	return idx
}
