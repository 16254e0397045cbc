package lower

import (
	"testing"

	"kumirc/internal/ast"
	"kumirc/internal/diag"
	"kumirc/internal/ir"
	"kumirc/internal/pipeline"
	"kumirc/internal/types"
)

// analyzed runs root through the same fixpoint the lowerer expects its
// input to have already passed (resolve/annotate/transform), mirroring
// how pipeline_test.go exercises earlier stages.
func analyzed(t *testing.T, root ast.Node, tab *types.Table) pipeline.Result {
	t.Helper()
	res, err := pipeline.Run(root, tab, nil)
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	return res
}

func countOp(fn *ir.Function, op ir.Opcode) int {
	n := 0
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if instr.Op == op {
				n++
			}
		}
	}
	return n
}

func findExternalCall(fn *ir.Function, mangled string) bool {
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if instr.Op == ir.OpCall && len(instr.Operands) == 1 && instr.Operands[0].Label == mangled {
				return true
			}
		}
	}
	return false
}

func TestLowerArithmeticReturnsResultVariable(t *testing.T) {
	tab := types.NewTable()
	loc := diag.Location{}

	body := ast.NewBlock(loc, []ast.Node{
		ast.NewAssign(loc, "f", ast.NewBinary(loc, "+", ast.NewNumberLitInt(loc, 1), ast.NewNumberLitInt(loc, 2))),
	}, false)
	fn := ast.NewFuncDecl(loc, "f", nil, body, tab.Int())
	root := ast.NewBlock(loc, []ast.Node{fn}, true)

	out := analyzed(t, root, tab)

	mod, derr := Lower(out.Root, out.Resolver, tab, nil)
	if derr != nil {
		t.Fatalf("lower failed: %v", derr)
	}

	idx, ok := mod.SymbolToFuncIndex[fn.Symbol]
	if !ok {
		t.Fatal("expected f to be registered as a function")
	}
	lowered := mod.Functions[idx]

	entry := lowered.Blocks[0]
	ret := entry.Terminator()
	if ret == nil || ret.Op != ir.OpRet {
		t.Fatalf("expected the entry block to end in a ret, got %+v", ret)
	}
	if len(ret.Operands) != 1 {
		t.Fatalf("expected the ret to carry the result variable's value, got %d operands", len(ret.Operands))
	}
	if countOp(lowered, ir.OpAdd) != 1 {
		t.Fatalf("expected exactly one add, got %d", countOp(lowered, ir.OpAdd))
	}
}

func TestLowerIfBuildsThenElseEndDiamond(t *testing.T) {
	tab := types.NewTable()
	loc := diag.Location{}

	body := ast.NewBlock(loc, []ast.Node{
		ast.NewVarDecl(loc, "x", tab.Int()),
		ast.NewIf(loc,
			ast.NewBinary(loc, ">", ast.NewNumberLitInt(loc, 1), ast.NewNumberLitInt(loc, 0)),
			ast.NewBlock(loc, []ast.Node{ast.NewAssign(loc, "x", ast.NewNumberLitInt(loc, 1))}, false),
			ast.NewBlock(loc, []ast.Node{ast.NewAssign(loc, "x", ast.NewNumberLitInt(loc, 2))}, false),
		),
	}, false)
	fn := ast.NewFuncDecl(loc, "main", nil, body, tab.Void())
	root := ast.NewBlock(loc, []ast.Node{fn}, true)

	out := analyzed(t, root, tab)
	mod, derr := Lower(out.Root, out.Resolver, tab, nil)
	if derr != nil {
		t.Fatalf("lower failed: %v", derr)
	}

	idx := mod.SymbolToFuncIndex[fn.Symbol]
	lowered := mod.Functions[idx]

	// entry (cmp) + then + else + end = 4 blocks.
	if len(lowered.Blocks) != 4 {
		t.Fatalf("expected 4 blocks for an if/else, got %d", len(lowered.Blocks))
	}
	entryTerm := lowered.Blocks[0].Terminator()
	if entryTerm == nil || entryTerm.Op != ir.OpCmp {
		t.Fatalf("expected entry to end in a cmp, got %+v", entryTerm)
	}
	if len(entryTerm.Operands) != 3 {
		t.Fatalf("expected cmp to carry cond+true+false labels, got %d operands", len(entryTerm.Operands))
	}
}

func TestLowerWhileLoopBreak(t *testing.T) {
	tab := types.NewTable()
	loc := diag.Location{}

	body := ast.NewBlock(loc, []ast.Node{
		ast.NewVarDecl(loc, "x", tab.Int()),
		ast.NewLoop(loc,
			ast.NewBinary(loc, "<", ast.NewIdentifier(loc, "x"), ast.NewNumberLitInt(loc, 10)),
			nil,
			ast.NewBlock(loc, []ast.Node{
				ast.NewIf(loc, ast.NewBinary(loc, "==", ast.NewIdentifier(loc, "x"), ast.NewNumberLitInt(loc, 5)),
					ast.NewBreak(loc), nil),
				ast.NewAssign(loc, "x", ast.NewBinary(loc, "+", ast.NewIdentifier(loc, "x"), ast.NewNumberLitInt(loc, 1))),
			}, false),
			nil, nil,
		),
	}, false)
	fn := ast.NewFuncDecl(loc, "main", nil, body, tab.Void())
	root := ast.NewBlock(loc, []ast.Node{fn}, true)

	out := analyzed(t, root, tab)
	mod, derr := Lower(out.Root, out.Resolver, tab, nil)
	if derr != nil {
		t.Fatalf("lower failed: %v", derr)
	}

	idx := mod.SymbolToFuncIndex[fn.Symbol]
	lowered := mod.Functions[idx]

	jmps := countOp(lowered, ir.OpJmp)
	if jmps < 2 {
		t.Fatalf("expected at least a loop-entry jmp and a break jmp, got %d", jmps)
	}
}

func TestLowerShortCircuitJoinsThroughLocal(t *testing.T) {
	tab := types.NewTable()
	loc := diag.Location{}

	body := ast.NewBlock(loc, []ast.Node{
		ast.NewVarDecl(loc, "ok", tab.Bool()),
		ast.NewAssign(loc, "ok", ast.NewBinary(loc, "&&",
			ast.NewBinary(loc, ">", ast.NewNumberLitInt(loc, 1), ast.NewNumberLitInt(loc, 0)),
			ast.NewBinary(loc, "<", ast.NewNumberLitInt(loc, 1), ast.NewNumberLitInt(loc, 2)),
		)),
	}, false)
	fn := ast.NewFuncDecl(loc, "main", nil, body, tab.Void())
	root := ast.NewBlock(loc, []ast.Node{fn}, true)

	out := analyzed(t, root, tab)
	mod, derr := Lower(out.Root, out.Resolver, tab, nil)
	if derr != nil {
		t.Fatalf("lower failed: %v", derr)
	}

	idx := mod.SymbolToFuncIndex[fn.Symbol]
	lowered := mod.Functions[idx]

	// Two locals for a top-level main with one declared var: one for
	// "ok" and one synthesized join local for the && diamond.
	if len(lowered.LocalTypes) < 2 {
		t.Fatalf("expected a synthesized join local in addition to ok, got %d locals", len(lowered.LocalTypes))
	}
	stores := countOp(lowered, ir.OpStore)
	if stores < 2 {
		t.Fatalf("expected at least two stores into the join local (one per branch), got %d", stores)
	}
}

func TestLowerStringAssignRetainsAndReleasesOldValue(t *testing.T) {
	tab := types.NewTable()
	loc := diag.Location{}

	body := ast.NewBlock(loc, []ast.Node{
		ast.NewVarDecl(loc, "s", tab.String()),
		ast.NewAssign(loc, "s", ast.NewStringLit(loc, []byte("hi"))),
	}, false)
	fn := ast.NewFuncDecl(loc, "main", nil, body, tab.Void())
	root := ast.NewBlock(loc, []ast.Node{fn}, true)

	out := analyzed(t, root, tab)
	mod, derr := Lower(out.Root, out.Resolver, tab, nil)
	if derr != nil {
		t.Fatalf("lower failed: %v", derr)
	}

	idx := mod.SymbolToFuncIndex[fn.Symbol]
	lowered := mod.Functions[idx]

	if !findExternalCall(lowered, "str_retain") {
		t.Fatal("expected an assignment of a String value to retain it")
	}
	if !findExternalCall(lowered, "str_release") {
		t.Fatal("expected the overwritten old String value to be released")
	}
}

func TestLowerOutParameterUsesPointerIndirection(t *testing.T) {
	tab := types.NewTable()
	loc := diag.Location{}

	setter := ast.NewFuncDecl(loc, "setIt",
		[]*ast.Param{{Name: "res", Type: tab.Int(), Mode: ast.ParamOut}},
		ast.NewBlock(loc, []ast.Node{
			ast.NewAssign(loc, "res", ast.NewNumberLitInt(loc, 7)),
		}, false),
		tab.Void())

	caller := ast.NewFuncDecl(loc, "main", nil,
		ast.NewBlock(loc, []ast.Node{
			ast.NewVarDecl(loc, "x", tab.Int()),
			ast.NewCall(loc, ast.NewIdentifier(loc, "setIt"), []ast.Node{ast.NewIdentifier(loc, "x")}),
		}, false),
		tab.Void())

	root := ast.NewBlock(loc, []ast.Node{setter, caller}, true)

	out := analyzed(t, root, tab)
	mod, derr := Lower(out.Root, out.Resolver, tab, nil)
	if derr != nil {
		t.Fatalf("lower failed: %v", derr)
	}

	setterIdx := mod.SymbolToFuncIndex[setter.Symbol]
	loweredSetter := mod.Functions[setterIdx]
	if countOp(loweredSetter, ir.OpStoreDeref) != 1 {
		t.Fatalf("expected setIt's assignment to res to go through a pointer store, got %d OpStoreDeref", countOp(loweredSetter, ir.OpStoreDeref))
	}

	callerIdx := mod.SymbolToFuncIndex[caller.Symbol]
	loweredCaller := mod.Functions[callerIdx]
	if countOp(loweredCaller, ir.OpLea) != 1 {
		t.Fatalf("expected main's call site to take x's address, got %d OpLea", countOp(loweredCaller, ir.OpLea))
	}
}

func TestLowerModuleSlotsGetConstructorAndDestructor(t *testing.T) {
	tab := types.NewTable()
	loc := diag.Location{}

	global := ast.NewVarDecl(loc, "g", tab.String())
	fn := ast.NewFuncDecl(loc, "main", nil, ast.NewBlock(loc, nil, false), tab.Void())
	root := ast.NewBlock(loc, []ast.Node{global, fn}, true)

	out := analyzed(t, root, tab)
	mod, derr := Lower(out.Root, out.Resolver, tab, nil)
	if derr != nil {
		t.Fatalf("lower failed: %v", derr)
	}

	if len(mod.SlotTypes) != 1 {
		t.Fatalf("expected one module slot, got %d", len(mod.SlotTypes))
	}
	ctor := mod.Functions[mod.ModuleConstructor]
	if len(ctor.Blocks) == 0 {
		t.Fatal("expected a non-empty module constructor")
	}
	dtor := mod.Functions[mod.ModuleDestructor]
	if !findExternalCall(dtor, "str_release") {
		t.Fatal("expected the destructor to release the owned String slot")
	}
}
