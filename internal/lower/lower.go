// Package lower implements the AST-to-IR lowerer (§4.4): it walks the
// fully analyzed tree (post-transform, post-annotation) and emits the
// three-address IR from internal/ir. The result is not yet SSA — it
// stores to and loads from ordinary locals, the same way the teacher's
// bytecode compiler walks its own AST once names and types are known;
// internal/passes promotes it to SSA afterward (§4.6).
package lower

import (
	"math"

	"kumirc/internal/ast"
	"kumirc/internal/diag"
	"kumirc/internal/ir"
	"kumirc/internal/module"
	"kumirc/internal/symbols"
	"kumirc/internal/types"
)

type loopLabels struct {
	continueLabel string
	breakLabel    string
}

// lowerer carries the state threaded through one function's lowering:
// the block currently being appended to, the symbol -> local map, and
// the enclosing loop stack for break/continue (§4.4.1).
type lowerer struct {
	res *symbols.Resolver
	t   *types.Table
	mod *ir.Module
	fn  *ir.Function

	cur *ir.Block

	localBySymbol map[int]int
	loops         []loopLabels

	// refParams marks the scalar out/inout parameters of the function
	// currently being lowered; their local holds a pointer to the
	// caller's storage rather than a value (§4.4.4).
	refParams map[int]bool

	err *diag.Diagnostic
}

// Lower walks root (a Block of top-level FuncDecls, VarDecls, and
// initializer statements) and produces an ir.Module. Top-level
// VarDecls become module slots; any other top-level statement is
// collected into the synthesized module constructor (§4.4.5).
func Lower(root ast.Node, res *symbols.Resolver, t *types.Table, reg *module.Registry) (*ir.Module, *diag.Diagnostic) {
	mod := ir.NewModule(t)

	// Only bind modules the resolver actually imported (§6.4): a
	// program may register several domain modules via extra but only
	// `use` a subset of them, and an unimported module's functions
	// were never injected into scope for BindExternals to find.
	all := module.NewRegistry()
	all.Register(module.Runtime(t))
	if reg != nil {
		for _, m := range reg.Modules() {
			if res.IsImported(m.Name()) {
				all.Register(m)
			}
		}
	}
	if err := module.BindExternals(all, res, mod); err != nil {
		return nil, diag.New(diag.NotImplemented, diag.Location{}, "%s", err.Error())
	}

	top, ok := root.(*ast.Block)
	if !ok {
		return nil, diag.New(diag.RootExprMustBeBlock, ast.LocationOf(root), "the lowerer's root must be a Block")
	}

	var ctorStmts []ast.Node
	for _, stmt := range top.Stmts {
		switch s := stmt.(type) {
		case *ast.FuncDecl:
			if err := lowerFuncDecl(s, res, t, mod); err != nil {
				return nil, err
			}
		case *ast.VarDecl:
			mod.AddSlot(s.Symbol, s.DeclaredType)
			ctorStmts = append(ctorStmts, stmt)
		case *ast.Use:
			// handled at analysis time (ImportModule); nothing to lower.
		default:
			ctorStmts = append(ctorStmts, stmt)
		}
	}

	ctor, dtor, err := lowerModuleInitializers(ctorStmts, res, t, mod)
	if err != nil {
		return nil, err
	}
	mod.ModuleConstructor = ctor
	mod.ModuleDestructor = dtor

	return mod, nil
}

func lowerFuncDecl(fd *ast.FuncDecl, res *symbols.Resolver, t *types.Table, mod *ir.Module) *diag.Diagnostic {
	fn := mod.AddFunction(fd.Name, fd.Symbol, fd.ReturnType)
	if fn.Generation > 0 || len(fn.Blocks) > 0 {
		fn = mod.RedefineFunction(fd.Symbol)
	}

	lw := &lowerer{res: res, t: t, mod: mod, fn: fn, localBySymbol: make(map[int]int), refParams: make(map[int]bool)}

	for _, p := range fd.Params {
		local := fn.NewLocal(p.Type)
		lw.localBySymbol[p.Symbol] = local
		fn.ParamLocals = append(fn.ParamLocals, local)
		if p.Mode != ast.ParamIn && p.Type.Shape() == types.Primitive {
			lw.refParams[p.Symbol] = true
		}
	}

	entry := ir.NewBlock(fn.NewLabel("entry"))
	fn.AppendBlock(entry)
	lw.cur = entry

	bodyScope := fd.ScopeID
	if b, ok := fd.Body.(*ast.Block); ok {
		bodyScope = b.ScopeID
	}
	if fd.Body != nil {
		lw.lowerStmt(fd.Body, bodyScope)
	}
	if lw.err != nil {
		return lw.err
	}

	if lw.cur.Terminator() == nil {
		lw.finishFunction(fd, res)
	}
	return nil
}

// finishFunction releases owned by-value String parameters and emits
// the implicit return: this language has no explicit return statement,
// so the only exit point is falling off the end of the body, and the
// result (when the function is non-Void) comes from a local bound to
// the same name as the function itself (§9: resolved open question,
// the teacher's Pascal-style "result variable" convention).
func (lw *lowerer) finishFunction(fd *ast.FuncDecl, res *symbols.Resolver) {
	for _, p := range fd.Params {
		if p.Mode == ast.ParamIn && p.Type.IsPrimitive(types.StringK) {
			idx := lw.localFor(p.Symbol)
			lw.releaseIfOwned(ir.Local(idx), p.Type)
		}
	}

	var result *ir.Operand
	if !fd.ReturnType.IsPrimitive(types.Void) {
		if sym, ok := res.Lookup(fd.Name, fd.ScopeID); ok {
			idx := lw.localFor(sym.ID)
			v := lw.load(ir.Local(idx), fd.ReturnType)
			result = &v
		}
	}
	lw.emitReturn(fd.Location(), result)
}

// lowerModuleInitializers builds a constructor function from the
// top-level non-declaration statements and a destructor that releases
// every owned-string/array module slot (§4.4.5). Either may end up
// empty; both are still emitted so backends have a stable entry point.
func lowerModuleInitializers(stmts []ast.Node, res *symbols.Resolver, t *types.Table, mod *ir.Module) (ctorIdx, dtorIdx int, _ *diag.Diagnostic) {
	ctorFn := ir.NewFunction("$$module_init", -1, t.Void())
	ctor := &lowerer{res: res, t: t, mod: mod, fn: ctorFn, localBySymbol: make(map[int]int)}
	entry := ir.NewBlock(ctorFn.NewLabel("entry"))
	ctorFn.AppendBlock(entry)
	ctor.cur = entry
	for _, s := range stmts {
		ctor.lowerStmt(s, res.RootScopeID())
		if ctor.err != nil {
			return 0, 0, ctor.err
		}
	}
	if ctor.cur.Terminator() == nil {
		ctor.emitReturn(diag.Location{}, nil)
	}
	mod.Functions = append(mod.Functions, ctorFn)
	ctorIdx = len(mod.Functions) - 1

	dtorFn := ir.NewFunction("$$module_fini", -1, t.Void())
	dtor := &lowerer{res: res, t: t, mod: mod, fn: dtorFn, localBySymbol: make(map[int]int)}
	dentry := ir.NewBlock(dtorFn.NewLabel("entry"))
	dtorFn.AppendBlock(dentry)
	dtor.cur = dentry
	for idx, ty := range mod.SlotTypes {
		dtor.releaseIfOwned(ir.Slot(idx), ty)
	}
	dtor.emitReturn(diag.Location{}, nil)
	mod.Functions = append(mod.Functions, dtorFn)
	dtorIdx = len(mod.Functions) - 1

	return ctorIdx, dtorIdx, nil
}

func (lw *lowerer) fail(kind diag.Kind, loc diag.Location, format string, args ...interface{}) {
	if lw.err == nil {
		lw.err = diag.New(kind, loc, format, args...)
	}
}

func (lw *lowerer) emitReturn(loc diag.Location, value *ir.Operand) {
	ret := &ir.Instruction{Op: ir.OpRet}
	if value != nil {
		ret.Operands = []ir.Operand{*value}
	}
	lw.cur.Emit(ret)
}

func (lw *lowerer) emitJmp(label string) {
	lw.cur.Emit(&ir.Instruction{Op: ir.OpJmp, Operands: []ir.Operand{ir.Lbl(label)}})
	lw.cur.Succ = append(lw.cur.Succ, label)
}

func (lw *lowerer) emitCmp(cond ir.Operand, trueLabel, falseLabel string) {
	lw.cur.Emit(&ir.Instruction{Op: ir.OpCmp, Operands: []ir.Operand{cond, ir.Lbl(trueLabel), ir.Lbl(falseLabel)}})
	lw.cur.Succ = append(lw.cur.Succ, trueLabel, falseLabel)
}

// startBlock appends a fresh block and makes it current.
func (lw *lowerer) startBlock(label string) *ir.Block {
	b := ir.NewBlock(label)
	lw.fn.AppendBlock(b)
	lw.cur = b
	return b
}

// localFor returns (allocating if necessary) the IR local backing a
// symbol, using its resolved declared type.
func (lw *lowerer) localFor(symbolID int) int {
	if idx, ok := lw.localBySymbol[symbolID]; ok {
		return idx
	}
	sym := lw.res.Symbol(symbolID)
	idx := lw.fn.NewLocal(sym.Type)
	lw.localBySymbol[symbolID] = idx
	return idx
}

// operandFor resolves a symbol to the storage location holding it: a
// module slot for a top-level VarDecl, a function local otherwise. The
// module constructor/destructor use the same statement-lowering code
// as ordinary functions, so this indirection is what lets a single
// lowerVarDecl/lowerAssignStmt implementation serve both (§4.4.5).
func (lw *lowerer) operandFor(symbolID int) ir.Operand {
	if idx, ok := lw.mod.SlotSymbol[symbolID]; ok {
		return ir.Slot(idx)
	}
	return ir.Local(lw.localFor(symbolID))
}

func floatBits(v float64) int64 { return int64(math.Float64bits(v)) }
func bitsToFloat(v int64) float64 { return math.Float64frombits(uint64(v)) }
