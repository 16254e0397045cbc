package lower

import (
	"strings"

	"kumirc/internal/ast"
	"kumirc/internal/diag"
	"kumirc/internal/ir"
	"kumirc/internal/types"
)

// lowerStmt lowers one statement in scopeID, the scope of the nearest
// enclosing Block (used to look up hidden array-bound variables by
// name, §4.4.3). It is a no-op once the current block already carries
// a terminator, so dead code after break/continue inside the same
// statement list is simply skipped rather than producing a malformed
// multi-terminator block.
func (lw *lowerer) lowerStmt(n ast.Node, scopeID int) {
	if lw.err != nil || lw.cur.Terminator() != nil {
		return
	}

	switch node := n.(type) {
	case *ast.Block:
		lw.lowerBlockStmt(node)

	case *ast.VarDecl:
		lw.lowerVarDecl(node, scopeID)

	case *ast.VarsBlock:
		for _, d := range node.Decls {
			lw.lowerStmt(d, scopeID)
		}

	case *ast.Assign:
		lw.lowerAssignStmt(node, scopeID)

	case *ast.ArrayElemAssign:
		lw.lowerArrayElemAssignStmt(node, scopeID)

	case *ast.If:
		lw.lowerIf(node, scopeID)

	case *ast.Loop:
		lw.lowerLoop(node, scopeID)

	case *ast.Break:
		if len(lw.loops) == 0 {
			lw.fail(diag.BreakNotInLoop, node.Location(), "break outside of a loop")
			return
		}
		lw.emitJmp(lw.loops[len(lw.loops)-1].breakLabel)

	case *ast.Continue:
		if len(lw.loops) == 0 {
			lw.fail(diag.ContinueNotInLoop, node.Location(), "continue outside of a loop")
			return
		}
		lw.emitJmp(lw.loops[len(lw.loops)-1].continueLabel)

	case *ast.Call:
		lw.lowerCall(node, scopeID)

	case *ast.FuncDecl, *ast.Use:
		// nested FuncDecls are rejected by the resolver (§4.1); Use has
		// nothing left to do once modules are imported.

	default:
		lw.lowerExpr(n, scopeID)
	}
}

func (lw *lowerer) lowerBlockStmt(b *ast.Block) {
	scopeID := b.ScopeID
	for _, s := range b.Stmts {
		lw.lowerStmt(s, scopeID)
		if lw.err != nil || lw.cur.Terminator() != nil {
			break
		}
	}
	if b.SkipDestructors || lw.cur.Terminator() != nil {
		return
	}
	for _, s := range b.Stmts {
		vd, ok := s.(*ast.VarDecl)
		if !ok || strings.HasPrefix(vd.Name, "$$") {
			continue
		}
		lw.releaseIfOwned(lw.operandFor(vd.Symbol), vd.DeclaredType)
	}
}

func (lw *lowerer) lowerVarDecl(vd *ast.VarDecl, scopeID int) {
	loc := lw.operandFor(vd.Symbol)
	ty := vd.DeclaredType

	if ty.Shape() == types.Array {
		size := lw.arrayElementCount(vd.Name, ty.Arity(), scopeID)
		ptr := lw.emitCall(vd.Location(), "array_create", []ir.Operand{size}, lw.t.PointerTo(lw.t.Void()))
		lw.cur.Emit(&ir.Instruction{Op: ir.OpStore, Operands: []ir.Operand{loc, *ptr}})
		return
	}

	// Scalars start out zeroed; String locals start out a null
	// reference release() can safely no-op against.
	lw.cur.Emit(&ir.Instruction{Op: ir.OpStore, Operands: []ir.Operand{loc, ir.Imm(0, ty)}})
}

// lowerAssignStmt lowers `name := value`. A scalar out/inout parameter
// (§4.4.4) is assigned through its pointer rather than its own local,
// since that local holds the caller's address, not the value itself.
func (lw *lowerer) lowerAssignStmt(n *ast.Assign, scopeID int) ir.Operand {
	sym := lw.res.Symbol(n.Symbol)
	value := lw.lowerExpr(n.Value, scopeID)

	if lw.refParams[n.Symbol] {
		ptr := lw.load(lw.operandFor(n.Symbol), lw.t.PointerTo(lw.t.Void()))
		if sym.Type.IsPrimitive(types.StringK) {
			lw.retain(value)
			old := lw.loadDeref(ptr, ir.Imm(0, lw.t.Int()), sym.Type)
			lw.release(old)
		}
		lw.cur.Emit(&ir.Instruction{Op: ir.OpStoreDeref, Operands: []ir.Operand{ptr, ir.Imm(0, lw.t.Int()), value}})
		return value
	}

	loc := lw.operandFor(n.Symbol)
	if sym.Type.IsPrimitive(types.StringK) {
		lw.retain(value)
		old := lw.load(loc, sym.Type)
		lw.release(old)
	}
	lw.cur.Emit(&ir.Instruction{Op: ir.OpStore, Operands: []ir.Operand{loc, value}})
	return value
}

func (lw *lowerer) lowerArrayElemAssignStmt(n *ast.ArrayElemAssign, scopeID int) ir.Operand {
	ptr, offset, elemType := lw.arrayAddress(n.Name, n.Symbol, n.Indices, scopeID)
	value := lw.lowerExpr(n.Value, scopeID)

	if elemType.IsPrimitive(types.StringK) {
		lw.retain(value)
		old := lw.loadDeref(ptr, offset, elemType)
		lw.release(old)
	}
	lw.cur.Emit(&ir.Instruction{Op: ir.OpStoreDeref, Operands: []ir.Operand{ptr, offset, value}})
	return value
}

func (lw *lowerer) lowerIf(n *ast.If, scopeID int) {
	cond := lw.lowerExpr(n.Cond, scopeID)

	thenLabel := lw.fn.NewLabel("if.then")
	elseLabel := lw.fn.NewLabel("if.else")
	endLabel := lw.fn.NewLabel("if.end")
	lw.emitCmp(cond, thenLabel, elseLabel)

	lw.startBlock(thenLabel)
	lw.lowerStmt(n.Then, scopeID)
	if lw.cur.Terminator() == nil {
		lw.emitJmp(endLabel)
	}

	lw.startBlock(elseLabel)
	if n.Else != nil {
		lw.lowerStmt(n.Else, scopeID)
	}
	if lw.cur.Terminator() == nil {
		lw.emitJmp(endLabel)
	}

	lw.startBlock(endLabel)
}

// lowerLoop unifies while / repeat-until / for per the Loop node's four
// optional slots (§4.4.1). PreCond-driven loops (while, for) test
// before the body; a PostCond (repeat-until) tests after.
func (lw *lowerer) lowerLoop(n *ast.Loop, scopeID int) {
	if n.PreBody != nil {
		lw.lowerStmt(n.PreBody, scopeID)
		if lw.cur.Terminator() != nil {
			return
		}
	}

	breakLabel := lw.fn.NewLabel("loop.end")

	switch {
	case n.PreCond != nil:
		headerLabel := lw.fn.NewLabel("loop.header")
		bodyLabel := lw.fn.NewLabel("loop.body")
		stepLabel := headerLabel
		if n.PostBody != nil {
			stepLabel = lw.fn.NewLabel("loop.step")
		}

		lw.emitJmp(headerLabel)
		lw.startBlock(headerLabel)
		cond := lw.lowerExpr(n.PreCond, scopeID)
		lw.emitCmp(cond, bodyLabel, breakLabel)

		lw.startBlock(bodyLabel)
		lw.loops = append(lw.loops, loopLabels{continueLabel: stepLabel, breakLabel: breakLabel})
		lw.lowerStmt(n.Body, scopeID)
		lw.loops = lw.loops[:len(lw.loops)-1]
		if lw.cur.Terminator() == nil {
			lw.emitJmp(stepLabel)
		}

		if n.PostBody != nil {
			lw.startBlock(stepLabel)
			lw.lowerStmt(n.PostBody, scopeID)
			if lw.cur.Terminator() == nil {
				lw.emitJmp(headerLabel)
			}
		}

	case n.PostCond != nil:
		bodyLabel := lw.fn.NewLabel("loop.body")
		testLabel := lw.fn.NewLabel("loop.test")

		lw.emitJmp(bodyLabel)
		lw.startBlock(bodyLabel)
		lw.loops = append(lw.loops, loopLabels{continueLabel: testLabel, breakLabel: breakLabel})
		lw.lowerStmt(n.Body, scopeID)
		lw.loops = lw.loops[:len(lw.loops)-1]
		if lw.cur.Terminator() == nil {
			lw.emitJmp(testLabel)
		}

		lw.startBlock(testLabel)
		cond := lw.lowerExpr(n.PostCond, scopeID)
		// repeat ... until cond: loop again while cond is still false.
		lw.emitCmp(cond, breakLabel, bodyLabel)

	default:
		lw.fail(diag.NotImplemented, n.Location(), "loop has neither a pre- nor a post-condition")
		return
	}

	lw.startBlock(breakLabel)
}
