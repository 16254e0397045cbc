package lower

import (
	"kumirc/internal/ast"
	"kumirc/internal/diag"
	"kumirc/internal/ir"
	"kumirc/internal/symbols"
	"kumirc/internal/types"
)

// lowerExpr lowers n to the operand holding its value, emitting
// whatever instructions are needed into the current block.
func (lw *lowerer) lowerExpr(n ast.Node, scopeID int) ir.Operand {
	if lw.err != nil {
		return ir.Imm(0, lw.t.Int())
	}

	switch node := n.(type) {
	case *ast.NumberLit:
		if node.IsFloat {
			return ir.Imm(floatBits(node.FloatValue), lw.t.Float())
		}
		return ir.Imm(node.IntValue, lw.t.Int())

	case *ast.StringLit:
		lit := lw.mod.InternString(string(node.Value))
		ret := lw.emitCall(node.Location(), "str_from_lit", []ir.Operand{ir.Imm(int64(lit), lw.t.Int())}, lw.t.String())
		return *ret

	case *ast.Identifier:
		return lw.readSymbol(node.Symbol, node.Type())

	case *ast.Unary:
		operand := lw.lowerExpr(node.Operand, scopeID)
		if node.Operator == "-" {
			dest := lw.newTempOp(node.Type())
			lw.cur.Emit(&ir.Instruction{Op: ir.OpNeg, Dest: &dest, Operands: []ir.Operand{operand}})
			return dest
		}
		// "!" on Bool: x == false.
		dest := lw.newTempOp(lw.t.Bool())
		lw.cur.Emit(&ir.Instruction{Op: ir.OpEq, Dest: &dest, Operands: []ir.Operand{operand, ir.Imm(0, lw.t.Bool())}})
		return dest

	case *ast.Binary:
		return lw.lowerBinary(node, scopeID)

	case *ast.Cast:
		return lw.lowerCast(node, scopeID)

	case *ast.Assign:
		return lw.lowerAssignStmt(node, scopeID)

	case *ast.ArrayElemAssign:
		return lw.lowerArrayElemAssignStmt(node, scopeID)

	case *ast.Index:
		return lw.lowerIndexRead(node, scopeID)

	case *ast.MultiIndex:
		ptr, offset, elemType := lw.arrayAddressFromNode(node.Collection, node.Indices, scopeID)
		return lw.loadDeref(ptr, offset, elemType)

	case *ast.Call:
		result := lw.lowerCall(node, scopeID)
		if result == nil {
			return ir.Imm(0, lw.t.Void())
		}
		return *result

	default:
		lw.fail(diag.NotImplemented, ast.LocationOf(n), "lowering not implemented for %T", n)
		return ir.Imm(0, lw.t.Int())
	}
}

func (lw *lowerer) newTempOp(t *types.Type) ir.Operand {
	return ir.Temp(lw.fn.NewTemp(t))
}

func (lw *lowerer) load(src ir.Operand, t *types.Type) ir.Operand {
	dest := lw.newTempOp(t)
	lw.cur.Emit(&ir.Instruction{Op: ir.OpLoad, Dest: &dest, Operands: []ir.Operand{src}})
	return dest
}

func (lw *lowerer) loadDeref(ptr, offset ir.Operand, elemType *types.Type) ir.Operand {
	dest := lw.newTempOp(elemType)
	lw.cur.Emit(&ir.Instruction{Op: ir.OpLoadDeref, Dest: &dest, Operands: []ir.Operand{ptr, offset}})
	return dest
}

// readSymbol loads a variable's value, going through pointer
// indirection for scalar reference parameters (§4.4.4: out/inout
// parameters alias the caller's local rather than owning a copy).
func (lw *lowerer) readSymbol(symbolID int, t *types.Type) ir.Operand {
	loc := lw.operandFor(symbolID)
	if lw.refParams[symbolID] {
		ptr := lw.load(loc, lw.t.PointerTo(lw.t.Void()))
		return lw.loadDeref(ptr, ir.Imm(0, lw.t.Int()), t)
	}
	return lw.load(loc, t)
}

func (lw *lowerer) lowerBinary(n *ast.Binary, scopeID int) ir.Operand {
	if n.Operator == "&&" || n.Operator == "||" {
		return lw.lowerShortCircuit(n, scopeID)
	}

	left := lw.lowerExpr(n.Left, scopeID)
	right := lw.lowerExpr(n.Right, scopeID)
	op, ok := ir.BinaryArithOpcodeFor(n.Operator)
	if !ok {
		lw.fail(diag.NotImplemented, n.Location(), "no IR opcode for operator %q", n.Operator)
		return ir.Imm(0, lw.t.Int())
	}
	dest := lw.newTempOp(n.Type())
	lw.cur.Emit(&ir.Instruction{Op: op, Dest: &dest, Operands: []ir.Operand{left, right}})
	return dest
}

// lowerShortCircuit lowers && / || into a diamond that stores into a
// synthesized local (§4.4.2); the SSA construction pass later turns
// that local's single-definition-per-path store/load pair into a real
// φ, the same way it promotes any other local.
func (lw *lowerer) lowerShortCircuit(n *ast.Binary, scopeID int) ir.Operand {
	resultLocal := lw.fn.NewLocal(lw.t.Bool())

	left := lw.lowerExpr(n.Left, scopeID)

	shortLabel := lw.fn.NewLabel("sc.short")
	evalLabel := lw.fn.NewLabel("sc.eval")
	joinLabel := lw.fn.NewLabel("sc.join")

	if n.Operator == "&&" {
		lw.emitCmp(left, evalLabel, shortLabel)
	} else {
		lw.emitCmp(left, shortLabel, evalLabel)
	}

	lw.startBlock(shortLabel)
	shortValue := int64(0)
	if n.Operator == "||" {
		shortValue = 1
	}
	lw.cur.Emit(&ir.Instruction{Op: ir.OpStore, Operands: []ir.Operand{ir.Local(resultLocal), ir.Imm(shortValue, lw.t.Bool())}})
	lw.emitJmp(joinLabel)

	lw.startBlock(evalLabel)
	right := lw.lowerExpr(n.Right, scopeID)
	lw.cur.Emit(&ir.Instruction{Op: ir.OpStore, Operands: []ir.Operand{ir.Local(resultLocal), right}})
	lw.emitJmp(joinLabel)

	lw.startBlock(joinLabel)
	return lw.load(ir.Local(resultLocal), lw.t.Bool())
}

func (lw *lowerer) lowerCast(n *ast.Cast, scopeID int) ir.Operand {
	operand := lw.lowerExpr(n.Operand, scopeID)
	from := n.Operand.Type()
	to := n.Target

	var op ir.Opcode
	switch {
	case from.IsPrimitive(types.Int) && to.IsPrimitive(types.Float):
		op = ir.OpI2F
	case from.IsPrimitive(types.Float) && to.IsPrimitive(types.Int):
		op = ir.OpF2I
	case from.IsPrimitive(types.Int) && to.IsPrimitive(types.Bool):
		op = ir.OpI2B
	case from.IsPrimitive(types.Float) && to.IsPrimitive(types.Bool):
		op = ir.OpF2B
	default:
		op = ir.OpMov
	}
	dest := lw.newTempOp(to)
	lw.cur.Emit(&ir.Instruction{Op: op, Dest: &dest, Operands: []ir.Operand{operand}})
	return dest
}

func (lw *lowerer) lowerIndexRead(n *ast.Index, scopeID int) ir.Operand {
	ptr, offset, elemType := lw.arrayAddressFromNode(n.Collection, []ast.Node{n.Index}, scopeID)
	return lw.loadDeref(ptr, offset, elemType)
}

// lowerCall lowers a call's arguments and emits the arg/call sequence
// (§4.4.4). Ref (out/inout) scalar parameters receive the address of
// the caller's local rather than its value; a ref argument that is
// itself one of the current function's own ref parameters is passed
// through unchanged (it already holds a pointer).
func (lw *lowerer) lowerCall(n *ast.Call, scopeID int) *ir.Operand {
	callee := n.Callee.(*ast.Identifier)
	sym := lw.res.Symbol(callee.Symbol)

	// Only user-declared functions carry mode-stamped parameter types
	// (§4.1/annotate's presetDeclTypes); external functions' parameter
	// types are plain table primitives, always passed by value.
	_, isUserFunc := lw.mod.SymbolToFuncIndex[callee.Symbol]
	params := sym.Type.Params()

	args := make([]ir.Operand, len(n.Args))
	for i, argNode := range n.Args {
		param := params[i]
		if isUserFunc && param.Mutable() && param.Shape() == types.Primitive {
			id := argNode.(*ast.Identifier)
			args[i] = lw.refArgument(id.Symbol)
			continue
		}
		v := lw.lowerExpr(argNode, scopeID)
		if param.IsPrimitive(types.StringK) {
			lw.retain(v)
		}
		args[i] = v
	}

	mangled, retType := lw.calleeTarget(callee.Symbol, sym)
	return lw.emitCallRaw(n.Location(), mangled, args, retType)
}

func (lw *lowerer) refArgument(symbolID int) ir.Operand {
	loc := lw.operandFor(symbolID)
	if lw.refParams[symbolID] {
		return lw.load(loc, lw.t.PointerTo(lw.t.Void()))
	}
	dest := lw.newTempOp(lw.t.PointerTo(lw.t.Void()))
	lw.cur.Emit(&ir.Instruction{Op: ir.OpLea, Dest: &dest, Operands: []ir.Operand{loc}})
	return dest
}

func (lw *lowerer) calleeTarget(symbolID int, sym *symbols.Symbol) (string, *types.Type) {
	if idx, ok := lw.mod.SymbolToExternalIndex[symbolID]; ok {
		ref := lw.mod.ExternalFunctions[idx]
		return ref.MangledName, ref.ReturnType
	}
	if idx, ok := lw.mod.SymbolToFuncIndex[symbolID]; ok {
		fn := lw.mod.Functions[idx]
		return fn.Name, fn.ReturnType
	}
	return "", sym.Type.Result()
}

func (lw *lowerer) emitCall(loc diag.Location, externalName string, args []ir.Operand, retType *types.Type) *ir.Operand {
	sym, ok := lw.res.Lookup(externalName, lw.res.RootScopeID())
	if !ok {
		lw.fail(diag.NotImplemented, loc, "runtime function %q was never imported", externalName)
		return nil
	}
	idx, ok := lw.mod.SymbolToExternalIndex[sym.ID]
	if !ok {
		lw.fail(diag.NotImplemented, loc, "runtime function %q has no external binding", externalName)
		return nil
	}
	ref := lw.mod.ExternalFunctions[idx]
	return lw.emitCallRaw(loc, ref.MangledName, args, retType)
}

func (lw *lowerer) emitCallRaw(loc diag.Location, mangled string, args []ir.Operand, retType *types.Type) *ir.Operand {
	for _, a := range args {
		lw.cur.Emit(&ir.Instruction{Op: ir.OpArg, Operands: []ir.Operand{a}})
	}
	call := &ir.Instruction{Op: ir.OpCall, Operands: []ir.Operand{ir.Lbl(mangled)}}
	if retType == nil || retType.IsPrimitive(types.Void) {
		lw.cur.Emit(call)
		return nil
	}
	dest := lw.newTempOp(retType)
	call.Dest = &dest
	lw.cur.Emit(call)
	return &dest
}

func (lw *lowerer) retain(v ir.Operand) {
	lw.emitCall(diag.Location{}, "str_retain", []ir.Operand{v}, nil)
}

func (lw *lowerer) release(v ir.Operand) {
	lw.emitCall(diag.Location{}, "str_release", []ir.Operand{v}, nil)
}

// releaseIfOwned releases a local/slot's current value per its type's
// ownership contract (§4.4.3): strings are refcounted directly, string
// arrays are destroyed element-by-element, other arrays are freed
// outright, and everything else needs no cleanup.
func (lw *lowerer) releaseIfOwned(location ir.Operand, t *types.Type) {
	switch {
	case t.IsPrimitive(types.StringK):
		v := lw.load(location, t)
		lw.release(v)
	case t.Shape() == types.Array && t.Elem().IsPrimitive(types.StringK):
		v := lw.load(location, t)
		lw.emitCall(diag.Location{}, "array_str_destroy", []ir.Operand{v}, nil)
	case t.Shape() == types.Array:
		v := lw.load(location, t)
		lw.emitCall(diag.Location{}, "array_destroy", []ir.Operand{v}, nil)
	}
}
