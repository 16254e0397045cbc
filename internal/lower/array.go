package lower

import (
	"kumirc/internal/ast"
	"kumirc/internal/diag"
	"kumirc/internal/ir"
	"kumirc/internal/types"
)

// arrayAddressFromNode resolves an Index/MultiIndex's collection
// expression to the identifier it must be (array lvalues are always a
// plain name, §4.2) before computing its element address.
func (lw *lowerer) arrayAddressFromNode(coll ast.Node, indices []ast.Node, scopeID int) (ir.Operand, ir.Operand, *types.Type) {
	id, ok := coll.(*ast.Identifier)
	if !ok {
		lw.fail(diag.CannotLowerArrayIndices, ast.LocationOf(coll), "an array reference must be a plain variable name")
		return ir.Imm(0, lw.t.Int()), ir.Imm(0, lw.t.Int()), lw.t.Int()
	}
	return lw.arrayAddress(id.Name, id.Symbol, indices, scopeID)
}

// arrayAddress computes the (pointer, element-offset) pair addressing
// one element of a declared array (§4.4.3): offset = Σ (index_i -
// lbound_i) * stride_i, where stride_i is dimension i+1's mulacc (the
// product of every dimension size after i), or 1 for the last
// dimension. The hidden bound variables are found by name in scopeID,
// the scope the transformer declared them in alongside the array
// itself (§4.2, HiddenArrayVarName).
func (lw *lowerer) arrayAddress(name string, symbolID int, indices []ast.Node, scopeID int) (ir.Operand, ir.Operand, *types.Type) {
	sym := lw.res.Symbol(symbolID)
	arrType := sym.Type
	elemType := arrType.Elem()
	arity := arrType.Arity()

	ptr := lw.load(lw.operandFor(symbolID), arrType)

	var offset ir.Operand
	for i := 0; i < arity && i < len(indices); i++ {
		idxVal := lw.lowerExpr(indices[i], scopeID)
		lbound := lw.hiddenLoad(name, "lbound", i, scopeID)

		sub := lw.newTempOp(lw.t.Int())
		lw.cur.Emit(&ir.Instruction{Op: ir.OpSub, Dest: &sub, Operands: []ir.Operand{idxVal, lbound}})

		term := sub
		if i+1 < arity {
			stride := lw.hiddenLoad(name, "mulacc", i+1, scopeID)
			mul := lw.newTempOp(lw.t.Int())
			lw.cur.Emit(&ir.Instruction{Op: ir.OpMul, Dest: &mul, Operands: []ir.Operand{sub, stride}})
			term = mul
		}

		if i == 0 {
			offset = term
			continue
		}
		sum := lw.newTempOp(lw.t.Int())
		lw.cur.Emit(&ir.Instruction{Op: ir.OpAdd, Dest: &sum, Operands: []ir.Operand{offset, term}})
		offset = sum
	}

	return ptr, offset, elemType
}

// arrayElementCount loads dimension 0's mulacc, which by construction
// (§4.2's boundsPrelude) already equals the product of every
// dimension's size, i.e. the total element count array_create needs.
func (lw *lowerer) arrayElementCount(name string, arity int, scopeID int) ir.Operand {
	if arity == 0 {
		return ir.Imm(0, lw.t.Int())
	}
	return lw.hiddenLoad(name, "mulacc", 0, scopeID)
}

func (lw *lowerer) hiddenLoad(name, kind string, dim int, scopeID int) ir.Operand {
	varName := ast.HiddenArrayVarName(name, kind, dim)
	sym, ok := lw.res.Lookup(varName, scopeID)
	if !ok {
		lw.fail(diag.NotImplemented, diag.Location{}, "hidden array variable %q was not synthesized before lowering", varName)
		return ir.Imm(0, lw.t.Int())
	}
	return lw.load(lw.operandFor(sym.ID), lw.t.Int())
}
