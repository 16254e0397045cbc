package transform

import (
	"kumirc/internal/ast"
	"kumirc/internal/diag"
	"kumirc/internal/symbols"
	"kumirc/internal/types"
)

// PostResolve rewrites zero-argument references to parameterless
// functions into calls, and expands array declarations/parameters
// with bounds into their hidden bound/size/stride variables (§4.2).
// It runs after a resolve pass (it needs arity information) and
// introduces new declarations/assignments that themselves need a
// further resolve pass — the caller re-resolves and may call
// PostResolve again until it reports no change (bounded fixpoint).
func PostResolve(root ast.Node, res *symbols.Resolver, t *types.Table) (ast.Node, bool) {
	root, zeroArgChanged := zeroArgWalk(root, res, false)
	root, boundsChanged := expandArrayBounds(root, t)
	return root, zeroArgChanged || boundsChanged
}

func zeroArgWalk(n ast.Node, res *symbols.Resolver, isCallee bool) (ast.Node, bool) {
	if n == nil {
		return nil, false
	}
	changed := false
	switch node := n.(type) {
	case *ast.Call:
		var c bool
		node.Callee, c = zeroArgWalk(node.Callee, res, true)
		changed = changed || c
		for i := range node.Args {
			node.Args[i], c = zeroArgWalk(node.Args[i], res, false)
			changed = changed || c
		}
		return node, changed

	case *ast.Identifier:
		if isCallee || node.Symbol == ast.NoSymbol {
			return node, false
		}
		sym := res.Symbol(node.Symbol)
		arity, isFunc := symbolArity(sym)
		if isFunc && arity == 0 {
			return ast.NewCall(node.Location(), node, nil), true
		}
		return node, false

	default:
		for _, childPtr := range node.MutableChildren() {
			var c bool
			*childPtr, c = zeroArgWalk(*childPtr, res, false)
			changed = changed || c
		}
		return node, changed
	}
}

func symbolArity(sym *symbols.Symbol) (arity int, isFunction bool) {
	if fd, ok := sym.Node.(*ast.FuncDecl); ok {
		return len(fd.Params), true
	}
	if sym.External && sym.ExternalDesc != nil {
		return len(sym.ExternalDesc.ParamTypes), true
	}
	return 0, false
}

func expandArrayBounds(n ast.Node, t *types.Table) (ast.Node, bool) {
	if n == nil {
		return nil, false
	}
	changed := false
	switch node := n.(type) {
	case *ast.Block:
		newStmts := make([]ast.Node, 0, len(node.Stmts))
		for _, stmt := range node.Stmts {
			var c bool
			stmt, c = expandArrayBounds(stmt, t)
			changed = changed || c
			if vd, ok := stmt.(*ast.VarDecl); ok && len(vd.Bounds) > 0 {
				newStmts = append(newStmts, synthesizeArrayDecl(vd, t))
				changed = true
				continue
			}
			newStmts = append(newStmts, stmt)
		}
		node.Stmts = newStmts
		return node, changed

	case *ast.FuncDecl:
		if node.Body != nil {
			var c bool
			node.Body, c = expandArrayBounds(node.Body, t)
			changed = changed || c
		}
		var head []ast.Node
		for _, p := range node.Params {
			if len(p.Bounds) > 0 {
				head = append(head, synthesizeArrayParamHead(p, t)...)
				p.Type = t.ArrayOf(p.Type, len(p.Bounds))
				p.Bounds = nil
			}
		}
		if len(head) > 0 {
			if blk, ok := node.Body.(*ast.Block); ok {
				blk.Stmts = append(head, blk.Stmts...)
				changed = true
			}
		}
		return node, changed

	default:
		for _, childPtr := range node.MutableChildren() {
			var c bool
			*childPtr, c = expandArrayBounds(*childPtr, t)
			changed = changed || c
		}
		return node, changed
	}
}

// synthesizeArrayDecl wraps a bounded VarDecl in a skip-destructors
// block preceded by its hidden lbound/dimsize/mulacc variables and
// their initializing assignments (§4.2, example S5).
func synthesizeArrayDecl(vd *ast.VarDecl, t *types.Table) ast.Node {
	loc := vd.Location()
	stmts := boundsPrelude(vd.Name, vd.Bounds, t, loc)
	vd.DeclaredType = t.ArrayOf(vd.DeclaredType, len(vd.Bounds))
	vd.Bounds = nil // the hidden variables now carry the bound information
	stmts = append(stmts, vd)
	return ast.NewBlock(loc, stmts, true)
}

// synthesizeArrayParamHead produces the same hidden-variable prelude
// for an array parameter, prepended at the head of the function body
// (§4.2: "the same expansion is applied to array parameters").
func synthesizeArrayParamHead(p *ast.Param, t *types.Table) []ast.Node {
	return boundsPrelude(p.Name, p.Bounds, t, diag.Location{})
}

// boundsPrelude synthesizes, for each dimension i of `name`'s bounds:
//
//	$$name_lbound<i> := lo_i
//	$$name_dimsize<i> := hi_i - lo_i + 1
//	$$name_mulacc<i>  := dimsize_i * mulacc_{i+1}   (mulacc_arity implicit 1)
//
// computed back-to-front so mulacc_{i+1} is already bound by the time
// mulacc_i's initializer references it (§4.2).
func boundsPrelude(name string, bounds []ast.ArrayBound, t *types.Table, loc diag.Location) []ast.Node {
	arity := len(bounds)
	decls := make([]ast.Node, 0, arity*3)
	assigns := make([]ast.Node, arity*3)

	var prevMulAcc ast.Node // mulacc_{i+1}, nil standing for the implicit literal 1
	for i := arity - 1; i >= 0; i-- {
		lbName := ast.HiddenArrayVarName(name, "lbound", i)
		dsName := ast.HiddenArrayVarName(name, "dimsize", i)
		maName := ast.HiddenArrayVarName(name, "mulacc", i)

		decls = append(decls,
			ast.NewVarDecl(loc, lbName, t.Int()),
			ast.NewVarDecl(loc, dsName, t.Int()),
			ast.NewVarDecl(loc, maName, t.Int()),
		)

		j := arity - 1 - i // emission slot: last dimension first
		assigns[j*3+0] = ast.NewAssign(loc, lbName, bounds[i].Lo)

		hiMinusLo := ast.NewBinary(loc, "-", bounds[i].Hi, ast.NewIdentifier(loc, lbName))
		dimExpr := ast.NewBinary(loc, "+", hiMinusLo, ast.NewNumberLitInt(loc, 1))
		assigns[j*3+1] = ast.NewAssign(loc, dsName, dimExpr)

		var mulExpr ast.Node = ast.NewIdentifier(loc, dsName)
		if prevMulAcc != nil {
			mulExpr = ast.NewBinary(loc, "*", ast.NewIdentifier(loc, dsName), prevMulAcc)
		}
		assigns[j*3+2] = ast.NewAssign(loc, maName, mulExpr)
		prevMulAcc = ast.NewIdentifier(loc, maName)
	}

	out := make([]ast.Node, 0, len(decls)+len(assigns))
	out = append(out, decls...)
	out = append(out, assigns...)
	return out
}
