package transform

import (
	"kumirc/internal/ast"
	"kumirc/internal/diag"
	"kumirc/internal/types"
)

// PostAnnotate desugars operations that need type information to pick
// their runtime implementation (§4.2): String `+` becomes str_concat
// (with an implicit str_from_unicode for a Symbol operand), `^`
// becomes pow or fpow depending on whether the result is Float, String
// indexing/slicing becomes str_symbol_at/str_slice, a Symbol->String
// Cast becomes str_from_unicode, and Output/Input become blocks of
// typed output_*/input_* calls. It runs after an Annotate pass (it
// reads the types Annotate assigned) and introduces calls to
// unresolved names, so the caller re-resolves and re-annotates
// afterward.
func PostAnnotate(root ast.Node, t *types.Table) (ast.Node, bool) {
	return bottomUp(root, func(n ast.Node) ast.Node { return postAnnotateOne(n, t) })
}

func postAnnotateOne(n ast.Node, t *types.Table) ast.Node {
	switch node := n.(type) {
	case *ast.Binary:
		switch node.Operator {
		case "+":
			if node.Type() != nil && node.Type().IsPrimitive(types.StringK) {
				return runtimeCall(node.Location(), "str_concat",
					coerceToString(node.Left, t), coerceToString(node.Right, t))
			}
		case "^":
			if node.Type() != nil && node.Type().IsPrimitive(types.Float) {
				return runtimeCall(node.Location(), "pow",
					coerceToFloat(node.Left, t), coerceToFloat(node.Right, t))
			}
			return runtimeCall(node.Location(), "fpow", node.Left, node.Right)
		}
		return node

	case *ast.Cast:
		if node.Target != nil && node.Target.IsPrimitive(types.StringK) &&
			node.Operand.Type() != nil && node.Operand.Type().IsPrimitive(types.Symbol) {
			return runtimeCall(node.Location(), "str_from_unicode", node.Operand)
		}
		return node

	case *ast.Index:
		if node.Collection.Type() != nil && node.Collection.Type().IsPrimitive(types.StringK) {
			return runtimeCall(node.Location(), "str_symbol_at", node.Collection, node.Index)
		}
		return node

	case *ast.Slice:
		return runtimeCall(node.Location(), "str_slice", node.Collection, node.Start, node.End)

	case *ast.Output:
		stmts := make([]ast.Node, len(node.Args))
		for i, arg := range node.Args {
			stmts[i] = runtimeCall(ast.LocationOf(arg), outputFuncFor(arg.Type()), arg)
		}
		return ast.NewBlock(node.Location(), stmts, false)

	case *ast.Input:
		stmts := make([]ast.Node, 0, len(node.Args))
		for _, target := range node.Args {
			stmts = append(stmts, inputAssign(target, t))
		}
		return ast.NewBlock(node.Location(), stmts, false)

	default:
		return node
	}
}

// runtimeCall builds an (as yet unresolved) call to a runtime
// function by name; the caller's next Resolve pass binds it against
// the imported runtime module (§6.4).
func runtimeCall(loc diag.Location, name string, args ...ast.Node) *ast.Call {
	return ast.NewCall(loc, ast.NewIdentifier(loc, name), args)
}

// coerceToString wraps a Symbol-typed concatenation operand in an
// explicit str_from_unicode call; a String operand passes through.
func coerceToString(n ast.Node, t *types.Table) ast.Node {
	if n.Type() != nil && n.Type().IsPrimitive(types.Symbol) {
		return runtimeCall(n.Location(), "str_from_unicode", n)
	}
	return n
}

// coerceToFloat wraps an Int-typed `^` operand in an explicit cast so
// both arguments of the pow() runtime call agree (§4.2).
func coerceToFloat(n ast.Node, t *types.Table) ast.Node {
	if n.Type() != nil && n.Type().IsPrimitive(types.Int) {
		if lit, ok := n.(*ast.NumberLit); ok {
			f := ast.NewNumberLitFloat(lit.Location(), float64(lit.IntValue))
			f.SetType(t.Float())
			return f
		}
		cast := ast.NewCast(n.Location(), n, t.Float())
		cast.SetType(t.Float())
		return cast
	}
	return n
}

// outputFuncFor picks the output_* runtime function for a type (§4.2).
func outputFuncFor(ty *types.Type) string {
	if ty == nil {
		return "output_int64"
	}
	switch ty.Kind() {
	case types.Float:
		return "output_double"
	case types.Bool:
		return "output_bool"
	case types.StringK:
		return "output_string"
	case types.Symbol:
		return "output_symbol"
	default:
		return "output_int64"
	}
}

// inputFuncFor picks the input_* runtime function for a type (§4.2);
// the core runtime only supplies numeric input.
func inputFuncFor(ty *types.Type) string {
	if ty != nil && ty.Kind() == types.Float {
		return "input_double"
	}
	return "input_int64"
}

// inputAssign builds the assignment that stores one input_* call's
// result into an Input statement's target (§4.2).
func inputAssign(target ast.Node, t *types.Table) ast.Node {
	loc := target.Location()
	switch tgt := target.(type) {
	case *ast.Identifier:
		call := runtimeCall(loc, inputFuncFor(tgt.Type()))
		return ast.NewAssign(loc, tgt.Name, call)
	case *ast.Index:
		name := indexCollectionName(tgt.Collection)
		call := runtimeCall(loc, inputFuncFor(tgt.Type()))
		return ast.NewArrayElemAssign(loc, name, []ast.Node{tgt.Index}, call)
	case *ast.MultiIndex:
		name := indexCollectionName(tgt.Collection)
		call := runtimeCall(loc, inputFuncFor(tgt.Type()))
		return ast.NewArrayElemAssign(loc, name, tgt.Indices, call)
	default:
		// Not a valid lvalue; the annotator already rejected this, so
		// this path exists only as a defensive fallback.
		return target
	}
}

func indexCollectionName(n ast.Node) string {
	if id, ok := n.(*ast.Identifier); ok {
		return id.Name
	}
	return ""
}
