package transform

import (
	"math"

	"kumirc/internal/ast"
	"kumirc/internal/types"
)

// PreResolve rewrites reserved identifiers, desugars юникод/юнисимвол
// calls, and desugars `assert` — all before any name is resolved, so
// none of these rewrites depend on scope information (§4.2). It does
// need the type table, since юникод/юнисимвол insert explicit casts.
func PreResolve(root ast.Node, t *types.Table) (ast.Node, bool) {
	return bottomUp(root, func(n ast.Node) ast.Node { return preResolveOne(n, t) })
}

func preResolveOne(n ast.Node, t *types.Table) ast.Node {
	switch node := n.(type) {
	case *ast.Identifier:
		switch node.Name {
		case "МАКСВЕЩ":
			return ast.NewNumberLitFloat(node.Location(), math.MaxFloat64)
		case "МАКСЦЕЛ":
			return ast.NewNumberLitInt(node.Location(), math.MaxInt64)
		}
		return node

	case *ast.Call:
		if id, ok := node.Callee.(*ast.Identifier); ok && len(node.Args) == 1 {
			switch id.Name {
			case "юникод":
				return ast.NewCast(node.Location(), node.Args[0], t.Int())
			case "юнисимвол":
				return ast.NewCast(node.Location(), node.Args[0], t.Symbol())
			}
		}
		return node

	case *ast.Assert:
		ensure := ast.NewIdentifier(node.Location(), "__ensure")
		text := ast.NewStringLit(node.Location(), []byte(node.Text))
		return ast.NewCall(node.Location(), ensure, []ast.Node{node.Expr, text})

	default:
		return node
	}
}
