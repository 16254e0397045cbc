// Package pipeline orchestrates the bounded fixpoint analysis loop
// described in §4.2/§4.3: PreResolve once, then Resolve/PostResolve
// until that settles, then Annotate/PostAnnotate, looping back to
// Resolve whenever PostAnnotate introduced anything new, until nothing
// changes or an iteration cap is hit.
package pipeline

import (
	"kumirc/internal/annotate"
	"kumirc/internal/ast"
	"kumirc/internal/diag"
	"kumirc/internal/module"
	"kumirc/internal/symbols"
	"kumirc/internal/transform"
	"kumirc/internal/types"
)

// maxIterations bounds the fixpoint loop; a well-formed program
// settles in a handful of rounds (one per nesting level of array
// declarations plus one for the final Output/Input/operator
// desugaring), so hitting this is itself a diagnostic-worthy bug.
const maxIterations = 64

// Result is everything downstream passes (the lowerer, in particular)
// need after analysis completes: the fully-desugared tree and the
// resolver that holds every symbol it bound.
type Result struct {
	Root     ast.Node
	Resolver *symbols.Resolver
}

// Run analyzes root to a fixpoint against t's type table and extra's
// registered modules (in addition to the always-available runtime
// module, §6.4). extra may be nil.
func Run(root ast.Node, t *types.Table, extra *module.Registry) (Result, *diag.Diagnostic) {
	root, _ = transform.PreResolve(root, t)

	res := symbols.NewResolver(t)
	res.RegisterModule(module.Runtime(t))
	if extra != nil {
		extra.RegisterAllWith(res)
	}
	res.ImportModule("runtime")
	for _, name := range collectUses(root) {
		res.ImportModule(name)
	}

	ann := annotate.New(res, t)

	for i := 0; i < maxIterations; i++ {
		if err := res.Resolve(root); err != nil {
			return Result{Root: root, Resolver: res}, err
		}

		next, changed := transform.PostResolve(root, res, t)
		root = next
		if changed {
			continue
		}

		if err := ann.Annotate(root); err != nil {
			return Result{Root: root, Resolver: res}, err
		}

		next, changed = transform.PostAnnotate(root, t)
		root = next
		if !changed {
			return Result{Root: root, Resolver: res}, nil
		}
	}

	return Result{Root: root, Resolver: res}, diag.New(diag.PipelineDidNotConverge, ast.LocationOf(root),
		"analysis did not reach a fixpoint after %d iterations", maxIterations)
}

func collectUses(root ast.Node) []string {
	var names []string
	ast.Walk(root, func(n ast.Node) bool {
		if u, ok := n.(*ast.Use); ok {
			names = append(names, u.Module)
		}
		return true
	})
	return names
}
