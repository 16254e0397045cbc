// Package transform implements the AST transformer (§4.2): a
// pre-resolution pass, a post-resolution pass, and a post-annotation
// pass, each a bottom-up rewriter that returns either a node unchanged
// or a replacement.
package transform

import "kumirc/internal/ast"

// bottomUp applies fn to every node reachable from root, children
// first, replacing each node in place via its MutableChildren
// accessor. It reports whether any replacement actually changed a
// node (by pointer identity), which callers use to detect a fixpoint.
func bottomUp(root ast.Node, fn func(ast.Node) ast.Node) (ast.Node, bool) {
	if root == nil {
		return nil, false
	}
	changed := false
	for _, childPtr := range root.MutableChildren() {
		if *childPtr == nil {
			continue
		}
		newChild, childChanged := bottomUp(*childPtr, fn)
		if childChanged {
			changed = true
		}
		*childPtr = newChild
	}
	replaced := fn(root)
	if replaced != root {
		changed = true
	}
	return replaced, changed
}
