// Package diag implements the compiler's tree-shaped diagnostic model (§5, §7).
//
// A Diagnostic carries a closed Kind, a source location, a rendered
// message, and a list of nested children; lower-level diagnostics are
// wrapped by the routine that caught them rather than flattened, so a
// diagnostic tree mirrors the call chain that produced it.
package diag

import (
	"fmt"
	"strings"
)

// Kind is the closed error-id enum described in §7.
type Kind string

const (
	// Name resolution.
	UndefinedIdentifier    Kind = "undefined-identifier"
	AlreadyDeclared        Kind = "already-declared"
	NestedFunctionsUnsup   Kind = "nested-functions-not-supported"

	// Typing.
	MismatchedTypes        Kind = "mismatched-types"
	NotAFunction           Kind = "not-a-function"
	WrongArgCount          Kind = "wrong-arg-count"
	ReferenceRequiresIdent Kind = "reference-requires-identifier"
	ReadOfOutParameter     Kind = "read-of-out-parameter"
	AssignmentToConst      Kind = "assignment-to-const"

	// Control flow.
	BreakNotInLoop    Kind = "break-not-in-loop"
	ContinueNotInLoop Kind = "continue-not-in-loop"

	// Lowering.
	NotImplemented            Kind = "not-implemented"
	CannotLowerArrayIndices   Kind = "cannot-lower-array-indices"
	FunctionCallNonIdentifier Kind = "function-call-non-identifier"
	ArgRefMustBeIdentifier    Kind = "arg-ref-must-be-identifier"

	// Module structure.
	VariableDeclsBeforeFun Kind = "variable-decls-before-fun"
	UnexpectedTopLevelStmt Kind = "unexpected-top-level-stmt"
	RootExprMustBeBlock    Kind = "root-expr-must-be-block"

	// Pipeline orchestration (§4.2, §4.3: bounded fixpoint iteration).
	PipelineDidNotConverge Kind = "pipeline-did-not-converge"

	// Delegated (lexer/parser, wrapped but not produced by the core).
	Syntax Kind = "syntax-error"
)

// Location mirrors an AST node's source position.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" && l.Line == 0 && l.Column == 0 {
		return ""
	}
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Diagnostic is a node in the diagnostic tree.
type Diagnostic struct {
	Kind     Kind
	Message  string
	Loc      Location
	Children []*Diagnostic
}

// New creates a leaf diagnostic.
func New(kind Kind, loc Location, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Loc: loc, Message: fmt.Sprintf(format, args...)}
}

// Wrap nests a child diagnostic under a new location-bearing parent.
//
// If the child's location already matches loc and the child carries no
// message of its own, it is flattened into the parent instead of nested
// an extra level (§7: "flattening when the inner error's location
// matches and its message is empty").
func Wrap(kind Kind, loc Location, child *Diagnostic, format string, args ...interface{}) *Diagnostic {
	msg := fmt.Sprintf(format, args...)
	if child != nil && child.Loc == loc && child.Message == "" {
		d := &Diagnostic{Kind: kind, Loc: loc, Message: msg, Children: child.Children}
		return d
	}
	d := &Diagnostic{Kind: kind, Loc: loc, Message: msg}
	if child != nil {
		d.Children = append(d.Children, child)
	}
	return d
}

// Aggregate combines multiple child diagnostics under one parent node,
// preserving traversal order (§4.3, §7: the annotator aggregates
// multiple children's errors rather than failing on the first).
func Aggregate(kind Kind, loc Location, message string, children ...*Diagnostic) *Diagnostic {
	d := &Diagnostic{Kind: kind, Loc: loc, Message: message}
	for _, c := range children {
		if c != nil {
			d.Children = append(d.Children, c)
		}
	}
	return d
}

// Error implements the error interface, rendering the tree with
// 2-space indentation per nesting level.
func (d *Diagnostic) Error() string {
	var sb strings.Builder
	d.render(&sb, 0)
	return sb.String()
}

func (d *Diagnostic) render(sb *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	loc := d.Loc.String()
	if loc != "" {
		fmt.Fprintf(sb, "%s[%s] %s: %s\n", indent, d.Kind, loc, d.Message)
	} else {
		fmt.Fprintf(sb, "%s[%s] %s\n", indent, d.Kind, d.Message)
	}
	for _, c := range d.Children {
		c.render(sb, depth+1)
	}
}

// Count returns the total number of diagnostics in the tree (self + children).
func (d *Diagnostic) Count() int {
	n := 1
	for _, c := range d.Children {
		n += c.Count()
	}
	return n
}

// Flatten returns every leaf diagnostic (nodes with no children) in
// traversal order, used by callers that want a flat list to report.
func (d *Diagnostic) Flatten() []*Diagnostic {
	if len(d.Children) == 0 {
		return []*Diagnostic{d}
	}
	var out []*Diagnostic
	for _, c := range d.Children {
		out = append(out, c.Flatten()...)
	}
	return out
}
