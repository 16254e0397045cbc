// Package symbols implements name resolution: lexical scoping, symbol
// allocation, and function-local indexing (§3.3, §4.1).
package symbols

import (
	"kumirc/internal/ast"
	"kumirc/internal/types"
)

// Scope is a named region with its own symbol table; scopes form a
// tree via ParentID (§3.3). The tree and the symbol table are owned
// by the Resolver for the lifetime of compilation; AST nodes refer to
// symbols via ids only (never scope pointers).
type Scope struct {
	ID        int
	ParentID  int // -1 for the root scope
	Names     map[string]int
	Root      bool
	Redeclare bool // permits repeated declarations (REPL-style root)

	// FunctionScopeID is the id of the nearest enclosing function body
	// scope, or -1 if this scope is not inside any function body.
	// Used to route function-local index allocation (§4.1).
	FunctionScopeID int
}

func newScope(id, parent int, functionScopeID int) *Scope {
	return &Scope{
		ID:              id,
		ParentID:        parent,
		Names:           make(map[string]int),
		FunctionScopeID: functionScopeID,
	}
}

// Symbol records everything a declaration site contributes (§3.3).
type Symbol struct {
	ID                     int
	Name                   string
	DeclScopeID            int
	ScopeLocalIndex        int
	FunctionLocalIndex     int // -1 if not declared inside a function body
	EnclosingFunctionScope int // -1 if none
	Node                   ast.Node // declaring AST node; nil for imported externals

	Type *types.Type // declared/inferred type, filled progressively

	// External marks a symbol injected by ImportModule rather than
	// declared in source (§4.1, §6.4).
	External     bool
	ExternalDesc *ExternalFuncDesc
}

// ExternalFuncDesc is the minimal shape a ModuleProvider exposes for
// each of its external functions, enough for the resolver to bind
// call sites and for the annotator to type-check arguments (§6.4).
type ExternalFuncDesc struct {
	SourceName             string
	MangledName            string
	ParamTypes             []*types.Type
	ReturnType             *types.Type
	RequiresMaterialization bool
}

// ModuleProvider is the interface a registered module satisfies; kept
// minimal here so internal/symbols never imports internal/module
// (the dependency runs the other way: module registration feeds the
// resolver, §6.4).
type ModuleProvider interface {
	Name() string
	ExternalFunctions() []ExternalFuncDesc
}
