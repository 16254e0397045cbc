package symbols

import (
	"kumirc/internal/ast"
	"kumirc/internal/diag"
	"kumirc/internal/types"
)

// Resolver walks the AST assigning each declaration a unique symbol
// id, binding every identifier reference to a symbol id, and
// maintaining the scope tree (§4.1).
type Resolver struct {
	types *types.Table

	scopes  []*Scope
	symbols []*Symbol

	// funcLocalNext[functionScopeID] is the next function-local index
	// to hand out; indices increase monotonically across a function's
	// entire local pool (parameters and nested locals alike), per §4.1.
	funcLocalNext map[int]int

	modules  map[string]ModuleProvider
	imported map[string]bool

	rootScopeID int
}

// NewResolver creates a Resolver with a fresh root scope.
func NewResolver(t *types.Table) *Resolver {
	r := &Resolver{
		types:         t,
		funcLocalNext: make(map[int]int),
		modules:       make(map[string]ModuleProvider),
		imported:      make(map[string]bool),
	}
	root := r.newScopeRaw(-1, -1)
	root.Root = true
	root.Redeclare = true
	r.rootScopeID = root.ID
	return r
}

func (r *Resolver) RootScopeID() int { return r.rootScopeID }

// IsImported reports whether ImportModule(name) has actually injected
// that module's functions into scope, as opposed to merely being
// registered and available (§6.4). Lower uses this to pass only
// imported modules to BindExternals, so a module a program never used
// needs no binding.
func (r *Resolver) IsImported(name string) bool { return r.imported[name] }

func (r *Resolver) newScopeRaw(parent, functionScopeID int) *Scope {
	s := newScope(len(r.scopes), parent, functionScopeID)
	r.scopes = append(r.scopes, s)
	return s
}

func (r *Resolver) scope(id int) *Scope { return r.scopes[id] }

// context is the explicit, recursion-threaded state the resolver
// carries instead of the teacher's coroutine-style mutable state
// (§9): the current scope and the function scope new locals should be
// indexed against.
type context struct {
	scopeID int
}

// RegisterModule registers a module's external functions but does not
// yet inject them into any scope (§6.4); ImportModule performs the
// injection for a `использовать <name>` / `use` statement.
func (r *Resolver) RegisterModule(m ModuleProvider) {
	r.modules[m.Name()] = m
}

// ImportModule injects the named module's external functions as
// Function symbols into the root scope. Returns false if the module
// was never registered.
func (r *Resolver) ImportModule(name string) bool {
	m, ok := r.modules[name]
	if !ok {
		return false
	}
	if r.imported[name] {
		return true
	}
	r.imported[name] = true
	root := r.scope(r.rootScopeID)
	for _, fn := range m.ExternalFunctions() {
		desc := fn
		sym := r.declareRaw(root, fn.SourceName, nil, -1)
		sym.External = true
		sym.ExternalDesc = &desc
		sym.Type = r.types.FunctionType(desc.ParamTypes, desc.ReturnType)
	}
	return true
}

// declareRaw allocates a new symbol id, binds it in scope under name,
// and (if inside a function body) allocates the next function-local
// index.
func (r *Resolver) declareRaw(scope *Scope, name string, node ast.Node, forceFunctionScope int) *Symbol {
	id := len(r.symbols)
	sym := &Symbol{
		ID:                     id,
		Name:                   name,
		DeclScopeID:            scope.ID,
		FunctionLocalIndex:     -1,
		EnclosingFunctionScope: -1,
		Node:                   node,
	}
	fnScope := scope.FunctionScopeID
	if forceFunctionScope != -1 {
		fnScope = forceFunctionScope
	}
	if fnScope != -1 {
		idx := r.funcLocalNext[fnScope]
		r.funcLocalNext[fnScope] = idx + 1
		sym.FunctionLocalIndex = idx
		sym.EnclosingFunctionScope = fnScope
	}
	r.symbols = append(r.symbols, sym)
	scope.Names[name] = id
	return sym
}

// declare binds name in scope, honoring the Redeclare flag (§4.1).
func (r *Resolver) declare(scope *Scope, name string, node ast.Node) (*Symbol, *diag.Diagnostic) {
	if _, exists := scope.Names[name]; exists && !scope.Redeclare {
		return nil, diag.New(diag.AlreadyDeclared, node.Location(),
			"%q is already declared in this scope", name)
	}
	return r.declareRaw(scope, name, node, -1), nil
}

// Lookup walks the scope chain from scopeID to the root looking for name.
func (r *Resolver) Lookup(name string, scopeID int) (*Symbol, bool) {
	for id := scopeID; id != -1; {
		s := r.scope(id)
		if symID, ok := s.Names[name]; ok {
			return r.symbols[symID], true
		}
		id = s.ParentID
	}
	return nil, false
}

// Symbol returns the symbol with the given id.
func (r *Resolver) Symbol(id int) *Symbol { return r.symbols[id] }

// GetSymbolNode returns the declaring AST node for a symbol id, if any.
func (r *Resolver) GetSymbolNode(id int) ast.Node {
	if id < 0 || id >= len(r.symbols) {
		return nil
	}
	return r.symbols[id].Node
}

// FunctionLocalCount returns the number of locals (parameters +
// nested declarations) allocated against a function scope, used to
// verify the "indices are contiguous and in [0, N)" invariant (§8.2).
func (r *Resolver) FunctionLocalCount(functionScopeID int) int {
	return r.funcLocalNext[functionScopeID]
}

// DeclareFunction declares a function's own name in scope (used both
// by ordinary FuncDecl resolution and by module-registration style
// call sites, §4.1's declare_function operation).
func (r *Resolver) DeclareFunction(scope *Scope, name string, node ast.Node) (*Symbol, *diag.Diagnostic) {
	return r.declare(scope, name, node)
}

// Resolve walks the AST in preorder, declaring and binding every
// symbol. It returns the first diagnostic encountered, or nil on
// success (§4.1, §7: "the first unresolved name returns an error").
func (r *Resolver) Resolve(root ast.Node) *diag.Diagnostic {
	_, d := r.resolveNode(root, context{scopeID: r.rootScopeID})
	return d
}

func (r *Resolver) resolveNode(n ast.Node, ctx context) (context, *diag.Diagnostic) {
	if n == nil {
		return ctx, nil
	}
	switch node := n.(type) {
	case *ast.Block:
		return ctx, r.resolveBlock(node, ctx)

	case *ast.VarsBlock:
		for _, d := range node.Decls {
			if _, err := r.resolveNode(d, ctx); err != nil {
				return ctx, err
			}
		}
		return ctx, nil

	case *ast.FuncDecl:
		return ctx, r.resolveFuncDecl(node, ctx)

	case *ast.VarDecl:
		for _, b := range node.Bounds {
			if _, err := r.resolveNode(b.Lo, ctx); err != nil {
				return ctx, err
			}
			if _, err := r.resolveNode(b.Hi, ctx); err != nil {
				return ctx, err
			}
		}
		// On re-entry the block's scope is reused, and this
		// declaration is already bound in it.
		if node.Symbol != ast.NoSymbol {
			return ctx, nil
		}
		scope := r.scope(ctx.scopeID)
		sym, err := r.declare(scope, node.Name, node)
		if err != nil {
			return ctx, err
		}
		node.Symbol = sym.ID
		return ctx, nil

	case *ast.Identifier:
		sym, ok := r.Lookup(node.Name, ctx.scopeID)
		if !ok {
			return ctx, diag.New(diag.UndefinedIdentifier, node.Location(),
				"undefined identifier %q", node.Name)
		}
		node.Symbol = sym.ID
		return ctx, nil

	case *ast.Assign:
		if _, err := r.resolveNode(node.Value, ctx); err != nil {
			return ctx, err
		}
		sym, ok := r.Lookup(node.Name, ctx.scopeID)
		if !ok {
			return ctx, diag.New(diag.UndefinedIdentifier, node.Location(),
				"undefined identifier %q", node.Name)
		}
		node.Symbol = sym.ID
		return ctx, nil

	case *ast.ArrayElemAssign:
		for _, idx := range node.Indices {
			if _, err := r.resolveNode(idx, ctx); err != nil {
				return ctx, err
			}
		}
		if _, err := r.resolveNode(node.Value, ctx); err != nil {
			return ctx, err
		}
		sym, ok := r.Lookup(node.Name, ctx.scopeID)
		if !ok {
			return ctx, diag.New(diag.UndefinedIdentifier, node.Location(),
				"undefined identifier %q", node.Name)
		}
		node.Symbol = sym.ID
		return ctx, nil

	case *ast.Loop:
		for _, c := range []ast.Node{node.PreCond, node.PreBody, node.Body, node.PostBody, node.PostCond} {
			if _, err := r.resolveNode(c, ctx); err != nil {
				return ctx, err
			}
		}
		return ctx, nil

	default:
		// Generic structural recursion for every other variant:
		// Binary, Unary, Cast, If, Call, Index, MultiIndex, Slice,
		// Input, Output, Assert, Use, Break, Continue, literals.
		for _, c := range n.Children() {
			if _, err := r.resolveNode(c, ctx); err != nil {
				return ctx, err
			}
		}
		return ctx, nil
	}
}

// resolveBlock either reuses the scope already stamped on the block
// (re-entry during multi-pass analysis) or creates a fresh child scope
// and stamps its id onto the node (§4.1).
func (r *Resolver) resolveBlock(b *ast.Block, ctx context) *diag.Diagnostic {
	var scope *Scope
	if b.ScopeID != ast.NoScope {
		scope = r.scope(b.ScopeID)
	} else {
		scope = r.newScopeRaw(ctx.scopeID, r.scope(ctx.scopeID).FunctionScopeID)
		b.ScopeID = scope.ID
	}
	inner := context{scopeID: scope.ID}
	for _, stmt := range b.Stmts {
		if _, err := r.resolveNode(stmt, inner); err != nil {
			return err
		}
	}
	return nil
}

// resolveFuncDecl declares the function's own name in the enclosing
// scope, then creates a nested body scope and declares each parameter
// in it (§4.1). Nested function declarations are rejected: the core
// does not support them (§7, nested-functions-not-supported).
func (r *Resolver) resolveFuncDecl(f *ast.FuncDecl, ctx context) *diag.Diagnostic {
	enclosing := r.scope(ctx.scopeID)
	if enclosing.FunctionScopeID != -1 {
		return diag.New(diag.NestedFunctionsUnsup, f.Location(),
			"function %q is declared inside another function body", f.Name)
	}

	sym, err := r.DeclareFunction(enclosing, f.Name, f)
	if err != nil {
		return err
	}
	f.Symbol = sym.ID

	bodyScope := r.newScopeRaw(ctx.scopeID, -1)
	bodyScope.FunctionScopeID = bodyScope.ID
	f.ScopeID = bodyScope.ID

	for _, p := range f.Params {
		psym := r.declareRaw(bodyScope, p.Name, nil, bodyScope.ID)
		p.Symbol = psym.ID
		psym.Type = p.Type
	}

	innerCtx := context{scopeID: bodyScope.ID}
	if f.Body != nil {
		if blk, ok := f.Body.(*ast.Block); ok {
			return r.resolveBlock(blk, innerCtx)
		}
		if _, err := r.resolveNode(f.Body, innerCtx); err != nil {
			return err
		}
	}
	return nil
}
