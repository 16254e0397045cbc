// Package module implements the extension point described in §6.4:
// a named collection of external functions the resolver injects into
// the root scope on import, and the lowerer calls through a resolved
// symbol-id -> external-function-index mapping.
//
// Grounded on the teacher's internal/module.ModuleLoader (builtin
// module registry keyed by name, with a cache) and internal/packages'
// resolver (name -> descriptor lookup for a standard library).
package module

import (
	"fmt"
	"sync"

	"kumirc/internal/ir"
	"kumirc/internal/symbols"
	"kumirc/internal/types"
)

// ExternalFunction is one function a module exposes to the core
// (§6.4): a possibly-Unicode source name, an ASCII mangled name for
// the native backend, AST-form parameter/return types, a native
// function pointer placeholder, and the stack-frame interpreter's
// optional packed-thunk calling convention.
type ExternalFunction struct {
	SourceName  string
	MangledName string
	ParamTypes  []*types.Type
	ReturnType  *types.Type

	// NativeEntry stands in for the native function pointer (void*)
	// the original registers; the core only needs its identity, never
	// calls through it (backends are out of scope, §1).
	NativeEntry string

	// PackedThunk is present when this function can be invoked by the
	// stack-frame interpreter's `(args []uint64) uint64` convention
	// (§6.4). It is never called by the core either; its presence is
	// part of the registration contract the lowerer inspects via
	// RequiresMaterialization below.
	PackedThunk func(args []uint64) uint64

	// RequiresMaterialization forces the lowerer to promote
	// string-literal arguments to String objects (str_from_lit) before
	// the call (§4.4.4).
	RequiresMaterialization bool
}

// Module is a name plus a list of external functions (§6.4).
type Module struct {
	name      string
	functions []ExternalFunction
}

func New(name string) *Module { return &Module{name: name} }

func (m *Module) Name() string { return m.name }

func (m *Module) Declare(fn ExternalFunction) *Module {
	m.functions = append(m.functions, fn)
	return m
}

// ExternalFunctions implements symbols.ModuleProvider.
func (m *Module) ExternalFunctions() []symbols.ExternalFuncDesc {
	out := make([]symbols.ExternalFuncDesc, len(m.functions))
	for i, fn := range m.functions {
		out[i] = symbols.ExternalFuncDesc{
			SourceName:              fn.SourceName,
			MangledName:             fn.MangledName,
			ParamTypes:              fn.ParamTypes,
			ReturnType:              fn.ReturnType,
			RequiresMaterialization: fn.RequiresMaterialization,
		}
	}
	return out
}

// Registry owns every module registered for one compilation, mirroring
// the teacher's ModuleLoader cache (here keyed by name, no filesystem
// search path: module discovery is an external-collaborator concern,
// §1).
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*Module)}
}

func (r *Registry) Register(m *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m.Name()] = m
}

func (r *Registry) Get(name string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// Modules returns every registered module, for callers (the lowerer)
// that need to bind externals without going through a *Resolver.
func (r *Registry) Modules() []*Module {
	return snapshot(r)
}

// RegisterAllWith registers every module in the registry onto a
// resolver, so ImportModule("name") can later inject its functions
// into the root scope (§4.1, §6.4).
func (r *Registry) RegisterAllWith(res Resolver) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.modules {
		res.RegisterModule(m)
	}
}

// Resolver is the subset of *symbols.Resolver the module package needs;
// declared here (rather than importing *symbols.Resolver directly) to
// keep the dependency direction symbols -> (nothing), module -> symbols.
type Resolver interface {
	RegisterModule(symbols.ModuleProvider)
}

// BindExternals copies every registered module's functions into the
// IR module's external-function table, resolving each by the symbol
// id the resolver bound it to, so the lowerer's
// symbol-id -> external-function-index map (§3.4) is complete before
// lowering starts.
func BindExternals(reg *Registry, res *symbols.Resolver, irMod *ir.Module) error {
	for _, m := range snapshot(reg) {
		for _, fn := range m.functions {
			sym, ok := res.Lookup(fn.SourceName, res.RootScopeID())
			if !ok {
				return fmt.Errorf("module %q: external function %q was never bound by the resolver (was ImportModule called?)", m.name, fn.SourceName)
			}
			irMod.AddExternal(ir.ExternalFunctionRef{
				SymbolID:                sym.ID,
				SourceName:              fn.SourceName,
				MangledName:             fn.MangledName,
				ParamTypes:              fn.ParamTypes,
				ReturnType:              fn.ReturnType,
				RequiresMaterialization: fn.RequiresMaterialization,
			})
		}
	}
	return nil
}

func snapshot(r *Registry) []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	return out
}
