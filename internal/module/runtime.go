package module

import "kumirc/internal/types"

// Runtime builds the module the transformer and lowerer desugar into
// (§4.2, §4.4.3): string refcounting, array bounds/destroy helpers,
// typed I/O, and the `__ensure` assert helper. The runtime library
// itself (string refcounting, arrays, I/O, math) is an external
// collaborator (§1); this only registers the *signatures* the core
// needs to bind calls against.
func Runtime(t *types.Table) *Module {
	m := New("runtime")

	str, i64, f64, b1, sym, void := t.String(), t.Int(), t.Float(), t.Bool(), t.Symbol(), t.Void()

	m.Declare(ExternalFunction{SourceName: "__ensure", MangledName: "__ensure", ParamTypes: []*types.Type{b1, str}, ReturnType: void})

	m.Declare(ExternalFunction{SourceName: "str_concat", MangledName: "str_concat", ParamTypes: []*types.Type{str, str}, ReturnType: str})
	m.Declare(ExternalFunction{SourceName: "str_from_lit", MangledName: "str_from_lit", ParamTypes: []*types.Type{i64}, ReturnType: str, RequiresMaterialization: true})
	m.Declare(ExternalFunction{SourceName: "str_from_unicode", MangledName: "str_from_unicode", ParamTypes: []*types.Type{sym}, ReturnType: str})
	m.Declare(ExternalFunction{SourceName: "str_symbol_at", MangledName: "str_symbol_at", ParamTypes: []*types.Type{str, i64}, ReturnType: sym})
	m.Declare(ExternalFunction{SourceName: "str_slice", MangledName: "str_slice", ParamTypes: []*types.Type{str, i64, i64}, ReturnType: str})
	m.Declare(ExternalFunction{SourceName: "str_retain", MangledName: "str_retain", ParamTypes: []*types.Type{str}, ReturnType: void})
	m.Declare(ExternalFunction{SourceName: "str_release", MangledName: "str_release", ParamTypes: []*types.Type{str}, ReturnType: void})

	m.Declare(ExternalFunction{SourceName: "pow", MangledName: "pow", ParamTypes: []*types.Type{f64, f64}, ReturnType: f64})
	m.Declare(ExternalFunction{SourceName: "fpow", MangledName: "fpow", ParamTypes: []*types.Type{i64, i64}, ReturnType: i64})

	m.Declare(ExternalFunction{SourceName: "output_double", MangledName: "output_double", ParamTypes: []*types.Type{f64}, ReturnType: void})
	m.Declare(ExternalFunction{SourceName: "output_int64", MangledName: "output_int64", ParamTypes: []*types.Type{i64}, ReturnType: void})
	m.Declare(ExternalFunction{SourceName: "output_bool", MangledName: "output_bool", ParamTypes: []*types.Type{b1}, ReturnType: void})
	m.Declare(ExternalFunction{SourceName: "output_string", MangledName: "output_string", ParamTypes: []*types.Type{str}, ReturnType: void})
	m.Declare(ExternalFunction{SourceName: "output_symbol", MangledName: "output_symbol", ParamTypes: []*types.Type{sym}, ReturnType: void})

	m.Declare(ExternalFunction{SourceName: "input_double", MangledName: "input_double", ParamTypes: nil, ReturnType: f64})
	m.Declare(ExternalFunction{SourceName: "input_int64", MangledName: "input_int64", ParamTypes: nil, ReturnType: i64})

	m.Declare(ExternalFunction{SourceName: "array_create", MangledName: "array_create", ParamTypes: []*types.Type{i64}, ReturnType: t.PointerTo(void)})
	m.Declare(ExternalFunction{SourceName: "array_destroy", MangledName: "array_destroy", ParamTypes: []*types.Type{t.PointerTo(void)}, ReturnType: void})
	m.Declare(ExternalFunction{SourceName: "array_str_destroy", MangledName: "array_str_destroy", ParamTypes: []*types.Type{t.PointerTo(void)}, ReturnType: void})

	return m
}
