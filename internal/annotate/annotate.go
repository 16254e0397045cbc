// Package annotate implements the type annotator (§4.3): a single
// top-down walk that assigns a type to every expression, inserts
// implicit casts where §3.2's table permits, and produces precise,
// localized diagnostics otherwise.
package annotate

import (
	"kumirc/internal/ast"
	"kumirc/internal/diag"
	"kumirc/internal/symbols"
	"kumirc/internal/types"
)

type Annotator struct {
	res *symbols.Resolver
	t   *types.Table
}

func New(res *symbols.Resolver, t *types.Table) *Annotator {
	return &Annotator{res: res, t: t}
}

// Annotate assigns types across the whole tree. It first presets every
// declaration's symbol type (so mutually-referencing top-level
// functions/variables resolve regardless of textual order), then
// walks top-down applying the per-variant rules below.
func (a *Annotator) Annotate(root ast.Node) *diag.Diagnostic {
	a.presetDeclTypes(root)
	return a.annotate(root)
}

func (a *Annotator) presetDeclTypes(root ast.Node) {
	ast.Walk(root, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.VarDecl:
			sym := a.res.Symbol(node.Symbol)
			sym.Type = node.DeclaredType
		case *ast.FuncDecl:
			sym := a.res.Symbol(node.Symbol)
			params := make([]*types.Type, len(node.Params))
			for i, p := range node.Params {
				stamped := paramTypeWithMode(p)
				params[i] = stamped
				// The resolver bound p.Symbol to the plain declared type
				// (§4.1); stamp the mode's mutable/readable attrs onto
				// that same symbol so reads/writes inside the body see
				// the parameter's actual capability, not just call sites.
				a.res.Symbol(p.Symbol).Type = stamped
			}
			ft := a.t.FunctionType(params, node.ReturnType)
			sym.Type = ft
			node.FuncType = ft
		}
		return true
	})
}

// paramTypeWithMode stamps a parameter's declared type with the
// mutable/readable attributes its mode implies (§3.2), so later
// argument-checking can read them straight off the interned type.
func paramTypeWithMode(p *ast.Param) *types.Type {
	switch p.Mode {
	case ast.ParamOut:
		return p.Type.WithAttrs(true, false)
	case ast.ParamInOut:
		return p.Type.WithAttrs(true, true)
	default: // ast.ParamIn
		return p.Type.WithAttrs(false, true)
	}
}

// annotate is the top-down walk. It aggregates multiple children's
// errors at Block/FuncDecl boundaries rather than failing fast (§4.3,
// §7), but propagates a single error immediately from expression
// contexts that cannot meaningfully continue.
func (a *Annotator) annotate(n ast.Node) *diag.Diagnostic {
	if n == nil {
		return nil
	}
	switch node := n.(type) {
	case *ast.NumberLit:
		if node.IsFloat {
			node.SetType(a.t.Float())
		} else {
			node.SetType(a.t.Int())
		}
		return nil

	case *ast.StringLit:
		node.SetType(a.t.String())
		return nil

	case *ast.Identifier:
		return a.annotateIdentifierRead(node)

	case *ast.Unary:
		if err := a.annotate(node.Operand); err != nil {
			return err
		}
		opType := unwrapReference(node.Operand.Type())
		switch node.Operator {
		case "!":
			if err := a.coerce(&node.Operand, a.t.Bool()); err != nil {
				return err
			}
			node.SetType(a.t.Bool())
		case "-":
			if !opType.IsNumeric() {
				return diag.New(diag.MismatchedTypes, node.Location(), "unary - requires a numeric operand, got %s", opType)
			}
			node.SetType(opType)
		default:
			node.SetType(opType)
		}
		return nil

	case *ast.Binary:
		return a.annotateBinary(node)

	case *ast.Cast:
		if err := a.annotate(node.Operand); err != nil {
			return err
		}
		node.SetType(node.Target)
		return nil

	case *ast.Assign:
		return a.annotateAssign(node)

	case *ast.ArrayElemAssign:
		return a.annotateArrayElemAssign(node)

	case *ast.Index:
		return a.annotateIndex(node)

	case *ast.MultiIndex:
		return a.annotateMultiIndex(node)

	case *ast.Slice:
		return a.annotateSlice(node)

	case *ast.Block:
		return a.annotateStmtList(node, node.Stmts)

	case *ast.VarsBlock:
		return a.annotateStmtList(node, node.Decls)

	case *ast.If:
		if err := a.annotate(node.Cond); err != nil {
			return err
		}
		if err := a.coerce(&node.Cond, a.t.Bool()); err != nil {
			return err
		}
		var errs []*diag.Diagnostic
		if err := a.annotate(node.Then); err != nil {
			errs = append(errs, err)
		}
		if node.Else != nil {
			if err := a.annotate(node.Else); err != nil {
				errs = append(errs, err)
			}
		}
		node.SetType(a.t.Void())
		return aggregateOrNil(node.Location(), "if branches", errs)

	case *ast.Loop:
		return a.annotateLoop(node)

	case *ast.Break:
		node.SetType(a.t.Void())
		return nil
	case *ast.Continue:
		node.SetType(a.t.Void())
		return nil

	case *ast.VarDecl:
		for i := range node.Bounds {
			if err := a.annotate(node.Bounds[i].Lo); err != nil {
				return err
			}
			if err := a.annotate(node.Bounds[i].Hi); err != nil {
				return err
			}
		}
		node.SetType(node.DeclaredType)
		return nil

	case *ast.FuncDecl:
		if node.Body != nil {
			if err := a.annotate(node.Body); err != nil {
				return err
			}
		}
		node.SetType(a.t.Void())
		return nil

	case *ast.Call:
		return a.annotateCall(node)

	case *ast.Input:
		return a.annotateInput(node)

	case *ast.Output:
		return a.annotateOutput(node)

	case *ast.Assert:
		// Desugared before resolution (§4.2); reachable only if a
		// caller built the tree directly without running PreResolve.
		if err := a.annotate(node.Expr); err != nil {
			return err
		}
		node.SetType(a.t.Void())
		return nil

	case *ast.Use:
		node.SetType(a.t.Void())
		return nil

	default:
		node.SetType(a.t.Void())
		return nil
	}
}

func (a *Annotator) annotateIdentifierRead(node *ast.Identifier) *diag.Diagnostic {
	if node.Symbol == ast.NoSymbol {
		return diag.New(diag.UndefinedIdentifier, node.Location(), "identifier %q was never resolved", node.Name)
	}
	sym := a.res.Symbol(node.Symbol)
	if sym.Type == nil {
		return diag.New(diag.MismatchedTypes, node.Location(), "%q has no known type", node.Name)
	}
	if !sym.Type.Readable() {
		return diag.New(diag.ReadOfOutParameter, node.Location(), "%q is an output-only parameter and cannot be read", node.Name)
	}
	node.SetType(sym.Type)
	return nil
}

func unwrapReference(t *types.Type) *types.Type {
	if t != nil && t.Shape() == types.Reference {
		return t.Elem()
	}
	return t
}

func (a *Annotator) annotateBinary(node *ast.Binary) *diag.Diagnostic {
	if err := a.annotate(node.Left); err != nil {
		return err
	}
	if err := a.annotate(node.Right); err != nil {
		return err
	}
	lt := unwrapReference(node.Left.Type())
	rt := unwrapReference(node.Right.Type())

	switch node.Operator {
	case "&&", "||":
		if err := a.coerce(&node.Left, a.t.Bool()); err != nil {
			return err
		}
		if err := a.coerce(&node.Right, a.t.Bool()); err != nil {
			return err
		}
		node.SetType(a.t.Bool())
		return nil

	case "<", "<=", ">", ">=", "==", "!=":
		if lt.IsNumeric() && rt.IsNumeric() {
			common := a.t.Int()
			if lt.IsPrimitive(types.Float) || rt.IsPrimitive(types.Float) {
				common = a.t.Float()
			}
			if err := a.coerce(&node.Left, common); err != nil {
				return err
			}
			if err := a.coerce(&node.Right, common); err != nil {
				return err
			}
		} else if !types.Same(lt, rt) {
			return diag.New(diag.MismatchedTypes, node.Location(),
				"cannot compare %s with %s", lt, rt)
		}
		node.SetType(a.t.Bool())
		return nil

	case "^":
		if !lt.IsNumeric() || !rt.IsNumeric() {
			return diag.New(diag.MismatchedTypes, node.Location(), "^ requires numeric operands")
		}
		node.SetType(types.PowerResult(a.t, lt, rt))
		return nil

	case "%":
		if !lt.IsPrimitive(types.Int) || !rt.IsPrimitive(types.Int) {
			return diag.New(diag.MismatchedTypes, node.Location(), "%% requires both operands to be Int")
		}
		node.SetType(a.t.Int())
		return nil

	case "+":
		if res, ok := types.ConcatResult(a.t, lt, rt); ok {
			node.SetType(res)
			return nil
		}
		fallthrough
	case "-", "*", "/":
		res, ok := types.BinaryNumericResult(a.t, node.Operator, lt, rt)
		if !ok {
			return diag.New(diag.MismatchedTypes, node.Location(),
				"%s requires numeric (or, for +, string-like) operands, got %s and %s", node.Operator, lt, rt)
		}
		if err := a.coerce(&node.Left, res); err != nil {
			return err
		}
		if err := a.coerce(&node.Right, res); err != nil {
			return err
		}
		node.SetType(res)
		return nil

	default:
		return diag.New(diag.MismatchedTypes, node.Location(), "unknown operator %q", node.Operator)
	}
}

func (a *Annotator) annotateAssign(node *ast.Assign) *diag.Diagnostic {
	if err := a.annotate(node.Value); err != nil {
		return err
	}
	sym := a.res.Symbol(node.Symbol)
	if sym.Type == nil {
		return diag.New(diag.MismatchedTypes, node.Location(), "%q has no known type", node.Name)
	}
	want := sym.Type
	if want.Shape() == types.Function {
		// Assigning to a function's own name sets its result value,
		// the local finishFunction returns.
		want = want.Result()
	}
	if !want.Mutable() {
		return diag.New(diag.AssignmentToConst, node.Location(), "%q is not assignable", node.Name)
	}
	if err := a.coerce(&node.Value, want); err != nil {
		return err
	}
	node.SetType(want)
	return nil
}

func (a *Annotator) annotateArrayElemAssign(node *ast.ArrayElemAssign) *diag.Diagnostic {
	for i := range node.Indices {
		if err := a.annotate(node.Indices[i]); err != nil {
			return err
		}
		if err := a.coerce(&node.Indices[i], a.t.Int()); err != nil {
			return err
		}
	}
	sym := a.res.Symbol(node.Symbol)
	if sym.Type == nil || sym.Type.Shape() != types.Array {
		return diag.New(diag.MismatchedTypes, node.Location(), "%q is not an array", node.Name)
	}
	if sym.Type.Arity() != len(node.Indices) {
		return diag.New(diag.MismatchedTypes, node.Location(),
			"%q has %d dimensions, %d indices given", node.Name, sym.Type.Arity(), len(node.Indices))
	}
	if err := a.annotate(node.Value); err != nil {
		return err
	}
	elem := sym.Type.Elem()
	if err := a.coerce(&node.Value, elem); err != nil {
		return err
	}
	node.SetType(elem)
	return nil
}

func (a *Annotator) annotateIndex(node *ast.Index) *diag.Diagnostic {
	if err := a.annotate(node.Collection); err != nil {
		return err
	}
	ct := node.Collection.Type()
	if err := a.annotate(node.Index); err != nil {
		return err
	}
	switch ct.Shape() {
	case types.Primitive:
		if !ct.IsPrimitive(types.StringK) {
			return diag.New(diag.MismatchedTypes, node.Location(), "cannot index %s", ct)
		}
		if err := a.coerce(&node.Index, a.t.Int()); err != nil {
			return err
		}
		node.SetType(a.t.Symbol()) // desugared to str_symbol_at post-annotation (§4.2)
		return nil
	case types.Array:
		if ct.Arity() != 1 {
			return diag.New(diag.MismatchedTypes, node.Location(), "use a multi-index for a %d-dimensional array", ct.Arity())
		}
		if err := a.coerce(&node.Index, a.t.Int()); err != nil {
			return err
		}
		node.SetType(ct.Elem())
		return nil
	default:
		return diag.New(diag.MismatchedTypes, node.Location(), "cannot index %s", ct)
	}
}

func (a *Annotator) annotateMultiIndex(node *ast.MultiIndex) *diag.Diagnostic {
	if err := a.annotate(node.Collection); err != nil {
		return err
	}
	ct := node.Collection.Type()
	if ct.Shape() != types.Array {
		return diag.New(diag.MismatchedTypes, node.Location(), "multi-index requires an array, got %s", ct)
	}
	if ct.Arity() != len(node.Indices) {
		return diag.New(diag.MismatchedTypes, node.Location(),
			"array has %d dimensions, %d indices given", ct.Arity(), len(node.Indices))
	}
	for i := range node.Indices {
		if err := a.annotate(node.Indices[i]); err != nil {
			return err
		}
		if err := a.coerce(&node.Indices[i], a.t.Int()); err != nil {
			return err
		}
	}
	node.SetType(ct.Elem())
	return nil
}

func (a *Annotator) annotateSlice(node *ast.Slice) *diag.Diagnostic {
	if err := a.annotate(node.Collection); err != nil {
		return err
	}
	if !node.Collection.Type().IsPrimitive(types.StringK) {
		return diag.New(diag.MismatchedTypes, node.Location(), "slicing is only defined on String")
	}
	if err := a.annotate(node.Start); err != nil {
		return err
	}
	if err := a.coerce(&node.Start, a.t.Int()); err != nil {
		return err
	}
	if err := a.annotate(node.End); err != nil {
		return err
	}
	if err := a.coerce(&node.End, a.t.Int()); err != nil {
		return err
	}
	node.SetType(a.t.String())
	return nil
}

func (a *Annotator) annotateLoop(node *ast.Loop) *diag.Diagnostic {
	var errs []*diag.Diagnostic
	if node.PreCond != nil {
		if err := a.annotate(node.PreCond); err != nil {
			errs = append(errs, err)
		} else if err := a.coerce(&node.PreCond, a.t.Bool()); err != nil {
			errs = append(errs, err)
		}
	}
	if node.PreBody != nil {
		if err := a.annotate(node.PreBody); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.annotate(node.Body); err != nil {
		errs = append(errs, err)
	}
	if node.PostBody != nil {
		if err := a.annotate(node.PostBody); err != nil {
			errs = append(errs, err)
		}
	}
	if node.PostCond != nil {
		if err := a.annotate(node.PostCond); err != nil {
			errs = append(errs, err)
		} else if err := a.coerce(&node.PostCond, a.t.Bool()); err != nil {
			errs = append(errs, err)
		}
	}
	node.SetType(a.t.Void())
	return aggregateOrNil(node.Location(), "loop", errs)
}

func (a *Annotator) annotateStmtList(owner ast.Node, stmts []ast.Node) *diag.Diagnostic {
	var errs []*diag.Diagnostic
	for _, s := range stmts {
		if err := a.annotate(s); err != nil {
			errs = append(errs, err)
		}
	}
	owner.SetType(a.t.Void())
	return aggregateOrNil(owner.Location(), "block", errs)
}

func aggregateOrNil(loc diag.Location, label string, errs []*diag.Diagnostic) *diag.Diagnostic {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return diag.Aggregate(diag.MismatchedTypes, loc, label+" has multiple errors", errs...)
	}
}

func (a *Annotator) annotateCall(node *ast.Call) *diag.Diagnostic {
	id, ok := node.Callee.(*ast.Identifier)
	if !ok {
		return diag.New(diag.FunctionCallNonIdentifier, node.Location(), "call target must be an identifier")
	}
	if id.Symbol == ast.NoSymbol {
		return diag.New(diag.UndefinedIdentifier, node.Location(), "undefined function %q", id.Name)
	}
	sym := a.res.Symbol(id.Symbol)
	if sym.Type == nil || sym.Type.Shape() != types.Function {
		return diag.New(diag.NotAFunction, node.Location(), "%q is not a function", id.Name)
	}
	id.SetType(sym.Type)
	params := sym.Type.Params()
	if len(params) != len(node.Args) {
		return diag.New(diag.WrongArgCount, node.Location(),
			"%q expects %d arguments, %d given", id.Name, len(params), len(node.Args))
	}
	for i := range node.Args {
		param := params[i]
		if sym.External {
			// External functions take every argument by value; their
			// parameter types are plain table primitives.
			param = param.WithAttrs(false, true)
		}
		if err := a.annotateCallArg(&node.Args[i], param); err != nil {
			return err
		}
	}
	node.SetType(sym.Type.Result())
	return nil
}

func (a *Annotator) annotateCallArg(slot *ast.Node, paramType *types.Type) *diag.Diagnostic {
	if paramType.Mutable() {
		id, ok := (*slot).(*ast.Identifier)
		if !ok {
			return diag.New(diag.ReferenceRequiresIdent, ast.LocationOf(*slot),
				"reference parameter requires an identifier argument")
		}
		if id.Symbol == ast.NoSymbol {
			return diag.New(diag.UndefinedIdentifier, id.Location(), "undefined identifier %q", id.Name)
		}
		sym := a.res.Symbol(id.Symbol)
		if sym.Type == nil || !sym.Type.Mutable() {
			return diag.New(diag.ReferenceRequiresIdent, id.Location(),
				"%q cannot be passed by reference: not writable", id.Name)
		}
		if paramType.Readable() && !sym.Type.Readable() {
			return diag.New(diag.ReadOfOutParameter, id.Location(),
				"%q cannot satisfy an input-output parameter: not readable", id.Name)
		}
		id.SetType(sym.Type)
		return nil
	}
	if err := a.annotate(*slot); err != nil {
		return err
	}
	return a.coerce(slot, paramType)
}

func (a *Annotator) annotateInput(node *ast.Input) *diag.Diagnostic {
	for i := range node.Args {
		if err := a.annotateLValue(&node.Args[i]); err != nil {
			return err
		}
	}
	node.SetType(a.t.Void())
	return nil
}

func (a *Annotator) annotateOutput(node *ast.Output) *diag.Diagnostic {
	for i := range node.Args {
		if err := a.annotate(node.Args[i]); err != nil {
			return err
		}
	}
	node.SetType(a.t.Void())
	return nil
}

// annotateLValue types an assignment target (Input's arguments,
// §4.2) without applying the output-parameter read restriction that
// a normal expression read would.
func (a *Annotator) annotateLValue(slot *ast.Node) *diag.Diagnostic {
	switch node := (*slot).(type) {
	case *ast.Identifier:
		if node.Symbol == ast.NoSymbol {
			return diag.New(diag.UndefinedIdentifier, node.Location(), "undefined identifier %q", node.Name)
		}
		sym := a.res.Symbol(node.Symbol)
		if sym.Type == nil {
			return diag.New(diag.MismatchedTypes, node.Location(), "%q has no known type", node.Name)
		}
		if !sym.Type.Mutable() {
			return diag.New(diag.AssignmentToConst, node.Location(), "%q is not assignable", node.Name)
		}
		node.SetType(sym.Type)
		return nil
	case *ast.Index:
		return a.annotateIndex(node)
	case *ast.MultiIndex:
		return a.annotateMultiIndex(node)
	default:
		return diag.New(diag.MismatchedTypes, ast.LocationOf(*slot), "not an assignable location")
	}
}

// coerce inserts an implicit cast on *slot if its type doesn't already
// match want. An Int<->Float conversion of a number literal is
// constant-folded into a new literal; every other conversion is
// wrapped in a Cast node (§3.2, §4.3).
func (a *Annotator) coerce(slot *ast.Node, want *types.Type) *diag.Diagnostic {
	n := *slot
	if n == nil {
		return nil
	}
	have := n.Type()
	if types.Same(have, want) {
		return nil
	}
	if !types.CanImplicitlyConvert(have, want) {
		return diag.New(diag.MismatchedTypes, n.Location(), "cannot implicitly convert %s to %s", have, want)
	}
	if lit, ok := n.(*ast.NumberLit); ok {
		*slot = foldLiteralCast(lit, want, a.t)
		return nil
	}
	cast := ast.NewCast(n.Location(), n, want)
	cast.SetType(want)
	*slot = cast
	return nil
}

func foldLiteralCast(lit *ast.NumberLit, want *types.Type, t *types.Table) ast.Node {
	switch {
	case want.IsPrimitive(types.Int) && lit.IsFloat:
		n := ast.NewNumberLitInt(lit.Location(), int64(lit.FloatValue))
		n.SetType(t.Int())
		return n
	case want.IsPrimitive(types.Float) && !lit.IsFloat:
		n := ast.NewNumberLitFloat(lit.Location(), float64(lit.IntValue))
		n.SetType(t.Float())
		return n
	default:
		cast := ast.NewCast(lit.Location(), lit, want)
		cast.SetType(want)
		return cast
	}
}
