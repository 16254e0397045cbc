package annotate

import (
	"testing"

	"kumirc/internal/ast"
	"kumirc/internal/diag"
	"kumirc/internal/symbols"
	"kumirc/internal/types"
)

func newResolved(t *testing.T, tab *types.Table, program *ast.FuncDecl) (*symbols.Resolver, *diag.Diagnostic) {
	t.Helper()
	res := symbols.NewResolver(tab)
	err := res.Resolve(program)
	return res, err
}

func TestBinaryArithmeticPromotesToFloat(t *testing.T) {
	tab := types.NewTable()
	loc := diag.Location{}

	body := ast.NewBlock(loc, []ast.Node{
		ast.NewVarDecl(loc, "r", tab.Float()),
		ast.NewAssign(loc, "r", ast.NewBinary(loc, "+", ast.NewNumberLitInt(loc, 1), ast.NewNumberLitFloat(loc, 2.5))),
	}, false)
	fn := ast.NewFuncDecl(loc, "main", nil, body, tab.Void())

	res, rerr := newResolved(t, tab, fn)
	if rerr != nil {
		t.Fatalf("resolve failed: %v", rerr)
	}

	a := New(res, tab)
	if err := a.Annotate(fn); err != nil {
		t.Fatalf("annotate failed: %v", err)
	}

	assign := body.Stmts[1].(*ast.Assign)
	if assign.Value.Type() != tab.Float() {
		t.Fatalf("expected assign value typed Float, got %s", assign.Value.Type())
	}
	bin := assign.Value.(*ast.Binary)
	if bin.Left.Type() != tab.Float() {
		t.Fatalf("expected int literal promoted to Float, got %s", bin.Left.Type())
	}
	if _, ok := bin.Left.(*ast.NumberLit); !ok {
		t.Fatalf("expected literal promotion to fold in place, got %T", bin.Left)
	}
}

func TestDivisionAlwaysYieldsFloat(t *testing.T) {
	tab := types.NewTable()
	loc := diag.Location{}

	div := ast.NewBinary(loc, "/", ast.NewNumberLitInt(loc, 7), ast.NewNumberLitInt(loc, 2))
	body := ast.NewBlock(loc, []ast.Node{
		ast.NewVarDecl(loc, "r", tab.Float()),
		ast.NewAssign(loc, "r", div),
	}, false)
	fn := ast.NewFuncDecl(loc, "main", nil, body, tab.Void())

	res, rerr := newResolved(t, tab, fn)
	if rerr != nil {
		t.Fatalf("resolve failed: %v", rerr)
	}
	a := New(res, tab)
	if err := a.Annotate(fn); err != nil {
		t.Fatalf("annotate failed: %v", err)
	}
	if div.Type() != tab.Float() {
		t.Fatalf("expected / to yield Float, got %s", div.Type())
	}
}

func TestModuloRejectsFloatOperand(t *testing.T) {
	tab := types.NewTable()
	loc := diag.Location{}

	mod := ast.NewBinary(loc, "%", ast.NewNumberLitInt(loc, 7), ast.NewNumberLitFloat(loc, 2))
	body := ast.NewBlock(loc, []ast.Node{
		ast.NewVarDecl(loc, "r", tab.Int()),
		ast.NewAssign(loc, "r", mod),
	}, false)
	fn := ast.NewFuncDecl(loc, "main", nil, body, tab.Void())

	res, rerr := newResolved(t, tab, fn)
	if rerr != nil {
		t.Fatalf("resolve failed: %v", rerr)
	}
	a := New(res, tab)
	if err := a.Annotate(fn); err == nil {
		t.Fatal("expected an error for % with a Float operand")
	} else if err.Kind != diag.MismatchedTypes {
		t.Fatalf("expected mismatched-types, got %s", err.Kind)
	}
}

func TestAssignToOutParameterIsMutableButUnreadable(t *testing.T) {
	tab := types.NewTable()
	loc := diag.Location{}

	out := &ast.Param{Name: "res", Type: tab.Int(), Mode: ast.ParamOut}
	body := ast.NewBlock(loc, []ast.Node{
		ast.NewAssign(loc, "res", ast.NewNumberLitInt(loc, 1)),
	}, false)
	fn := ast.NewFuncDecl(loc, "setIt", []*ast.Param{out}, body, tab.Void())

	res, rerr := newResolved(t, tab, fn)
	if rerr != nil {
		t.Fatalf("resolve failed: %v", rerr)
	}
	a := New(res, tab)
	if err := a.Annotate(fn); err != nil {
		t.Fatalf("assigning to an out-parameter should succeed: %v", err)
	}

	readBody := ast.NewBlock(loc, []ast.Node{
		ast.NewVarDecl(loc, "x", tab.Int()),
		ast.NewAssign(loc, "x", ast.NewIdentifier(loc, "res")),
	}, false)
	fn2 := ast.NewFuncDecl(loc, "readIt", []*ast.Param{{Name: "res", Type: tab.Int(), Mode: ast.ParamOut}}, readBody, tab.Void())
	res2, rerr2 := newResolved(t, tab, fn2)
	if rerr2 != nil {
		t.Fatalf("resolve failed: %v", rerr2)
	}
	a2 := New(res2, tab)
	if err := a2.Annotate(fn2); err == nil {
		t.Fatal("expected reading an out-parameter to fail")
	} else if err.Kind != diag.ReadOfOutParameter {
		t.Fatalf("expected read-of-out-parameter, got %s", err.Kind)
	}
}

func TestCallArgCountMismatch(t *testing.T) {
	tab := types.NewTable()
	loc := diag.Location{}

	callee := ast.NewFuncDecl(loc, "f", []*ast.Param{{Name: "a", Type: tab.Int(), Mode: ast.ParamIn}}, ast.NewBlock(loc, nil, false), tab.Int())
	call := ast.NewCall(loc, ast.NewIdentifier(loc, "f"), nil)
	main := ast.NewFuncDecl(loc, "main", nil, ast.NewBlock(loc, []ast.Node{call}, false), tab.Void())

	root := ast.NewBlock(loc, []ast.Node{callee, main}, true)
	res := symbols.NewResolver(tab)
	if err := res.Resolve(root); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	a := New(res, tab)
	if err := a.Annotate(root); err == nil {
		t.Fatal("expected a wrong-arg-count error")
	} else if err.Kind != diag.WrongArgCount {
		t.Fatalf("expected wrong-arg-count, got %s", err.Kind)
	}
}
