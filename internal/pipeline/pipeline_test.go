package pipeline

import (
	"testing"

	"kumirc/internal/ast"
	"kumirc/internal/diag"
	"kumirc/internal/types"
)

// TestOutputDesugarsByArgumentType builds `output 1, 2.5` directly (no
// parser yet) and checks the fixpoint settles with the Output node
// replaced by a block of typed runtime calls.
func TestOutputDesugarsByArgumentType(t *testing.T) {
	tab := types.NewTable()
	loc := diag.Location{}

	body := ast.NewBlock(loc, []ast.Node{
		ast.NewOutput(loc, []ast.Node{
			ast.NewNumberLitInt(loc, 1),
			ast.NewNumberLitFloat(loc, 2.5),
		}),
	}, false)
	main := ast.NewFuncDecl(loc, "main", nil, body, tab.Void())

	result, err := Run(main, tab, nil)
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	fn := result.Root.(*ast.FuncDecl)
	blk := fn.Body.(*ast.Block)
	if len(blk.Stmts) != 1 {
		t.Fatalf("expected the function body to still hold one statement, got %d", len(blk.Stmts))
	}
	outputBlock, ok := blk.Stmts[0].(*ast.Block)
	if !ok {
		t.Fatalf("expected Output to desugar into a Block, got %T", blk.Stmts[0])
	}
	if len(outputBlock.Stmts) != 2 {
		t.Fatalf("expected two output calls, got %d", len(outputBlock.Stmts))
	}

	first := outputBlock.Stmts[0].(*ast.Call)
	firstCallee := first.Callee.(*ast.Identifier)
	if firstCallee.Name != "output_int64" {
		t.Fatalf("expected output_int64 for the Int argument, got %s", firstCallee.Name)
	}
	second := outputBlock.Stmts[1].(*ast.Call)
	secondCallee := second.Callee.(*ast.Identifier)
	if secondCallee.Name != "output_double" {
		t.Fatalf("expected output_double for the Float argument, got %s", secondCallee.Name)
	}
	if firstCallee.Symbol == ast.NoSymbol || secondCallee.Symbol == ast.NoSymbol {
		t.Fatal("expected the synthesized runtime calls to be resolved against the runtime module")
	}
}

// TestStringConcatDesugarsToRuntimeCall exercises the `+`-as-concat
// path end to end, including the implicit Symbol->String promotion.
func TestStringConcatDesugarsToRuntimeCall(t *testing.T) {
	tab := types.NewTable()
	loc := diag.Location{}

	body := ast.NewBlock(loc, []ast.Node{
		ast.NewVarDecl(loc, "s", tab.String()),
		ast.NewAssign(loc, "s", ast.NewBinary(loc, "+", ast.NewStringLit(loc, []byte("a")), ast.NewStringLit(loc, []byte("b")))),
	}, false)
	main := ast.NewFuncDecl(loc, "main", nil, body, tab.Void())

	result, err := Run(main, tab, nil)
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	fn := result.Root.(*ast.FuncDecl)
	blk := fn.Body.(*ast.Block)
	assign := blk.Stmts[1].(*ast.Assign)
	call, ok := assign.Value.(*ast.Call)
	if !ok {
		t.Fatalf("expected string + to desugar into a call, got %T", assign.Value)
	}
	callee := call.Callee.(*ast.Identifier)
	if callee.Name != "str_concat" {
		t.Fatalf("expected str_concat, got %s", callee.Name)
	}
}
