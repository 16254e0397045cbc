package commands

import (
	"flag"
	"fmt"
	"os"

	"kumirc/internal/module"
	"kumirc/internal/parser"
	"kumirc/internal/pipeline"
	"kumirc/internal/types"
)

// Check runs the parser and the analysis pipeline (resolve/annotate to
// a fixpoint) without lowering or running the SSA pipeline, for a fast
// syntax-and-types-only pass over a source file.
func Check(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	jsonDiag := fs.Bool("json", false, "render diagnostics as JSON instead of a colorized tree")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: kumirc check [flags] <file.kum>")
		return 2
	}
	path := fs.Arg(0)

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kumirc: reading %s: %v\n", path, err)
		return 1
	}

	tab := types.NewTable()
	root, perr := parser.Parse(string(source), path, tab)
	if perr != nil {
		report(*jsonDiag, 3, perr)
		return 1
	}

	reg := module.NewRegistry()
	if _, perr := pipeline.Run(root, tab, reg); perr != nil {
		report(*jsonDiag, 3, perr)
		return 1
	}

	fmt.Println("ok")
	return 0
}
