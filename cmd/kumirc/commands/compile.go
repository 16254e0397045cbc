// Package commands implements cmd/kumirc's subcommands, grounded on
// the teacher's cmd/sentra/main.go command-dispatch shape (one
// function per subcommand, flag parsing with the standard flag
// package, log.Printf/fmt for all driver output).
package commands

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"kumirc/internal/config"
	"kumirc/internal/diag"
	"kumirc/internal/ir"
	"kumirc/internal/lower"
	"kumirc/internal/module"
	"kumirc/internal/parser"
	"kumirc/internal/passes"
	"kumirc/internal/pipeline"
	"kumirc/internal/reporting"
	"kumirc/internal/store"
	"kumirc/internal/types"
)

// Compile runs the full pipeline over one source file: parse, analyze
// to a fixpoint, lower to IR, run the SSA optimization pipeline, and
// print a summary. A --cache DSN skips lowering entirely on a hit.
func Compile(args []string) int {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	envFile := fs.String("env", "", "optional .env file with KUMIRC_* overrides")
	cacheDSN := fs.String("cache", "", "compiled-module cache DSN (overrides KUMIRC_CACHE_DSN); empty disables caching")
	jsonDiag := fs.Bool("json", false, "render diagnostics as JSON instead of a colorized tree")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: kumirc compile [flags] <file.kum>")
		return 2
	}
	path := fs.Arg(0)

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Printf("kumirc: loading config: %v", err)
		return 1
	}
	if *cacheDSN != "" {
		cfg.CacheDSN = *cacheDSN
	}

	source, err := os.ReadFile(path)
	if err != nil {
		log.Printf("kumirc: reading %s: %v", path, err)
		return 1
	}

	var cache *store.Store
	var sourceHash string
	if cfg.CacheDSN != "" {
		cache, err = store.Open(cfg.CacheDSN)
		if err != nil {
			log.Printf("kumirc: cache unavailable, compiling without it: %v", err)
		} else {
			defer cache.Close()
			sourceHash = store.SourceHash(source)
			if summary, hit, lookupErr := cache.Get(sourceHash); lookupErr != nil {
				log.Printf("kumirc: cache lookup failed: %v", lookupErr)
			} else if hit {
				fmt.Println(summary.String())
				return 0
			}
		}
	}

	tab := types.NewTable()
	root, perr := parser.Parse(string(source), path, tab)
	if perr != nil {
		report(*jsonDiag, cfg.Verbosity, perr)
		return 1
	}

	reg := module.NewRegistry()
	result, perr := pipeline.Run(root, tab, reg)
	if perr != nil {
		report(*jsonDiag, cfg.Verbosity, perr)
		return 1
	}

	irMod, lerr := lower.Lower(result.Root, result.Resolver, tab, reg)
	if lerr != nil {
		report(*jsonDiag, cfg.Verbosity, lerr)
		return 1
	}
	irMod.BuildID = store.NewBuildID()
	passes.Run(irMod, tab)

	summary := store.Summary{
		BuildID:       irMod.BuildID,
		FunctionCount: len(irMod.Functions),
		IRBytes:       estimateIRBytes(irMod),
		CompiledAt:    time.Now().UTC(),
	}
	fmt.Println(summary.String())

	if cache != nil && sourceHash != "" {
		if err := cache.Put(sourceHash, summary); err != nil {
			log.Printf("kumirc: caching compile result: %v", err)
		}
	}
	return 0
}

func report(asJSON bool, verbosity int, d *diag.Diagnostic) {
	r := reporting.New(os.Stdout, verbosity)
	if asJSON {
		r.RenderJSON(d)
		return
	}
	r.RenderTree(d)
}

// estimateIRBytes gives a rough size for the human-readable summary:
// one unit per instruction/phi plus a fixed per-block/function
// overhead, not a real serialized encoding (§6.3's opcode encoding is
// a backend concern this driver does not implement).
func estimateIRBytes(mod *ir.Module) int {
	total := 0
	for _, fn := range mod.Functions {
		total += 64 // function header: name, signature, temp/local tables
		for _, blk := range fn.Blocks {
			total += 16 // block header: label, pred/succ lists
			total += len(blk.Phis) * 24
			total += len(blk.Instrs) * 24
		}
	}
	return total
}
