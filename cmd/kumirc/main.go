// cmd/kumirc is the compiler driver: a hand-rolled os.Args dispatcher
// grounded directly on cmd/sentra/main.go's own command-alias map and
// showUsage/showVersion helpers, the nearer ancestor for a
// single-binary compiler driver than the rest of the pack's
// cobra-based CLIs.
package main

import (
	"fmt"
	"os"

	"kumirc/cmd/kumirc/commands"
)

const version = "0.1.0"

var commandAliases = map[string]string{
	"c": "compile",
	"k": "check",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		os.Exit(2)
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}
	rest := args[1:]

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		showVersion()
	case "compile":
		os.Exit(commands.Compile(rest))
	case "check":
		os.Exit(commands.Check(rest))
	default:
		fmt.Fprintf(os.Stderr, "kumirc: unknown command %q\n", cmd)
		showUsage()
		os.Exit(2)
	}
}

func showUsage() {
	fmt.Println(`kumirc - the KuMir compiler mid-end driver

Usage:
  kumirc compile [--env FILE] [--cache DSN] [--json] <file.kum>
  kumirc check [--json] <file.kum>
  kumirc version
  kumirc help

compile runs the full pipeline (parse, analyze, lower, SSA optimize)
and prints a one-line summary. check runs parsing and analysis only.`)
}

func showVersion() {
	fmt.Printf("kumirc %s\n", version)
}
