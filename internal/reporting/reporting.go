// Package reporting renders a compile's diagnostic tree for a human or
// a downstream tool: colorized indented text on a terminal, or a JSON
// document otherwise. Grounded on the teacher's own reporting.go (a
// JSON/text/CSV/XML multi-format report writer gated on a Config
// struct) and its TTY-aware colorization convention, narrowed here to
// the two formats a compiler diagnostic tree actually needs.
package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"kumirc/internal/diag"
)

// ansi codes used to color a rendered diagnostic tree by nesting depth,
// the same depth-to-color convention the teacher's colorized console
// writer uses for severity.
const (
	ansiReset = "\x1b[0m"
	ansiRoot  = "\x1b[1;31m" // bold red: the outermost diagnostic
	ansiChild = "\x1b[33m"   // yellow: nested diagnostics
)

// Reporter renders diag.Diagnostic trees to an output stream.
type Reporter struct {
	w       io.Writer
	color   bool
	verbose int
}

// New returns a Reporter writing to w. Colorization is enabled only
// when w is a terminal, following go-isatty the way the pack's
// color-capable CLIs (sentra, termfx-morfx) gate ANSI output on a TTY
// check rather than always emitting escape codes.
func New(w io.Writer, verbosity int) *Reporter {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Reporter{w: w, color: color, verbose: verbosity}
}

// RenderTree writes d as an indented, optionally colorized tree: one
// line per diagnostic, two spaces of indent per nesting level,
// matching the teacher's own reporting.go's column-aligned multi-line
// rendering. At verbosity 0, only d itself is printed; each
// additional verbosity level descends one more level into d.Children.
func (r *Reporter) RenderTree(d *diag.Diagnostic) {
	r.renderNode(d, 0)
}

func (r *Reporter) renderNode(d *diag.Diagnostic, depth int) {
	if d == nil {
		return
	}
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}

	line := fmt.Sprintf("%s[%s]", indent, d.Kind)
	if loc := d.Loc.String(); loc != "" {
		line += " " + loc
	}
	line += ": " + d.Message

	if r.color {
		code := ansiChild
		if depth == 0 {
			code = ansiRoot
		}
		line = code + line + ansiReset
	}
	fmt.Fprintln(r.w, line)

	if depth >= r.verbose {
		return
	}
	for _, c := range d.Children {
		r.renderNode(c, depth+1)
	}
}

// jsonNode is the wire shape RenderJSON emits; a plain mirror of
// diag.Diagnostic since that type's fields are already exported but
// its Kind is a named string we want to serialize bare.
type jsonNode struct {
	Kind     string      `json:"kind"`
	Location string      `json:"location,omitempty"`
	Message  string      `json:"message"`
	Children []*jsonNode `json:"children,omitempty"`
}

// RenderJSON writes d as an indented JSON document, for callers (an
// editor integration, cmd/kumircd's HTTP responses) that need a
// structured diagnostic rather than the terminal tree.
func (r *Reporter) RenderJSON(d *diag.Diagnostic) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(toJSONNode(d))
}

func toJSONNode(d *diag.Diagnostic) *jsonNode {
	if d == nil {
		return nil
	}
	n := &jsonNode{Kind: string(d.Kind), Location: d.Loc.String(), Message: d.Message}
	for _, c := range d.Children {
		n.Children = append(n.Children, toJSONNode(c))
	}
	return n
}
