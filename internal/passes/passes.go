package passes

import (
	"kumirc/internal/ir"
	"kumirc/internal/types"
)

// Run applies the full post-lowering pipeline to every function in
// mod, including the synthesized module constructor/destructor: CFG
// construction, SSA construction, constant folding, de-SSA, register
// renumbering, and cleanup (§4.5-§4.10).
func Run(mod *ir.Module, t *types.Table) {
	for _, fn := range mod.Functions {
		RunFunction(fn, t)
	}
}

// RunFunction runs the pipeline on a single function, useful for tests
// that build one *ir.Function directly without a whole module.
func RunFunction(fn *ir.Function, t *types.Table) {
	ConstructSSA(fn, t)
	ConstantFold(fn)
	DeSSA(fn)
	BuildCFG(fn) // de-SSA appends blocks; leave LabelIndex/Succ/Pred complete
	RenumberTemps(fn)
	Cleanup(fn)
}
