package callgraph

import (
	"sort"

	"github.com/zboralski/lattice"

	"jarcalls/internal/bytecode"
)

// FuncInfo holds the data needed to build the call graph and CFG of one
// method. Calls maps a call instruction's bytecode offset to the callee
// identities recorded for it.
type FuncInfo struct {
	Name  string
	Insts []bytecode.Inst
	Calls map[int][]string
}

// ToLattice converts an adjacency to a lattice.Graph. Callers come first
// as nodes, followed by callees that never call anything; repeated edges
// are collapsed.
func ToLattice(adj *Adjacency) *lattice.Graph {
	g := &lattice.Graph{}
	seen := make(map[string]bool)
	for _, caller := range adj.callers {
		g.Nodes = append(g.Nodes, caller)
		seen[caller] = true
	}
	var leaves []string
	for _, caller := range adj.callers {
		for _, callee := range adj.callees[caller] {
			g.Edges = append(g.Edges, lattice.Edge{Caller: caller, Callee: callee})
			if !seen[callee] {
				seen[callee] = true
				leaves = append(leaves, callee)
			}
		}
	}
	sort.Strings(leaves)
	g.Nodes = append(g.Nodes, leaves...)
	g.Dedup()
	return g
}

// BuildCFG constructs a lattice.CFGGraph, one FuncCFG per method.
func BuildCFG(funcs []FuncInfo) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, f := range funcs {
		lcfg, _ := MethodCFG(f.Name, f.Insts, f.Calls)
		cg.Funcs = append(cg.Funcs, lcfg)
	}
	return cg
}

// MethodCFG builds a single-method lattice.FuncCFG from instructions and
// call targets keyed by offset. It also returns the number of basic blocks
// so callers can filter trivial methods.
func MethodCFG(name string, insts []bytecode.Inst, calls map[int][]string) (*lattice.FuncCFG, int) {
	bcfg := bytecode.BuildCFG(name, insts)
	return convertFuncCFG(&bcfg, calls), len(bcfg.Blocks)
}

// convertFuncCFG maps a bytecode.FuncCFG to a lattice.FuncCFG. Calls are
// placed into blocks by matching instruction offsets.
func convertFuncCFG(bcfg *bytecode.FuncCFG, calls map[int][]string) *lattice.FuncCFG {
	lcfg := &lattice.FuncCFG{Name: bcfg.Name}
	for _, bb := range bcfg.Blocks {
		lb := &lattice.BasicBlock{
			ID:    bb.ID,
			Start: bb.Start,
			End:   bb.End,
			Term:  bb.IsTerm,
		}
		for _, s := range bb.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{
				BlockID: s.BlockID,
				Cond:    s.Cond,
			})
		}
		for idx := bb.Start; idx < bb.End && idx < len(bcfg.Insts); idx++ {
			inst := bcfg.Insts[idx]
			targets, ok := calls[inst.Offset]
			if !ok {
				continue
			}
			if len(targets) == 0 {
				targets = []string{inst.Mnemonic}
			}
			for _, callee := range targets {
				lb.Calls = append(lb.Calls, lattice.CallSite{
					Offset: idx,
					Callee: callee,
				})
			}
		}
		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}
