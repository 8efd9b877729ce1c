package bytecode

import "sort"

// BasicBlock represents a sequence of instructions with a single entry point.
type BasicBlock struct {
	ID      int
	Start   int    // index into FuncCFG.Insts (inclusive)
	End     int    // index into FuncCFG.Insts (exclusive)
	Succs   []Succ // successor edges
	IsEntry bool
	IsTerm  bool // ends with a return, athrow or ret
}

// Succ describes a control-flow successor edge.
type Succ struct {
	BlockID int
	Cond    string // "" = unconditional, "T" = taken, "F" = fallthrough, "case N", "default", "jsr"
}

// FuncCFG is a per-method control flow graph.
type FuncCFG struct {
	Name   string
	Blocks []BasicBlock
	Insts  []Inst
}

// BuildCFG constructs a control flow graph from a method's instructions.
// The algorithm:
//  1. Find block leaders: index 0, branch targets, instructions after transfers.
//  2. Partition instructions into blocks by leaders.
//  3. Compute successor edges from each block's last instruction.
//
// Exception handlers are not modeled; handler code that is not otherwise
// reachable forms blocks without predecessors.
func BuildCFG(name string, insts []Inst) FuncCFG {
	if len(insts) == 0 {
		return FuncCFG{Name: name, Insts: insts}
	}

	offToIdx := make(map[int]int, len(insts))
	for i, inst := range insts {
		offToIdx[inst.Offset] = i
	}

	// Pass 1: Identify block leaders.
	leaders := map[int]bool{0: true}
	for i, inst := range insts {
		bi := DecodeBranch(inst)
		if bi == nil {
			continue
		}
		if i+1 < len(insts) {
			leaders[i+1] = true
		}
		for _, t := range bi.Targets {
			if idx, ok := offToIdx[t]; ok {
				leaders[idx] = true
			}
		}
	}

	sorted := make([]int, 0, len(leaders))
	for idx := range leaders {
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)

	// Pass 2: Partition into blocks.
	blocks := make([]BasicBlock, len(sorted))
	leaderToBlock := make(map[int]int, len(sorted))
	for i, start := range sorted {
		end := len(insts)
		if i+1 < len(sorted) {
			end = sorted[i+1]
		}
		blocks[i] = BasicBlock{
			ID:      i,
			Start:   start,
			End:     end,
			IsEntry: start == 0,
		}
		leaderToBlock[start] = i
	}

	blockAt := func(off int) (int, bool) {
		idx, ok := offToIdx[off]
		if !ok {
			return 0, false
		}
		bid, ok := leaderToBlock[idx]
		return bid, ok
	}

	// Pass 3: Compute successors.
	for i := range blocks {
		blk := &blocks[i]
		last := insts[blk.End-1]
		bi := DecodeBranch(last)

		if bi == nil {
			if next, ok := leaderToBlock[blk.End]; ok {
				blk.Succs = append(blk.Succs, Succ{BlockID: next})
			} else {
				blk.IsTerm = true // falls off the end of the code
			}
			continue
		}
		if bi.IsRet {
			blk.IsTerm = true
			continue
		}

		for ti, t := range bi.Targets {
			if bid, ok := blockAt(t); ok {
				blk.Succs = append(blk.Succs, Succ{BlockID: bid, Cond: bi.Labels[ti]})
			}
		}
		if bi.Cond {
			if next, ok := leaderToBlock[blk.End]; ok {
				blk.Succs = append(blk.Succs, Succ{BlockID: next, Cond: "F"})
			}
		}
	}

	return FuncCFG{
		Name:   name,
		Blocks: blocks,
		Insts:  insts,
	}
}
