package bytecode

import "strconv"

// JVM control transfer detection. These functions identify basic-block
// terminators and their successors.

// BranchInfo describes a control transfer instruction.
type BranchInfo struct {
	Targets []int    // absolute targets; switch default first
	Labels  []string // successor labels parallel to Targets
	Cond    bool     // true if the instruction can fall through
	IsRet   bool     // true for returns, athrow and ret
	IsSub   bool     // jsr/jsr_w: execution resumes after the subroutine
}

// DecodeBranch returns the control transfer described by inst, or nil if
// the instruction always falls through to the next one.
func DecodeBranch(inst Inst) *BranchInfo {
	op := inst.Op
	switch {
	case op >= OpIreturn && op <= OpReturn, op == OpAthrow:
		return &BranchInfo{IsRet: true}
	case op == OpRet && !inst.Wide, inst.Wide && inst.Mnemonic == "ret":
		return &BranchInfo{IsRet: true}
	case op == OpGoto || op == OpGotoW:
		return &BranchInfo{Targets: inst.Targets, Labels: []string{""}}
	case op == OpJsr || op == OpJsrW:
		return &BranchInfo{Targets: inst.Targets, Labels: []string{"jsr"}, Cond: true, IsSub: true}
	case (op >= OpIfeq && op <= OpIfAcmpne) || op == OpIfnull || op == OpIfnonnull:
		return &BranchInfo{Targets: inst.Targets, Labels: []string{"T"}, Cond: true}
	case op == OpTableswitch || op == OpLookupswitch:
		labels := make([]string, len(inst.Targets))
		labels[0] = "default"
		for i, k := range inst.Keys {
			labels[i+1] = caseLabel(k)
		}
		return &BranchInfo{Targets: inst.Targets, Labels: labels}
	}
	return nil
}

func caseLabel(k int32) string {
	return "case " + strconv.Itoa(int(k))
}
