package bytecode

import "testing"

// makeInst creates a synthetic Inst at the given offset.
func makeInst(off int, op byte, size int, targets ...int) Inst {
	return Inst{Offset: off, Op: op, Size: size, Mnemonic: Mnemonic(op), Targets: targets}
}

func TestBuildCFG_Linear(t *testing.T) {
	insts := []Inst{
		makeInst(0, 0x00, 1),
		makeInst(1, 0x00, 1),
		makeInst(2, OpReturn, 1),
	}
	cfg := BuildCFG("linear", insts)
	if len(cfg.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(cfg.Blocks))
	}
	blk := cfg.Blocks[0]
	if blk.Start != 0 || blk.End != 3 {
		t.Errorf("block range = [%d,%d), want [0,3)", blk.Start, blk.End)
	}
	if !blk.IsTerm || !blk.IsEntry {
		t.Errorf("block = %+v, want entry and terminal", blk)
	}
	if len(blk.Succs) != 0 {
		t.Errorf("succs = %d, want 0", len(blk.Succs))
	}
}

func TestBuildCFG_ConditionalBranch(t *testing.T) {
	//   0: ifeq 7
	//   3: nop
	//   4: ireturn
	//   5: nop (dead)
	//   6: nop
	//   7: return
	insts := []Inst{
		makeInst(0, OpIfeq, 3, 7),
		makeInst(3, 0x00, 1),
		makeInst(4, OpIreturn, 1),
		makeInst(5, 0x00, 1),
		makeInst(6, 0x00, 1),
		makeInst(7, OpReturn, 1),
	}
	cfg := BuildCFG("cond", insts)

	// Leaders: 0, 1 (after ifeq), 3 (after ireturn), 5 (target)
	if len(cfg.Blocks) != 4 {
		t.Fatalf("blocks = %d, want 4", len(cfg.Blocks))
	}
	b0 := cfg.Blocks[0]
	if len(b0.Succs) != 2 {
		t.Fatalf("block 0 succs = %d, want 2", len(b0.Succs))
	}
	if b0.Succs[0] != (Succ{BlockID: 3, Cond: "T"}) {
		t.Errorf("block 0 taken = %+v, want {3 T}", b0.Succs[0])
	}
	if b0.Succs[1] != (Succ{BlockID: 1, Cond: "F"}) {
		t.Errorf("block 0 fallthrough = %+v, want {1 F}", b0.Succs[1])
	}
	if !cfg.Blocks[1].IsTerm {
		t.Error("block 1 should be terminal (ireturn)")
	}
	if b2 := cfg.Blocks[2]; len(b2.Succs) != 1 || b2.Succs[0].BlockID != 3 {
		t.Errorf("block 2 succs = %+v, want fallthrough to 3", b2.Succs)
	}
	if !cfg.Blocks[3].IsTerm {
		t.Error("block 3 should be terminal (return)")
	}
}

func TestBuildCFG_UnconditionalBranch(t *testing.T) {
	insts := []Inst{
		makeInst(0, OpGoto, 3, 4),
		makeInst(3, 0x00, 1),
		makeInst(4, OpReturn, 1),
	}
	cfg := BuildCFG("uncond", insts)
	if len(cfg.Blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(cfg.Blocks))
	}
	b0 := cfg.Blocks[0]
	if len(b0.Succs) != 1 {
		t.Fatalf("block 0 succs = %d, want 1", len(b0.Succs))
	}
	if b0.Succs[0].BlockID != 2 || b0.Succs[0].Cond != "" {
		t.Errorf("block 0 succ = {%d, %q}, want {2, \"\"}", b0.Succs[0].BlockID, b0.Succs[0].Cond)
	}
}

func TestBuildCFG_Athrow(t *testing.T) {
	insts := []Inst{
		makeInst(0, 0x01, 1),
		makeInst(1, OpAthrow, 1),
	}
	cfg := BuildCFG("throw", insts)
	if len(cfg.Blocks) != 1 || !cfg.Blocks[0].IsTerm {
		t.Errorf("blocks = %+v, want one terminal block", cfg.Blocks)
	}
}

func TestBuildCFG_FallsOffEnd(t *testing.T) {
	cfg := BuildCFG("open", []Inst{makeInst(0, 0x00, 1)})
	if len(cfg.Blocks) != 1 || !cfg.Blocks[0].IsTerm {
		t.Errorf("blocks = %+v, want one terminal block", cfg.Blocks)
	}
}

func TestBuildCFG_Empty(t *testing.T) {
	cfg := BuildCFG("empty", nil)
	if len(cfg.Blocks) != 0 {
		t.Errorf("blocks = %d, want 0", len(cfg.Blocks))
	}
}

func TestDecodeBranchKinds(t *testing.T) {
	tests := []struct {
		inst  Inst
		none  bool
		ret   bool
		cond  bool
		label string
	}{
		{inst: makeInst(0, 0x00, 1), none: true},
		{inst: makeInst(0, OpInvokestatic, 3), none: true},
		{inst: makeInst(0, OpReturn, 1), ret: true},
		{inst: makeInst(0, OpAthrow, 1), ret: true},
		{inst: makeInst(0, OpRet, 2), ret: true},
		{inst: makeInst(0, OpGoto, 3, 8), label: ""},
		{inst: makeInst(0, OpGotoW, 5, 8), label: ""},
		{inst: makeInst(0, OpJsr, 3, 8), cond: true, label: "jsr"},
		{inst: makeInst(0, OpIfnull, 3, 8), cond: true, label: "T"},
		{inst: makeInst(0, OpIfAcmpne, 3, 8), cond: true, label: "T"},
	}
	for _, tt := range tests {
		bi := DecodeBranch(tt.inst)
		if tt.none {
			if bi != nil {
				t.Errorf("%s: branch = %+v, want nil", tt.inst.Mnemonic, bi)
			}
			continue
		}
		if bi == nil {
			t.Errorf("%s: branch = nil", tt.inst.Mnemonic)
			continue
		}
		if bi.IsRet != tt.ret || bi.Cond != tt.cond {
			t.Errorf("%s: ret=%v cond=%v, want ret=%v cond=%v", tt.inst.Mnemonic, bi.IsRet, bi.Cond, tt.ret, tt.cond)
		}
		if !tt.ret && (len(bi.Labels) != 1 || bi.Labels[0] != tt.label) {
			t.Errorf("%s: labels = %v, want [%q]", tt.inst.Mnemonic, bi.Labels, tt.label)
		}
	}
}
