package bytecode

import (
	"errors"
	"testing"
)

func TestDecodeSimple(t *testing.T) {
	// aload_0; invokevirtual #7; bipush 9; istore_1; return
	code := []byte{0x2a, 0xb6, 0x00, 0x07, 0x10, 0x09, 0x3c, 0xb1}
	insts, err := Decode(code, Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		off  int
		name string
		size int
	}{
		{0, "aload_0", 1},
		{1, "invokevirtual", 3},
		{4, "bipush", 2},
		{6, "istore_1", 1},
		{7, "return", 1},
	}
	if len(insts) != len(want) {
		t.Fatalf("insts = %d, want %d", len(insts), len(want))
	}
	for i, w := range want {
		got := insts[i]
		if got.Offset != w.off || got.Mnemonic != w.name || got.Size != w.size {
			t.Errorf("insts[%d] = {%d %s %d}, want {%d %s %d}", i, got.Offset, got.Mnemonic, got.Size, w.off, w.name, w.size)
		}
	}
	if insts[1].Index != 7 {
		t.Errorf("invokevirtual index = %d, want 7", insts[1].Index)
	}
}

func TestDecodeInvokeInterfaceAndDynamic(t *testing.T) {
	// invokeinterface #258, 1; invokedynamic #5; return
	code := []byte{
		0xb9, 0x01, 0x02, 0x01, 0x00,
		0xba, 0x00, 0x05, 0x00, 0x00,
		0xb1,
	}
	insts, err := Decode(code, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(insts) != 3 {
		t.Fatalf("insts = %d, want 3", len(insts))
	}
	if insts[0].Index != 258 || insts[0].Size != 5 {
		t.Errorf("invokeinterface = %+v", insts[0])
	}
	if insts[1].Index != 5 || insts[1].Offset != 5 {
		t.Errorf("invokedynamic = %+v", insts[1])
	}
}

func TestDecodeTableswitch(t *testing.T) {
	// 0: iload_1
	// 1: tableswitch, padded to offset 4, default=28 low=0 high=1 {24, 26}
	// 24..27: nop
	// 28: return
	code := []byte{
		0x1b,
		0xaa, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x1b,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x17,
		0x00, 0x00, 0x00, 0x19,
		0x00, 0x00, 0x00, 0x00,
		0xb1,
	}
	insts, err := Decode(code, Options{})
	if err != nil {
		t.Fatal(err)
	}
	sw := insts[1]
	if sw.Mnemonic != "tableswitch" || sw.Size != 23 {
		t.Fatalf("switch = %+v", sw)
	}
	wantTargets := []int{28, 24, 26}
	if len(sw.Targets) != 3 {
		t.Fatalf("targets = %v", sw.Targets)
	}
	for i, w := range wantTargets {
		if sw.Targets[i] != w {
			t.Errorf("targets[%d] = %d, want %d", i, sw.Targets[i], w)
		}
	}
	if len(sw.Keys) != 2 || sw.Keys[0] != 0 || sw.Keys[1] != 1 {
		t.Errorf("keys = %v, want [0 1]", sw.Keys)
	}

	cfg := BuildCFG("T.sw", insts)
	var labels []string
	for _, b := range cfg.Blocks {
		for _, succ := range b.Succs {
			if succ.Cond != "" {
				labels = append(labels, succ.Cond)
			}
		}
	}
	want := []string{"default", "case 0", "case 1"}
	if len(labels) != len(want) {
		t.Fatalf("labels = %v, want %v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("labels[%d] = %q, want %q", i, labels[i], want[i])
		}
	}
}

func TestDecodeLookupswitch(t *testing.T) {
	// 0: lookupswitch, padded to offset 4, default=21 {7: 20}
	// 20: nop
	// 21: return
	code := []byte{
		0xab, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x15,
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x07, 0x00, 0x00, 0x00, 0x14,
		0x00,
		0xb1,
	}
	insts, err := Decode(code, Options{})
	if err != nil {
		t.Fatal(err)
	}
	sw := insts[0]
	if sw.Size != 20 {
		t.Errorf("size = %d, want 20", sw.Size)
	}
	if len(sw.Targets) != 2 || sw.Targets[0] != 21 || sw.Targets[1] != 20 {
		t.Errorf("targets = %v, want [21 20]", sw.Targets)
	}
	if len(sw.Keys) != 1 || sw.Keys[0] != 7 {
		t.Errorf("keys = %v, want [7]", sw.Keys)
	}
}

func TestDecodeWide(t *testing.T) {
	// wide iload 256; wide iinc 256 5; return
	code := []byte{
		0xc4, 0x15, 0x01, 0x00,
		0xc4, 0x84, 0x01, 0x00, 0x00, 0x05,
		0xb1,
	}
	insts, err := Decode(code, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(insts) != 3 {
		t.Fatalf("insts = %d, want 3", len(insts))
	}
	if !insts[0].Wide || insts[0].Mnemonic != "iload" || insts[0].Size != 4 {
		t.Errorf("wide iload = %+v", insts[0])
	}
	if insts[1].Mnemonic != "iinc" || insts[1].Size != 6 {
		t.Errorf("wide iinc = %+v", insts[1])
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want error
	}{
		{"undefined opcode", []byte{0xcb}, ErrBadOpcode},
		{"truncated operand", []byte{0xb6, 0x00}, ErrTruncated},
		{"target outside", []byte{0xa7, 0x00, 0x10}, ErrBadTarget},
		{"target mid-instruction", []byte{0xa7, 0x00, 0x04, 0xb6, 0x00, 0x01, 0xb1}, ErrBadTarget},
		{"bad wide", []byte{0xc4, 0x00}, ErrBadOpcode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.code, Options{})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeInstructionCap(t *testing.T) {
	code := []byte{0x00, 0x00, 0x00, 0xb1}
	if _, err := Decode(code, Options{MaxInsts: 2}); !errors.Is(err, ErrTooLong) {
		t.Errorf("err = %v, want ErrTooLong", err)
	}
}

func TestExtractCallSites(t *testing.T) {
	code := []byte{
		0x2a,             // 0 aload_0
		0xb7, 0x00, 0x01, // 1 invokespecial #1
		0xb8, 0x00, 0x02, // 4 invokestatic #2
		0x57,             // 7 pop
		0xb8, 0x00, 0x02, // 8 invokestatic #2
		0xb1,             // 11 return
	}
	insts, err := Decode(code, Options{})
	if err != nil {
		t.Fatal(err)
	}
	lines := func(off int) int {
		if off < 8 {
			return 3
		}
		return 4
	}
	sites := ExtractCallSites(insts, lines)
	want := []CallSite{
		{Offset: 1, Index: 1, Kind: KindSpecial, Ref: 1, Line: 3},
		{Offset: 4, Index: 2, Kind: KindStatic, Ref: 2, Line: 3},
		{Offset: 8, Index: 4, Kind: KindStatic, Ref: 2, Line: 4},
	}
	if len(sites) != len(want) {
		t.Fatalf("sites = %+v", sites)
	}
	for i := range want {
		if sites[i] != want[i] {
			t.Errorf("sites[%d] = %+v, want %+v", i, sites[i], want[i])
		}
	}
}
