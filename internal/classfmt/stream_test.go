package classfmt

import "testing"

func TestReadBigEndian(t *testing.T) {
	s := NewStream([]byte{0xCA, 0xFE, 0xBA, 0xBE, 0x00, 0x34, 0xFF, 0xFE})
	magic, err := s.ReadUint32()
	if err != nil {
		t.Fatal(err)
	}
	if magic != 0xCAFEBABE {
		t.Errorf("magic = 0x%x, want 0xcafebabe", magic)
	}
	major, err := s.ReadUint16()
	if err != nil {
		t.Fatal(err)
	}
	if major != 52 {
		t.Errorf("major = %d, want 52", major)
	}
	v, err := s.ReadInt16()
	if err != nil {
		t.Fatal(err)
	}
	if v != -2 {
		t.Errorf("int16 = %d, want -2", v)
	}
	if s.Remaining() != 0 {
		t.Errorf("remaining = %d, want 0", s.Remaining())
	}
}

func TestReadEOF(t *testing.T) {
	tests := []struct {
		name string
		read func(s *Stream) error
	}{
		{"byte", func(s *Stream) error { _, err := s.ReadByte(); return err }},
		{"uint16", func(s *Stream) error { _, err := s.ReadUint16(); return err }},
		{"uint32", func(s *Stream) error { _, err := s.ReadUint32(); return err }},
		{"int32", func(s *Stream) error { _, err := s.ReadInt32(); return err }},
		{"bytes", func(s *Stream) error { _, err := s.ReadBytes(2); return err }},
		{"skip", func(s *Stream) error { return s.Skip(2) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStream([]byte{0x01})
			if tt.name == "byte" {
				s = NewStream(nil)
			}
			if err := tt.read(s); err != ErrStreamEOF {
				t.Errorf("err = %v, want ErrStreamEOF", err)
			}
		})
	}
}

func TestAlign(t *testing.T) {
	s := NewStream(make([]byte, 16))
	if err := s.Skip(1); err != nil {
		t.Fatal(err)
	}
	if err := s.Align(4); err != nil {
		t.Fatal(err)
	}
	if s.Position() != 4 {
		t.Errorf("position = %d, want 4", s.Position())
	}
	if err := s.Align(4); err != nil {
		t.Fatal(err)
	}
	if s.Position() != 4 {
		t.Errorf("aligned position moved to %d", s.Position())
	}

	s = NewStream(make([]byte, 6))
	if err := s.Skip(5); err != nil {
		t.Fatal(err)
	}
	if err := s.Align(4); err != ErrStreamEOF {
		t.Errorf("align past end err = %v, want ErrStreamEOF", err)
	}
}

func TestSetPosition(t *testing.T) {
	s := NewStream(make([]byte, 4))
	if err := s.SetPosition(5); err != ErrStreamRange {
		t.Errorf("err = %v, want ErrStreamRange", err)
	}
	if err := s.SetPosition(4); err != nil {
		t.Errorf("SetPosition(4): %v", err)
	}
}

func TestDiagsOrdered(t *testing.T) {
	var d Diags
	d.Add("b/B.class", 4, DiagInvalid, "bad")
	d.Addf("a/A.class", 8, DiagTruncated, "cut at %d", 8)
	d.Add("a/A.class", 2, DiagSkipped, "skip")

	items := d.Items()
	if d.Len() != 3 || len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	want := []string{"a/A.class", "a/A.class", "b/B.class"}
	for i, it := range items {
		if it.Path != want[i] {
			t.Errorf("items[%d].Path = %q, want %q", i, it.Path, want[i])
		}
	}
	if items[0].Offset != 2 {
		t.Errorf("items[0].Offset = %d, want 2", items[0].Offset)
	}
	if got := items[1].String(); got != "[truncated] a/A.class+0x8: cut at 8" {
		t.Errorf("String() = %q", got)
	}
	whole := Diag{Path: "c/C.class", Offset: -1, Kind: DiagDuplicate, Msg: "dup"}
	if got := whole.String(); got != "[duplicate] c/C.class: dup" {
		t.Errorf("String() = %q", got)
	}
}

func TestEffectiveMaxInsts(t *testing.T) {
	if got := (Options{}).EffectiveMaxInsts(); got != DefaultMaxInsts {
		t.Errorf("default = %d, want %d", got, DefaultMaxInsts)
	}
	if got := (Options{MaxInsts: 10}).EffectiveMaxInsts(); got != 10 {
		t.Errorf("explicit = %d, want 10", got)
	}
}
