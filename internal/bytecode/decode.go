// Package bytecode decodes JVM method bodies and extracts call sites and
// control flow from them.
package bytecode

import (
	"errors"
	"fmt"

	"jarcalls/internal/classfmt"
)

var (
	ErrBadOpcode = errors.New("bytecode: undefined opcode")
	ErrTruncated = errors.New("bytecode: truncated instruction")
	ErrBadTarget = errors.New("bytecode: branch target outside method")
	ErrTooLong   = errors.New("bytecode: instruction cap exceeded")
)

// Inst is a decoded instruction.
type Inst struct {
	Offset   int
	Op       byte
	Size     int
	Mnemonic string
	Index    uint16  // constant pool index, for pool-referencing opcodes
	Targets  []int   // absolute branch targets; for switches the default comes first
	Keys     []int32 // switch match values, parallel to Targets[1:]
	Wide     bool
}

// Options controls decoding behavior.
type Options struct {
	MaxInsts int // 0 = classfmt.DefaultMaxInsts
}

func (o Options) effectiveMax() int {
	return classfmt.Options{MaxInsts: o.MaxInsts}.EffectiveMaxInsts()
}

// Decode decodes a Code attribute's bytes into instructions. Branch targets
// are validated to land on instruction boundaries inside the method.
func Decode(code []byte, opts Options) ([]Inst, error) {
	maxInsts := opts.effectiveMax()
	s := classfmt.NewStream(code)
	var insts []Inst

	for s.Remaining() > 0 {
		if len(insts) >= maxInsts {
			return nil, fmt.Errorf("%w: %d", ErrTooLong, maxInsts)
		}
		inst, err := decodeOne(s)
		if err != nil {
			if errors.Is(err, classfmt.ErrStreamEOF) {
				err = ErrTruncated
			}
			return nil, fmt.Errorf("at %d: %w", s.Position(), err)
		}
		insts = append(insts, inst)
	}

	starts := make(map[int]bool, len(insts))
	for _, inst := range insts {
		starts[inst.Offset] = true
	}
	for _, inst := range insts {
		for _, t := range inst.Targets {
			if !starts[t] {
				return nil, fmt.Errorf("%w: %s at %d -> %d", ErrBadTarget, inst.Mnemonic, inst.Offset, t)
			}
		}
	}
	return insts, nil
}

func decodeOne(s *classfmt.Stream) (Inst, error) {
	start := s.Position()
	op, err := s.ReadByte()
	if err != nil {
		return Inst{}, err
	}
	info := opTable[op]
	if info.name == "" {
		return Inst{}, fmt.Errorf("%w: 0x%02x", ErrBadOpcode, op)
	}
	inst := Inst{Offset: start, Op: op, Mnemonic: info.name}

	switch {
	case op == OpTableswitch:
		err = decodeTableswitch(s, &inst)
	case op == OpLookupswitch:
		err = decodeLookupswitch(s, &inst)
	case op == OpWide:
		err = decodeWide(s, &inst)
	case isBranch16(op):
		var rel int16
		if rel, err = s.ReadInt16(); err == nil {
			inst.Targets = []int{start + int(rel)}
		}
	case op == OpGotoW || op == OpJsrW:
		var rel int32
		if rel, err = s.ReadInt32(); err == nil {
			inst.Targets = []int{start + int(rel)}
		}
	case op == 0x12: // ldc
		var idx uint8
		if idx, err = s.ReadUint8(); err == nil {
			inst.Index = uint16(idx)
		}
	case usesPoolIndex(op):
		if inst.Index, err = s.ReadUint16(); err == nil {
			err = s.Skip(info.size - 2)
		}
	default:
		err = s.Skip(info.size)
	}
	if err != nil {
		return Inst{}, err
	}
	inst.Size = s.Position() - start
	return inst, nil
}

func isBranch16(op byte) bool {
	return (op >= OpIfeq && op <= OpJsr) || op == OpIfnull || op == OpIfnonnull
}

func decodeTableswitch(s *classfmt.Stream, inst *Inst) error {
	if err := s.Align(4); err != nil {
		return err
	}
	def, err := s.ReadInt32()
	if err != nil {
		return err
	}
	low, err := s.ReadInt32()
	if err != nil {
		return err
	}
	high, err := s.ReadInt32()
	if err != nil {
		return err
	}
	if high < low || int64(high)-int64(low) >= 65536 {
		return fmt.Errorf("tableswitch range [%d,%d] invalid", low, high)
	}
	inst.Targets = append(inst.Targets, inst.Offset+int(def))
	for k := int64(low); k <= int64(high); k++ {
		rel, err := s.ReadInt32()
		if err != nil {
			return err
		}
		inst.Keys = append(inst.Keys, int32(k))
		inst.Targets = append(inst.Targets, inst.Offset+int(rel))
	}
	return nil
}

func decodeLookupswitch(s *classfmt.Stream, inst *Inst) error {
	if err := s.Align(4); err != nil {
		return err
	}
	def, err := s.ReadInt32()
	if err != nil {
		return err
	}
	n, err := s.ReadInt32()
	if err != nil {
		return err
	}
	if n < 0 || int(n)*8 > s.Remaining() {
		return fmt.Errorf("lookupswitch npairs %d invalid", n)
	}
	inst.Targets = append(inst.Targets, inst.Offset+int(def))
	for i := 0; i < int(n); i++ {
		key, err := s.ReadInt32()
		if err != nil {
			return err
		}
		rel, err := s.ReadInt32()
		if err != nil {
			return err
		}
		inst.Keys = append(inst.Keys, key)
		inst.Targets = append(inst.Targets, inst.Offset+int(rel))
	}
	return nil
}

// decodeWide handles the wide prefix: a local-variable opcode with a 16-bit
// index, or iinc with a 16-bit index and constant.
func decodeWide(s *classfmt.Stream, inst *Inst) error {
	op, err := s.ReadByte()
	if err != nil {
		return err
	}
	inst.Wide = true
	switch {
	case op == OpIinc:
		inst.Mnemonic = "iinc"
		return s.Skip(4)
	case (op >= OpIload && op <= 0x19) || (op >= 0x36 && op <= 0x3a) || op == OpRet:
		inst.Mnemonic = opTable[op].name
		return s.Skip(2)
	}
	return fmt.Errorf("%w: wide 0x%02x", ErrBadOpcode, op)
}
