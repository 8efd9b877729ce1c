package classfile

import (
	"errors"
	"fmt"
	"unicode/utf16"

	"jarcalls/internal/classfmt"
)

// Tag identifies a constant pool entry kind.
type Tag uint8

const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20
)

var (
	ErrPoolIndex = errors.New("classfile: constant pool index out of range")
	ErrPoolTag   = errors.New("classfile: unexpected constant pool tag")
)

// Constant is one constant pool entry. A and B hold the entry's index or
// scalar operands; Text is set for Utf8 entries.
type Constant struct {
	Tag  Tag
	A, B uint16
	Kind uint8 // MethodHandle reference kind
	Text string
}

// Pool is the constant pool of a class. Index 0 and the second slot of
// Long/Double entries are unusable and hold the zero Constant.
type Pool struct {
	entries []Constant
}

// Len returns the constant_pool_count (one more than the last valid index).
func (p *Pool) Len() int { return len(p.entries) }

func (p *Pool) entry(i uint16, want ...Tag) (Constant, error) {
	if i == 0 || int(i) >= len(p.entries) {
		return Constant{}, fmt.Errorf("%w: %d", ErrPoolIndex, i)
	}
	c := p.entries[i]
	for _, t := range want {
		if c.Tag == t {
			return c, nil
		}
	}
	return Constant{}, fmt.Errorf("%w: #%d is tag %d", ErrPoolTag, i, c.Tag)
}

// Utf8 returns the string of a Utf8 entry.
func (p *Pool) Utf8(i uint16) (string, error) {
	c, err := p.entry(i, TagUtf8)
	if err != nil {
		return "", err
	}
	return c.Text, nil
}

// ClassName returns the internal name of a Class entry (e.g. "java/lang/Object").
func (p *Pool) ClassName(i uint16) (string, error) {
	c, err := p.entry(i, TagClass)
	if err != nil {
		return "", err
	}
	return p.Utf8(c.A)
}

// NameAndType returns the name and descriptor of a NameAndType entry.
func (p *Pool) NameAndType(i uint16) (name, desc string, err error) {
	c, err := p.entry(i, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = p.Utf8(c.A); err != nil {
		return "", "", err
	}
	if desc, err = p.Utf8(c.B); err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// MemberRef is a resolved Fieldref, Methodref or InterfaceMethodref.
type MemberRef struct {
	Tag        Tag
	Owner      string
	Name       string
	Descriptor string
}

// Interface reports whether the reference is an InterfaceMethodref.
func (r MemberRef) Interface() bool { return r.Tag == TagInterfaceMethodref }

// MethodRef returns the Methodref or InterfaceMethodref at index i.
func (p *Pool) MethodRef(i uint16) (MemberRef, error) {
	return p.memberRef(i, TagMethodref, TagInterfaceMethodref)
}

func (p *Pool) memberRef(i uint16, want ...Tag) (MemberRef, error) {
	c, err := p.entry(i, want...)
	if err != nil {
		return MemberRef{}, err
	}
	owner, err := p.ClassName(c.A)
	if err != nil {
		return MemberRef{}, err
	}
	name, desc, err := p.NameAndType(c.B)
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{Tag: c.Tag, Owner: owner, Name: name, Descriptor: desc}, nil
}

// Method handle reference kinds (JVMS 5.4.3.5).
const (
	RefGetField         = 1
	RefGetStatic        = 2
	RefPutField         = 3
	RefPutStatic        = 4
	RefInvokeVirtual    = 5
	RefInvokeStatic     = 6
	RefInvokeSpecial    = 7
	RefNewInvokeSpecial = 8
	RefInvokeInterface  = 9
)

// MethodHandle is a resolved MethodHandle entry.
type MethodHandle struct {
	Kind uint8
	Ref  MemberRef
}

// IsMethod reports whether the handle refers to a method rather than a field.
func (h MethodHandle) IsMethod() bool { return h.Kind >= RefInvokeVirtual }

// MethodHandle returns the MethodHandle entry at index i.
func (p *Pool) MethodHandle(i uint16) (MethodHandle, error) {
	c, err := p.entry(i, TagMethodHandle)
	if err != nil {
		return MethodHandle{}, err
	}
	ref, err := p.memberRef(c.A, TagFieldref, TagMethodref, TagInterfaceMethodref)
	if err != nil {
		return MethodHandle{}, err
	}
	return MethodHandle{Kind: c.Kind, Ref: ref}, nil
}

// InvokeDynamic returns the bootstrap method index, name and descriptor of
// an InvokeDynamic entry.
func (p *Pool) InvokeDynamic(i uint16) (bootstrap uint16, name, desc string, err error) {
	c, err := p.entry(i, TagInvokeDynamic)
	if err != nil {
		return 0, "", "", err
	}
	name, desc, err = p.NameAndType(c.B)
	if err != nil {
		return 0, "", "", err
	}
	return c.A, name, desc, nil
}

// Tag returns the tag at index i, or 0 if the index is unusable.
func (p *Pool) Tag(i uint16) Tag {
	if int(i) >= len(p.entries) {
		return 0
	}
	return p.entries[i].Tag
}

func readPool(s *classfmt.Stream) (*Pool, error) {
	count, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	p := &Pool{entries: make([]Constant, count)}
	for i := 1; i < int(count); i++ {
		off := s.Position()
		tag, err := s.ReadUint8()
		if err != nil {
			return nil, err
		}
		c := Constant{Tag: Tag(tag)}
		switch c.Tag {
		case TagUtf8:
			n, err := s.ReadUint16()
			if err != nil {
				return nil, err
			}
			raw, err := s.ReadBytes(int(n))
			if err != nil {
				return nil, err
			}
			if c.Text, err = decodeModifiedUTF8(raw); err != nil {
				return nil, fmt.Errorf("utf8 #%d at 0x%x: %w", i, off, err)
			}
		case TagInteger, TagFloat:
			if err := s.Skip(4); err != nil {
				return nil, err
			}
		case TagLong, TagDouble:
			if err := s.Skip(8); err != nil {
				return nil, err
			}
			p.entries[i] = c
			i++ // occupies two slots
			continue
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			if c.A, err = s.ReadUint16(); err != nil {
				return nil, err
			}
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
			if c.A, err = s.ReadUint16(); err != nil {
				return nil, err
			}
			if c.B, err = s.ReadUint16(); err != nil {
				return nil, err
			}
		case TagMethodHandle:
			if c.Kind, err = s.ReadUint8(); err != nil {
				return nil, err
			}
			if c.A, err = s.ReadUint16(); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: %d at #%d (0x%x)", ErrPoolTag, tag, i, off)
		}
		p.entries[i] = c
	}
	return p, nil
}

var errBadUTF8 = errors.New("malformed modified UTF-8")

// decodeModifiedUTF8 decodes the JVM's modified UTF-8: NUL is encoded as
// two bytes and supplementary characters as surrogate pairs.
func decodeModifiedUTF8(b []byte) (string, error) {
	ascii := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b), nil
	}

	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0:
			return "", errBadUTF8
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", errBadUTF8
			}
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", errBadUTF8
			}
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return "", errBadUTF8
		}
	}
	return string(utf16.Decode(units)), nil
}
