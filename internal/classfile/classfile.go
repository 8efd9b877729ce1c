// Package classfile decodes JVM class files (JVMS chapter 4) into the
// structural form the call extractor needs: hierarchy, methods and code.
package classfile

import (
	"errors"
	"fmt"

	"jarcalls/internal/classfmt"
)

const magic = 0xCAFEBABE

var (
	ErrBadMagic  = errors.New("classfile: bad magic")
	ErrTruncated = errors.New("classfile: truncated")
	ErrTooLarge  = errors.New("classfile: exceeds size cap")
)

// DecodeError reports a class that could not be parsed. It is recoverable:
// the extractor skips the class and continues.
type DecodeError struct {
	Path   string
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("classfile: decode %s at 0x%x: %v", e.Path, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Access flags used by the extractor.
const (
	AccPublic     = 0x0001
	AccPrivate    = 0x0002
	AccProtected  = 0x0004
	AccStatic     = 0x0008
	AccFinal      = 0x0010
	AccSuper      = 0x0020
	AccBridge     = 0x0040
	AccVarargs    = 0x0080
	AccNative     = 0x0100
	AccInterface  = 0x0200
	AccAbstract   = 0x0400
	AccSynthetic  = 0x1000
	AccAnnotation = 0x2000
	AccEnum       = 0x4000
	AccModule     = 0x8000
)

// Class is a decoded class file.
type Class struct {
	Path       string // archive entry the class was read from
	Minor      uint16
	Major      uint16
	Access     uint16
	Name       string // internal name, e.g. "com/example/Foo$Bar"
	Super      string // "" for java/lang/Object and module-info
	Interfaces []string
	SourceFile string
	Methods    []Method
	Bootstrap  []BootstrapMethod
	Pool       *Pool
}

// IsInterface reports whether the class is an interface.
func (c *Class) IsInterface() bool { return c.Access&AccInterface != 0 }

// Method looks up a declared method by name and descriptor.
func (c *Class) Method(name, desc string) (*Method, bool) {
	for i := range c.Methods {
		if c.Methods[i].Name == name && c.Methods[i].Descriptor == desc {
			return &c.Methods[i], true
		}
	}
	return nil, false
}

// Method is a declared method.
type Method struct {
	Access     uint16
	Name       string
	Descriptor string
	Code       *Code // nil for abstract and native methods
}

func (m *Method) IsStatic() bool   { return m.Access&AccStatic != 0 }
func (m *Method) IsPrivate() bool  { return m.Access&AccPrivate != 0 }
func (m *Method) IsAbstract() bool { return m.Access&AccAbstract != 0 }

// Code is a method's Code attribute.
type Code struct {
	MaxStack  uint16
	MaxLocals uint16
	Bytes     []byte
	Lines     []LineEntry
}

// LineAt returns the source line for a bytecode offset, or 0 if unknown.
func (c *Code) LineAt(pc int) int {
	line := 0
	best := -1
	for _, e := range c.Lines {
		if int(e.PC) <= pc && int(e.PC) > best {
			best = int(e.PC)
			line = int(e.Line)
		}
	}
	return line
}

// LineEntry maps a bytecode offset to a source line.
type LineEntry struct {
	PC   uint16
	Line uint16
}

// BootstrapMethod is one entry of the BootstrapMethods attribute.
type BootstrapMethod struct {
	Handle uint16   // MethodHandle pool index
	Args   []uint16 // static argument pool indices
}

// Parse decodes a class file. Failures are returned as *DecodeError.
func Parse(path string, data []byte, opts classfmt.Options) (*Class, error) {
	if opts.MaxBytes > 0 && int64(len(data)) > opts.MaxBytes {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))}
	}
	s := classfmt.NewStream(data)
	c, err := parse(s, path)
	if err != nil {
		if errors.Is(err, classfmt.ErrStreamEOF) {
			err = fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		return nil, &DecodeError{Path: path, Offset: s.Position(), Err: err}
	}
	return c, nil
}

func parse(s *classfmt.Stream, path string) (*Class, error) {
	m, err := s.ReadUint32()
	if err != nil {
		return nil, err
	}
	if m != magic {
		return nil, fmt.Errorf("%w: 0x%08x", ErrBadMagic, m)
	}
	c := &Class{Path: path}
	if c.Minor, err = s.ReadUint16(); err != nil {
		return nil, err
	}
	if c.Major, err = s.ReadUint16(); err != nil {
		return nil, err
	}
	if c.Pool, err = readPool(s); err != nil {
		return nil, err
	}
	if c.Access, err = s.ReadUint16(); err != nil {
		return nil, err
	}

	this, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	if c.Name, err = c.Pool.ClassName(this); err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}
	super, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	if super != 0 {
		if c.Super, err = c.Pool.ClassName(super); err != nil {
			return nil, fmt.Errorf("super_class: %w", err)
		}
	}

	n, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		idx, err := s.ReadUint16()
		if err != nil {
			return nil, err
		}
		name, err := c.Pool.ClassName(idx)
		if err != nil {
			return nil, fmt.Errorf("interface %d: %w", i, err)
		}
		c.Interfaces = append(c.Interfaces, name)
	}

	// Fields: only skipped.
	if n, err = s.ReadUint16(); err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		if err := s.Skip(6); err != nil {
			return nil, err
		}
		if err := skipAttributes(s); err != nil {
			return nil, err
		}
	}

	if n, err = s.ReadUint16(); err != nil {
		return nil, err
	}
	c.Methods = make([]Method, 0, n)
	for i := 0; i < int(n); i++ {
		m, err := readMethod(s, c.Pool)
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		c.Methods = append(c.Methods, m)
	}

	if err := readClassAttributes(s, c); err != nil {
		return nil, err
	}
	return c, nil
}

func readMethod(s *classfmt.Stream, p *Pool) (Method, error) {
	var m Method
	var err error
	if m.Access, err = s.ReadUint16(); err != nil {
		return m, err
	}
	nameIdx, err := s.ReadUint16()
	if err != nil {
		return m, err
	}
	descIdx, err := s.ReadUint16()
	if err != nil {
		return m, err
	}
	if m.Name, err = p.Utf8(nameIdx); err != nil {
		return m, err
	}
	if m.Descriptor, err = p.Utf8(descIdx); err != nil {
		return m, err
	}

	count, err := s.ReadUint16()
	if err != nil {
		return m, err
	}
	for i := 0; i < int(count); i++ {
		name, body, err := readAttribute(s, p)
		if err != nil {
			return m, err
		}
		if name == "Code" {
			if m.Code, err = readCode(body, p); err != nil {
				return m, fmt.Errorf("%s%s Code: %w", m.Name, m.Descriptor, err)
			}
		}
	}
	return m, nil
}

func readCode(body []byte, p *Pool) (*Code, error) {
	s := classfmt.NewStream(body)
	c := &Code{}
	var err error
	if c.MaxStack, err = s.ReadUint16(); err != nil {
		return nil, err
	}
	if c.MaxLocals, err = s.ReadUint16(); err != nil {
		return nil, err
	}
	n, err := s.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n == 0 || n > 65535 {
		return nil, fmt.Errorf("code_length %d out of range", n)
	}
	if c.Bytes, err = s.ReadBytes(int(n)); err != nil {
		return nil, err
	}

	// exception_table: start, end, handler, catch_type.
	handlers, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	if err := s.Skip(int(handlers) * 8); err != nil {
		return nil, err
	}

	count, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(count); i++ {
		name, attr, err := readAttribute(s, p)
		if err != nil {
			return nil, err
		}
		if name != "LineNumberTable" {
			continue
		}
		as := classfmt.NewStream(attr)
		ln, err := as.ReadUint16()
		if err != nil {
			return nil, err
		}
		for j := 0; j < int(ln); j++ {
			pc, err := as.ReadUint16()
			if err != nil {
				return nil, err
			}
			line, err := as.ReadUint16()
			if err != nil {
				return nil, err
			}
			c.Lines = append(c.Lines, LineEntry{PC: pc, Line: line})
		}
	}
	return c, nil
}

func readClassAttributes(s *classfmt.Stream, c *Class) error {
	count, err := s.ReadUint16()
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		name, body, err := readAttribute(s, c.Pool)
		if err != nil {
			return err
		}
		switch name {
		case "SourceFile":
			as := classfmt.NewStream(body)
			idx, err := as.ReadUint16()
			if err != nil {
				return err
			}
			if c.SourceFile, err = c.Pool.Utf8(idx); err != nil {
				return fmt.Errorf("SourceFile: %w", err)
			}
		case "BootstrapMethods":
			if c.Bootstrap, err = readBootstrap(body); err != nil {
				return fmt.Errorf("BootstrapMethods: %w", err)
			}
		}
	}
	return nil
}

func readBootstrap(body []byte) ([]BootstrapMethod, error) {
	s := classfmt.NewStream(body)
	n, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	out := make([]BootstrapMethod, 0, n)
	for i := 0; i < int(n); i++ {
		var bm BootstrapMethod
		if bm.Handle, err = s.ReadUint16(); err != nil {
			return nil, err
		}
		argc, err := s.ReadUint16()
		if err != nil {
			return nil, err
		}
		for j := 0; j < int(argc); j++ {
			arg, err := s.ReadUint16()
			if err != nil {
				return nil, err
			}
			bm.Args = append(bm.Args, arg)
		}
		out = append(out, bm)
	}
	return out, nil
}

func readAttribute(s *classfmt.Stream, p *Pool) (string, []byte, error) {
	nameIdx, err := s.ReadUint16()
	if err != nil {
		return "", nil, err
	}
	n, err := s.ReadUint32()
	if err != nil {
		return "", nil, err
	}
	if int64(n) > int64(s.Remaining()) {
		return "", nil, classfmt.ErrStreamEOF
	}
	body, err := s.ReadBytes(int(n))
	if err != nil {
		return "", nil, err
	}
	name, err := p.Utf8(nameIdx)
	if err != nil {
		return "", nil, fmt.Errorf("attribute name: %w", err)
	}
	return name, body, nil
}

func skipAttributes(s *classfmt.Stream) error {
	count, err := s.ReadUint16()
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		if err := s.Skip(2); err != nil {
			return err
		}
		n, err := s.ReadUint32()
		if err != nil {
			return err
		}
		if int64(n) > int64(s.Remaining()) {
			return classfmt.ErrStreamEOF
		}
		if err := s.Skip(int(n)); err != nil {
			return err
		}
	}
	return nil
}
