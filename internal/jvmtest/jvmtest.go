// Package jvmtest assembles small class files and jars in memory for tests.
package jvmtest

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
)

// Class builds one class file.
type Class struct {
	name      string
	super     string
	ifaces    []string
	access    uint16
	source    string
	pool      pool
	methods   []method
	bootstrap []bootstrap
}

type method struct {
	access uint16
	name   string
	desc   string
	code   *Code
}

type bootstrap struct {
	handle uint16
	args   []uint16
}

// NewClass starts a public class extending java/lang/Object.
func NewClass(name string) *Class {
	return &Class{name: name, super: "java/lang/Object", access: 0x0021}
}

// NewInterface starts a public interface.
func NewInterface(name string) *Class {
	return &Class{name: name, super: "java/lang/Object", access: 0x0601}
}

func (c *Class) Extends(super string) *Class {
	c.super = super
	return c
}

func (c *Class) Implements(names ...string) *Class {
	c.ifaces = append(c.ifaces, names...)
	return c
}

func (c *Class) Source(file string) *Class {
	c.source = file
	return c
}

// Name returns the internal class name.
func (c *Class) Name() string { return c.name }

// Method adds a public instance method whose body is produced by build.
func (c *Class) Method(name, desc string, build func(*Code)) *Class {
	return c.add(0x0001, name, desc, build)
}

// StaticMethod adds a public static method.
func (c *Class) StaticMethod(name, desc string, build func(*Code)) *Class {
	return c.add(0x0009, name, desc, build)
}

// PrivateMethod adds a private instance method.
func (c *Class) PrivateMethod(name, desc string, build func(*Code)) *Class {
	return c.add(0x0002, name, desc, build)
}

// AbstractMethod adds a public abstract method without code.
func (c *Class) AbstractMethod(name, desc string) *Class {
	c.methods = append(c.methods, method{access: 0x0401, name: name, desc: desc})
	return c
}

func (c *Class) add(access uint16, name, desc string, build func(*Code)) *Class {
	code := &Code{c: c}
	if build != nil {
		build(code)
	}
	if len(code.buf) == 0 {
		code.Return()
	}
	c.methods = append(c.methods, method{access: access, name: name, desc: desc, code: code})
	return c
}

// Code assembles a method body.
type Code struct {
	c     *Class
	buf   []byte
	lines [][2]uint16
}

// Offset returns the offset the next instruction will be written at.
func (b *Code) Offset() int { return len(b.buf) }

// Op appends a raw opcode with operand bytes.
func (b *Code) Op(op byte, operands ...byte) *Code {
	b.buf = append(b.buf, op)
	b.buf = append(b.buf, operands...)
	return b
}

// Line marks the next instruction as starting source line n.
func (b *Code) Line(n int) *Code {
	b.lines = append(b.lines, [2]uint16{uint16(len(b.buf)), uint16(n)})
	return b
}

func (b *Code) u16(op byte, idx uint16, extra ...byte) *Code {
	b.buf = append(b.buf, op, byte(idx>>8), byte(idx))
	b.buf = append(b.buf, extra...)
	return b
}

func (b *Code) InvokeVirtual(owner, name, desc string) *Code {
	return b.u16(0xb6, b.c.pool.methodref(owner, name, desc, false))
}

func (b *Code) InvokeSpecial(owner, name, desc string) *Code {
	return b.u16(0xb7, b.c.pool.methodref(owner, name, desc, false))
}

func (b *Code) InvokeStatic(owner, name, desc string) *Code {
	return b.u16(0xb8, b.c.pool.methodref(owner, name, desc, false))
}

func (b *Code) InvokeInterface(owner, name, desc string) *Code {
	return b.u16(0xb9, b.c.pool.methodref(owner, name, desc, true), 1, 0)
}

// InvokeLambda emits an invokedynamic bootstrapped by LambdaMetafactory
// whose implementation is the static method implOwner.implName.
func (b *Code) InvokeLambda(implOwner, implName, implDesc, samName, samDesc, factoryDesc string) *Code {
	p := &b.c.pool
	meta := p.methodHandle(6, p.methodref("java/lang/invoke/LambdaMetafactory", "metafactory",
		"(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodHandle;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;", false))
	impl := p.methodHandle(6, p.methodref(implOwner, implName, implDesc, false))
	bsm := b.c.addBootstrap(meta, p.methodType(samDesc), impl, p.methodType(samDesc))
	return b.u16(0xba, p.indy(bsm, samName, factoryDesc), 0, 0)
}

// InvokeDynamic emits an invokedynamic with a static bootstrap method.
func (b *Code) InvokeDynamic(bsmOwner, bsmName, bsmDesc, name, desc string) *Code {
	p := &b.c.pool
	h := p.methodHandle(6, p.methodref(bsmOwner, bsmName, bsmDesc, false))
	bsm := b.c.addBootstrap(h)
	return b.u16(0xba, p.indy(bsm, name, desc), 0, 0)
}

// Goto emits goto with a relative branch offset.
func (b *Code) Goto(rel int16) *Code {
	return b.Op(0xa7, byte(uint16(rel)>>8), byte(rel))
}

// If emits a conditional branch op (0x99..0xa6, 0xc6, 0xc7) with a relative offset.
func (b *Code) If(op byte, rel int16) *Code {
	return b.Op(op, byte(uint16(rel)>>8), byte(rel))
}

func (b *Code) Return() *Code { return b.Op(0xb1) }

func (c *Class) addBootstrap(handle uint16, args ...uint16) uint16 {
	c.bootstrap = append(c.bootstrap, bootstrap{handle: handle, args: args})
	return uint16(len(c.bootstrap) - 1)
}

// Bytes serializes the class file (version 52, Java 8).
func (c *Class) Bytes() []byte {
	p := &c.pool
	this := p.class(c.name)
	var super uint16
	if c.super != "" {
		super = p.class(c.super)
	}
	ifaces := make([]uint16, len(c.ifaces))
	for i, n := range c.ifaces {
		ifaces[i] = p.class(n)
	}
	codeAttr := p.utf8("Code")
	lineAttr := p.utf8("LineNumberTable")
	type mref struct{ name, desc uint16 }
	refs := make([]mref, len(c.methods))
	for i, m := range c.methods {
		refs[i] = mref{p.utf8(m.name), p.utf8(m.desc)}
	}
	var sourceAttr, sourceIdx, bsmAttr uint16
	if c.source != "" {
		sourceAttr = p.utf8("SourceFile")
		sourceIdx = p.utf8(c.source)
	}
	if len(c.bootstrap) > 0 {
		bsmAttr = p.utf8("BootstrapMethods")
	}

	var out bytes.Buffer
	w16 := func(v uint16) { _ = binary.Write(&out, binary.BigEndian, v) }
	w32 := func(v uint32) { _ = binary.Write(&out, binary.BigEndian, v) }

	w32(0xCAFEBABE)
	w16(0)
	w16(52)
	out.Write(p.bytes())
	w16(c.access)
	w16(this)
	w16(super)
	w16(uint16(len(ifaces)))
	for _, i := range ifaces {
		w16(i)
	}
	w16(0) // fields

	w16(uint16(len(c.methods)))
	for i, m := range c.methods {
		w16(m.access)
		w16(refs[i].name)
		w16(refs[i].desc)
		if m.code == nil {
			w16(0)
			continue
		}
		w16(1)
		var code bytes.Buffer
		c16 := func(v uint16) { _ = binary.Write(&code, binary.BigEndian, v) }
		c16(8) // max_stack
		c16(8) // max_locals
		_ = binary.Write(&code, binary.BigEndian, uint32(len(m.code.buf)))
		code.Write(m.code.buf)
		c16(0) // exception table
		if len(m.code.lines) > 0 {
			c16(1)
			c16(lineAttr)
			_ = binary.Write(&code, binary.BigEndian, uint32(2+4*len(m.code.lines)))
			c16(uint16(len(m.code.lines)))
			for _, l := range m.code.lines {
				c16(l[0])
				c16(l[1])
			}
		} else {
			c16(0)
		}
		w16(codeAttr)
		w32(uint32(code.Len()))
		out.Write(code.Bytes())
	}

	attrs := 0
	if c.source != "" {
		attrs++
	}
	if len(c.bootstrap) > 0 {
		attrs++
	}
	w16(uint16(attrs))
	if c.source != "" {
		w16(sourceAttr)
		w32(2)
		w16(sourceIdx)
	}
	if len(c.bootstrap) > 0 {
		var body bytes.Buffer
		b16 := func(v uint16) { _ = binary.Write(&body, binary.BigEndian, v) }
		b16(uint16(len(c.bootstrap)))
		for _, bm := range c.bootstrap {
			b16(bm.handle)
			b16(uint16(len(bm.args)))
			for _, a := range bm.args {
				b16(a)
			}
		}
		w16(bsmAttr)
		w32(uint32(body.Len()))
		out.Write(body.Bytes())
	}
	return out.Bytes()
}

type pool struct {
	buf   bytes.Buffer
	count uint16
	index map[string]uint16
}

func (p *pool) intern(key string, write func(*bytes.Buffer)) uint16 {
	if p.index == nil {
		p.index = make(map[string]uint16)
		p.count = 1
	}
	if i, ok := p.index[key]; ok {
		return i
	}
	write(&p.buf)
	i := p.count
	p.count++
	p.index[key] = i
	return i
}

func put16(b *bytes.Buffer, v uint16) { b.WriteByte(byte(v >> 8)); b.WriteByte(byte(v)) }

func (p *pool) utf8(s string) uint16 {
	return p.intern("u:"+s, func(b *bytes.Buffer) {
		b.WriteByte(1)
		put16(b, uint16(len(s)))
		b.WriteString(s)
	})
}

func (p *pool) class(name string) uint16 {
	n := p.utf8(name)
	return p.intern("c:"+name, func(b *bytes.Buffer) { b.WriteByte(7); put16(b, n) })
}

func (p *pool) nat(name, desc string) uint16 {
	n, d := p.utf8(name), p.utf8(desc)
	return p.intern("n:"+name+":"+desc, func(b *bytes.Buffer) { b.WriteByte(12); put16(b, n); put16(b, d) })
}

func (p *pool) methodref(owner, name, desc string, iface bool) uint16 {
	c, n := p.class(owner), p.nat(name, desc)
	tag := byte(10)
	if iface {
		tag = 11
	}
	key := fmt.Sprintf("m%d:%s.%s%s", tag, owner, name, desc)
	return p.intern(key, func(b *bytes.Buffer) { b.WriteByte(tag); put16(b, c); put16(b, n) })
}

func (p *pool) methodHandle(kind byte, ref uint16) uint16 {
	key := fmt.Sprintf("h:%d:%d", kind, ref)
	return p.intern(key, func(b *bytes.Buffer) { b.WriteByte(15); b.WriteByte(kind); put16(b, ref) })
}

func (p *pool) methodType(desc string) uint16 {
	d := p.utf8(desc)
	return p.intern("t:"+desc, func(b *bytes.Buffer) { b.WriteByte(16); put16(b, d) })
}

func (p *pool) indy(bsm uint16, name, desc string) uint16 {
	n := p.nat(name, desc)
	key := fmt.Sprintf("i:%d:%d", bsm, n)
	return p.intern(key, func(b *bytes.Buffer) { b.WriteByte(18); put16(b, bsm); put16(b, n) })
}

func (p *pool) bytes() []byte {
	if p.index == nil {
		p.count = 1
	}
	var out bytes.Buffer
	put16(&out, p.count)
	out.Write(p.buf.Bytes())
	return out.Bytes()
}

// Entry is one file inside a jar.
type Entry struct {
	Name string
	Data []byte
}

// ClassEntry places a class at its conventional jar path.
func ClassEntry(c *Class) Entry {
	return Entry{Name: c.name + ".class", Data: c.Bytes()}
}

// Jar zips entries in the given order.
func Jar(entries ...Entry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Classes zips the given classes.
func Classes(classes ...*Class) ([]byte, error) {
	entries := make([]Entry, len(classes))
	for i, c := range classes {
		entries[i] = ClassEntry(c)
	}
	return Jar(entries...)
}
