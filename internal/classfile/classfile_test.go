package classfile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarcalls/internal/classfmt"
	"jarcalls/internal/jvmtest"
)

func TestParseHierarchyAndMethods(t *testing.T) {
	data := jvmtest.NewClass("com/example/Impl").
		Extends("com/example/Base").
		Implements("java/lang/Runnable", "com/example/Named").
		Source("Impl.java").
		Method("run", "()V", func(b *jvmtest.Code) {
			b.Line(10).InvokeStatic("com/example/Util", "log", "(Ljava/lang/String;)V")
			b.Line(11).Return()
		}).
		AbstractMethod("name", "()Ljava/lang/String;").
		Bytes()

	c, err := Parse("com/example/Impl.class", data, classfmt.Options{})
	require.NoError(t, err)

	assert.Equal(t, "com/example/Impl", c.Name)
	assert.Equal(t, "com/example/Base", c.Super)
	assert.Equal(t, []string{"java/lang/Runnable", "com/example/Named"}, c.Interfaces)
	assert.Equal(t, "Impl.java", c.SourceFile)
	assert.Equal(t, uint16(52), c.Major)
	assert.False(t, c.IsInterface())
	require.Len(t, c.Methods, 2)

	run, ok := c.Method("run", "()V")
	require.True(t, ok)
	require.NotNil(t, run.Code)
	assert.Equal(t, []byte{0xb8, 0x00, run.Code.Bytes[2], 0xb1}, run.Code.Bytes)
	assert.Equal(t, 10, run.Code.LineAt(0))
	assert.Equal(t, 11, run.Code.LineAt(3))

	ref, err := c.Pool.MethodRef(uint16(run.Code.Bytes[1])<<8 | uint16(run.Code.Bytes[2]))
	require.NoError(t, err)
	assert.Equal(t, MemberRef{Tag: TagMethodref, Owner: "com/example/Util", Name: "log", Descriptor: "(Ljava/lang/String;)V"}, ref)

	name, ok := c.Method("name", "()Ljava/lang/String;")
	require.True(t, ok)
	assert.Nil(t, name.Code)
	assert.True(t, name.IsAbstract())
}

func TestParseInterface(t *testing.T) {
	data := jvmtest.NewInterface("api/Service").AbstractMethod("call", "()V").Bytes()
	c, err := Parse("api/Service.class", data, classfmt.Options{})
	require.NoError(t, err)
	assert.True(t, c.IsInterface())
	assert.Equal(t, "java/lang/Object", c.Super)
}

func TestParseBootstrapMethods(t *testing.T) {
	data := jvmtest.NewClass("L").
		StaticMethod("make", "()Ljava/lang/Runnable;", func(b *jvmtest.Code) {
			b.InvokeLambda("L", "lambda$make$0", "()V", "run", "()V", "()Ljava/lang/Runnable;")
			b.Op(0xb0) // areturn
		}).
		StaticMethod("lambda$make$0", "()V", nil).
		Bytes()

	c, err := Parse("L.class", data, classfmt.Options{})
	require.NoError(t, err)
	require.Len(t, c.Bootstrap, 1)

	bm := c.Bootstrap[0]
	h, err := c.Pool.MethodHandle(bm.Handle)
	require.NoError(t, err)
	assert.Equal(t, "java/lang/invoke/LambdaMetafactory", h.Ref.Owner)
	assert.True(t, h.IsMethod())
	require.Len(t, bm.Args, 3)

	impl, err := c.Pool.MethodHandle(bm.Args[1])
	require.NoError(t, err)
	assert.Equal(t, "lambda$make$0", impl.Ref.Name)

	m, _ := c.Method("make", "()Ljava/lang/Runnable;")
	idx := uint16(m.Code.Bytes[1])<<8 | uint16(m.Code.Bytes[2])
	bsm, name, desc, err := c.Pool.InvokeDynamic(idx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), bsm)
	assert.Equal(t, "run", name)
	assert.Equal(t, "()Ljava/lang/Runnable;", desc)
}

func TestParseRejectsBadMagic(t *testing.T) {
	_, err := Parse("x.class", []byte{0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0, 52}, classfmt.Options{})
	require.Error(t, err)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "x.class", de.Path)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestParseTruncated(t *testing.T) {
	data := jvmtest.NewClass("T").Method("m", "()V", nil).Bytes()
	for _, n := range []int{0, 4, 10, len(data) / 2, len(data) - 1} {
		_, err := Parse("T.class", data[:n], classfmt.Options{})
		if !errors.Is(err, ErrTruncated) {
			t.Errorf("truncated at %d: err = %v, want ErrTruncated", n, err)
		}
	}
}

func TestParseSizeCap(t *testing.T) {
	data := jvmtest.NewClass("Big").Bytes()
	_, err := Parse("Big.class", data, classfmt.Options{MaxBytes: 8})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestPoolErrors(t *testing.T) {
	data := jvmtest.NewClass("P").Bytes()
	c, err := Parse("P.class", data, classfmt.Options{})
	require.NoError(t, err)

	_, err = c.Pool.Utf8(0)
	assert.ErrorIs(t, err, ErrPoolIndex)
	_, err = c.Pool.Utf8(uint16(c.Pool.Len()))
	assert.ErrorIs(t, err, ErrPoolIndex)

	// Index 2 is the Class entry for "P"; reading it as Utf8 is a tag mismatch.
	assert.Equal(t, TagClass, c.Pool.Tag(2))
	_, err = c.Pool.Utf8(2)
	assert.ErrorIs(t, err, ErrPoolTag)
}

func TestDecodeModifiedUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"ascii", []byte("hello"), "hello"},
		{"nul", []byte{'a', 0xC0, 0x80, 'b'}, "a\x00b"},
		{"two byte", []byte{0xC3, 0xA9}, "é"},
		{"three byte", []byte{0xE2, 0x82, 0xAC}, "€"},
		// U+1F600 as a surrogate pair, each half three bytes.
		{"supplementary", []byte{0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80}, "\U0001F600"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeModifiedUTF8(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range [][]byte{{0x00}, {0xC3}, {0xE2, 0x82}, {0xF0, 0x9F, 0x98, 0x80}} {
		if _, err := decodeModifiedUTF8(bad); err == nil {
			t.Errorf("decodeModifiedUTF8(%v) succeeded, want error", bad)
		}
	}
}
