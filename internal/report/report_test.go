package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarcalls/internal/artifact"
	"jarcalls/internal/callgraph"
	"jarcalls/internal/extract"
	"jarcalls/internal/facts"
	"jarcalls/internal/jvmtest"
)

type analysis struct {
	model *facts.Model
	rep   *extract.Report
	edges []callgraph.Edge
	adj   *callgraph.Adjacency
}

func analyze(t *testing.T, naming facts.Naming, classes ...*jvmtest.Class) analysis {
	t.Helper()
	files := make([]artifact.ClassFile, len(classes))
	for i, c := range classes {
		files[i] = artifact.ClassFile{Path: c.Name() + ".class", Data: c.Bytes()}
	}
	x, err := extract.New(extract.Options{Workers: 2})
	require.NoError(t, err)
	m, rep, err := x.Build(context.Background(), files)
	require.NoError(t, err)
	edges, err := callgraph.Project(m)
	require.NoError(t, err)
	return analysis{model: m, rep: rep, edges: edges, adj: callgraph.Aggregate(edges, naming)}
}

func scenario() []*jvmtest.Class {
	a := jvmtest.NewClass("A").Method("f", "(I)V", func(c *jvmtest.Code) {
		c.InvokeStatic("B", "g", "()V")
		c.InvokeStatic("B", "h", "()V")
		c.InvokeStatic("B", "h", "()V")
		c.Return()
	})
	b := jvmtest.NewClass("B").
		StaticMethod("g", "()V", nil).
		StaticMethod("h", "()V", nil)
	return []*jvmtest.Class{a, b}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatText},
		{"text", FormatText},
		{"JSON", FormatJSON},
		{"jsonl", FormatJSONL},
		{"ndjson", FormatJSONL},
		{"dot", FormatDOT},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseFormat("xml")
	assert.ErrorIs(t, err, ErrBadFormat)
	assert.Equal(t, "jsonl", FormatJSONL.String())
}

func TestWriteTextScenario(t *testing.T) {
	a := analyze(t, facts.NamingShort, scenario()...)
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, a.adj))
	assert.Equal(t, "A.f -> [B.g, B.h, B.h]\n", buf.String())
}

func TestWriteTextOrdered(t *testing.T) {
	z := jvmtest.NewClass("p/Z").StaticMethod("run", "()V", func(c *jvmtest.Code) {
		c.InvokeStatic("p/A", "go", "()V")
	})
	a := jvmtest.NewClass("p/A").
		StaticMethod("go", "()V", func(c *jvmtest.Code) {
			c.InvokeStatic("p/A", "stop", "()V")
		}).
		StaticMethod("stop", "()V", nil)
	an := analyze(t, facts.NamingShort, z, a)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, an.adj))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{"p.A.go -> [p.A.stop]", "p.Z.run -> [p.A.go]"}, lines)
	for i := 1; i < len(lines); i++ {
		assert.Less(t, lines[i-1], lines[i])
	}
}

func TestWriteTextEmpty(t *testing.T) {
	a := analyze(t, facts.NamingShort, jvmtest.NewClass("Leaf").StaticMethod("x", "()V", nil))
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, a.adj))
	assert.Empty(t, buf.String())
}

func TestWriteJSON(t *testing.T) {
	a := analyze(t, facts.NamingShort, scenario()...)
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, a.adj))
	assert.JSONEq(t, `{"A.f": ["B.g", "B.h", "B.h"]}`, buf.String())
}

func TestWriteJSONL(t *testing.T) {
	a := analyze(t, facts.NamingSignature, scenario()...)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSONL, Input{Edges: a.edges, Naming: facts.NamingSignature}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"caller":"A.f(int)","callee":"B.g()","site":"java+invocation:///A/f(int)#0","offset":0}`, lines[0])
	assert.JSONEq(t, `{"caller":"A.f(int)","callee":"B.h()","site":"java+invocation:///A/f(int)#6","offset":6}`, lines[2])
}

func TestWriteDOT(t *testing.T) {
	a := analyze(t, facts.NamingShort, scenario()...)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatDOT, Input{Adjacency: a.adj, Title: "scenario"}))
	assert.Contains(t, buf.String(), "digraph")
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteTextPropagatesWriterError(t *testing.T) {
	a := analyze(t, facts.NamingShort, scenario()...)
	err := WriteText(failWriter{}, a.adj)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestComputeStats(t *testing.T) {
	a := analyze(t, facts.NamingShort, scenario()...)
	s := ComputeStats(a.adj, a.rep, 0)

	assert.Equal(t, 2, s.Classes)
	assert.Equal(t, 3, s.Methods)
	assert.Equal(t, 3, s.CallSites)
	assert.Equal(t, 1, s.Callers)
	assert.Equal(t, 3, s.Edges)
	assert.Equal(t, 2, s.DistinctCallees)
	assert.Equal(t, []NameCount{{"A.f", 3}}, s.TopCallers)
	assert.Equal(t, []NameCount{{"B.h", 2}, {"B.g", 1}}, s.TopCallees)
	assert.Equal(t, []NameCount{{"A", 1}}, s.TopOwners)

	var buf bytes.Buffer
	require.NoError(t, WriteStats(&buf, s))
	assert.Contains(t, buf.String(), "edges:            3\n")
	assert.Contains(t, buf.String(), "top callees:\n       2  B.h\n")
}

func TestTopNTieBreak(t *testing.T) {
	got := topN(map[string]int{"b": 1, "a": 1, "c": 5, "d": 2}, 3)
	assert.Equal(t, []NameCount{{"c", 5}, {"d", 2}, {"a", 1}}, got)
}

func TestOwnerOf(t *testing.T) {
	assert.Equal(t, "pkg.A", ownerOf("pkg.A.f"))
	assert.Equal(t, "pkg.A", ownerOf("pkg.A.f(java.lang.String,int)"))
	assert.Equal(t, "", ownerOf("f"))
}

func TestUnreferenced(t *testing.T) {
	base := jvmtest.NewClass("p/Base").Method("run", "()V", nil)
	sub := jvmtest.NewClass("p/Sub").Extends("p/Base").Method("run", "()V", nil)
	app := jvmtest.NewClass("p/App").
		StaticMethod("main", "([Ljava/lang/String;)V", func(c *jvmtest.Code) {
			c.InvokeStatic("p/App", "used", "()V")
		}).
		StaticMethod("<clinit>", "()V", nil).
		StaticMethod("used", "()V", nil).
		StaticMethod("dead", "()V", nil)
	a := analyze(t, facts.NamingShort, base, sub, app)

	got, err := Unreferenced(a.model, facts.NamingShort)
	require.NoError(t, err)
	assert.Equal(t, []string{"p.App.dead", "p.Base.run"}, got)

	var buf bytes.Buffer
	require.NoError(t, WriteList(&buf, got))
	assert.Equal(t, "p.App.dead\np.Base.run\n", buf.String())
}

func TestUnreferencedRelationAbsent(t *testing.T) {
	m := facts.NewModel()
	m.Freeze()
	_, err := Unreferenced(m, facts.NamingShort)
	assert.ErrorIs(t, err, callgraph.ErrRelationAbsent)
}
