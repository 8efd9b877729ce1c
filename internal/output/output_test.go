package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarcalls/internal/classfmt"
	"jarcalls/internal/extract"
	"jarcalls/internal/facts"
)

func TestWriteFactsJSON(t *testing.T) {
	m := facts.NewModel()
	require.NoError(t, m.Declare(facts.RelMethodInvocation, 3))
	caller := facts.MethodLocation("p/A", "f", []string{"int"})
	callee := facts.MethodLocation("p/B", "g", nil)
	require.NoError(t, m.Add(facts.RelMethodInvocation, caller, callee, facts.SiteLocation(caller, 3)))
	m.Freeze()

	dir := t.TempDir()
	path, err := WriteFactsJSON(dir, "app.jar", m)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "facts.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var ff FactsFile
	require.NoError(t, json.Unmarshal(data, &ff))
	assert.Equal(t, "app.jar", ff.Source)
	require.Len(t, ff.Relations[facts.RelMethodInvocation], 1)
	assert.Equal(t, []string{
		"java+method:///p/A/f(int)",
		"java+method:///p/B/g()",
		"java+invocation:///p/A/f(int)#3",
	}, ff.Relations[facts.RelMethodInvocation][0])
}

func TestWriteBuildJSON(t *testing.T) {
	rep := &extract.Report{Classes: 2, Methods: 5, CallSites: 3, Edges: 3, Unresolved: 1}
	rep.Skipped = append(rep.Skipped, extract.Skipped{Path: "b/Bad.class", Err: os.ErrInvalid})
	rep.Warnings = append(rep.Warnings, classfmt.Diag{Path: "a/A.class", Offset: 12, Kind: classfmt.DiagTruncated, Msg: "code cut"})

	path, err := WriteBuildJSON(t.TempDir(), rep)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var bf BuildFile
	require.NoError(t, json.Unmarshal(data, &bf))
	assert.Equal(t, 2, bf.Classes)
	assert.Equal(t, 1, bf.Unresolved)
	require.Len(t, bf.Diags, 2)
	assert.Equal(t, "a/A.class", bf.Diags[0].Path)
	assert.Equal(t, 12, bf.Diags[0].Offset)
	assert.Equal(t, "skipped", bf.Diags[1].Kind)
	assert.Zero(t, bf.Diags[1].Offset)
}

func TestWriteDOTAndCFG(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteDOT(dir, "callgraph", "digraph g {}\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "callgraph.dot"), path)

	path, err = WriteCFG(dir, "p.A.f", "digraph cfg {}\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cfg", "p.A.f.dot"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "digraph cfg {}\n", string(data))
}

func TestSVGMissingBinary(t *testing.T) {
	old := DotBinary
	DotBinary = filepath.Join(t.TempDir(), "no-such-dot")
	t.Cleanup(func() { DotBinary = old })

	path, err := WriteDOT(t.TempDir(), "g", "digraph g {}\n")
	require.NoError(t, err)
	_, err = SVG(path)
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteJSON(dir, "signal", map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "signal.json"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1,\n  \"b\": 2\n}\n", string(data))

	_, err = WriteJSON(filepath.Join(dir, "missing"), "x", 1)
	assert.Error(t, err)
}
