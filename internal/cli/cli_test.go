package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarcalls/internal/artifact"
	"jarcalls/internal/classfmt"
	"jarcalls/internal/config"
	"jarcalls/internal/jvmtest"
	"jarcalls/internal/pipeline"
)

func scenarioJar(t *testing.T, extra ...jvmtest.Entry) string {
	t.Helper()
	a := jvmtest.NewClass("A").Method("f", "(I)V", func(c *jvmtest.Code) {
		c.InvokeStatic("B", "g", "()V")
		c.InvokeStatic("B", "h", "()V")
		c.InvokeStatic("B", "h", "()V")
		c.Return()
	})
	b := jvmtest.NewClass("B").
		StaticMethod("g", "()V", nil).
		StaticMethod("h", "()V", nil)
	entries := append([]jvmtest.Entry{jvmtest.ClassEntry(a), jvmtest.ClassEntry(b)}, extra...)
	return writeJar(t, entries...)
}

func writeJar(t *testing.T, entries ...jvmtest.Entry) string {
	t.Helper()
	data, err := jvmtest.Jar(entries...)
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), "app.jar")
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCommand("test")
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCallsScenario(t *testing.T) {
	jar := scenarioJar(t)
	want := "A.f -> [B.g, B.h, B.h]\n"

	out, _, err := execute(t, "calls", jar)
	require.NoError(t, err)
	assert.Equal(t, want, out)

	out, _, err = execute(t, jar)
	require.NoError(t, err)
	assert.Equal(t, want, out, "root command with one argument runs calls")
}

func TestCallsIdempotent(t *testing.T) {
	jar := scenarioJar(t)
	first, _, err := execute(t, "calls", "--format", "jsonl", jar)
	require.NoError(t, err)
	second, _, err := execute(t, "calls", "--format", "jsonl", jar)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 3, strings.Count(first, "\n"))
}

func TestCallsNamingAndFormat(t *testing.T) {
	jar := scenarioJar(t)

	out, _, err := execute(t, "calls", "--naming", "signature", jar)
	require.NoError(t, err)
	assert.Equal(t, "A.f(int) -> [B.g(), B.h(), B.h()]\n", out)

	out, _, err = execute(t, "calls", "--format", "json", jar)
	require.NoError(t, err)
	var got map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string][]string{"A.f": {"B.g", "B.h", "B.h"}}, got)

	out, _, err = execute(t, "calls", "--format", "dot", "--title", "demo", jar)
	require.NoError(t, err)
	assert.Contains(t, out, "digraph")

	_, _, err = execute(t, "calls", "--format", "yaml", jar)
	assert.Error(t, err)
	_, _, err = execute(t, "calls", "--dispatch", "dynamic", jar)
	assert.Error(t, err)
}

func TestCallsEnvironment(t *testing.T) {
	jar := scenarioJar(t)
	t.Setenv(config.EnvNaming, "signature")

	out, _, err := execute(t, "calls", jar)
	require.NoError(t, err)
	assert.Equal(t, "A.f(int) -> [B.g(), B.h(), B.h()]\n", out)

	out, _, err = execute(t, "calls", "--naming", "short", jar)
	require.NoError(t, err)
	assert.Equal(t, "A.f -> [B.g, B.h, B.h]\n", out, "flag overrides environment")
}

func TestCallsExcludeCombinesEnvironmentAndFlags(t *testing.T) {
	gen := jvmtest.NewClass("gen/G").StaticMethod("run", "()V", func(c *jvmtest.Code) {
		c.InvokeStatic("B", "g", "()V")
		c.Return()
	})
	shaded := jvmtest.NewClass("shaded/S").StaticMethod("run", "()V", func(c *jvmtest.Code) {
		c.InvokeStatic("B", "h", "()V")
		c.Return()
	})
	jar := scenarioJar(t, jvmtest.ClassEntry(gen), jvmtest.ClassEntry(shaded))
	t.Setenv(config.EnvExclude, "shaded/")

	out, _, err := execute(t, "calls", "--exclude", "gen/", jar)
	require.NoError(t, err)
	assert.Equal(t, "A.f -> [B.g, B.h, B.h]\n", out)

	root := NewRootCommand("test")
	cmd, _, err := root.Find([]string{"calls"})
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags([]string{"--exclude", "gen/", "--exclude", "x/"}))
	rc, err := loadRunConfig(cmd)
	require.NoError(t, err)
	defer rc.cleanup()
	assert.Equal(t, []string{"shaded/", "gen/", "x/"}, rc.opts.Artifact.Exclude)
}

func TestCallsEnvFile(t *testing.T) {
	jar := scenarioJar(t)
	envFile := filepath.Join(t.TempDir(), "jarcalls.env")
	require.NoError(t, os.WriteFile(envFile, []byte("JARCALLS_FORMAT=jsonl\n"), 0o644))
	t.Setenv(config.EnvFormat, "")
	os.Unsetenv(config.EnvFormat)

	out, _, err := execute(t, "calls", "--env-file", envFile, jar)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "\n"))
	assert.Contains(t, out, `"caller":"A.f"`)

	_, _, err = execute(t, "calls", "--env-file", filepath.Join(t.TempDir(), "missing.env"), jar)
	assert.Error(t, err)
}

func TestCallsEmptyArtifact(t *testing.T) {
	jar := writeJar(t, jvmtest.Entry{Name: "META-INF/MANIFEST.MF", Data: []byte("Manifest-Version: 1.0\n")})
	out, _, err := execute(t, "calls", jar)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCallsUnreadable(t *testing.T) {
	p := filepath.Join(t.TempDir(), "broken.jar")
	require.NoError(t, os.WriteFile(p, []byte("not a zip archive"), 0o644))

	out, _, err := execute(t, "calls", p)
	require.Error(t, err)
	assert.ErrorIs(t, err, artifact.ErrUnreadable)
	var se *pipeline.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, pipeline.StageLoading, se.Stage)
	assert.Empty(t, out)
}

func TestCallsBadClass(t *testing.T) {
	jar := scenarioJar(t, jvmtest.Entry{Name: "bad/Broken.class", Data: []byte{0xCA, 0xFE}})

	out, stderr, err := execute(t, "calls", "--warnings", jar)
	require.NoError(t, err)
	assert.Equal(t, "A.f -> [B.g, B.h, B.h]\n", out)
	assert.Contains(t, stderr, "warning: ["+string(classfmt.DiagSkipped)+"] bad/Broken.class")

	out, _, err = execute(t, "calls", "--strict", jar)
	require.Error(t, err)
	var se *pipeline.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, pipeline.StageBuilding, se.Stage)
	assert.Empty(t, out)
}

func TestStats(t *testing.T) {
	jar := scenarioJar(t)
	out, _, err := execute(t, "stats", jar)
	require.NoError(t, err)
	assert.Contains(t, out, "edges:")

	out, _, err = execute(t, "stats", "--json", jar)
	require.NoError(t, err)
	var got struct {
		Classes int `json:"classes"`
		Edges   int `json:"edges"`
		Callers int `json:"callers"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2, got.Classes)
	assert.Equal(t, 3, got.Edges)
	assert.Equal(t, 1, got.Callers)
}

func TestUnused(t *testing.T) {
	out, _, err := execute(t, "unused", scenarioJar(t))
	require.NoError(t, err)
	assert.Equal(t, "A.f\n", out)
}

func TestCFG(t *testing.T) {
	jar := scenarioJar(t)
	dir := t.TempDir()
	_, stderr, err := execute(t, "cfg", "--out", dir, "--method", "A.f", jar)
	require.NoError(t, err)
	assert.Contains(t, stderr, "wrote 1 CFGs")

	data, err := os.ReadFile(filepath.Join(dir, "cfg", "A.f.dot"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph")

	asmDir := t.TempDir()
	_, _, err = execute(t, "cfg", "--out", asmDir, "--asm", "--method", "A.f", jar)
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(asmDir, "cfg", "A.f.dot"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "invokestatic")
	assert.Contains(t, string(data), "B.h")

	_, _, err = execute(t, "cfg", jar)
	assert.Error(t, err, "--out is required")
}

func TestGraph(t *testing.T) {
	jar := scenarioJar(t)
	dir := t.TempDir()
	_, _, err := execute(t, "graph", "--out", dir, "--facts", jar)
	require.NoError(t, err)

	for _, name := range []string{"callgraph.dot", "classgraph.dot", "reachable.dot", "build.json", "facts.json", "index.html"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	html, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>app.jar</h1>")
	assert.Contains(t, string(html), `href="callgraph.dot"`)
	assert.Contains(t, string(html), "A.f")
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "jarcalls test\n", out)
}

func TestDefaultTitle(t *testing.T) {
	assert.Equal(t, "app.jar", defaultTitle("/tmp/x/app.jar"))
	assert.Equal(t, "classes", defaultTitle("build/classes/"))
	assert.Equal(t, "callgraph", defaultTitle(""))
}

func TestSignal(t *testing.T) {
	runner := jvmtest.NewClass("p/Runner").
		Method("launch", "(Ljava/lang/String;)V", func(c *jvmtest.Code) {
			c.InvokeStatic("java/lang/Runtime", "getRuntime", "()Ljava/lang/Runtime;")
			c.InvokeVirtual("java/lang/Runtime", "exec", "(Ljava/lang/String;)Ljava/lang/Process;")
			c.Return()
		}).
		StaticMethod("main", "([Ljava/lang/String;)V", func(c *jvmtest.Code) {
			c.InvokeVirtual("p/Runner", "launch", "(Ljava/lang/String;)V")
			c.Return()
		})
	jar := scenarioJar(t, jvmtest.ClassEntry(runner))
	dir := t.TempDir()

	out, _, err := execute(t, "signal", "--out", dir, jar)
	require.NoError(t, err)
	assert.Equal(t, "high    p.Runner.launch [exec]\n        -> java.lang.Runtime.exec\n", out)
	assert.FileExists(t, filepath.Join(dir, "signal.json"))
	assert.FileExists(t, filepath.Join(dir, "signal.dot"))

	out, _, err = execute(t, "signal", "--json", jar)
	require.NoError(t, err)
	var g struct {
		Funcs []struct {
			Name string `json:"name"`
			Role string `json:"role"`
		} `json:"funcs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	require.Len(t, g.Funcs, 2)
	assert.Equal(t, "p.Runner.launch", g.Funcs[0].Name)
	assert.Equal(t, "context", g.Funcs[1].Role)
	assert.Equal(t, "p.Runner.main", g.Funcs[1].Name)
}
