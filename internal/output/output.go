// Package output writes jarcalls analysis results to a directory.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"jarcalls/internal/extract"
	"jarcalls/internal/facts"
)

// FactsFile is the model dump: every relation, tuples rendered as URIs.
type FactsFile struct {
	Source    string                `json:"source"`
	Relations map[string][][]string `json:"relations"`
}

// WriteFactsJSON writes the relations of model to facts.json.
func WriteFactsJSON(dir, source string, model *facts.Model) (string, error) {
	ff := FactsFile{Source: source, Relations: make(map[string][][]string)}
	for _, name := range model.Names() {
		tuples, _ := model.Relation(name)
		rows := make([][]string, len(tuples))
		for i, t := range tuples {
			row := make([]string, len(t))
			for j, l := range t {
				row[j] = l.String()
			}
			rows[i] = row
		}
		ff.Relations[name] = rows
	}
	path := filepath.Join(dir, "facts.json")
	return path, writeJSON(path, ff)
}

// BuildFile summarizes one build.
type BuildFile struct {
	Classes    int         `json:"classes"`
	Methods    int         `json:"methods"`
	CallSites  int         `json:"call_sites"`
	Edges      int         `json:"edges"`
	Unresolved int         `json:"unresolved"`
	Diags      []DiagEntry `json:"diags,omitempty"`
}

// DiagEntry is one skipped class or decode warning.
type DiagEntry struct {
	Path   string `json:"path"`
	Offset int    `json:"offset,omitempty"`
	Kind   string `json:"kind"`
	Msg    string `json:"msg"`
}

// WriteBuildJSON writes the build report to build.json.
func WriteBuildJSON(dir string, rep *extract.Report) (string, error) {
	bf := BuildFile{
		Classes:    rep.Classes,
		Methods:    rep.Methods,
		CallSites:  rep.CallSites,
		Edges:      rep.Edges,
		Unresolved: rep.Unresolved,
	}
	for _, d := range rep.Diags() {
		e := DiagEntry{Path: d.Path, Kind: string(d.Kind), Msg: d.Msg}
		if d.Offset >= 0 {
			e.Offset = d.Offset
		}
		bf.Diags = append(bf.Diags, e)
	}
	path := filepath.Join(dir, "build.json")
	return path, writeJSON(path, bf)
}

// WriteDOT writes dot to <dir>/<name>.dot.
func WriteDOT(dir, name, dot string) (string, error) {
	path := filepath.Join(dir, name+".dot")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("output: mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(dot), 0644); err != nil {
		return "", fmt.Errorf("output: write %s: %w", path, err)
	}
	return path, nil
}

// WriteCFG writes one method CFG to cfg/<name>.dot.
func WriteCFG(dir, name, dot string) (string, error) {
	return WriteDOT(filepath.Join(dir, "cfg"), name, dot)
}

// DotBinary is the Graphviz executable used by SVG.
var DotBinary = "dot"

// SVG renders dotPath next to itself with Graphviz and returns the
// SVG path.
func SVG(dotPath string) (string, error) {
	svgPath := strings.TrimSuffix(dotPath, ".dot") + ".svg"
	cmd := exec.Command(DotBinary, "-Tsvg", "-o", svgPath, dotPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("output: %s %s: %w: %s", DotBinary, dotPath, err, strings.TrimSpace(string(out)))
	}
	return svgPath, nil
}

// WriteJSON writes v as indented JSON to <dir>/<name>.json.
func WriteJSON(dir, name string, v any) (string, error) {
	path := filepath.Join(dir, name+".json")
	return path, writeJSON(path, v)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}
