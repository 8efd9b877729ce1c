package render

import (
	"strings"

	"jarcalls/internal/bytecode"
	"jarcalls/internal/extract"
	"jarcalls/internal/facts"
)

// Edge provenance categories.
const (
	ProvDirect   = "direct"
	ProvVirtual  = "virtual"
	ProvOverride = "override"
	ProvDynamic  = "dynamic"
	ProvExternal = "external"
)

// Func is a declared method.
type Func struct {
	Name     string
	Owner    string // dotted class name
	Abstract bool   // declared without code
}

// Call is one resolved call target. Repeated calls appear once per site.
type Call struct {
	From string
	To   string
	Prov string
}

// Collect flattens the declarations of model and the call sites of bodies
// into render input, with identities rendered under naming. Under short
// naming overloads share one Func.
func Collect(model *facts.Model, bodies []extract.Body, naming facts.Naming) ([]Func, []Call) {
	withCode := make(map[facts.Location]bool, len(bodies))
	for _, b := range bodies {
		withCode[b.Decl] = true
	}

	declared := make(map[facts.Location]bool)
	seen := make(map[string]bool)
	var funcs []Func
	for _, d := range model.Declarations() {
		declared[d] = true
		name := naming.Name(d)
		if seen[name] {
			continue
		}
		seen[name] = true
		owner := strings.ReplaceAll(strings.TrimPrefix(d.Owner(), "/"), "/", ".")
		funcs = append(funcs, Func{Name: name, Owner: owner, Abstract: !withCode[d]})
	}

	var calls []Call
	for _, b := range bodies {
		from := naming.Name(b.Decl)
		for _, s := range b.Sites {
			for i, callee := range s.Callees {
				prov := siteProv(s.Kind)
				switch {
				case !declared[callee]:
					prov = ProvExternal
				case i > 0:
					prov = ProvOverride
				}
				calls = append(calls, Call{From: from, To: naming.Name(callee), Prov: prov})
			}
		}
	}
	return funcs, calls
}

func siteProv(kind string) string {
	switch kind {
	case bytecode.KindVirtual, bytecode.KindInterface:
		return ProvVirtual
	case bytecode.KindDynamic:
		return ProvDynamic
	}
	return ProvDirect
}

// ProvCounts counts calls per provenance.
func ProvCounts(calls []Call) map[string]int {
	out := make(map[string]int)
	for _, c := range calls {
		out[c.Prov]++
	}
	return out
}

// edgeColor returns the DOT color for an edge provenance category.
func edgeColor(prov string, t Theme) string {
	switch prov {
	case ProvVirtual:
		return t.EdgeVirtual
	case ProvOverride:
		return t.EdgeOverride
	case ProvDynamic:
		return t.EdgeDynamic
	case ProvExternal:
		return t.EdgeExternal
	}
	return t.EdgeDirect
}

// edgeStyle returns the DOT line style for an edge provenance category.
func edgeStyle(prov string) string {
	switch prov {
	case ProvOverride:
		return "dotted"
	case ProvDynamic, ProvExternal:
		return "dashed"
	}
	return "solid"
}
