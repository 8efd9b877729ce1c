package report

import (
	"bufio"
	"fmt"
	"io"
	"slices"

	"jarcalls/internal/callgraph"
	"jarcalls/internal/facts"
)

const mainMember = "main(java.lang.String[])"

// Unreferenced returns the declared methods no invocation in the model
// targets. Static initializers, main methods and methods that override a
// supertype declaration are left out: the runtime reaches them without a
// call site in the artifact. Identities are rendered under naming, sorted
// and unique.
func Unreferenced(model *facts.Model, naming facts.Naming) ([]string, error) {
	calls, ok := model.Relation(facts.RelMethodInvocation)
	if !ok {
		return nil, callgraph.ErrRelationAbsent
	}
	targeted := make(map[facts.Location]bool, len(calls))
	for _, t := range calls {
		if len(t) > 1 {
			targeted[t[1]] = true
		}
	}
	overriding := make(map[facts.Location]bool)
	if ov, ok := model.Relation(facts.RelMethodOverrides); ok {
		for _, t := range ov {
			overriding[t[0]] = true
		}
	}

	var names []string
	for _, d := range model.Declarations() {
		switch {
		case targeted[d], overriding[d]:
			continue
		case d.Scheme == facts.SchemeInitializer:
			continue
		case d.Scheme == facts.SchemeMethod && d.Member() == mainMember:
			continue
		}
		names = append(names, naming.Name(d))
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// WriteList writes one name per line.
func WriteList(w io.Writer, names []string) error {
	bw := bufio.NewWriter(w)
	for _, n := range names {
		fmt.Fprintln(bw, n)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("report: write list: %w", err)
	}
	return nil
}
