package facts

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Relation names.
const (
	RelDeclarations     = "declarations"
	RelContainment      = "containment"
	RelExtends          = "extends"
	RelImplements       = "implements"
	RelMethodOverrides  = "methodOverrides"
	RelMethodInvocation = "methodInvocation"
)

var (
	ErrFrozen = errors.New("facts: model is frozen")
	ErrArity  = errors.New("facts: tuple arity mismatch")
)

// Tuple is one row of a relation.
type Tuple []Location

func compareTuples(a, b Tuple) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

type relation struct {
	arity  int
	seen   map[string]struct{}
	tuples []Tuple
}

// Model maps relation names to sets of tuples. It is filled by a builder,
// frozen, and read-only afterwards.
type Model struct {
	rels   map[string]*relation
	frozen bool
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{rels: make(map[string]*relation)}
}

// Declare registers a relation with the given arity so that it exists even
// when it receives no tuples.
func (m *Model) Declare(name string, arity int) error {
	if m.frozen {
		return ErrFrozen
	}
	if r, ok := m.rels[name]; ok {
		if r.arity != arity {
			return fmt.Errorf("%w: %s has %d, got %d", ErrArity, name, r.arity, arity)
		}
		return nil
	}
	m.rels[name] = &relation{arity: arity, seen: make(map[string]struct{})}
	return nil
}

// Add inserts a tuple into a relation, declaring it on first use. Adding a
// tuple already present is a no-op.
func (m *Model) Add(name string, locs ...Location) error {
	if err := m.Declare(name, len(locs)); err != nil {
		return err
	}
	r := m.rels[name]
	key := tupleKey(locs)
	if _, dup := r.seen[key]; dup {
		return nil
	}
	r.seen[key] = struct{}{}
	r.tuples = append(r.tuples, slices.Clone(Tuple(locs)))
	return nil
}

func tupleKey(locs []Location) string {
	var b strings.Builder
	for _, l := range locs {
		b.WriteString(l.String())
		b.WriteByte(0)
	}
	return b.String()
}

// Freeze sorts every relation and rejects further writes.
func (m *Model) Freeze() {
	if m.frozen {
		return
	}
	for _, r := range m.rels {
		slices.SortFunc(r.tuples, compareTuples)
		r.seen = nil
	}
	m.frozen = true
}

// Frozen reports whether Freeze has been called.
func (m *Model) Frozen() bool { return m.frozen }

// Relation returns the tuples of a relation and whether it exists. The
// returned slice must not be modified.
func (m *Model) Relation(name string) ([]Tuple, bool) {
	r, ok := m.rels[name]
	if !ok {
		return nil, false
	}
	return r.tuples, true
}

// Len returns the number of tuples in a relation.
func (m *Model) Len(name string) int {
	if r, ok := m.rels[name]; ok {
		return len(r.tuples)
	}
	return 0
}

// Names returns the relation names in sorted order.
func (m *Model) Names() []string {
	names := make([]string, 0, len(m.rels))
	for n := range m.rels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Declarations returns the distinct method-like declarations recorded in
// the declarations relation, sorted.
func (m *Model) Declarations() []Location {
	tuples, _ := m.Relation(RelDeclarations)
	var out []Location
	for _, t := range tuples {
		if len(t) > 0 && t[0].IsDeclaration() {
			out = append(out, t[0])
		}
	}
	slices.SortFunc(out, Compare)
	return slices.Compact(out)
}
