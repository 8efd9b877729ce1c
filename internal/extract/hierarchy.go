package extract

import (
	"sort"

	"jarcalls/internal/classfile"
)

// hierarchy indexes the classes present in the artifact by internal name.
type hierarchy struct {
	classes map[string]*classfile.Class
	subs    map[string][]string // direct subclasses and implementors, sorted
}

func newHierarchy(classes []*classfile.Class) *hierarchy {
	h := &hierarchy{
		classes: make(map[string]*classfile.Class, len(classes)),
		subs:    make(map[string][]string),
	}
	for _, c := range classes {
		h.classes[c.Name] = c
	}
	for _, c := range classes {
		if c.Super != "" && !c.IsInterface() {
			h.subs[c.Super] = append(h.subs[c.Super], c.Name)
		}
		for _, i := range c.Interfaces {
			h.subs[i] = append(h.subs[i], c.Name)
		}
	}
	for k := range h.subs {
		sort.Strings(h.subs[k])
	}
	return h
}

func (h *hierarchy) lookup(name string) (*classfile.Class, bool) {
	c, ok := h.classes[name]
	return c, ok
}

// resolveMethod follows JVM method resolution: the owner, its superclasses,
// then its superinterfaces, where a non-abstract interface method wins over
// an abstract one. It reports false when the chain leaves the artifact
// before a match is found.
func (h *hierarchy) resolveMethod(owner, name, desc string) (*classfile.Class, *classfile.Method, bool) {
	var chain []*classfile.Class
	for cur := owner; cur != ""; {
		c, ok := h.classes[cur]
		if !ok {
			break
		}
		if m, ok := c.Method(name, desc); ok {
			return c, m, true
		}
		chain = append(chain, c)
		if c.IsInterface() {
			break
		}
		cur = c.Super
	}

	var abstractClass *classfile.Class
	var abstractMethod *classfile.Method
	seen := make(map[string]bool)
	queue := make([]string, 0, 4)
	for _, c := range chain {
		queue = append(queue, c.Interfaces...)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		c, ok := h.classes[cur]
		if !ok {
			continue
		}
		if m, ok := c.Method(name, desc); ok && !m.IsPrivate() && !m.IsStatic() {
			if !m.IsAbstract() {
				return c, m, true
			}
			if abstractMethod == nil {
				abstractClass, abstractMethod = c, m
			}
		}
		queue = append(queue, c.Interfaces...)
	}
	if abstractMethod != nil {
		return abstractClass, abstractMethod, true
	}
	return nil, nil, false
}

// subtypes returns every transitive subtype of name present in the
// artifact, sorted by name.
func (h *hierarchy) subtypes(name string) []string {
	seen := map[string]bool{name: true}
	var out []string
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, s := range h.subs[cur] {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
			queue = append(queue, s)
		}
	}
	sort.Strings(out)
	return out
}

// supertypes returns every transitive supertype of c present in the
// artifact, sorted by name.
func (h *hierarchy) supertypes(c *classfile.Class) []*classfile.Class {
	seen := map[string]bool{c.Name: true}
	var out []*classfile.Class
	queue := []*classfile.Class{c}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		parents := cur.Interfaces
		if cur.Super != "" {
			parents = append([]string{cur.Super}, parents...)
		}
		for _, p := range parents {
			if seen[p] {
				continue
			}
			seen[p] = true
			if pc, ok := h.classes[p]; ok {
				out = append(out, pc)
				queue = append(queue, pc)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// overridable reports whether m takes part in virtual dispatch.
func overridable(m *classfile.Method) bool {
	return !m.IsStatic() && !m.IsPrivate() && m.Name != "<init>" && m.Name != "<clinit>"
}

// overriders returns the concrete methods of subtypes of owner that
// override owner's name+desc method.
func (h *hierarchy) overriders(owner *classfile.Class, m *classfile.Method) []*classfile.Class {
	if !overridable(m) || m.Access&classfile.AccFinal != 0 {
		return nil
	}
	var out []*classfile.Class
	for _, name := range h.subtypes(owner.Name) {
		sub := h.classes[name]
		if sm, ok := sub.Method(m.Name, m.Descriptor); ok && overridable(sm) && !sm.IsAbstract() {
			out = append(out, sub)
		}
	}
	return out
}
