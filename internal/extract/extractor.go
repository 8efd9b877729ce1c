// Package extract builds the fact model from decoded class files: it
// indexes the class hierarchy, resolves every call site against it, and
// records declarations, hierarchy and invocation relations.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"jarcalls/internal/artifact"
	"jarcalls/internal/bytecode"
	"jarcalls/internal/classfile"
	"jarcalls/internal/classfmt"
	"jarcalls/internal/facts"
)

const lambdaMetafactory = "java/lang/invoke/LambdaMetafactory"

// maxKnownMajor is the newest class file version this decoder was checked
// against (Java 25).
const maxKnownMajor = 69

// Extractor holds the state of one extraction: options, logger and the
// descriptor cache. It is safe to reuse for several builds but is meant to
// be short-lived.
type Extractor struct {
	opts  Options
	log   *slog.Logger
	descs *lru.Cache[string, facts.MethodType]
}

// New creates an extractor.
func New(opts Options) (*Extractor, error) {
	cache, err := lru.New[string, facts.MethodType](opts.effectiveCacheSize())
	if err != nil {
		return nil, fmt.Errorf("extract: descriptor cache: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Extractor{opts: opts, log: log, descs: cache}, nil
}

// Options returns the extractor's configuration.
func (e *Extractor) Options() Options { return e.opts }

// methodType parses a method descriptor through the cache.
func (e *Extractor) methodType(desc string) (facts.MethodType, error) {
	if mt, ok := e.descs.Get(desc); ok {
		return mt, nil
	}
	mt, err := facts.ParseMethodDescriptor(desc)
	if err != nil {
		return facts.MethodType{}, err
	}
	e.descs.Add(desc, mt)
	return mt, nil
}

func (e *Extractor) methodLocation(owner, name, desc string) (facts.Location, error) {
	mt, err := e.methodType(desc)
	if err != nil {
		return facts.Location{}, err
	}
	return facts.MethodLocation(owner, name, mt.Params), nil
}

// Body is a decoded method with its resolved call sites.
type Body struct {
	Decl  facts.Location
	Insts []bytecode.Inst
	Sites []ResolvedSite
}

// ResolvedSite is a call site with the targets recorded for it.
type ResolvedSite struct {
	bytecode.CallSite
	Callees []facts.Location
}

// target is a call site with the method it names, read from the constant
// pool while decoding.
type target struct {
	bytecode.CallSite
	ref    classfile.MemberRef
	params []string
}

// unit is one decoded class and its method bodies.
type unit struct {
	path  string
	class *classfile.Class
	decls []facts.Location  // parallel to class.Methods
	insts [][]bytecode.Inst // parallel to class.Methods; nil without code
	sites [][]target        // parallel to class.Methods
	err   error
}

// Build decodes classes and returns the frozen fact model.
func (e *Extractor) Build(ctx context.Context, classes []artifact.ClassFile) (*facts.Model, *Report, error) {
	m, _, rep, err := e.run(ctx, classes, false)
	return m, rep, err
}

// Bodies is Build that also returns every decoded method body in
// declaration order.
func (e *Extractor) Bodies(ctx context.Context, classes []artifact.ClassFile) (*facts.Model, []Body, *Report, error) {
	return e.run(ctx, classes, true)
}

func (e *Extractor) run(ctx context.Context, classes []artifact.ClassFile, keepBodies bool) (*facts.Model, []Body, *Report, error) {
	rep := &Report{}
	diags := &classfmt.Diags{}

	// Phase 1: decode in parallel. Wait is a barrier; units merge in path order.
	units, err := e.decodeAll(ctx, classes, diags)
	if err != nil {
		return nil, nil, nil, err
	}
	var decoded []*unit
	byName := make(map[string]string)
	for _, u := range units {
		if u.err != nil {
			if e.opts.Mode == classfmt.ModeStrict {
				return nil, nil, nil, fmt.Errorf("extract: %w", u.err)
			}
			rep.skip(u.path, u.err)
			e.log.Warn("skipped class", "path", u.path, "err", u.err)
			continue
		}
		if first, dup := byName[u.class.Name]; dup {
			diags.Addf(u.path, -1, classfmt.DiagDuplicate, "class %s already loaded from %s", u.class.Name, first)
			continue
		}
		byName[u.class.Name] = u.path
		decoded = append(decoded, u)
	}

	// Phase 2: hierarchy.
	all := make([]*classfile.Class, len(decoded))
	for i, u := range decoded {
		all[i] = u.class
	}
	h := newHierarchy(all)

	// Phase 3: relations.
	model := facts.NewModel()
	for _, rel := range []struct {
		name  string
		arity int
	}{
		{facts.RelDeclarations, 2},
		{facts.RelContainment, 2},
		{facts.RelExtends, 2},
		{facts.RelImplements, 2},
		{facts.RelMethodOverrides, 2},
		{facts.RelMethodInvocation, 3},
	} {
		if err := model.Declare(rel.name, rel.arity); err != nil {
			return nil, nil, nil, err
		}
	}

	var bodies []Body
	for _, u := range decoded {
		if err := ctx.Err(); err != nil {
			return nil, nil, nil, err
		}
		if err := e.recordClass(model, h, u); err != nil {
			return nil, nil, nil, err
		}
		b, err := e.recordInvocations(model, h, u, rep)
		if err != nil {
			return nil, nil, nil, err
		}
		if keepBodies {
			bodies = append(bodies, b...)
		}
		rep.Classes++
		rep.Methods += len(u.class.Methods)
	}
	model.Freeze()
	rep.Edges = model.Len(facts.RelMethodInvocation)
	rep.Warnings = diags.Items()

	e.log.Info("built fact model",
		"classes", rep.Classes,
		"methods", rep.Methods,
		"sites", rep.CallSites,
		"edges", rep.Edges,
		"unresolved", rep.Unresolved,
		"skipped", len(rep.Skipped))
	return model, bodies, rep, nil
}

func (e *Extractor) decodeAll(ctx context.Context, classes []artifact.ClassFile, diags *classfmt.Diags) ([]*unit, error) {
	sorted := make([]artifact.ClassFile, len(classes))
	copy(sorted, classes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	units := make([]*unit, len(sorted))
	workers := e.opts.effectiveWorkers()
	if workers > len(sorted) {
		workers = len(sorted)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, cf := range sorted {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			units[i] = e.decode(cf, diags)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return units, nil
}

// decode parses one class, all of its method bodies and the constant pool
// references of their call sites. Any failure skips the whole class.
func (e *Extractor) decode(cf artifact.ClassFile, diags *classfmt.Diags) *unit {
	u := &unit{path: cf.Path}
	if cf.Err != nil {
		u.err = &classfile.DecodeError{Path: cf.Path, Err: cf.Err}
		return u
	}
	c, err := classfile.Parse(cf.Path, cf.Data, classfmt.Options{
		Mode:     e.opts.Mode,
		MaxInsts: e.opts.MaxInsts,
		MaxBytes: e.opts.MaxClassBytes,
	})
	if err != nil {
		u.err = err
		return u
	}
	if c.Major > maxKnownMajor {
		diags.Addf(cf.Path, -1, classfmt.DiagUnsupported, "class file version %d.%d is newer than %d", c.Major, c.Minor, maxKnownMajor)
	}
	u.class = c
	u.decls = make([]facts.Location, len(c.Methods))
	u.insts = make([][]bytecode.Inst, len(c.Methods))
	u.sites = make([][]target, len(c.Methods))
	for i := range c.Methods {
		m := &c.Methods[i]
		loc, err := e.methodLocation(c.Name, m.Name, m.Descriptor)
		if err != nil {
			u.err = &classfile.DecodeError{Path: cf.Path, Err: fmt.Errorf("method %s: %w", m.Name, err)}
			return u
		}
		u.decls[i] = loc
		if m.Code == nil {
			continue
		}
		insts, err := bytecode.Decode(m.Code.Bytes, bytecode.Options{MaxInsts: e.opts.MaxInsts})
		if err != nil {
			u.err = &classfile.DecodeError{Path: cf.Path, Err: fmt.Errorf("method %s%s: %w", m.Name, m.Descriptor, err)}
			return u
		}
		u.insts[i] = insts
		sites, err := e.siteTargets(c, bytecode.ExtractCallSites(insts, m.Code.LineAt))
		if err != nil {
			u.err = &classfile.DecodeError{Path: cf.Path, Err: fmt.Errorf("method %s%s: %w", m.Name, m.Descriptor, err)}
			return u
		}
		u.sites[i] = sites
	}
	return u
}

// siteTargets reads the method named by every call site.
func (e *Extractor) siteTargets(c *classfile.Class, sites []bytecode.CallSite) ([]target, error) {
	out := make([]target, 0, len(sites))
	for _, site := range sites {
		ref, err := symbolicRef(c, site)
		if err != nil {
			return nil, fmt.Errorf("call site %d: %w", site.Offset, err)
		}
		mt, err := e.methodType(ref.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("call site %d: %w", site.Offset, err)
		}
		out = append(out, target{CallSite: site, ref: ref, params: mt.Params})
	}
	return out, nil
}

// symbolicRef returns the method a call site names. An invokedynamic site
// names the lambda implementation method for LambdaMetafactory bootstraps,
// otherwise the bootstrap method itself.
func symbolicRef(c *classfile.Class, site bytecode.CallSite) (classfile.MemberRef, error) {
	if site.Kind != bytecode.KindDynamic {
		return c.Pool.MethodRef(site.Ref)
	}
	bsmIndex, _, _, err := c.Pool.InvokeDynamic(site.Ref)
	if err != nil {
		return classfile.MemberRef{}, err
	}
	if int(bsmIndex) >= len(c.Bootstrap) {
		return classfile.MemberRef{}, fmt.Errorf("bootstrap method %d out of range", bsmIndex)
	}
	bsm := c.Bootstrap[bsmIndex]
	handle, err := c.Pool.MethodHandle(bsm.Handle)
	if err != nil {
		return classfile.MemberRef{}, err
	}
	if handle.Ref.Owner == lambdaMetafactory && len(bsm.Args) >= 2 {
		if impl, err := c.Pool.MethodHandle(bsm.Args[1]); err == nil && impl.IsMethod() {
			return impl.Ref, nil
		}
	}
	return handle.Ref, nil
}

func typeLocation(h *hierarchy, name string, iface bool) facts.Location {
	if c, ok := h.lookup(name); ok {
		iface = c.IsInterface()
	}
	return facts.ClassLocation(name, iface)
}

// recordClass adds declarations, containment, hierarchy and override facts.
func (e *Extractor) recordClass(model *facts.Model, h *hierarchy, u *unit) error {
	c := u.class
	cls := facts.ClassLocation(c.Name, c.IsInterface())
	cu := facts.CompilationUnitLocation(c.Name, c.SourceFile)

	add := func(rel string, locs ...facts.Location) error {
		if err := model.Add(rel, locs...); err != nil {
			return fmt.Errorf("extract: %s: %w", rel, err)
		}
		return nil
	}
	if err := add(facts.RelDeclarations, cls, cu); err != nil {
		return err
	}
	if err := add(facts.RelContainment, cu, cls); err != nil {
		return err
	}
	if c.IsInterface() {
		for _, i := range c.Interfaces {
			if err := add(facts.RelExtends, cls, typeLocation(h, i, true)); err != nil {
				return err
			}
		}
	} else {
		if c.Super != "" {
			if err := add(facts.RelExtends, cls, typeLocation(h, c.Super, false)); err != nil {
				return err
			}
		}
		for _, i := range c.Interfaces {
			if err := add(facts.RelImplements, cls, typeLocation(h, i, true)); err != nil {
				return err
			}
		}
	}

	supers := h.supertypes(c)
	for i := range c.Methods {
		m := &c.Methods[i]
		decl := u.decls[i]
		if err := add(facts.RelDeclarations, decl, cu); err != nil {
			return err
		}
		if err := add(facts.RelContainment, cls, decl); err != nil {
			return err
		}
		if !overridable(m) {
			continue
		}
		for _, s := range supers {
			sm, ok := s.Method(m.Name, m.Descriptor)
			if !ok || !overridable(sm) {
				continue
			}
			target, err := e.methodLocation(s.Name, sm.Name, sm.Descriptor)
			if err != nil {
				continue
			}
			if err := add(facts.RelMethodOverrides, decl, target); err != nil {
				return err
			}
		}
	}
	return nil
}

// recordInvocations resolves every call site of u's methods.
func (e *Extractor) recordInvocations(model *facts.Model, h *hierarchy, u *unit, rep *Report) ([]Body, error) {
	c := u.class
	var bodies []Body
	for i := range c.Methods {
		insts := u.insts[i]
		if insts == nil {
			continue
		}
		caller := u.decls[i]
		body := Body{Decl: caller, Insts: insts}

		for _, t := range u.sites[i] {
			rep.CallSites++
			callees, resolved := e.resolveSite(h, t)
			if !resolved {
				rep.Unresolved++
			}
			loc := facts.SiteLocation(caller, t.Offset).AtLine(t.Line)
			for _, callee := range callees {
				if err := model.Add(facts.RelMethodInvocation, caller, callee, loc); err != nil {
					return nil, fmt.Errorf("extract: %s: %w", facts.RelMethodInvocation, err)
				}
			}
			body.Sites = append(body.Sites, ResolvedSite{CallSite: t.CallSite, Callees: callees})
		}
		bodies = append(bodies, body)
	}
	return bodies, nil
}

// resolveSite returns the callee locations for one call site and whether
// the primary target is declared in the artifact. An undeclared target is
// recorded under its symbolic owner.
func (e *Extractor) resolveSite(h *hierarchy, t target) ([]facts.Location, bool) {
	owner, m, ok := h.resolveMethod(t.ref.Owner, t.ref.Name, t.ref.Descriptor)
	if !ok {
		return []facts.Location{facts.MethodLocation(t.ref.Owner, t.ref.Name, t.params)}, false
	}
	callees := []facts.Location{facts.MethodLocation(owner.Name, m.Name, t.params)}

	virtual := t.Kind == bytecode.KindVirtual || t.Kind == bytecode.KindInterface
	if virtual && e.opts.Dispatch == DispatchOverrides {
		for _, sub := range h.overriders(owner, m) {
			callees = append(callees, facts.MethodLocation(sub.Name, m.Name, t.params))
		}
	}
	return callees, true
}
