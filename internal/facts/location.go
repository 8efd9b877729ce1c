// Package facts holds the whole-program fact model: source locations for
// declarations and invocation sites, and named relations over them.
package facts

import (
	"cmp"
	"strconv"
	"strings"
)

// Location schemes.
const (
	SchemeMethod          = "java+method"
	SchemeConstructor     = "java+constructor"
	SchemeInitializer     = "java+initializer"
	SchemeClass           = "java+class"
	SchemeInterface       = "java+interface"
	SchemeInvocation      = "java+invocation"
	SchemeCompilationUnit = "java+compilationUnit"
)

// NoOffset marks a Location without a bytecode offset.
const NoOffset = -1

// Location identifies a code position. Paths use '/' separated internal
// class names: /pkg/Outer$Inner/name(paramTypes). Line is the source line
// of an invocation site, 0 when the class has no line table. It is not part
// of the URI.
type Location struct {
	Scheme string
	Path   string
	Offset int
	Line   int
}

// Compare orders locations by scheme, path, then offset.
func Compare(a, b Location) int {
	if c := strings.Compare(a.Scheme, b.Scheme); c != 0 {
		return c
	}
	if c := strings.Compare(a.Path, b.Path); c != 0 {
		return c
	}
	return cmp.Compare(a.Offset, b.Offset)
}

// String renders the location as a URI, e.g. java+method:///A/f(int).
func (l Location) String() string {
	s := l.Scheme + "://" + l.Path
	if l.Offset >= 0 {
		s += "#" + strconv.Itoa(l.Offset)
	}
	return s
}

// IsDeclaration reports whether l names a method-like declaration.
func (l Location) IsDeclaration() bool {
	switch l.Scheme {
	case SchemeMethod, SchemeConstructor, SchemeInitializer:
		return true
	}
	return false
}

// Member returns the final path segment: the method name with its
// parameter list for declarations, the simple class name for types.
func (l Location) Member() string {
	p := l.Path
	if i := strings.IndexByte(p, '('); i >= 0 {
		if j := strings.LastIndexByte(p[:i], '/'); j >= 0 {
			return p[j+1:]
		}
		return p
	}
	return p[strings.LastIndexByte(p, '/')+1:]
}

// Owner returns the class path of a member location ("/pkg/A" for
// "/pkg/A/f()"). For class locations it returns the path itself.
func (l Location) Owner() string {
	if !l.IsDeclaration() && l.Scheme != SchemeInvocation {
		return l.Path
	}
	p := l.Path
	if i := strings.IndexByte(p, '('); i >= 0 {
		p = p[:i]
	}
	if j := strings.LastIndexByte(p, '/'); j > 0 {
		return p[:j]
	}
	return ""
}

// ClassLocation returns the location of a class or interface given its
// internal name (pkg/Outer$Inner).
func ClassLocation(internalName string, iface bool) Location {
	scheme := SchemeClass
	if iface {
		scheme = SchemeInterface
	}
	return Location{Scheme: scheme, Path: "/" + internalName, Offset: NoOffset}
}

// CompilationUnitLocation returns the location of the source unit a class
// was compiled from. sourceFile may be empty, in which case the outermost
// class name with a .java suffix is assumed.
func CompilationUnitLocation(internalName, sourceFile string) Location {
	dir, base := "", internalName
	if i := strings.LastIndexByte(internalName, '/'); i >= 0 {
		dir, base = internalName[:i+1], internalName[i+1:]
	}
	if sourceFile == "" {
		if i := strings.IndexByte(base, '$'); i > 0 {
			base = base[:i]
		}
		sourceFile = base + ".java"
	}
	return Location{Scheme: SchemeCompilationUnit, Path: "/" + dir + sourceFile, Offset: NoOffset}
}

// MethodLocation returns the declaration location of a method. Constructors
// are named after their class and static initializers keep the <clinit>
// name, each with its own scheme.
func MethodLocation(owner, name string, params []string) Location {
	scheme := SchemeMethod
	switch name {
	case "<init>":
		scheme = SchemeConstructor
		name = simpleName(owner)
	case "<clinit>":
		scheme = SchemeInitializer
	}
	return Location{
		Scheme: scheme,
		Path:   "/" + owner + "/" + name + "(" + strings.Join(params, ",") + ")",
		Offset: NoOffset,
	}
}

// SiteLocation returns the invocation site at offset inside decl.
func SiteLocation(decl Location, offset int) Location {
	return Location{Scheme: SchemeInvocation, Path: decl.Path, Offset: offset}
}

// AtLine returns l with its source line set.
func (l Location) AtLine(line int) Location {
	l.Line = line
	return l
}

func simpleName(internalName string) string {
	s := internalName[strings.LastIndexByte(internalName, '/')+1:]
	if i := strings.LastIndexByte(s, '$'); i >= 0 && i+1 < len(s) {
		s = s[i+1:]
	}
	return s
}
