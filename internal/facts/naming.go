package facts

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadNaming is returned by ParseNaming for an unknown policy name.
var ErrBadNaming = errors.New("facts: unknown naming policy")

// Naming selects how a Location is rendered as an identity string.
type Naming int

const (
	// NamingShort renders pkg.Class.method. Overloads share an identity.
	NamingShort Naming = iota
	// NamingSignature renders pkg.Class.method(paramTypes).
	NamingSignature
	// NamingURI renders the full location URI.
	NamingURI
)

func (n Naming) String() string {
	switch n {
	case NamingShort:
		return "short"
	case NamingSignature:
		return "signature"
	case NamingURI:
		return "uri"
	}
	return fmt.Sprintf("Naming(%d)", int(n))
}

// ParseNaming parses a policy name. The empty string selects NamingShort.
func ParseNaming(s string) (Naming, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "short":
		return NamingShort, nil
	case "signature", "sig":
		return NamingSignature, nil
	case "uri":
		return NamingURI, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadNaming, s)
}

// Name renders l under policy n.
func (n Naming) Name(l Location) string {
	if n == NamingURI {
		return l.String()
	}
	p := strings.TrimPrefix(l.Path, "/")
	params := ""
	if i := strings.IndexByte(p, '('); i >= 0 {
		p, params = p[:i], p[i:]
	}
	name := strings.ReplaceAll(p, "/", ".")
	if n == NamingSignature {
		name += params
	}
	return name
}
