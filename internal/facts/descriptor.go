package facts

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadDescriptor is returned for a malformed field or method descriptor.
var ErrBadDescriptor = errors.New("facts: malformed descriptor")

// MethodType is a parsed method descriptor with Java source type names.
type MethodType struct {
	Params []string
	Return string
}

// ParseMethodDescriptor parses a descriptor such as
// (ILjava/lang/String;[J)V into Params [int java.lang.String long[]] and
// Return void.
func ParseMethodDescriptor(desc string) (MethodType, error) {
	if len(desc) < 3 || desc[0] != '(' {
		return MethodType{}, fmt.Errorf("%w: %q", ErrBadDescriptor, desc)
	}
	var mt MethodType
	i := 1
	for i < len(desc) && desc[i] != ')' {
		name, n, err := parseFieldType(desc[i:])
		if err != nil {
			return MethodType{}, fmt.Errorf("%w: %q", ErrBadDescriptor, desc)
		}
		mt.Params = append(mt.Params, name)
		i += n
	}
	if i >= len(desc) {
		return MethodType{}, fmt.Errorf("%w: %q: missing ')'", ErrBadDescriptor, desc)
	}
	i++
	if desc[i:] == "V" {
		mt.Return = "void"
		return mt, nil
	}
	ret, n, err := parseFieldType(desc[i:])
	if err != nil || i+n != len(desc) {
		return MethodType{}, fmt.Errorf("%w: %q: bad return type", ErrBadDescriptor, desc)
	}
	mt.Return = ret
	return mt, nil
}

// parseFieldType parses one field type at the start of s and returns its
// source name and encoded length.
func parseFieldType(s string) (string, int, error) {
	dims := 0
	for dims < len(s) && s[dims] == '[' {
		dims++
	}
	if dims >= len(s) {
		return "", 0, ErrBadDescriptor
	}
	var base string
	n := dims + 1
	switch s[dims] {
	case 'B':
		base = "byte"
	case 'C':
		base = "char"
	case 'D':
		base = "double"
	case 'F':
		base = "float"
	case 'I':
		base = "int"
	case 'J':
		base = "long"
	case 'S':
		base = "short"
	case 'Z':
		base = "boolean"
	case 'L':
		end := strings.IndexByte(s[dims:], ';')
		if end < 2 {
			return "", 0, ErrBadDescriptor
		}
		base = strings.ReplaceAll(s[dims+1:dims+end], "/", ".")
		n = dims + end + 1
	default:
		return "", 0, ErrBadDescriptor
	}
	return base + strings.Repeat("[]", dims), n, nil
}
