// Package report renders a call adjacency and the analyses derived from it.
package report

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadFormat is returned by ParseFormat for an unknown format name.
var ErrBadFormat = errors.New("report: unknown format")

// Format selects the report encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatJSONL
	FormatDOT
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	case FormatJSONL:
		return "jsonl"
	case FormatDOT:
		return "dot"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat parses a format name. The empty string selects FormatText.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "dot", "graphviz":
		return FormatDOT, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadFormat, s)
}
