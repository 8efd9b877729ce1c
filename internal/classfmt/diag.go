// Package classfmt provides the byte stream and diagnostics shared by the
// class file and bytecode decoders.
package classfmt

import (
	"fmt"
	"sort"
	"sync"
)

// DiagKind classifies a diagnostic message.
type DiagKind string

const (
	DiagTruncated   DiagKind = "truncated"
	DiagInvalid     DiagKind = "invalid"
	DiagUnknownTag  DiagKind = "unknown_tag"
	DiagUnsupported DiagKind = "unsupported"
	DiagDuplicate   DiagKind = "duplicate"
	DiagSkipped     DiagKind = "skipped"
)

// Diag records a non-fatal issue encountered while decoding an artifact.
type Diag struct {
	Path   string   `json:"path"`
	Offset int      `json:"offset"`
	Kind   DiagKind `json:"kind"`
	Msg    string   `json:"msg"`
}

func (d Diag) String() string {
	if d.Offset < 0 {
		return fmt.Sprintf("[%s] %s: %s", d.Kind, d.Path, d.Msg)
	}
	return fmt.Sprintf("[%s] %s+0x%x: %s", d.Kind, d.Path, d.Offset, d.Msg)
}

// Diags accumulates diagnostics. Safe for concurrent use.
type Diags struct {
	mu    sync.Mutex
	items []Diag
}

func (d *Diags) Add(path string, offset int, kind DiagKind, msg string) {
	d.mu.Lock()
	d.items = append(d.items, Diag{Path: path, Offset: offset, Kind: kind, Msg: msg})
	d.mu.Unlock()
}

func (d *Diags) Addf(path string, offset int, kind DiagKind, format string, args ...any) {
	d.Add(path, offset, kind, fmt.Sprintf(format, args...))
}

// Items returns the diagnostics ordered by path, then offset.
func (d *Diags) Items() []Diag {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Diag, len(d.items))
	copy(out, d.items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Offset < out[j].Offset
	})
	return out
}

func (d *Diags) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// Mode controls error handling behavior.
type Mode int

const (
	ModeBestEffort Mode = iota // skip malformed classes, accumulate diags
	ModeStrict                 // first malformed class aborts the run
)

func (m Mode) String() string {
	if m == ModeStrict {
		return "strict"
	}
	return "best-effort"
}

// Options controls decoding limits shared across packages.
type Options struct {
	Mode     Mode
	MaxInsts int   // per-method instruction cap; 0 = use default
	MaxBytes int64 // per-class size cap; 0 = unlimited
}

// DefaultMaxInsts is the default per-method instruction cap. The JVM limits
// a Code attribute to 65535 bytes, so this is never reached by valid input.
const DefaultMaxInsts = 65536

func (o Options) EffectiveMaxInsts() int {
	if o.MaxInsts > 0 {
		return o.MaxInsts
	}
	return DefaultMaxInsts
}
