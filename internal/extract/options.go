package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"jarcalls/internal/classfmt"
)

// ErrBadDispatch is returned by ParseDispatch for an unknown policy name.
var ErrBadDispatch = errors.New("extract: unknown dispatch policy")

// DispatchPolicy selects which targets a virtual or interface call records.
type DispatchPolicy int

const (
	// DispatchDeclared records one edge to the statically resolved method.
	DispatchDeclared DispatchPolicy = iota
	// DispatchOverrides also records an edge to every overriding method
	// declared by a subtype present in the artifact.
	DispatchOverrides
)

func (p DispatchPolicy) String() string {
	switch p {
	case DispatchDeclared:
		return "declared"
	case DispatchOverrides:
		return "overrides"
	}
	return fmt.Sprintf("DispatchPolicy(%d)", int(p))
}

// ParseDispatch parses a policy name. The empty string selects
// DispatchDeclared.
func ParseDispatch(s string) (DispatchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "declared", "static":
		return DispatchDeclared, nil
	case "overrides", "cha":
		return DispatchOverrides, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadDispatch, s)
}

// DefaultDescriptorCacheSize bounds the per-extractor descriptor cache.
const DefaultDescriptorCacheSize = 4096

// Options configures an Extractor.
type Options struct {
	Mode                classfmt.Mode
	Dispatch            DispatchPolicy
	Workers             int   // 0 = runtime.NumCPU()
	MaxClassBytes       int64 // 0 = no cap
	MaxInsts            int   // per method; 0 = classfmt.DefaultMaxInsts
	DescriptorCacheSize int   // 0 = DefaultDescriptorCacheSize
	Logger              *slog.Logger
}

func (o Options) effectiveWorkers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

func (o Options) effectiveCacheSize() int {
	if o.DescriptorCacheSize > 0 {
		return o.DescriptorCacheSize
	}
	return DefaultDescriptorCacheSize
}
