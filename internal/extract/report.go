package extract

import (
	"sort"

	"jarcalls/internal/classfmt"
)

// Skipped is a class file that could not be decoded.
type Skipped struct {
	Path string
	Err  error
}

// Report summarizes one build.
type Report struct {
	Classes    int
	Methods    int
	CallSites  int
	Edges      int
	Unresolved int // sites whose primary target is not declared in the artifact
	Skipped    []Skipped
	Warnings   []classfmt.Diag
}

func (r *Report) skip(path string, err error) {
	r.Skipped = append(r.Skipped, Skipped{Path: path, Err: err})
}

// Diags returns skipped classes and warnings as one list ordered by path.
func (r *Report) Diags() []classfmt.Diag {
	out := make([]classfmt.Diag, 0, len(r.Skipped)+len(r.Warnings))
	for _, s := range r.Skipped {
		out = append(out, classfmt.Diag{Path: s.Path, Offset: -1, Kind: classfmt.DiagSkipped, Msg: s.Err.Error()})
	}
	out = append(out, r.Warnings...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
