package bytecode

// Invoke kinds recorded on call sites.
const (
	KindVirtual   = "virtual"
	KindSpecial   = "special"
	KindStatic    = "static"
	KindInterface = "interface"
	KindDynamic   = "dynamic"
)

// CallSite is an invoke instruction found in a method body. Index is the
// position within the method's instruction slice; Ref is the constant pool
// index of the Methodref or InvokeDynamic entry.
type CallSite struct {
	Offset int    `json:"offset"`
	Index  int    `json:"index"`
	Kind   string `json:"kind"`
	Ref    uint16 `json:"ref"`
	Line   int    `json:"line,omitempty"`
}

// LineLookup maps a bytecode offset to a source line; 0 means unknown.
type LineLookup func(offset int) int

// InvokeKind returns the call kind for an opcode, or "" if op is not an invoke.
func InvokeKind(op byte) string {
	switch op {
	case OpInvokevirtual:
		return KindVirtual
	case OpInvokespecial:
		return KindSpecial
	case OpInvokestatic:
		return KindStatic
	case OpInvokeinterface:
		return KindInterface
	case OpInvokedynamic:
		return KindDynamic
	}
	return ""
}

// ExtractCallSites scans instructions for invoke sites in offset order.
func ExtractCallSites(insts []Inst, lines LineLookup) []CallSite {
	var sites []CallSite
	for i, inst := range insts {
		kind := InvokeKind(inst.Op)
		if kind == "" {
			continue
		}
		cs := CallSite{
			Offset: inst.Offset,
			Index:  i,
			Kind:   kind,
			Ref:    inst.Index,
		}
		if lines != nil {
			cs.Line = lines(inst.Offset)
		}
		sites = append(sites, cs)
	}
	return sites
}
