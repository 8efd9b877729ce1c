package render

import (
	"fmt"
	"strconv"
	"strings"

	"jarcalls/internal/bytecode"
)

// instText renders one instruction: mnemonic, then pool index or branch
// targets.
func instText(inst bytecode.Inst) string {
	var b strings.Builder
	if inst.Wide {
		b.WriteString("wide ")
	}
	b.WriteString(inst.Mnemonic)
	if inst.Index != 0 {
		fmt.Fprintf(&b, " #%d", inst.Index)
	}
	for i, t := range inst.Targets {
		if i == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}
		if i > 0 && i-1 < len(inst.Keys) {
			b.WriteString(strconv.Itoa(int(inst.Keys[i-1])) + ":")
		}
		b.WriteString(strconv.Itoa(t))
	}
	return b.String()
}

// CFGDOT renders a per-method basic-block CFG as DOT. Each block lists its
// instructions; calls maps an instruction offset to the callee names shown
// next to it. The entry block is highlighted and conditional edges use the
// T/F colors.
func CFGDOT(cfg bytecode.FuncCFG, calls map[int][]string, t Theme) string {
	if len(cfg.Blocks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("digraph cfg {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  nodesep=0.3;\n")
	b.WriteString("  ranksep=0.4;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Courier,monospace\", fontsize=8, fontcolor=%q, margin=\"0.08,0.04\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	b.WriteString("  edge [penwidth=0.7, arrowsize=0.5, arrowhead=vee];\n")
	b.WriteString("  labelloc=t;\n  labeljust=l;\n")
	fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"9\" color=\"%s\">%s</font>>;\n",
		t.TextColor, dotEscape(cfg.Name))
	b.WriteByte('\n')

	for _, blk := range cfg.Blocks {
		var lines []string
		end := min(blk.End, len(cfg.Insts))
		for i := blk.Start; i < end; i++ {
			inst := cfg.Insts[i]
			line := fmt.Sprintf("%d: %s", inst.Offset, instText(inst))
			if targets := calls[inst.Offset]; len(targets) > 0 {
				line += " ; " + strings.Join(targets, ", ")
			}
			lines = append(lines, dotEscape(line))
		}
		// Truncate long blocks.
		if len(lines) > 12 {
			kept := append(lines[:5:5], fmt.Sprintf("... (%d more)", len(lines)-10))
			lines = append(kept, lines[len(lines)-5:]...)
		}
		label := strings.Join(lines, "<br align=\"left\"/>") + "<br align=\"left\"/>"

		attrs := ""
		if blk.IsEntry {
			attrs = fmt.Sprintf(", penwidth=1.5, color=%q", t.EntryBorder)
		}
		if blk.IsTerm {
			attrs += fmt.Sprintf(", fillcolor=%q", t.AbstractFill)
		}
		fmt.Fprintf(&b, "  bb%d [label=<%s>%s];\n", blk.ID, label, attrs)
	}
	b.WriteByte('\n')

	for _, blk := range cfg.Blocks {
		for _, s := range blk.Succs {
			switch s.Cond {
			case "T":
				fmt.Fprintf(&b, "  bb%d -> bb%d [color=%q, label=<<font point-size=\"7\" color=\"%s\">T</font>>];\n",
					blk.ID, s.BlockID, t.CondTrue, t.CondTrue)
			case "F":
				fmt.Fprintf(&b, "  bb%d -> bb%d [color=%q, label=<<font point-size=\"7\" color=\"%s\">F</font>>];\n",
					blk.ID, s.BlockID, t.CondFalse, t.CondFalse)
			case "":
				fmt.Fprintf(&b, "  bb%d -> bb%d [color=%q];\n", blk.ID, s.BlockID, t.EdgeDirect)
			default:
				fmt.Fprintf(&b, "  bb%d -> bb%d [color=%q, label=<<font point-size=\"7\">%s</font>>];\n",
					blk.ID, s.BlockID, t.EdgeDirect, dotEscape(s.Cond))
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}
