package render

// Theme holds colors for graph rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Edge colors by provenance.
	EdgeDirect   string // invokestatic, invokespecial
	EdgeVirtual  string // invokevirtual, invokeinterface to the declared target
	EdgeOverride string // overriding targets added by dispatch analysis
	EdgeDynamic  string // invokedynamic
	EdgeExternal string // targets not declared in the artifact

	// Node accents.
	EntryBorder  string // entry points
	AbstractFill string // declared without code
	ExternalText string // targets outside the artifact

	// Cluster styling.
	ClusterBorder string
	ClusterLabel  string

	// CFG branch edges.
	CondTrue  string
	CondFalse string
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeDirect:   "#424242", // dark gray
	EdgeVirtual:  "#0B3D91", // NASA blue
	EdgeOverride: "#9E9E9E", // gray
	EdgeDynamic:  "#00695C", // teal
	EdgeExternal: "#E65100", // deep orange

	EntryBorder:  "#0B3D91",
	AbstractFill: "#ECEFF1", // blue-gray 50
	ExternalText: "#9E9E9E",

	ClusterBorder: "#BDBDBD",
	ClusterLabel:  "#757575",

	CondTrue:  "#0B3D91",
	CondFalse: "#FC3D21", // NASA red
}
