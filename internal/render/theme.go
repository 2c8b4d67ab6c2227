package render

// Theme holds the DOT colors `recomp graph` renders with.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	EdgeCall     string // jal to a known internal function
	EdgeExtern   string // jal/jalr resolving to an extern wrapper
	EdgeIndirect string // jalr through an unresolved trampoline target
	EdgeBranch   string // plain CFG fallthrough/branch edge

	StubFill     string // unreachable or synthesized functions
	ExternalText string
}

// NASA is the teacher's geometric, monochrome, sparse-color palette,
// reused as-is since nothing about this domain's graphs needs a second
// one.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeCall:     "#424242",
	EdgeExtern:   "#0B3D91",
	EdgeIndirect: "#FC3D21",
	EdgeBranch:   "#9E9E9E",

	StubFill:     "#ECEFF1",
	ExternalText: "#9E9E9E",
}
