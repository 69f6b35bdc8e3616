// Package model defines core data structures for stagegen.
package model

import "strings"

// Visibility is the declared visibility of a Rust module or function.
// Values are ordered from narrowest to widest.
type Visibility int

const (
	Private    Visibility = iota // no modifier, pub(self)
	Restricted                   // pub(super), pub(in some::path)
	Crate                        // pub(crate), crate, pub(in crate)
	Public                       // pub
)

func (v Visibility) String() string {
	switch v {
	case Private:
		return "private"
	case Restricted:
		return "restricted"
	case Crate:
		return "pub(crate)"
	case Public:
		return "pub"
	default:
		return "unknown"
	}
}

// ReachesCrate reports whether an item with this visibility can be named
// from anywhere in the crate.
func (v Visibility) ReachesCrate() bool {
	return v >= Crate
}

// RootSegment is the first segment of every generated call path.
const RootSegment = "crate"

// ModuleNode is one module of the crate's module tree. Inline modules share
// the File of the module that declares them.
type ModuleNode struct {
	File       string // Relative to the project root, slash separated
	Name       string
	Path       []string // Segments below the crate root; empty for the root
	Visibility Visibility
	Line       int // Line of the `mod` declaration; 0 for the root
	Inline     bool
	Reachable  bool // Every module from the root down to this one reaches the crate

	Parent    *ModuleNode
	Children  []*ModuleNode // Sorted by Name
	Functions []TaggedFunction
}

// IsRoot reports whether n is the crate root module.
func (n *ModuleNode) IsRoot() bool {
	return n.Parent == nil
}

// QualifiedName returns the module path joined with "::", rooted at crate.
func (n *ModuleNode) QualifiedName() string {
	return strings.Join(append([]string{RootSegment}, n.Path...), "::")
}

// TaggedFunction is a function carrying the initializer annotation.
type TaggedFunction struct {
	Name       string
	Stage      uint32
	Visibility Visibility
	File       string
	Line       int
	Module     *ModuleNode
}

// ResolvedCall is a tagged function with its fully qualified call path.
type ResolvedCall struct {
	Path  []string // First segment is RootSegment
	Stage uint32
	File  string
	Line  int
}

// String returns the call path joined with "::".
func (c ResolvedCall) String() string {
	return strings.Join(c.Path, "::")
}

// Plan is the ordered call sequence: stages ascending, discovery order
// within a stage.
type Plan struct {
	Calls []ResolvedCall
}

// Stages returns the distinct stages of the plan in ascending order.
func (p Plan) Stages() []uint32 {
	var stages []uint32
	for i, c := range p.Calls {
		if i == 0 || c.Stage != p.Calls[i-1].Stage {
			stages = append(stages, c.Stage)
		}
	}
	return stages
}

// Artifact is generated source text and where it should be written.
// An empty Path means standard output.
type Artifact struct {
	Path string
	Text string
}

// Report describes a run for the plan command.
type Report struct {
	Crate   string         `yaml:"crate"`
	Root    string         `yaml:"root"`
	Routine string         `yaml:"routine"`
	Calls   []ReportCall   `yaml:"calls"`
	Modules []ReportModule `yaml:"modules"`
	Orphans []string       `yaml:"orphans,omitempty"`
}

// ReportCall is one planned call.
type ReportCall struct {
	Stage uint32 `yaml:"stage"`
	Path  string `yaml:"path"`
	File  string `yaml:"file"`
	Line  int    `yaml:"line"`
}

// ReportModule is one walked module.
type ReportModule struct {
	Path         string `yaml:"path"`
	File         string `yaml:"file"`
	Visibility   string `yaml:"visibility"`
	Reachable    bool   `yaml:"reachable"`
	Initializers int    `yaml:"initializers"`
}
