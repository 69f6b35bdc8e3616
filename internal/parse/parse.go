// Package parse extracts module declarations and initializer annotations from
// Rust source files using tree-sitter.
package parse

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"fortio.org/safecast"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/stagegen/internal/diag"
	"github.com/phobologic/stagegen/internal/lang"
	"github.com/phobologic/stagegen/internal/model"
)

// DefaultAttribute is the annotation name recognized when none is configured.
const DefaultAttribute = "init"

// ModDecl is a `mod` item. Body is non-nil for inline modules.
type ModDecl struct {
	Name       string
	Visibility model.Visibility
	Line       int
	PathAttr   string // Value of #[path = "..."], if present
	CfgTest    bool   // Gated by #[cfg(test)]
	Body       *Scan
}

// Sighting is a function carrying the initializer annotation.
type Sighting struct {
	Name       string
	Stage      uint32
	Visibility model.Visibility
	Line       int
}

// Warning is a non-fatal oddity noticed while scanning.
type Warning struct {
	Line int
	Msg  string
}

// Scan is everything extracted from one file or inline module body, in
// declaration order.
type Scan struct {
	Modules   []ModDecl
	Functions []Sighting
	Warnings  []Warning
}

// Extractor scans Rust files for annotated functions. It owns a tree-sitter
// parser and must not be used from more than one goroutine.
type Extractor struct {
	attribute string
	parser    *sitter.Parser
}

// NewExtractor returns an Extractor recognizing #[attribute(stage = N)].
// An empty attribute selects DefaultAttribute.
func NewExtractor(attribute string) *Extractor {
	if attribute == "" {
		attribute = DefaultAttribute
	}
	return &Extractor{
		attribute: attribute,
		parser:    lang.Languages[lang.Rust].NewParser(),
	}
}

// Close releases the underlying parser.
func (e *Extractor) Close() {
	e.parser.Close()
}

// Extract parses source and returns its module declarations and annotated
// functions. file is used only for error locations.
func (e *Extractor) Extract(ctx context.Context, source []byte, file string) (*Scan, error) {
	tree, err := e.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, diag.Wrap(diag.IoError, file, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	scan, err := e.scanItems(root, source, file)
	if err != nil {
		return nil, err
	}
	if root.HasError() {
		scan.Warnings = append(scan.Warnings, Warning{Msg: "file has syntax errors; annotations inside them are not seen"})
	}
	return scan, nil
}

// scanItems walks the items of a source_file or declaration_list. Outer
// attributes are siblings preceding the item they apply to.
func (e *Extractor) scanItems(container *sitter.Node, source []byte, file string) (*Scan, error) {
	scan := &Scan{}
	var attrs []attribute

	for i := 0; i < int(container.NamedChildCount()); i++ {
		item := container.NamedChild(i)
		switch item.Type() {
		case "attribute_item":
			if a, ok := parseAttribute(lang.NodeText(item, source)); ok {
				a.line = lineOf(item)
				attrs = append(attrs, a)
			}
			continue
		case "line_comment", "block_comment":
			continue
		case "function_item":
			s, ok, err := e.function(item, attrs, source, file)
			if err != nil {
				return nil, err
			}
			if ok {
				scan.Functions = append(scan.Functions, s)
				scan.Warnings = append(scan.Warnings, e.signatureWarnings(item, s.Name, source)...)
			}
			if body := item.ChildByFieldName("body"); body != nil {
				e.warnNested(body, "on an item nested in function "+nodeName(item, source), source, scan)
			}
		case "mod_item":
			decl, err := e.module(item, attrs, source, file, scan)
			if err != nil {
				return nil, err
			}
			scan.Modules = append(scan.Modules, decl)
		default:
			for _, a := range attrs {
				if e.isTag(a) {
					scan.Warnings = append(scan.Warnings, Warning{
						Line: a.line,
						Msg:  "#[" + e.attribute + "] on a " + item.Type() + " is ignored",
					})
				}
			}
			switch item.Type() {
			case "impl_item":
				e.warnNested(item, "on an item inside an impl block", source, scan)
			case "trait_item":
				e.warnNested(item, "on an item inside a trait", source, scan)
			}
		}
		attrs = nil
	}

	for _, a := range attrs {
		if e.isTag(a) {
			scan.Warnings = append(scan.Warnings, Warning{
				Line: a.line,
				Msg:  "#[" + e.attribute + "] is not followed by an item and is ignored",
			})
		}
	}
	return scan, nil
}

// warnNested adds a warning for every tag found anywhere below n. Such tags
// sit on items the routine cannot name.
func (e *Extractor) warnNested(n *sitter.Node, where string, source []byte, scan *Scan) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "attribute_item" {
			if a, ok := parseAttribute(lang.NodeText(child, source)); ok && e.isTag(a) {
				scan.Warnings = append(scan.Warnings, Warning{
					Line: lineOf(child),
					Msg:  "#[" + e.attribute + "] " + where + " is ignored",
				})
			}
			continue
		}
		e.warnNested(child, where, source, scan)
	}
}

// signatureWarnings flags tagged functions that `let _ = path();` cannot
// call correctly: async functions (the future is dropped), unsafe
// functions, and functions taking parameters or type parameters.
func (e *Extractor) signatureWarnings(item *sitter.Node, name string, source []byte) []Warning {
	line := lineOf(item)
	var warns []Warning
	add := func(msg string) {
		warns = append(warns, Warning{Line: line, Msg: "initializer " + name + " " + msg})
	}

	for i := 0; i < int(item.NamedChildCount()); i++ {
		child := item.NamedChild(i)
		if child.Type() != "function_modifiers" {
			continue
		}
		for _, word := range strings.Fields(lang.NodeText(child, source)) {
			switch word {
			case "async":
				add("is async; the generated call drops its future without running it")
			case "unsafe":
				add("is unsafe; the generated call is not inside an unsafe block")
			}
		}
	}

	if tp := item.ChildByFieldName("type_parameters"); tp != nil && countNamed(tp, "lifetime", "lifetime_parameter") > 0 {
		add("has type or const parameters; the generated call cannot infer them")
	}
	if params := item.ChildByFieldName("parameters"); params != nil && countNamed(params) > 0 {
		add("takes parameters; the generated call passes none")
	}
	return warns
}

// countNamed counts named children of n, ignoring comments, attributes and
// the listed node types.
func countNamed(n *sitter.Node, ignore ...string) int {
	count := 0
	for i := 0; i < int(n.NamedChildCount()); i++ {
		switch t := n.NamedChild(i).Type(); t {
		case "line_comment", "block_comment", "attribute_item":
		default:
			if !slices.Contains(ignore, t) {
				count++
			}
		}
	}
	return count
}

func (e *Extractor) function(item *sitter.Node, attrs []attribute, source []byte, file string) (Sighting, bool, error) {
	var tags []attribute
	for _, a := range attrs {
		if e.isTag(a) {
			tags = append(tags, a)
		}
	}
	if len(tags) == 0 {
		return Sighting{}, false, nil
	}

	name := nodeName(item, source)

	if len(tags) > 1 {
		err := diag.Errorf(diag.DuplicateAnnotation, file, tags[1].line,
			"function %s carries #[%s] %d times", name, e.attribute, len(tags))
		err.Name = name
		return Sighting{}, false, err
	}

	stage, msg := parseStage(tags[0])
	if msg != "" {
		err := diag.Errorf(diag.MalformedAnnotation, file, tags[0].line, "%s: %s", name, msg)
		err.Name = name
		return Sighting{}, false, err
	}

	return Sighting{
		Name:       name,
		Stage:      stage,
		Visibility: visibility(item, source),
		Line:       lineOf(item),
	}, true, nil
}

func (e *Extractor) module(item *sitter.Node, attrs []attribute, source []byte, file string, scan *Scan) (ModDecl, error) {
	decl := ModDecl{
		Visibility: visibility(item, source),
		Line:       lineOf(item),
	}
	decl.Name = nodeName(item, source)

	for _, a := range attrs {
		switch {
		case e.isTag(a):
			scan.Warnings = append(scan.Warnings, Warning{
				Line: a.line,
				Msg:  "#[" + e.attribute + "] on module " + decl.Name + " is ignored",
			})
		case a.path == "cfg" && compact(a.args) == "test":
			decl.CfgTest = true
		case a.path == "path" && a.value != "":
			p, err := strconv.Unquote(a.value)
			if err != nil {
				scan.Warnings = append(scan.Warnings, Warning{
					Line: a.line,
					Msg:  "unsupported #[path] value " + a.value + " on module " + decl.Name,
				})
				continue
			}
			decl.PathAttr = p
		}
	}

	if body := item.ChildByFieldName("body"); body != nil {
		inner, err := e.scanItems(body, source, file)
		if err != nil {
			return ModDecl{}, err
		}
		decl.Body = inner
	}
	return decl, nil
}

func (e *Extractor) isTag(a attribute) bool {
	return a.path == e.attribute || strings.HasSuffix(a.path, "::"+e.attribute)
}

func nodeName(item *sitter.Node, source []byte) string {
	if n := item.ChildByFieldName("name"); n != nil {
		return lang.NodeText(n, source)
	}
	return ""
}

func visibility(item *sitter.Node, source []byte) model.Visibility {
	for i := 0; i < int(item.NamedChildCount()); i++ {
		child := item.NamedChild(i)
		if child.Type() == "visibility_modifier" {
			return lang.ParseVisibility(lang.NodeText(child, source))
		}
	}
	return model.Private
}

func lineOf(n *sitter.Node) int {
	row, err := safecast.Conv[int](n.StartPoint().Row)
	if err != nil {
		return 0
	}
	return row + 1
}
