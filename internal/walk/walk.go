// Package walk builds a crate's module tree by following `mod` declarations
// from the crate root file.
package walk

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/phobologic/stagegen/internal/diag"
	"github.com/phobologic/stagegen/internal/lang"
	"github.com/phobologic/stagegen/internal/logging"
	"github.com/phobologic/stagegen/internal/model"
	"github.com/phobologic/stagegen/internal/parse"
)

// Options configures a walk.
type Options struct {
	// Base is the directory ModuleNode.File paths are made relative to.
	// Defaults to the directory of the root file.
	Base      string
	Extractor *parse.Extractor
	Logger    *slog.Logger
}

// Tree is the walked module tree.
type Tree struct {
	Root  *model.ModuleNode
	Files []string // Absolute paths of every file read, in read order
}

// Modules returns every module in traversal order: depth-first, pre-order,
// children in lexicographic order of their names.
func (t *Tree) Modules() []*model.ModuleNode {
	var out []*model.ModuleNode
	var visit func(n *model.ModuleNode)
	visit = func(n *model.ModuleNode) {
		out = append(out, n)
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(t.Root)
	return out
}

// Functions returns every tagged function in discovery order: module
// traversal order, then declaration order within a module.
func (t *Tree) Functions() []model.TaggedFunction {
	var out []model.TaggedFunction
	for _, m := range t.Modules() {
		out = append(out, m.Functions...)
	}
	return out
}

type walker struct {
	ctx     context.Context
	base    string
	ex      *parse.Extractor
	log     *slog.Logger
	visited map[string]string // absolute file -> module that included it
	files   []string
}

// Walk reads rootFile and every module file reachable from it. Modules whose
// visibility does not reach the crate are still walked and marked
// Reachable=false so their annotations can be reported.
func Walk(ctx context.Context, rootFile string, opts Options) (*Tree, error) {
	abs, err := filepath.Abs(rootFile)
	if err != nil {
		return nil, diag.Wrap(diag.IoError, rootFile, err)
	}

	w := &walker{
		ctx:     ctx,
		base:    opts.Base,
		ex:      opts.Extractor,
		log:     opts.Logger,
		visited: make(map[string]string),
	}
	if w.base == "" {
		w.base = filepath.Dir(abs)
	}
	w.log = logging.Component(w.log, "walk")
	if w.ex == nil {
		w.ex = parse.NewExtractor("")
		defer w.ex.Close()
	}

	root := &model.ModuleNode{
		File:       w.rel(abs),
		Visibility: model.Public,
		Reachable:  true,
	}
	scan, err := w.read(abs, root)
	if err != nil {
		return nil, err
	}
	if err := w.populate(root, scan, abs, filepath.Dir(abs)); err != nil {
		return nil, err
	}
	return &Tree{Root: root, Files: w.files}, nil
}

// populate fills node from scan. file is the absolute path holding the scan
// and dir the directory where node's child module files live.
func (w *walker) populate(node *model.ModuleNode, scan *parse.Scan, file, dir string) error {
	for _, warn := range scan.Warnings {
		w.log.Warn(warn.Msg, "file", node.File, "line", warn.Line)
	}

	for _, s := range scan.Functions {
		node.Functions = append(node.Functions, model.TaggedFunction{
			Name:       s.Name,
			Stage:      s.Stage,
			Visibility: s.Visibility,
			File:       node.File,
			Line:       s.Line,
			Module:     node,
		})
	}

	for _, decl := range scan.Modules {
		if decl.CfgTest {
			w.log.Debug("skipping #[cfg(test)] module", "module", decl.Name, "file", node.File, "line", decl.Line)
			continue
		}

		child := &model.ModuleNode{
			Name:       decl.Name,
			Path:       append(slices.Clone(node.Path), decl.Name),
			Visibility: decl.Visibility,
			Line:       decl.Line,
			Inline:     decl.Body != nil,
			Reachable:  node.Reachable && decl.Visibility.ReachesCrate(),
			Parent:     node,
		}
		if !child.Reachable && node.Reachable {
			w.log.Debug("module not visible from crate root", "module", child.QualifiedName(), "visibility", decl.Visibility)
		}

		if decl.Body != nil {
			child.File = node.File
			if err := w.populate(child, decl.Body, file, filepath.Join(dir, lang.FileStem(decl.Name))); err != nil {
				return err
			}
		} else {
			childFile, childDir, err := w.locate(node, decl, file, dir)
			if err != nil {
				return err
			}
			child.File = w.rel(childFile)
			scan, err := w.read(childFile, child)
			if err != nil {
				return err
			}
			if err := w.populate(child, scan, childFile, childDir); err != nil {
				return err
			}
		}
		node.Children = append(node.Children, child)
	}

	sort.SliceStable(node.Children, func(i, j int) bool {
		return node.Children[i].Name < node.Children[j].Name
	})
	return nil
}

// locate finds the file backing a `mod name;` declaration and the directory
// its own children live in.
func (w *walker) locate(node *model.ModuleNode, decl parse.ModDecl, file, dir string) (string, string, error) {
	if decl.PathAttr != "" {
		base := filepath.Dir(file)
		if node.Inline {
			base = dir
		}
		p := filepath.Join(base, filepath.FromSlash(decl.PathAttr))
		if !isFile(p) {
			return "", "", diag.Errorf(diag.IoError, node.File, decl.Line,
				"module %s: #[path] file %s not found", decl.Name, w.rel(p))
		}
		// Files named by #[path] behave like mod.rs files.
		return p, filepath.Dir(p), nil
	}

	stem := lang.FileStem(decl.Name)
	childDir := filepath.Join(dir, stem)
	flat := filepath.Join(dir, stem+".rs")
	nested := filepath.Join(childDir, "mod.rs")

	flatOK, nestedOK := isFile(flat), isFile(nested)
	switch {
	case flatOK && nestedOK:
		return "", "", diag.Errorf(diag.IoError, node.File, decl.Line,
			"module %s found at both %s and %s", decl.Name, w.rel(flat), w.rel(nested))
	case flatOK:
		return flat, childDir, nil
	case nestedOK:
		return nested, childDir, nil
	default:
		return "", "", diag.Errorf(diag.IoError, node.File, decl.Line,
			"file not found for module %s (looked for %s and %s)", decl.Name, w.rel(flat), w.rel(nested))
	}
}

func (w *walker) read(abs string, node *model.ModuleNode) (*parse.Scan, error) {
	if owner, dup := w.visited[abs]; dup {
		declFile := node.File
		if node.Parent != nil {
			declFile = node.Parent.File
		}
		return nil, diag.Errorf(diag.IoError, declFile, node.Line,
			"module %s includes %s, already loaded as %s", node.QualifiedName(), w.rel(abs), owner)
	}
	w.visited[abs] = node.QualifiedName()

	if err := w.ctx.Err(); err != nil {
		return nil, err
	}
	source, err := os.ReadFile(abs)
	if err != nil {
		return nil, diag.Wrap(diag.IoError, w.rel(abs), err)
	}
	w.files = append(w.files, abs)
	w.log.Debug("scanning", "file", w.rel(abs), "module", node.QualifiedName())

	return w.ex.Extract(w.ctx, source, w.rel(abs))
}

func (w *walker) rel(abs string) string {
	r, err := filepath.Rel(w.base, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(r)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
