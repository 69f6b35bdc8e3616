// Package pipeline runs the scan end to end: walk the module tree, resolve
// call paths, order them by stage and render the routine.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/phobologic/stagegen/internal/config"
	"github.com/phobologic/stagegen/internal/diag"
	"github.com/phobologic/stagegen/internal/discover"
	"github.com/phobologic/stagegen/internal/emit"
	"github.com/phobologic/stagegen/internal/logging"
	"github.com/phobologic/stagegen/internal/model"
	"github.com/phobologic/stagegen/internal/order"
	"github.com/phobologic/stagegen/internal/parse"
	"github.com/phobologic/stagegen/internal/resolve"
	"github.com/phobologic/stagegen/internal/walk"
)

// Result is the output of one run.
type Result struct {
	Tree    *walk.Tree
	Plan    model.Plan
	Text    string
	Orphans []Orphan
}

// Orphan is a source file no `mod` declaration reaches.
type Orphan struct {
	Path   string // Relative to the project directory
	Tagged bool   // Contains the annotation text
}

// Run scans the crate described by cfg and renders the generated routine.
// It stops at the first error; a failed run produces no text.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Result, error) {
	log := logging.Component(logger, "pipeline")

	ex := parse.NewExtractor(cfg.Attribute)
	defer ex.Close()

	tree, err := walk.Walk(ctx, cfg.Root, walk.Options{
		Base:      cfg.ProjectDir,
		Extractor: ex,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	calls, err := resolve.Resolve(tree.Functions(), resolve.Options{
		TrustFnVisibility: cfg.TrustFnVisibility,
	})
	if err != nil {
		return nil, err
	}

	plan := order.Plan(calls)
	text, err := emit.Rust(plan, emit.Options{Routine: cfg.Routine})
	if err != nil {
		return nil, err
	}

	orphans, err := FindOrphans(tree, cfg)
	if err != nil {
		log.Debug("orphan scan failed", "error", err)
	}
	for _, o := range orphans {
		if o.Tagged {
			log.Warn("file is not reachable from the crate root; its initializers are ignored", "file", o.Path)
		} else {
			log.Debug("file is not reachable from the crate root", "file", o.Path)
		}
	}

	log.Info("generated initializer routine",
		"modules", len(tree.Modules()),
		"files", len(tree.Files),
		"initializers", len(plan.Calls),
		"stages", len(plan.Stages()))

	return &Result{Tree: tree, Plan: plan, Text: text, Orphans: orphans}, nil
}

// FindOrphans lists Rust files under the crate's source directory that the
// walk never read.
func FindOrphans(tree *walk.Tree, cfg *config.Config) ([]Orphan, error) {
	srcDir := cfg.SourceDir()
	entries, err := discover.Files(srcDir)
	if err != nil {
		return nil, err
	}

	read := make(map[string]struct{}, len(tree.Files))
	for _, f := range tree.Files {
		read[filepath.Clean(f)] = struct{}{}
	}

	marker := []byte("#[" + cfg.Attribute)
	var orphans []Orphan
	for _, e := range entries {
		abs := filepath.Join(srcDir, filepath.FromSlash(e.Path))
		if _, ok := read[abs]; ok {
			continue
		}
		rel, err := filepath.Rel(cfg.ProjectDir, abs)
		if err != nil {
			rel = abs
		}
		o := Orphan{Path: filepath.ToSlash(rel)}
		if data, err := os.ReadFile(abs); err == nil {
			o.Tagged = bytes.Contains(data, marker)
		}
		orphans = append(orphans, o)
	}
	return orphans, nil
}

// OutputPath picks where the artifact goes: an explicit path wins, then
// outDir (Cargo's OUT_DIR) joined with the configured file name. An empty
// result means standard output.
func OutputPath(cfg *config.Config, explicit, outDir string) string {
	if explicit != "" {
		return explicit
	}
	if outDir != "" {
		return filepath.Join(outDir, cfg.Output)
	}
	return ""
}

// Write stores a at a.Path via a temporary file and rename, so readers never
// see partial content. Identical existing content is left untouched and
// reported as unchanged.
func Write(a model.Artifact) (changed bool, err error) {
	if existing, err := os.ReadFile(a.Path); err == nil && string(existing) == a.Text {
		return false, nil
	}

	dir := filepath.Dir(a.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, diag.Wrap(diag.IoError, a.Path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(a.Path)+".tmp-*")
	if err != nil {
		return false, diag.Wrap(diag.IoError, a.Path, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.WriteString(a.Text); err != nil {
		_ = tmp.Close()
		return false, diag.Wrap(diag.IoError, a.Path, err)
	}
	if err = tmp.Close(); err != nil {
		return false, diag.Wrap(diag.IoError, a.Path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return false, diag.Wrap(diag.IoError, a.Path, err)
	}
	if err = os.Rename(tmp.Name(), a.Path); err != nil {
		return false, diag.Wrap(diag.IoError, a.Path, err)
	}
	return true, nil
}

// Stale reports whether the file at a.Path is missing or differs from a.Text.
func Stale(a model.Artifact) (bool, error) {
	existing, err := os.ReadFile(a.Path)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, diag.Wrap(diag.IoError, a.Path, err)
	}
	return string(existing) != a.Text, nil
}

// RerunHints returns the cargo:rerun-if-changed lines for a build script.
func RerunHints(cfg *config.Config) []string {
	hints := []string{"cargo:rerun-if-changed=" + cfg.SourceDir()}
	if cfg.Manifest != "" {
		hints = append(hints, "cargo:rerun-if-changed="+cfg.Manifest)
	}
	return hints
}

// Summary is a one-line description of a plan for human output.
func Summary(p model.Plan) string {
	return fmt.Sprintf("%s in %s", pluralize(len(p.Calls), "initializer"), pluralize(len(p.Stages()), "stage"))
}

func pluralize(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// Report summarizes the run for the plan command.
func (r *Result) Report(cfg *config.Config) *model.Report {
	rep := &model.Report{
		Crate:   cfg.CrateName,
		Routine: cfg.Routine,
	}
	if r.Tree != nil {
		rep.Root = r.Tree.Root.File
		for _, m := range r.Tree.Modules() {
			rep.Modules = append(rep.Modules, model.ReportModule{
				Path:         m.QualifiedName(),
				File:         m.File,
				Visibility:   m.Visibility.String(),
				Reachable:    m.Reachable,
				Initializers: len(m.Functions),
			})
		}
	}
	for _, c := range r.Plan.Calls {
		rep.Calls = append(rep.Calls, model.ReportCall{
			Stage: c.Stage,
			Path:  c.String(),
			File:  c.File,
			Line:  c.Line,
		})
	}
	for _, o := range r.Orphans {
		rep.Orphans = append(rep.Orphans, o.Path)
	}
	return rep
}
