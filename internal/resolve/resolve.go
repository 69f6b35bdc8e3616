// Package resolve maps tagged functions to call paths rooted at the crate,
// checking that every module on the way is visible from the crate root.
package resolve

import (
	"slices"

	"github.com/phobologic/stagegen/internal/diag"
	"github.com/phobologic/stagegen/internal/model"
)

// Options controls visibility checks.
type Options struct {
	// TrustFnVisibility skips the check on the function's own visibility,
	// for annotation front ends that widen it during expansion.
	TrustFnVisibility bool
}

// Resolve returns one ResolvedCall per function, in input order. It fails on
// the first function that cannot be named from the crate root.
func Resolve(fns []model.TaggedFunction, opts Options) ([]model.ResolvedCall, error) {
	calls := make([]model.ResolvedCall, 0, len(fns))
	seen := make(map[string]model.TaggedFunction, len(fns))

	for _, fn := range fns {
		call, err := resolveOne(fn, opts)
		if err != nil {
			return nil, err
		}

		key := call.String()
		if prev, dup := seen[key]; dup {
			err := diag.Errorf(diag.AmbiguousPath, fn.File, fn.Line,
				"%s also names the function declared at %s:%d", key, prev.File, prev.Line)
			err.Name = fn.Name
			return nil, err
		}
		seen[key] = fn
		calls = append(calls, call)
	}
	return calls, nil
}

func resolveOne(fn model.TaggedFunction, opts Options) (model.ResolvedCall, error) {
	var segments []string
	for m := fn.Module; m != nil && !m.IsRoot(); m = m.Parent {
		if !m.Visibility.ReachesCrate() {
			err := diag.Errorf(diag.UnreachableInitializer, fn.File, fn.Line,
				"%s is not visible from the crate root: module %s is %s; declare it pub(crate) or pub",
				fn.Name, m.QualifiedName(), m.Visibility)
			err.Name = fn.Name
			err.Module = m.QualifiedName()
			return model.ResolvedCall{}, err
		}
		segments = append(segments, m.Name)
	}

	if !fn.Module.IsRoot() && !opts.TrustFnVisibility && !fn.Visibility.ReachesCrate() {
		err := diag.Errorf(diag.UnreachableInitializer, fn.File, fn.Line,
			"%s is %s inside %s; declare it pub(crate) or pub",
			fn.Name, fn.Visibility, fn.Module.QualifiedName())
		err.Name = fn.Name
		err.Module = fn.Module.QualifiedName()
		return model.ResolvedCall{}, err
	}

	slices.Reverse(segments)
	path := make([]string, 0, len(segments)+2)
	path = append(path, model.RootSegment)
	path = append(path, segments...)
	path = append(path, fn.Name)

	return model.ResolvedCall{
		Path:  path,
		Stage: fn.Stage,
		File:  fn.File,
		Line:  fn.Line,
	}, nil
}

