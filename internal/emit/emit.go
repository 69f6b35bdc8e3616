// Package emit renders an ordered plan as Rust source.
package emit

import (
	"fmt"
	"strings"

	"github.com/phobologic/stagegen/internal/diag"
	"github.com/phobologic/stagegen/internal/lang"
	"github.com/phobologic/stagegen/internal/model"
	"github.com/phobologic/stagegen/internal/order"
)

// DefaultRoutine is the name of the generated function.
const DefaultRoutine = "generated_init"

// Header marks the artifact as generated.
const Header = "// Code generated by stagegen. DO NOT EDIT."

// Options configures the rendered routine.
type Options struct {
	Routine string
}

// Rust renders p as a Rust file defining one parameterless routine that calls
// every planned path in order, discarding return values. The output depends
// only on p and opts.
func Rust(p model.Plan, opts Options) (string, error) {
	routine := opts.Routine
	if routine == "" {
		routine = DefaultRoutine
	}
	if !lang.ValidSegment(routine) {
		return "", &diag.Error{Kind: diag.EmissionError, Msg: fmt.Sprintf("invalid routine name %q", routine)}
	}

	var b strings.Builder
	b.WriteString(Header + "\n\n")
	fmt.Fprintf(&b, "/// Number of initializers called by `%s`.\n", routine)
	b.WriteString("#[allow(dead_code)]\n")
	fmt.Fprintf(&b, "pub const %s_COUNT: usize = %d;\n\n", strings.ToUpper(strings.TrimPrefix(routine, "r#")), len(p.Calls))

	b.WriteString("/// Calls every initializer of the crate in stage order.\n")
	b.WriteString("#[allow(dead_code, clippy::let_unit_value)]\n")
	fmt.Fprintf(&b, "pub fn %s() {\n", routine)
	for _, group := range order.Groups(p) {
		fmt.Fprintf(&b, "    // stage %d\n", group[0].Stage)
		for _, c := range group {
			if err := checkPath(c); err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "    let _ = %s();\n", c)
		}
	}
	b.WriteString("}\n")

	return b.String(), nil
}

func checkPath(c model.ResolvedCall) error {
	if len(c.Path) < 2 || c.Path[0] != model.RootSegment {
		return &diag.Error{Kind: diag.EmissionError, File: c.File, Line: c.Line,
			Msg: fmt.Sprintf("call path %q is not rooted at %s", c.String(), model.RootSegment)}
	}
	for _, seg := range c.Path[1:] {
		if !lang.ValidSegment(seg) {
			return &diag.Error{Kind: diag.EmissionError, File: c.File, Line: c.Line,
				Msg: fmt.Sprintf("segment %q of %s is not a valid identifier", seg, c.String())}
		}
	}
	return nil
}
