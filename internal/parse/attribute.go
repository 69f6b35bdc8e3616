package parse

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// attribute is the textual shape of an outer attribute: #[path(args)] or
// #[path = value].
type attribute struct {
	path    string
	args    string
	hasArgs bool
	value   string
	line    int
}

var closers = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// parseAttribute splits the source text of an attribute_item. Inner
// attributes (#![...]) and anything unrecognized report false.
func parseAttribute(text string) (attribute, bool) {
	inner, ok := strings.CutPrefix(strings.TrimSpace(text), "#")
	if !ok {
		return attribute{}, false
	}
	inner = strings.TrimSpace(inner)
	if !strings.HasPrefix(inner, "[") || !strings.HasSuffix(inner, "]") {
		return attribute{}, false
	}
	inner = strings.TrimSpace(inner[1 : len(inner)-1])

	var a attribute
	end := strings.IndexAny(inner, "([{=")
	if end < 0 {
		a.path = compact(inner)
		return a, a.path != ""
	}
	a.path = compact(inner[:end])
	rest := strings.TrimSpace(inner[end:])

	if rest[0] == '=' {
		a.value = strings.TrimSpace(rest[1:])
		return a, a.path != ""
	}
	if rest[len(rest)-1] != closers[rest[0]] {
		return attribute{}, false
	}
	a.args = strings.TrimSpace(rest[1 : len(rest)-1])
	a.hasArgs = true
	return a, a.path != ""
}

var intSuffixes = []string{
	"usize", "isize", "u128", "i128", "u64", "i64", "u32", "i32", "u16", "i16", "u8", "i8",
}

// parseStage reads the single `stage = N` argument of an initializer
// annotation. A non-empty message describes why the annotation is malformed.
func parseStage(a attribute) (uint32, string) {
	if !a.hasArgs {
		return 0, "missing `stage = <integer>` argument"
	}

	fields := strings.Split(a.args, ",")
	if len(fields) > 1 && strings.TrimSpace(fields[len(fields)-1]) == "" {
		fields = fields[:len(fields)-1]
	}
	if len(fields) != 1 || strings.TrimSpace(fields[0]) == "" {
		return 0, "expected exactly one argument `stage = <integer>`"
	}

	key, val, ok := strings.Cut(fields[0], "=")
	key = strings.TrimSpace(key)
	if !ok {
		return 0, fmt.Sprintf("expected `stage = <integer>`, got %q", strings.TrimSpace(fields[0]))
	}
	if key != "stage" {
		return 0, fmt.Sprintf("unknown argument %q, expected `stage`", key)
	}

	stage, err := parseIntLiteral(strings.TrimSpace(val))
	if err != nil {
		return 0, fmt.Sprintf("stage must be a non-negative integer literal, got %q", strings.TrimSpace(val))
	}
	return stage, ""
}

// parseIntLiteral parses a Rust integer literal: optional 0x/0o/0b prefix,
// `_` separators, optional integer type suffix. The value must fit a u32.
// A literal starts with a digit; `_1` is an identifier.
func parseIntLiteral(s string) (uint32, error) {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return 0, strconv.ErrSyntax
	}
	for _, suf := range intSuffixes {
		if trimmed, ok := strings.CutSuffix(s, suf); ok && trimmed != "" {
			s = trimmed
			break
		}
	}

	base := 10
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x':
			base = 16
		case 'o':
			base = 8
		case 'b':
			base = 2
		}
		if base != 10 {
			s = s[2:]
		}
	}
	s = strings.ReplaceAll(s, "_", "")

	n, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, err
	}
	return safecast.Conv[uint32](n)
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
