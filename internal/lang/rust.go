package lang

import (
	"strings"
	"unicode"

	"github.com/smacker/go-tree-sitter/rust"

	"github.com/phobologic/stagegen/internal/model"
)

// Rust is the registry key for the Rust language.
const Rust = "rust"

func init() {
	Languages[Rust] = &Language{
		Name:       Rust,
		Extensions: []string{".rs"},
		lang:       rust.GetLanguage(),
	}
}

// keywords holds strict and reserved Rust keywords across editions.
var keywords = map[string]struct{}{
	"as": {}, "async": {}, "await": {}, "break": {}, "const": {}, "continue": {},
	"crate": {}, "dyn": {}, "else": {}, "enum": {}, "extern": {}, "false": {},
	"fn": {}, "for": {}, "gen": {}, "if": {}, "impl": {}, "in": {}, "let": {},
	"loop": {}, "match": {}, "mod": {}, "move": {}, "mut": {}, "pub": {},
	"ref": {}, "return": {}, "self": {}, "Self": {}, "static": {}, "struct": {},
	"super": {}, "trait": {}, "true": {}, "type": {}, "unsafe": {}, "use": {},
	"where": {}, "while": {},
	"abstract": {}, "become": {}, "box": {}, "do": {}, "final": {}, "macro": {},
	"override": {}, "priv": {}, "try": {}, "typeof": {}, "unsized": {},
	"virtual": {}, "yield": {},
}

// Path keywords cannot be written as raw identifiers.
var pathKeywords = map[string]struct{}{
	"crate": {}, "self": {}, "Self": {}, "super": {}, "_": {},
}

// IsKeyword reports whether s is a Rust keyword.
func IsKeyword(s string) bool {
	_, ok := keywords[s]
	return ok
}

// isIdentifier reports whether s has the lexical shape of an identifier.
// A lone underscore is not an identifier.
func isIdentifier(s string) bool {
	if s == "" || s == "_" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}

// ValidSegment reports whether s can appear as a segment of a call path:
// a non-keyword identifier or a raw identifier such as r#type.
func ValidSegment(s string) bool {
	if raw, ok := strings.CutPrefix(s, "r#"); ok {
		_, reserved := pathKeywords[raw]
		return isIdentifier(raw) && !reserved
	}
	return isIdentifier(s) && !IsKeyword(s)
}

// FileStem returns the file name stem a module name maps to, stripping the
// raw identifier prefix.
func FileStem(name string) string {
	return strings.TrimPrefix(name, "r#")
}

// ParseVisibility maps the text of a visibility modifier to a Visibility.
// The empty string is private.
func ParseVisibility(text string) model.Visibility {
	compact := strings.Join(strings.Fields(text), "")
	switch compact {
	case "":
		return model.Private
	case "pub":
		return model.Public
	case "crate", "pub(crate)", "pub(incrate)":
		return model.Crate
	case "pub(self)", "pub(inself)":
		return model.Private
	}
	if strings.HasPrefix(compact, "pub(") {
		return model.Restricted
	}
	return model.Private
}
