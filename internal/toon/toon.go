// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/stagegen/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a plan report into TOON format.
func Encode(r *model.Report) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("crate: %s", encodeValue(r.Crate)))
	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(r.Root)))
	parts = append(parts, fmt.Sprintf("routine: %s", encodeValue(r.Routine)))

	var callRows [][]string
	for i := range r.Calls {
		c := &r.Calls[i]
		callRows = append(callRows, []string{
			strconv.FormatUint(uint64(c.Stage), 10),
			c.Path,
			c.File,
			strconv.Itoa(c.Line),
		})
	}
	parts = append(parts, formatTabular("calls", []string{"stage", "path", "file", "line"}, callRows))

	var moduleRows [][]string
	for i := range r.Modules {
		m := &r.Modules[i]
		moduleRows = append(moduleRows, []string{
			m.Path,
			m.File,
			m.Visibility,
			strconv.FormatBool(m.Reachable),
			strconv.Itoa(m.Initializers),
		})
	}
	parts = append(parts, formatTabular("modules", []string{"path", "file", "visibility", "reachable", "initializers"}, moduleRows))

	if len(r.Orphans) > 0 {
		var orphanRows [][]string
		for _, o := range r.Orphans {
			orphanRows = append(orphanRows, []string{o})
		}
		parts = append(parts, formatTabular("orphans", []string{"file"}, orphanRows))
	}

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
