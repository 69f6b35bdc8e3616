package toon

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/phobologic/stagegen/internal/model"
)

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"true keyword", "true", `"true"`},
		{"True keyword", "True", `"True"`},
		{"false keyword", "false", `"false"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative integer", "-1", "-1"},
		{"float", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"leading zero invalid", "01", "01"},
		{"comma", "a,b", `"a,b"`},
		{"colon", "a:b", `"a:b"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"bracket", "a[b", `"a[b"`},
		{"brace", "a{b", `"a{b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"path", "src/net/tcp.rs", "src/net/tcp.rs"},
		{"raw identifier", "r#type", "r#type"},
		{"call path", "crate::net::init", `"crate::net::init"`},
		{"visibility", "pub(crate)", "pub(crate)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := encodeValue(tt.in)
			if got != tt.want {
				t.Errorf("encodeValue(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	r := &model.Report{
		Crate:   "demo",
		Root:    "src/lib.rs",
		Routine: "generated_init",
		Calls: []model.ReportCall{
			{Stage: 0, Path: "crate::a::a", File: "src/a.rs", Line: 2},
			{Stage: 1, Path: "crate::b::b", File: "src/b.rs", Line: 2},
		},
		Modules: []model.ReportModule{
			{Path: "crate", File: "src/lib.rs", Visibility: "pub", Reachable: true},
			{Path: "crate::a", File: "src/a.rs", Visibility: "pub(crate)", Reachable: true, Initializers: 1},
			{Path: "crate::b", File: "src/b.rs", Visibility: "private", Initializers: 1},
		},
	}

	want := []string{
		"crate: demo",
		"root: src/lib.rs",
		"routine: generated_init",
		"calls[2]{stage,path,file,line}:",
		`  0,"crate::a::a",src/a.rs,2`,
		`  1,"crate::b::b",src/b.rs,2`,
		"modules[3]{path,file,visibility,reachable,initializers}:",
		`  crate,src/lib.rs,pub,"true",0`,
		`  "crate::a",src/a.rs,pub(crate),"true",1`,
		`  "crate::b",src/b.rs,private,"false",1`,
	}
	got := strings.Split(Encode(r), "\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Encode mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeOrphans(t *testing.T) {
	t.Parallel()

	got := Encode(&model.Report{Crate: "demo", Orphans: []string{"src/old.rs"}})
	if !strings.HasSuffix(got, "orphans[1]{file}:\n  src/old.rs") {
		t.Errorf("expected orphans section, got:\n%s", got)
	}
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	got := Encode(&model.Report{Crate: "empty", Root: "src/lib.rs", Routine: "generated_init"})
	if !strings.Contains(got, "calls[0]{stage,path,file,line}:") {
		t.Errorf("expected empty calls section, got:\n%s", got)
	}
	if strings.Contains(got, "orphans") {
		t.Errorf("unexpected orphans section, got:\n%s", got)
	}
}
