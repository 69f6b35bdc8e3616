package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/phobologic/stagegen/internal/config"
	"github.com/phobologic/stagegen/internal/diag"
	"github.com/phobologic/stagegen/internal/model"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func loadConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	writeFile(t, dir, "Cargo.toml", "[package]\nname = \"demo\"\n")
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func callPaths(p model.Plan) []string {
	out := make([]string, len(p.Calls))
	for i, c := range p.Calls {
		out[i] = c.String()
	}
	return out
}

func TestRunOrdersByStage(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "src/lib.rs", `pub mod b;
pub mod a;
pub(crate) mod c;
`)
	writeFile(t, dir, "src/a.rs", "#[init(stage = 0)]\npub fn a() {}\n")
	writeFile(t, dir, "src/b.rs", "#[init(stage = 1)]\npub fn b() {}\n")
	writeFile(t, dir, "src/c.rs", "#[init(stage = 1)]\npub(crate) fn c() {}\n")

	res, err := Run(context.Background(), loadConfig(t, dir), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"crate::a::a", "crate::b::b", "crate::c::c"}
	if diff := cmp.Diff(want, callPaths(res.Plan)); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}

	ia := strings.Index(res.Text, "let _ = crate::a::a();")
	ib := strings.Index(res.Text, "let _ = crate::b::b();")
	ic := strings.Index(res.Text, "let _ = crate::c::c();")
	if ia < 0 || ib < 0 || ic < 0 || !(ia < ib && ib < ic) {
		t.Errorf("calls missing or out of order in:\n%s", res.Text)
	}
	if got := Summary(res.Plan); got != "3 initializers in 2 stages" {
		t.Errorf("Summary = %q", got)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "src/lib.rs", "pub mod x;\npub mod y;\n#[init(stage = 3)]\nfn r() {}\n")
	writeFile(t, dir, "src/x.rs", "#[init(stage = 3)]\npub fn x1() {}\n#[init(stage = 1)]\npub fn x2() {}\n")
	writeFile(t, dir, "src/y.rs", "#[init(stage = 1)]\npub fn y1() {}\n")
	cfg := loadConfig(t, dir)

	first, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for range 5 {
		again, err := Run(context.Background(), cfg, nil)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if again.Text != first.Text {
			t.Fatalf("output differs between runs:\n%s\n---\n%s", first.Text, again.Text)
		}
	}
}

func TestRunEmptyTree(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "src/lib.rs", "pub fn untagged() {}\n")

	res, err := Run(context.Background(), loadConfig(t, dir), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Plan.Calls) != 0 {
		t.Errorf("expected no calls, got %v", callPaths(res.Plan))
	}
	if !strings.Contains(res.Text, "pub fn generated_init() {") {
		t.Errorf("routine missing from:\n%s", res.Text)
	}
	if strings.Contains(res.Text, "let _ =") {
		t.Errorf("empty routine has calls:\n%s", res.Text)
	}
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files map[string]string
		want  diag.Kind
	}{
		{
			name: "unreachable",
			files: map[string]string{
				"src/lib.rs":    "mod hidden;\n",
				"src/hidden.rs": "#[init(stage = 0)]\npub fn h() {}\n",
			},
			want: diag.UnreachableInitializer,
		},
		{
			name:  "malformed",
			files: map[string]string{"src/lib.rs": "#[init(stage = -1)]\nfn f() {}\n"},
			want:  diag.MalformedAnnotation,
		},
		{
			name:  "duplicate",
			files: map[string]string{"src/lib.rs": "#[init(stage = 1)]\n#[init(stage = 1)]\nfn f() {}\n"},
			want:  diag.DuplicateAnnotation,
		},
		{
			name:  "missing module",
			files: map[string]string{"src/lib.rs": "pub mod gone;\n"},
			want:  diag.IoError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			for rel, content := range tt.files {
				writeFile(t, dir, rel, content)
			}
			res, err := Run(context.Background(), loadConfig(t, dir), nil)
			if !diag.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if res != nil {
				t.Errorf("expected no result, got %+v", res)
			}
		})
	}
}

func TestRunCustomSettings(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "Cargo.toml", `[package]
name = "demo"

[package.metadata.stagegen]
routine = "boot"
attribute = "startup"
`)
	writeFile(t, dir, "src/main.rs", "#[startup(stage = 0)]\nfn go() {}\n#[init(stage = 0)]\nfn ignored() {}\n")

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	res, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{"crate::go"}, callPaths(res.Plan)); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(res.Text, "pub fn boot() {") {
		t.Errorf("custom routine name missing from:\n%s", res.Text)
	}
}

func TestFindOrphans(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "src/lib.rs", "pub mod used;\n")
	writeFile(t, dir, "src/used.rs", "")
	writeFile(t, dir, "src/forgotten.rs", "#[init(stage = 0)]\npub fn lost() {}\n")
	writeFile(t, dir, "src/scratch.rs", "fn main() {}\n")

	res, err := Run(context.Background(), loadConfig(t, dir), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []Orphan{
		{Path: "src/forgotten.rs", Tagged: true},
		{Path: "src/scratch.rs"},
	}
	if diff := cmp.Diff(want, res.Orphans); diff != "" {
		t.Errorf("orphans mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteAndStale(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := model.Artifact{Path: filepath.Join(dir, "out", "init.rs"), Text: "pub fn generated_init() {}\n"}

	stale, err := Stale(a)
	if err != nil || !stale {
		t.Fatalf("missing file: stale=%v err=%v", stale, err)
	}

	changed, err := Write(a)
	if err != nil || !changed {
		t.Fatalf("first write: changed=%v err=%v", changed, err)
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != a.Text {
		t.Errorf("content = %q", data)
	}

	changed, err = Write(a)
	if err != nil || changed {
		t.Errorf("identical write: changed=%v err=%v", changed, err)
	}
	if stale, err := Stale(a); err != nil || stale {
		t.Errorf("after write: stale=%v err=%v", stale, err)
	}

	a.Text = "pub fn generated_init() { }\n"
	if stale, _ := Stale(a); !stale {
		t.Error("modified text should be stale")
	}

	entries, err := os.ReadDir(filepath.Dir(a.Path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestOutputPath(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Output: "init.rs"}

	tests := []struct {
		explicit, outDir, want string
	}{
		{"x.rs", "/tmp/out", "x.rs"},
		{"", "/tmp/out", filepath.Join("/tmp/out", "init.rs")},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := OutputPath(cfg, tt.explicit, tt.outDir); got != tt.want {
			t.Errorf("OutputPath(%q, %q) = %q, want %q", tt.explicit, tt.outDir, got, tt.want)
		}
	}
}

func TestRerunHints(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Manifest: "/p/Cargo.toml", Root: "/p/src/lib.rs"}
	want := []string{"cargo:rerun-if-changed=/p/src", "cargo:rerun-if-changed=/p/Cargo.toml"}
	if diff := cmp.Diff(want, RerunHints(cfg)); diff != "" {
		t.Errorf("hints mismatch (-want +got):\n%s", diff)
	}
}

func TestResultReport(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "src/lib.rs", "pub(crate) mod net;\n#[init(stage = 2)]\nfn root() {}\n")
	writeFile(t, dir, "src/net.rs", "#[init(stage = 1)]\npub fn up() {}\n")
	cfg := loadConfig(t, dir)

	res, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := &model.Report{
		Crate:   "demo",
		Root:    "src/lib.rs",
		Routine: "generated_init",
		Calls: []model.ReportCall{
			{Stage: 1, Path: "crate::net::up", File: "src/net.rs", Line: 2},
			{Stage: 2, Path: "crate::root", File: "src/lib.rs", Line: 3},
		},
		Modules: []model.ReportModule{
			{Path: "crate", File: "src/lib.rs", Visibility: "pub", Reachable: true, Initializers: 1},
			{Path: "crate::net", File: "src/net.rs", Visibility: "pub(crate)", Reachable: true, Initializers: 1},
		},
	}
	if diff := cmp.Diff(want, res.Report(cfg)); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}
