package discover

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func paths(entries []FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func TestDiscoverRustFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "lib.rs", "pub mod util;")
	writeFile(t, dir, "util/mod.rs", "pub fn helper() {}")
	// Non-Rust file should be ignored
	writeFile(t, dir, "readme.md", "hello")
	// Hidden file should be ignored
	writeFile(t, dir, ".hidden.rs", "secret")

	entries, err := Files(dir)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if diff := cmp.Diff([]string{"lib.rs", "util/mod.rs"}, paths(entries)); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
	for _, e := range entries {
		if e.Language != "rust" {
			t.Errorf("entry %q: language = %q, want rust", e.Path, e.Language)
		}
	}
}

func TestDiscoverSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.rs", "fn main() {}")
	writeFile(t, dir, "target/debug/build/out.rs", "")
	writeFile(t, dir, ".cargo/registry.rs", "")

	entries, err := Files(dir)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if diff := cmp.Diff([]string{"main.rs"}, paths(entries)); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, ".gitignore", "generated/\nscratch.rs\n")
	writeFile(t, dir, "lib.rs", "")
	writeFile(t, dir, "scratch.rs", "")
	writeFile(t, dir, "generated/bindings.rs", "")

	entries, err := Files(dir)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if diff := cmp.Diff([]string{"lib.rs"}, paths(entries)); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "real.rs", "")

	err := os.Symlink(filepath.Join(dir, "real.rs"), filepath.Join(dir, "link.rs"))
	if err != nil {
		t.Skip("symlinks not supported")
	}

	entries, err := Files(dir)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if diff := cmp.Diff([]string{"real.rs"}, paths(entries)); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSkipDir(t *testing.T) {
	t.Parallel()
	for name, want := range map[string]bool{
		"target": true, ".git": true, ".cache": true, "node_modules": true,
		"src": false, "net": false, "targets": false,
	} {
		if got := SkipDir(name); got != want {
			t.Errorf("SkipDir(%q) = %v, want %v", name, got, want)
		}
	}
}
