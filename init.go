package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/stagegen/internal/config"
)

const (
	sentinelStart = "// stagegen:start"
	sentinelEnd   = "// stagegen:end"
)

func (a *app) initCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "init [path-to-build.rs]",
		Short: "Add a stagegen step to the crate's build script",
		Long: `Write a stagegen section to a Cargo build script. The section is wrapped in
sentinel comments so it can be updated in place on subsequent runs without
touching surrounding code. Creates the file, with a main that calls the
section, if it does not exist.

path-to-build.rs defaults to build.rs in the crate directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(args, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	return cmd
}

func (a *app) runInit(args []string, dryRun bool) error {
	section := generateSection()

	// --dry-run with no path: just print the section itself.
	if dryRun && len(args) == 0 {
		_, _ = fmt.Fprintln(a.stdout, section)
		return nil
	}

	path := filepath.Join(a.projectDir(), "build.rs")
	if len(args) > 0 {
		path = args[0]
	}

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	updated := applySection(string(existing), section)

	if dryRun {
		_, _ = fmt.Fprint(a.stdout, updated)
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(a.stderr, "wrote stagegen section to %s\n", path)
	if outside := strings.Replace(updated, section, "", 1); !strings.Contains(outside, "run_stagegen()") {
		a.warnf("%s never calls run_stagegen(); call it from main", path)
	}
	_, _ = fmt.Fprintf(a.stderr, "include the generated routine from your crate root:\n\n    %s\n\n", includeLine(a.outputName()))
	return nil
}

// outputName is the configured artifact file name, or the default when the
// crate has no usable configuration yet.
func (a *app) outputName() string {
	cfg, err := config.Load(a.projectDir())
	if err != nil {
		return config.DefaultOutput
	}
	return cfg.Output
}

func includeLine(output string) string {
	return fmt.Sprintf(`include!(concat!(env!("OUT_DIR"), "/%s"));`, output)
}

// generateSection returns the sentinel-wrapped build script function.
func generateSection() string {
	body := `// Managed by ` + "`stagegen init`" + `; edits inside this block are overwritten.
fn run_stagegen() {
    let status = std::process::Command::new("stagegen")
        .arg("generate")
        .status()
        .expect("failed to run stagegen (is it installed and on PATH?)");
    assert!(status.success(), "stagegen failed");
}`

	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. Empty content becomes a complete
// build script. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if content == "" {
		return section + "\n\nfn main() {\n    run_stagegen();\n}\n"
	}

	// Append, ensuring a blank line separator.
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
