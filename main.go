// stagegen generates a Rust routine that calls every `#[init(stage = N)]`
// function of a crate in stage order.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/phobologic/stagegen/internal/config"
	"github.com/phobologic/stagegen/internal/logging"
)

var version = "dev"

var (
	errorLabel   = color.New(color.FgRed, color.Bold)
	warningLabel = color.New(color.FgYellow, color.Bold)
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorLabel.Sprint("error:"), err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout, stderr: stderr, getenv: os.Getenv}
	return a.execute(context.Background(), args)
}

// app holds what every subcommand shares: output streams, the environment
// and the flags common to all of them.
type app struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	dir               string
	root              string
	routine           string
	attribute         string
	trustFnVisibility bool
	logLevel          string
	logFormat         string

	logger *slog.Logger
}

func (a *app) execute(ctx context.Context, args []string) error {
	cmd := a.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	return cmd.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	gen := &generateOptions{}

	root := &cobra.Command{
		Use:   "stagegen",
		Short: "Generate a staged initializer routine for a Rust crate",
		Long: `stagegen scans a Rust crate for functions annotated #[init(stage = N)] and
writes a routine that calls them all, lowest stage first.

Run without a subcommand it behaves like "stagegen generate", which is what a
build script wants: inside Cargo it reads CARGO_MANIFEST_DIR and writes to
OUT_DIR.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Args: cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(a.logLevel, a.logFormat, a.stderr)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runGenerate(cmd.Context(), gen)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.dir, "dir", "C", "", "crate directory (default: $CARGO_MANIFEST_DIR or the current directory)")
	pf.StringVar(&a.root, "root", "", "crate root file, relative to the crate directory")
	pf.StringVar(&a.routine, "routine", "", "name of the generated routine")
	pf.StringVar(&a.attribute, "attribute", "", "annotation name to look for")
	pf.BoolVar(&a.trustFnVisibility, "trust-fn-visibility", false, "do not require tagged functions outside the crate root to be pub(crate)")
	pf.StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	pf.StringVar(&a.logFormat, "log-format", "text", "log format: text or json")

	gen.bind(root.Flags())

	root.AddCommand(
		a.generateCmd(),
		a.planCmd(),
		a.checkCmd(),
		a.initCmd(),
	)
	return root
}

// projectDir picks the crate directory: --dir, then CARGO_MANIFEST_DIR, then
// the working directory.
func (a *app) projectDir() string {
	if a.dir != "" {
		return a.dir
	}
	if d := a.getenv("CARGO_MANIFEST_DIR"); d != "" {
		return d
	}
	return "."
}

// loadConfig reads Cargo.toml settings and applies command line overrides.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWith(a.projectDir(), config.Overrides{
		Root:              a.root,
		Routine:           a.routine,
		Attribute:         a.attribute,
		TrustFnVisibility: a.trustFnVisibility,
	})
	if err != nil {
		return nil, err
	}

	for _, key := range cfg.Unknown {
		a.warnf("%s: unknown setting %s", cfg.Manifest, key)
	}
	logging.Component(a.logger, "cli").Debug("configuration loaded",
		"project", cfg.ProjectDir,
		"root", cfg.Root,
		"routine", cfg.Routine,
		"attribute", cfg.Attribute)
	return cfg, nil
}

func (a *app) warnf(format string, args ...any) {
	fmt.Fprintf(a.stderr, "%s %s\n", warningLabel.Sprint("warning:"), fmt.Sprintf(format, args...))
}

func (a *app) errorf(format string, args ...any) {
	fmt.Fprintf(a.stderr, "%s %s\n", errorLabel.Sprint("error:"), fmt.Sprintf(format, args...))
}
