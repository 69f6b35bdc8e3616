package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/phobologic/stagegen/internal/config"
	"github.com/phobologic/stagegen/internal/logging"
	"github.com/phobologic/stagegen/internal/model"
	"github.com/phobologic/stagegen/internal/pipeline"
	"github.com/phobologic/stagegen/internal/watch"
)

type generateOptions struct {
	out   string
	watch bool
}

func (o *generateOptions) bind(f *pflag.FlagSet) {
	f.StringVarP(&o.out, "out", "o", "", "output file (default: $OUT_DIR/<output>, or stdout outside Cargo)")
	f.BoolVarP(&o.watch, "watch", "w", false, "regenerate whenever sources or Cargo.toml change")
}

func (a *app) generateCmd() *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Scan the crate and write the initializer routine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runGenerate(cmd.Context(), opts)
		},
	}
	opts.bind(cmd.Flags())
	return cmd
}

func (a *app) runGenerate(ctx context.Context, opts *generateOptions) error {
	cfg, err := a.generateOnce(ctx, opts)
	if !opts.watch {
		return err
	}
	if err != nil {
		if cfg == nil {
			return err
		}
		a.errorf("%v", err)
	}
	return a.watchLoop(ctx, cfg, opts)
}

// generateOnce runs the pipeline and writes its artifact. The returned config
// is non-nil whenever configuration loaded, even if the scan failed.
func (a *app) generateOnce(ctx context.Context, opts *generateOptions) (*config.Config, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	outDir := a.getenv("OUT_DIR")
	if outDir != "" {
		for _, h := range pipeline.RerunHints(cfg) {
			fmt.Fprintln(a.stdout, h)
		}
	}

	res, err := pipeline.Run(ctx, cfg, a.logger)
	if err != nil {
		return cfg, err
	}

	for _, o := range res.Orphans {
		if !o.Tagged {
			continue
		}
		msg := fmt.Sprintf("%s contains #[%s] but no module declaration reaches it", o.Path, cfg.Attribute)
		if outDir != "" {
			fmt.Fprintf(a.stdout, "cargo:warning=stagegen: %s\n", msg)
		} else {
			a.warnf("%s", msg)
		}
	}

	path := pipeline.OutputPath(cfg, opts.out, outDir)
	if path == "" {
		_, err := fmt.Fprint(a.stdout, res.Text)
		return cfg, err
	}

	changed, err := pipeline.Write(model.Artifact{Path: path, Text: res.Text})
	if err != nil {
		return cfg, err
	}
	logging.Component(a.logger, "cli").Info("artifact",
		"path", path,
		"changed", changed,
		"summary", pipeline.Summary(res.Plan))
	return cfg, nil
}

func (a *app) watchLoop(ctx context.Context, cfg *config.Config, opts *generateOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var extra []string
	if cfg.Manifest != "" {
		extra = append(extra, cfg.Manifest)
	}
	w, err := watch.New(cfg.SourceDir(), extra, watch.Options{Logger: a.logger})
	if err != nil {
		return err
	}
	defer w.Close()

	fmt.Fprintf(a.stderr, "watching %s for changes\n", cfg.SourceDir())
	err = w.Run(ctx, func(paths []string) {
		logging.Component(a.logger, "cli").Info("regenerating", "changed", len(paths))
		if _, err := a.generateOnce(ctx, opts); err != nil {
			a.errorf("%v", err)
			return
		}
		fmt.Fprintf(a.stderr, "regenerated after %d change(s)\n", len(paths))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
