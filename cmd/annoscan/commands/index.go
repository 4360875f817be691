package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/annoscan/pkg/archive"
	"github.com/Sumatoshi-tech/annoscan/pkg/index"
)

// ErrNoAnnotations is returned when neither flags nor config name an annotation.
var ErrNoAnnotations = errors.New("no annotations selected; use -a, e.g. -a com.example.Experimental")

type indexCommand struct {
	app *app

	annotations []string
	extraFrom   string
	output      string
	onError     string
	workers     int
}

func newIndexCommand(a *app) *cobra.Command {
	ic := &indexCommand{app: a}

	cmd := &cobra.Command{
		Use:   "index ARCHIVE...",
		Short: "Build an annotation index from jars, class directories or class files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.run(ic.run),
	}

	cmd.Flags().StringSliceVarP(&ic.annotations, "annotation", "a", nil, "Annotation binary name to index (repeatable)")
	cmd.Flags().StringVar(&ic.extraFrom, "extra-from", "", "Existing index whose annotations and entries are carried over")
	cmd.Flags().StringVarP(&ic.output, "output", "o", "", "Index file (.json, .json.lz4, .gob, .gob.lz4; default from config)")
	cmd.Flags().StringVar(&ic.onError, "on-error", "", "Unreadable archive policy: fail or skip (default from config)")
	cmd.Flags().IntVarP(&ic.workers, "workers", "w", 0, "Concurrent archive scans (0 = config, then CPU count)")

	return cmd
}

func (ic *indexCommand) run(cmd *cobra.Command, paths []string) error {
	cfg := ic.app.cfg
	ctx := cmd.Context()

	targets := ic.annotations
	if len(targets) == 0 {
		targets = cfg.Annotations
	}

	opts := archive.BuildOptions{
		Targets:      targets,
		Extra:        cfg.ExtraAnnotations,
		Workers:      firstPositive(ic.workers, cfg.Build.Workers),
		MaxClassSize: cfg.Scan.MaxClassSizeBytes,
		Logger:       ic.app.logger,
		Metrics:      ic.app.metrics,
	}

	policy, err := archive.ParsePolicy(firstNonEmpty(ic.onError, cfg.Build.OnError))
	if err != nil {
		return err
	}

	opts.OnError = policy

	if ic.extraFrom != "" {
		base, loadErr := index.Load(ic.extraFrom)
		if loadErr != nil {
			return loadErr
		}

		opts.Base = base
		opts.Extra = append(opts.Extra, base.Annotations().Names()...)
	}

	if len(opts.Targets) == 0 && len(opts.Extra) == 0 {
		return ErrNoAnnotations
	}

	ic.app.ready.Store(true)

	res, err := archive.BuildIndex(ctx, paths, opts)
	if err != nil {
		return err
	}

	for _, skipped := range res.Skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %v\n", skipped)
	}

	out := firstNonEmpty(ic.output, cfg.Index.File())

	err = index.Save(out, res.Index)
	if err != nil {
		return err
	}

	info, err := os.Stat(out)
	if err != nil {
		return fmt.Errorf("stat index: %w", err)
	}

	st := res.Index.Stats()

	ic.app.logger.InfoContext(ctx, "index written",
		"index.path", out, "index.classes", st.Classes, "index.fields", st.Fields, "index.methods", st.Methods)

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s): %s classes, %s fields, %s methods from %s archives\n",
		out, humanize.Bytes(uint64(info.Size())), //nolint:gosec // file sizes are non-negative
		humanize.Comma(int64(st.Classes)), humanize.Comma(int64(st.Fields)), humanize.Comma(int64(st.Methods)),
		humanize.Comma(int64(st.Sources)))

	return nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}

	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
