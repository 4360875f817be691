package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/annoscan/pkg/index"
	"github.com/Sumatoshi-tech/annoscan/pkg/report"
	"github.com/Sumatoshi-tech/annoscan/pkg/scan"
)

type scanCommand struct {
	app *app

	indexPath       string
	format          string
	classRefs       bool
	failOnMalformed bool
	workers         int
}

func newScanCommand(a *app) *cobra.Command {
	sc := &scanCommand{app: a}

	cmd := &cobra.Command{
		Use:   "scan PATH...",
		Short: "Report references to indexed elements",
		Long: `Scan jars, class directories or class files for references to annotated
elements of an index. Exits 3 when any usage is found.`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.run(sc.run),
	}

	cmd.Flags().StringVarP(&sc.indexPath, "index", "i", "", "Index file (default from config)")
	cmd.Flags().StringVarP(&sc.format, "format", "f", "", "Output format: text, json, yaml (default from config)")
	cmd.Flags().BoolVar(&sc.classRefs, "class-refs", false, "Also report any constant-pool reference to an annotated class")
	cmd.Flags().BoolVar(&sc.failOnMalformed, "fail-on-malformed", false, "Abort at the first malformed class")
	cmd.Flags().IntVarP(&sc.workers, "workers", "w", 0, "Concurrent inspectors (0 = config, then CPU count)")

	return cmd
}

func (sc *scanCommand) run(cmd *cobra.Command, paths []string) error {
	cfg := sc.app.cfg

	format, err := report.ParseFormat(firstNonEmpty(sc.format, cfg.Output.Format))
	if err != nil {
		return err
	}

	idx, err := index.Load(firstNonEmpty(sc.indexPath, cfg.Index.File()))
	if err != nil {
		return err
	}

	sc.app.ready.Store(true)

	res, err := scan.Run(cmd.Context(), idx, paths, scan.Options{
		Workers:         firstPositive(sc.workers, cfg.Scan.Workers),
		ClassReferences: sc.classRefs || cfg.Scan.ClassReferences,
		FailOnMalformed: sc.failOnMalformed || cfg.Scan.FailOnMalformed,
		MaxClassSize:    cfg.Scan.MaxClassSizeBytes,
		Logger:          sc.app.logger,
		Metrics:         sc.app.metrics,
	})
	if err != nil {
		return err
	}

	err = report.WriteScan(cmd.OutOrStdout(), res, report.Options{Format: format, NoColor: sc.app.noColor})
	if err != nil {
		return err
	}

	if res.Usages.Len() > 0 {
		return &ExitError{Code: ExitUsagesFound}
	}

	return nil
}
