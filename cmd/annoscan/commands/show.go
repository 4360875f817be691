package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/annoscan/pkg/index"
	"github.com/Sumatoshi-tech/annoscan/pkg/report"
)

type showCommand struct {
	app *app

	indexPath string
	format    string
}

func newShowCommand(a *app) *cobra.Command {
	sc := &showCommand{app: a}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the contents of an index",
		Args:  cobra.NoArgs,
		RunE:  a.run(sc.run),
	}

	cmd.Flags().StringVarP(&sc.indexPath, "index", "i", "", "Index file (default from config)")
	cmd.Flags().StringVarP(&sc.format, "format", "f", "", "Output format: text, json, yaml (default from config)")

	return cmd
}

func (sc *showCommand) run(cmd *cobra.Command, _ []string) error {
	format, err := report.ParseFormat(firstNonEmpty(sc.format, sc.app.cfg.Output.Format))
	if err != nil {
		return err
	}

	idx, err := index.Load(firstNonEmpty(sc.indexPath, sc.app.cfg.Index.File()))
	if err != nil {
		return err
	}

	sc.app.ready.Store(true)

	err = report.WriteIndex(cmd.OutOrStdout(), idx, report.Options{Format: format, NoColor: sc.app.noColor})
	if err != nil {
		return fmt.Errorf("show index: %w", err)
	}

	return nil
}
