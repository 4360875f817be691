package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/annoscan/pkg/index"
	"github.com/Sumatoshi-tech/annoscan/pkg/report"
)

type diffCommand struct {
	app *app

	exitCode bool
}

func newDiffCommand(a *app) *cobra.Command {
	dc := &diffCommand{app: a}

	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Compare two indexes",
		Args:  cobra.ExactArgs(2),
		RunE:  a.run(dc.run),
	}

	cmd.Flags().BoolVar(&dc.exitCode, "exit-code", false, "Exit 1 when the indexes differ")

	return cmd
}

func (dc *diffCommand) run(cmd *cobra.Command, args []string) error {
	before, err := index.Load(args[0])
	if err != nil {
		return err
	}

	after, err := index.Load(args[1])
	if err != nil {
		return err
	}

	dc.app.ready.Store(true)

	lines := report.DiffIndexes(before, after)
	if len(lines) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "indexes are identical")

		return nil
	}

	err = report.WriteDiff(cmd.OutOrStdout(), lines, report.Options{NoColor: dc.app.noColor})
	if err != nil {
		return err
	}

	if dc.exitCode {
		return &ExitError{Code: 1}
	}

	return nil
}
