// Package commands implements the annoscan command tree.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	internalobs "github.com/Sumatoshi-tech/annoscan/internal/observability"
	"github.com/Sumatoshi-tech/annoscan/pkg/config"
	"github.com/Sumatoshi-tech/annoscan/pkg/observability"
	"github.com/Sumatoshi-tech/annoscan/pkg/version"
)

// ExitUsagesFound is the exit code of a scan that found restricted usages.
const ExitUsagesFound = 3

// ExitError ends the process with Code and no error line.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

var errNotReady = errors.New("inputs not loaded")

// observabilityInit is swapped in tests.
type observabilityInit func(observability.Config) (observability.Providers, error)

// app is the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	verbose    bool
	quiet      bool
	logJSON    bool
	noColor    bool
	diagAddr   string

	initObs observabilityInit

	cfg       *config.Config
	providers observability.Providers
	logger    *slog.Logger
	metrics   *observability.ScanMetrics
	diag      *internalobs.DiagnosticsServer
	ready     atomic.Bool
}

// NewRootCommand builds the annoscan command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(observability.Init)
}

func newRootCommand(initObs observabilityInit) *cobra.Command {
	a := &app{initObs: initObs}

	root := &cobra.Command{
		Use:   "annoscan",
		Short: "Find uses of annotated JVM APIs in bytecode",
		Long: `annoscan indexes the classes, fields and methods of JVM libraries that carry
chosen annotations, then scans application bytecode for references to them.

Commands:
  index     Build an annotation index from archives
  scan      Report references to indexed elements
  show      Print an index
  diff      Compare two indexes`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default: .annoscan.yaml in ., ./config, ~/.annoscan)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "Only log errors")
	flags.BoolVar(&a.logJSON, "log-json", false, "JSON log output")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	flags.StringVar(&a.diagAddr, "diagnostics-addr", "", "Serve /healthz, /readyz and /metrics on this address")

	root.AddCommand(
		newIndexCommand(a),
		newScanCommand(a),
		newShowCommand(a),
		newDiffCommand(a),
		newVersionCommand(),
	)

	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}

	a.cfg = cfg

	obsCfg := observability.DefaultConfig().WithEnv()
	obsCfg.ServiceVersion = version.Version
	obsCfg.LogOutput = cmd.ErrOrStderr()
	obsCfg.LogJSON = cfg.Logging.JSON || a.logJSON
	obsCfg.LogLevel = a.logLevel()

	addr := cfg.Diagnostics.Addr
	if a.diagAddr != "" {
		addr = a.diagAddr
	}

	var prom *internalobs.Prometheus

	if addr != "" {
		prom, err = internalobs.NewPrometheus()
		if err != nil {
			return err
		}

		obsCfg.MetricReaders = []sdkmetric.Reader{prom.Reader}
	}

	a.providers, err = a.initObs(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	a.logger = a.providers.Logger

	a.metrics, err = observability.NewScanMetrics(a.providers.Meter)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	if prom != nil {
		a.diag, err = internalobs.NewDiagnosticsServer(addr, prom.Handler, a.logger, internalobs.ReadyCheck{
			Name:  "inputs",
			Check: a.readyCheck,
		})
		if err != nil {
			return err
		}

		a.logger.InfoContext(cmd.Context(), "diagnostics server listening", "http.addr", a.diag.Addr())
	}

	return nil
}

func (a *app) logLevel() slog.Level {
	switch {
	case a.verbose:
		return slog.LevelDebug
	case a.quiet:
		return slog.LevelError
	default:
		return a.cfg.Logging.SlogLevel()
	}
}

func (a *app) readyCheck(context.Context) error {
	if !a.ready.Load() {
		return errNotReady
	}

	return nil
}

// run wraps a subcommand so telemetry is flushed and the diagnostics
// server stopped whatever the outcome.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)

		return errors.Join(err, a.teardown(cmd))
	}
}

func (a *app) teardown(cmd *cobra.Command) error {
	var errs []error

	if a.diag != nil {
		errs = append(errs, a.diag.Close(cmd.Context()))
	}

	if a.providers.Shutdown != nil {
		errs = append(errs, a.providers.Shutdown(cmd.Context()))
	}

	return errors.Join(errs...)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// The root pre-run loads config; version must work without one.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "annoscan %s\n", version.String())
		},
	}
}
