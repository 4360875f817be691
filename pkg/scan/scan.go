// Package scan runs the bytecode inspector over whole archives with a pool
// of workers and merges what they find in a stable order.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/annoscan/pkg/archive"
	"github.com/Sumatoshi-tech/annoscan/pkg/classfile"
	"github.com/Sumatoshi-tech/annoscan/pkg/index"
	"github.com/Sumatoshi-tech/annoscan/pkg/inspect"
	"github.com/Sumatoshi-tech/annoscan/pkg/observability"
)

const tracerName = "annoscan/scan"

// ClassError is a class that could not be inspected.
type ClassError struct {
	Archive string
	Entry   string
	Err     error
}

func (e *ClassError) Error() string {
	return fmt.Sprintf("%s!%s: %v", e.Archive, e.Entry, e.Err)
}

func (e *ClassError) Unwrap() error { return e.Err }

// Options configures Run.
type Options struct {
	// Workers is the number of inspectors; zero means GOMAXPROCS.
	Workers int
	// ClassReferences also reports annotated classes named in the constant pool.
	ClassReferences bool
	// FailOnMalformed aborts the run at the first malformed class instead
	// of collecting it in Result.Failures.
	FailOnMalformed bool
	// MaxClassSize bounds the bytes read per class when positive.
	MaxClassSize int64
	// Logger receives per-class failure reports; nil discards them.
	Logger *slog.Logger
	// Metrics records per-archive statistics; nil disables them.
	Metrics *observability.ScanMetrics
}

// Result is the merged outcome of a run.
type Result struct {
	// Usages holds every usage in (archive, entry) order.
	Usages *inspect.UsageSet
	// Failures lists malformed classes in (archive, entry) order.
	Failures []*ClassError
	Archives int
	Classes  int
}

type task struct {
	slot    int
	archive int
	source  string
	path    string
	entry   archive.Entry
}

type outcome struct {
	usages   *inspect.UsageSet
	err      *ClassError
	duration time.Duration
}

// Run inspects every class in paths against idx.
func Run(ctx context.Context, idx *index.Index, paths []string, opts Options) (res *Result, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "scan.run")
	defer span.End()

	span.SetAttributes(attribute.Int("scan.archives", len(paths)), attribute.Bool("scan.class_references", opts.ClassReferences))

	archives, err := openAll(ctx, paths)
	defer func() {
		closeErr := closeAll(archives)
		if err == nil && closeErr != nil {
			res, err = nil, closeErr
		}
	}()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	tasks := plan(archives)
	outcomes := make([]outcome, len(tasks))

	err = dispatch(ctx, idx, tasks, outcomes, opts, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	res = merge(ctx, archives, tasks, outcomes, opts.Metrics)

	span.SetAttributes(
		attribute.Int("scan.classes", res.Classes),
		attribute.Int("scan.usages", res.Usages.Len()),
		attribute.Int("scan.malformed", len(res.Failures)),
	)

	return res, nil
}

func openAll(ctx context.Context, paths []string) ([]*archive.Archive, error) {
	archives := make([]*archive.Archive, 0, len(paths))

	for _, path := range paths {
		err := ctx.Err()
		if err != nil {
			return archives, err
		}

		_, span := otel.Tracer(tracerName).Start(ctx, "archive.open")
		span.SetAttributes(attribute.String("archive.path", path))

		a, err := archive.Open(path)
		if err != nil {
			span.RecordError(err)
			span.End()

			return archives, err
		}

		span.SetAttributes(attribute.Int("archive.classes", len(a.Classes())))
		span.End()

		archives = append(archives, a)
	}

	return archives, nil
}

func closeAll(archives []*archive.Archive) error {
	var errs []error

	for _, a := range archives {
		errs = append(errs, a.Close())
	}

	return errors.Join(errs...)
}

func plan(archives []*archive.Archive) []task {
	var tasks []task

	for i, a := range archives {
		for _, e := range a.Classes() {
			tasks = append(tasks, task{slot: len(tasks), archive: i, source: e.Class, path: a.Path(), entry: e})
		}
	}

	return tasks
}

func dispatch(ctx context.Context, idx *index.Index, tasks []task, outcomes []outcome, opts Options, logger *slog.Logger) error {
	var inspectOpts []inspect.Option
	if opts.ClassReferences {
		inspectOpts = append(inspectOpts, inspect.WithClassReferences())
	}

	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan task)

	g.Go(func() error {
		defer close(queue)

		for _, t := range tasks {
			err := gctx.Err()
			if err != nil {
				return err
			}

			select {
			case <-gctx.Done():
				return gctx.Err()
			case queue <- t:
			}
		}

		return nil
	})

	for range workerCount(opts.Workers, len(tasks)) {
		in := inspect.New(idx, inspectOpts...)

		g.Go(func() error {
			for t := range queue {
				out, err := inspectOne(in, t, opts.MaxClassSize)
				if err != nil {
					return err
				}

				if out.err != nil {
					if opts.FailOnMalformed {
						return out.err
					}

					logger.WarnContext(gctx, "malformed class", "archive.path", t.path, "scan.entry", t.entry.Name, "error", out.err.Err)
				}

				outcomes[t.slot] = out
			}

			return nil
		})
	}

	return g.Wait()
}

// inspectOne scans one entry with in and leaves in empty again. Malformed
// classes come back as outcome.err; anything else is fatal.
func inspectOne(in *inspect.Inspector, t task, maxSize int64) (outcome, error) {
	start := time.Now()

	rc, err := t.entry.Open()
	if err != nil {
		return outcome{}, &archive.ReadError{Path: t.path, Entry: t.entry.Name, Err: err}
	}
	defer rc.Close()

	var r io.Reader = rc
	if maxSize > 0 {
		r = io.LimitReader(rc, maxSize)
	}

	_, err = in.Scan(t.source, r)

	out := outcome{duration: time.Since(start)}

	switch {
	case err == nil:
		out.usages = in.Usages()
		in.Reset()
	case errors.Is(err, classfile.ErrMalformedClassFile):
		out.err = &ClassError{Archive: t.path, Entry: t.entry.Name, Err: err}
	default:
		return outcome{}, &archive.ReadError{Path: t.path, Entry: t.entry.Name, Err: err}
	}

	return out, nil
}

func merge(ctx context.Context, archives []*archive.Archive, tasks []task, outcomes []outcome, metrics *observability.ScanMetrics) *Result {
	res := &Result{Usages: inspect.NewUsageSet(), Archives: len(archives), Classes: len(tasks)}
	stats := make([]observability.ArchiveStats, len(archives))

	for i, t := range tasks {
		out := outcomes[i]
		st := &stats[t.archive]

		st.Classes++
		st.Duration += out.duration

		if out.err != nil {
			st.Malformed++
			res.Failures = append(res.Failures, out.err)

			continue
		}

		st.Usages += out.usages.Len()
		res.Usages.Merge(out.usages)
	}

	for _, st := range stats {
		st.Phase = observability.PhaseScan
		metrics.RecordArchive(ctx, st)
	}

	return res
}

func workerCount(n, tasks int) int {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}

	return max(1, min(n, tasks))
}
