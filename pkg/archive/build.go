package archive

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

	"github.com/Sumatoshi-tech/annoscan/pkg/classfile"
	"github.com/Sumatoshi-tech/annoscan/pkg/index"
	"github.com/Sumatoshi-tech/annoscan/pkg/observability"
)

const tracerName = "annoscan/archive"

// Policy decides what happens to an archive that cannot be read.
type Policy string

// Error policies.
const (
	// PolicyFail aborts the whole build.
	PolicyFail Policy = "fail"
	// PolicySkip drops the archive's contribution and reports it.
	PolicySkip Policy = "skip"
)

// Build errors.
var (
	ErrUnknownPolicy = errors.New("unknown error policy")
	ErrNoTargets     = errors.New("no annotations to index")
)

// ParsePolicy parses "fail" or "skip"; empty means fail.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyFail:
		return PolicyFail, nil
	case PolicySkip:
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// BuildOptions configures BuildIndex.
type BuildOptions struct {
	// Targets are the annotation names to index.
	Targets []string
	// Extra are already-known annotation names indexed alongside Targets.
	Extra []string
	// Base is an existing index merged under the new entries.
	Base *index.Index
	// Workers bounds concurrent archive scans; zero means GOMAXPROCS.
	Workers int
	// OnError is the per-archive error policy; empty means PolicyFail.
	OnError Policy
	// MaxClassSize rejects larger class entries when positive.
	MaxClassSize int64
	// Logger receives skip reports; nil discards them.
	Logger *slog.Logger
	// Metrics records per-archive statistics; nil disables them.
	Metrics *observability.ScanMetrics
}

// BuildResult is a finished index with what was left out of it.
type BuildResult struct {
	Index *index.Index
	// Skipped lists archives dropped under PolicySkip, in input order.
	Skipped []*ReadError
	// Classes is the number of class files read from included archives.
	Classes int
}

type archiveResult struct {
	source  index.Source
	facts   []index.Fact
	classes int
	err     *ReadError
}

// BuildIndex scans paths concurrently and folds their facts, in input
// order, into one index.
func BuildIndex(ctx context.Context, paths []string, opts BuildOptions) (*BuildResult, error) {
	policy := opts.OnError
	if policy == "" {
		policy = PolicyFail
	}

	if policy != PolicyFail && policy != PolicySkip {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}

	b := index.NewBuilder(append(append([]string{}, opts.Targets...), opts.Extra...)...)
	if opts.Base != nil {
		b.Merge(opts.Base)
	}

	if b.Targets().Empty() {
		return nil, ErrNoTargets
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "index.build")
	defer span.End()

	span.SetAttributes(attribute.Int("index.archives", len(paths)))

	targets := b.Targets()
	results := make([]archiveResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(opts.Workers))

	for i, path := range paths {
		g.Go(func() error {
			res, err := indexArchive(gctx, path, targets, opts)
			if err == nil {
				results[i] = res

				return nil
			}

			var readErr *ReadError
			if policy == PolicySkip && gctx.Err() == nil && errors.As(err, &readErr) {
				results[i] = archiveResult{err: readErr}
				logger.WarnContext(gctx, "archive skipped", "archive.path", path, "error", err)

				return nil
			}

			return err
		})
	}

	err := g.Wait()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	out := &BuildResult{}

	for _, res := range results {
		if res.err != nil {
			out.Skipped = append(out.Skipped, res.err)

			continue
		}

		b.AddSource(res.source)
		out.Classes += res.classes

		for _, f := range res.facts {
			_, addErr := b.Add(f)
			if addErr != nil {
				return nil, fmt.Errorf("index %s: %w", res.source.Path, addErr)
			}
		}
	}

	out.Index = b.Build()

	stats := out.Index.Stats()
	span.SetAttributes(
		attribute.Int("index.classes", stats.Classes),
		attribute.Int("index.fields", stats.Fields),
		attribute.Int("index.methods", stats.Methods),
	)

	return out, nil
}

func indexArchive(ctx context.Context, path string, targets index.AnnotationSet, opts BuildOptions) (archiveResult, error) {
	start := time.Now()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "archive.index")
	defer span.End()

	span.SetAttributes(attribute.String("archive.path", path))

	a, err := Open(path)
	if err != nil {
		span.RecordError(err)

		return archiveResult{}, err
	}

	defer a.Close()

	sum, err := a.Fingerprint()
	if err != nil {
		span.RecordError(err)

		return archiveResult{}, err
	}

	facts, classes, err := ScanFacts(ctx, a, targets, opts.MaxClassSize)

	malformed := 0
	if errors.Is(err, classfile.ErrMalformedClassFile) {
		malformed = 1
	}

	opts.Metrics.RecordArchive(ctx, observability.ArchiveStats{
		Phase:     observability.PhaseIndex,
		Classes:   classes,
		Malformed: malformed,
		Duration:  time.Since(start),
	})

	if err != nil {
		span.RecordError(err)

		return archiveResult{}, err
	}

	span.SetAttributes(attribute.Int("archive.classes", classes))

	return archiveResult{
		source:  index.Source{Path: path, XXH3: sum},
		facts:   facts,
		classes: classes,
	}, nil
}

func workerCount(n int) int {
	if n > 0 {
		return n
	}

	return runtime.GOMAXPROCS(0)
}
