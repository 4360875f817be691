package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricClassesScanned   = "annoscan.classes.scanned.total"
	metricUsagesFound      = "annoscan.usages.found.total"
	metricClassesMalformed = "annoscan.classes.malformed.total"
	metricArchiveDuration  = "annoscan.archive.duration.seconds"

	attrPhase = "phase"
)

// Phases label which pass produced a measurement.
const (
	PhaseIndex = "index"
	PhaseScan  = "scan"
)

// durationBucketBoundaries covers 1ms to 300s: a single class file up to a
// large application server distribution.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300}

// ScanMetrics holds the OTel instruments recorded per archive.
type ScanMetrics struct {
	classesScanned   metric.Int64Counter
	usagesFound      metric.Int64Counter
	classesMalformed metric.Int64Counter
	archiveDuration  metric.Float64Histogram
}

// ArchiveStats summarizes one archive pass.
type ArchiveStats struct {
	Phase     string
	Classes   int
	Usages    int
	Malformed int
	Duration  time.Duration
}

// NewScanMetrics creates the scan instruments from the given meter.
func NewScanMetrics(mt metric.Meter) (*ScanMetrics, error) {
	scanned, err := mt.Int64Counter(metricClassesScanned,
		metric.WithDescription("Class files read"),
		metric.WithUnit("{class}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricClassesScanned, err)
	}

	usages, err := mt.Int64Counter(metricUsagesFound,
		metric.WithDescription("Annotated element usages found"),
		metric.WithUnit("{usage}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricUsagesFound, err)
	}

	malformed, err := mt.Int64Counter(metricClassesMalformed,
		metric.WithDescription("Class files rejected as malformed"),
		metric.WithUnit("{class}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricClassesMalformed, err)
	}

	duration, err := mt.Float64Histogram(metricArchiveDuration,
		metric.WithDescription("Per-archive processing duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricArchiveDuration, err)
	}

	return &ScanMetrics{
		classesScanned:   scanned,
		usagesFound:      usages,
		classesMalformed: malformed,
		archiveDuration:  duration,
	}, nil
}

// RecordArchive records the statistics of one archive pass.
// Safe to call on a nil receiver (no-op).
func (sm *ScanMetrics) RecordArchive(ctx context.Context, stats ArchiveStats) {
	if sm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrPhase, stats.Phase))

	sm.classesScanned.Add(ctx, int64(stats.Classes), attrs)
	sm.usagesFound.Add(ctx, int64(stats.Usages), attrs)
	sm.classesMalformed.Add(ctx, int64(stats.Malformed), attrs)
	sm.archiveDuration.Record(ctx, stats.Duration.Seconds(), attrs)
}
