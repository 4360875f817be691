package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/annoscan/pkg/observability"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]int64)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += int64(dp.Count)
				}
			}
		}
	}

	return out
}

func TestScanMetrics_RecordArchive(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	sm, err := observability.NewScanMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	sm.RecordArchive(ctx, observability.ArchiveStats{Phase: observability.PhaseIndex, Classes: 10, Duration: time.Second})
	sm.RecordArchive(ctx, observability.ArchiveStats{Phase: observability.PhaseScan, Classes: 5, Usages: 2, Malformed: 1, Duration: time.Millisecond})

	sums := collectSums(t, reader)

	assert.Equal(t, int64(15), sums["annoscan.classes.scanned.total"])
	assert.Equal(t, int64(2), sums["annoscan.usages.found.total"])
	assert.Equal(t, int64(1), sums["annoscan.classes.malformed.total"])
	assert.Equal(t, int64(2), sums["annoscan.archive.duration.seconds"])
}

func TestScanMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var sm *observability.ScanMetrics

	assert.NotPanics(t, func() {
		sm.RecordArchive(context.Background(), observability.ArchiveStats{Classes: 1})
	})
}
