// Package observability serves the annoscan diagnostics endpoints: liveness,
// readiness and a Prometheus scrape of the OTel meter provider.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Prometheus is an OTel metric reader paired with the handler that serves it.
// Attach Reader to the meter provider and mount Handler at /metrics.
type Prometheus struct {
	Reader  sdkmetric.Reader
	Handler http.Handler
}

// NewPrometheus creates an exporter on its own registry, so repeated calls
// never collide on collector registration.
func NewPrometheus() (*Prometheus, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &Prometheus{
		Reader:  exporter,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}
