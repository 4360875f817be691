// Package observability wires structured logging, OpenTelemetry tracing and
// scan metrics for the annoscan CLI.
package observability

import (
	"io"
	"log/slog"
	"os"
	"strconv"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	// defaultServiceName is the default OTel service name.
	defaultServiceName = "annoscan"

	// defaultShutdownTimeoutSec is the default shutdown timeout in seconds.
	defaultShutdownTimeoutSec = 5
)

// Standard OTLP environment variables.
const (
	envOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOTLPHeaders  = "OTEL_EXPORTER_OTLP_HEADERS"
	envOTLPInsecure = "OTEL_EXPORTER_OTLP_INSECURE"
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the semantic version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment (e.g. "ci", "dev").
	Environment string

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables OTLP export.
	OTLPEndpoint string

	// OTLPHeaders are additional gRPC metadata headers for the OTLP exporter.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS for the OTLP gRPC connection.
	OTLPInsecure bool

	// DebugTrace forces 100% trace sampling when true.
	DebugTrace bool

	// SampleRatio is the trace sampling ratio (0.0 to 1.0) when DebugTrace is false.
	SampleRatio float64

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// LogJSON enables JSON-formatted log output.
	LogJSON bool

	// LogOutput receives log records. Nil means stderr.
	LogOutput io.Writer

	// MetricReaders are attached to the meter provider in addition to the
	// OTLP exporter, e.g. the Prometheus reader of the diagnostics server.
	MetricReaders []sdkmetric.Reader

	// ShutdownTimeoutSec is the maximum seconds to wait for flush on shutdown.
	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config with sensible defaults for zero-config startup.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}

// WithEnv fills the OTLP settings from the standard OTEL_EXPORTER_OTLP_*
// variables when they are set.
func (c Config) WithEnv() Config {
	if endpoint := os.Getenv(envOTLPEndpoint); endpoint != "" {
		c.OTLPEndpoint = endpoint
	}

	if headers := ParseOTLPHeaders(os.Getenv(envOTLPHeaders)); headers != nil {
		c.OTLPHeaders = headers
	}

	if insecure, err := strconv.ParseBool(os.Getenv(envOTLPInsecure)); err == nil {
		c.OTLPInsecure = insecure
	}

	return c
}

func (c Config) logOutput() io.Writer {
	if c.LogOutput == nil {
		return os.Stderr
	}

	return c.LogOutput
}
