package config

// Index defaults.
const (
	DefaultIndexPath   = "annoscan-index"
	DefaultIndexFormat = "json"
)

// Build defaults.
const (
	DefaultBuildWorkers = 0
	DefaultBuildOnError = "fail"
)

// Scan defaults.
const (
	DefaultScanWorkers         = 0
	DefaultScanClassReferences = false
	DefaultScanFailOnMalformed = false
	DefaultScanMaxClassSize    = "64MB"
)

// Output and logging defaults.
const (
	DefaultOutputFormat = "text"
	DefaultLogLevel     = "info"
	DefaultLogJSON      = false
	DefaultDiagAddr     = ""
)
