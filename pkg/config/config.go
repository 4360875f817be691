// Package config loads annoscan settings from defaults, an optional YAML
// file and ANNOSCAN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

const (
	configName       = ".annoscan"
	configType       = "yaml"
	envPrefix        = "ANNOSCAN"
	envKeySeparator  = "_"
	homeConfigSubdir = ".annoscan"
)

// IndexFormats are the accepted index.format values.
var IndexFormats = []string{"json", "json.lz4", "gob", "gob.lz4"}

// Sentinel errors for configuration validation.
var (
	ErrEmptyAnnotation     = errors.New("annotation names must be non-empty")
	ErrInvalidIndexFormat  = errors.New("index.format must be one of json, json.lz4, gob, gob.lz4")
	ErrInvalidWorkers      = errors.New("workers must be non-negative")
	ErrInvalidPolicy       = errors.New("build.on_error must be fail or skip")
	ErrInvalidMaxClassSize = errors.New("scan.max_class_size must be a byte size such as 16MB")
	ErrInvalidOutputFormat = errors.New("output.format must be text, json or yaml")
	ErrInvalidLogLevel     = errors.New("logging.level must be debug, info, warn or error")
)

// Config is the full annoscan configuration.
type Config struct {
	Annotations      []string          `mapstructure:"annotations"`
	ExtraAnnotations []string          `mapstructure:"extra_annotations"`
	Index            IndexConfig       `mapstructure:"index"`
	Build            BuildConfig       `mapstructure:"build"`
	Scan             ScanConfig        `mapstructure:"scan"`
	Output           OutputConfig      `mapstructure:"output"`
	Logging          LoggingConfig     `mapstructure:"logging"`
	Diagnostics      DiagnosticsConfig `mapstructure:"diagnostics"`
}

// IndexConfig locates the persisted index.
type IndexConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

// File returns Path, with the Format extension appended when Path has none.
func (c IndexConfig) File() string {
	lower := strings.ToLower(c.Path)

	for _, f := range IndexFormats {
		if strings.HasSuffix(lower, "."+f) {
			return c.Path
		}
	}

	return c.Path + "." + c.Format
}

// BuildConfig holds index build settings.
type BuildConfig struct {
	Workers int    `mapstructure:"workers"`
	OnError string `mapstructure:"on_error"`
}

// ScanConfig holds scan settings. MaxClassSizeBytes is derived from
// MaxClassSize by Validate.
type ScanConfig struct {
	Workers         int    `mapstructure:"workers"`
	ClassReferences bool   `mapstructure:"class_references"`
	FailOnMalformed bool   `mapstructure:"fail_on_malformed"`
	MaxClassSize    string `mapstructure:"max_class_size"`

	MaxClassSizeBytes int64 `mapstructure:"-"`
}

// OutputConfig holds report settings.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// SlogLevel returns the parsed level; Validate guarantees it parses.
func (c LoggingConfig) SlogLevel() slog.Level {
	var level slog.Level

	_ = level.UnmarshalText([]byte(c.Level))

	return level
}

// DiagnosticsConfig holds the diagnostics HTTP server address; empty disables it.
type DiagnosticsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise .annoscan.yaml is searched in ".", "./config" and $HOME/.annoscan.
// A missing config file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(filepath.Join(home, homeConfigSubdir))
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("annotations", []string{})
	viperCfg.SetDefault("extra_annotations", []string{})

	viperCfg.SetDefault("index.path", DefaultIndexPath)
	viperCfg.SetDefault("index.format", DefaultIndexFormat)

	viperCfg.SetDefault("build.workers", DefaultBuildWorkers)
	viperCfg.SetDefault("build.on_error", DefaultBuildOnError)

	viperCfg.SetDefault("scan.workers", DefaultScanWorkers)
	viperCfg.SetDefault("scan.class_references", DefaultScanClassReferences)
	viperCfg.SetDefault("scan.fail_on_malformed", DefaultScanFailOnMalformed)
	viperCfg.SetDefault("scan.max_class_size", DefaultScanMaxClassSize)

	viperCfg.SetDefault("output.format", DefaultOutputFormat)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.json", DefaultLogJSON)

	viperCfg.SetDefault("diagnostics.addr", DefaultDiagAddr)
}

// Validate checks Config invariants and returns the first error found.
// It also fills derived fields.
func (c *Config) Validate() error {
	for _, name := range slices.Concat(c.Annotations, c.ExtraAnnotations) {
		if strings.TrimSpace(name) == "" {
			return ErrEmptyAnnotation
		}
	}

	if !slices.Contains(IndexFormats, strings.ToLower(c.Index.Format)) {
		return fmt.Errorf("%w: %q", ErrInvalidIndexFormat, c.Index.Format)
	}

	if c.Build.Workers < 0 || c.Scan.Workers < 0 {
		return ErrInvalidWorkers
	}

	switch c.Build.OnError {
	case "", "fail", "skip":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPolicy, c.Build.OnError)
	}

	switch strings.ToLower(c.Output.Format) {
	case "", "text", "json", "yaml":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOutputFormat, c.Output.Format)
	}

	var level slog.Level

	err := level.UnmarshalText([]byte(c.Logging.Level))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	return c.Scan.parseMaxClassSize()
}

func (c *ScanConfig) parseMaxClassSize() error {
	if c.MaxClassSize == "" || c.MaxClassSize == "0" {
		c.MaxClassSizeBytes = 0

		return nil
	}

	size, err := humanize.ParseBytes(c.MaxClassSize)
	if err != nil || size > math.MaxInt64 {
		return fmt.Errorf("%w: %q", ErrInvalidMaxClassSize, c.MaxClassSize)
	}

	c.MaxClassSizeBytes = int64(size) //nolint:gosec // bounded above

	return nil
}
