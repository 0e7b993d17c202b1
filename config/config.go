// Package config loads the YAML configuration of a lanes consumer.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hugolhafner/go-lanes/property"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a lanes consumer.
type Config struct {
	Kafka     KafkaConfig     `yaml:"kafka"`
	Runner    RunnerConfig    `yaml:"runner"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Properties are the initial values of the live-tunable properties,
	// keyed by property name
	Properties map[string]any `yaml:"properties"`
}

type KafkaConfig struct {
	Brokers          []string      `yaml:"brokers"`
	GroupID          string        `yaml:"group_id"`
	ClientID         string        `yaml:"client_id"` // generated when empty
	Topics           []string      `yaml:"topics"`
	MaxPollRecords   int           `yaml:"max_poll_records"`
	PollTimeout      time.Duration `yaml:"poll_timeout"`
	SessionTimeout   time.Duration `yaml:"session_timeout"`
	RebalanceTimeout time.Duration `yaml:"rebalance_timeout"`
}

type RunnerConfig struct {
	CommitInterval         time.Duration `yaml:"commit_interval"`
	CommitCount            int           `yaml:"commit_count"`
	CommitTimeout          time.Duration `yaml:"commit_timeout"`
	CommitFailureThreshold uint32        `yaml:"commit_failure_threshold"`
	ShutdownTimeout        time.Duration `yaml:"shutdown_timeout"`
	ResizeTimeout          time.Duration `yaml:"resize_timeout"`

	// MaxAttempts is how often a failing record is tried before it is
	// dead-lettered, or skipped when DLQTopic is empty
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	DLQTopic     string        `yaml:"dlq_topic"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TelemetryConfig enables OTLP export of traces and metrics. Nothing is
// exported unless Endpoint is set.
type TelemetryConfig struct {
	Endpoint        string        `yaml:"endpoint"` // OTLP gRPC host:port
	ServiceName     string        `yaml:"service_name"`
	TracesEnabled   bool          `yaml:"traces_enabled"`
	MetricsEnabled  bool          `yaml:"metrics_enabled"`
	TraceSampleRate float64       `yaml:"trace_sample_rate"` // 0.0 to 1.0
	MetricInterval  time.Duration `yaml:"metric_interval"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Kafka: KafkaConfig{
			Brokers:          []string{"localhost:9092"},
			GroupID:          "lanes",
			MaxPollRecords:   500,
			PollTimeout:      time.Second,
			SessionTimeout:   45 * time.Second,
			RebalanceTimeout: 60 * time.Second,
		},
		Runner: RunnerConfig{
			CommitInterval:         5 * time.Second,
			CommitCount:            1000,
			CommitTimeout:          10 * time.Second,
			CommitFailureThreshold: 5,
			ShutdownTimeout:        30 * time.Second,
			ResizeTimeout:          60 * time.Second,
			MaxAttempts:            3,
			RetryBackoff:           time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			ServiceName:     "lanes",
			MetricsEnabled:  true,
			TraceSampleRate: 0.1,
			MetricInterval:  10 * time.Second,
		},
		Properties: map[string]any{
			property.PartitionConcurrency: property.DefaultPartitionConcurrency,
			property.MaxPendingRecords:    property.DefaultMaxPendingRecords,
			property.ProcessingRate:       property.RateUnlimited,
		},
	}
}

// Load loads configuration from a YAML file.
// If the file doesn't exist, returns default configuration.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid. Property values are not
// checked here; the properties themselves reject invalid values.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers cannot be empty"))
	}
	if c.Kafka.GroupID == "" {
		errs = append(errs, errors.New("kafka.group_id cannot be empty"))
	}
	if len(c.Kafka.Topics) == 0 {
		errs = append(errs, errors.New("kafka.topics cannot be empty"))
	}
	if c.Kafka.MaxPollRecords < 0 {
		errs = append(errs, errors.New("kafka.max_poll_records cannot be negative"))
	}

	for name, d := range map[string]time.Duration{
		"kafka.poll_timeout":        c.Kafka.PollTimeout,
		"kafka.session_timeout":     c.Kafka.SessionTimeout,
		"kafka.rebalance_timeout":   c.Kafka.RebalanceTimeout,
		"runner.commit_interval":    c.Runner.CommitInterval,
		"runner.commit_timeout":     c.Runner.CommitTimeout,
		"runner.shutdown_timeout":   c.Runner.ShutdownTimeout,
		"runner.resize_timeout":     c.Runner.ResizeTimeout,
		"runner.retry_backoff":      c.Runner.RetryBackoff,
		"telemetry.metric_interval": c.Telemetry.MetricInterval,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s cannot be negative", name))
		}
	}

	if c.Runner.CommitInterval == 0 {
		errs = append(errs, errors.New("runner.commit_interval must be positive"))
	}
	if c.Runner.CommitCount < 0 {
		errs = append(errs, errors.New("runner.commit_count cannot be negative"))
	}
	if c.Runner.MaxAttempts < 1 {
		errs = append(errs, errors.New("runner.max_attempts must be at least 1"))
	}

	if c.Telemetry.Endpoint != "" {
		if c.Telemetry.ServiceName == "" {
			errs = append(errs, errors.New("telemetry.service_name cannot be empty when an endpoint is set"))
		}
		if c.Telemetry.TraceSampleRate < 0 || c.Telemetry.TraceSampleRate > 1 {
			errs = append(errs, errors.New("telemetry.trace_sample_rate must be between 0.0 and 1.0"))
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, text", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
