//go:build unit

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hugolhafner/go-lanes/property"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.Runner.CommitInterval)
	assert.Equal(t, 60*time.Second, cfg.Runner.ResizeTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, property.DefaultPartitionConcurrency, cfg.Properties[property.PartitionConcurrency])

	// topics have no sensible default
	require.Error(t, cfg.Validate())
	cfg.Kafka.Topics = []string{"orders"}
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			modify: func(c *Config) {},
		},
		{
			name:    "no brokers",
			modify:  func(c *Config) { c.Kafka.Brokers = nil },
			wantErr: "kafka.brokers",
		},
		{
			name:    "no group",
			modify:  func(c *Config) { c.Kafka.GroupID = "" },
			wantErr: "kafka.group_id",
		},
		{
			name:    "negative timeout",
			modify:  func(c *Config) { c.Runner.ShutdownTimeout = -time.Second },
			wantErr: "runner.shutdown_timeout",
		},
		{
			name:    "zero commit interval",
			modify:  func(c *Config) { c.Runner.CommitInterval = 0 },
			wantErr: "runner.commit_interval",
		},
		{
			name:    "no attempts",
			modify:  func(c *Config) { c.Runner.MaxAttempts = 0 },
			wantErr: "runner.max_attempts",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "log.level",
		},
		{
			name:    "bad log format",
			modify:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
		{
			name:   "sample rate ignored without endpoint",
			modify: func(c *Config) { c.Telemetry.TraceSampleRate = 2 },
		},
		{
			name: "bad sample rate",
			modify: func(c *Config) {
				c.Telemetry.Endpoint = "collector:4317"
				c.Telemetry.TraceSampleRate = 1.5
			},
			wantErr: "telemetry.trace_sample_rate",
		},
		{
			name: "no service name",
			modify: func(c *Config) {
				c.Telemetry.Endpoint = "collector:4317"
				c.Telemetry.ServiceName = ""
			},
			wantErr: "telemetry.service_name",
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				cfg := Default()
				cfg.Kafka.Topics = []string{"orders"}
				tt.modify(cfg)

				err := cfg.Validate()
				if tt.wantErr == "" {
					require.NoError(t, err)
					return
				}
				require.ErrorContains(t, err, tt.wantErr)
			},
		)
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse(
		[]byte(`
kafka:
  brokers: [broker-1:9092, broker-2:9092]
  group_id: orders-consumer
  topics: [orders]
  poll_timeout: 250ms
runner:
  commit_interval: 2s
  resize_timeout: 1m
  dlq_topic: orders-dlq
log:
  level: debug
telemetry:
  endpoint: collector:4317
  traces_enabled: true
properties:
  partition_concurrency: 8
  ignore_keys: [poison]
`),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "orders-consumer", cfg.Kafka.GroupID)
	assert.Equal(t, 250*time.Millisecond, cfg.Kafka.PollTimeout)
	assert.Equal(t, 2*time.Second, cfg.Runner.CommitInterval)
	assert.Equal(t, time.Minute, cfg.Runner.ResizeTimeout)
	assert.Equal(t, "orders-dlq", cfg.Runner.DLQTopic)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)
	assert.True(t, cfg.Telemetry.TracesEnabled)
	assert.Equal(t, "lanes", cfg.Telemetry.ServiceName)

	// unset values keep their defaults
	assert.Equal(t, 1000, cfg.Runner.CommitCount)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Equal(t, 8, cfg.Properties[property.PartitionConcurrency])
	assert.Equal(t, []any{"poison"}, cfg.Properties[property.IgnoreKeys])
	assert.Equal(t, property.DefaultMaxPendingRecords, cfg.Properties[property.MaxPendingRecords])
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("kafka: [not, a, map]"))
	require.ErrorContains(t, err, "failed to parse")

	_, err = Parse([]byte("kafka:\n  topics: []\n"))
	require.ErrorContains(t, err, "invalid configuration")
}

func TestLoadNonExistent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lanes.yaml")

	cfg := Default()
	cfg.Kafka.Topics = []string{"orders"}
	cfg.Runner.DLQTopic = "orders-dlq"
	require.NoError(t, cfg.Save(path))

	_, err := os.Stat(path)
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Kafka, loaded.Kafka)
	assert.Equal(t, cfg.Runner, loaded.Runner)
	assert.Equal(t, cfg.Log, loaded.Log)
}
