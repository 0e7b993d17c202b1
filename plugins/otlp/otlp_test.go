//go:build unit

package otlp

import (
	"context"
	"testing"
	"time"

	"github.com/hugolhafner/go-lanes/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew_NoEndpoint(t *testing.T) {
	p, err := New(context.Background(), config.Default().Telemetry, "instance-1")
	require.NoError(t, err)

	assert.IsType(t, tracenoop.TracerProvider{}, p.TracerProvider)
	assert.IsType(t, metricnoop.MeterProvider{}, p.MeterProvider)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_WithEndpoint(t *testing.T) {
	cfg := config.Default().Telemetry
	cfg.Endpoint = "127.0.0.1:4317"
	cfg.TracesEnabled = true
	cfg.MetricsEnabled = true
	cfg.MetricInterval = time.Hour

	p, err := New(context.Background(), cfg, "instance-1")
	require.NoError(t, err)

	assert.IsType(t, &sdktrace.TracerProvider{}, p.TracerProvider)
	assert.IsType(t, &sdkmetric.MeterProvider{}, p.MeterProvider)
	assert.Len(t, p.shutdown, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	// nothing listens on the endpoint, so the final export may fail
	_ = p.Shutdown(ctx)
}

func TestNew_TracesOnly(t *testing.T) {
	cfg := config.Default().Telemetry
	cfg.Endpoint = "127.0.0.1:4317"
	cfg.TracesEnabled = true
	cfg.MetricsEnabled = false

	p, err := New(context.Background(), cfg, "instance-1")
	require.NoError(t, err)

	assert.IsType(t, &sdktrace.TracerProvider{}, p.TracerProvider)
	assert.IsType(t, metricnoop.MeterProvider{}, p.MeterProvider)
	assert.Len(t, p.shutdown, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(ctx)
}
