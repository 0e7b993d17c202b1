package otel

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	traceNoop "go.opentelemetry.io/otel/trace/noop"
)

const scopeName = "github.com/hugolhafner/go-lanes"

// Telemetry holds all OpenTelemetry instruments for the go-lanes library
// When no providers are configured, all instruments are noops with zero overhead
type Telemetry struct {
	Tracer     trace.Tracer
	Propagator propagation.TextMapPropagator

	// Consumer metrics
	RecordsConsumed metric.Int64Counter
	PollDuration    metric.Float64Histogram

	// Processing metrics
	ProcessDuration  metric.Float64Histogram
	RecordsCompleted metric.Int64Counter

	// Dead-letter production
	RecordsProduced metric.Int64Counter

	// Error metrics
	Errors              metric.Int64Counter
	ErrorHandlerActions metric.Int64Counter

	// Partition processor state
	ProcessorsActive  metric.Int64UpDownCounter
	LanesActive       metric.Int64UpDownCounter
	CreditOutstanding metric.Int64UpDownCounter
	Resizes           metric.Int64Counter

	// Commit metrics
	Commits        metric.Int64Counter
	CommitDuration metric.Float64Histogram
}

type instruments struct {
	meter metric.Meter
	err   error
}

func (i *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := i.meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil && i.err == nil {
		i.err = err
	}
	return c
}

func (i *instruments) upDown(name, desc string) metric.Int64UpDownCounter {
	c, err := i.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	if err != nil && i.err == nil {
		i.err = err
	}
	return c
}

func (i *instruments) seconds(name, desc string) metric.Float64Histogram {
	h, err := i.meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
	if err != nil && i.err == nil {
		i.err = err
	}
	return h
}

// NewTelemetry creates a Telemetry instance from the given providers.
// all providers are optional and defaulted to noops if nil
func NewTelemetry(tp trace.TracerProvider, mp metric.MeterProvider, prop propagation.TextMapPropagator) (
	*Telemetry, error,
) {
	if tp == nil {
		tp = traceNoop.NewTracerProvider()
	}
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	if prop == nil {
		prop = propagation.TraceContext{}
	}

	in := &instruments{meter: mp.Meter(scopeName)}

	t := &Telemetry{
		Tracer:     tp.Tracer(scopeName),
		Propagator: prop,

		RecordsConsumed: in.counter("messaging.consumer.messages", "Records consumed"),
		PollDuration:    in.seconds("lanes.poll.duration", "Time per Poll() call"),

		ProcessDuration:  in.seconds("lanes.process.duration", "Time from lane start to completion of a record"),
		RecordsCompleted: in.counter("lanes.records.completed", "Records completed, by outcome"),

		RecordsProduced: in.counter("messaging.producer.messages", "Records produced to dead-letter topics"),

		Errors:              in.counter("lanes.errors", "Processing errors encountered"),
		ErrorHandlerActions: in.counter("lanes.error_handler.actions", "Error handler decisions"),

		ProcessorsActive:  in.upDown("lanes.processors.active", "Running partition processors"),
		LanesActive:       in.upDown("lanes.lanes.active", "Lanes across all partition processors"),
		CreditOutstanding: in.upDown("lanes.credit.outstanding", "Admitted records not yet completed"),
		Resizes:           in.counter("lanes.resizes", "Lane pool resizes, by outcome"),

		Commits:        in.counter("lanes.commits", "Offset commit attempts, by outcome"),
		CommitDuration: in.seconds("lanes.commit.duration", "Time per offset commit"),
	}

	if in.err != nil {
		return nil, in.err
	}

	return t, nil
}

// Noop returns a Telemetry instance with all noop instruments
func Noop() *Telemetry {
	t, _ := NewTelemetry(nil, nil, nil)
	return t
}
