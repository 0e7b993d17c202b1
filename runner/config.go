package runner

import (
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/go-lanes/errorhandler"
	"github.com/hugolhafner/go-lanes/kafka"
	"github.com/hugolhafner/go-lanes/logger"
	"github.com/hugolhafner/go-lanes/otel"
	"github.com/hugolhafner/go-lanes/property"
)

// Router maps a record key onto one of lanes lanes. It must be deterministic
// for a given key and lane count.
type Router interface {
	Route(key []byte, lanes int) int
}

type Config struct {
	Logger           logger.Logger
	ErrorHandler     errorhandler.Handler
	PollErrorBackoff backoff.Backoff
	Telemetry        *otel.Telemetry

	// Properties are the live-tunable processing properties shared by every
	// partition processor of the subscription
	Properties *property.Processing

	// Producer is used for dead-letter routing only
	Producer kafka.Producer
	Router   Router

	CommitInterval         time.Duration
	CommitCount            int
	CommitFailureThreshold uint32
	CommitTimeout          time.Duration

	// ShutdownTimeout bounds the drain of a stopping partition, after which
	// remaining tasks are abandoned
	ShutdownTimeout time.Duration
	// ResizeTimeout bounds the drain before a lane pool is rebuilt
	ResizeTimeout time.Duration

	ErrorBufferSize int
}

func defaultConfig() Config {
	l := logger.NewNoopLogger()
	return Config{
		Logger:                 l,
		ErrorHandler:           errorhandler.LogAndContinue(l),
		PollErrorBackoff:       backoff.NewFixed(time.Second),
		Telemetry:              otel.Noop(),
		CommitInterval:         5 * time.Second,
		CommitCount:            1000,
		CommitFailureThreshold: 5,
		CommitTimeout:          10 * time.Second,
		ShutdownTimeout:        30 * time.Second,
		ResizeTimeout:          60 * time.Second,
		ErrorBufferSize:        16,
	}
}
