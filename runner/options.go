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

type Option interface {
	apply(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) apply(c *Config) {
	f(c)
}

type loggerOption struct {
	logger logger.Logger
}

func (o loggerOption) apply(c *Config) {
	if o.logger != nil {
		c.Logger = o.logger
	}
}

func WithLogger(l logger.Logger) Option {
	return loggerOption{logger: l}
}

type errorHandlerOption struct {
	handler errorhandler.Handler
}

func (o errorHandlerOption) apply(c *Config) {
	c.ErrorHandler = o.handler
}

// WithErrorHandler sets the handler consulted when user logic fails
func WithErrorHandler(h errorhandler.Handler) Option {
	return errorHandlerOption{handler: h}
}

type pollErrorBackoffOption struct {
	b backoff.Backoff
}

func (o pollErrorBackoffOption) apply(c *Config) {
	if o.b != nil {
		c.PollErrorBackoff = o.b
	}
}

func WithPollErrorBackoff(b backoff.Backoff) Option {
	return pollErrorBackoffOption{b: b}
}

// WithProperties shares live-tunable properties with the subscription.
// Without it every subscription gets its own defaults.
func WithProperties(p *property.Processing) Option {
	return optionFunc(
		func(c *Config) {
			c.Properties = p
		},
	)
}

func WithTelemetry(t *otel.Telemetry) Option {
	return optionFunc(
		func(c *Config) {
			if t != nil {
				c.Telemetry = t
			}
		},
	)
}

// WithProducer sets the producer used for dead-letter routing
func WithProducer(p kafka.Producer) Option {
	return optionFunc(
		func(c *Config) {
			c.Producer = p
		},
	)
}

// WithRouter replaces the default xxhash key router
func WithRouter(r Router) Option {
	return optionFunc(
		func(c *Config) {
			c.Router = r
		},
	)
}

type durationOption struct {
	d   time.Duration
	set func(*Config, time.Duration)
}

func (o durationOption) apply(c *Config) {
	if o.d > 0 {
		o.set(c, o.d)
	}
}

// WithCommitInterval sets the maximum time between offset commits
func WithCommitInterval(d time.Duration) Option {
	return durationOption{d: d, set: func(c *Config, d time.Duration) { c.CommitInterval = d }}
}

func WithCommitTimeout(d time.Duration) Option {
	return durationOption{d: d, set: func(c *Config, d time.Duration) { c.CommitTimeout = d }}
}

func WithShutdownTimeout(d time.Duration) Option {
	return durationOption{d: d, set: func(c *Config, d time.Duration) { c.ShutdownTimeout = d }}
}

func WithResizeTimeout(d time.Duration) Option {
	return durationOption{d: d, set: func(c *Config, d time.Duration) { c.ResizeTimeout = d }}
}

// WithCommitCount commits once n records completed since the last commit.
// Zero disables the count trigger.
func WithCommitCount(n int) Option {
	return optionFunc(
		func(c *Config) {
			if n >= 0 {
				c.CommitCount = n
			}
		},
	)
}

// WithCommitFailureThreshold sets how many consecutive commit failures
// suspend commits for a while
func WithCommitFailureThreshold(n uint32) Option {
	return optionFunc(
		func(c *Config) {
			if n > 0 {
				c.CommitFailureThreshold = n
			}
		},
	)
}

func WithErrorBufferSize(n int) Option {
	return optionFunc(
		func(c *Config) {
			if n > 0 {
				c.ErrorBufferSize = n
			}
		},
	)
}
