package lanes

import (
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/go-lanes/config"
	"github.com/hugolhafner/go-lanes/errorhandler"
	"github.com/hugolhafner/go-lanes/kafka"
	"github.com/hugolhafner/go-lanes/logger"
	"github.com/hugolhafner/go-lanes/property"
	"github.com/hugolhafner/go-lanes/runner"
)

type Config struct {
	Logger        logger.Logger
	Properties    *property.Processing
	RunnerOptions []runner.Option
}

type ConfigOption func(*Config)

func WithLogger(logger logger.Logger) ConfigOption {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithProperties shares p with the caller so it can tune the running
// application.
func WithProperties(p *property.Processing) ConfigOption {
	return func(c *Config) {
		c.Properties = p
	}
}

func WithRunnerOptions(opts ...runner.Option) ConfigOption {
	return func(c *Config) {
		c.RunnerOptions = append(c.RunnerOptions, opts...)
	}
}

func defaultConfig() Config {
	return Config{
		Logger: logger.NewNoopLogger(),
	}
}

// RunnerOptions maps the runner section of a configuration file onto
// subscription options. Failing records are retried up to MaxAttempts times
// and then dead-lettered, or skipped when no dead-letter topic is set.
func RunnerOptions(cfg config.RunnerConfig, producer kafka.Producer, l logger.Logger) []runner.Option {
	var fallback errorhandler.Handler = errorhandler.LogAndContinue(l)
	if cfg.DLQTopic != "" {
		fallback = errorhandler.WithDLQ(cfg.DLQTopic, nil)
	}

	handler := errorhandler.NewKindRouter(
		errorhandler.ActionLogger(
			l, logger.WarnLevel,
			errorhandler.WithMaxAttempts(cfg.MaxAttempts, backoff.NewFixed(cfg.RetryBackoff), fallback),
		),
		// undecodable payloads never succeed on retry
		errorhandler.ActionLogger(l, logger.WarnLevel, fallback),
		nil,
		nil,
	)

	opts := []runner.Option{
		runner.WithLogger(l),
		runner.WithErrorHandler(handler),
		runner.WithPollErrorBackoff(backoff.NewFixed(time.Second)),
		runner.WithCommitInterval(cfg.CommitInterval),
		runner.WithCommitCount(cfg.CommitCount),
		runner.WithCommitTimeout(cfg.CommitTimeout),
		runner.WithCommitFailureThreshold(cfg.CommitFailureThreshold),
		runner.WithShutdownTimeout(cfg.ShutdownTimeout),
		runner.WithResizeTimeout(cfg.ResizeTimeout),
	}
	if producer != nil {
		opts = append(opts, runner.WithProducer(producer))
	}

	return opts
}
