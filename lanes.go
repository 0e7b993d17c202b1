// Package lanes runs a record processor over Kafka partitions with per-key
// lanes, bounded in-flight work and watermark offset commits.
package lanes

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hugolhafner/go-lanes/kafka"
	"github.com/hugolhafner/go-lanes/logger"
	"github.com/hugolhafner/go-lanes/processor"
	"github.com/hugolhafner/go-lanes/property"
	"github.com/hugolhafner/go-lanes/runner"
)

const Version = "v0.1.0" // x-release-please-version

var (
	ErrAlreadyRunning = errors.New("application is already running")
	ErrClosed         = errors.New("application is closed")
)

type Application struct {
	topics    []string
	processor processor.Processor
	config    Config

	client kafka.Client
	logger logger.Logger

	mu           sync.Mutex
	running      bool
	subscription *runner.Subscription
	closeOnce    sync.Once
	closedCh     chan struct{}
}

func NewApplication(
	client kafka.Client, topics []string, p processor.Processor, opts ...ConfigOption,
) (*Application, error) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return NewApplicationWithConfig(client, topics, p, config)
}

func NewApplicationWithConfig(
	client kafka.Client, topics []string, p processor.Processor, config Config,
) (*Application, error) {
	if client == nil {
		return nil, errors.New("client is nil")
	}
	if config.Logger == nil {
		config.Logger = logger.NewNoopLogger()
	}
	if config.Properties == nil {
		config.Properties = property.NewProcessing(config.Logger)
	}

	return &Application{
		topics:    topics,
		processor: p,
		config:    config,
		client:    client,
		logger:    config.Logger,
		closedCh:  make(chan struct{}),
	}, nil
}

// Properties returns the live-tunable properties of the application.
func (a *Application) Properties() *property.Processing {
	return a.config.Properties
}

// Errors reports partition failures while the application runs. It is nil
// before Run.
func (a *Application) Errors() <-chan error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.subscription == nil {
		return nil
	}
	return a.subscription.Errors()
}

// Run consumes until ctx is cancelled, Close is called or a fatal error
// occurs.
func (a *Application) Run(ctx context.Context) error {
	if err := a.startRunning(); err != nil {
		return err
	}
	defer a.Close()

	opts := append(
		[]runner.Option{
			runner.WithLogger(a.logger),
			runner.WithProducer(a.client),
		},
		a.config.RunnerOptions...,
	)
	opts = append(opts, runner.WithProperties(a.config.Properties))

	s, err := runner.NewSubscription(a.client, a.topics, a.processor, opts...)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	a.mu.Lock()
	a.subscription = s
	a.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-a.closedCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	a.logger.Info("Starting application", "version", Version, "subscription", s.ID())
	return s.Run(runCtx)
}

func (a *Application) Close() {
	a.closeOnce.Do(
		func() {
			a.mu.Lock()
			defer a.mu.Unlock()

			a.running = false
			close(a.closedCh)
		},
	)
}

func (a *Application) startRunning() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return ErrAlreadyRunning
	}

	select {
	case <-a.closedCh:
		return ErrClosed
	default:
	}

	a.running = true
	return nil
}
