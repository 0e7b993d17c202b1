package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hugolhafner/go-lanes/committer"
	"github.com/hugolhafner/go-lanes/kafka"
	"github.com/hugolhafner/go-lanes/logger"
	lanesotel "github.com/hugolhafner/go-lanes/otel"
	"github.com/hugolhafner/go-lanes/processor"
	"github.com/hugolhafner/go-lanes/property"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var _ kafka.RebalanceCallback = (*Subscription)(nil)

// Subscription consumes a set of topics and runs one partition processor per
// assigned partition. Offsets are committed from each partition's watermark.
type Subscription struct {
	id       string
	consumer kafka.Consumer
	topics   []string
	proc     processor.Processor
	config   Config

	props     *property.Processing
	trigger   *committer.PeriodicCommitter
	committer *committer.OffsetCommitter

	processors map[kafka.TopicPartition]*partitionProcessor
	mu         sync.RWMutex

	// errCh carries partition scoped failures to the caller; fatalCh ends Run
	errCh   chan error
	fatalCh chan error

	running atomic.Bool
	closed  atomic.Bool

	logger    logger.Logger
	telemetry *lanesotel.Telemetry
}

// NewSubscription creates a subscription of proc to topics. Nothing is
// consumed until Run is called.
func NewSubscription(
	consumer kafka.Consumer, topics []string, proc processor.Processor, opts ...Option,
) (*Subscription, error) {
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	if len(topics) == 0 {
		return nil, errors.New("at least one topic is required")
	}
	if proc == nil {
		return nil, errors.New("processor is nil")
	}

	config := defaultConfig()
	for _, opt := range opts {
		opt.apply(&config)
	}

	id := uuid.NewString()
	l := config.Logger.With("component", "subscription", "subscription", id)

	if config.Telemetry == nil {
		config.Telemetry = lanesotel.Noop()
	}
	props := config.Properties
	if props == nil {
		props = property.NewProcessing(config.Logger)
	}
	if config.ErrorBufferSize < 1 {
		config.ErrorBufferSize = 1
	}

	return &Subscription{
		id:       id,
		consumer: consumer,
		topics:   append([]string(nil), topics...),
		proc:     proc,
		config:   config,
		props:    props,
		trigger: committer.NewPeriodicCommitter(
			committer.WithMaxInterval(config.CommitInterval),
			committer.WithMaxCount(config.CommitCount),
		),
		committer: committer.NewOffsetCommitter(
			consumer,
			committer.WithFailureThreshold(config.CommitFailureThreshold),
			committer.WithLogger(config.Logger),
		),
		processors: make(map[kafka.TopicPartition]*partitionProcessor),
		errCh:      make(chan error, config.ErrorBufferSize),
		fatalCh:    make(chan error, 1),
		logger:     l,
		telemetry:  config.Telemetry,
	}, nil
}

func (s *Subscription) ID() string {
	return s.id
}

// Properties returns the live-tunable properties shared by every partition
// of the subscription.
func (s *Subscription) Properties() *property.Processing {
	return s.props
}

// Errors reports partition failures. A failed partition stops admitting
// records; the rest of the subscription keeps running. The channel is
// buffered and errors are dropped when nobody reads it.
func (s *Subscription) Errors() <-chan error {
	return s.errCh
}

// Run consumes until ctx is cancelled or a fatal error occurs. On return all
// partitions have been stopped and their final watermarks committed.
func (s *Subscription) Run(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	defer s.shutdown()

	unlisten := s.listen()
	defer unlisten()

	if err := s.consumer.Subscribe(s.topics, s); err != nil {
		return fmt.Errorf("failed to subscribe to topics: %w", err)
	}

	s.logger.Info("Subscription started", "topics", s.topics, "group", s.consumer.GroupID())

	var errAttempts uint = 0
	for {
		select {
		case err := <-s.fatalCh:
			s.logger.Error("Fatal error received in Run()", "error", err)
			return err

		case <-ctx.Done():
			s.logger.Info("Context cancelled, shutting down")
			return nil

		default:
			if err := s.doPoll(ctx); err != nil {
				s.logger.Warn("Poll error", "error", err)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(s.config.PollErrorBackoff.Next(errAttempts)):
				}
				errAttempts++
			} else {
				errAttempts = 0
			}

			s.maybeCommit(ctx)
		}
	}
}

// listen fans property changes out to every running partition processor.
func (s *Subscription) listen() func() {
	cancels := []func(){
		s.props.Concurrency.Listen(
			func(_, n int) error {
				s.each(func(p *partitionProcessor) { p.SetConcurrency(n) })
				return nil
			},
		),
		s.props.MaxPending.Listen(
			func(_, n int) error {
				s.each(func(p *partitionProcessor) { p.SetMaxPending(n) })
				return nil
			},
		),
		s.props.ProcessingRate.Listen(
			func(_, n int64) error {
				s.each(func(p *partitionProcessor) { p.SetProcessingRate(n) })
				return nil
			},
		),
		s.props.IgnoreKeys.Listen(
			func(_, keys []string) error {
				s.each(func(p *partitionProcessor) { p.SetIgnoreKeys(keys) })
				return nil
			},
		),
	}

	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

func (s *Subscription) each(fn func(p *partitionProcessor)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.processors {
		fn(p)
	}
}

func (s *Subscription) doPoll(ctx context.Context) error {
	tel := s.telemetry
	pollStart := time.Now()

	ctx, receiveSpan := tel.Tracer.Start(
		ctx, "receive",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			lanesotel.AttrMessagingSystem.String(lanesotel.SystemKafka),
			lanesotel.AttrMessagingOperation.String("receive"),
			lanesotel.AttrConsumerGroup.String(s.consumer.GroupID()),
		),
	)
	records, err := s.consumer.Poll(ctx)

	if err != nil {
		receiveSpan.RecordError(err)
		receiveSpan.End()

		tel.PollDuration.Record(
			ctx, time.Since(pollStart).Seconds(), metric.WithAttributes(
				lanesotel.AttrPollStatus.String(lanesotel.StatusError),
			),
		)
		return fmt.Errorf("failed to poll: %w", err)
	}

	tel.PollDuration.Record(
		ctx, time.Since(pollStart).Seconds(), metric.WithAttributes(
			lanesotel.AttrPollStatus.String(lanesotel.StatusSuccess),
		),
	)

	receiveSpan.SetAttributes(lanesotel.AttrBatchCount.Int(len(records)))
	receiveSpan.End()

	if len(records) == 0 {
		return nil
	}

	s.logger.Debug("Polled records", "count", len(records))

	// keep per partition order while batching the hand-over
	var order []kafka.TopicPartition
	batches := make(map[kafka.TopicPartition][]kafka.ConsumerRecord)
	for _, record := range records {
		tp := record.TopicPartition()
		if _, ok := batches[tp]; !ok {
			order = append(order, tp)
		}
		batches[tp] = append(batches[tp], record)
	}

	for _, tp := range order {
		batch := batches[tp]
		tel.RecordsConsumed.Add(
			ctx, int64(len(batch)), metric.WithAttributes(lanesotel.PartitionAttributes(tp.Topic, tp.Partition)...),
		)

		p, ok := s.processor(tp)
		if !ok {
			s.logger.Warn(
				"No processor for partition, may have been rebalanced",
				"topic", tp.Topic,
				"partition", tp.Partition,
			)
			continue
		}
		p.Enqueue(batch...)
	}

	return nil
}

func (s *Subscription) processor(tp kafka.TopicPartition) (*partitionProcessor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.processors[tp]
	return p, ok
}

func (s *Subscription) marks() map[kafka.TopicPartition]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	marks := make(map[kafka.TopicPartition]int64, len(s.processors))
	for tp, p := range s.processors {
		if mark, ok := p.Watermark(); ok {
			marks[tp] = mark
		}
	}
	return marks
}

func (s *Subscription) maybeCommit(ctx context.Context) {
	if !s.trigger.TryCommit() {
		return
	}

	commitCtx, cancel := context.WithTimeout(ctx, s.config.CommitTimeout)
	err := s.commit(commitCtx, s.marks())
	cancel()

	s.trigger.UnlockCommit(err == nil)
}

func (s *Subscription) commit(ctx context.Context, marks map[kafka.TopicPartition]int64) error {
	if len(marks) == 0 {
		return nil
	}

	start := time.Now()
	offsets, err := s.committer.Commit(ctx, marks)

	status := lanesotel.StatusSuccess
	if err != nil {
		status = lanesotel.StatusError
	}
	if err != nil || len(offsets) > 0 {
		attrs := metric.WithAttributes(lanesotel.AttrCommitStatus.String(status))
		s.telemetry.Commits.Add(ctx, 1, attrs)
		s.telemetry.CommitDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}

	if err != nil {
		s.logger.Error("Failed to commit offsets", "error", err)
		return err
	}

	for tp, o := range offsets {
		s.logger.Debug("Committed offset", "topic", tp.Topic, "partition", tp.Partition, "offset", o.Offset)
	}
	return nil
}

func (s *Subscription) settings() processorSettings {
	return processorSettings{
		concurrency: s.props.Concurrency.Get(),
		maxPending:  s.props.MaxPending.Get(),
		rate:        s.props.ProcessingRate.Get(),
		ignoreKeys:  s.props.IgnoreKeys.Get(),
	}
}

func (s *Subscription) OnAssigned(ctx context.Context, partitions []kafka.TopicPartition) {
	s.logger.Info("Partitions assigned", "partitions", partitions)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tp := range partitions {
		if _, exists := s.processors[tp]; exists {
			s.logger.Warn("Processor already exists for partition", "partition", tp)
			continue
		}

		p, err := newPartitionProcessor(
			tp, s.proc, s.consumer, s.consumer.GroupID(), s.settings(), s.config,
			func() { s.trigger.RecordProcessed(1) }, s.errCh,
		)
		if err != nil {
			s.logger.Error("Failed to create partition processor", "partition", tp, "error", err)
			emitError(s.fatalCh, s.logger, fmt.Errorf("create processor for %s: %w", tp, err))
			return
		}

		s.processors[tp] = p

		// the partition may have been paused by a previous owner of this
		// member; no-op otherwise
		s.consumer.ResumePartitions(tp)

		p.Start()

		s.logger.Debug("Started processor for partition", "partition", tp)
	}
}

func (s *Subscription) OnRevoked(ctx context.Context, partitions []kafka.TopicPartition) {
	s.logger.Info("Partitions revoked", "partitions", partitions)

	s.mu.Lock()
	stopping := make(map[kafka.TopicPartition]*partitionProcessor, len(partitions))
	for _, tp := range partitions {
		if p, exists := s.processors[tp]; exists {
			stopping[tp] = p
			delete(s.processors, tp)
		}
	}
	s.mu.Unlock()

	marks := s.stopAll(stopping)

	commitCtx, cancel := context.WithTimeout(context.Background(), s.config.CommitTimeout)
	defer cancel()

	if err := s.commit(commitCtx, marks); err != nil {
		s.logger.Error("Failed to commit offsets on revoke", "error", err)
	}

	s.committer.Forget(partitions...)
	s.logger.Debug("Completed handling partition revocation")
}

// stopAll stops processors concurrently and returns their final watermarks.
func (s *Subscription) stopAll(processors map[kafka.TopicPartition]*partitionProcessor) map[kafka.TopicPartition]int64 {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		marks = make(map[kafka.TopicPartition]int64, len(processors))
	)

	for tp, p := range processors {
		wg.Add(1)
		go func(tp kafka.TopicPartition, p *partitionProcessor) {
			defer wg.Done()

			mark, ok := p.Stop()
			if !ok {
				return
			}

			mu.Lock()
			marks[tp] = mark
			mu.Unlock()
		}(tp, p)
	}
	wg.Wait()

	return marks
}

// shutdown stops every partition and commits final offsets
func (s *Subscription) shutdown() {
	s.logger.Info("Shutting down subscription")

	s.mu.Lock()
	processors := s.processors
	s.processors = make(map[kafka.TopicPartition]*partitionProcessor)
	s.mu.Unlock()

	marks := s.stopAll(processors)

	commitCtx, cancel := context.WithTimeout(context.Background(), s.config.CommitTimeout)
	defer cancel()

	if err := s.commit(commitCtx, marks); err != nil {
		s.logger.Error("Failed to commit final offsets", "error", err)
	}

	if s.config.Producer != nil {
		if err := s.config.Producer.Flush(commitCtx); err != nil {
			s.logger.Warn("Failed to flush producer", "error", err)
		}
	}

	s.closed.Store(true)
	s.running.Store(false)
	s.logger.Info("Subscription stopped")
}

// Partitions returns the partitions currently owned.
func (s *Subscription) Partitions() []kafka.TopicPartition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tps := make([]kafka.TopicPartition, 0, len(s.processors))
	for tp := range s.processors {
		tps = append(tps, tp)
	}
	return tps
}

// ProcessorStats returns a snapshot of the processor owning tp.
func (s *Subscription) ProcessorStats(tp kafka.TopicPartition) (ProcessorStats, bool) {
	p, ok := s.processor(tp)
	if !ok {
		return ProcessorStats{}, false
	}
	return p.Stats(), true
}
