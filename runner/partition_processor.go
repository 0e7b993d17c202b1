package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hugolhafner/go-lanes/committer"
	"github.com/hugolhafner/go-lanes/errorhandler"
	"github.com/hugolhafner/go-lanes/internal/credit"
	"github.com/hugolhafner/go-lanes/internal/drain"
	"github.com/hugolhafner/go-lanes/internal/lane"
	"github.com/hugolhafner/go-lanes/kafka"
	"github.com/hugolhafner/go-lanes/logger"
	lanesotel "github.com/hugolhafner/go-lanes/otel"
	"github.com/hugolhafner/go-lanes/processor"
	"github.com/hugolhafner/go-lanes/task"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// fetchController pauses and resumes fetching of a partition
type fetchController interface {
	PausePartitions(partitions ...kafka.TopicPartition)
	ResumePartitions(partitions ...kafka.TopicPartition)
}

type processorSettings struct {
	concurrency int
	maxPending  int
	rate        int64
	ignoreKeys  []string
}

// partitionProcessor runs the records of one partition on a pool of lanes.
//
// Records handed over by the poll loop wait in the backlog until the credit
// tracker admits them. Admitted records are delivered to the lane owning
// their key, unless the routing gate is closed for a resize, in which case
// they are held and delivered to the new pool in admission order.
type partitionProcessor struct {
	tp        kafka.TopicPartition
	proc      processor.Processor
	fetch     fetchController
	handler   errorhandler.Handler
	producer  kafka.Producer
	router    Router
	telemetry *lanesotel.Telemetry
	attrs     []attribute.KeyValue
	groupID   string
	logger    logger.Logger

	shutdownTimeout time.Duration
	resizeTimeout   time.Duration

	credit    *credit.Tracker
	watermark *committer.Watermark
	inflight  *drain.Group
	throttle  *throttle
	onDone    func()
	errCh     chan<- error

	ignore atomic.Pointer[map[string]struct{}]
	state  atomic.Int32
	halted atomic.Pointer[error]

	backlogMu sync.Mutex
	backlog   []kafka.ConsumerRecord
	wake      chan struct{}

	mu       sync.Mutex
	pool     *lane.Pool
	gateOpen bool
	held     []*task.Task
	stopping bool

	target   atomic.Int64
	resizeCh chan struct{}

	// laneCtx is handed to user logic and cancelled only when a stop gives up
	// on the drain
	laneCtx    context.Context
	laneCancel context.CancelFunc
	ctrlCtx    context.Context
	ctrlCancel context.CancelFunc
	stopCh     chan struct{}
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

func newPartitionProcessor(
	tp kafka.TopicPartition,
	proc processor.Processor,
	fetch fetchController,
	groupID string,
	settings processorSettings,
	cfg Config,
	onDone func(),
	errCh chan<- error,
) (*partitionProcessor, error) {
	if proc == nil {
		return nil, errors.New("processor is nil")
	}
	if settings.concurrency < 1 {
		return nil, fmt.Errorf("partition concurrency must be positive, got %d", settings.concurrency)
	}
	if settings.maxPending < 1 {
		return nil, fmt.Errorf("max pending records must be positive, got %d", settings.maxPending)
	}

	router := cfg.Router
	if router == nil {
		router = lane.NewHashRouter()
	}
	handler := cfg.ErrorHandler
	if handler == nil {
		handler = errorhandler.SilentContinue()
	}

	p := &partitionProcessor{
		tp:              tp,
		proc:            proc,
		fetch:           fetch,
		handler:         handler,
		producer:        cfg.Producer,
		router:          router,
		telemetry:       cfg.Telemetry,
		attrs:           lanesotel.PartitionAttributes(tp.Topic, tp.Partition),
		groupID:         groupID,
		shutdownTimeout: cfg.ShutdownTimeout,
		resizeTimeout:   cfg.ResizeTimeout,
		credit:          credit.NewTracker(settings.maxPending),
		watermark:       committer.NewWatermark(),
		inflight:        drain.NewGroup(),
		throttle:        newThrottle(settings.rate),
		onDone:          onDone,
		errCh:           errCh,
		wake:            make(chan struct{}, 1),
		resizeCh:        make(chan struct{}, 1),
		stopCh:          make(chan struct{}),
		logger: cfg.Logger.With(
			"component", "partition-processor",
			"topic", tp.Topic,
			"partition", tp.Partition,
		),
	}
	p.setIgnoreKeys(settings.ignoreKeys)
	p.target.Store(int64(settings.concurrency))

	return p, nil
}

func (p *partitionProcessor) State() ProcessorState {
	return ProcessorState(p.state.Load())
}

func (p *partitionProcessor) setState(s ProcessorState) {
	p.state.Store(int32(s))
}

// Start builds the initial lane pool and starts the admission and control
// goroutines.
func (p *partitionProcessor) Start() {
	p.setState(StateStarting)

	p.laneCtx, p.laneCancel = context.WithCancel(context.Background())
	p.ctrlCtx, p.ctrlCancel = context.WithCancel(context.Background())

	size := int(p.target.Load())
	p.mu.Lock()
	p.pool = p.newPool(size)
	p.gateOpen = true
	p.mu.Unlock()

	p.wg.Add(2)
	go p.admitLoop()
	go p.controlLoop()

	p.setState(StateRunning)
	p.telemetry.ProcessorsActive.Add(context.Background(), 1, metric.WithAttributes(p.attrs...))
	p.logger.Debug("Partition processor started", "lanes", size, "max_pending", p.credit.Capacity())
}

func (p *partitionProcessor) newPool(size int) *lane.Pool {
	pool := lane.NewPool(size, p.router, p.execute, p.logger)
	p.telemetry.LanesActive.Add(context.Background(), int64(size), metric.WithAttributes(p.attrs...))
	return pool
}

// Enqueue hands fetched records to the processor. It never blocks.
func (p *partitionProcessor) Enqueue(records ...kafka.ConsumerRecord) {
	if len(records) == 0 {
		return
	}

	select {
	case <-p.stopCh:
		return
	default:
	}

	p.backlogMu.Lock()
	p.backlog = append(p.backlog, records...)
	p.backlogMu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *partitionProcessor) peek() (kafka.ConsumerRecord, bool) {
	p.backlogMu.Lock()
	defer p.backlogMu.Unlock()

	if len(p.backlog) == 0 {
		return kafka.ConsumerRecord{}, false
	}
	return p.backlog[0], true
}

func (p *partitionProcessor) pop() {
	p.backlogMu.Lock()
	defer p.backlogMu.Unlock()

	p.backlog[0] = kafka.ConsumerRecord{}
	p.backlog = p.backlog[1:]
}

func (p *partitionProcessor) backlogLen() int {
	p.backlogMu.Lock()
	defer p.backlogMu.Unlock()
	return len(p.backlog)
}

// admitLoop moves records from the backlog through the credit tracker. A
// refusal pauses fetching until a completion frees credit; fetching resumes
// once the backlog is empty.
func (p *partitionProcessor) admitLoop() {
	defer p.wg.Done()

	fetchPaused := false
	pause := func() {
		if !fetchPaused {
			p.fetch.PausePartitions(p.tp)
			fetchPaused = true
			p.logger.Debug("Paused fetching, credit exhausted", "outstanding", p.credit.Outstanding())
		}
	}

	for {
		if p.halted.Load() != nil {
			pause()
			<-p.stopCh
			return
		}

		rec, ok := p.peek()
		if !ok {
			if fetchPaused {
				p.fetch.ResumePartitions(p.tp)
				fetchPaused = false
				p.logger.Debug("Resumed fetching")
			}

			select {
			case <-p.stopCh:
				return
			case <-p.wake:
			}
			continue
		}

		if p.ignored(rec.Key) {
			p.pop()
			p.skip(rec)
			continue
		}

		if !p.credit.TryAdmit() {
			pause()
			select {
			case <-p.stopCh:
				return
			case <-p.credit.Resumed():
			}
			continue
		}

		p.pop()
		p.admit(rec)
	}
}

func (p *partitionProcessor) skip(rec kafka.ConsumerRecord) {
	if p.watermark.Track(rec.Offset) {
		p.watermark.Complete(rec.Offset)
	}
	p.onDone()

	p.telemetry.RecordsCompleted.Add(
		context.Background(), 1,
		metric.WithAttributes(append(p.attrs, lanesotel.AttrProcessStatus.String(lanesotel.StatusIgnored))...),
	)
	p.logger.Debug("Ignored record", "offset", rec.Offset, "key", string(rec.Key))
}

func (p *partitionProcessor) admit(rec kafka.ConsumerRecord) {
	if !p.watermark.Track(rec.Offset) {
		// redelivered or out of order offset; the earlier copy owns it
		p.credit.Release()
		p.logger.Warn("Dropping record with non-increasing offset", "offset", rec.Offset)
		return
	}

	p.telemetry.CreditOutstanding.Add(context.Background(), 1, metric.WithAttributes(p.attrs...))
	t := task.New(rec, p.finish)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.gateOpen {
		p.held = append(p.held, t)
		return
	}
	p.deliverLocked(t)
}

func (p *partitionProcessor) deliverLocked(t *task.Task) {
	p.inflight.Add(1)

	id, err := p.pool.Submit(t)
	if err != nil {
		// finish releases the credit and the drain slot
		t.Abandon()
		p.halt(fmt.Errorf("route offset %d: %w", t.Offset(), err))
		return
	}
	if id < 0 {
		p.inflight.Done()
	}
}

// finish runs once per delivered task, on the goroutine that ended it.
func (p *partitionProcessor) finish(t *task.Task, completed bool) {
	if completed {
		p.watermark.Complete(t.Offset())
		p.onDone()
	}
	p.credit.Release()
	p.inflight.Done()
	p.telemetry.CreditOutstanding.Add(context.Background(), -1, metric.WithAttributes(p.attrs...))
}

func (p *partitionProcessor) setIgnoreKeys(keys []string) {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	p.ignore.Store(&set)
}

func (p *partitionProcessor) ignored(key []byte) bool {
	set := *p.ignore.Load()
	if len(set) == 0 {
		return false
	}
	_, ok := set[string(key)]
	return ok
}

// SetConcurrency requests a lane pool of n lanes. Requests made while a
// resize is in progress are coalesced; the latest wins.
func (p *partitionProcessor) SetConcurrency(n int) {
	if n < 1 {
		return
	}
	p.target.Store(int64(n))

	select {
	case p.resizeCh <- struct{}{}:
	default:
	}
}

func (p *partitionProcessor) SetMaxPending(n int) {
	if n < 1 {
		return
	}
	p.credit.Resize(n)
}

func (p *partitionProcessor) SetProcessingRate(perSec int64) {
	p.throttle.Set(perSec)
}

func (p *partitionProcessor) SetIgnoreKeys(keys []string) {
	p.setIgnoreKeys(keys)
}

func (p *partitionProcessor) controlLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case <-p.resizeCh:
			p.resize(int(p.target.Load()))
		}
	}
}

// resize closes the routing gate, waits for every delivered task to finish,
// swaps in a pool of size lanes and reopens the gate. No key is ever owned by
// lanes of two pools at once.
func (p *partitionProcessor) resize(size int) {
	if p.halted.Load() != nil {
		p.logger.Warn("Ignoring concurrency change on halted partition", "lanes", size)
		return
	}

	p.mu.Lock()
	if p.stopping || p.pool.Size() == size {
		p.mu.Unlock()
		return
	}
	from := p.pool.Size()
	p.gateOpen = false
	p.setState(StateResizing)
	p.mu.Unlock()

	p.logger.Info("Resizing lanes", "from", from, "to", size)
	start := time.Now()

	ctx, cancel := context.WithTimeout(p.ctrlCtx, p.resizeTimeout)
	err := p.inflight.Wait(ctx)
	cancel()

	if err != nil {
		if p.ctrlCtx.Err() != nil {
			// stopping; Stop takes over the drain
			return
		}

		p.setState(StateRunning)
		p.halt(
			fmt.Errorf("resize %d to %d lanes after %s: %w", from, size, p.resizeTimeout, ErrDrainTimeout),
		)
		p.telemetry.Resizes.Add(
			context.Background(), 1,
			metric.WithAttributes(append(p.attrs, lanesotel.AttrResizeStatus.String(lanesotel.StatusTimeout))...),
		)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopping {
		return
	}

	old := p.pool
	old.Close()
	_ = old.Wait(context.Background())
	p.telemetry.LanesActive.Add(context.Background(), -int64(old.Size()), metric.WithAttributes(p.attrs...))

	p.pool = p.newPool(size)
	p.gateOpen = true

	held := p.held
	p.held = nil
	for _, t := range held {
		p.deliverLocked(t)
	}

	p.setState(StateRunning)
	p.telemetry.Resizes.Add(
		context.Background(), 1,
		metric.WithAttributes(append(p.attrs, lanesotel.AttrResizeStatus.String(lanesotel.StatusSuccess))...),
	)
	p.logger.Info("Resized lanes", "from", from, "to", size, "held", len(held), "took", time.Since(start))
}

// halt stops admission for good and reports err. The first error wins.
func (p *partitionProcessor) halt(err error) {
	if !p.halted.CompareAndSwap(nil, &err) {
		return
	}

	p.logger.Error("Partition halted", "error", err)
	emitError(p.errCh, p.logger, &PartitionError{Partition: p.tp, Err: err})

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Halted returns the error that halted the partition, if any.
func (p *partitionProcessor) Halted() error {
	if err := p.halted.Load(); err != nil {
		return *err
	}
	return nil
}

// execute runs on a lane goroutine.
func (p *partitionProcessor) execute(t *task.Task) {
	ctx := p.laneCtx
	if err := p.throttle.Wait(ctx); err != nil {
		// stop gave up on the drain, the task is abandoned
		return
	}

	rec := t.Record
	headers := rec.Headers
	ctx = p.telemetry.Propagator.Extract(ctx, lanesotel.NewHeadersCarrier(&headers))
	ctx, span := p.telemetry.Tracer.Start(
		ctx, rec.Topic+" process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(p.attrs...),
		trace.WithAttributes(
			lanesotel.AttrMessagingOperation.String("process"),
			lanesotel.AttrConsumerGroup.String(p.groupID),
			lanesotel.AttrMessageOffset.Int64(rec.Offset),
			lanesotel.AttrLane.Int(t.Lane),
		),
	)
	defer span.End()

	start := time.Now()
	status := p.run(ctx, t, span)

	span.SetAttributes(lanesotel.AttrProcessStatus.String(status))
	statusAttrs := metric.WithAttributes(append(p.attrs, lanesotel.AttrProcessStatus.String(status))...)
	p.telemetry.ProcessDuration.Record(ctx, time.Since(start).Seconds(), statusAttrs)
	p.telemetry.RecordsCompleted.Add(ctx, 1, statusAttrs)
}

// run processes t until it succeeds or the error handler settles it, and
// returns the outcome status.
func (p *partitionProcessor) run(ctx context.Context, t *task.Task, span trace.Span) string {
	rec := t.Record
	ec := errorhandler.NewErrorContext(rec, nil).WithLane(t.Lane)

	for {
		span.SetAttributes(lanesotel.AttrAttempt.Int(ec.Attempt))

		err := p.invoke(ctx, processor.NewContext(t, ec.Attempt), rec.Value)
		if err == nil {
			if !t.Deferred() {
				t.Complete()
			}
			return lanesotel.StatusSuccess
		}

		// a completion handed out by the failed attempt must not finish the
		// task while the error handler or a retry still owns it
		t.ClearDeferred()
		if t.Completed() {
			p.logger.Debug("Ignoring error from attempt that already completed", "offset", rec.Offset, "error", err)
			return lanesotel.StatusSuccess
		}

		err = task.NewProcessError(err, rec.Offset, t.Lane)
		ec = ec.WithError(err)
		span.RecordError(err)
		p.telemetry.Errors.Add(
			ctx, 1,
			metric.WithAttributes(append(p.attrs, lanesotel.AttrErrorKind.String(ec.Kind.String()))...),
		)

		action := p.handler.Handle(ctx, ec)
		p.telemetry.ErrorHandlerActions.Add(
			ctx, 1,
			metric.WithAttributes(append(p.attrs, lanesotel.AttrErrorAction.String(action.Type().String()))...),
		)

		switch action.Type() {
		case errorhandler.ActionTypeRetry:
			ec = ec.IncrementAttempt()
			if ec.Attempt%10 == 0 {
				p.logger.Warn(
					"Record seen high number of retry attempts, "+
						"consider sending to DLQ or allowing error handler to skip.",
					"attempt", ec.Attempt, "key", string(rec.Key), "offset", rec.Offset,
				)
			}
			continue

		case errorhandler.ActionTypeContinue:
			p.logger.Debug("Skipping failed record", "offset", rec.Offset)
			t.Complete()
			return lanesotel.StatusSkipped

		case errorhandler.ActionTypeSendToDLQ:
			a, ok := action.(errorhandler.ActionSendToDLQ)
			if !ok {
				return p.fail(t, span, errors.New("invalid action type, expected ActionSendToDLQ"))
			}
			if err := p.sendToDLQ(ctx, rec, ec, a.Topic()); err != nil {
				return p.fail(t, span, fmt.Errorf("send offset %d to dead-letter topic %s: %w", rec.Offset, a.Topic(), err))
			}
			t.Complete()
			return lanesotel.StatusDLQ

		case errorhandler.ActionTypeFail:
			if ctx.Err() != nil {
				t.Abandon()
				return lanesotel.StatusFailed
			}
			return p.fail(t, span, fmt.Errorf("offset %d: %w", rec.Offset, err))

		default:
			return p.fail(t, span, fmt.Errorf("unknown error handler action %s: %w", action.Type(), err))
		}
	}
}

func (p *partitionProcessor) fail(t *task.Task, span trace.Span, err error) string {
	span.SetStatus(codes.Error, err.Error())
	t.Abandon()
	p.halt(err)
	return lanesotel.StatusFailed
}

func (p *partitionProcessor) invoke(ctx context.Context, pc processor.Context, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &task.PanicError{Value: r}
		}
	}()
	return p.proc.Process(ctx, pc, payload)
}

func (p *partitionProcessor) sendToDLQ(
	ctx context.Context, rec kafka.ConsumerRecord, ec errorhandler.ErrorContext, topic string,
) error {
	if p.producer == nil {
		return errors.New("no producer configured")
	}

	headers := dlqHeaders(rec, ec)
	p.telemetry.Propagator.Inject(ctx, lanesotel.NewHeadersCarrier(&headers))

	if err := sendToDLQ(ctx, p.producer, rec, headers, topic); err != nil {
		return err
	}

	p.telemetry.RecordsProduced.Add(ctx, 1, metric.WithAttributes(lanesotel.AttrDestinationName.String(topic)))
	p.logger.Warn("Sent record to dead-letter topic", "offset", rec.Offset, "dlq", topic, "error", ec.Error)
	return nil
}

// Stop closes admission, drains delivered tasks for up to the shutdown
// timeout and abandons whatever is left. It returns the final watermark;
// completions after Stop never move it.
func (p *partitionProcessor) Stop() (int64, bool) {
	p.stopOnce.Do(p.stop)
	return p.watermark.Watermark()
}

func (p *partitionProcessor) stop() {
	p.setState(StateStopping)

	p.mu.Lock()
	p.stopping = true
	p.mu.Unlock()

	close(p.stopCh)
	p.ctrlCancel()
	p.wg.Wait()

	p.mu.Lock()
	p.gateOpen = false
	pool := p.pool
	held := len(p.held)
	p.held = nil
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.shutdownTimeout)
	err := p.inflight.Wait(ctx)
	cancel()

	p.watermark.Close()

	if err != nil {
		dropped := pool.Abort()
		p.laneCancel()
		p.logger.Warn(
			"Drain timed out, abandoning remaining tasks",
			"timeout", p.shutdownTimeout,
			"in_flight", p.inflight.Len(),
			"dropped", len(dropped),
			"held", held,
		)
	} else {
		pool.Close()
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	if err := pool.Wait(waitCtx); err != nil {
		p.logger.Warn("Lanes still busy after stop, leaving them behind", "error", err)
	}
	waitCancel()
	p.laneCancel()

	p.telemetry.LanesActive.Add(context.Background(), -int64(pool.Size()), metric.WithAttributes(p.attrs...))
	p.telemetry.ProcessorsActive.Add(context.Background(), -1, metric.WithAttributes(p.attrs...))
	p.setState(StateStopped)

	mark, ok := p.watermark.Watermark()
	p.logger.Debug("Partition processor stopped", "watermark", mark, "has_watermark", ok)
}

// Watermark returns the highest contiguously completed offset.
func (p *partitionProcessor) Watermark() (int64, bool) {
	return p.watermark.Watermark()
}

func (p *partitionProcessor) Stats() ProcessorStats {
	p.mu.Lock()
	lanes := p.pool.Size()
	depths := p.pool.QueueDepths()
	held := len(p.held)
	p.mu.Unlock()

	mark, ok := p.watermark.Watermark()
	return ProcessorStats{
		State:        p.State(),
		Lanes:        lanes,
		QueueDepths:  depths,
		Outstanding:  p.credit.Outstanding(),
		Capacity:     p.credit.Capacity(),
		Backlog:      p.backlogLen(),
		Held:         held,
		Watermark:    mark,
		HasWatermark: ok,
		Halted:       p.Halted(),
	}
}
