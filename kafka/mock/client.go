package mockkafka

import (
	"context"
	"sync"
	"time"

	"github.com/hugolhafner/go-lanes/kafka"
)

var _ kafka.Client = (*Client)(nil)

// ProducedRecord represents a record that was sent via the mock producer.
type ProducedRecord struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers []kafka.Header
}

// Client is an in-memory transport. Partitions are append-only slices of
// records; Poll hands them out round-robin across assigned, unpaused
// partitions.
type Client struct {
	mu sync.RWMutex

	recordQueues   map[kafka.TopicPartition][]kafka.ConsumerRecord
	queuePositions map[kafka.TopicPartition]int

	producedRecords  []ProducedRecord
	committedOffsets map[kafka.TopicPartition]kafka.Offset
	commitCount      int

	subscriptions      []string
	rebalanceCb        kafka.RebalanceCallback
	assignedPartitions []kafka.TopicPartition
	paused             map[kafka.TopicPartition]struct{}

	groupID        string
	maxPollRecords int
	pollDelay      time.Duration
	idleWait       time.Duration

	sendErr   func(topic string, key, value []byte) error
	pollErr   func() error
	commitErr func() error
	pingErr   error

	closed     bool
	subscribed bool
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		recordQueues:     make(map[kafka.TopicPartition][]kafka.ConsumerRecord),
		queuePositions:   make(map[kafka.TopicPartition]int),
		producedRecords:  make([]ProducedRecord, 0),
		committedOffsets: make(map[kafka.TopicPartition]kafka.Offset),
		paused:           make(map[kafka.TopicPartition]struct{}),
		groupID:          "mock-group",
		maxPollRecords:   10,
		idleWait:         5 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Subscribe registers the client to consume from the specified topics.
// Every partition that already has records for a subscribed topic is
// assigned immediately.
func (c *Client) Subscribe(topics []string, rebalanceCb kafka.RebalanceCallback) error {
	c.mu.Lock()

	if c.subscribed {
		c.mu.Unlock()
		return nil
	}

	c.subscriptions = topics
	c.rebalanceCb = rebalanceCb
	c.subscribed = true

	var partitions []kafka.TopicPartition
	for tp := range c.recordQueues {
		for _, topic := range topics {
			if tp.Topic == topic {
				partitions = append(partitions, tp)
				break
			}
		}
	}
	c.assignedPartitions = append(c.assignedPartitions, partitions...)
	c.mu.Unlock()

	if len(partitions) > 0 && rebalanceCb != nil {
		rebalanceCb.OnAssigned(context.Background(), partitions)
	}

	return nil
}

// Poll retrieves records from the assigned, unpaused partitions. When nothing
// is available it blocks briefly, like a real fetch would.
func (c *Client) Poll(ctx context.Context) ([]kafka.ConsumerRecord, error) {
	if c.pollDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollDelay):
		}
	}

	records, err := c.poll()
	if err != nil || len(records) > 0 {
		return records, err
	}

	select {
	case <-ctx.Done():
	case <-time.After(c.idleWait):
	}

	return nil, nil
}

func (c *Client) poll() ([]kafka.ConsumerRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pollErr != nil {
		if err := c.pollErr(); err != nil {
			return nil, err
		}
	}

	var records []kafka.ConsumerRecord
	for len(records) < c.maxPollRecords {
		progressMade := false

		for _, tp := range c.assignedPartitions {
			if _, paused := c.paused[tp]; paused {
				continue
			}

			queue := c.recordQueues[tp]
			pos := c.queuePositions[tp]
			if pos >= len(queue) {
				continue
			}

			records = append(records, queue[pos])
			c.queuePositions[tp]++
			progressMade = true

			if len(records) >= c.maxPollRecords {
				break
			}
		}

		if !progressMade {
			break
		}
	}

	return records, nil
}

// CommitOffsets stores the given offsets as committed.
func (c *Client) CommitOffsets(ctx context.Context, offsets map[kafka.TopicPartition]kafka.Offset) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.commitErr != nil {
		if err := c.commitErr(); err != nil {
			return err
		}
	}

	for tp, offset := range offsets {
		c.committedOffsets[tp] = offset
	}
	c.commitCount++

	return nil
}

func (c *Client) PausePartitions(partitions ...kafka.TopicPartition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, tp := range partitions {
		c.paused[tp] = struct{}{}
	}
}

func (c *Client) ResumePartitions(partitions ...kafka.TopicPartition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, tp := range partitions {
		delete(c.paused, tp)
	}
}

func (c *Client) GroupID() string {
	return c.groupID
}

// Send produces a record to the specified topic.
// The record is stored internally and can be verified using ProducedRecords().
func (c *Client) Send(ctx context.Context, topic string, key, value []byte, headers []kafka.Header) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sendErr != nil {
		if err := c.sendErr(topic, key, value); err != nil {
			return err
		}
	}

	headersCopy := make([]kafka.Header, len(headers))
	for i, h := range headers {
		copied := make([]byte, len(h.Value))
		copy(copied, h.Value)
		headersCopy[i] = kafka.Header{Key: h.Key, Value: copied}
	}

	c.producedRecords = append(
		c.producedRecords, ProducedRecord{
			Topic:   topic,
			Key:     append([]byte(nil), key...),
			Value:   append([]byte(nil), value...),
			Headers: headersCopy,
		},
	)

	return nil
}

// Flush is a no-op for the mock client since Send is synchronous.
func (c *Client) Flush(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (c *Client) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.pingErr
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
}

// AddRecords appends records to a topic-partition. Records without an
// explicit offset get the offset following the last record in the partition.
func (c *Client) AddRecords(topic string, partition int32, records ...kafka.ConsumerRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tp := kafka.TopicPartition{Topic: topic, Partition: partition}
	queue := c.recordQueues[tp]

	next := int64(0)
	if len(queue) > 0 {
		next = queue[len(queue)-1].Offset + 1
	}

	for _, rec := range records {
		rec.Topic = topic
		rec.Partition = partition
		if rec.Offset == 0 {
			rec.Offset = next
		}
		next = rec.Offset + 1
		queue = append(queue, rec)
	}

	c.recordQueues[tp] = queue
}

// RestartFromCommitted rewinds every partition to its committed offset (or
// the beginning when nothing was committed), as a restarted consumer would.
func (c *Client) RestartFromCommitted() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for tp, queue := range c.recordQueues {
		committed, ok := c.committedOffsets[tp]
		pos := 0
		if ok {
			for pos < len(queue) && queue[pos].Offset < committed.Offset {
				pos++
			}
		}
		c.queuePositions[tp] = pos
	}

	c.paused = make(map[kafka.TopicPartition]struct{})
	c.assignedPartitions = nil
	c.rebalanceCb = nil
	c.subscribed = false
	c.closed = false
}

// SetCommitted seeds the committed offset of a partition.
func (c *Client) SetCommitted(tp kafka.TopicPartition, offset int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.committedOffsets[tp] = kafka.Offset{Offset: offset, LeaderEpoch: -1}
}

func (c *Client) SetSendError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.sendErr = nil
	} else {
		c.sendErr = func(string, []byte, []byte) error { return err }
	}
}

func (c *Client) SetPollError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.pollErr = nil
	} else {
		c.pollErr = func() error { return err }
	}
}

func (c *Client) SetPollErrorFunc(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pollErr = fn
}

func (c *Client) SetCommitError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.commitErr = nil
	} else {
		c.commitErr = func() error { return err }
	}
}

func (c *Client) SetCommitErrorFunc(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.commitErr = fn
}

// TriggerAssign simulates a partition assignment event.
func (c *Client) TriggerAssign(partitions []kafka.TopicPartition) {
	c.mu.Lock()
	cb := c.rebalanceCb
	c.assignedPartitions = append(c.assignedPartitions, partitions...)
	c.mu.Unlock()

	if cb != nil {
		cb.OnAssigned(context.Background(), partitions)
	}
}

// TriggerRevoke simulates a partition revocation event. Positions of revoked
// partitions rewind to their committed offsets so a later reassignment sees
// what a new owner would.
func (c *Client) TriggerRevoke(partitions []kafka.TopicPartition) {
	c.mu.Lock()
	cb := c.rebalanceCb
	c.mu.Unlock()

	if cb != nil {
		cb.OnRevoked(context.Background(), partitions)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	revoked := make(map[kafka.TopicPartition]struct{}, len(partitions))
	for _, p := range partitions {
		revoked[p] = struct{}{}
	}

	remaining := make([]kafka.TopicPartition, 0, len(c.assignedPartitions))
	for _, assigned := range c.assignedPartitions {
		if _, ok := revoked[assigned]; !ok {
			remaining = append(remaining, assigned)
		}
	}
	c.assignedPartitions = remaining

	for tp := range revoked {
		queue := c.recordQueues[tp]
		pos := 0
		if committed, ok := c.committedOffsets[tp]; ok {
			for pos < len(queue) && queue[pos].Offset < committed.Offset {
				pos++
			}
		}
		c.queuePositions[tp] = pos
		delete(c.paused, tp)
	}
}

// ProducedRecords returns a copy of all records that have been sent via Send.
func (c *Client) ProducedRecords() []ProducedRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]ProducedRecord, len(c.producedRecords))
	copy(result, c.producedRecords)
	return result
}

// ProducedRecordsForTopic returns all records produced to a specific topic.
func (c *Client) ProducedRecordsForTopic(topic string) []ProducedRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []ProducedRecord
	for _, r := range c.producedRecords {
		if r.Topic == topic {
			result = append(result, r)
		}
	}
	return result
}

// CommittedOffsets returns a copy of all committed offsets.
func (c *Client) CommittedOffsets() map[kafka.TopicPartition]kafka.Offset {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[kafka.TopicPartition]kafka.Offset, len(c.committedOffsets))
	for k, v := range c.committedOffsets {
		result[k] = v
	}
	return result
}

// CommittedOffset returns the committed offset for a specific topic-partition.
func (c *Client) CommittedOffset(tp kafka.TopicPartition) (kafka.Offset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	offset, ok := c.committedOffsets[tp]
	return offset, ok
}

// CommitCount returns how many successful commit calls were made.
func (c *Client) CommitCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.commitCount
}

// IsPaused reports whether fetching is paused for the partition.
func (c *Client) IsPaused(tp kafka.TopicPartition) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.paused[tp]
	return ok
}

// Position returns how many records of the partition have been handed out.
func (c *Client) Position(tp kafka.TopicPartition) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.queuePositions[tp]
}

func (c *Client) Subscriptions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]string, len(c.subscriptions))
	copy(result, c.subscriptions)
	return result
}

func (c *Client) AssignedPartitions() []kafka.TopicPartition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]kafka.TopicPartition, len(c.assignedPartitions))
	copy(result, c.assignedPartitions)
	return result
}

func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.closed
}
