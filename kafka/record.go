package kafka

import (
	"strconv"
	"time"
)

// Header is one record header. Keys may repeat; dead-letter and trace
// headers are appended rather than replaced.
type Header struct {
	Key   string
	Value []byte
}

// HeaderValue returns the first header named key, or (nil, false).
func HeaderValue(headers []Header, key string) ([]byte, bool) {
	for _, h := range headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return nil, false
}

// ConsumerRecord is one fetched record. The partition processor admits it
// against the credit budget, routes it to a lane by Key and tracks Offset in
// the commit watermark.
type ConsumerRecord struct {
	Key         []byte
	Value       []byte
	Headers     []Header
	Topic       string
	Partition   int32
	Offset      int64
	LeaderEpoch int32
	Timestamp   time.Time
}

func (r ConsumerRecord) TopicPartition() TopicPartition {
	return TopicPartition{
		Topic:     r.Topic,
		Partition: r.Partition,
	}
}

// Copy returns a record that shares no byte slices with r. Error contexts
// hold a copy so a handler cannot observe a reused fetch buffer.
func (r ConsumerRecord) Copy() ConsumerRecord {
	headersCopy := make([]Header, len(r.Headers))
	for i, h := range r.Headers {
		vCopy := make([]byte, len(h.Value))
		copy(vCopy, h.Value)
		headersCopy[i] = Header{Key: h.Key, Value: vCopy}
	}

	keyCopy := make([]byte, len(r.Key))
	copy(keyCopy, r.Key)

	valueCopy := make([]byte, len(r.Value))
	copy(valueCopy, r.Value)

	return ConsumerRecord{
		Key:         keyCopy,
		Value:       valueCopy,
		Headers:     headersCopy,
		Topic:       r.Topic,
		Partition:   r.Partition,
		Offset:      r.Offset,
		LeaderEpoch: r.LeaderEpoch,
		Timestamp:   r.Timestamp,
	}
}

// Size is the byte count of key, value and headers.
func (r ConsumerRecord) Size() int {
	size := len(r.Key) + len(r.Value)
	for _, h := range r.Headers {
		size += len(h.Key) + len(h.Value)
	}
	return size
}

// TopicPartition names a partition. Each assigned one gets its own lane
// pool, credit budget and commit watermark.
type TopicPartition struct {
	Topic     string
	Partition int32
}

func (tp TopicPartition) String() string {
	return tp.Topic + "-" + strconv.FormatInt(int64(tp.Partition), 10)
}

// Offset is a committable position: the next offset to consume
type Offset struct {
	LeaderEpoch int32
	Offset      int64
}
