package kafka

import (
	"context"
)

// Client is the transport a subscription runs on. Ping reports whether a
// broker is reachable.
type Client interface {
	Producer
	Consumer

	Ping(ctx context.Context) error
}

// Producer carries dead-letter records. Send must not return until the
// record is acknowledged, because the failed record completes after it.
type Producer interface {
	Send(ctx context.Context, topic string, key, value []byte, headers []Header) error
	Flush(ctx context.Context) error
	Close()
}

// Consumer is the pull side of the transport. Offsets passed to CommitOffsets
// are the next offsets to consume, one per partition.
type Consumer interface {
	Subscribe(topics []string, rebalanceCb RebalanceCallback) error
	Poll(ctx context.Context) ([]ConsumerRecord, error)
	CommitOffsets(ctx context.Context, offsets map[TopicPartition]Offset) error
	PausePartitions(partitions ...TopicPartition)
	ResumePartitions(partitions ...TopicPartition)
	GroupID() string
	Close()
}

// RebalanceCallback is invoked synchronously by the consumer on group
// rebalances. OnRevoked must not return until the revoked partitions have
// committed whatever they are going to commit.
type RebalanceCallback interface {
	OnAssigned(ctx context.Context, partitions []TopicPartition)
	OnRevoked(ctx context.Context, partitions []TopicPartition)
}
