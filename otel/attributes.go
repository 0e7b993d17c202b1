package otel

import (
	"strconv"

	"go.opentelemetry.io/otel/attribute"
)

const (
	AttrMessagingSystem    = attribute.Key("messaging.system")
	AttrMessagingOperation = attribute.Key("messaging.operation.type")
	AttrDestinationName    = attribute.Key("messaging.destination.name")
	AttrPartitionID        = attribute.Key("messaging.destination.partition.id")
	AttrConsumerGroup      = attribute.Key("messaging.consumer.group.name")
	AttrMessageOffset      = attribute.Key("messaging.kafka.offset")
	AttrBatchCount         = attribute.Key("messaging.batch.message_count")

	AttrLane          = attribute.Key("lanes.lane")
	AttrAttempt       = attribute.Key("lanes.attempt")
	AttrProcessStatus = attribute.Key("lanes.process.status")
	AttrPollStatus    = attribute.Key("lanes.poll.status")
	AttrErrorAction   = attribute.Key("lanes.error.action")
	AttrErrorKind     = attribute.Key("lanes.error.kind")
	AttrResizeStatus  = attribute.Key("lanes.resize.status")
	AttrCommitStatus  = attribute.Key("lanes.commit.status")
)

const SystemKafka = "kafka"

// Process status values
const (
	StatusSuccess = "success"
	StatusIgnored = "ignored"
	StatusDLQ     = "dlq"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// PartitionAttributes identifies a topic partition on metrics and spans.
func PartitionAttributes(topic string, partition int32) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrMessagingSystem.String(SystemKafka),
		AttrDestinationName.String(topic),
		AttrPartitionID.String(strconv.FormatInt(int64(partition), 10)),
	}
}
