package runner

import (
	"context"
	"strconv"
	"time"

	"github.com/hugolhafner/go-lanes/errorhandler"
	"github.com/hugolhafner/go-lanes/kafka"
	"github.com/hugolhafner/go-lanes/logger"
)

// emitError emits an error to the provided channel without blocking
func emitError(errCh chan<- error, l logger.Logger, err error) {
	select {
	case errCh <- err:
	default:
		l.Error("Error channel full, dropping error", "error", err)
	}
}

// dlqHeaders copies the record headers and appends what is known about the
// failure.
func dlqHeaders(record kafka.ConsumerRecord, ec errorhandler.ErrorContext) []kafka.Header {
	headers := make([]kafka.Header, len(record.Headers), len(record.Headers)+8)
	for i, h := range record.Headers {
		headers[i] = kafka.Header{Key: h.Key, Value: append([]byte(nil), h.Value...)}
	}

	headers = append(
		headers,
		kafka.Header{Key: "x-original-topic", Value: []byte(record.Topic)},
		kafka.Header{Key: "x-original-partition", Value: []byte(strconv.FormatInt(int64(record.Partition), 10))},
		kafka.Header{Key: "x-original-offset", Value: []byte(strconv.FormatInt(record.Offset, 10))},
		kafka.Header{Key: "x-error-timestamp", Value: []byte(time.Now().Format(time.RFC3339))},
		kafka.Header{Key: "x-error-attempt", Value: []byte(strconv.Itoa(ec.Attempt))},
		kafka.Header{Key: "x-error-kind", Value: []byte(ec.Kind.String())},
		kafka.Header{Key: "x-error-lane", Value: []byte(strconv.Itoa(ec.Lane))},
	)

	if ec.Error != nil {
		headers = append(headers, kafka.Header{Key: "x-error-message", Value: []byte(ec.Error.Error())})
	}

	return headers
}

func sendToDLQ(
	ctx context.Context, producer kafka.Producer, record kafka.ConsumerRecord, headers []kafka.Header, topic string,
) error {
	key := append([]byte(nil), record.Key...)
	value := append([]byte(nil), record.Value...)
	return producer.Send(ctx, topic, key, value, headers)
}
