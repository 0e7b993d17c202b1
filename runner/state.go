package runner

import (
	"errors"
	"fmt"

	"github.com/hugolhafner/go-lanes/kafka"
)

var (
	// ErrDrainTimeout is reported when in-flight work did not finish within
	// the resize timeout. The partition keeps its old lanes and stops
	// admitting records.
	ErrDrainTimeout     = errors.New("lane drain timed out")
	ErrProcessorStopped = errors.New("partition processor stopped")
	ErrAlreadyRunning   = errors.New("subscription already running")
	ErrClosed           = errors.New("subscription closed")
)

type ProcessorState int32

const (
	StateStopped ProcessorState = iota
	StateStarting
	StateRunning
	StateResizing
	StateStopping
)

func (s ProcessorState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateResizing:
		return "resizing"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// PartitionError is a failure confined to one partition. The partition stops
// admitting records; other partitions are unaffected.
type PartitionError struct {
	Partition kafka.TopicPartition
	Err       error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition %s: %v", e.Partition, e.Err)
}

func (e *PartitionError) Unwrap() error {
	return e.Err
}

// ProcessorStats is a point-in-time view of a partition processor.
type ProcessorStats struct {
	State       ProcessorState
	Lanes       int
	QueueDepths []int
	Outstanding int
	Capacity    int
	// Backlog counts fetched records waiting for credit
	Backlog int
	// Held counts admitted records waiting for the lanes to reopen
	Held         int
	Watermark    int64
	HasWatermark bool
	Halted       error
}
