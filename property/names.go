package property

import (
	"github.com/hugolhafner/go-lanes/logger"
)

const (
	// PartitionConcurrency is the number of lanes per partition.
	PartitionConcurrency = "partition_concurrency"
	// MaxPendingRecords bounds records admitted but not yet completed, per partition.
	MaxPendingRecords = "max_pending_records"
	// ProcessingRate limits records per second per partition. -1 is unlimited,
	// 0 pauses processing.
	ProcessingRate = "processing_rate_per_partition"
	// IgnoreKeys lists record keys that are completed without processing.
	IgnoreKeys = "ignore_keys"
)

const (
	DefaultPartitionConcurrency = 1
	DefaultMaxPendingRecords    = 10000
	RateUnlimited               = int64(-1)
	RatePaused                  = int64(0)
)

// Processing groups the properties consumed by the processing engine.
type Processing struct {
	Concurrency    *DynamicProperty[int]
	MaxPending     *DynamicProperty[int]
	ProcessingRate *DynamicProperty[int64]
	IgnoreKeys     *DynamicProperty[[]string]
}

// NewProcessing creates the engine properties with their defaults.
func NewProcessing(l logger.Logger) *Processing {
	if l == nil {
		l = logger.NewNoopLogger()
	}

	return &Processing{
		Concurrency: New(
			PartitionConcurrency, DefaultPartitionConcurrency,
			WithValidator(Positive[int]()), WithLogger[int](l),
		),
		MaxPending: New(
			MaxPendingRecords, DefaultMaxPendingRecords,
			WithValidator(Positive[int]()), WithLogger[int](l),
		),
		ProcessingRate: New(
			ProcessingRate, RateUnlimited,
			WithValidator(AtLeast(RateUnlimited)), WithLogger[int64](l),
		),
		IgnoreKeys: New[[]string](IgnoreKeys, nil, WithLogger[[]string](l)),
	}
}

// Registry returns a registry holding every engine property.
func (p *Processing) Registry() *Registry {
	r, _ := NewRegistry(p.Concurrency, p.MaxPending, p.ProcessingRate, p.IgnoreKeys)
	return r
}
