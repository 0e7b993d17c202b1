//go:build unit

package mockkafka_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hugolhafner/go-lanes/kafka"
	mockkafka "github.com/hugolhafner/go-lanes/kafka/mock"
	"github.com/stretchr/testify/require"
)

type recordingCallback struct {
	mu       sync.Mutex
	assigned []kafka.TopicPartition
	revoked  []kafka.TopicPartition
}

func (r *recordingCallback) OnAssigned(_ context.Context, tps []kafka.TopicPartition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assigned = append(r.assigned, tps...)
}

func (r *recordingCallback) OnRevoked(_ context.Context, tps []kafka.TopicPartition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = append(r.revoked, tps...)
}

func TestMockClient_SubscribeAssignsPartitionsWithRecords(t *testing.T) {
	client := mockkafka.NewClient()
	client.AddRecords("input", 0, mockkafka.SimpleRecord("k", "v"))
	client.AddRecords("input", 1, mockkafka.SimpleRecord("k", "v"))
	client.AddRecords("other", 0, mockkafka.SimpleRecord("k", "v"))

	cb := &recordingCallback{}
	require.NoError(t, client.Subscribe([]string{"input"}, cb))

	require.ElementsMatch(
		t, []kafka.TopicPartition{{Topic: "input", Partition: 0}, {Topic: "input", Partition: 1}}, cb.assigned,
	)
}

func TestMockClient_AutoOffsets(t *testing.T) {
	client := mockkafka.NewClient(mockkafka.WithMaxPollRecords(100))
	client.AddRecords("input", 0, mockkafka.KeyedRecords("k", 3)...)
	client.AddRecords("input", 0, mockkafka.Record("gap", "v").WithOffset(10).Build())
	client.AddRecords("input", 0, mockkafka.SimpleRecord("after", "v"))

	require.NoError(t, client.Subscribe([]string{"input"}, nil))

	records, err := client.Poll(context.Background())
	require.NoError(t, err)

	offsets := make([]int64, 0, len(records))
	for _, r := range records {
		offsets = append(offsets, r.Offset)
	}
	require.Equal(t, []int64{0, 1, 2, 10, 11}, offsets)
}

func TestMockClient_PauseSkipsPartition(t *testing.T) {
	tp := kafka.TopicPartition{Topic: "input", Partition: 0}
	client := mockkafka.NewClient()
	client.AddRecords("input", 0, mockkafka.KeyedRecords("k", 3)...)
	require.NoError(t, client.Subscribe([]string{"input"}, nil))

	client.PausePartitions(tp)
	client.AssertPaused(t, tp)

	records, err := client.Poll(context.Background())
	require.NoError(t, err)
	require.Empty(t, records)

	client.ResumePartitions(tp)
	records, err = client.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
}

func TestMockClient_CommitAndRestart(t *testing.T) {
	tp := kafka.TopicPartition{Topic: "input", Partition: 0}
	client := mockkafka.NewClient(mockkafka.WithMaxPollRecords(100))
	client.AddRecords("input", 0, mockkafka.KeyedRecords("k", 10)...)
	require.NoError(t, client.Subscribe([]string{"input"}, nil))

	records, err := client.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 10)

	require.NoError(
		t, client.CommitOffsets(context.Background(), map[kafka.TopicPartition]kafka.Offset{tp: {Offset: 4}}),
	)
	client.AssertCommittedOffset(t, tp, 4)
	require.Equal(t, 1, client.CommitCount())

	client.RestartFromCommitted()
	require.NoError(t, client.Subscribe([]string{"input"}, nil))

	records, err = client.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 6)
	require.Equal(t, int64(4), records[0].Offset)
}

func TestMockClient_CommitError(t *testing.T) {
	tp := kafka.TopicPartition{Topic: "input", Partition: 0}
	commitErr := errors.New("broker unavailable")
	client := mockkafka.NewClient(mockkafka.WithCommitError(commitErr))

	err := client.CommitOffsets(context.Background(), map[kafka.TopicPartition]kafka.Offset{tp: {Offset: 1}})
	require.ErrorIs(t, err, commitErr)
	client.AssertNotCommitted(t, tp)
}

func TestMockClient_TriggerRevokeRewinds(t *testing.T) {
	tp := kafka.TopicPartition{Topic: "input", Partition: 0}
	client := mockkafka.NewClient(mockkafka.WithMaxPollRecords(100))
	client.AddRecords("input", 0, mockkafka.KeyedRecords("k", 5)...)

	cb := &recordingCallback{}
	require.NoError(t, client.Subscribe([]string{"input"}, cb))

	_, err := client.Poll(context.Background())
	require.NoError(t, err)
	client.SetCommitted(tp, 2)

	client.TriggerRevoke([]kafka.TopicPartition{tp})
	require.Equal(t, []kafka.TopicPartition{tp}, cb.revoked)
	require.Empty(t, client.AssignedPartitions())
	require.Equal(t, 2, client.Position(tp))
}

func TestMockClient_SendCopiesHeaders(t *testing.T) {
	client := mockkafka.NewClient()
	headers := []kafka.Header{{Key: "h", Value: []byte("v")}}

	require.NoError(t, client.Send(context.Background(), "dlq", []byte("k"), []byte("v"), headers))
	headers[0].Value[0] = 'x'

	client.AssertProducedCountForTopic(t, "dlq", 1)
	client.AssertHeader(t, "dlq", []byte("k"), "h", []byte("v"))
}
