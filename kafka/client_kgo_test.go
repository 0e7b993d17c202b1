//go:build unit

package kafka

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kmsg"
)

func TestCommitResponseError(t *testing.T) {
	t.Parallel()

	resp := kmsg.NewPtrOffsetCommitResponse()
	topic := kmsg.NewOffsetCommitResponseTopic()
	topic.Topic = "input"

	ok := kmsg.NewOffsetCommitResponseTopicPartition()
	ok.Partition = 0

	failed := kmsg.NewOffsetCommitResponseTopicPartition()
	failed.Partition = 1
	failed.ErrorCode = kerr.RebalanceInProgress.Code

	topic.Partitions = append(topic.Partitions, ok, failed)
	resp.Topics = append(resp.Topics, topic)

	err := commitResponseError(resp)
	require.Error(t, err)
	require.ErrorIs(t, err, kerr.RebalanceInProgress)
	require.Contains(t, err.Error(), "input-1")

	require.NoError(t, commitResponseError(nil))
}

func TestTopicPartitionMapping(t *testing.T) {
	t.Parallel()

	tps := []TopicPartition{
		{Topic: "a", Partition: 0},
		{Topic: "a", Partition: 2},
		{Topic: "b", Partition: 1},
	}

	m := topicPartitionsToMap(tps)
	require.Equal(t, map[string][]int32{"a": {0, 2}, "b": {1}}, m)
	require.ElementsMatch(t, tps, mapToTopicPartitions(m))
}

func TestConsumerRecord_CopyIsDeep(t *testing.T) {
	t.Parallel()

	rec := ConsumerRecord{
		Key:     []byte("k"),
		Value:   []byte("v"),
		Headers: []Header{{Key: "h", Value: []byte("x")}},
	}
	cp := rec.Copy()
	cp.Key[0] = 'z'
	cp.Headers[0].Value[0] = 'y'

	require.Equal(t, "k", string(rec.Key))
	require.Equal(t, "x", string(rec.Headers[0].Value))
	require.Equal(t, 4, rec.Size())
}
