package mockkafka

import (
	"bytes"
	"testing"

	"github.com/hugolhafner/go-lanes/kafka"
	"github.com/stretchr/testify/require"
)

// AssertProducedCountForTopic verifies that exactly n records were produced to a topic.
func (c *Client) AssertProducedCountForTopic(tb testing.TB, topic string, expected int) {
	tb.Helper()

	actual := len(c.ProducedRecordsForTopic(topic))
	require.Equal(tb, expected, actual, "expected %d records produced to topic %q, got %d", expected, topic, actual)
}

// AssertHeader verifies that a produced record has a specific header.
func (c *Client) AssertHeader(tb testing.TB, topic string, key []byte, headerKey string, headerValue []byte) {
	tb.Helper()

	for _, r := range c.ProducedRecordsForTopic(topic) {
		if bytes.Equal(r.Key, key) {
			actual, ok := kafka.HeaderValue(r.Headers, headerKey)
			require.True(tb, ok, "record with key=%q missing header %q", string(key), headerKey)
			require.Equal(
				tb, string(headerValue), string(actual), "record with key=%q has unexpected header %q", string(key),
				headerKey,
			)
			return
		}
	}

	tb.Errorf("no record with key=%q found in topic %q", string(key), topic)
}

// AssertCommittedOffset verifies that a specific offset was committed.
func (c *Client) AssertCommittedOffset(tb testing.TB, tp kafka.TopicPartition, expectedOffset int64) {
	tb.Helper()

	actual, ok := c.CommittedOffset(tp)
	require.True(
		tb, ok,
		"expected offset %d to be committed for %s, but none found",
		expectedOffset, tp,
	)

	require.Equal(
		tb, expectedOffset, actual.Offset, "expected offset %d to be committed for %s, got %d", expectedOffset,
		tp, actual.Offset,
	)
}

// AssertNotCommitted verifies that nothing was committed for the partition.
func (c *Client) AssertNotCommitted(tb testing.TB, tp kafka.TopicPartition) {
	tb.Helper()

	actual, ok := c.CommittedOffset(tp)
	require.False(tb, ok, "expected no committed offset for %s, got %d", tp, actual.Offset)
}

// AssertPaused verifies that fetching for the partition is paused.
func (c *Client) AssertPaused(tb testing.TB, tp kafka.TopicPartition) {
	tb.Helper()

	require.True(tb, c.IsPaused(tp), "expected %s to be paused", tp)
}
