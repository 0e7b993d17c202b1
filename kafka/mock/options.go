package mockkafka

import (
	"time"
)

// Option is a functional option for configuring a mock Client.
type Option func(*Client)

// WithMaxPollRecords sets the maximum number of records returned per Poll call.
// Default is 10.
func WithMaxPollRecords(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPollRecords = n
		}
	}
}

// WithPollDelay adds an artificial delay to Poll calls.
func WithPollDelay(d time.Duration) Option {
	return func(c *Client) {
		c.pollDelay = d
	}
}

// WithIdleWait sets how long an empty Poll blocks before returning.
func WithIdleWait(d time.Duration) Option {
	return func(c *Client) {
		c.idleWait = d
	}
}

// WithGroupID sets the value returned by GroupID.
func WithGroupID(id string) Option {
	return func(c *Client) {
		c.groupID = id
	}
}

// WithSendError fails every Send, which makes dead-letter routing fail.
func WithSendError(err error) Option {
	return func(c *Client) {
		c.sendErr = func(string, []byte, []byte) error { return err }
	}
}

// WithPollError fails every Poll.
func WithPollError(err error) Option {
	return func(c *Client) {
		c.pollErr = func() error { return err }
	}
}

// WithCommitError fails every CommitOffsets call, as a broker outage would
// during a periodic or revoke-time commit.
func WithCommitError(err error) Option {
	return func(c *Client) {
		c.commitErr = func() error { return err }
	}
}

// WithPingError makes Ping report an unhealthy broker.
func WithPingError(err error) Option {
	return func(c *Client) {
		c.pingErr = err
	}
}
