package errorhandler

import (
	"github.com/hugolhafner/go-lanes/kafka"
)

// ErrorContext carries what a handler needs to decide about a failed record.
type ErrorContext struct {
	// Record is a private copy of the failed record
	Record kafka.ConsumerRecord

	Error error

	// Attempt is the 1-indexed attempt that produced Error
	Attempt int

	// Lane is the lane the record ran on
	Lane int

	Kind ErrorKind
}

func NewErrorContext(record kafka.ConsumerRecord, err error) ErrorContext {
	return ErrorContext{
		Record:  record.Copy(),
		Error:   err,
		Attempt: 1,
		Kind:    Classify(err),
	}
}

// WithError replaces the error and reclassifies it.
func (ec ErrorContext) WithError(err error) ErrorContext {
	ec.Error = err
	ec.Kind = Classify(err)
	return ec
}

func (ec ErrorContext) WithAttempt(attempt int) ErrorContext {
	ec.Attempt = attempt
	return ec
}

func (ec ErrorContext) WithLane(lane int) ErrorContext {
	ec.Lane = lane
	return ec
}

func (ec ErrorContext) IncrementAttempt() ErrorContext {
	ec.Attempt++
	return ec
}
