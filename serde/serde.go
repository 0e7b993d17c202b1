// Package serde decodes record payloads for typed processors.
package serde

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
)

type Deserialiser[T any] interface {
	Deserialise(topic string, data []byte) (T, error)
}

// DeserialiserFunc adapts a function to Deserialiser
type DeserialiserFunc[T any] func(topic string, data []byte) (T, error)

func (f DeserialiserFunc[T]) Deserialise(topic string, data []byte) (T, error) {
	return f(topic, data)
}

// Error reports a payload that could not be decoded.
type Error struct {
	Topic string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("deserialise payload from %s: %v", e.Topic, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func String() Deserialiser[string] {
	return DeserialiserFunc[string](
		func(_ string, data []byte) (string, error) {
			return string(data), nil
		},
	)
}

// Bytes returns the payload unchanged
func Bytes() Deserialiser[[]byte] {
	return DeserialiserFunc[[]byte](
		func(_ string, data []byte) ([]byte, error) {
			return data, nil
		},
	)
}

func JSON[T any]() Deserialiser[T] {
	return DeserialiserFunc[T](
		func(topic string, data []byte) (T, error) {
			var result T
			if err := json.Unmarshal(data, &result); err != nil {
				return result, &Error{Topic: topic, Cause: err}
			}
			return result, nil
		},
	)
}

// Protobuf decodes into a freshly allocated message of type T, which must be
// a pointer to a generated message.
func Protobuf[T proto.Message]() Deserialiser[T] {
	return DeserialiserFunc[T](
		func(topic string, data []byte) (T, error) {
			var zero T
			msg, ok := zero.ProtoReflect().Type().New().Interface().(T)
			if !ok {
				return zero, &Error{Topic: topic, Cause: fmt.Errorf("cannot allocate %T", zero)}
			}
			if err := proto.Unmarshal(data, msg); err != nil {
				return zero, &Error{Topic: topic, Cause: err}
			}
			return msg, nil
		},
	)
}
