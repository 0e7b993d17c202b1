package property

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hugolhafner/go-lanes/logger"
)

var ErrInvalidValue = errors.New("invalid property value")

// ValidationError is returned by Set when a value is rejected. The previous
// value stays in effect.
type ValidationError struct {
	Property string
	Value    any
	Cause    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("property %s: rejected value %v: %v", e.Property, e.Value, e.Cause)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrInvalidValue, e.Cause}
}

// Listener observes a property change. A returned error is logged and does
// not affect other listeners or the update itself.
type Listener[T any] func(oldValue, newValue T) error

// Validator rejects a candidate value by returning an error.
type Validator[T any] func(v T) error

// Property is the type-erased view of a DynamicProperty used by the Registry.
type Property interface {
	Name() string
	Value() any
	SetValue(v any) error
}

type listenerEntry[T any] struct {
	id uint64
	fn Listener[T]
}

// DynamicProperty holds a single live-tunable value. Reads never block;
// writes are serialised and notify listeners synchronously in registration
// order.
type DynamicProperty[T any] struct {
	name      string
	value     atomic.Pointer[T]
	validator Validator[T]
	logger    logger.Logger

	// setMu serialises Set so listeners observe changes in order
	setMu sync.Mutex

	mu        sync.Mutex
	listeners []listenerEntry[T]
	nextID    uint64
}

type Option[T any] func(*DynamicProperty[T])

func WithValidator[T any](v Validator[T]) Option[T] {
	return func(p *DynamicProperty[T]) {
		p.validator = v
	}
}

func WithLogger[T any](l logger.Logger) Option[T] {
	return func(p *DynamicProperty[T]) {
		p.logger = l
	}
}

func New[T any](name string, defaultValue T, opts ...Option[T]) *DynamicProperty[T] {
	p := &DynamicProperty[T]{
		name:   name,
		logger: logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "property", "property", name)

	v := defaultValue
	p.value.Store(&v)
	return p
}

func (p *DynamicProperty[T]) Name() string {
	return p.name
}

// Get returns the latest value
func (p *DynamicProperty[T]) Get() T {
	return *p.value.Load()
}

func (p *DynamicProperty[T]) Value() any {
	return p.Get()
}

// Set validates and stores v, then notifies every listener with the old and
// new value. Listeners are notified even when v equals the current value.
func (p *DynamicProperty[T]) Set(v T) error {
	if p.validator != nil {
		if err := p.validator(v); err != nil {
			verr := &ValidationError{Property: p.name, Value: v, Cause: err}
			p.logger.Warn("Rejected property value, keeping previous", "value", v, "current", p.Get(), "error", err)
			return verr
		}
	}

	p.setMu.Lock()
	defer p.setMu.Unlock()

	nv := v
	old := p.value.Swap(&nv)

	p.logger.Debug("Property updated", "old", *old, "new", v)
	p.notify(*old, v)
	return nil
}

// SetValue is Set for callers that only hold an untyped value, such as
// configuration suppliers.
func (p *DynamicProperty[T]) SetValue(v any) error {
	typed, err := coerce[T](v)
	if err != nil {
		p.logger.Warn("Rejected property value, keeping previous", "value", v, "error", err)
		return &ValidationError{Property: p.name, Value: v, Cause: err}
	}
	return p.Set(typed)
}

// Listen registers l and returns a function that unregisters it.
func (p *DynamicProperty[T]) Listen(l Listener[T]) (cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	p.listeners = append(p.listeners, listenerEntry[T]{id: id, fn: l})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		for i, e := range p.listeners {
			if e.id == id {
				p.listeners = append(p.listeners[:i:i], p.listeners[i+1:]...)
				return
			}
		}
	}
}

func (p *DynamicProperty[T]) notify(oldValue, newValue T) {
	p.mu.Lock()
	listeners := make([]listenerEntry[T], len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, l := range listeners {
		if err := p.invoke(l.fn, oldValue, newValue); err != nil {
			p.logger.Error("Property listener failed", "listener", l.id, "error", err)
		}
	}
}

func (p *DynamicProperty[T]) invoke(fn Listener[T], oldValue, newValue T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return fn(oldValue, newValue)
}
