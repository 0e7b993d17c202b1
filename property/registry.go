package property

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownProperty   = errors.New("unknown property")
	ErrDuplicateProperty = errors.New("property already registered")
	ErrTypeMismatch      = errors.New("property type mismatch")
)

// Registry is a named set of properties. It is the contract configuration
// sources use to push values, and the one processors use to subscribe.
type Registry struct {
	mu    sync.RWMutex
	props map[string]Property
}

func NewRegistry(props ...Property) (*Registry, error) {
	r := &Registry{props: make(map[string]Property)}
	if err := r.Register(props...); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) Register(props ...Property) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range props {
		if _, exists := r.props[p.Name()]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateProperty, p.Name())
		}
		r.props[p.Name()] = p
	}
	return nil
}

func (r *Registry) Lookup(name string) (Property, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.props[name]
	return p, ok
}

// Names returns the registered property names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.props))
	for name := range r.props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetValue pushes an untyped value into the named property.
func (r *Registry) SetValue(name string, v any) error {
	p, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	return p.SetValue(v)
}

// Get returns the typed property registered under name.
func Get[T any](r *Registry, name string) (*DynamicProperty[T], error) {
	p, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}

	typed, ok := p.(*DynamicProperty[T])
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T", ErrTypeMismatch, name, p.Value())
	}
	return typed, nil
}

// Subscribe registers onChange on the named property.
func Subscribe[T any](r *Registry, name string, onChange Listener[T]) (cancel func(), err error) {
	p, err := Get[T](r, name)
	if err != nil {
		return nil, err
	}
	return p.Listen(onChange), nil
}
