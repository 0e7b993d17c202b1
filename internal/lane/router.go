// Package lane runs tasks on a fixed set of ordered execution lanes.
package lane

import (
	"github.com/cespare/xxhash/v2"
)

// Router maps a record key onto one of lanes lanes. Implementations must be
// deterministic for a given key and lane count.
type Router interface {
	Route(key []byte, lanes int) int
}

// HashRouter routes by xxhash of the key. Nil and empty keys hash to the same
// value and therefore share a lane.
type HashRouter struct{}

func NewHashRouter() HashRouter {
	return HashRouter{}
}

func (HashRouter) Route(key []byte, lanes int) int {
	if lanes <= 1 {
		return 0
	}
	return int(xxhash.Sum64(key) % uint64(lanes))
}

// RouterFunc adapts a function to Router
type RouterFunc func(key []byte, lanes int) int

func (f RouterFunc) Route(key []byte, lanes int) int {
	return f(key, lanes)
}
