package otel

import (
	"github.com/hugolhafner/go-lanes/kafka"
	"go.opentelemetry.io/otel/propagation"
)

var _ propagation.TextMapCarrier = HeadersCarrier{}

// HeadersCarrier exposes record headers to a propagator. Extraction reads the
// first header with a key; injection replaces the first one and drops the
// rest so a record never carries two trace contexts.
type HeadersCarrier struct {
	headers *[]kafka.Header
}

func NewHeadersCarrier(headers *[]kafka.Header) HeadersCarrier {
	return HeadersCarrier{headers: headers}
}

func (c HeadersCarrier) Get(key string) string {
	if v, ok := kafka.HeaderValue(*c.headers, key); ok {
		return string(v)
	}
	return ""
}

func (c HeadersCarrier) Set(key, value string) {
	out := (*c.headers)[:0]
	replaced := false
	for _, h := range *c.headers {
		if h.Key != key {
			out = append(out, h)
			continue
		}
		if !replaced {
			out = append(out, kafka.Header{Key: key, Value: []byte(value)})
			replaced = true
		}
	}

	if !replaced {
		out = append(out, kafka.Header{Key: key, Value: []byte(value)})
	}
	*c.headers = out
}

func (c HeadersCarrier) Keys() []string {
	seen := make(map[string]struct{}, len(*c.headers))
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		if _, ok := seen[h.Key]; ok {
			continue
		}
		seen[h.Key] = struct{}{}
		keys = append(keys, h.Key)
	}
	return keys
}
