package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/hugolhafner/go-lanes/logger"
	"github.com/hugolhafner/go-lanes/property"
	"gopkg.in/yaml.v3"
)

// FileSupplier feeds the properties section of a YAML file into a property
// registry. Values that fail validation leave the previous value in place.
type FileSupplier struct {
	path     string
	registry *property.Registry
	logger   logger.Logger

	mu sync.Mutex
}

func NewFileSupplier(path string, registry *property.Registry, l logger.Logger) *FileSupplier {
	if l == nil {
		l = logger.NewNoopLogger()
	}

	return &FileSupplier{
		path:     path,
		registry: registry,
		logger:   l.With("component", "property-supplier", "path", path),
	}
}

// Reload re-reads the file and applies every property it names. The returned
// error joins one error per rejected property; accepted ones still apply.
func (s *FileSupplier) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var doc struct {
		Properties map[string]any `yaml:"properties"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	s.logger.Info("Reloading properties", "count", len(doc.Properties))
	return Apply(s.registry, doc.Properties, s.logger)
}

// Apply sets every value of props on the registry in name order.
func Apply(registry *property.Registry, props map[string]any, l logger.Logger) error {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := registry.SetValue(name, props[name]); err != nil {
			l.Warn("Property not applied", "property", name, "value", props[name], "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
