package filter

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var defaultCatalogue []byte

var (
	// ErrUnknownFilter is returned when a requested filter name has no template.
	ErrUnknownFilter = errors.New("unknown filter")
	// ErrUnknownEntity is returned when the registry has no filters for an entity.
	ErrUnknownEntity = errors.New("no filters registered for entity")
)

type catalogueEntry struct {
	Name    string `yaml:"name"`
	Type    Type   `yaml:"type"`
	Options `yaml:",inline"`
}

type catalogue struct {
	Types    map[Type]Options            `yaml:"types"`
	Entities map[string][]catalogueEntry `yaml:"entities"`
}

// Registry resolves named filters against a static catalogue of templates.
type Registry struct {
	types    map[Type]Options
	entities map[string][]catalogueEntry
}

// NewRegistry loads the built-in catalogue.
func NewRegistry() (*Registry, error) {
	return LoadRegistry(defaultCatalogue)
}

// LoadRegistry parses a YAML catalogue.
func LoadRegistry(data []byte) (*Registry, error) {
	var cat catalogue
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse filter catalogue: %w", err)
	}

	for entity, entries := range cat.Entities {
		seen := make(map[string]struct{}, len(entries))
		for _, entry := range entries {
			if strings.TrimSpace(entry.Name) == "" {
				return nil, fmt.Errorf("filter catalogue for %s contains an unnamed filter", entity)
			}
			if _, dup := seen[entry.Name]; dup {
				return nil, fmt.Errorf("filter catalogue for %s declares %s twice", entity, entry.Name)
			}
			seen[entry.Name] = struct{}{}
			switch entry.Type {
			case TypeBoolean, TypeExistence, TypeMultiSelect, TypeNumberRange, TypeDateRange:
			default:
				return nil, fmt.Errorf("filter %s has unsupported type %q", entry.Name, entry.Type)
			}
		}
	}

	return &Registry{types: cat.Types, entities: cat.Entities}, nil
}

// Names lists the filters registered for an entity in catalogue order.
func (r *Registry) Names(entity string) []string {
	entries := r.entities[entity]
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// Create resolves the requested filters for entity. Definitions come back in
// catalogue order with caller overrides applied on top of the type template
// and the entry defaults. Every requested name must exist.
func (r *Registry) Create(entity string, requested map[string]Options) ([]Definition, error) {
	entries, ok := r.entities[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	known := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		known[e.Name] = struct{}{}
	}
	var unknown []string
	for name := range requested {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w for %s: %s", ErrUnknownFilter, entity, strings.Join(unknown, ", "))
	}

	definitions := make([]Definition, 0, len(requested))
	for _, entry := range entries {
		override, ok := requested[entry.Name]
		if !ok {
			continue
		}
		opts := r.types[entry.Type].merge(entry.Options).merge(override)
		if opts.Property == "" {
			return nil, fmt.Errorf("filter %s for %s has no property", entry.Name, entity)
		}
		definitions = append(definitions, Definition{Name: entry.Name, Type: entry.Type, Options: opts})
	}
	return definitions, nil
}

// CreateNamed resolves names without overrides.
func (r *Registry) CreateNamed(entity string, names ...string) ([]Definition, error) {
	requested := make(map[string]Options, len(names))
	for _, name := range names {
		requested[name] = Options{}
	}
	return r.Create(entity, requested)
}
