package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/secretorange/awsboot/internal/boot"
)

const (
	baseFileName = "appsettings"
	fileExt      = ".yaml"

	// SourceParameterStore names the layer built from the boot bundle's parameters.
	SourceParameterStore = "parameter-store"
)

// Layer is a named set of flattened settings.
type Layer struct {
	Name   string
	Values map[string]string
}

// Store holds the merged view of all layers. Keys use boot.KeyDelimiter as the
// section separator and are matched case-insensitively. A Store is immutable
// once built and safe for concurrent reads.
type Store struct {
	environment string
	entries     map[string]entry
}

type entry struct {
	key    string
	value  string
	source string
}

// New merges layers ordered from weakest to strongest.
func New(environment string, layers ...Layer) *Store {
	s := &Store{
		environment: environment,
		entries:     make(map[string]entry),
	}
	for _, layer := range layers {
		for key, value := range layer.Values {
			s.entries[normalizeKey(key)] = entry{key: key, value: value, source: layer.Name}
		}
	}
	return s
}

// Load reads appsettings.yaml and appsettings.<environment>.yaml from dir, both
// optional, and applies the bundle's parameters on top of them.
func Load(dir string, bundle boot.Bundle) (*Store, error) {
	var layers []Layer

	if dir != "" {
		for _, name := range []string{
			baseFileName + fileExt,
			baseFileName + "." + bundle.Environment + fileExt,
		} {
			layer, ok, err := loadFile(filepath.Join(dir, name))
			if err != nil {
				return nil, err
			}
			if ok {
				layers = append(layers, layer)
			}
		}
	}

	layers = append(layers, Layer{Name: SourceParameterStore, Values: bundle.Parameters})
	return New(bundle.Environment, layers...), nil
}

// Environment returns the environment the store was built for.
func (s *Store) Environment() string {
	return s.environment
}

// Get returns the value for key.
func (s *Store) Get(key string) (string, bool) {
	e, ok := s.entries[normalizeKey(key)]
	return e.value, ok
}

// String returns the value for key or def when absent.
func (s *Store) String(key, def string) string {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// Int returns the value for key parsed as an integer.
func (s *Store) Int(key string, def int) (int, error) {
	v, ok := s.Get(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("setting %s: %w", key, err)
	}
	return n, nil
}

// Bool returns the value for key parsed as a boolean.
func (s *Store) Bool(key string, def bool) (bool, error) {
	v, ok := s.Get(key)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("setting %s: %w", key, err)
	}
	return b, nil
}

// Duration returns the value for key parsed as a duration. Bare integers are
// read as seconds.
func (s *Store) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := s.Get(key)
	if !ok {
		return def, nil
	}
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("setting %s: %w", key, err)
	}
	return d, nil
}

// Source returns the name of the layer that supplied key.
func (s *Store) Source(key string) (string, bool) {
	e, ok := s.entries[normalizeKey(key)]
	return e.source, ok
}

// Keys returns every key in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		keys = append(keys, e.key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys.
func (s *Store) Len() int {
	return len(s.entries)
}

func loadFile(path string) (Layer, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Layer{}, false, nil
	}
	if err != nil {
		return Layer{}, false, fmt.Errorf("read %s: %w", path, err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Layer{}, false, fmt.Errorf("parse %s: %w", path, err)
	}

	values := make(map[string]string)
	flatten("", doc, values)
	return Layer{Name: filepath.Base(path), Values: values}, true, nil
}

// flatten walks a decoded YAML document, joining mapping keys and sequence
// indexes with boot.KeyDelimiter.
func flatten(prefix string, node any, out map[string]string) {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			flatten(join(prefix, k), child, out)
		}
	case map[any]any:
		for k, child := range v {
			flatten(join(prefix, fmt.Sprint(k)), child, out)
		}
	case []any:
		for i, child := range v {
			flatten(join(prefix, strconv.Itoa(i)), child, out)
		}
	case nil:
		if prefix != "" {
			out[prefix] = ""
		}
	default:
		if prefix != "" {
			out[prefix] = fmt.Sprint(v)
		}
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + boot.KeyDelimiter + key
}

func normalizeKey(key string) string {
	return strings.ToLower(key)
}
