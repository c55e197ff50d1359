package configpipeline

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// Snapshot is an immutable merged configuration. Share it by pointer; never
// modify it.
type Snapshot struct {
	version uint64
	values  map[string]string
}

func NewSnapshot(version uint64, values map[string]string) *Snapshot {
	return &Snapshot{
		version: version,
		values:  maps.Clone(values),
	}
}

func (s *Snapshot) Version() uint64 {
	return s.version
}

func (s *Snapshot) Get(key string) (string, bool) {
	value, ok := s.values[key]
	return value, ok
}

// String returns the value for key or def when it is absent.
func (s *Snapshot) String(key, def string) string {
	if value, ok := s.values[key]; ok {
		return value
	}
	return def
}

func (s *Snapshot) Int(key string) (int, error) {
	value, ok := s.values[key]
	if !ok {
		return 0, fmt.Errorf("config key %s not set", key)
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config key %s: %q is not an integer", key, value)
	}
	return n, nil
}

func (s *Snapshot) Keys() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// Map returns a copy of the values.
func (s *Snapshot) Map() map[string]string {
	return maps.Clone(s.values)
}

// Equal compares values only; versions are ignored.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return maps.Equal(s.values, other.values)
}

// ChangeEvent announces a new snapshot. It is passed by value and never
// modified after creation.
type ChangeEvent struct {
	PreviousVersion uint64
	Configuration   *Snapshot
}

// Merge overlays layers in order; later layers win per key.
func Merge(layers ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, layer := range layers {
		maps.Copy(merged, layer)
	}
	return merged
}
