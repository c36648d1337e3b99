package etl

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ── Source ──────────────────────────────────────────────────
// A Source extracts data from an external system.
// Implementations live in etl/sources/, one file per source type.
//
// Pattern: Airbyte connector protocol (discover → read).

// SourceConfig is an opaque configuration map parsed per source type.
type SourceConfig map[string]any

// String returns a config value as a string, or def when unset.
func (c SourceConfig) String(key, def string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return def
		}
		return s
	}
	return fmt.Sprint(v)
}

// ConfigField describes a single configuration input for a source.
type ConfigField struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
	Default  string   `json:"default,omitempty"`
	Help     string   `json:"help,omitempty"`
}

// SourceSpec describes a source type: its label and config fields.
type SourceSpec struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	ConfigFields []ConfigField `json:"configFields"`
}

// Source is the interface every data source must implement.
type Source interface {
	// Spec returns metadata about this source type.
	Spec() SourceSpec

	// Discover introspects the source and returns its columns in order.
	Discover(ctx context.Context, cfg SourceConfig) (*Schema, error)

	// Read streams records from the source into a channel.
	// The channel is closed when all records have been read or ctx is cancelled.
	// Errors are sent on the error channel (buffered size 1).
	Read(ctx context.Context, cfg SourceConfig) (<-chan Record, <-chan error)
}

// SnapshotSource is a Source that reads its schema and its records in one
// pass. The engine prefers it so both come from the same snapshot.
type SnapshotSource interface {
	Source

	// ReadSnapshot opens the source, returns its columns in order and
	// streams the records like Read. A non-nil error means nothing was
	// started.
	ReadSnapshot(ctx context.Context, cfg SourceConfig) (*Schema, <-chan Record, <-chan error, error)
}

// ── Source Registry ────────────────────────────────────────
// Compile-time registration via init() in each source file.

var (
	registryMu sync.RWMutex
	registry   = map[string]Source{}
)

// RegisterSource registers a source by its spec type.
// Called from init() in each source implementation file.
func RegisterSource(s Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Spec().Type] = s
}

// GetSource returns a registered source by type, or an error if not found.
func GetSource(typ string) (Source, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", typ)
	}
	return s, nil
}

// ListSources returns the specs of all registered sources, sorted by type.
func ListSources() []SourceSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	specs := make([]SourceSpec, 0, len(registry))
	for _, s := range registry {
		specs = append(specs, s.Spec())
	}
	slices.SortFunc(specs, func(a, b SourceSpec) int { return strings.Compare(a.Type, b.Type) })
	return specs
}

// ValidateSourceConfig checks that typ is registered and cfg carries every
// required key and only allowed option values.
func ValidateSourceConfig(typ string, cfg SourceConfig) error {
	src, err := GetSource(typ)
	if err != nil {
		return err
	}
	for _, f := range src.Spec().ConfigFields {
		v := cfg.String(f.Key, "")
		if f.Required && v == "" {
			return fmt.Errorf("%s: %s is required", typ, f.Key)
		}
		if v != "" && len(f.Options) > 0 && !slices.Contains(f.Options, v) {
			return fmt.Errorf("%s: %s must be one of %s", typ, f.Key, strings.Join(f.Options, ", "))
		}
	}
	return nil
}
