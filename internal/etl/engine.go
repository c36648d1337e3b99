package etl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ── Extract Job ────────────────────────────────────────────
// Orchestrates: source.Discover → source.Read (or one ReadSnapshot pass) → transform chain → Batch.

// Job describes one extraction: a source plus a transform chain.
type Job struct {
	Name       string            `yaml:"name,omitempty" json:"name,omitempty"`
	SourceType string            `yaml:"type" json:"type"`
	SourceCfg  SourceConfig      `yaml:"config" json:"config"`
	Transforms []TransformConfig `yaml:"transforms,omitempty" json:"transforms,omitempty"`
}

// TransformConfig is a declarative transform definition.
type TransformConfig struct {
	Type   string         `yaml:"type" json:"type"` // "filter" | "rename" | "select" | "type_cast" | "dedupe"
	Config map[string]any `yaml:"config" json:"config"`
}

// ── Engine ─────────────────────────────────────────────────

// Engine runs extraction jobs against the registered sources.
type Engine struct {
	Logger *zap.Logger
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Extract executes a job end-to-end and returns the transformed records.
// The batch schema follows the source column order; keys that appear only
// in records are appended in name order.
func (e *Engine) Extract(ctx context.Context, job *Job) (*Batch, error) {
	start := time.Now()
	log := e.logger().With(zap.String("job", job.Name), zap.String("source", job.SourceType))

	source, err := GetSource(job.SourceType)
	if err != nil {
		return nil, err
	}
	transformers, err := BuildTransformers(job.Transforms)
	if err != nil {
		return nil, err
	}

	var (
		schema *Schema
		recCh  <-chan Record
		errCh  <-chan error
	)
	if snap, ok := source.(SnapshotSource); ok {
		if schema, recCh, errCh, err = snap.ReadSnapshot(ctx, job.SourceCfg); err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
	} else {
		if schema, err = source.Discover(ctx, job.SourceCfg); err != nil {
			return nil, fmt.Errorf("discover: %w", err)
		}
		recCh, errCh = source.Read(ctx, job.SourceCfg)
	}

	batch := &Batch{}
	for rec := range recCh {
		batch.RowsRead++
		transformed, keep := ApplyTransformers(rec, transformers)
		if keep {
			batch.Records = append(batch.Records, transformed)
		}
	}
	if err := <-errCh; err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch.Schema = ApplySchemaTransformers(schema, transformers)
	if extra := fieldsNotIn(batch.Schema, batch.Records); len(extra) > 0 {
		log.Warn("records carry columns missing from the discovered schema", zap.Strings("columns", extra))
		for _, name := range extra {
			batch.Schema.Fields = append(batch.Schema.Fields, Field{Name: name, Type: TypeText})
		}
	}

	log.Debug("extracted",
		zap.Int("rows_read", batch.RowsRead),
		zap.Int("rows_kept", len(batch.Records)),
		zap.Int("columns", len(batch.Schema.Fields)),
		zap.Duration("took", time.Since(start)),
	)
	return batch, nil
}

// BuildTransformers converts declarative TransformConfig into Transformer instances.
func BuildTransformers(configs []TransformConfig) ([]Transformer, error) {
	var ts []Transformer

	for i, tc := range configs {
		switch tc.Type {
		case "filter":
			field, _ := tc.Config["field"].(string)
			op, _ := tc.Config["op"].(string)
			if field == "" || op == "" {
				return nil, fmt.Errorf("transform %d: filter needs field and op", i)
			}
			ts = append(ts, &FilterTransform{Field: field, Op: op, Value: tc.Config["value"]})

		case "rename":
			mapping, ok := tc.Config["mapping"].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("transform %d: rename needs a mapping", i)
			}
			m := make(map[string]string, len(mapping))
			for k, v := range mapping {
				m[k] = fmt.Sprint(v)
			}
			ts = append(ts, &RenameTransform{Mapping: m})

		case "select":
			fields := stringList(tc.Config["fields"])
			if len(fields) == 0 {
				return nil, fmt.Errorf("transform %d: select needs fields", i)
			}
			ts = append(ts, &SelectTransform{Fields: fields})

		case "type_cast":
			field, _ := tc.Config["field"].(string)
			castType, _ := tc.Config["castType"].(string)
			if field == "" || castType == "" {
				return nil, fmt.Errorf("transform %d: type_cast needs field and castType", i)
			}
			ts = append(ts, &TypeCastTransform{Field: field, CastType: castType})

		case "dedupe":
			keys := stringList(tc.Config["keys"])
			if len(keys) == 0 {
				return nil, fmt.Errorf("transform %d: dedupe needs keys", i)
			}
			ts = append(ts, NewDedupeTransform(keys...))

		default:
			return nil, fmt.Errorf("transform %d: unknown type %q", i, tc.Type)
		}
	}
	return ts, nil
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, f := range l {
			out = append(out, fmt.Sprint(f))
		}
		return out
	default:
		return nil
	}
}
