package etl

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ── Transformer ────────────────────────────────────────────
// Transformers modify records in-flight between source and decoder.
// They are composable: each takes a record, returns a (possibly modified)
// record and a boolean indicating whether to keep it.
//
// Pattern: Benthos processor chain.

// Transformer processes a single record.
// Returns (transformed record, keep). If keep is false, the record is dropped.
type Transformer interface {
	Transform(Record) (Record, bool)
}

// SchemaTransformer is implemented by transformers that change columns.
// The engine uses it to keep the output schema in source column order.
type SchemaTransformer interface {
	TransformSchema(*Schema) *Schema
}

// TransformerFunc adapts a plain function to the Transformer interface.
type TransformerFunc func(Record) (Record, bool)

func (f TransformerFunc) Transform(r Record) (Record, bool) { return f(r) }

// ── Built-in Transforms ────────────────────────────────────

// FilterTransform drops records where the given field does not match the value.
type FilterTransform struct {
	Field string
	Op    string // "eq" | "neq" | "gt" | "gte" | "lt" | "lte" | "contains"
	Value any
}

func (t *FilterTransform) Transform(r Record) (Record, bool) {
	v, ok := r.Data[t.Field]
	if !ok {
		return r, false
	}
	switch t.Op {
	case "eq":
		return r, fmt.Sprint(v) == fmt.Sprint(t.Value)
	case "neq":
		return r, fmt.Sprint(v) != fmt.Sprint(t.Value)
	case "contains":
		return r, strings.Contains(fmt.Sprint(v), fmt.Sprint(t.Value))
	}

	a, aOk := toFloatSafe(v)
	b, bOk := toFloatSafe(t.Value)
	if !aOk || !bOk {
		return r, false
	}
	switch t.Op {
	case "gt":
		return r, a > b
	case "gte":
		return r, a >= b
	case "lt":
		return r, a < b
	case "lte":
		return r, a <= b
	default:
		return r, true
	}
}

// RenameTransform renames fields in a record.
type RenameTransform struct {
	Mapping map[string]string // oldName → newName
}

func (t *RenameTransform) Transform(r Record) (Record, bool) {
	moved := make(map[string]any, len(t.Mapping))
	for old, renamed := range t.Mapping {
		if v, ok := r.Data[old]; ok {
			moved[renamed] = v
			delete(r.Data, old)
		}
	}
	for k, v := range moved {
		r.Data[k] = v
	}
	return r, true
}

func (t *RenameTransform) TransformSchema(s *Schema) *Schema {
	out := s.Clone()
	for i, f := range out.Fields {
		if renamed, ok := t.Mapping[f.Name]; ok {
			out.Fields[i].Name = renamed
		}
	}
	return out
}

// SelectTransform keeps only the specified fields.
type SelectTransform struct {
	Fields []string
}

func (t *SelectTransform) Transform(r Record) (Record, bool) {
	filtered := make(map[string]any, len(t.Fields))
	for _, f := range t.Fields {
		if v, ok := r.Data[f]; ok {
			filtered[f] = v
		}
	}
	r.Data = filtered
	return r, true
}

func (t *SelectTransform) TransformSchema(s *Schema) *Schema {
	out := &Schema{}
	for _, name := range t.Fields {
		if i := s.Index(name); i >= 0 {
			out.Fields = append(out.Fields, s.Fields[i])
		}
	}
	return out
}

// DedupeTransform drops records whose key fields repeat an earlier record.
type DedupeTransform struct {
	Keys []string
	seen map[string]bool
}

func NewDedupeTransform(keys ...string) *DedupeTransform {
	return &DedupeTransform{Keys: keys, seen: make(map[string]bool)}
}

func (t *DedupeTransform) Transform(r Record) (Record, bool) {
	parts := make([]string, len(t.Keys))
	for i, k := range t.Keys {
		parts[i] = fmt.Sprint(r.Data[k])
	}
	v := strings.Join(parts, "\x1f")
	if t.seen[v] {
		return r, false
	}
	t.seen[v] = true
	return r, true
}

// TypeCastTransform converts a field's value to a target type.
// Nil values stay nil.
type TypeCastTransform struct {
	Field    string
	CastType string // "number" | "string" | "bool"
}

func (t *TypeCastTransform) Transform(r Record) (Record, bool) {
	v, ok := r.Data[t.Field]
	if !ok || v == nil {
		return r, true
	}
	switch t.CastType {
	case "number":
		if f, ok := toFloatSafe(v); ok {
			r.Data[t.Field] = f
		} else {
			r.Data[t.Field] = nil
		}
	case "string":
		r.Data[t.Field] = fmt.Sprint(v)
	case "bool":
		r.Data[t.Field] = toBool(v)
	}
	return r, true
}

func (t *TypeCastTransform) TransformSchema(s *Schema) *Schema {
	out := s.Clone()
	if i := out.Index(t.Field); i >= 0 {
		switch t.CastType {
		case "number":
			out.Fields[i].Type = TypeNumber
		case "string":
			out.Fields[i].Type = TypeText
		case "bool":
			out.Fields[i].Type = TypeBoolean
		}
	}
	return out
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		lower := strings.ToLower(b)
		return lower == "true" || lower == "yes" || lower == "1"
	case float64:
		return b != 0
	case int:
		return b != 0
	default:
		return false
	}
}

func toFloatSafe(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ── Helpers ────────────────────────────────────────────────

// ApplyTransformers runs a chain of transformers on a record.
func ApplyTransformers(r Record, ts []Transformer) (Record, bool) {
	for _, t := range ts {
		var keep bool
		r, keep = t.Transform(r)
		if !keep {
			return r, false
		}
	}
	return r, true
}

// ApplySchemaTransformers threads a schema through every column-changing
// transformer of the chain.
func ApplySchemaTransformers(s *Schema, ts []Transformer) *Schema {
	out := s.Clone()
	for _, t := range ts {
		if st, ok := t.(SchemaTransformer); ok {
			out = st.TransformSchema(out)
		}
	}
	return out
}

// fieldsNotIn returns the record keys missing from the schema, sorted.
func fieldsNotIn(s *Schema, records []Record) []string {
	known := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		known[f.Name] = true
	}
	var extra []string
	for _, r := range records {
		for k := range r.Data {
			if !known[k] {
				known[k] = true
				extra = append(extra, k)
			}
		}
	}
	slices.Sort(extra)
	return extra
}
