package etl

import "slices"

// ── Record ─────────────────────────────────────────────────
// Common intermediate data format.
// All sources emit Records, all destinations consume Records.

// Field types.
const (
	TypeText     = "text"
	TypeNumber   = "number"
	TypeBoolean  = "boolean"
	TypeDatetime = "datetime"
)

// Field describes a single column in a dataset.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"` // "text" | "number" | "boolean" | "datetime"
}

// Schema describes the shape of records coming from a source. Field order is
// the column order of the source.
type Schema struct {
	Fields []Field `json:"fields"`
}

// FieldNames returns an ordered list of field names.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of a field, or -1.
func (s *Schema) Index(name string) int {
	return slices.IndexFunc(s.Fields, func(f Field) bool { return f.Name == name })
}

// Has reports whether the schema has a field.
func (s *Schema) Has(name string) bool { return s.Index(name) >= 0 }

// Clone returns a deep copy.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return &Schema{}
	}
	return &Schema{Fields: slices.Clone(s.Fields)}
}

// Record is a single row of data flowing through the pipeline.
// A nil value is an empty cell.
type Record struct {
	Data map[string]any `json:"data"`
}

// Batch is the materialized output of an extraction.
type Batch struct {
	Schema   *Schema
	Records  []Record
	RowsRead int
}

// Values returns the record values in schema order.
func (b *Batch) Values(r Record) []any {
	out := make([]any, len(b.Schema.Fields))
	for i, f := range b.Schema.Fields {
		out[i] = r.Data[f.Name]
	}
	return out
}
