package etl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(kv ...any) Record {
	data := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		data[kv[i].(string)] = kv[i+1]
	}
	return Record{Data: data}
}

func TestFilterTransform(t *testing.T) {
	tests := []struct {
		op    string
		value any
		in    any
		keep  bool
	}{
		{"eq", "ZH", "ZH", true},
		{"neq", "ZH", "ZH", false},
		{"contains", "Zur", "Zurich", true},
		{"gt", 0.0, 1.0, true},
		{"gt", 0.0, 0.0, false},
		{"gte", "-1", -1.0, true},
		{"lt", 5, 4.0, true},
		{"lte", 5, 6.0, false},
		{"gt", 0.0, "n/a", false},
	}
	for _, tt := range tests {
		f := &FilterTransform{Field: "v", Op: tt.op, Value: tt.value}
		_, keep := f.Transform(rec("v", tt.in))
		assert.Equal(t, tt.keep, keep, "%s %v %v", tt.op, tt.value, tt.in)
	}

	_, keep := (&FilterTransform{Field: "missing", Op: "eq", Value: 1}).Transform(rec("v", 1.0))
	assert.False(t, keep)
}

func TestRenameTransform_Swap(t *testing.T) {
	r := &RenameTransform{Mapping: map[string]string{"a": "b", "b": "a"}}
	out, keep := r.Transform(rec("a", 1.0, "b", 2.0, "c", 3.0))
	require.True(t, keep)
	assert.Equal(t, map[string]any{"a": 2.0, "b": 1.0, "c": 3.0}, out.Data)
}

func TestSchemaPropagation(t *testing.T) {
	src := &Schema{Fields: []Field{
		{Name: "date", Type: TypeText},
		{Name: "abbreviation_canton_and_fl", Type: TypeText},
		{Name: "ncumul_conf", Type: TypeText},
		{Name: "source", Type: TypeText},
	}}
	chain := []Transformer{
		&RenameTransform{Mapping: map[string]string{"abbreviation_canton_and_fl": "region", "ncumul_conf": "CONFIRMED"}},
		&SelectTransform{Fields: []string{"date", "region", "CONFIRMED", "absent"}},
		&TypeCastTransform{Field: "CONFIRMED", CastType: "number"},
		&FilterTransform{Field: "region", Op: "neq", Value: "FL"},
	}

	out := ApplySchemaTransformers(src, chain)
	assert.Equal(t, []string{"date", "region", "CONFIRMED"}, out.FieldNames())
	assert.Equal(t, TypeNumber, out.Fields[2].Type)
	// source schema untouched
	assert.Equal(t, "abbreviation_canton_and_fl", src.Fields[1].Name)
}

func TestTypeCastTransform(t *testing.T) {
	c := &TypeCastTransform{Field: "n", CastType: "number"}
	out, _ := c.Transform(rec("n", "12"))
	assert.Equal(t, 12.0, out.Data["n"])

	out, _ = c.Transform(rec("n", "twelve"))
	assert.Nil(t, out.Data["n"])

	out, _ = c.Transform(rec("n", nil))
	assert.Nil(t, out.Data["n"])
}

func TestDedupeTransform(t *testing.T) {
	d := NewDedupeTransform("date", "region")
	_, k1 := d.Transform(rec("date", "2020-03-01", "region", "ZH"))
	_, k2 := d.Transform(rec("date", "2020-03-01", "region", "BE"))
	_, k3 := d.Transform(rec("date", "2020-03-01", "region", "ZH"))
	assert.True(t, k1)
	assert.True(t, k2)
	assert.False(t, k3)
}

func TestBuildTransformers(t *testing.T) {
	ts, err := BuildTransformers([]TransformConfig{
		{Type: "rename", Config: map[string]any{"mapping": map[string]any{"a": "b"}}},
		{Type: "select", Config: map[string]any{"fields": []any{"b"}}},
		{Type: "filter", Config: map[string]any{"field": "b", "op": "gt", "value": 0}},
		{Type: "type_cast", Config: map[string]any{"field": "b", "castType": "number"}},
		{Type: "dedupe", Config: map[string]any{"keys": []any{"b"}}},
	})
	require.NoError(t, err)
	assert.Len(t, ts, 5)

	_, err = BuildTransformers([]TransformConfig{{Type: "compute"}})
	assert.Error(t, err)

	_, err = BuildTransformers([]TransformConfig{{Type: "filter", Config: map[string]any{"field": "x"}}})
	assert.Error(t, err)
}

func TestFieldsNotIn(t *testing.T) {
	s := &Schema{Fields: []Field{{Name: "a"}}}
	extra := fieldsNotIn(s, []Record{rec("a", 1, "z", 2), rec("b", 3)})
	assert.Equal(t, []string{"b", "z"}, extra)
}

func TestTargetTableName(t *testing.T) {
	assert.Equal(t, "global_summary", Target{Dataset: "global", Table: "summary"}.TableName())
	assert.Equal(t, "ch_cantons_v2", Target{Dataset: "ch", Table: "cantons-v2"}.TableName())
}
