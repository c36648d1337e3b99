package etl

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/smpawlowski/covid19/internal/blob"
	"github.com/smpawlowski/covid19/internal/dbclient"
)

// ── Destination ────────────────────────────────────────────
// A Destination publishes output tables into a target system.
//
// Pattern: Singer target protocol.

// SyncMode determines how records are written to the destination.
type SyncMode string

const (
	SyncReplace SyncMode = "replace" // drop existing rows, insert fresh
	SyncAppend  SyncMode = "append"  // add rows without deleting existing
)

// Target names one output table of one dataset.
type Target struct {
	Dataset string
	Table   string
}

// TableName flattens the target into a single identifier: dataset_table,
// with anything outside [A-Za-z0-9_] replaced by an underscore.
func (t Target) TableName() string {
	return sanitizeIdent(t.Dataset + "_" + t.Table)
}

func sanitizeIdent(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '_'
	}, s)
}

// Destination writes records to a target system.
type Destination interface {
	Name() string
	Write(ctx context.Context, target Target, schema *Schema, records []Record, mode SyncMode) (int, error)
}

// ── Database Destination ───────────────────────────────────
// Writes records into a SQL table or Mongo collection through dbclient.

// ConnectorDestination implements Destination over a dbclient.Connector.
type ConnectorDestination struct {
	Label string
	Conn  dbclient.Connector
}

func (d *ConnectorDestination) Name() string { return d.Label }

func (d *ConnectorDestination) Write(ctx context.Context, target Target, schema *Schema, records []Record, mode SyncMode) (int, error) {
	cols := make([]dbclient.Column, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = dbclient.Column{Name: f.Name, Type: columnType(f.Type)}
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(schema.Fields))
		for j, f := range schema.Fields {
			row[j] = dbValue(rec.Data[f.Name], cols[j].Type)
		}
		rows[i] = row
	}

	wm := dbclient.WriteReplace
	if mode == SyncAppend {
		wm = dbclient.WriteAppend
	}
	n, err := d.Conn.WriteTable(ctx, target.TableName(), cols, rows, wm)
	if err != nil {
		return n, fmt.Errorf("%s: %w", d.Label, err)
	}
	return n, nil
}

func columnType(t string) dbclient.ColumnType {
	if t == TypeNumber {
		return dbclient.ColumnNumber
	}
	return dbclient.ColumnText
}

func dbValue(v any, t dbclient.ColumnType) any {
	if v == nil {
		return nil
	}
	if t == dbclient.ColumnNumber {
		if f, ok := toFloatSafe(v); ok {
			return f
		}
		return nil
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// ── Blob Destination ───────────────────────────────────────
// Writes each table as CSV: <prefix><dataset>/<table>.csv.

// BlobDestination implements Destination over a blob.Store.
type BlobDestination struct {
	Store  blob.Store
	Prefix string
}

func (d *BlobDestination) Name() string { return "blob:" + string(d.Store.Driver()) }

// Key returns the object key of a target's CSV file.
func (d *BlobDestination) Key(target Target) string {
	return d.Prefix + target.Dataset + "/" + target.Table + ".csv"
}

// Write stores the table as CSV. Blobs are whole objects, so append mode
// also replaces the object.
func (d *BlobDestination) Write(ctx context.Context, target Target, schema *Schema, records []Record, _ SyncMode) (int, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(schema.FieldNames()); err != nil {
		return 0, err
	}
	row := make([]string, len(schema.Fields))
	for _, rec := range records {
		for j, f := range schema.Fields {
			row[j] = csvCell(rec.Data[f.Name])
		}
		if err := w.Write(row); err != nil {
			return 0, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, err
	}

	if _, err := d.Store.Put(ctx, d.Key(target), &buf, blob.PutOptions{ContentType: "text/csv; charset=utf-8"}); err != nil {
		return 0, fmt.Errorf("%s: %w", d.Name(), err)
	}
	return len(records), nil
}

// WritePage stores a rendered HTML page at <prefix><dataset>.html.
func (d *BlobDestination) WritePage(ctx context.Context, dataset string, page []byte) (string, error) {
	key := d.Prefix + dataset + ".html"
	if _, err := d.Store.Put(ctx, key, bytes.NewReader(page), blob.PutOptions{ContentType: "text/html; charset=utf-8"}); err != nil {
		return "", fmt.Errorf("%s: %w", d.Name(), err)
	}
	return key, nil
}

func csvCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
