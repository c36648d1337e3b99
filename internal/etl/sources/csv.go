package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/smpawlowski/covid19/internal/etl"
)

// Config fields shared by the CSV-producing sources.
var csvConfigFields = []etl.ConfigField{
	{Key: "delimiter", Label: "Delimiter", Required: false, Default: ",", Help: "Column delimiter (default: comma)"},
	{Key: "hasHeader", Label: "Has Header", Required: false, Options: []string{"true", "false"}, Default: "true", Help: "Whether the first row contains column names"},
}

// newCSVReader configures an encoding/csv reader from source config.
func newCSVReader(r io.Reader, cfg etl.SourceConfig) *csv.Reader {
	reader := csv.NewReader(r)
	if delim := cfg.String("delimiter", ","); len(delim) > 0 {
		reader.Comma = rune(delim[0])
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true
	return reader
}

func hasHeader(cfg etl.SourceConfig) bool {
	return strings.ToLower(cfg.String("hasHeader", "true")) != "false"
}

// readCSVHeader returns the column names. Without a header row the names
// are col_1, col_2, ... and the first record is returned for replay.
func readCSVHeader(reader *csv.Reader, cfg etl.SourceConfig) (headers, first []string, err error) {
	row, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("empty csv")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	row = append([]string(nil), row...)
	if hasHeader(cfg) {
		for i, h := range row {
			row[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		}
		return row, nil, nil
	}
	headers = make([]string, len(row))
	for i := range headers {
		headers[i] = fmt.Sprintf("col_%d", i+1)
	}
	return headers, row, nil
}

func csvSchema(headers []string) *etl.Schema {
	schema := &etl.Schema{Fields: make([]etl.Field, len(headers))}
	for i, h := range headers {
		schema.Fields[i] = etl.Field{Name: h, Type: etl.TypeText}
	}
	return schema
}

// openCSVSnapshot reads the header of rc and streams the remaining rows in
// the background. rc is closed when the stream ends, or at once on error.
func openCSVSnapshot(ctx context.Context, rc io.ReadCloser, cfg etl.SourceConfig) (*etl.Schema, <-chan etl.Record, <-chan error, error) {
	reader := newCSVReader(rc, cfg)
	headers, first, err := readCSVHeader(reader, cfg)
	if err != nil {
		rc.Close()
		return nil, nil, nil, err
	}

	out := make(chan etl.Record, 100)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		defer rc.Close()
		if err := streamCSVRows(ctx, reader, headers, first, out); err != nil {
			errCh <- err
		}
	}()
	return csvSchema(headers), out, errCh, nil
}

// streamCSVRows sends the rows after the header as records. Cancellation
// stops the stream without an error.
func streamCSVRows(ctx context.Context, reader *csv.Reader, headers, first []string, out chan<- etl.Record) error {
	emit := func(row []string) bool {
		data := make(map[string]any, len(headers))
		for j, h := range headers {
			if j < len(row) {
				data[h] = csvCell(row[j])
			} else {
				data[h] = nil
			}
		}
		select {
		case out <- etl.Record{Data: data}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if first != nil && !emit(first) {
		return nil
	}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parse csv line %d: %w", line, err)
		}
		if !emit(row) {
			return nil
		}
	}
}

// failedRead reports err on an otherwise empty stream.
func failedRead(err error) (<-chan etl.Record, <-chan error) {
	out := make(chan etl.Record)
	errCh := make(chan error, 1)
	close(out)
	errCh <- err
	close(errCh)
	return out, errCh
}

// csvCell keeps the cell text as is; empty cells become nil. Numbers are
// parsed by the consumer, so codes like "01" survive.
func csvCell(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
