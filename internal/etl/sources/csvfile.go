package sources

import (
	"context"
	"fmt"
	"os"

	"github.com/smpawlowski/covid19/internal/etl"
)

// ── CSV File Source ─────────────────────────────────────────
// Reads records from a local CSV file.

type csvFileSource struct{}

func init() { etl.RegisterSource(&csvFileSource{}) }

func (s *csvFileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "csv_file",
		Label: "CSV File",
		ConfigFields: append([]etl.ConfigField{
			{Key: "filePath", Label: "File Path", Required: true, Help: "Path to the CSV file"},
		}, csvConfigFields...),
	}
}

func openCSVFile(cfg etl.SourceConfig) (*os.File, error) {
	filePath := cfg.String("filePath", "")
	if filePath == "" {
		return nil, fmt.Errorf("filePath is required")
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

func (s *csvFileSource) Discover(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, error) {
	f, err := openCSVFile(cfg)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	headers, _, err := readCSVHeader(newCSVReader(f, cfg), cfg)
	if err != nil {
		return nil, err
	}
	return csvSchema(headers), nil
}

func (s *csvFileSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	_, out, errCh, err := s.ReadSnapshot(ctx, cfg)
	if err != nil {
		return failedRead(err)
	}
	return out, errCh
}

func (s *csvFileSource) ReadSnapshot(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, <-chan etl.Record, <-chan error, error) {
	f, err := openCSVFile(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return openCSVSnapshot(ctx, f, cfg)
}
