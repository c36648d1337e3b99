// Package blob publishes report artifacts (CSV tables, HTML pages) to an
// object store: a local directory or an S3-compatible bucket.
package blob

import (
	"context"
	"fmt"

	"github.com/smpawlowski/covid19/internal/blob/core"
	"github.com/smpawlowski/covid19/internal/blob/fs"
	"github.com/smpawlowski/covid19/internal/blob/s3"
)

type (
	Store      = core.Store
	Info       = core.Info
	PutOptions = core.PutOptions
	Driver     = core.Driver
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
)

var ErrNotFound = core.ErrNotFound

// Config selects and configures a backend.
type Config struct {
	Driver    Driver `yaml:"driver"`
	Dir       string `yaml:"dir"` // fs root
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	Prefix    string `yaml:"prefix"` // prepended to every key by callers
}

// Open constructs the Store described by cfg. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return fs.New(cfg.Dir)
	case DriverS3:
		return s3.New(ctx, s3.Config{
			Region:    cfg.Region,
			Bucket:    cfg.Bucket,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
