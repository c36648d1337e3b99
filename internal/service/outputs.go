package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/smpawlowski/covid19/internal/blob"
	"github.com/smpawlowski/covid19/internal/config"
	"github.com/smpawlowski/covid19/internal/dbclient"
	"github.com/smpawlowski/covid19/internal/etl"
)

// Output is one export destination with its write mode.
type Output struct {
	Dest etl.Destination
	Mode etl.SyncMode
}

// Outputs are the publishing targets of a service.
type Outputs struct {
	Pages  PagePublisher
	Tables []Output

	closers []func() error
}

// PagePublisher stores rendered report pages.
type PagePublisher interface {
	WritePage(ctx context.Context, dataset string, page []byte) (string, error)
}

// OpenOutputs connects every configured destination. The blob store always
// receives pages and CSV tables; each database output receives the tables.
func OpenOutputs(ctx context.Context, cfg config.OutputConfig, logger *zap.Logger) (*Outputs, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	bd := &etl.BlobDestination{Store: store, Prefix: cfg.Blob.Prefix}
	out := &Outputs{Pages: bd, Tables: []Output{{Dest: bd, Mode: etl.SyncReplace}}}

	for _, db := range cfg.Databases {
		conn, err := dbclient.NewConnector(&db.Connection, logger.Named("dbclient").With(zap.String("output", db.Name)))
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("output %s: %w", db.Name, err)
		}
		mode := db.Mode
		if mode == "" {
			mode = etl.SyncReplace
		}
		out.Tables = append(out.Tables, Output{Dest: &etl.ConnectorDestination{Label: db.Name, Conn: conn}, Mode: mode})
		out.closers = append(out.closers, conn.Close)
	}
	logger.Info("outputs ready",
		zap.String("blob", string(store.Driver())),
		zap.Int("databases", len(cfg.Databases)),
	)
	return out, nil
}

// Close releases database connections.
func (o *Outputs) Close() error {
	var errs []error
	for _, c := range o.closers {
		errs = append(errs, c())
	}
	o.closers = nil
	return errors.Join(errs...)
}
