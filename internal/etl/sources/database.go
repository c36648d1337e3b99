package sources

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/smpawlowski/covid19/internal/dbclient"
	"github.com/smpawlowski/covid19/internal/domain"
	"github.com/smpawlowski/covid19/internal/etl"
)

// ── Database Source ────────────────────────────────────────
// Reads a long-format table from an external database through dbclient.
// For mongodb the query is a JSON find document.

const fetchSize = 500

// connect is swapped in tests.
var connect = func(conn *domain.DatabaseConnection) (dbclient.Connector, error) {
	return dbclient.NewConnector(conn, zap.L().Named("dbclient"))
}

type databaseSource struct{}

func init() { etl.RegisterSource(&databaseSource{}) }

func (s *databaseSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "database",
		Label: "Database Query",
		ConfigFields: []etl.ConfigField{
			{Key: "driver", Label: "Driver", Required: true, Options: []string{"sqlite", "postgres", "mysql", "mongodb"}},
			{Key: "host", Label: "Host", Required: true, Help: "Hostname, mongodb URI, or sqlite file path"},
			{Key: "port", Label: "Port", Required: false},
			{Key: "database", Label: "Database", Required: false},
			{Key: "username", Label: "Username", Required: false},
			{Key: "passwordEnv", Label: "Password variable", Required: false, Help: "Environment variable holding the password"},
			{Key: "sslMode", Label: "SSL mode", Required: false},
			{Key: "query", Label: "Query", Required: true},
		},
	}
}

// resolveDBConfig builds the connection and query from config.
func resolveDBConfig(cfg etl.SourceConfig) (*domain.DatabaseConnection, string, error) {
	conn := &domain.DatabaseConnection{
		Driver:      domain.DatabaseDriver(cfg.String("driver", "")),
		Host:        cfg.String("host", ""),
		Database:    cfg.String("database", ""),
		Username:    cfg.String("username", ""),
		PasswordEnv: cfg.String("passwordEnv", ""),
		SSLMode:     cfg.String("sslMode", ""),
	}
	if p := cfg.String("port", ""); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, "", fmt.Errorf("port: %w", err)
		}
		conn.Port = port
	}
	query := cfg.String("query", "")
	if query == "" {
		return nil, "", fmt.Errorf("query is required")
	}
	if err := conn.Validate(); err != nil {
		return nil, "", err
	}
	return conn, query, nil
}

func (s *databaseSource) Discover(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, error) {
	conn, query, err := resolveDBConfig(cfg)
	if err != nil {
		return nil, err
	}
	c, err := connect(conn)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	page, err := c.Execute(ctx, query, 1)
	if err != nil {
		return nil, err
	}

	schema := &etl.Schema{Fields: make([]etl.Field, len(page.Columns))}
	for i, col := range page.Columns {
		schema.Fields[i] = etl.Field{Name: col, Type: etl.TypeText}
	}
	return schema, nil
}

func (s *databaseSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	out := make(chan etl.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		conn, query, err := resolveDBConfig(cfg)
		if err != nil {
			errCh <- err
			return
		}
		c, err := connect(conn)
		if err != nil {
			errCh <- err
			return
		}
		defer c.Close()

		page, err := c.Execute(ctx, query, fetchSize)
		if err != nil {
			errCh <- fmt.Errorf("execute: %w", err)
			return
		}
		if !emitPage(ctx, out, page) {
			return
		}

		for page.HasMore {
			page, err = c.FetchMore(ctx, fetchSize)
			if err != nil {
				errCh <- fmt.Errorf("fetch more: %w", err)
				return
			}
			if !emitPage(ctx, out, page) {
				return
			}
		}
	}()

	return out, errCh
}

func emitPage(ctx context.Context, out chan<- etl.Record, page *dbclient.QueryPage) bool {
	for _, row := range page.Rows {
		data := make(map[string]any, len(page.Columns))
		for i, col := range page.Columns {
			if i < len(row) {
				data[col] = row[i]
			}
		}
		select {
		case out <- etl.Record{Data: data}:
		case <-ctx.Done():
			return false
		}
	}
	return true
}
