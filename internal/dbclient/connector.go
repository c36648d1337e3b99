package dbclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/smpawlowski/covid19/internal/domain"
)

// QueryPage is a batch of rows fetched from a query cursor.
type QueryPage struct {
	Columns      []string `json:"columns"`
	Rows         [][]any  `json:"rows"`
	TotalFetched int      `json:"totalFetched"` // total rows fetched so far
	HasMore      bool     `json:"hasMore"`      // cursor has more rows
}

// ColumnType is the storage type of an exported column.
type ColumnType string

const (
	ColumnText   ColumnType = "text"
	ColumnNumber ColumnType = "number"
)

// Column describes one column of an exported table.
type Column struct {
	Name string
	Type ColumnType
}

// WriteMode determines what happens to an existing table on write.
type WriteMode string

const (
	WriteReplace WriteMode = "replace" // drop and recreate the table
	WriteAppend  WriteMode = "append"  // create if missing, then insert
)

// Connector abstracts interaction with an external database.
type Connector interface {
	// TestConnection verifies connectivity.
	TestConnection(ctx context.Context) error

	// Execute runs a read query and returns the first batch of rows.
	Execute(ctx context.Context, query string, fetchSize int) (*QueryPage, error)

	// FetchMore continues reading from the open cursor.
	FetchMore(ctx context.Context, fetchSize int) (*QueryPage, error)

	// WriteTable stores rows under table. Row values line up with cols;
	// nil is stored as NULL. Returns the number of rows written.
	WriteTable(ctx context.Context, table string, cols []Column, rows [][]any, mode WriteMode) (int, error)

	// Close closes the connection and any open cursors.
	Close() error
}

// NewConnector creates a Connector for the given database connection.
// A nil logger is replaced by a no-op logger.
func NewConnector(conn *domain.DatabaseConnection, logger *zap.Logger) (Connector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("driver", string(conn.Driver)))

	switch conn.Driver {
	case domain.DatabaseDriverSQLite:
		return newSQLConnector("sqlite", buildSQLiteDSN(conn), logger)
	case domain.DatabaseDriverMySQL:
		return newSQLConnector("mysql", buildMySQLDSN(conn, conn.Password()), logger)
	case domain.DatabaseDriverPostgres:
		return newSQLConnector("postgres", buildPostgresDSN(conn, conn.Password()), logger)
	case domain.DatabaseDriverMongoDB:
		return newMongoConnector(conn, conn.Password(), logger)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", conn.Driver)
	}
}
