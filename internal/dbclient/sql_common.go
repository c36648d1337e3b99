package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// sqlConnector is the shared implementation for MySQL, Postgres, and SQLite.
type sqlConnector struct {
	driverName string
	db         *sql.DB
	logger     *zap.Logger

	mu         sync.Mutex
	activeRows *sql.Rows
	columns    []string
	fetched    int
}

// newSQLConnector creates a generic SQL connector.
func newSQLConnector(driverName, dsn string, logger *zap.Logger) (*sqlConnector, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &sqlConnector{driverName: driverName, db: db, logger: logger}, nil
}

func (c *sqlConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.db.PingContext(ctx)
}

// isReadQuery detects if a query is a read (SELECT, WITH, PRAGMA).
func isReadQuery(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "WITH", "PRAGMA"} {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	return false
}

func (c *sqlConnector) Execute(ctx context.Context, query string, fetchSize int) (*QueryPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeCursorLocked()

	if fetchSize <= 0 {
		fetchSize = 500
	}
	if !isReadQuery(query) {
		return nil, fmt.Errorf("only read queries are allowed")
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("columns: %w", err)
	}

	c.activeRows = rows
	c.columns = cols
	c.fetched = 0
	c.logger.Debug("query opened", zap.Strings("columns", cols))

	return c.fetchBatchLocked(fetchSize)
}

func (c *sqlConnector) FetchMore(ctx context.Context, fetchSize int) (*QueryPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeRows == nil {
		return nil, fmt.Errorf("no active cursor: execute a query first")
	}
	if fetchSize <= 0 {
		fetchSize = 500
	}
	return c.fetchBatchLocked(fetchSize)
}

// fetchBatchLocked reads up to fetchSize rows from the active cursor.
// Must be called while holding c.mu.
func (c *sqlConnector) fetchBatchLocked(fetchSize int) (*QueryPage, error) {
	var resultRows [][]any
	numCols := len(c.columns)

	for range fetchSize {
		if !c.activeRows.Next() {
			break
		}
		values := make([]any, numCols)
		ptrs := make([]any, numCols)
		for j := range values {
			ptrs[j] = &values[j]
		}
		if err := c.activeRows.Scan(ptrs...); err != nil {
			c.closeCursorLocked()
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make([]any, numCols)
		for j, v := range values {
			row[j] = formatValue(v)
		}
		resultRows = append(resultRows, row)
	}
	c.fetched += len(resultRows)

	if err := c.activeRows.Err(); err != nil {
		c.closeCursorLocked()
		return nil, fmt.Errorf("iterate: %w", err)
	}

	hasMore := len(resultRows) == fetchSize
	if !hasMore {
		c.closeCursorLocked()
	}

	return &QueryPage{
		Columns:      c.columns,
		Rows:         resultRows,
		TotalFetched: c.fetched,
		HasMore:      hasMore,
	}, nil
}

// formatValue normalizes driver values: bytes become strings, times become
// ISO dates when they carry no clock part.
func formatValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.RFC3339)
	case int64:
		return float64(val)
	default:
		return val
	}
}

// ── Table export ───────────────────────────────────────────

func (c *sqlConnector) WriteTable(ctx context.Context, table string, cols []Column, rows [][]any, mode WriteMode) (int, error) {
	if len(cols) == 0 {
		return 0, fmt.Errorf("write %s: no columns", table)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if mode == WriteReplace {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+c.quoteIdent(table)); err != nil {
			return 0, fmt.Errorf("drop %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, c.createTableSQL(table, cols)); err != nil {
		return 0, fmt.Errorf("create %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, c.insertSQL(table, cols))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(cols) {
			return 0, fmt.Errorf("row %d has %d values for %d columns", i, len(row), len(cols))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	c.logger.Debug("table written", zap.String("table", table), zap.Int("rows", len(rows)), zap.String("mode", string(mode)))
	return len(rows), nil
}

func (c *sqlConnector) createTableSQL(table string, cols []Column) string {
	defs := make([]string, len(cols))
	for i, col := range cols {
		defs[i] = c.quoteIdent(col.Name) + " " + c.sqlType(col.Type)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", c.quoteIdent(table), strings.Join(defs, ", "))
}

func (c *sqlConnector) insertSQL(table string, cols []Column) string {
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, col := range cols {
		names[i] = c.quoteIdent(col.Name)
		marks[i] = c.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		c.quoteIdent(table), strings.Join(names, ", "), strings.Join(marks, ", "))
}

func (c *sqlConnector) placeholder(n int) string {
	if c.driverName == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (c *sqlConnector) quoteIdent(name string) string {
	if c.driverName == "mysql" {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (c *sqlConnector) sqlType(t ColumnType) string {
	switch {
	case t == ColumnNumber && c.driverName == "postgres":
		return "DOUBLE PRECISION"
	case t == ColumnNumber && c.driverName == "mysql":
		return "DOUBLE"
	case t == ColumnNumber:
		return "REAL"
	case c.driverName == "mysql":
		return "VARCHAR(255)"
	default:
		return "TEXT"
	}
}

func (c *sqlConnector) Close() error {
	c.mu.Lock()
	c.closeCursorLocked()
	c.mu.Unlock()
	return c.db.Close()
}

func (c *sqlConnector) closeCursorLocked() {
	if c.activeRows != nil {
		c.activeRows.Close()
		c.activeRows = nil
	}
}
