package dbclient

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/smpawlowski/covid19/internal/domain"
)

func TestBuildPostgresDSN(t *testing.T) {
	conn := &domain.DatabaseConnection{
		Driver:   domain.DatabaseDriverPostgres,
		Host:     "db.local",
		Database: "covid",
		Username: "etl",
		Options:  map[string]string{"connect_timeout": "5"},
	}
	dsn := buildPostgresDSN(conn, "it's secret")
	assert.Equal(t, `host=db.local port=5432 user=etl password='it\'s secret' dbname=covid sslmode=disable connect_timeout=5`, dsn)
}

func TestBuildMySQLDSN(t *testing.T) {
	conn := &domain.DatabaseConnection{
		Driver:   domain.DatabaseDriverMySQL,
		Host:     "127.0.0.1",
		Port:     3307,
		Database: "covid",
		Username: "root",
		SSLMode:  "require",
	}
	dsn := buildMySQLDSN(conn, "pw")
	assert.True(t, strings.HasPrefix(dsn, "root:pw@tcp(127.0.0.1:3307)/covid?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "tls=true")
}

func TestBuildMongoURI(t *testing.T) {
	conn := &domain.DatabaseConnection{Host: "mongodb+srv://u:<password>@cluster.example.net/"}
	assert.Equal(t, "mongodb+srv://u:pw@cluster.example.net/", buildMongoURI(conn, "pw"))

	conn = &domain.DatabaseConnection{Host: "localhost", Username: "u", Options: map[string]string{"authSource": "admin"}}
	assert.Equal(t, "mongodb://u:pw@localhost:27017/?authSource=admin", buildMongoURI(conn, "pw"))
}

func TestNewConnector_RejectsUnknownDriver(t *testing.T) {
	_, err := NewConnector(&domain.DatabaseConnection{Driver: "oracle", Host: "x"}, nil)
	assert.Error(t, err)
}

func TestSQLite_WriteAndRead(t *testing.T) {
	ctx := context.Background()
	conn := &domain.DatabaseConnection{
		Driver: domain.DatabaseDriverSQLite,
		Host:   filepath.Join(t.TempDir(), "export.db"),
	}
	c, err := NewConnector(conn, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.TestConnection(ctx))

	cols := []Column{{Name: "region", Type: ColumnText}, {Name: "date", Type: ColumnText}, {Name: "CONFIRMED", Type: ColumnNumber}}
	rows := [][]any{
		{"Italy", "2020-03-01", 1694.0},
		{"Italy", "2020-03-02", 2036.0},
		{"Spain", "2020-03-01", nil},
	}

	n, err := c.WriteTable(ctx, "global_regions", cols, rows, WriteReplace)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Replace leaves only the new rows.
	n, err = c.WriteTable(ctx, "global_regions", cols, rows[:2], WriteReplace)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = c.WriteTable(ctx, "global_regions", cols, rows[2:], WriteAppend)
	require.NoError(t, err)

	page, err := c.Execute(ctx, `SELECT region, date, CONFIRMED FROM global_regions ORDER BY region, date`, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "date", "CONFIRMED"}, page.Columns)
	require.Len(t, page.Rows, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, []any{"Italy", "2020-03-01", 1694.0}, page.Rows[0])

	page, err = c.FetchMore(ctx, 2)
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.False(t, page.HasMore)
	assert.Equal(t, []any{"Spain", "2020-03-01", nil}, page.Rows[0])
	assert.Equal(t, 3, page.TotalFetched)
}

func TestSQLite_RejectsWrites(t *testing.T) {
	conn := &domain.DatabaseConnection{Driver: domain.DatabaseDriverSQLite, Host: filepath.Join(t.TempDir(), "x.db")}
	c, err := NewConnector(conn, nil)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Execute(context.Background(), "DROP TABLE anything", 10)
	assert.Error(t, err)
}

func TestSQLTypesPerDriver(t *testing.T) {
	pg := &sqlConnector{driverName: "postgres"}
	assert.Equal(t, `INSERT INTO "t" ("a", "b") VALUES ($1, $2)`, pg.insertSQL("t", []Column{{Name: "a"}, {Name: "b"}}))
	assert.Equal(t, "DOUBLE PRECISION", pg.sqlType(ColumnNumber))

	my := &sqlConnector{driverName: "mysql"}
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS `t` (`region` VARCHAR(255), `n` DOUBLE)",
		my.createTableSQL("t", []Column{{Name: "region", Type: ColumnText}, {Name: "n", Type: ColumnNumber}}))
}
