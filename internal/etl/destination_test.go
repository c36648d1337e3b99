package etl_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blobfs "github.com/smpawlowski/covid19/internal/blob/fs"
	"github.com/smpawlowski/covid19/internal/dbclient"
	"github.com/smpawlowski/covid19/internal/domain"
	"github.com/smpawlowski/covid19/internal/etl"
)

func summary() (*etl.Schema, []etl.Record) {
	schema := &etl.Schema{Fields: []etl.Field{
		{Name: "region", Type: etl.TypeText},
		{Name: "date", Type: etl.TypeDatetime},
		{Name: "CONFIRMED", Type: etl.TypeNumber},
		{Name: "RECOVERED", Type: etl.TypeNumber},
	}}
	records := []etl.Record{
		{Data: map[string]any{"region": "GLOBAL", "date": "2020-03-01", "CONFIRMED": 88371.0, "RECOVERED": 42716.0}},
		{Data: map[string]any{"region": "GLOBAL", "date": "2020-03-02", "CONFIRMED": 90309.0, "RECOVERED": nil}},
	}
	return schema, records
}

func TestBlobDestination(t *testing.T) {
	ctx := context.Background()
	store, err := blobfs.New(t.TempDir())
	require.NoError(t, err)
	dest := &etl.BlobDestination{Store: store, Prefix: "reports/"}

	schema, records := summary()
	n, err := dest.Write(ctx, etl.Target{Dataset: "global", Table: "summary"}, schema, records, etl.SyncReplace)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, rc, err := store.Get(ctx, "reports/global/summary.csv")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "region,date,CONFIRMED,RECOVERED\nGLOBAL,2020-03-01,88371,42716\nGLOBAL,2020-03-02,90309,\n", string(body))

	key, err := dest.WritePage(ctx, "global", []byte("<html></html>"))
	require.NoError(t, err)
	assert.Equal(t, "reports/global.html", key)
}

func TestConnectorDestination_SQLite(t *testing.T) {
	ctx := context.Background()
	conn, err := dbclient.NewConnector(&domain.DatabaseConnection{
		Driver: domain.DatabaseDriverSQLite,
		Host:   filepath.Join(t.TempDir(), "out.db"),
	}, nil)
	require.NoError(t, err)
	defer conn.Close()

	dest := &etl.ConnectorDestination{Label: "sqlite", Conn: conn}
	schema, records := summary()
	n, err := dest.Write(ctx, etl.Target{Dataset: "global", Table: "summary"}, schema, records, etl.SyncReplace)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	page, err := conn.Execute(ctx, "SELECT date, CONFIRMED, RECOVERED FROM global_summary ORDER BY date", 10)
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, []any{"2020-03-02", 90309.0, nil}, page.Rows[1])
}
