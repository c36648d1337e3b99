package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smpawlowski/covid19/internal/blob"
	"github.com/smpawlowski/covid19/internal/config"
	"github.com/smpawlowski/covid19/internal/etl"
	"github.com/smpawlowski/covid19/internal/report"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInitWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "covid19.yaml")

	out, err := execute(t, "--config", path, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Len(t, loaded.Datasets, 2)

	_, err = execute(t, "--config", path, "init")
	assert.ErrorContains(t, err, "already exists")
}

func TestRunAndTop(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "ch.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(`date,abbreviation_canton_and_fl,ncumul_conf,current_hosp,current_icu,ncumul_released,ncumul_deceased
2020-03-01,ZH,10,,,,1
2020-03-02,ZH,12,,,,1
2020-03-01,BE,5,,,,0
2020-03-02,BE,7,,,,0
`), 0o644))

	c := config.DefaultConfig()
	c.Logging.Level = "error"
	c.Output.Blob = blob.Config{Driver: blob.DriverFilesystem, Dir: filepath.Join(dir, "out")}
	c.Service.StateDB = filepath.Join(dir, "state.db")
	src := etl.Job{Name: "openzh", SourceType: "csv_file", SourceCfg: etl.SourceConfig{"filePath": csvPath}}
	c.Datasets = []config.Dataset{{
		Name: "ch", Kind: config.KindCantonal, Label: "CH",
		Source: &src, Columns: report.OpenZHColumns,
	}}
	path := filepath.Join(dir, "covid19.yaml")
	require.NoError(t, c.Save(path))

	out, err := execute(t, "--config", path, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "ch: 4 rows read")
	_, err = os.Stat(filepath.Join(dir, "out", "ch.html"))
	assert.NoError(t, err)

	out, err = execute(t, "--config", path, "top", "ch", "-n", "1")
	require.NoError(t, err)
	assert.Equal(t, "CH CASES: 19 CONFIRMED\n1. ZH: 12 CONFIRMED\n", out)

	_, err = execute(t, "--config", path, "run", "mars")
	assert.ErrorContains(t, err, `unknown dataset "mars"`)
}
