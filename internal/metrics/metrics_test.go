package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	r := NewRecorder()
	r.ObserveRun("ch", "success", 2*time.Second)
	r.ObserveRun("ch", "success", time.Second)
	r.ObserveRun("ch", "error", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runs.WithLabelValues("ch", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("ch", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
	assert.Positive(t, testutil.ToFloat64(r.lastSuccess.WithLabelValues("ch")))
}

func TestRowsPublished(t *testing.T) {
	r := NewRecorder()
	r.SetRowsPublished("global", "summary", 10)
	r.SetRowsPublished("global", "summary", 12)
	assert.Equal(t, 12.0, testutil.ToFloat64(r.rowsPublished.WithLabelValues("global", "summary")))
}

func TestHandler(t *testing.T) {
	r := NewRecorder()
	r.ObserveRun("global", "success", time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `covid19_runs_total{dataset="global",status="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
