package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smpawlowski/covid19/internal/blob/core"
)

// fakeS3 answers path-style PutObject and GetObject requests.
type fakeS3 struct {
	mu   sync.Mutex
	puts map[string]string // path -> content type
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		_, _ = io.Copy(io.Discard, r.Body)
		f.mu.Lock()
		f.puts[r.URL.Path] = r.Header.Get("Content-Type")
		f.mu.Unlock()
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		if r.URL.Path != "/reports/global.html" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("ETag", `"def456"`)
		_, _ = io.WriteString(w, "<html></html>")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStore(t *testing.T) (*Store, *fakeS3) {
	t.Helper()
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_CONFIG_FILE", "/dev/null")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/dev/null")

	fake := &fakeS3{puts: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := New(context.Background(), Config{Bucket: "reports", Endpoint: srv.URL, PathStyle: true})
	require.NoError(t, err)
	return s, fake
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestPut(t *testing.T) {
	s, fake := newTestStore(t)
	info, err := s.Put(context.Background(), "global/summary.csv", strings.NewReader("a,b\n"), core.PutOptions{ContentType: "text/csv"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", info.ETag)
	assert.Equal(t, core.DriverS3, s.Driver())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "text/csv", fake.puts["/reports/global/summary.csv"])
}

func TestGet(t *testing.T) {
	s, _ := newTestStore(t)
	info, rc, err := s.Get(context.Background(), "global.html")
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(body))
	assert.Equal(t, "text/html", info.ContentType)
	assert.Equal(t, "def456", info.ETag)
}
