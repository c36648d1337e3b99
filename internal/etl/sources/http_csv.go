package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/smpawlowski/covid19/internal/etl"
)

// ── HTTP CSV Source ────────────────────────────────────────
// Downloads a CSV snapshot over HTTP(S), e.g. the JHU time series files.

var httpClient = &http.Client{Timeout: 30 * time.Second}

type httpCSVSource struct{}

func init() { etl.RegisterSource(&httpCSVSource{}) }

func (s *httpCSVSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "http_csv",
		Label: "CSV over HTTP",
		ConfigFields: append([]etl.ConfigField{
			{Key: "url", Label: "URL", Required: true, Help: "Full URL of the CSV file"},
			{Key: "headers", Label: "Headers", Required: false, Help: "JSON object of request headers (e.g., {\"Authorization\": \"Bearer xxx\"})"},
		}, csvConfigFields...),
	}
}

func (s *httpCSVSource) Discover(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, error) {
	body, err := fetchHTTP(ctx, cfg)
	if err != nil {
		return nil, err
	}
	// Only the header row is needed; closing early abandons the rest.
	defer body.Close()

	headers, _, err := readCSVHeader(newCSVReader(body, cfg), cfg)
	if err != nil {
		return nil, err
	}
	return csvSchema(headers), nil
}

func (s *httpCSVSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	_, out, errCh, err := s.ReadSnapshot(ctx, cfg)
	if err != nil {
		return failedRead(err)
	}
	return out, errCh
}

// ReadSnapshot issues a single GET: the header row and the records come
// from the same response.
func (s *httpCSVSource) ReadSnapshot(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, <-chan etl.Record, <-chan error, error) {
	body, err := fetchHTTP(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return openCSVSnapshot(ctx, body, cfg)
}

// fetchHTTP issues the GET and returns the response body on a 2xx/3xx status.
func fetchHTTP(ctx context.Context, cfg etl.SourceConfig) (io.ReadCloser, error) {
	url := cfg.String("url", "")
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	headers, err := requestHeaders(cfg["headers"])
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	return resp.Body, nil
}

// requestHeaders accepts a JSON object string or a decoded map.
func requestHeaders(v any) (map[string]string, error) {
	switch h := v.(type) {
	case nil:
		return nil, nil
	case string:
		if h == "" {
			return nil, nil
		}
		var headers map[string]string
		if err := json.Unmarshal([]byte(h), &headers); err != nil {
			return nil, fmt.Errorf("parse headers: %w", err)
		}
		return headers, nil
	case map[string]any:
		headers := make(map[string]string, len(h))
		for k, val := range h {
			headers[k] = fmt.Sprint(val)
		}
		return headers, nil
	default:
		return nil, fmt.Errorf("headers must be a JSON object")
	}
}
