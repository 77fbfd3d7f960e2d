package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"ark-proxy-go/internal/client"
	"ark-proxy-go/internal/config"
	"ark-proxy-go/internal/metrics"
	"ark-proxy-go/internal/reqbody"
	"ark-proxy-go/internal/service"
	"ark-proxy-go/internal/static"
)

const testAPIKey = "ark-secret-key"

// fakeArk records every upstream call and answers with a fixed reply.
type fakeArk struct {
	mu       sync.Mutex
	payloads [][]byte
	headers  []http.Header

	status int
	body   string
}

func (f *fakeArk) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.payloads = append(f.payloads, data)
	f.headers = append(f.headers, r.Header.Clone())
	status, body := f.status, f.body
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeArk) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeArk) lastPayload(t *testing.T) map[string]json.RawMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.payloads, "no upstream call recorded")
	var p map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(f.payloads[len(f.payloads)-1], &p), "upstream payload is not JSON")
	return p
}

func (f *fakeArk) lastHeader() http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.headers) == 0 {
		return nil
	}
	return f.headers[len(f.headers)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig points both forwarders at arkURL and creates a static root
// holding the default index page and one script.
func testConfig(t *testing.T, arkURL, apiKey string) *config.Config {
	t.Helper()
	root := t.TempDir()
	for name, data := range map[string]string{
		config.DefaultIndex: "<html>orange</html>",
		"app.js":            "console.log(1)",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(data), 0o644))
	}

	return &config.Config{
		Server: config.ServerConfig{BodyMaxBytes: reqbody.DefaultLimit},
		Static: config.StaticConfig{Root: root, Index: config.DefaultIndex},
		Ark: config.ArkConfig{
			APIKey:     apiKey,
			TextURL:    arkURL + "/api/v3/responses",
			TextModel:  "text-model",
			ImageURL:   arkURL + "/api/v3/images/generations",
			ImageModel: "image-model",
		},
		Upstream: config.UpstreamConfig{TimeoutSeconds: 10, IdleConnections: 2},
		Metrics:  config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// newTestEcho wires the full route table the way the server does.
func newTestEcho(t *testing.T, cfg *config.Config) (*echo.Echo, *metrics.Metrics) {
	t.Helper()
	logger := discardLogger()
	m := metrics.New()

	svc := service.NewProxyService(cfg, client.NewArkClient(cfg, logger, m), logger)
	resolver, err := static.NewResolver(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resolver.Close() })

	e := echo.New()
	RegisterRoutes(e, cfg, m,
		NewProxyHandler(svc, cfg, m, logger),
		NewStaticHandler(resolver, logger),
		NewHealthHandler(cfg, "test"),
	)
	return e, m
}

// newArkServer starts a fake upstream and returns it with its server.
func newArkServer(t *testing.T, status int, body string) (*fakeArk, *httptest.Server) {
	t.Helper()
	ark := &fakeArk{status: status, body: body}
	srv := httptest.NewServer(ark)
	t.Cleanup(srv.Close)
	return ark, srv
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}
