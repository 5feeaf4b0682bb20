package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovsienko/statusgate/internal/config"
	"github.com/ovsienko/statusgate/internal/history"
	"github.com/ovsienko/statusgate/internal/status"
)

func TestServer_GetStatus_ReturnsStatuses(t *testing.T) {
	t.Parallel()

	checker := &fakeChecker{
		records: []status.Record{
			{Name: "Documents received", TimestampMillis: 1700000000000},
			{Name: "Ready for pickup", TimestampMillis: 1700600000000},
		},
	}
	server := newTestServerWithChecker(checker)

	req := httptest.NewRequest(http.MethodGet, "/v1/status/1234567?all=true", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "1234567", body.Identifier)
	require.Len(t, body.Statuses, 2)
	require.Equal(t, "Ready for pickup", body.Statuses[1].Name)
	require.Equal(t, int64(1700600000000), body.Statuses[1].TimestampMillis)

	calls := checker.snapshot()
	require.Len(t, calls, 1)
	require.Equal(t, "1234567", calls[0].identifier)
	require.True(t, calls[0].retrieveAll)
}

func TestServer_GetStatus_DefaultsToLatestOnly(t *testing.T) {
	t.Parallel()

	checker := &fakeChecker{
		records: []status.Record{{Name: "Ready for pickup", TimestampMillis: 1700600000000}},
	}
	server := newTestServerWithChecker(checker)

	req := httptest.NewRequest(http.MethodGet, "/v1/status/1234567", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	calls := checker.snapshot()
	require.Len(t, calls, 1)
	require.False(t, calls[0].retrieveAll)
}

func TestServer_GetStatus_InvalidAllParameter(t *testing.T) {
	t.Parallel()

	server := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/v1/status/1234567?all=maybe", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid all parameter")
}

func TestServer_GetStatus_FetchFailureReturns503(t *testing.T) {
	t.Parallel()

	server := newTestServerWithChecker(&fakeChecker{})
	req := httptest.NewRequest(http.MethodGet, "/v1/status/9999999", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "status temporarily unavailable")
}

func TestServer_GetStatus_CheckerErrorReturns400(t *testing.T) {
	t.Parallel()

	server := newTestServerWithChecker(&fakeChecker{err: errors.New("identifier is required")})
	req := httptest.NewRequest(http.MethodGet, "/v1/status/%20", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "identifier is required")
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	server := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	server := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ready")
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Body.String())
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth = config.AuthConfig{
		Enabled: true,
		APIKey:  "secret",
	}
	server := NewServer(&fakeChecker{}, testHistoryHandler(), cfg, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz?api_key=secret", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	newTestServer().Handler().ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

// --- helpers/fakes ---

type checkCall struct {
	identifier  string
	retrieveAll bool
}

type fakeChecker struct {
	mu      sync.Mutex
	records []status.Record
	err     error
	calls   []checkCall
}

func (f *fakeChecker) Check(_ context.Context, identifier string, retrieveAll bool) ([]status.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, checkCall{identifier: identifier, retrieveAll: retrieveAll})
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeChecker) snapshot() []checkCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]checkCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{
			Port:                  8080,
			RequestTimeoutSeconds: 30,
		},
		Logging: config.LoggingConfig{Development: true},
	}
}

func testHistoryHandler() *HistoryHandler {
	return NewHistoryHandler(history.NewNoop(), zap.NewNop())
}

func newTestServer() *Server {
	return newTestServerWithChecker(&fakeChecker{})
}

func newTestServerWithChecker(checker Checker) *Server {
	return NewServer(checker, testHistoryHandler(), testConfig(), zap.NewNop())
}
