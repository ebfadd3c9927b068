package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"burn.note/config"
	"burn.note/internal/access"
	"burn.note/internal/metrics"
	"burn.note/internal/store"
)

var t0 = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

type testServer struct {
	handler http.Handler
	now     time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{now: t0}
	cfg := config.Default()
	cfg.Server.BaseURL = "https://burn.example/"

	engine := access.New(store.NewMemoryStore(), access.Options{
		Delays:       cfg.Messages.Delays,
		DefaultDelay: cfg.Messages.DefaultDelay,
		Retention:    cfg.Messages.Retention,
		Now:          func() time.Time { return ts.now },
	})

	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	ts.handler = SetupRouter(engine, cfg, zap.NewNop(), reg)
	return ts
}

func (ts *testServer) do(method, target, ip string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) create(t *testing.T, message string, delay any) CreateResponse {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"message": message, "delay": delay})
	require.NoError(t, err)

	rec := ts.do(http.MethodPost, "/api/messages", "", strings.NewReader(string(payload)), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp CreateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	return resp
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCreateMessage_JSON(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.create(t, "hello", 60)
	assert.Len(t, resp.Token, 64)
	assert.Equal(t, "https://burn.example/"+resp.Token, resp.URL)

	// The delay may also arrive as a string.
	resp = ts.create(t, "hello", "120")
	assert.NotEmpty(t, resp.Token)
}

func TestCreateMessage_Form(t *testing.T) {
	ts := newTestServer(t)

	form := url.Values{"message": {"from the form"}, "delay": {"30"}}
	rec := ts.do(http.MethodPost, "/", "", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decode[CreateResponse](t, rec)
	require.True(t, resp.Success)

	rec = ts.do(http.MethodGet, "/api/messages/"+resp.Token, "192.0.2.10", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[ViewResponse](t, rec)
	assert.Equal(t, "from the form", view.Text)
	assert.True(t, t0.Add(30*time.Minute).Equal(view.ActiveUntil))
}

func TestCreateMessage_Invalid(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/messages", "", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/messages", "", strings.NewReader(`{"message":"   "}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "message is required", decode[ErrorResponse](t, rec).Error)
}

func TestViewMessage(t *testing.T) {
	ts := newTestServer(t)
	created := ts.create(t, "top secret", 60)

	rec := ts.do(http.MethodGet, "/api/messages/"+created.Token, "198.51.100.7", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	view := decode[ViewResponse](t, rec)
	assert.Equal(t, "top secret", view.Text)
	assert.Equal(t, created.Token, view.Token)
	assert.Equal(t, t0.Add(time.Hour).UnixMilli(), view.ActiveUntilTimestamp)
	assert.Equal(t, "March 14 2026, 10:26:53 am", view.ActiveUntilDate)
	assert.Equal(t, "1 hour from now", view.TimeRemaining)

	// Repeat view from the same reader.
	ts.now = t0.Add(30 * time.Minute)
	rec = ts.do(http.MethodGet, "/api/messages/"+created.Token, "198.51.100.7", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, view.ActiveUntilTimestamp, decode[ViewResponse](t, rec).ActiveUntilTimestamp)
}

func TestViewMessage_NotAvailableLooksTheSame(t *testing.T) {
	ts := newTestServer(t)
	created := ts.create(t, "mine", 15)

	rec := ts.do(http.MethodGet, "/api/messages/"+created.Token, "198.51.100.7", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	denied := ts.do(http.MethodGet, "/api/messages/"+created.Token, "203.0.113.99", nil, "")
	unknown := ts.do(http.MethodGet, "/api/messages/"+strings.Repeat("a", 64), "198.51.100.7", nil, "")
	malformed := ts.do(http.MethodGet, "/api/messages/short", "198.51.100.7", nil, "")

	ts.now = t0.Add(15 * time.Minute)
	expired := ts.do(http.MethodGet, "/api/messages/"+created.Token, "198.51.100.7", nil, "")

	for name, rec := range map[string]*httptest.ResponseRecorder{
		"denied": denied, "unknown": unknown, "malformed": malformed, "expired": expired,
	} {
		assert.Equal(t, http.StatusNotFound, rec.Code, name)
		assert.JSONEq(t, `{"error":"message not available"}`, rec.Body.String(), name)
	}
}

func TestDestroyMessage(t *testing.T) {
	ts := newTestServer(t)
	created := ts.create(t, "short lived", 15)

	rec := ts.do(http.MethodGet, "/api/messages/"+created.Token, "198.51.100.7", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/messages/"+created.Token, "203.0.113.99", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[DestroyResponse](t, rec).Success)

	rec = ts.do(http.MethodDelete, "/destroy/"+created.Token, "198.51.100.7", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[DestroyResponse](t, rec).Success)

	rec = ts.do(http.MethodGet, "/api/messages/"+created.Token, "198.51.100.7", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurge(t *testing.T) {
	ts := newTestServer(t)
	created := ts.create(t, "gone soon", 15)
	rec := ts.do(http.MethodGet, "/api/messages/"+created.Token, "198.51.100.7", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	ts.now = t0.Add(time.Hour)

	rec = ts.do(http.MethodGet, "/clear", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[PurgeResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(1), resp.Removed)

	rec = ts.do(http.MethodPost, "/api/purge", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decode[PurgeResponse](t, rec).Removed)
}

func TestDelays(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/delays", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	delays := decode[[]access.Delay](t, rec)
	require.Len(t, delays, 5)
	assert.Equal(t, access.Delay{Minutes: 15, Label: "15min"}, delays[0])
	assert.Equal(t, access.Delay{Minutes: 1440, Label: "24h"}, delays[4])
}

func TestPagesAndHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = ts.do(http.MethodGet, "/", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	rec = ts.do(http.MethodGet, "/"+strings.Repeat("b", 64), "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/messages/")

	rec = ts.do(http.MethodGet, "/static/style.css", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/no/such/page", "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, "counted", 15)

	rec := ts.do(http.MethodGet, "/metrics", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "burnnote_messages_created_total")
	assert.Contains(t, rec.Body.String(), "burnnote_http_requests_total")
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/health", "", nil, "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestNetworkIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", NetworkIdentity(req))

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", NetworkIdentity(req))

	req.RemoteAddr = "192.0.2.1"
	assert.Equal(t, "192.0.2.1", NetworkIdentity(req))

	req.RemoteAddr = ""
	assert.Equal(t, "", NetworkIdentity(req))
}
