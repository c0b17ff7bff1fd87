package server_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jmx-collector/internal/server"
	"github.com/jmx-collector/pkg/config"
)

func newTestServer(t *testing.T, health server.HealthFunc) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "jmx_events_published_total", Help: "test"})
	c.Add(3)
	reg.MustRegister(c)

	srv := server.NewHTTPServer(config.NewDefaultConfig().Server, zaptest.NewLogger(t), reg, health)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestEndpoints(t *testing.T) {
	ts := newTestServer(t, func() []string { return []string{"jmx-app01"} })

	code, body := get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "jmx_events_published_total 3")

	code, body = get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"UP","servers":["jmx-app01"]}`, body)

	code, body = get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Polling 1 server(s)")

	code, _ = get(t, ts.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthDownWithoutServers(t *testing.T) {
	ts := newTestServer(t, func() []string { return nil })
	code, body := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.JSONEq(t, `{"status":"DOWN","servers":null}`, body)
}

func TestStartAndShutdown(t *testing.T) {
	cfg := config.NewDefaultConfig().Server
	cfg.Addr = "127.0.0.1:0"
	srv := server.NewHTTPServer(cfg, zaptest.NewLogger(t), prometheus.NewRegistry(), nil)
	require.NoError(t, srv.Start())
	require.NoError(t, srv.Shutdown())
}
