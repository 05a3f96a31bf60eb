package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedact(t *testing.T) {
	h := http.Header{}
	h.Set("X-API-Key", "secret")
	h.Set("Authorization", "Bearer abc")
	h.Set("Content-Type", "application/json")

	out := redact(h)

	assert.Equal(t, "[REDACTED]", out["X-Api-Key"])
	assert.Equal(t, "[REDACTED]", out["Authorization"])
	assert.Equal(t, "application/json", out["Content-Type"])
}

func TestLoggingTransport_LogsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	client := NewHTTPClient(zap.New(core), "filestore", time.Second)

	resp, err := client.Get(srv.URL + "/ok")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = client.Get(srv.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "filestore", entries[1].ContextMap()["remote"])
}

func TestLoggingTransport_LogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	client := &http.Client{Transport: NewLoggingTransport(zap.New(core), "geoip")}

	_, err := client.Get("http://127.0.0.1:1/unreachable")
	require.Error(t, err)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Outbound request failed", logs.All()[0].Message)
}
