package client

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewHTTPClient(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zap.DebugLevel)
	var dump bytes.Buffer

	c := NewHTTPClient(nil,
		WithUserAgent("1.0.0"),
		WithContentType("application/json"),
		WithLogger(zap.New(core)),
		WithDump(&dump),
	)

	resp, err := c.Get(srv.URL + "/render")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Contains(t, got.Get("User-Agent"), "triptych/1.0.0")
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, 1, logs.FilterMessage("send a request").FilterField(zap.String("path", "/render")).Len())
	assert.Equal(t, 1, logs.FilterMessage("received a response").Len())
	assert.Contains(t, dump.String(), "/render")
}
