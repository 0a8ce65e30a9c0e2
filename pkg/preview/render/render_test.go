package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stateful/triptych/pkg/document"
	"github.com/stateful/triptych/pkg/preview/markers"
)

func newTestServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		if r.Method != http.MethodPost || r.URL.Path != "/render" {
			http.NotFound(w, r)
			return
		}

		var req renderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
			return
		}
		if req.Source == "fail" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: "cannot typeset"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(renderResponse{
			Pages: []string{`<svg><rect fill="#fefefe00"/></svg>`, string(req.Settings.Captions.Position)},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRender(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, &calls)

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	pages, err := c.Render(context.Background(), "# Title", document.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, []markers.Page{`<svg><rect fill="#fefefe00"/></svg>`, "below"}, pages)
	assert.EqualValues(t, 1, calls.Load())

	t.Run("Cached", func(t *testing.T) {
		again, err := c.Render(context.Background(), "# Title", document.DefaultSettings())
		require.NoError(t, err)
		assert.Equal(t, pages, again)
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("SettingsAreKeyed", func(t *testing.T) {
		settings := document.DefaultSettings()
		settings.Captions.Position = document.CaptionAbove

		pages, err := c.Render(context.Background(), "# Title", settings)
		require.NoError(t, err)
		assert.Equal(t, markers.Page("above"), pages[1])
		assert.EqualValues(t, 2, calls.Load())
	})
}

func TestClientRenderWithoutCache(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, &calls)

	c, err := NewClient(srv.URL, WithCacheSize(0))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := c.Render(context.Background(), "text", document.DefaultSettings())
		require.NoError(t, err)
	}
	assert.EqualValues(t, 2, calls.Load())
}

func TestClientRenderErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, &calls)

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	t.Run("Status", func(t *testing.T) {
		_, err := c.Render(context.Background(), "fail", document.DefaultSettings())
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusUnprocessableEntity, statusErr.StatusCode)
		assert.Equal(t, "cannot typeset", statusErr.Message)
	})

	t.Run("FailuresAreNotCached", func(t *testing.T) {
		before := calls.Load()
		_, err := c.Render(context.Background(), "fail", document.DefaultSettings())
		require.Error(t, err)
		assert.Equal(t, before+1, calls.Load())
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Render(ctx, "cancelled", document.DefaultSettings())
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewClientInvalidURL(t *testing.T) {
	_, err := NewClient("ftp://example.com")
	assert.Error(t, err)

	_, err = NewClient("://")
	assert.Error(t, err)
}
