// Package render turns document source into rendered pages by calling
// an external typesetting service.
package render

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stateful/triptych/internal/client"
	"github.com/stateful/triptych/internal/lru"
	"github.com/stateful/triptych/pkg/document"
	"github.com/stateful/triptych/pkg/preview/markers"
)

// Renderer produces the pages of a document. Each page contains one
// marker per block in flattened order; the last page holding markers
// carries an extra sentinel marker.
type Renderer interface {
	Render(ctx context.Context, source string, settings document.Settings) ([]markers.Page, error)
}

const (
	DefaultTimeout   = 30 * time.Second
	DefaultCacheSize = 16

	renderPath = "/render"
)

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("renderer responded with %d: %s", e.StatusCode, e.Message)
}

type renderRequest struct {
	Source   string            `json:"source"`
	Settings document.Settings `json:"settings"`
}

type renderResponse struct {
	Pages []string `json:"pages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type cachedPages struct {
	key   string
	pages []markers.Page
}

func (c *cachedPages) Identifier() string { return c.key }

// Client implements Renderer over HTTP. Responses are cached by the
// hash of the request.
type Client struct {
	endpoint   string
	httpClient *http.Client
	cache      *lru.Cache[*cachedPages]
	logger     *zap.Logger

	cacheSize int
	timeout   time.Duration
	transport []client.Option
}

var _ Renderer = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithCacheSize sets the number of cached page sets. Zero disables
// the cache.
func WithCacheSize(n int) Option {
	return func(c *Client) {
		c.cacheSize = n
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDump prints every request and response to out.
func WithDump(out io.Writer) Option {
	return func(c *Client) {
		c.transport = append(c.transport, client.WithDump(out))
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid renderer URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("invalid renderer URL %q: scheme must be http or https", baseURL)
	}
	u = u.JoinPath(renderPath)

	c := &Client{
		endpoint:  u.String(),
		logger:    zap.NewNop(),
		cacheSize: DefaultCacheSize,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.httpClient = client.NewHTTPClient(
		c.httpClient,
		append([]client.Option{
			client.WithContentType("application/json"),
			client.WithLogger(c.logger),
		}, c.transport...)...,
	)
	if c.cacheSize > 0 {
		c.cache = lru.NewCache[*cachedPages](c.cacheSize)
	}

	return c, nil
}

// Render returns the pages for the source. Identical requests are
// served from the cache.
func (c *Client) Render(ctx context.Context, source string, settings document.Settings) ([]markers.Page, error) {
	body, err := json.Marshal(renderRequest{Source: source, Settings: settings})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	sum := sha256.Sum256(body)
	key := hex.EncodeToString(sum[:])

	if c.cache != nil {
		if cached, ok := c.cache.GetByID(key); ok {
			c.logger.Debug("render cache hit", zap.String("key", key))
			return clonePages(cached.pages), nil
		}
	}

	pages, err := c.do(ctx, body)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Add(&cachedPages{key: key, pages: pages})
	}
	return clonePages(pages), nil
}

func (c *Client) do(ctx context.Context, body []byte) ([]markers.Page, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to call renderer")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e errorResponse
		if err := json.Unmarshal(data, &e); err == nil && e.Error != "" {
			return nil, &StatusError{StatusCode: resp.StatusCode, Message: e.Error}
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(data))}
	}

	var result renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to decode renderer response")
	}

	pages := make([]markers.Page, len(result.Pages))
	for i, p := range result.Pages {
		pages[i] = markers.Page(p)
	}
	return pages, nil
}

func clonePages(pages []markers.Page) []markers.Page {
	return append([]markers.Page(nil), pages...)
}
