// Package client builds HTTP clients from composable transport options.
package client

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/henvic/httpretty"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
)

type Option func(http.RoundTripper) http.RoundTripper

func WithUserAgent(version string) Option {
	return setHeaderFn("User-Agent", func() (string, error) {
		return fmt.Sprintf("triptych/%s (%s; %s)", version, runtime.GOOS, runtime.GOARCH), nil
	})
}

func WithContentType(value string) Option {
	return setHeaderFn("Content-Type", func() (string, error) {
		return value, nil
	})
}

func WithLogger(log *zap.Logger) Option {
	return func(rt http.RoundTripper) http.RoundTripper {
		return funcTripper(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			log.Debug(
				"send a request",
				zap.String("host", r.URL.Host),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)
			resp, err := rt.RoundTrip(r)
			if resp != nil {
				log.Debug(
					"received a response",
					zap.Int("status", resp.StatusCode),
					zap.Duration("latency", time.Since(start)),
				)
			}
			return resp, err
		})
	}
}

// WithDump prints requests and responses to out. Colors are used when
// out is a terminal.
func WithDump(out io.Writer) Option {
	logger := &httpretty.Logger{
		Time:            true,
		TLS:             false,
		Colors:          isTerminal(out),
		RequestHeader:   true,
		RequestBody:     true,
		ResponseHeader:  true,
		ResponseBody:    true,
		Formatters:      []httpretty.Formatter{&httpretty.JSONFormatter{}},
		MaxResponseBody: 50000,
	}
	logger.SetOutput(out)
	return logger.RoundTripper
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func NewHTTPClient(client *http.Client, opts ...Option) *http.Client {
	if client == nil {
		client = &http.Client{
			Transport: http.DefaultTransport,
		}
	}
	if client.Transport == nil {
		client.Transport = http.DefaultTransport
	}
	for _, o := range opts {
		client.Transport = o(client.Transport)
	}
	return client
}

type funcTripper func(*http.Request) (*http.Response, error)

func (f funcTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func setHeaderFn(name string, valueGetter func() (string, error)) Option {
	return func(rt http.RoundTripper) http.RoundTripper {
		return funcTripper(func(r *http.Request) (*http.Response, error) {
			value, err := valueGetter()
			if err != nil {
				return nil, err
			}
			if r.Header.Get(name) == "" {
				r.Header.Set(name, value)
			}
			return rt.RoundTrip(r)
		})
	}
}
