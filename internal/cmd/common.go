package cmd

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stateful/triptych/internal/client"
	"github.com/stateful/triptych/internal/config"
	"github.com/stateful/triptych/internal/log"
	"github.com/stateful/triptych/internal/version"
	"github.com/stateful/triptych/pkg/document/markup"
)

const fetchTimeout = 10 * time.Second

// getConfig loads the config for a command operating on docPath. An
// empty docPath uses the current directory.
func getConfig(docPath string) (*config.Config, error) {
	if fConfig != "" {
		data, err := os.ReadFile(fConfig)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config %s", fConfig)
		}
		return config.ParseYAML(data)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to get cwd")
	}

	chainPath := ""
	if docPath != "" && docPath != "-" && filepath.IsLocal(docPath) {
		chainPath = filepath.ToSlash(docPath)
	}

	loader := config.NewLoader(config.FileName, os.DirFS(cwd))
	chain, err := loader.ConfigChain(chainPath)
	if err != nil {
		return nil, err
	}
	return config.ParseYAML(chain...)
}

// getLogger configures the global logger from the config, with the
// command line flags taking precedence.
func getLogger(cfg *config.Config) (*zap.Logger, error) {
	opts := log.Options{
		Enabled: cfg.Log.Enabled,
		Path:    cfg.Log.Path,
		Verbose: cfg.Log.Verbose,
		JSON:    cfg.Log.JSON,
	}
	if fLogEnabled || fLogVerbose {
		opts.Enabled = true
	}
	if fLogVerbose {
		opts.Verbose = true
	}
	return log.Configure(opts)
}

func setup(docPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := getConfig(docPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := getLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newCodec(logger *zap.Logger) *markup.Codec {
	return markup.New(markup.WithLogger(logger))
}

func newHTTPClient(logger *zap.Logger) *http.Client {
	return client.NewHTTPClient(
		&http.Client{Timeout: fetchTimeout},
		client.WithUserAgent(version.BaseVersion()),
		client.WithLogger(logger),
	)
}

// readInput reads a document from a file, from stdin ("-") or from an
// https:// URL.
func readInput(cmd *cobra.Command, name string, logger *zap.Logger) ([]byte, error) {
	switch {
	case name == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		return data, errors.Wrap(err, "failed to read from stdin")
	case strings.HasPrefix(name, "https://"):
		resp, err := newHTTPClient(logger).Get(name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get a file %q", name)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return nil, errors.Errorf("failed to get a file %q: %s", name, resp.Status)
		}
		data, err := io.ReadAll(resp.Body)
		return data, errors.Wrap(err, "failed to read body")
	default:
		data, err := os.ReadFile(name)
		return data, errors.Wrapf(err, "failed to read file %q", name)
	}
}
