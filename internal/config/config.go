package config

import (
	"bytes"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/stateful/triptych/pkg/preview/scrollsync"
)

const VersionV1alpha1 = "v1alpha1"

// Config is the configuration of triptych, read from triptych.yaml
// files layered over the embedded defaults.
type Config struct {
	Version string `yaml:"version" validate:"required,eq=v1alpha1"`

	Log        ConfigLog        `yaml:"log"`
	Server     ConfigServer     `yaml:"server"`
	Store      ConfigStore      `yaml:"store"`
	Renderer   ConfigRenderer   `yaml:"renderer"`
	History    ConfigHistory    `yaml:"history"`
	ScrollSync ConfigScrollSync `yaml:"scroll_sync"`

	// Filters select blocks listed by the CLI. All must pass.
	Filters []*Filter `yaml:"filters" validate:"dive"`
}

type ConfigLog struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Verbose bool   `yaml:"verbose"`
	JSON    bool   `yaml:"json"`
}

type ConfigServer struct {
	Address         string        `yaml:"address" validate:"required,hostname_port"`
	SessionCapacity int           `yaml:"session_capacity" validate:"gte=1"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

type ConfigStore struct {
	Dir string `yaml:"dir" validate:"required"`
}

type ConfigRenderer struct {
	// URL of the typesetting service. Preview is disabled when empty.
	URL        string        `yaml:"url" validate:"omitempty,http_url"`
	Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
	CacheSize  int           `yaml:"cache_size" validate:"gte=0"`
	MarkerFill string        `yaml:"marker_fill" validate:"required"`
}

type ConfigHistory struct {
	Capacity int `yaml:"capacity" validate:"gte=1,lte=10000"`
}

type ConfigScrollSync struct {
	AnchorOffset    float64       `yaml:"anchor_offset" validate:"gte=0"`
	EditorSuppress  time.Duration `yaml:"editor_suppress" validate:"gte=0"`
	PreviewSuppress time.Duration `yaml:"preview_suppress" validate:"gte=0"`
	ActiveAnchorTTL time.Duration `yaml:"active_anchor_ttl" validate:"gt=0"`
	MaxRetries      int           `yaml:"max_retries" validate:"gte=0"`
}

// ScrollSyncConfig converts the scroll sync and renderer sections
// into the engine configuration.
func (c *Config) ScrollSyncConfig() scrollsync.Config {
	return scrollsync.Config{
		AnchorOffset:    c.ScrollSync.AnchorOffset,
		EditorSuppress:  c.ScrollSync.EditorSuppress,
		PreviewSuppress: c.ScrollSync.PreviewSuppress,
		ActiveAnchorTTL: c.ScrollSync.ActiveAnchorTTL,
		MaxRetries:      c.ScrollSync.MaxRetries,
		MarkerFill:      c.Renderer.MarkerFill,
	}
}

// ParseYAML parses config layers, each overriding the previous ones,
// on top of the defaults.
func ParseYAML(data ...[]byte) (*Config, error) {
	cfg := Default()
	return parseYAMLInto(cfg, data...)
}

func parseYAMLInto(cfg *Config, data ...[]byte) (*Config, error) {
	for _, layer := range data {
		version, err := parseVersionFromYAML(layer)
		if err != nil {
			return nil, err
		}
		if version != VersionV1alpha1 {
			return nil, errors.Errorf("unknown version: %q", version)
		}

		if err := decodeStrict(layer, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s config", version)
		}
	}

	if err := validateConfig(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to validate config")
	}

	return cfg, nil
}

type versionOnly struct {
	Version string `yaml:"version"`
}

func parseVersionFromYAML(data []byte) (string, error) {
	var result versionOnly

	if err := yaml.Unmarshal(data, &result); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal version")
	}

	return result.Version, nil
}

// decodeStrict decodes data over the fields already set in cfg and
// rejects unknown keys.
func decodeStrict(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return errors.WithStack(err)
	}

	for _, f := range cfg.Filters {
		if err := f.Compile(); err != nil {
			return errors.Wrapf(err, "filter %q", f.Condition)
		}
	}

	return nil
}
