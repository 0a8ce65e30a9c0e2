package config

import (
	_ "embed"
)

//go:embed config_defaults.yaml
var defaultsYAML []byte

var defaults Config

func init() {
	cfg, err := newDefault()
	if err != nil {
		panic(err)
	}
	defaults = *cfg
}

func newDefault() (*Config, error) {
	return parseYAMLInto(&Config{}, defaultsYAML)
}

// Default returns a copy of the default configuration.
func Default() *Config {
	cfg := defaults
	cfg.Filters = nil
	for _, f := range defaults.Filters {
		cfg.Filters = append(cfg.Filters, &Filter{Type: f.Type, Condition: f.Condition})
	}
	return &cfg
}
