package ffnet

import (
	"io"

	"gopkg.in/yaml.v3"
)

// Config describes a network in declarative form, suitable for yaml
// files shipped alongside training configs.
type Config struct {
	Sizes           []int    `yaml:"sizes"`            // full layer chain, input size first
	Activations     []string `yaml:"activations"`      // one per layer transition
	UseLayerNorm    bool     `yaml:"use_layer_norm"`   // normalize hidden pre-activations
	NormalizeOutput bool     `yaml:"normalize_output"` // L2-normalize output rows
	Seed            int64    `yaml:"seed"`             // weight init seed, 0 means default
}

// FromConfig builds a network from a declarative config.
func FromConfig(cfg *Config) (*Network, error) {
	if cfg == nil {
		return nil, &ConfigError{Reason: "nil config"}
	}
	opts := []Option{
		WithLayerNorm(cfg.UseLayerNorm),
		WithNormalizeOutput(cfg.NormalizeOutput),
	}
	if cfg.Seed != 0 {
		opts = append(opts, WithSeed(cfg.Seed))
	}
	return New(cfg.Sizes, cfg.Activations, opts...)
}

// LoadConfig reads a yaml network description.
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
