// Package config provides typed configuration for postlens, decoded from
// viper's merged view of config file, environment, and defaults.
package config

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// POSTLENS_SERVER_PORT.
const EnvPrefix = "POSTLENS"

// Load decodes the merged viper settings into a typed Config.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Store.URL == "" && cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	return cfg, nil
}

// DefaultStorePath returns the default database file location.
func DefaultStorePath() string {
	return "./postlens.db"
}
