// Package config loads the layered tonk.toml configuration via viper,
// matching the teacher's project/global TOML layering but resolved
// against the spf13/viper + pelletier/go-toml/v2 stack instead of
// BurntSushi/toml.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tonk-labs/tonk/internal/core/usecases"
)

// Loader implements usecases.ConfigLoader for TOML configuration files,
// layering environment variables, a project-local tonk.toml, a global
// XDG config directory, and compiled-in defaults.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a config loader that looks for tonk.toml in the
// working directory and then in paths.ConfigHome(). If paths is nil
// only the working directory is searched.
func NewLoader(paths usecases.PathResolver) *Loader {
	v := viper.New()
	v.SetConfigName("tonk")
	v.SetConfigType("toml")
	v.SetEnvPrefix("TONK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("pack.source", ".")
	v.SetDefault("pack.output", "./dist")
	v.SetDefault("pack.watch", false)
	v.SetDefault("pack.debounce", "300ms")
	v.SetDefault("serve.address", "127.0.0.1")
	v.SetDefault("serve.port", 8080)
	v.SetDefault("sync.relay_url", "")

	v.AddConfigPath(".")
	if paths != nil && paths.ConfigHome() != "" {
		v.AddConfigPath(paths.ConfigHome())
	}

	return &Loader{v: v}
}

// Viper exposes the underlying viper instance so the CLI layer can bind
// cobra flags (--output, --port, ...) before Load is called,
// letting flags override tonk.toml and environment values.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load reads tonk.toml (project-local, falling back to the global XDG
// config directory) merged with TONK_-prefixed environment variables,
// bound flags, and compiled-in defaults, and decodes the result into a
// TonkConfig.
func (l *Loader) Load() (*usecases.TonkConfig, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read tonk.toml: %w", err)
		}
	}

	cfg := &usecases.TonkConfig{}
	cfg.Pack.Source = l.v.GetString("pack.source")
	cfg.Pack.Output = l.v.GetString("pack.output")
	cfg.Pack.Ignore = l.v.GetStringSlice("pack.ignore")
	cfg.Pack.Watch = l.v.GetBool("pack.watch")
	cfg.Pack.Debounce = l.v.GetDuration("pack.debounce")
	if cfg.Pack.Debounce == 0 {
		cfg.Pack.Debounce = 300 * time.Millisecond
	}

	cfg.Serve.Address = l.v.GetString("serve.address")
	cfg.Serve.Port = l.v.GetInt("serve.port")

	cfg.Sync.RelayURL = l.v.GetString("sync.relay_url")

	return cfg, nil
}
