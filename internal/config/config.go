// Package config loads nodetree settings from defaults, an optional YAML
// file and NODETREE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/jward/nodetree/internal/signature"
)

// Config is the complete nodetree configuration.
type Config struct {
	RegistryURL string          `json:"registryUrl" mapstructure:"registry_url"`
	CacheDir    string          `json:"cacheDir" mapstructure:"cache_dir"`
	Depth       int             `json:"depth" mapstructure:"depth"`
	Workers     int             `json:"workers" mapstructure:"workers"`
	Offline     bool            `json:"offline" mapstructure:"offline"`
	Exclude     []string        `json:"exclude" mapstructure:"exclude"`
	Wrappers    []WrapperConfig `json:"wrappers" mapstructure:"wrappers"`
	ASCII       bool            `json:"ascii" mapstructure:"ascii"`
	NoColor     bool            `json:"noColor" mapstructure:"no_color"`
}

// WrapperConfig registers an extra wrapper call for signature unwrapping.
// Rule is "arg" (the callable is positional argument Index) or "field" (the
// callable is property Field of the options object).
type WrapperConfig struct {
	Name  string `json:"name" mapstructure:"name"`
	Rule  string `json:"rule" mapstructure:"rule"`
	Index int    `json:"index" mapstructure:"index"`
	Field string `json:"field" mapstructure:"field"`
}

// DefaultRegistryURL is the public npm registry.
const DefaultRegistryURL = "https://registry.npmjs.org"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		RegistryURL: DefaultRegistryURL,
		CacheDir:    defaultCacheDir(),
		Depth:       2,
	}
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "nodetree")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "nodetree")
	}
	return filepath.Join(os.TempDir(), "nodetree")
}

// Load reads the configuration. An explicit path must exist; otherwise
// nodetree.yaml is looked up in the working directory and in
// $HOME/.config/nodetree, and a missing file yields the defaults.
// Environment variables (NODETREE_DEPTH, NODETREE_CACHE_DIR, ...) override
// file values. NO_COLOR disables colour.
func Load(path string) (*Config, error) {
	def := DefaultConfig()
	v := viper.New()

	v.SetDefault("registry_url", def.RegistryURL)
	v.SetDefault("cache_dir", def.CacheDir)
	v.SetDefault("depth", def.Depth)
	v.SetDefault("workers", def.Workers)
	v.SetDefault("offline", false)
	v.SetDefault("exclude", []string{})
	v.SetDefault("ascii", false)
	v.SetDefault("no_color", false)

	v.SetEnvPrefix("NODETREE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("nodetree")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "nodetree"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		cfg.NoColor = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.RegistryURL == "" {
		return &ConfigError{Field: "registry_url", Message: "must not be empty"}
	}
	if !strings.HasPrefix(c.RegistryURL, "http://") && !strings.HasPrefix(c.RegistryURL, "https://") {
		return &ConfigError{Field: "registry_url", Message: "must be an http(s) URL"}
	}
	if c.CacheDir == "" {
		return &ConfigError{Field: "cache_dir", Message: "must not be empty"}
	}
	if c.Depth < -1 {
		return &ConfigError{Field: "depth", Message: "must be -1 (unbounded) or greater"}
	}
	if c.Workers < 0 {
		return &ConfigError{Field: "workers", Message: "must not be negative"}
	}
	for i, w := range c.Wrappers {
		if _, err := w.rule(); err != nil {
			return &ConfigError{Field: fmt.Sprintf("wrappers[%d]", i), Message: err.Error()}
		}
	}
	return nil
}

// Registry returns the default wrapper registry extended with the
// configured wrappers.
func (c *Config) Registry() *signature.Registry {
	reg := signature.DefaultRegistry()
	for _, w := range c.Wrappers {
		if rule, err := w.rule(); err == nil {
			reg.Register(w.Name, rule)
		}
	}
	return reg
}

func (w WrapperConfig) rule() (signature.Rule, error) {
	if w.Name == "" {
		return nil, errors.New("name must not be empty")
	}
	switch w.Rule {
	case "arg", "":
		if w.Index < 0 {
			return nil, errors.New("index must not be negative")
		}
		return signature.ArgPosition{Index: w.Index}, nil
	case "field":
		if w.Field == "" {
			return nil, errors.New("field rule needs a field name")
		}
		return signature.OptionsField{Field: w.Field}, nil
	}
	return nil, fmt.Errorf("unknown rule %q (want arg or field)", w.Rule)
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
