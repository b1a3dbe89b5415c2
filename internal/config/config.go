// Package config resolves voyager's runtime configuration from CLI
// flags, environment variables, and defaults, in that order of
// precedence, using viper.
package config

import (
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/voyager-vpm/voyager/internal/voyerr"
)

const envPrefix = "VOYAGER"

const (
	defaultConfigPath    = "voyager.toml"
	defaultMaxConcurrent = 10
	defaultMaxRetries    = 3
	defaultAssetName     = "package.json"
	defaultOutputPath    = "index.json"
	defaultColor         = "auto"
)

// Config is voyager's fully-resolved runtime configuration.
type Config struct {
	ConfigPath    string `mapstructure:"config"`
	Verbose       bool   `mapstructure:"verbose"`
	Quiet         bool   `mapstructure:"quiet"`
	Color         string `mapstructure:"color"`
	MaxConcurrent int    `mapstructure:"max-concurrent"`
	MaxRetries    int    `mapstructure:"max-retries"`
	GithubToken   string `mapstructure:"github-token"`
	AssetName     string `mapstructure:"asset-name"`
	OutputPath    string `mapstructure:"output-path"`
}

// LockPath returns the lockfile path derived from ConfigPath: the same
// path with its extension replaced by ".lock".
func (c Config) LockPath() string {
	return strings.TrimSuffix(c.ConfigPath, filepath.Ext(c.ConfigPath)) + ".lock"
}

// RegisterFlags adds voyager's persistent flags to flags and binds them
// into v, so that environment variables and defaults only apply when a
// flag was not explicitly set.
func RegisterFlags(flags *pflag.FlagSet, v *viper.Viper) error {
	flags.String("config", defaultConfigPath, "path to the manifest file")
	flags.BoolP("verbose", "v", false, "enable debug-level logging")
	flags.BoolP("quiet", "q", false, "suppress all but warning/error logging")
	flags.String("color", defaultColor, "colorize output: auto, always, never")
	flags.Int("max-concurrent", defaultMaxConcurrent, "maximum concurrent operations (1-50)")
	flags.Int("max-retries", defaultMaxRetries, "maximum retry attempts per request (0-8)")
	flags.String("github-token", "", "GitHub API token for authenticated requests")
	flags.String("asset-name", defaultAssetName, "release asset filename to fetch")
	flags.String("output-path", defaultOutputPath, "path to write the generated index")

	return v.BindPFlags(flags)
}

// Load resolves Config from v, which must already have had
// RegisterFlags applied to it. Flags take precedence over
// VOYAGER_-prefixed environment variables, which take precedence over
// defaults.
func Load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, voyerr.RuntimeInit("failed to decode configuration: %s", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate checks that every bounded field is within voyager's
// accepted range, returning a voyerr.Argument error describing the
// first violation found.
func (c Config) Validate() error {
	if c.MaxConcurrent < 1 || c.MaxConcurrent > 50 {
		return voyerr.Argument("--max-concurrent must be between 1 and 50, got %d", c.MaxConcurrent)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 8 {
		return voyerr.Argument("--max-retries must be between 0 and 8, got %d", c.MaxRetries)
	}
	switch c.Color {
	case "auto", "always", "never":
	default:
		return voyerr.Argument("--color must be one of auto, always, never, got %q", c.Color)
	}
	if c.ConfigPath == "" {
		return voyerr.Argument("--config must not be empty")
	}
	return nil
}
