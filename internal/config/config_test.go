package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func newTestFlags(t *testing.T) (*pflag.FlagSet, *viper.Viper) {
	t.Helper()
	flags := pflag.NewFlagSet("voy", pflag.ContinueOnError)
	v := viper.New()
	if err := RegisterFlags(flags, v); err != nil {
		t.Fatal(err)
	}
	return flags, v
}

func TestLoad_AppliesDefaults(t *testing.T) {
	_, v := newTestFlags(t)

	c, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ConfigPath != defaultConfigPath {
		t.Fatalf("expected default config path, got %q", c.ConfigPath)
	}
	if c.MaxConcurrent != defaultMaxConcurrent {
		t.Fatalf("expected default max-concurrent, got %d", c.MaxConcurrent)
	}
	if c.Color != defaultColor {
		t.Fatalf("expected default color, got %q", c.Color)
	}
}

func TestLoad_FlagOverridesDefault(t *testing.T) {
	flags, v := newTestFlags(t)
	if err := flags.Parse([]string{"--max-concurrent=25"}); err != nil {
		t.Fatal(err)
	}

	c, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.MaxConcurrent != 25 {
		t.Fatalf("expected flag override, got %d", c.MaxConcurrent)
	}
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	_, v := newTestFlags(t)
	t.Setenv("VOYAGER_ASSET_NAME", "widget.json")

	c, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.AssetName != "widget.json" {
		t.Fatalf("expected env override, got %q", c.AssetName)
	}
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	flags, v := newTestFlags(t)
	t.Setenv("VOYAGER_MAX_RETRIES", "7")
	if err := flags.Parse([]string{"--max-retries=2"}); err != nil {
		t.Fatal(err)
	}

	c, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.MaxRetries != 2 {
		t.Fatalf("expected flag to win over env, got %d", c.MaxRetries)
	}
}

func TestLoad_RejectsMaxConcurrentOutOfRange(t *testing.T) {
	for _, v := range []string{"0", "51"} {
		flags, viperInst := newTestFlags(t)
		if err := flags.Parse([]string{"--max-concurrent=" + v}); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(viperInst); err == nil {
			t.Fatalf("expected error for max-concurrent=%s", v)
		}
	}
}

func TestLoad_AcceptsMaxConcurrentBoundaries(t *testing.T) {
	for _, v := range []string{"1", "50"} {
		flags, viperInst := newTestFlags(t)
		if err := flags.Parse([]string{"--max-concurrent=" + v}); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(viperInst); err != nil {
			t.Fatalf("unexpected error for max-concurrent=%s: %v", v, err)
		}
	}
}

func TestLoad_RejectsMaxRetriesOutOfRange(t *testing.T) {
	flags, v := newTestFlags(t)
	if err := flags.Parse([]string{"--max-retries=9"}); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(v); err == nil {
		t.Fatal("expected error for max-retries=9")
	}
}

func TestLoad_RejectsUnknownColor(t *testing.T) {
	flags, v := newTestFlags(t)
	if err := flags.Parse([]string{"--color=rainbow"}); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(v); err == nil {
		t.Fatal("expected error for invalid color")
	}
}

func TestLockPath_ReplacesExtension(t *testing.T) {
	c := Config{ConfigPath: "voyager.toml"}
	if got := c.LockPath(); got != "voyager.lock" {
		t.Fatalf("expected voyager.lock, got %q", got)
	}
}

func TestLockPath_HandlesNoExtension(t *testing.T) {
	c := Config{ConfigPath: "voyager"}
	if got := c.LockPath(); got != "voyager.lock" {
		t.Fatalf("expected voyager.lock, got %q", got)
	}
}
