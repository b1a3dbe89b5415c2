package main

import (
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/voyager-vpm/voyager/internal/config"
)

// app carries the state every subcommand needs: the resolved
// configuration and the root logger it was built from. It is
// populated by the root command's PersistentPreRunE, once flags have
// been parsed, so it is never valid to read from a command's
// constructor.
type app struct {
	viper *viper.Viper
	cfg   *config.Config
	log   hclog.Logger
}

func newApp() *app {
	return &app{viper: viper.New()}
}

func (a *app) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(a.viper)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = buildLogger(cfg)
	return nil
}

func buildLogger(cfg *config.Config) hclog.Logger {
	level := hclog.Info
	switch {
	case cfg.Verbose:
		level = hclog.Debug
	case cfg.Quiet:
		level = hclog.Warn
	}

	color := hclog.ColorOff
	switch cfg.Color {
	case "always":
		color = hclog.ForceColor
	case "auto":
		color = hclog.AutoColor
	}
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
		color = hclog.ColorOff
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:            "voy",
		Level:           level,
		Color:           color,
		Output:          os.Stderr,
		IncludeLocation: false,
	})
}
