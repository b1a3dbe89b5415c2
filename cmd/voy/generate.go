package main

import (
	"github.com/spf13/cobra"

	"github.com/voyager-vpm/voyager/internal/atomicfile"
	"github.com/voyager-vpm/voyager/internal/gate"
	"github.com/voyager-vpm/voyager/internal/generate"
)

func newGenerateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Project the manifest and lockfile into the published index",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := gate.Load(a.cfg.ConfigPath, a.cfg.LockPath())
			if err != nil {
				return err
			}

			output, err := generate.Project(loaded.Manifest, loaded.Lockfile)
			if err != nil {
				return err
			}

			if err := atomicfile.WriteJSON(a.cfg.OutputPath, output); err != nil {
				return err
			}

			a.log.Info("index generated", "path", a.cfg.OutputPath, "packages", len(loaded.Manifest.Packages))
			return nil
		},
	}
}
