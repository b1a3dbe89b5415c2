package main

import (
	"github.com/spf13/cobra"

	"github.com/voyager-vpm/voyager/internal/cliwizard"
	"github.com/voyager-vpm/voyager/internal/lockfile"
	"github.com/voyager-vpm/voyager/internal/manifest"
	"github.com/voyager-vpm/voyager/internal/txn"
	"github.com/voyager-vpm/voyager/internal/voyerr"
)

func newInitCommand(a *app) *cobra.Command {
	var id, name, author, url string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			vpm := manifest.Vpm{Id: id, Name: name, Author: author, Url: url}

			if id == "" && name == "" && author == "" && url == "" {
				prompted, err := cliwizard.NonInteractive().PromptVpm(cmd.Context())
				if err != nil {
					return err
				}
				vpm = prompted
			}

			m := manifest.New(vpm)
			if err := m.Validate(); err != nil {
				return err
			}

			hash, err := manifest.ComputeHash(m)
			if err != nil {
				return voyerr.TomlSerialize(a.cfg.ConfigPath, err)
			}
			lf := lockfile.New()
			lf.ManifestHash = hash

			if err := txn.SaveManifestAndLock(m, lf, a.cfg.ConfigPath, a.cfg.LockPath()); err != nil {
				return err
			}

			a.log.Info("manifest created", "path", a.cfg.ConfigPath, "id", vpm.Id)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "reverse-domain id for this VPM listing")
	cmd.Flags().StringVar(&name, "name", "", "display name for this VPM listing")
	cmd.Flags().StringVar(&author, "author", "", "author of this VPM listing")
	cmd.Flags().StringVar(&url, "url", "", "homepage URL for this VPM listing")

	return cmd
}
