package main

import (
	"github.com/spf13/cobra"

	"github.com/voyager-vpm/voyager/internal/fetch"
	"github.com/voyager-vpm/voyager/internal/gate"
	"github.com/voyager-vpm/voyager/internal/manifest"
	"github.com/voyager-vpm/voyager/internal/repository"
	"github.com/voyager-vpm/voyager/internal/txn"
	"github.com/voyager-vpm/voyager/internal/voyerr"
)

func newAddCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <package-id> <owner/repo>",
		Short: "Add a package to the manifest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, repoArg := args[0], args[1]

			loaded, err := gate.Load(a.cfg.ConfigPath, a.cfg.LockPath())
			if err != nil {
				return err
			}

			for _, pkg := range loaded.Manifest.Packages {
				if pkg.Id == id {
					return voyerr.ConfigValidation("package %q is already in the manifest", id)
				}
			}

			repo, err := repository.Parse(repoArg)
			if err != nil {
				return err
			}

			loaded.Manifest.Packages = append(loaded.Manifest.Packages, manifest.Package{Id: id, Repository: repo})
			if err := loaded.Manifest.Validate(); err != nil {
				return err
			}

			fetch.ReconcileLockfile(loaded.Manifest, loaded.Lockfile)

			newHash, err := manifest.ComputeHash(loaded.Manifest)
			if err != nil {
				return voyerr.TomlSerialize(a.cfg.ConfigPath, err)
			}
			loaded.Lockfile.ManifestHash = newHash

			if err := txn.SaveManifestAndLock(loaded.Manifest, loaded.Lockfile, a.cfg.ConfigPath, a.cfg.LockPath()); err != nil {
				return err
			}

			a.log.Info("package added", "id", id, "repository", repo.String())
			return nil
		},
	}
}
