package main

import (
	"github.com/spf13/cobra"

	"github.com/voyager-vpm/voyager/internal/fetch"
	"github.com/voyager-vpm/voyager/internal/gate"
	"github.com/voyager-vpm/voyager/internal/manifest"
	"github.com/voyager-vpm/voyager/internal/txn"
	"github.com/voyager-vpm/voyager/internal/voyerr"
)

func newRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <package-id>",
		Short: "Remove a package from the manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			loaded, err := gate.Load(a.cfg.ConfigPath, a.cfg.LockPath())
			if err != nil {
				return err
			}

			kept := loaded.Manifest.Packages[:0]
			found := false
			for _, pkg := range loaded.Manifest.Packages {
				if pkg.Id == id {
					found = true
					continue
				}
				kept = append(kept, pkg)
			}
			if !found {
				return voyerr.ConfigValidation("unknown package %q", id)
			}
			loaded.Manifest.Packages = kept

			fetch.ReconcileLockfile(loaded.Manifest, loaded.Lockfile)

			newHash, err := manifest.ComputeHash(loaded.Manifest)
			if err != nil {
				return voyerr.TomlSerialize(a.cfg.ConfigPath, err)
			}
			loaded.Lockfile.ManifestHash = newHash

			if err := txn.SaveManifestAndLock(loaded.Manifest, loaded.Lockfile, a.cfg.ConfigPath, a.cfg.LockPath()); err != nil {
				return err
			}

			a.log.Info("package removed", "id", id)
			return nil
		},
	}
}
