package main

import (
	"github.com/spf13/cobra"

	"github.com/voyager-vpm/voyager/internal/fetch"
	"github.com/voyager-vpm/voyager/internal/gate"
	"github.com/voyager-vpm/voyager/internal/manifest"
	"github.com/voyager-vpm/voyager/internal/upstream"
	"github.com/voyager-vpm/voyager/internal/voyerr"
)

func newFetchCommand(a *app) *cobra.Command {
	var wipe bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and validate new releases for every manifest package",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := gate.Load(a.cfg.ConfigPath, a.cfg.LockPath())
			if err != nil {
				return err
			}

			if wipe {
				for i := range loaded.Lockfile.Packages {
					loaded.Lockfile.Packages[i].Versions = nil
				}
			}

			github, err := upstream.New(a.cfg.GithubToken)
			if err != nil {
				return voyerr.RuntimeInit("failed to build GitHub client: %s", err)
			}

			pipeline := fetch.New(github, fetch.Config{
				MaxConcurrent: a.cfg.MaxConcurrent,
				MaxRetries:    a.cfg.MaxRetries,
				AssetName:     a.cfg.AssetName,
			}, a.log.Named("fetch"))

			progress := &logProgress{log: a.log.Named("fetch")}
			if err := pipeline.Fetch(cmd.Context(), loaded.Manifest, loaded.Lockfile, progress); err != nil {
				return err
			}

			newHash, err := manifest.ComputeHash(loaded.Manifest)
			if err != nil {
				return voyerr.TomlSerialize(a.cfg.ConfigPath, err)
			}
			loaded.Lockfile.ManifestHash = newHash

			if err := loaded.Lockfile.Save(a.cfg.LockPath()); err != nil {
				return err
			}

			a.log.Info("fetch completed", "packages", len(loaded.Manifest.Packages))
			return nil
		},
	}

	cmd.Flags().BoolVar(&wipe, "wipe", false, "clear all locked versions before fetching")

	return cmd
}

type logProgress struct {
	log interface {
		Debug(msg string, args ...interface{})
		Info(msg string, args ...interface{})
	}
}

func (p *logProgress) OnFetchingReleases(packageID string) {
	p.log.Debug("fetching releases", "package_id", packageID)
}

func (p *logProgress) OnDownloading(packageID string, versionCount int) {
	p.log.Debug("downloading releases", "package_id", packageID, "count", versionCount)
}

func (p *logProgress) OnDone(packageID string, existing, new int) {
	p.log.Info("package fetch done", "package_id", packageID, "existing", existing, "new", new)
}
