package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voyager-vpm/voyager/internal/lockfile"
	"github.com/voyager-vpm/voyager/internal/manifest"
	"github.com/voyager-vpm/voyager/internal/listing"
	"github.com/voyager-vpm/voyager/internal/txn"
)

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every package in the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			// list is exempt from the manifest-hash gate but still has to
			// drain a pending transaction before reading either file.
			if err := txn.Recover(a.cfg.ConfigPath, a.cfg.LockPath()); err != nil {
				return err
			}

			m, err := manifest.Load(a.cfg.ConfigPath)
			if err != nil {
				return err
			}

			lf, err := lockfile.LoadOrDefault(a.cfg.LockPath())
			if err != nil {
				lf = nil
			}

			for _, summary := range listing.List(m, lf) {
				newest := summary.NewestTag
				if newest == "" {
					newest = "-"
				}
				fmt.Printf("%-40s %-24s %5d versions  newest: %s\n",
					summary.Id, summary.Repository, summary.LockedVersionCount, newest)
			}
			return nil
		},
	}
}
