package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voyager-vpm/voyager/internal/gate"
	"github.com/voyager-vpm/voyager/internal/listing"
)

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <package-id>",
		Short: "Show full detail for a single package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := gate.Load(a.cfg.ConfigPath, a.cfg.LockPath())
			if err != nil {
				return err
			}

			detail, err := listing.Info(loaded.Manifest, loaded.Lockfile, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("%s (%s)\n", detail.Id, detail.Repository)
			for _, v := range detail.Versions {
				fmt.Printf("  %-12s %-12s %s\n", v.Version, v.Tag, v.Url)
			}
			return nil
		},
	}
}
