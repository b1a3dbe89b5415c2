package main

import (
	"github.com/spf13/cobra"

	"github.com/voyager-vpm/voyager/internal/gate"
	"github.com/voyager-vpm/voyager/internal/upstream"
	"github.com/voyager-vpm/voyager/internal/voyerr"
)

func newLockCommand(a *app) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Refresh the manifest-integrity hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			github, err := upstream.New(a.cfg.GithubToken)
			if err != nil {
				return voyerr.RuntimeInit("failed to build GitHub client: %s", err)
			}

			if err := gate.Refresh(cmd.Context(), a.cfg.ConfigPath, a.cfg.LockPath(), github, check); err != nil {
				return err
			}

			if check {
				a.log.Info("manifest hash is up to date")
			} else {
				a.log.Info("manifest hash refreshed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "only report whether the manifest hash is current, without writing")

	return cmd
}
