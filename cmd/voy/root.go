package main

import (
	"github.com/spf13/cobra"

	"github.com/voyager-vpm/voyager/internal/config"
)

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "voy",
		Short:         "Curate and publish a VPM package index",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.resolve(cmd)
		},
	}

	if err := config.RegisterFlags(root.PersistentFlags(), a.viper); err != nil {
		panic(err)
	}

	root.AddCommand(
		newInitCommand(a),
		newAddCommand(a),
		newRemoveCommand(a),
		newLockCommand(a),
		newFetchCommand(a),
		newGenerateCommand(a),
		newValidateCommand(a),
		newListCommand(a),
		newInfoCommand(a),
		newCompletionsCommand(),
	)

	return root
}
