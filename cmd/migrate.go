package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the document store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// initApp migrates on open.
		env, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.StoreOffline() {
			return eris.Errorf("store configuration incomplete: missing %v", cfg.MissingStoreKeys())
		}

		zap.L().Info("store migrated",
			zap.String("driver", cfg.Store.Driver),
			zap.String("namespace", cfg.Store.Namespace),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
