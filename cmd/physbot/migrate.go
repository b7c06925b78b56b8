package main

import (
	"github.com/spf13/cobra"

	"github.com/physum/physbot/pkg/app"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Migrate(cmd.Context(), cfg.Database.Path)
		},
	}
}
