package main

import (
	"github.com/spf13/cobra"

	"github.com/physum/physbot/pkg/app"
	"github.com/physum/physbot/pkg/log"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve role menus and commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer func() { _ = log.Sync() }()
			return app.Run(cmd.Context(), cfg)
		},
	}
}
