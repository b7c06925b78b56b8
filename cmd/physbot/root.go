package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/physum/physbot/pkg/app"
	"github.com/physum/physbot/pkg/config"
	"github.com/physum/physbot/pkg/util"
)

var (
	cfg        *config.Config
	configFile string
	envFile    string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "physbot",
		Short:         "Discord bot of the Physum: role menus, FAQ and moderation logs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			var envFiles []string
			if envFile != "" {
				envFiles = append(envFiles, envFile)
			}
			loaded, err := config.Load(viper.New(), configFile, envFiles...)
			if err != nil {
				return err
			}
			cfg = loaded
			return app.SetupLogging(cfg.Log)
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", ".env file loaded before the default locations")

	root.AddCommand(newRunCmd(), newMigrateCmd(), newVersionCmd())
	return root
}

// Execute runs the root command until it returns or an interrupt arrives.
func Execute() {
	ctx, stop := util.InterruptContext(context.Background())
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Fatal:", err)
		stop()
		os.Exit(1)
	}
}
