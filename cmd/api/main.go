package main

import (
	"os"

	"github.com/spf13/cobra"

	"mojocode/api/internal/config"
	"mojocode/api/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfg        config.Config
		configPath string
	)
	root := &cobra.Command{
		Use:          "mojocode-api",
		Short:        "MojoCode workspace API",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if configPath != "" {
				if err := os.Setenv(config.FileEnv, configPath); err != nil {
					return err
				}
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			logger.Init(os.Stdout, cfg.LogLevel)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (overrides "+config.FileEnv+")")

	root.AddCommand(newServeCmd(&cfg), newMigrateCmd(&cfg))
	return root
}
