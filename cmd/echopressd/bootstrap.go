package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"echopress/internal/config"
	"echopress/internal/daemonrun"
)

var version = "dev"

type daemonFlags struct {
	configPath  string
	logLevel    string
	development bool
}

func newRootCommand() *cobra.Command {
	flags := &daemonFlags{}
	cmd := &cobra.Command{
		Use:           "echopressd",
		Short:         "EchoPress conversion daemon",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    flags.logLevel,
				Development: flags.development,
			})
		},
	}
	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&flags.development, "development", false, "Include source locations in log output")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if !exists && path != "" {
		return nil, fmt.Errorf("config file %s not found", resolved)
	}
	return cfg, nil
}
