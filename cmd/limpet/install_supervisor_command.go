package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"limpet/internal/logging"
	"limpet/internal/supervisor"
)

func newInstallSupervisorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "install-supervisor",
		Short: "Register the platform relaunch mechanism now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Supervisor.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "Supervisor is disabled in config; nothing to install")
				return nil
			}

			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			installer := supervisor.FromConfig(cfg, logger)
			if err := installer.Install(cmd.Context(), exe); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Supervisor mechanism installed")
			return nil
		},
	}
}
