package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"limpet/internal/controllerrun"
	"limpet/internal/lifecycle"
)

type runOptions struct {
	headless bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the limpet daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, ctx, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "Run without the terminal surface")
	return cmd
}

func runDaemon(cmd *cobra.Command, ctx *commandContext, opts runOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	code := controllerrun.Run(cmd.Context(), cfg, controllerrun.Options{
		SocketPath: ctx.socketPath(),
		Headless:   opts.headless,
	})
	if code != lifecycle.ExitCodeClean {
		return &exitCodeError{code: code}
	}
	return nil
}
