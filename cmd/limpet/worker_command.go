package main

import (
	"os"

	"github.com/spf13/cobra"

	"limpet/internal/worker"
)

// newWorkerCommand is the payload entrypoint the executor spawns. It is
// hidden from help output: users never invoke it directly. The process
// writes its stream to stdout, exits on its own, and is never signaled by
// the parent.
func newWorkerCommand() *cobra.Command {
	var limit int
	var progressEvery int

	cmd := &cobra.Command{
		Use:    "worker",
		Hidden: true,
		Short:  "Run the background workload in this process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return worker.Run(os.Stdout, worker.Options{
				PrimeLimit:    limit,
				ProgressEvery: progressEvery,
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 2_000_000, "Exclusive upper bound of the prime sieve")
	cmd.Flags().IntVar(&progressEvery, "progress-every", 100_000, "Candidates between progress lines")
	return cmd
}
