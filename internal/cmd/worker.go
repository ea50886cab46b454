package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfields/txsentry/internal/jobs/inmemory"
	"github.com/jfields/txsentry/internal/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background job workers",
	Long: `Worker starts the job queue and processes import and rule evaluation
jobs until interrupted. Shutdown waits for in-flight jobs to finish.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	log := logger.FromContext(ctx)

	store := inmemory.NewStore()
	queue := inmemory.NewQueue(a.cfg.Jobs.BufferSize, a.cfg.Jobs.Workers, store)
	a.disp.Store = store

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := queue.Start(runCtx, a.disp.Handle); err != nil {
		return err
	}
	log.Info().Int("workers", a.cfg.Jobs.Workers).Msg("workers started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	return queue.Stop(stopCtx)
}
