package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API and background sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, logger, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close()

			logger.Info("Starting booking engine")
			if err := a.Run(ctx); err != nil {
				logger.Error("Engine stopped with error", zap.Error(err))
				return err
			}
			logger.Info("Booking engine stopped")
			return nil
		},
	}
}
