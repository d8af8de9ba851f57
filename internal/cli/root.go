package cli

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/booking_engine/internal/app"
	"github.com/Freeeeeet/booking_engine/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "engine",
		Short:         "Booking lifecycle engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSweepCmd())
	cmd.AddCommand(NewTokenCmd())
	return cmd
}

// bootstrap загружает конфигурацию и собирает приложение для подкоманды
func bootstrap(ctx context.Context) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg.Environment)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return a, logger, nil
}
