package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/app"
	"github.com/spf13/cobra"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations",
	}
	cmd.AddCommand(newMigrateStepCmd("up", "Apply all pending migrations", (*app.Migrator).Up))
	cmd.AddCommand(newMigrateStepCmd("down", "Roll back the last migration", (*app.Migrator).Down))
	cmd.AddCommand(newMigrateVersionCmd())
	return cmd
}

func newMigrateStepCmd(use, short string, step func(*app.Migrator, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, mg *app.Migrator) error {
				return step(mg, ctx)
			})
		},
	}
}

func newMigrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, mg *app.Migrator) error {
				v, err := mg.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Println("schema version:", v)
				return nil
			})
		},
	}
}

func withMigrator(parent context.Context, fn func(context.Context, *app.Migrator) error) error {
	ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
	defer cancel()

	a, logger, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer a.Close()

	mg, err := a.Migrator()
	if err != nil {
		return err
	}
	defer mg.Close()
	return fn(ctx, mg)
}
