package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewSweepCmd один проход сверки и публикации отзывов, для запуска из cron
func NewSweepCmd() *cobra.Command {
	var timeout time.Duration
	c := &cobra.Command{
		Use:   "sweep",
		Short: "Run reconciliation and review publishing once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, logger, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close()

			res, published, err := a.SweepOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("advanced: %d, failed: %d, reviews published: %d\n", res.Advanced, res.Failed, published)
			return nil
		},
	}
	c.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "sweep deadline")
	return c
}
