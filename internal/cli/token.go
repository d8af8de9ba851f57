package cli

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/api"
	"github.com/Freeeeeet/booking_engine/internal/config"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func NewTokenCmd() *cobra.Command {
	var userID string
	var ttl time.Duration
	c := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := api.IssueToken(cfg.JWTSecret, id, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	c.Flags().StringVar(&userID, "user", "", "user id (uuid)")
	c.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = c.MarkFlagRequired("user")
	return c
}
