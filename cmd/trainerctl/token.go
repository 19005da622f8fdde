package main

import (
	"fmt"

	"backend-mtbtrainer/internal/auth"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var riderID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a rider or device",
		RunE: func(cmd *cobra.Command, args []string) error {
			if riderID == "" {
				return fmt.Errorf("--rider is required")
			}
			cfg := loadConfig()
			rdb := connectRedis(cfg)
			if rdb != nil {
				defer rdb.Close()
			}

			tokens, err := auth.NewService(cfg.JWTSecret, rdb).GenerateTokens(cmd.Context(), riderID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tokens.AccessToken)
			if tokens.RefreshToken != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "refresh: %s\n", tokens.RefreshToken)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&riderID, "rider", "", "rider id embedded in the token")
	return cmd
}
