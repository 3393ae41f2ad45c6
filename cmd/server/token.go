package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"smartflow/backend/internal/model"
	"smartflow/backend/pkg/jwt"
	"smartflow/backend/pkg/redis"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Development helpers for access tokens",
	}
	cmd.AddCommand(tokenIssueCmd())
	cmd.AddCommand(tokenRevokeCmd())
	return cmd
}

func tokenIssueCmd() *cobra.Command {
	var userID, role string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Mint an access token signed with auth.jwt_secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := uuid.Parse(userID); err != nil {
				return fmt.Errorf("--user must be a uuid: %w", err)
			}
			switch role {
			case model.RolePatient, model.RoleDoctor, model.RoleAdmin:
			default:
				return fmt.Errorf("--role must be %s, %s or %s", model.RolePatient, model.RoleDoctor, model.RoleAdmin)
			}

			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			token, err := jwt.NewManager(&cfg.Auth).GenerateAccessToken(userID, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (uuid)")
	cmd.Flags().StringVar(&role, "role", model.RolePatient, "paciente | medico | admin")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func tokenRevokeCmd() *cobra.Command {
	var (
		jti string
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Blacklist a token id in redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jti == "" {
				return errors.New("--jti is required")
			}
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if ttl <= 0 {
				ttl = cfg.Auth.AccessTokenTTL
			}
			rdb, err := redis.NewClient(&cfg.Redis, logger)
			if err != nil {
				return fmt.Errorf("connect redis: %w", err)
			}
			defer rdb.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := rdb.BlacklistToken(ctx, jti, ttl); err != nil {
				return err
			}
			logger.Info("token revoked", zap.String("jti", jti), zap.Duration("ttl", ttl))
			return nil
		},
	}
	cmd.Flags().StringVar(&jti, "jti", "", "token id to revoke")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "how long to keep the entry (default auth.access_token_ttl)")
	return cmd
}
