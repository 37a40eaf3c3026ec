package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/baller70/bookmarkaihub-sub004/internal/config"
	"github.com/baller70/bookmarkaihub-sub004/internal/database"
	"github.com/baller70/bookmarkaihub-sub004/internal/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewCheckCmd creates the check command, which validates configuration and
// reaches every configured backend.
func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and test backend connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			fmt.Fprintf(out, "✓ Configuration loaded (algorithm=%s, store=%s)\n", cfg.RateLimit.Algorithm, cfg.RateLimit.Store)

			policies := ratelimit.DefaultPolicies()
			if cfg.RateLimit.PolicyFile != "" {
				policies, err = ratelimit.LoadPoliciesFile(cfg.RateLimit.PolicyFile, policies)
				if err != nil {
					return fmt.Errorf("policy file: %w", err)
				}
				fmt.Fprintf(out, "✓ Policy file %s is valid\n", cfg.RateLimit.PolicyFile)
			}
			if longest := policies.LongestWindow(); cfg.RateLimit.Retention <= longest {
				return fmt.Errorf("RATE_LIMIT_RETENTION %s must exceed the longest window %s", cfg.RateLimit.Retention, longest)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			if cfg.RedisURL != "" {
				opts, err := redis.ParseURL(cfg.RedisURL)
				if err != nil {
					return fmt.Errorf("parse REDIS_URL: %w", err)
				}
				client := redis.NewClient(opts)
				defer func() { _ = client.Close() }()
				if err := client.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("redis: %w", err)
				}
				fmt.Fprintln(out, "✓ Redis is reachable")
			}

			if cfg.DatabaseURL != "" {
				db, err := database.New(cfg.DatabaseURL)
				if err != nil {
					return fmt.Errorf("database: %w", err)
				}
				defer func() { _ = db.Close() }()
				rows, err := database.NewRateLimitPolicyRepository(db).List(ctx)
				if err != nil {
					return fmt.Errorf("database: %w", err)
				}
				_, skipped := database.ToPolicies(rows)
				for _, class := range skipped {
					fmt.Fprintf(out, "! Stored override for %q is invalid and will be ignored\n", class)
				}
				fmt.Fprintf(out, "✓ Database is reachable (%d stored overrides)\n", len(rows))
			}
			return nil
		},
	}
}
