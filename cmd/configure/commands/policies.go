package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/baller70/bookmarkaihub-sub004/internal/config"
	"github.com/baller70/bookmarkaihub-sub004/internal/models"
	"github.com/baller70/bookmarkaihub-sub004/internal/ratelimit"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewPoliciesCmd creates the policies command with list, set and delete subcommands.
func NewPoliciesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policies",
		Short: "Manage rate limit policy overrides",
		Long:  "List, set or delete per-class rate limit overrides stored in the database. Running gateways pick changes up on their next reload.",
	}
	cmd.AddCommand(newPoliciesListCmd())
	cmd.AddCommand(newPoliciesSetCmd())
	cmd.AddCommand(newPoliciesDeleteCmd())
	return cmd
}

func newPoliciesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored overrides next to the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeDB, err := openPolicyRepo(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeDB()

			rows, err := repo.List(cmd.Context())
			if err != nil {
				return err
			}
			return printPolicies(cmd.OutOrStdout(), rows)
		},
	}
}

func printPolicies(out io.Writer, rows []*models.RateLimitPolicy) error {
	stored := make(map[string]*models.RateLimitPolicy, len(rows))
	for _, row := range rows {
		stored[row.Class] = row
	}
	defaults := ratelimit.DefaultPolicies()

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Class", "Window", "Max Requests", "Source", "Updated"})
	for _, class := range ratelimit.Classes() {
		if row, ok := stored[string(class)]; ok {
			t.AppendRow(table.Row{class, row.Window(), row.MaxRequests, "override", row.UpdatedAt.UTC().Format(time.RFC3339)})
			continue
		}
		p := defaults[class]
		t.AppendRow(table.Row{class, p.Window, p.MaxRequests, "default", "-"})
	}
	t.Render()
	return nil
}

// parsePolicyFlags validates the set command's flags without touching the
// database. The window must be shorter than the gateway's retention horizon.
func parsePolicyFlags(class, window string, maxRequests int, retention time.Duration) (*models.RateLimitPolicy, error) {
	c, err := ratelimit.ParseEndpointClass(class)
	if err != nil {
		return nil, fmt.Errorf("--class: %w", err)
	}
	d, err := time.ParseDuration(strings.TrimSpace(window))
	if err != nil {
		return nil, fmt.Errorf("--window: %w", err)
	}
	p := ratelimit.Policy{Window: d, MaxRequests: maxRequests}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if d >= retention {
		return nil, fmt.Errorf("%w: window must be shorter than the %s retention horizon (RATE_LIMIT_RETENTION)", ratelimit.ErrInvalidPolicy, retention)
	}
	return models.NewRateLimitPolicy(c, p), nil
}

func newPoliciesSetCmd() *cobra.Command {
	var (
		class       string
		window      string
		maxRequests int
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store an override for one class",
		Example: `  bookmark-gateway-configure policies set --class auth --window 15m --max 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			row, err := parsePolicyFlags(class, window, maxRequests, cfg.RateLimit.Retention)
			if err != nil {
				return err
			}
			repo, closeDB, err := openPolicyRepo(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeDB()

			if err := repo.Upsert(cmd.Context(), row); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Policy for %s set to %d requests per %s.\n", row.Class, row.MaxRequests, row.Window())
			return nil
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "Endpoint class: auth, api or general (required)")
	cmd.Flags().StringVar(&window, "window", "", "Window length, e.g. 15m or 60s (required)")
	cmd.Flags().IntVar(&maxRequests, "max", 0, "Maximum requests per window (required)")
	_ = cmd.MarkFlagRequired("class")
	_ = cmd.MarkFlagRequired("window")
	_ = cmd.MarkFlagRequired("max")
	return cmd
}

func newPoliciesDeleteCmd() *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the override for one class",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ratelimit.ParseEndpointClass(class)
			if err != nil {
				return fmt.Errorf("--class: %w", err)
			}
			repo, closeDB, err := openPolicyRepo(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeDB()

			deleted, err := repo.Delete(cmd.Context(), c)
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "No override stored for %s.\n", c)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Override for %s removed; the default applies.\n", c)
			return nil
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "Endpoint class: auth, api or general (required)")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}
