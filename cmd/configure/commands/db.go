package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/baller70/bookmarkaihub-sub004/internal/config"
	"github.com/baller70/bookmarkaihub-sub004/internal/database"
)

// openPolicyRepo connects to the configured database and makes sure the
// policy table exists. The returned closer releases the connection.
func openPolicyRepo(ctx context.Context, stderr io.Writer) (*database.RateLimitPolicyRepository, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	closer := func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(stderr, "Warning: failed to close database: %v\n", err)
		}
	}
	if err := db.EnsureSchema(ctx); err != nil {
		closer()
		return nil, nil, err
	}
	return database.NewRateLimitPolicyRepository(db), closer, nil
}
