package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eldersfive/mediator/internal/config"
	"github.com/eldersfive/mediator/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL", config.ErrMissingConfig)
	}

	ctx := cmd.Context()
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if m, ok := db.(migrator); ok {
		if err := m.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	if v, ok := db.(interface {
		SchemaVersion(ctx context.Context) (int, error)
	}); ok {
		version, err := v.SchemaVersion(ctx)
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}
