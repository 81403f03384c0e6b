package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chiraitori/spoticord/internal/logger"
	"github.com/chiraitori/spoticord/pkg/config"
	"github.com/chiraitori/spoticord/pkg/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations without starting the bot.

"spoticord start" applies pending migrations on every startup; this command
runs the same step on its own, e.g. as a release job before a deploy.

Examples:
  # Run migrations with default config
  spoticord migrate

  # Run migrations against PostgreSQL from the environment
  SPOTICORD_DATABASE_TYPE=postgres SPOTICORD_DATABASE_POSTGRES_HOST=db spoticord migrate`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("Running database migrations", "type", cfg.Database.Type)

	ctx := cmd.Context()
	st, err := store.Open(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = st.Close() }()

	if err := st.Healthcheck(ctx); err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}

	fmt.Printf("Migrations completed successfully (database type: %s)\n", cfg.Database.Type)
	return nil
}
