package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chiraitori/spoticord/pkg/config"
	"github.com/chiraitori/spoticord/pkg/gateway"
	"github.com/chiraitori/spoticord/pkg/orchestrator"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file and environment",
	Long: `Load the configuration the way "spoticord start" does and report problems
without connecting to anything.

Examples:
  spoticord config validate
  spoticord config validate --config /etc/spoticord/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	if _, err := orchestrator.ParsePolicy(cfg.Orchestrator.Policy); err != nil {
		return err
	}
	if _, err := gateway.ParseIntents(cfg.Discord.Intents); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, "Configuration is valid")
	if cfg.Discord.Token == "" {
		_, _ = fmt.Fprintln(out, "Warning: no Discord token configured; startup will fail until SPOTICORD_DISCORD_TOKEN is set")
	}
	return nil
}
